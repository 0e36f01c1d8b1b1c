package vend

import (
	"sort"

	"github.com/vendlink/vendlink/internal/domain"
)

// Catalog is the static device-id to item mapping. Built once at startup,
// read-only afterwards.
type Catalog struct {
	items map[string]domain.CatalogItem
}

func NewCatalog(items []domain.CatalogItem) *Catalog {
	c := &Catalog{items: make(map[string]domain.CatalogItem, len(items))}
	for _, item := range items {
		if item.Currency == "" {
			item.Currency = "ARS"
		}
		c.items[item.Device] = item
	}
	return c
}

// Lookup returns the item sold by the device.
func (c *Catalog) Lookup(device string) (domain.CatalogItem, bool) {
	item, ok := c.items[device]
	return item, ok
}

func (c *Catalog) Has(device string) bool {
	_, ok := c.items[device]
	return ok
}

// Devices returns the allow-listed device ids in stable order.
func (c *Catalog) Devices() []string {
	devices := make([]string, 0, len(c.items))
	for dev := range c.items {
		devices = append(devices, dev)
	}
	sort.Strings(devices)
	return devices
}

func (c *Catalog) Len() int {
	return len(c.items)
}

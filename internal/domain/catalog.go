package domain

// CatalogItem is the sellable item bound to a device id. Immutable after
// startup.
type CatalogItem struct {
	Device   string  `json:"device"`
	Title    string  `json:"title"`
	Price    float64 `json:"price"`
	Currency string  `json:"currency"`
}

package vend

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/vendlink/vendlink/internal/domain"
)

// deviceEntry is the live mutable state of one device. All field access goes
// through mu so that link replacement, paid-flag writes and the destructive
// paid-flag read serialize per device.
type deviceEntry struct {
	mu        sync.Mutex
	link      string
	prefID    string
	paid      bool
	updatedAt time.Time
}

// DeviceStore holds per-device state for every allow-listed device. Entries
// are created once at construction and never removed; operations on distinct
// devices never contend.
type DeviceStore struct {
	devices map[string]*deviceEntry
}

func NewDeviceStore(catalog *Catalog) *DeviceStore {
	s := &DeviceStore{devices: make(map[string]*deviceEntry, catalog.Len())}
	for _, dev := range catalog.Devices() {
		s.devices[dev] = &deviceEntry{}
	}
	return s
}

func (s *DeviceStore) entry(device string) (*deviceEntry, error) {
	e, ok := s.devices[device]
	if !ok {
		return nil, errors.Wrap(ErrUnknownDevice, device)
	}
	return e, nil
}

// Get returns a snapshot of the device state.
func (s *DeviceStore) Get(device string) (domain.DeviceState, error) {
	e, err := s.entry(device)
	if err != nil {
		return domain.DeviceState{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return domain.DeviceState{
		Device:       device,
		Link:         e.link,
		PreferenceID: e.prefID,
		Paid:         e.paid,
		UpdatedAt:    e.updatedAt,
	}, nil
}

// SetLink overwrites the device's link and preference id as a single step.
func (s *DeviceStore) SetLink(device, link, preferenceID string) error {
	e, err := s.entry(device)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.link = link
	e.prefID = preferenceID
	e.updatedAt = time.Now()
	e.mu.Unlock()
	return nil
}

// ConsumePaid returns the paid flag and clears it in the same critical
// section, so a concurrent MarkPaid is never lost.
func (s *DeviceStore) ConsumePaid(device string) (bool, error) {
	e, err := s.entry(device)
	if err != nil {
		return false, err
	}
	e.mu.Lock()
	paid := e.paid
	e.paid = false
	e.mu.Unlock()
	return paid, nil
}

// MarkPaid sets the paid flag. Idempotent.
func (s *DeviceStore) MarkPaid(device string) error {
	e, err := s.entry(device)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.paid = true
	e.updatedAt = time.Now()
	e.mu.Unlock()
	return nil
}

// MarkPaidIfPreference sets the paid flag only if preferenceID is still the
// device's active preference, reading it inside the critical section. This
// is the commit-time correspondence check: a link replaced mid-reconciliation
// correctly invalidates the stale match.
func (s *DeviceStore) MarkPaidIfPreference(device, preferenceID string) (bool, error) {
	e, err := s.entry(device)
	if err != nil {
		return false, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if preferenceID == "" || e.prefID != preferenceID {
		return false, nil
	}
	e.paid = true
	e.updatedAt = time.Now()
	return true, nil
}

// FindByPreference scans for the device whose active preference id matches.
// Fallback resolution path for payment records without a usable external
// reference.
func (s *DeviceStore) FindByPreference(preferenceID string) (string, bool) {
	if preferenceID == "" {
		return "", false
	}
	for dev, e := range s.devices {
		e.mu.Lock()
		match := e.prefID == preferenceID
		e.mu.Unlock()
		if match {
			return dev, true
		}
	}
	return "", false
}

// Devices returns every tracked device id.
func (s *DeviceStore) Devices() []string {
	devices := make([]string, 0, len(s.devices))
	for dev := range s.devices {
		devices = append(devices, dev)
	}
	return devices
}

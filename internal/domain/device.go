package domain

import "time"

// DeviceState is a point-in-time snapshot of a device's mutable state.
// The store owns the live copy; callers only ever see snapshots.
type DeviceState struct {
	Device       string    `json:"device"`
	Link         string    `json:"link"`
	PreferenceID string    `json:"preference_id"`
	Paid         bool      `json:"paid"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Notification is the transient payload of an inbound gateway webhook.
// It is untrusted: only the payment id is used, and only after the
// authoritative payment record has been fetched from the gateway.
type Notification struct {
	PaymentID string `json:"payment_id"`
	Topic     string `json:"topic"`
}

package domain

import "time"

// Payment is one confirmed payment. Appended to the ledger exactly once per
// accepted notification and mirrored to the database as an audit record;
// never mutated afterwards.
type Payment struct {
	ID           int64     `gorm:"primaryKey" json:"id"`
	PaymentID    string    `gorm:"uniqueIndex;size:64" json:"payment_id"`
	Device       string    `gorm:"index;size:64" json:"device"`
	PreferenceID string    `gorm:"size:128" json:"preference_id"`
	Status       string    `gorm:"size:32" json:"status"`
	Amount       float64   `json:"amount"`
	PayerEmail   string    `gorm:"size:256" json:"payer_email"`
	Method       string    `gorm:"size:64" json:"method"`
	Description  string    `gorm:"size:512" json:"description"`
	PaidAt       time.Time `json:"paid_at"`
	CreatedAt    time.Time `json:"created_at"`
}

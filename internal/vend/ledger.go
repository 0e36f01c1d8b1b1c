package vend

import (
	"sync"
	"time"

	"github.com/vendlink/vendlink/internal/domain"
	"github.com/vendlink/vendlink/pkg/common"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Ledger is the append-only list of confirmed payments. The in-memory slice
// is the source of truth for the process lifetime; each entry is also
// mirrored to the database as an audit record. The mirror is a write-only
// sink: a failed insert is logged and never blocks acceptance.
type Ledger struct {
	mu      sync.Mutex
	entries []domain.Payment
	db      *gorm.DB
}

func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// Append records a confirmed payment.
func (l *Ledger) Append(p domain.Payment) {
	if p.ID == 0 {
		p.ID = common.UUIDint64()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	l.mu.Lock()
	l.entries = append(l.entries, p)
	l.mu.Unlock()

	if l.db != nil {
		if err := l.db.Create(&p).Error; err != nil {
			zap.L().Error("failed to mirror payment to database",
				zap.String("payment_id", p.PaymentID), zap.Error(err))
		}
	}
}

// Entries returns a copy of all recorded payments, oldest first.
func (l *Ledger) Entries() []domain.Payment {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.Payment, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// TotalAmount sums the recorded payment amounts.
func (l *Ledger) TotalAmount() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	var total float64
	for _, p := range l.entries {
		total += p.Amount
	}
	return total
}

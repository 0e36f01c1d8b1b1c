package vend

import (
	"context"
	"sync"
	"time"

	"github.com/vendlink/vendlink/pkg/metrics"
	"go.uber.org/zap"
)

// Rotator re-issues a device's preference after a confirmed payment. It is
// fire-and-forget: one rotation per device may be in flight at a time, a
// second confirmed payment while one is pending is satisfied by the fresh
// link that rotation produces anyway.
type Rotator struct {
	issuer      *Issuer
	delay       time.Duration
	baseDelay   time.Duration
	maxAttempts int

	mu      sync.Mutex
	pending map[string]bool
}

func NewRotator(issuer *Issuer, delay, baseDelay time.Duration, maxAttempts int) *Rotator {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &Rotator{
		issuer:      issuer,
		delay:       delay,
		baseDelay:   baseDelay,
		maxAttempts: maxAttempts,
		pending:     make(map[string]bool),
	}
}

// Schedule queues a rotation for the device. Returns immediately.
func (r *Rotator) Schedule(device string) {
	r.mu.Lock()
	if r.pending[device] {
		r.mu.Unlock()
		zap.L().Debug("rotation already pending", zap.String("device", device))
		return
	}
	r.pending[device] = true
	r.mu.Unlock()

	go r.run(device)
}

func (r *Rotator) run(device string) {
	defer func() {
		r.mu.Lock()
		delete(r.pending, device)
		r.mu.Unlock()
	}()

	time.Sleep(r.delay)

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		_, err := r.issuer.Issue(context.Background(), device)
		if err == nil {
			zap.L().Info("rotated preference after payment",
				zap.String("device", device), zap.Int("attempt", attempt))
			return
		}
		zap.L().Warn("rotation attempt failed",
			zap.String("device", device),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if attempt < r.maxAttempts {
			// linear backoff: baseDelay * failed attempt count
			time.Sleep(r.baseDelay * time.Duration(attempt))
		}
	}

	metrics.IncrCounter(metrics.RotationGiveups, 1)
	zap.L().Warn("rotation gave up, device keeps its consumed link until the next poll",
		zap.String("device", device), zap.Int("attempts", r.maxAttempts))
}

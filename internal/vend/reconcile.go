package vend

import (
	"context"
	"time"

	"github.com/araddon/dateparse"
	lru "github.com/hashicorp/golang-lru"
	"github.com/vendlink/vendlink/internal/domain"
	"github.com/vendlink/vendlink/internal/mercadopago"
	"github.com/vendlink/vendlink/pkg/common"
	"github.com/vendlink/vendlink/pkg/metrics"
	"go.uber.org/zap"
)

// topicPayment is the only notification topic that carries a payment event;
// everything else is acknowledged without action.
const topicPayment = "payment"

// seenPaymentIDs bounds the duplicate-suppression set. A single last-seen id
// is not enough once several devices pay in quick succession.
const seenPaymentIDs = 512

// Scheduler hands a device off for post-payment link rotation.
type Scheduler interface {
	Schedule(device string)
}

// Reconciler turns untrusted gateway notifications into device state
// transitions. Every notification is answered with success upstream; all
// failure modes below either log-and-drop or are retried internally by the
// rotation scheduler, never by asking the gateway to redeliver.
type Reconciler struct {
	catalog *Catalog
	store   *DeviceStore
	ledger  *Ledger
	gateway mercadopago.Client
	rotator Scheduler
	seen    *lru.Cache
}

func NewReconciler(catalog *Catalog, store *DeviceStore, ledger *Ledger, gateway mercadopago.Client, rotator Scheduler) *Reconciler {
	seen, err := lru.New(seenPaymentIDs)
	if err != nil {
		panic(err)
	}
	return &Reconciler{
		catalog: catalog,
		store:   store,
		ledger:  ledger,
		gateway: gateway,
		rotator: rotator,
		seen:    seen,
	}
}

// HandleNotification runs the reconciliation pipeline for one notification.
// The returned error is informational for logging and tests; the webhook
// endpoint acknowledges regardless.
func (r *Reconciler) HandleNotification(ctx context.Context, n domain.Notification) error {
	// filter by topic
	if n.Topic != topicPayment {
		zap.L().Debug("ignoring non-payment notification", zap.String("topic", n.Topic))
		return nil
	}
	if n.PaymentID == "" {
		metrics.IncrCounter(metrics.NotificationsDropped, 1)
		zap.L().Debug("payment notification without id")
		return nil
	}
	// fast-path duplicate suppression; the authoritative check happens at
	// commit time so non-terminal outcomes stay retryable
	if r.seen.Contains(n.PaymentID) {
		zap.L().Debug("duplicate payment notification", zap.String("payment_id", n.PaymentID))
		return nil
	}

	detail, err := r.gateway.GetPayment(ctx, n.PaymentID)
	if err != nil {
		metrics.IncrCounter(metrics.NotificationsDropped, 1)
		zap.L().Warn("failed to fetch payment, acknowledging anyway",
			zap.String("payment_id", n.PaymentID), zap.Error(err))
		return nil
	}

	zap.L().Info("payment notification",
		zap.String("payment_id", n.PaymentID),
		zap.String("status", detail.Status),
		zap.String("preference_id", detail.PreferenceID),
		zap.String("external_reference", detail.ExternalReference))

	device := r.resolveDevice(detail)
	if device == "" {
		metrics.IncrCounter(metrics.NotificationsDropped, 1)
		zap.L().Warn("payment could not be mapped to a device",
			zap.String("payment_id", n.PaymentID),
			zap.String("external_reference", detail.ExternalReference))
		return nil
	}

	if detail.Status != "approved" {
		// not terminal: the gateway redelivers the same id once the status
		// changes, and that redelivery must still be able to credit
		zap.L().Info("payment ignored, not approved",
			zap.String("device", device),
			zap.String("payment_id", n.PaymentID),
			zap.String("status", detail.Status))
		return nil
	}

	// the id enters the seen-set only here, on a terminal outcome: either the
	// payment commits below or the preference mismatch makes it permanently
	// uncreditable. Atomic, so a concurrent approved redelivery commits once.
	if dup, _ := r.seen.ContainsOrAdd(n.PaymentID, true); dup {
		return nil
	}

	// commit-time correspondence check: the active preference id is read
	// under the device lock, so a replacement issued mid-flight invalidates
	// this payment
	ok, err := r.store.MarkPaidIfPreference(device, detail.PreferenceID)
	if err != nil {
		return err
	}
	if !ok {
		metrics.IncrCounter(metrics.NotificationsDropped, 1)
		zap.L().Warn("payment rejected, preference mismatch",
			zap.String("device", device),
			zap.String("payment_id", n.PaymentID),
			zap.String("preference_id", detail.PreferenceID))
		return nil
	}

	r.ledger.Append(domain.Payment{
		PaymentID:    n.PaymentID,
		Device:       device,
		PreferenceID: detail.PreferenceID,
		Status:       detail.Status,
		Amount:       detail.TransactionAmount,
		PayerEmail:   common.IfEmptyStr(detail.Payer.Email, common.NA),
		Method:       detail.PaymentMethodID,
		Description:  detail.Description,
		PaidAt:       parsePaidAt(detail.DateApproved),
	})
	metrics.IncrCounter(metrics.PaymentsAccepted, 1)
	zap.L().Info("payment accepted",
		zap.String("device", device),
		zap.String("payment_id", n.PaymentID),
		zap.Float64("amount", detail.TransactionAmount))

	if r.rotator != nil {
		r.rotator.Schedule(device)
	}
	return nil
}

// resolveDevice maps a payment record to a device: external reference first,
// active-preference scan as fallback.
func (r *Reconciler) resolveDevice(detail *mercadopago.PaymentDetail) string {
	if detail.ExternalReference != "" && r.catalog.Has(detail.ExternalReference) {
		return detail.ExternalReference
	}
	if dev, ok := r.store.FindByPreference(detail.PreferenceID); ok {
		return dev
	}
	return ""
}

func parsePaidAt(s string) time.Time {
	if s == "" {
		return time.Now()
	}
	t, err := dateparse.ParseAny(s)
	if err != nil {
		return time.Now()
	}
	return t
}

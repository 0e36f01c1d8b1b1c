package vend

import (
	"context"

	"github.com/pkg/errors"
	"github.com/vendlink/vendlink/internal/mercadopago"
	"github.com/vendlink/vendlink/pkg/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// IssueResult is the outcome of a successful preference creation.
type IssueResult struct {
	Link         string `json:"link"`
	PreferenceID string `json:"preference_id"`
}

// Issuer mints checkout preferences for devices and records the resulting
// link and preference id in the device store.
type Issuer struct {
	catalog   *Catalog
	store     *DeviceStore
	gateway   mercadopago.Client
	notifyURL string
	testMode  bool

	// collapses concurrent lazy issuance for the same device into one
	// gateway call.
	group singleflight.Group
}

func NewIssuer(catalog *Catalog, store *DeviceStore, gateway mercadopago.Client, notifyURL string, testMode bool) *Issuer {
	return &Issuer{
		catalog:   catalog,
		store:     store,
		gateway:   gateway,
		notifyURL: notifyURL,
		testMode:  testMode,
	}
}

// Issue always creates a fresh preference, replacing whatever the device
// currently has. On gateway failure the previous link and preference id are
// left untouched.
func (i *Issuer) Issue(ctx context.Context, device string) (IssueResult, error) {
	item, ok := i.catalog.Lookup(device)
	if !ok {
		return IssueResult{}, errors.Wrap(ErrUnknownDevice, device)
	}

	req := &mercadopago.PreferenceRequest{
		Items: []mercadopago.PreferenceItem{
			{
				Title:      item.Title,
				Quantity:   1,
				CurrencyID: item.Currency,
				UnitPrice:  item.Price,
			},
		},
		ExternalReference: device,
		NotificationURL:   i.notifyURL,
	}

	pref, err := i.gateway.CreatePreference(ctx, req)
	if err != nil {
		metrics.IncrCounter(metrics.IssueFailures, 1)
		return IssueResult{}, errors.Wrapf(err, "issue preference for %s", device)
	}

	link := pref.InitPoint
	if i.testMode {
		link = pref.SandboxInitPoint
	}
	if err := i.store.SetLink(device, link, pref.ID); err != nil {
		return IssueResult{}, err
	}

	zap.L().Info("issued new preference",
		zap.String("device", device),
		zap.String("preference_id", pref.ID),
		zap.Bool("test_mode", i.testMode))
	return IssueResult{Link: link, PreferenceID: pref.ID}, nil
}

// IssueLazy returns the device's current link if one is set and only calls
// the gateway when the device has no active preference. Concurrent callers
// for the same device share one issuance.
func (i *Issuer) IssueLazy(ctx context.Context, device string) (IssueResult, error) {
	state, err := i.store.Get(device)
	if err != nil {
		return IssueResult{}, err
	}
	if state.Link != "" && state.PreferenceID != "" {
		return IssueResult{Link: state.Link, PreferenceID: state.PreferenceID}, nil
	}

	v, err, _ := i.group.Do(device, func() (interface{}, error) {
		// re-check under the flight: another caller may have issued already
		state, err := i.store.Get(device)
		if err != nil {
			return IssueResult{}, err
		}
		if state.Link != "" && state.PreferenceID != "" {
			return IssueResult{Link: state.Link, PreferenceID: state.PreferenceID}, nil
		}
		return i.Issue(ctx, device)
	})
	if err != nil {
		return IssueResult{}, err
	}
	return v.(IssueResult), nil
}

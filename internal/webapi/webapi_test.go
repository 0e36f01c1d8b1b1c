package webapi

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vendlink/vendlink/config"
	"github.com/vendlink/vendlink/internal/app"
	"github.com/vendlink/vendlink/internal/domain"
	"github.com/vendlink/vendlink/internal/mercadopago"
	"github.com/vendlink/vendlink/internal/webserver"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type stubGateway struct {
	mu       sync.Mutex
	prefSeq  int
	payments map[string]*mercadopago.PaymentDetail
}

func (s *stubGateway) CreatePreference(ctx context.Context, req *mercadopago.PreferenceRequest) (*mercadopago.Preference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefSeq++
	id := fmt.Sprintf("pref-%d", s.prefSeq)
	return &mercadopago.Preference{
		ID:               id,
		InitPoint:        "https://mp/init/" + id,
		SandboxInitPoint: "https://mp/sandbox/" + id,
	}, nil
}

func (s *stubGateway) GetPayment(ctx context.Context, paymentID string) (*mercadopago.PaymentDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	detail, ok := s.payments[paymentID]
	if !ok {
		return nil, errors.Errorf("payment %s not found", paymentID)
	}
	return detail, nil
}

func (s *stubGateway) addPayment(detail *mercadopago.PaymentDetail) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments[fmt.Sprintf("%d", detail.ID)] = detail
}

func newTestServer(t *testing.T) (*webserver.WebServer, *stubGateway, *app.Application) {
	t.Helper()

	cfg := *config.DefaultAppConfig
	cfg.Rotation = config.RotationConfig{Delay: 0, BaseDelay: 0, MaxAttempts: 1}

	a := app.NewApplication(&cfg)
	a.InitLite()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	a.OverrideDB(db)

	gw := &stubGateway{payments: make(map[string]*mercadopago.PaymentDetail)}
	a.OverrideGateway(gw)
	require.NoError(t, a.MigrateDB())
	t.Cleanup(a.DropAll)

	srv := webserver.Init(a)
	Init()
	return srv, gw, a
}

func doRequest(srv *webserver.WebServer, method, target string, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, jsoniter.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestPing(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := doRequest(srv, http.MethodGet, "/ping", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNewLink(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doRequest(srv, http.MethodGet, "/nuevo-link?dev=bar1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "bar1", body["dev"])
	// default config runs in test mode, so the sandbox link is handed out
	assert.Equal(t, "https://mp/sandbox/pref-1", body["link"])
	assert.Equal(t, "Pinta Rubia", body["title"])
	assert.Equal(t, true, body["test"])

	// lazy: the second poll reuses the active link
	rec = doRequest(srv, http.MethodGet, "/nuevo-link?dev=bar1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://mp/sandbox/pref-1", decodeBody(t, rec)["link"])

	// force mints a fresh one
	rec = doRequest(srv, http.MethodGet, "/nuevo-link?dev=bar1&force=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://mp/sandbox/pref-2", decodeBody(t, rec)["link"])
}

func TestNewLinkUnknownDevice(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doRequest(srv, http.MethodGet, "/nuevo-link?dev=ghost", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(srv, http.MethodGet, "/nuevo-link", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeviceStatusConsumesFlag(t *testing.T) {
	srv, _, a := newTestServer(t)
	require.NoError(t, a.DeviceStore().MarkPaid("bar1"))

	rec := doRequest(srv, http.MethodGet, "/estado?dev=bar1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["pagado"])

	// destructive read: the flag is gone on the next poll
	rec = doRequest(srv, http.MethodGet, "/estado?dev=bar1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decodeBody(t, rec)["pagado"])
}

func TestDeviceStatusUnknownDevice(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := doRequest(srv, http.MethodGet, "/estado?dev=ghost", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNotificationQueryForm(t *testing.T) {
	srv, gw, a := newTestServer(t)

	// the device needs an active preference matching the payment
	rec := doRequest(srv, http.MethodGet, "/nuevo-link?dev=bar1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	gw.addPayment(&mercadopago.PaymentDetail{
		ID:                111,
		Status:            "approved",
		PreferenceID:      "pref-1",
		ExternalReference: "bar1",
		TransactionAmount: 100,
	})

	rec = doRequest(srv, http.MethodPost, "/ipn?id=111&topic=payment", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	paid, err := a.DeviceStore().ConsumePaid("bar1")
	require.NoError(t, err)
	assert.True(t, paid)
	assert.Equal(t, 1, a.Ledger().Len())
}

func TestNotificationJSONBody(t *testing.T) {
	srv, gw, a := newTestServer(t)

	rec := doRequest(srv, http.MethodGet, "/nuevo-link?dev=bar1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	gw.addPayment(&mercadopago.PaymentDetail{
		ID:                222,
		Status:            "approved",
		PreferenceID:      "pref-1",
		ExternalReference: "bar1",
		TransactionAmount: 100,
	})

	rec = doRequest(srv, http.MethodPost, "/ipn", `{"type":"payment","data":{"id":222}}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, a.Ledger().Len())
}

func TestNotificationAlwaysAcknowledged(t *testing.T) {
	srv, _, a := newTestServer(t)

	// unknown payment id: the fetch fails, the response is still 200
	rec := doRequest(srv, http.MethodPost, "/ipn?id=999&topic=payment", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	// non-payment topic
	rec = doRequest(srv, http.MethodPost, "/ipn?id=999&topic=merchant_order", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	// garbage body
	rec = doRequest(srv, http.MethodPost, "/ipn", `not-json`)
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, 0, a.Ledger().Len())
}

func TestPanel(t *testing.T) {
	srv, _, a := newTestServer(t)
	a.Ledger().Append(domain.Payment{
		PaymentID: "111", Device: "bar1", Status: "approved",
		Amount: 100, Method: "account_money", PayerEmail: "payer@example.com",
	})

	rec := doRequest(srv, http.MethodGet, "/panel", "")
	require.Equal(t, http.StatusOK, rec.Code)
	html := rec.Body.String()
	assert.Contains(t, html, "Pagos registrados")
	assert.Contains(t, html, "bar1")
	assert.Contains(t, html, "payer@example.com")
	assert.Contains(t, html, "100.00")
}

func TestListPayments(t *testing.T) {
	srv, _, a := newTestServer(t)
	a.Ledger().Append(domain.Payment{PaymentID: "111", Device: "bar1", Status: "approved", Amount: 100})
	a.Ledger().Append(domain.Payment{PaymentID: "222", Device: "bar2", Status: "approved", Amount: 120})

	rec := doRequest(srv, http.MethodGet, "/api/payments", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(2), body["total"])

	rec = doRequest(srv, http.MethodGet, "/api/payments?device=bar1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decodeBody(t, rec)["total"])

	rec = doRequest(srv, http.MethodGet, "/api/payments?q=222", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decodeBody(t, rec)["total"])
}

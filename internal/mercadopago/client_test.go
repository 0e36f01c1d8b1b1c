package mercadopago

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vendlink/vendlink/config"
)

func testClient(url string) Client {
	return NewClient(config.MercadopagoConfig{
		ApiUrl:      url,
		AccessToken: "TEST-TOKEN",
		Timeout:     5,
	})
}

func TestCreatePreference(t *testing.T) {
	var gotReq PreferenceRequest
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/checkout/preferences", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"id":                 "123-abc",
			"init_point":         "https://mp/init",
			"sandbox_init_point": "https://mp/sandbox",
		})
	}))
	defer srv.Close()

	pref, err := testClient(srv.URL).CreatePreference(context.Background(), &PreferenceRequest{
		Items: []PreferenceItem{
			{Title: "Pinta Rubia", Quantity: 1, CurrencyID: "ARS", UnitPrice: 100},
		},
		ExternalReference: "bar1",
		NotificationURL:   "https://vend.example.com/ipn",
	})
	require.NoError(t, err)
	assert.Equal(t, "123-abc", pref.ID)
	assert.Equal(t, "https://mp/init", pref.InitPoint)
	assert.Equal(t, "https://mp/sandbox", pref.SandboxInitPoint)

	assert.Equal(t, "Bearer TEST-TOKEN", gotAuth)
	assert.Equal(t, "bar1", gotReq.ExternalReference)
	require.Len(t, gotReq.Items, 1)
	assert.Equal(t, 100.0, gotReq.Items[0].UnitPrice)
}

func TestCreatePreferenceRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"invalid_token"}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).CreatePreference(context.Background(), &PreferenceRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
}

func TestCreatePreferenceMissingID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).CreatePreference(context.Background(), &PreferenceRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing id")
}

func TestGetPayment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/v1/payments/987", r.URL.Path)
		require.Equal(t, "Bearer TEST-TOKEN", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{
			"id": 987,
			"status": "approved",
			"preference_id": "123-abc",
			"external_reference": "bar1",
			"transaction_amount": 100.5,
			"payment_method_id": "account_money",
			"date_approved": "2026-08-28T12:00:00.000-03:00",
			"payer": {"email": "payer@example.com"}
		}`))
	}))
	defer srv.Close()

	detail, err := testClient(srv.URL).GetPayment(context.Background(), "987")
	require.NoError(t, err)
	assert.Equal(t, int64(987), detail.ID)
	assert.Equal(t, "approved", detail.Status)
	assert.Equal(t, "123-abc", detail.PreferenceID)
	assert.Equal(t, "bar1", detail.ExternalReference)
	assert.Equal(t, 100.5, detail.TransactionAmount)
	assert.Equal(t, "payer@example.com", detail.Payer.Email)
}

func TestGetPaymentNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"not found"}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).GetPayment(context.Background(), "404404")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

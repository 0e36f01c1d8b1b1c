package mercadopago

import (
	"context"
	"time"

	"github.com/guonaihong/gout"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/vendlink/vendlink/config"
	"go.uber.org/zap"
)

// PreferenceItem is one line item of a checkout preference.
type PreferenceItem struct {
	Title      string  `json:"title"`
	Quantity   int     `json:"quantity"`
	CurrencyID string  `json:"currency_id"`
	UnitPrice  float64 `json:"unit_price"`
}

// PreferenceRequest is the create-preference payload. ExternalReference
// carries the device id so the gateway echoes it back in payment records.
type PreferenceRequest struct {
	Items             []PreferenceItem `json:"items"`
	ExternalReference string           `json:"external_reference"`
	NotificationURL   string           `json:"notification_url"`
}

// Preference is the create-preference response.
type Preference struct {
	ID               string `json:"id"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point"`
}

type Payer struct {
	Email string `json:"email"`
}

// PaymentDetail is the authoritative payment record fetched by id.
type PaymentDetail struct {
	ID                int64   `json:"id"`
	Status            string  `json:"status"`
	PreferenceID      string  `json:"preference_id"`
	ExternalReference string  `json:"external_reference"`
	TransactionAmount float64 `json:"transaction_amount"`
	Description       string  `json:"description"`
	PaymentMethodID   string  `json:"payment_method_id"`
	DateApproved      string  `json:"date_approved"`
	Payer             Payer   `json:"payer"`
}

// Client is the payment gateway surface the core depends on.
type Client interface {
	CreatePreference(ctx context.Context, req *PreferenceRequest) (*Preference, error)
	GetPayment(ctx context.Context, paymentID string) (*PaymentDetail, error)
}

type apiClient struct {
	apiurl  string
	token   string
	timeout time.Duration
}

// NewClient returns a gateway client bound to the configured credentials.
func NewClient(cfg config.MercadopagoConfig) Client {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &apiClient{
		apiurl:  cfg.ApiUrl,
		token:   cfg.AccessToken,
		timeout: timeout,
	}
}

func (c *apiClient) headers() gout.H {
	return gout.H{
		"Authorization": "Bearer " + c.token,
		"Content-Type":  "application/json",
	}
}

func (c *apiClient) CreatePreference(ctx context.Context, req *PreferenceRequest) (*Preference, error) {
	var (
		code int
		body string
	)
	err := gout.POST(c.apiurl + "/checkout/preferences").
		WithContext(ctx).
		SetTimeout(c.timeout).
		SetHeader(c.headers()).
		SetJSON(req).
		Code(&code).
		BindBody(&body).
		Do()
	if err != nil {
		return nil, errors.Wrap(err, "mercadopago: create preference request")
	}
	if code/100 != 2 {
		zap.L().Warn("mercadopago create preference rejected",
			zap.Int("status", code), zap.String("body", truncate(body, 512)))
		return nil, errors.Errorf("mercadopago: create preference status %d", code)
	}
	var pref Preference
	if err := jsoniter.UnmarshalFromString(body, &pref); err != nil {
		return nil, errors.Wrap(err, "mercadopago: decode preference response")
	}
	if pref.ID == "" {
		return nil, errors.New("mercadopago: preference response missing id")
	}
	return &pref, nil
}

func (c *apiClient) GetPayment(ctx context.Context, paymentID string) (*PaymentDetail, error) {
	var (
		code int
		body string
	)
	err := gout.GET(c.apiurl + "/v1/payments/" + paymentID).
		WithContext(ctx).
		SetTimeout(c.timeout).
		SetHeader(c.headers()).
		Code(&code).
		BindBody(&body).
		Do()
	if err != nil {
		return nil, errors.Wrapf(err, "mercadopago: fetch payment %s", paymentID)
	}
	if code/100 != 2 {
		zap.L().Warn("mercadopago fetch payment rejected",
			zap.String("payment_id", paymentID),
			zap.Int("status", code), zap.String("body", truncate(body, 512)))
		return nil, errors.Errorf("mercadopago: fetch payment %s status %d", paymentID, code)
	}
	var detail PaymentDetail
	if err := jsoniter.UnmarshalFromString(body, &detail); err != nil {
		return nil, errors.Wrapf(err, "mercadopago: decode payment %s", paymentID)
	}
	return &detail, nil
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

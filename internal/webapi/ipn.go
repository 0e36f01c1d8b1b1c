package webapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/labstack/echo/v4"
	"github.com/vendlink/vendlink/internal/domain"
	"go.uber.org/zap"
)

// ipnBody is the webhook JSON shape. data.id arrives as a number or a
// string depending on the notification mode.
type ipnBody struct {
	Type string `json:"type"`
	Data struct {
		ID json.Number `json:"id"`
	} `json:"data"`
}

// notification ingests a gateway webhook. The payment id and topic come
// either from the query string (classic IPN) or from the JSON body
// (webhook mode). The response is always 200: the gateway retries on
// anything else and reconciliation failures are handled internally.
func notification(c echo.Context) error {
	n := domain.Notification{
		PaymentID: strings.TrimSpace(c.QueryParam("id")),
		Topic:     strings.TrimSpace(c.QueryParam("topic")),
	}

	if n.PaymentID == "" || n.Topic == "" {
		if body, err := io.ReadAll(c.Request().Body); err == nil && len(body) > 0 {
			var b ipnBody
			if err := jsoniter.Unmarshal(body, &b); err == nil {
				if n.Topic == "" {
					n.Topic = b.Type
				}
				if n.PaymentID == "" {
					n.PaymentID = b.Data.ID.String()
				}
			}
		}
	}

	if err := GetApp(c).Reconciler().HandleNotification(c.Request().Context(), n); err != nil {
		zap.L().Error("notification handling failed",
			zap.String("payment_id", n.PaymentID), zap.Error(err))
	}
	return c.NoContent(http.StatusOK)
}

package webapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/vendlink/vendlink/internal/vend"
)

// newLink hands the device its current checkout link, issuing one lazily if
// none is active. force=1 always mints a fresh preference.
func newLink(c echo.Context) error {
	a := GetApp(c)
	dev := strings.TrimSpace(c.QueryParam("dev"))
	if dev == "" || !a.Catalog().Has(dev) {
		return fail(c, http.StatusBadRequest, "INVALID_DEVICE", "dev invalido", nil)
	}

	issue := a.Issuer().IssueLazy
	if c.QueryParam("force") != "" {
		issue = a.Issuer().Issue
	}
	result, err := issue(c.Request().Context(), dev)
	if err != nil {
		if errors.Is(err, vend.ErrUnknownDevice) {
			return fail(c, http.StatusBadRequest, "INVALID_DEVICE", "dev invalido", nil)
		}
		return fail(c, http.StatusInternalServerError, "GATEWAY_ERROR", "nuevo-link fail", err.Error())
	}

	item, _ := a.Catalog().Lookup(dev)
	return ok(c, map[string]interface{}{
		"dev":   dev,
		"link":  result.Link,
		"title": item.Title,
		"price": item.Price,
		"test":  a.Config().Mercadopago.TestMode,
	})
}

// deviceStatus reports and consumes the one-shot paid flag. Reading is
// destructive: the first poll after a payment sees true, every later one
// sees false until the next payment.
func deviceStatus(c echo.Context) error {
	a := GetApp(c)
	dev := strings.TrimSpace(c.QueryParam("dev"))
	paid, err := a.DeviceStore().ConsumePaid(dev)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_DEVICE", "dev invalido", nil)
	}
	return ok(c, map[string]interface{}{"pagado": paid})
}

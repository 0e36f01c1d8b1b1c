package webapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/vendlink/vendlink/internal/webserver"
)

// Init registers every HTTP route. Call after webserver.Init.
func Init() {
	webserver.ApiGET("/ping", ping)
	webserver.ApiGET("/nuevo-link", newLink)
	webserver.ApiGET("/estado", deviceStatus)
	webserver.ApiPOST("/ipn", notification)
	webserver.ApiGET("/panel", panel)
	webserver.ApiGET("/api/payments", listPayments)
}

func ping(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

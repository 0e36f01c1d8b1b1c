package webserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/vendlink/vendlink/internal/app"
	"go.uber.org/zap"
)

// ContextAppKey is where the application container is stashed on every
// request context.
const ContextAppKey = "vendlink_app"

type WebServer struct {
	appCtx *app.Application
	root   *echo.Echo
}

var server *WebServer

// Init builds the echo instance and installs the shared middleware chain.
// Route registration happens afterwards through the Api* helpers.
func Init(appCtx *app.Application) *WebServer {
	s := &WebServer{appCtx: appCtx, root: echo.New()}
	s.root.Pre(middleware.RemoveTrailingSlash())
	s.root.Use(middleware.Recover())
	s.root.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(ContextAppKey, appCtx)
			return next(c)
		}
	})
	s.root.Use(ZapLoggerMiddleware())
	s.root.HideBanner = true
	s.root.HidePort = true
	server = s
	return s
}

// ZapLoggerMiddleware logs every request through the global zap logger.
func ZapLoggerMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			req := c.Request()
			res := c.Response()
			fields := []zap.Field{
				zap.String("method", req.Method),
				zap.String("uri", req.RequestURI),
				zap.Int("status", res.Status),
				zap.Duration("latency", time.Since(start)),
				zap.String("remote", c.RealIP()),
			}
			if err != nil {
				fields = append(fields, zap.Error(err))
				zap.L().Warn("http request", fields...)
				return err
			}
			zap.L().Debug("http request", fields...)
			return nil
		}
	}
}

// Start runs the server until it fails or Shutdown is called.
func (s *WebServer) Start() error {
	cfg := s.appCtx.Config().Web
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	zap.S().Infof("web server listen %s", addr)
	err := s.root.Start(addr)
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *WebServer) Shutdown(ctx context.Context) error {
	return s.root.Shutdown(ctx)
}

// Echo exposes the underlying instance (used in tests).
func (s *WebServer) Echo() *echo.Echo {
	return s.root
}

func ApiGET(path string, h echo.HandlerFunc) {
	server.root.GET(path, h)
}

func ApiPOST(path string, h echo.HandlerFunc) {
	server.root.POST(path, h)
}

func ApiPUT(path string, h echo.HandlerFunc) {
	server.root.PUT(path, h)
}

func ApiDELETE(path string, h echo.HandlerFunc) {
	server.root.DELETE(path, h)
}

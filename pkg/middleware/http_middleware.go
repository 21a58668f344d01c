package middleware

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"wbcatalog/metrics"
	"wbcatalog/pkg/logger"
)

// PrometheusMiddleware собирает метрики по каждому запросу. В метку пишется
// шаблон маршрута (/api/products/:external_id), а не фактический путь.
func PrometheusMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			done := metrics.TrackRequest(c.Request().Method, route)

			if err := next(c); err != nil {
				// echo пишет ответ для ошибки позже, статус берём из неё
				c.Error(err)
			}
			done(c.Response().Status)
			return nil
		}
	}
}

// RequestLogger пишет одну строку на запрос.
func RequestLogger(log logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			status := c.Response().Status
			req := c.Request()
			if status >= http.StatusInternalServerError {
				log.Error("%s %s -> %d (%s)", req.Method, req.URL.RequestURI(), status, time.Since(start))
			} else {
				log.Log("%s %s -> %d (%s)", req.Method, req.URL.RequestURI(), status, time.Since(start))
			}
			return nil
		}
	}
}

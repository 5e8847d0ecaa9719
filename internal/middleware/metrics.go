package middleware

import (
	"sync"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
)

var (
	promOnce sync.Once
	prom     *fiberprometheus.FiberPrometheus
)

// Metrics returns the process-wide HTTP metrics collector. The collectors are
// registered with the default Prometheus registry exactly once, so several
// servers in one process (as in tests) can share them.
func Metrics(serviceName string) *fiberprometheus.FiberPrometheus {
	promOnce.Do(func() {
		prom = fiberprometheus.New(serviceName)
	})
	return prom
}

// MetricsMiddleware records request counts and latencies, and serves them at path.
func MetricsMiddleware(app *fiber.App, serviceName, path string) fiber.Handler {
	p := Metrics(serviceName)
	p.RegisterAt(app, path)
	return p.Middleware
}

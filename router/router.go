// router/router.go
package router

import (
	"github.com/dalemusser/whiskers/config"
	"github.com/dalemusser/whiskers/logging"
	"github.com/dalemusser/whiskers/metrics"
	"github.com/dalemusser/whiskers/middleware"
	"github.com/dalemusser/whiskers/pantry/requestid"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// New returns a chi.Router with the standard stack, outermost first:
// request ID (echoed on the response), real IP, panic recovery, body
// limit, metrics, access log, security headers, CORS and compression. 404/405 answer in JSON.
// Routes such as /healthz and /metrics are left to the app.
func New(coreCfg *config.CoreConfig, logger *zap.Logger) chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(requestid.Echo)
	r.Use(chimw.RealIP)
	r.Use(logging.Recoverer(logger))
	r.Use(middleware.LimitBodySize(coreCfg.MaxRequestBodyBytes))
	r.Use(metrics.HTTPMetrics)
	r.Use(logging.RequestLogger(logger))
	r.Use(middleware.SecurityHeadersFromConfig(coreCfg))
	r.Use(middleware.CORSFromConfig(coreCfg))
	r.Use(middleware.CompressFromConfig(coreCfg))

	r.NotFound(middleware.NotFoundHandler(logger))
	r.MethodNotAllowed(middleware.MethodNotAllowedHandler(logger))

	return r
}

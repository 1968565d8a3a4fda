// middleware/cors.go
package middleware

import (
	"net/http"

	"github.com/dalemusser/whiskers/config"
	"github.com/go-chi/cors"
)

// CORSFromConfig applies coreCfg.CORS, or is a no-op when enable_cors is false.
func CORSFromConfig(coreCfg *config.CoreConfig) func(next http.Handler) http.Handler {
	if coreCfg == nil || !coreCfg.CORS.EnableCORS {
		return passthrough
	}
	c := coreCfg.CORS
	return cors.Handler(cors.Options{
		AllowedOrigins:   c.CORSAllowedOrigins,
		AllowedMethods:   c.CORSAllowedMethods,
		AllowedHeaders:   append([]string{"HX-Request", "HX-Target", "HX-Current-URL"}, c.CORSAllowedHeaders...),
		ExposedHeaders:   append([]string{"HX-Redirect"}, c.CORSExposedHeaders...),
		AllowCredentials: c.CORSAllowCredentials,
		MaxAge:           c.CORSMaxAge,
	})
}

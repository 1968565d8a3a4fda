// middleware/compress.go
package middleware

import (
	"net/http"

	"github.com/dalemusser/whiskers/config"
	"github.com/go-chi/chi/v5/middleware"
)

// compressibleTypes are the response types this service produces.
var compressibleTypes = []string{
	"text/html",
	"text/css",
	"text/plain",
	"text/javascript",
	"application/javascript",
	"application/json",
	"image/svg+xml",
}

// CompressFromConfig returns gzip/deflate compression at
// coreCfg.CompressionLevel, or a no-op when compression is disabled.
// The level range is enforced by config validation; out-of-range values
// are clamped here.
func CompressFromConfig(coreCfg *config.CoreConfig) func(next http.Handler) http.Handler {
	if coreCfg == nil || !coreCfg.EnableCompression {
		return passthrough
	}
	return Compress(coreCfg.CompressionLevel)
}

// Compress compresses the common text response types at level (1-9).
func Compress(level int) func(next http.Handler) http.Handler {
	return middleware.Compress(min(max(level, 1), 9), compressibleTypes...)
}

// Package pprof mounts the runtime profiler.
package pprof

import (
	stdpprof "net/http/pprof"

	"github.com/go-chi/chi/v5"
)

// Mount attaches the profiler under /debug/pprof. Mount it inside a group
// that already requires an operator key.
func Mount(r chi.Router) {
	r.Route("/debug/pprof", func(r chi.Router) {
		r.Get("/", stdpprof.Index)
		r.Get("/cmdline", stdpprof.Cmdline)
		r.Get("/profile", stdpprof.Profile)
		r.Get("/symbol", stdpprof.Symbol)
		r.Post("/symbol", stdpprof.Symbol)
		r.Get("/trace", stdpprof.Trace)
		// heap, goroutine, allocs, block, ...
		r.Get("/{name}", stdpprof.Index)
	})
}

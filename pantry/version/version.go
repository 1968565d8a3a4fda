// Package version reports build information.
package version

import (
	"net/http"
	"runtime"

	"github.com/dalemusser/whiskers/httputil"
)

// Set at build time:
//
//	go build -ldflags "-X github.com/dalemusser/whiskers/pantry/version.Version=1.0.0 \
//	                   -X github.com/dalemusser/whiskers/pantry/version.Commit=abc123"
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// Info is the JSON body of GET /version.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
}

// Get returns the current build info.
func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
	}
}

// Handler serves Get() as JSON.
func Handler() http.Handler {
	info := Get()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, info)
	})
}

// String is a one-line form for logs, e.g. "1.2.3 (abc123)".
func String() string {
	if Version == "dev" {
		return "dev"
	}
	return Version + " (" + Commit + ")"
}

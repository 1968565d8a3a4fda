package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordAuthAttempt(t *testing.T) {
	before := testutil.ToFloat64(AuthAttempts.WithLabelValues("email", OutcomeRejected))
	RecordAuthAttempt("email", OutcomeRejected)
	RecordAuthAttempt("email", OutcomeRejected)
	after := testutil.ToFloat64(AuthAttempts.WithLabelValues("email", OutcomeRejected))
	if after-before != 2 {
		t.Errorf("counter delta = %v, want 2", after-before)
	}
}

func TestHTTPMetrics_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(HTTPMetrics)
	r.Get("/facts/{id}", func(w http.ResponseWriter, r *http.Request) {})

	n0 := testutil.CollectAndCount(reqDuration)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/facts/1", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/facts/2", nil))

	if n := testutil.CollectAndCount(reqDuration); n != n0+1 {
		t.Errorf("series count went from %d to %d; want one new series for the pattern", n0, n)
	}
}

func TestTruncateUTF8(t *testing.T) {
	s := strings.Repeat("é", 10) // 2 bytes each
	got := truncateUTF8(s, 5)
	if got != "éé" {
		t.Errorf("truncateUTF8 = %q, want %q", got, "éé")
	}
	if truncateUTF8("abc", 0) != "" {
		t.Error("maxBytes 0 should give empty string")
	}
}

package version

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/version", nil))

	var got Info
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Version != Version || got.GoVersion == "" {
		t.Errorf("Info = %+v", got)
	}
}

func TestString(t *testing.T) {
	old, oldCommit := Version, Commit
	t.Cleanup(func() { Version, Commit = old, oldCommit })

	Version = "dev"
	if String() != "dev" {
		t.Errorf("String() = %q", String())
	}
	Version, Commit = "1.2.3", "abc123"
	if String() != "1.2.3 (abc123)" {
		t.Errorf("String() = %q", String())
	}
}

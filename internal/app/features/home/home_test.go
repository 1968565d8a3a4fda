package home

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	_ "github.com/dalemusser/whiskers/internal/app/resources"
	"github.com/dalemusser/whiskers/internal/domain/models"
	"github.com/dalemusser/whiskers/pantry/auth/oauth2"
	"github.com/dalemusser/whiskers/templates"
)

type stubFacts struct {
	facts []models.CatFact
	err   error
}

func (s stubFacts) List(context.Context) ([]models.CatFact, error) { return s.facts, s.err }

func serve(t *testing.T, facts FactLister, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	eng := templates.New(nil)
	if err := eng.Boot(); err != nil {
		t.Fatalf("Boot: %v", err)
	}
	rec := httptest.NewRecorder()
	NewHandler(facts, eng, nil).ServeHTTP(rec, req)
	return rec
}

func TestHome(t *testing.T) {
	tests := []struct {
		name     string
		facts    stubFacts
		contains []string
		excludes []string
	}{
		{
			name:  "facts",
			facts: stubFacts{facts: []models.CatFact{{Fact: "Cats purr."}, {Fact: "Cats <3 boxes."}}},
			contains: []string{
				"Welcome",
				`data-testid="cat-list"`,
				`aria-label="Cat facts"`,
				"<li>Cats purr.</li>",
				"<li>Cats &lt;3 boxes.</li>",
			},
			excludes: []string{"unavailable"},
		},
		{
			name:     "fetch failure",
			facts:    stubFacts{err: errors.New("upstream down")},
			contains: []string{"Welcome", `data-testid="cat-list"`, "Cat facts are unavailable right now."},
			excludes: []string{"<li>", "upstream down"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, tt.facts, httptest.NewRequest(http.MethodGet, "/", nil))
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			body := rec.Body.String()
			for _, s := range tt.contains {
				if !strings.Contains(body, s) {
					t.Errorf("body missing %q", s)
				}
			}
			for _, s := range tt.excludes {
				if strings.Contains(body, s) {
					t.Errorf("body contains %q", s)
				}
			}
		})
	}
}

func TestHome_GreetsSignedInUser(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(oauth2.ContextWithUser(req.Context(), &oauth2.User{Name: "Tom"}))
	body := serve(t, stubFacts{}, req).Body.String()

	if !strings.Contains(body, "Welcome, Tom") {
		t.Errorf("greeting missing: %s", body)
	}
	if !strings.Contains(body, `action="/logout"`) {
		t.Error("logout form missing")
	}
}

func TestHome_HTMXListSwap(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("HX-Request", "true")
	req.Header.Set("HX-Target", "cat-list")
	body := serve(t, stubFacts{facts: []models.CatFact{{Fact: "Cats purr."}}}, req).Body.String()

	if strings.Contains(body, "<h1>") || !strings.Contains(body, "<li>Cats purr.</li>") {
		t.Errorf("want list snippet only, got: %s", body)
	}
}

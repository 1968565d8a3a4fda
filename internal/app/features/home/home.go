// Package home serves the landing view with the cat facts list.
package home

import (
	"context"
	"embed"
	"net/http"

	"github.com/dalemusser/whiskers/internal/domain/models"
	"github.com/dalemusser/whiskers/pantry/auth/oauth2"
	"github.com/dalemusser/whiskers/pantry/requestid"
	"github.com/dalemusser/whiskers/templates"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

//go:embed templates/*.gohtml
var templatesFS embed.FS

func init() {
	templates.Register(templates.Set{
		Name:     "home",
		FS:       templatesFS,
		Patterns: []string{"templates/*.gohtml"},
	})
}

// FactLister supplies the facts. *catfacts.Client implements it.
type FactLister interface {
	List(ctx context.Context) ([]models.CatFact, error)
}

// Handler serves GET /.
type Handler struct {
	facts  FactLister
	tpl    *templates.Engine
	logger *zap.Logger
}

// NewHandler returns a home Handler.
func NewHandler(facts FactLister, tpl *templates.Engine, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{facts: facts, tpl: tpl, logger: logger}
}

// Mount attaches GET / to r. Wrap r in RequireAuth to keep it private.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/", h.ServeHTTP)
}

type pageData struct {
	Title  string
	User   *oauth2.User
	Facts  []models.CatFact
	Notice string
}

// ServeHTTP renders the page. A failed fetch still renders, with an
// empty list and a notice.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	data := pageData{Title: "Home", User: oauth2.UserFromContext(r.Context())}

	facts, err := h.facts.List(r.Context())
	if err != nil {
		h.logger.Warn("cat facts unavailable", zap.Error(err), requestid.Field(r.Context()))
		data.Notice = "Cat facts are unavailable right now."
	}
	data.Facts = facts

	h.tpl.RenderAutoMap(w, r, "home", map[string]string{"cat-list": "cat_list"}, data)
}

package login

import (
	"html"
	"net/http"

	"github.com/dalemusser/whiskers/httputil"
	"github.com/dalemusser/whiskers/internal/domain/models"
	"github.com/dalemusser/whiskers/pantry/requestid"
	"github.com/dalemusser/whiskers/pantry/session"
	"github.com/dalemusser/whiskers/templates"
	"github.com/go-chi/chi/v5"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
)

const (
	// viewKey holds the mounted view ID in the cookie session.
	viewKey = "login_view"
	// FlashError is the flash key a federated callback uses to send a
	// failure reason back to the login view.
	FlashError = "login_error"
)

// htmx targets mapped to snippets.
var targets = map[string]string{
	"login-form":   "login_form",
	"login-status": "login_status",
}

// Sessions issues and ends authenticated sessions.
type Sessions interface {
	Issue(w http.ResponseWriter, s *models.Session)
	End(w http.ResponseWriter, r *http.Request) error
}

// Handler serves the login routes.
type Handler struct {
	views    *Views
	tpl      *templates.Engine
	sessions Sessions
	strict   *bluemonday.Policy
	logger   *zap.Logger

	// HomePath is where a successful email sign-in lands.
	HomePath string
	// SubmitLimit, when set, wraps the two sign-in actions. Input
	// events are not limited.
	SubmitLimit func(http.Handler) http.Handler
}

// NewHandler wires the login routes to views.
func NewHandler(views *Views, tpl *templates.Engine, sessions Sessions, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		views:    views,
		tpl:      tpl,
		sessions: sessions,
		strict:   bluemonday.StrictPolicy(),
		logger:   logger,
		HomePath: "/",
	}
}

// Mount attaches the login routes. r must run session.Middleware.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/login", h.show)
	r.Post("/login/input", h.input)
	r.Post("/logout", h.logout)

	actions := r
	if h.SubmitLimit != nil {
		actions = r.With(h.SubmitLimit)
	}
	actions.Post("/login/email", h.submit)
	actions.Post("/login/google", h.federated)
}

type pageData struct {
	Title string
	View  View
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, v View) {
	h.tpl.RenderAutoMap(w, r, "login", targets, pageData{Title: "Login", View: v})
}

// show mounts the view, or resets the visitor's existing one. A failure
// flashed by the federated callback is folded into the error display.
func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	// provider text may carry markup; keep it as plain text
	flashed := html.UnescapeString(h.strict.Sanitize(session.PopFlash(session.FromContext(r.Context()), FlashError)))

	var v View
	h.withView(r, func(c *Controller) {
		c.Reset()
		if flashed != "" {
			c.ReportFailure(flashed)
		}
		v = c.View()
	})
	h.render(w, r, v)
}

// withView runs fn on the visitor's mounted view, mounting one if the
// session has none or it expired.
func (h *Handler) withView(r *http.Request, fn func(c *Controller)) {
	sess := session.FromContext(r.Context())
	id := sess.GetString(viewKey)
	if h.views.With(id, fn) {
		return
	}
	id = h.views.Mount(id)
	sess.Set(viewKey, id)
	h.views.With(id, fn)
}

func (h *Handler) input(w http.ResponseWriter, r *http.Request) {
	var v View
	h.withView(r, func(c *Controller) {
		c.OnInputChanged(r.PostFormValue("email"))
		v = c.View()
	})
	h.render(w, r, v)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	var (
		v   View
		out Outcome
	)
	h.withView(r, func(c *Controller) {
		if err := r.ParseForm(); err == nil && r.PostForm.Has("email") {
			c.OnInputChanged(r.PostForm.Get("email"))
		}
		out = c.OnSubmit(r.Context())
		v = c.View()
	})

	if out.Succeeded {
		h.complete(w, r, out.Result)
		return
	}
	if out.Dispatched {
		h.logger.Info("email sign-in rejected", zap.String("reason", v.Error), requestid.Field(r.Context()))
	}
	h.render(w, r, v)
}

func (h *Handler) federated(w http.ResponseWriter, r *http.Request) {
	var (
		v   View
		out Outcome
	)
	h.withView(r, func(c *Controller) {
		out = c.OnFederatedLoginRequested(r.Context())
		v = c.View()
	})

	switch {
	case out.Succeeded && out.Result.Session != nil:
		h.complete(w, r, out.Result)
	case out.Succeeded && out.Result.RedirectURL != "":
		// the view stays mounted; the callback comes back to /login on failure
		httputil.Redirect(w, r, out.Result.RedirectURL)
	default:
		h.render(w, r, v)
	}
}

// complete unmounts the view, issues the session and navigates away.
func (h *Handler) complete(w http.ResponseWriter, r *http.Request, res Result) {
	sess := session.FromContext(r.Context())
	h.views.Unmount(sess.GetString(viewKey))
	sess.Delete(viewKey)
	if res.Session != nil {
		h.sessions.Issue(w, res.Session)
	}
	dest := res.RedirectURL
	if dest == "" {
		dest = h.HomePath
	}
	httputil.Redirect(w, r, dest)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.End(w, r); err != nil {
		h.logger.Warn("logout failed", zap.Error(err), requestid.Field(r.Context()))
	}
	sess := session.FromContext(r.Context())
	if id := sess.GetString(viewKey); id != "" {
		h.views.Unmount(id)
		sess.Delete(viewKey)
	}
	httputil.Redirect(w, r, "/login")
}

package bootstrap

import (
	"context"
	"fmt"
	"net/http"

	"github.com/dalemusser/whiskers/auth/apikey"
	"github.com/dalemusser/whiskers/config"
	"github.com/dalemusser/whiskers/internal/app/authgate"
	"github.com/dalemusser/whiskers/internal/app/features/home"
	"github.com/dalemusser/whiskers/internal/app/features/login"
	"github.com/dalemusser/whiskers/internal/app/features/testcomponent"
	_ "github.com/dalemusser/whiskers/internal/app/resources"
	"github.com/dalemusser/whiskers/internal/app/store/catfacts"
	"github.com/dalemusser/whiskers/metrics"
	"github.com/dalemusser/whiskers/pantry/auth/oauth2"
	"github.com/dalemusser/whiskers/pantry/health"
	"github.com/dalemusser/whiskers/pantry/pprof"
	"github.com/dalemusser/whiskers/pantry/ratelimit"
	"github.com/dalemusser/whiskers/pantry/session"
	"github.com/dalemusser/whiskers/pantry/timeout"
	"github.com/dalemusser/whiskers/pantry/version"
	"github.com/dalemusser/whiskers/router"
	"github.com/dalemusser/whiskers/templates"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	loginPath          = "/login"
	googleLoginPath    = "/auth/google/login"
	googleCallbackPath = "/auth/google/callback"

	// loginBurst is how many sign-in actions a client may fire back to back.
	loginBurst = 5
)

func buildRoutes(coreCfg *config.CoreConfig, appCfg AppConfig, deps *DBDeps, logger *zap.Logger) (http.Handler, error) {
	eng := templates.New(logger)
	if err := eng.Boot(); err != nil {
		return nil, fmt.Errorf("templates: %w", err)
	}

	r := router.New(coreCfg, logger)

	checks := map[string]health.Check{}
	if deps.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return deps.Redis.Ping(ctx).Err() }
	}
	r.Handle("/healthz", health.Handler(checks, 0, logger))
	r.Handle("/version", version.Handler())

	r.Group(func(r chi.Router) {
		if appCfg.AdminAPIKey != "" {
			r.Use(apikey.Require(appCfg.AdminAPIKey, "whiskers-admin", logger))
		}
		r.Handle("/metrics", metrics.Handler())
		if appCfg.EnablePprof {
			pprof.Mount(r)
		}
	})

	cookie := oauth2.Cookie{Name: appCfg.SessionName, Secure: appCfg.SessionSecure}
	sessions := authgate.NewSessions(deps.AuthStore, cookie, logger)

	gwCfg := authgate.Config{
		AllowedDomains: appCfg.AllowedEmailDomains,
		SessionTTL:     appCfg.SessionTTL,
	}
	var google *oauth2.Provider
	if appCfg.GoogleEnabled() {
		onSuccess, onError := authgate.GoogleCallbacks("/", loginPath, logger)
		p, err := oauth2.Google(oauth2.GoogleConfig{
			ClientID:        appCfg.GoogleClientID,
			ClientSecret:    appCfg.GoogleClientSecret,
			RedirectURL:     appCfg.GoogleRedirectURL,
			SessionStore:    deps.AuthStore,
			StateStore:      deps.StateStore,
			SessionDuration: appCfg.SessionTTL,
			Cookie:          cookie,
			OnSuccess:       onSuccess,
			OnError:         onError,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("google provider: %w", err)
		}
		google = p
		gwCfg.GoogleLoginPath = googleLoginPath
	}
	gateway := authgate.New(gwCfg, deps.AuthStore, deps.Notices, logger)

	views := login.NewViews(func() *login.Controller {
		return login.NewController(appCfg.EmailPolicy, gateway)
	}, appCfg.LoginViewTTL)
	deps.onClose(views.Close)

	loginHandler := login.NewHandler(views, eng, sessions, logger)
	if appCfg.LoginRatePerMinute > 0 {
		limit, limiter := ratelimit.Middleware(ratelimit.Config{
			Rate:  float64(appCfg.LoginRatePerMinute) / 60,
			Burst: loginBurst,
		}, logger)
		deps.onClose(limiter.Close)
		loginHandler.SubmitLimit = limit
	}

	facts := catfacts.New(catfacts.Config{
		BaseURL: appCfg.CatFactsBaseURL,
		Limit:   appCfg.CatFactsLimit,
		TTL:     appCfg.CatFactsTTL,
	}, deps.Cache, nil, logger)
	homeHandler := home.NewHandler(facts, eng, logger)

	// visit sessions carry the login view ID and flashes
	visits := session.NewManager(deps.VisitStore, session.Config{Secure: appCfg.SessionSecure})

	r.Group(func(r chi.Router) {
		r.Use(session.Middleware(visits, logger))
		r.Use(timeout.Middleware(timeout.Config{Timeout: appCfg.RequestTimeout}))

		if google != nil {
			r.Get(googleLoginPath, google.LoginHandler())
			r.Get(googleCallbackPath, google.CallbackHandler())
		}
		loginHandler.Mount(r)
		testcomponent.Mount(r, eng)

		r.Group(func(r chi.Router) {
			if appCfg.RequireLogin {
				r.Use(sessions.RequireAuth(loginPath))
			} else {
				r.Use(sessions.LoadUser)
			}
			homeHandler.Mount(r)
		})
	})

	logger.Info("routes ready",
		zap.Bool("google", google != nil),
		zap.Bool("require_login", appCfg.RequireLogin),
		zap.Bool("pprof", appCfg.EnablePprof))
	return r, nil
}

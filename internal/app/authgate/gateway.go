// Package authgate signs visitors in for the login view: local email
// credentials directly, Google through pantry/auth/oauth2.
package authgate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/whiskers/internal/app/features/login"
	"github.com/dalemusser/whiskers/internal/domain/models"
	"github.com/dalemusser/whiskers/metrics"
	"github.com/dalemusser/whiskers/pantry/auth/oauth2"
	"github.com/dalemusser/whiskers/pantry/email"
	"github.com/dalemusser/whiskers/pantry/requestid"
	"go.uber.org/zap"
	"golang.org/x/net/idna"
	"golang.org/x/text/cases"
)

// Provider names as recorded on sessions and in metrics.
const (
	ProviderEmail  = "email"
	ProviderGoogle = login.ProviderGoogle
)

// Reasons shown on the login view.
const (
	ReasonDomainNotAllowed = "Sign-in is not available for this email domain"
	ReasonUnknownProvider  = "That sign-in option is not available"
	ReasonGoogleDisabled   = "Google sign-in is not configured"
)

// Config configures a Gateway.
type Config struct {
	// AllowedDomains restricts email sign-in to these domains
	// (case-insensitive). Empty allows any domain.
	AllowedDomains []string

	// SessionTTL defaults to 24 hours.
	SessionTTL time.Duration

	// GoogleLoginPath is the Google provider's login route. Empty means
	// Google sign-in is not configured.
	GoogleLoginPath string

	// AppName appears in the sign-in notice. Defaults to "whiskers".
	AppName string
}

// Gateway implements login.Gateway.
type Gateway struct {
	cfg     Config
	allowed map[string]bool
	store   oauth2.SessionStore
	notices email.Mailer
	logger  *zap.Logger
}

var _ login.Gateway = (*Gateway)(nil)

// New returns a Gateway that stores sessions in store. notices may be nil;
// otherwise every email sign-in sends a notice to the address used.
func New(cfg Config, store oauth2.SessionStore, notices email.Mailer, logger *zap.Logger) *Gateway {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 24 * time.Hour
	}
	if cfg.AppName == "" {
		cfg.AppName = "whiskers"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	var allowed map[string]bool
	if len(cfg.AllowedDomains) > 0 {
		allowed = make(map[string]bool, len(cfg.AllowedDomains))
		for _, d := range cfg.AllowedDomains {
			if d = canonicalDomain(d); d != "" {
				allowed[d] = true
			}
		}
	}
	return &Gateway{cfg: cfg, allowed: allowed, store: store, notices: notices, logger: logger}
}

// SubmitEmail signs in with an email credential the login view has
// already validated.
func (g *Gateway) SubmitEmail(ctx context.Context, addr string) (login.Result, error) {
	domain := canonicalDomain(addr[strings.LastIndexByte(addr, '@')+1:])
	if g.allowed != nil && !g.allowed[domain] {
		metrics.RecordAuthAttempt(ProviderEmail, metrics.OutcomeRejected)
		g.logger.Info("email sign-in rejected", zap.String("domain", domain), requestid.Field(ctx))
		return login.Result{}, &login.GatewayError{Reason: ReasonDomainNotAllowed}
	}

	sess, err := oauth2.NewSession(oauth2.User{
		ID:       addr,
		Email:    addr,
		Provider: ProviderEmail,
	}, g.cfg.SessionTTL)
	if err != nil {
		metrics.RecordAuthAttempt(ProviderEmail, metrics.OutcomeError)
		return login.Result{}, err
	}
	if err := g.store.Save(ctx, sess); err != nil {
		metrics.RecordAuthAttempt(ProviderEmail, metrics.OutcomeError)
		g.logger.Error("failed to save session", zap.String("provider", ProviderEmail), zap.Error(err), requestid.Field(ctx))
		return login.Result{}, fmt.Errorf("save session: %w", err)
	}

	metrics.RecordAuthAttempt(ProviderEmail, metrics.OutcomeSuccess)
	g.logger.Info("email sign-in", zap.String("domain", domain), requestid.Field(ctx))
	g.sendNotice(ctx, addr)

	return login.Result{Session: toModel(sess)}, nil
}

// canonicalDomain case-folds d and converts it to its ASCII (punycode)
// form, so "Bücher.example" and "xn--bcher-kva.example" compare equal.
// Domains IDNA rejects keep their folded form.
func canonicalDomain(d string) string {
	// Casers are stateful; one per call.
	folded := cases.Fold().String(strings.TrimSpace(d))
	if ascii, err := idna.Lookup.ToASCII(folded); err == nil {
		return ascii
	}
	return folded
}

// StartFederatedFlow returns where the browser goes to begin provider's
// flow. The flow itself completes in the provider's callback handler.
func (g *Gateway) StartFederatedFlow(_ context.Context, provider string) (login.Result, error) {
	if provider != ProviderGoogle {
		metrics.RecordAuthAttempt(provider, metrics.OutcomeRejected)
		return login.Result{}, &login.GatewayError{Reason: ReasonUnknownProvider}
	}
	if g.cfg.GoogleLoginPath == "" {
		metrics.RecordAuthAttempt(provider, metrics.OutcomeRejected)
		return login.Result{}, &login.GatewayError{Reason: ReasonGoogleDisabled}
	}
	return login.Result{RedirectURL: g.cfg.GoogleLoginPath}, nil
}

func (g *Gateway) sendNotice(ctx context.Context, addr string) {
	if g.notices == nil {
		return
	}
	msg := email.Message{
		To:      []string{addr},
		Subject: "New sign-in to " + g.cfg.AppName,
		TextBody: "This address was just used to sign in to " + g.cfg.AppName +
			" at " + time.Now().UTC().Format(time.RFC1123) + ".\n\n" +
			"If this wasn't you, you can ignore this message.\n",
	}
	if err := g.notices.Send(ctx, msg); err != nil {
		g.logger.Warn("sign-in notice failed", zap.Error(err))
	}
}

func toModel(s *oauth2.Session) *models.Session {
	return &models.Session{
		ID:        s.ID,
		Email:     s.User.Email,
		Provider:  s.User.Provider,
		ExpiresAt: s.ExpiresAt,
	}
}

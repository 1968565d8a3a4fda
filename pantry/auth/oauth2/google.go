// pantry/auth/oauth2/google.go
package oauth2

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// GoogleUserInfoURL is Google's v2 userinfo endpoint.
const GoogleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// GoogleConfig holds configuration for Google OAuth2 authentication.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string

	// RedirectURL is the callback URL registered with Google.
	// Example: "https://whiskers.example.com/auth/google/callback"
	RedirectURL string

	// Scopes default to openid, email, profile.
	Scopes []string

	SessionStore    SessionStore
	StateStore      StateStore
	SessionDuration time.Duration
	Cookie          Cookie

	OnSuccess func(w http.ResponseWriter, r *http.Request, user *User)
	OnError   func(w http.ResponseWriter, r *http.Request, err error)

	// Endpoint overrides google.Endpoint (tests).
	Endpoint *oauth2.Endpoint
	// UserInfoURL overrides GoogleUserInfoURL (tests).
	UserInfoURL string
}

// Google creates a Provider configured for Google sign-in.
func Google(cfg GoogleConfig, logger *zap.Logger) (*Provider, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("oauth2/google: ClientID is required")
	}
	if cfg.ClientSecret == "" {
		return nil, errors.New("oauth2/google: ClientSecret is required")
	}
	if cfg.RedirectURL == "" {
		return nil, errors.New("oauth2/google: RedirectURL is required")
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{
			"openid",
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		}
	}

	endpoint := google.Endpoint
	if cfg.Endpoint != nil {
		endpoint = *cfg.Endpoint
	}
	infoURL := cfg.UserInfoURL
	if infoURL == "" {
		infoURL = GoogleUserInfoURL
	}

	return NewProvider(&Config{
		ProviderName: "google",
		OAuth2Config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
			Endpoint:     endpoint,
		},
		FetchUserInfo:   googleUserInfoFetcher(infoURL),
		SessionStore:    cfg.SessionStore,
		StateStore:      cfg.StateStore,
		SessionDuration: cfg.SessionDuration,
		Cookie:          cfg.Cookie,
		OnSuccess:       cfg.OnSuccess,
		OnError:         cfg.OnError,
		Logger:          logger,
	})
}

type googleUserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
	Locale        string `json:"locale"`
}

func googleUserInfoFetcher(url string) UserInfoFetcher {
	return func(ctx context.Context, token *oauth2.Token) (*User, error) {
		client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))

		resp, err := client.Get(url)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch user info: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		}

		var info googleUserInfo
		if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
			return nil, fmt.Errorf("failed to decode user info: %w", err)
		}

		return &User{
			ID:            info.ID,
			Email:         info.Email,
			EmailVerified: info.EmailVerified,
			Name:          info.Name,
			Picture:       info.Picture,
			Raw: map[string]any{
				"locale": info.Locale,
			},
		}, nil
	}
}

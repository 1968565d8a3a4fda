//go:generate mockgen -source=gateway.go -destination=gateway_mock.go -package=login
package login

import (
	"context"

	"github.com/dalemusser/whiskers/internal/domain/models"
)

// ProviderGoogle is the only federated provider the login view offers.
const ProviderGoogle = "google"

// Gateway performs the actual sign-in for the login view.
type Gateway interface {
	// SubmitEmail signs in with a local email credential.
	SubmitEmail(ctx context.Context, email string) (Result, error)
	// StartFederatedFlow begins sign-in with provider. The returned
	// RedirectURL is where the browser goes next.
	StartFederatedFlow(ctx context.Context, provider string) (Result, error)
}

// Result is a successful gateway call.
type Result struct {
	Session     *models.Session
	RedirectURL string
}

// GatewayError is a failure with a reason fit to show the visitor.
type GatewayError struct {
	Reason string
	Err    error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return e.Reason + ": " + e.Err.Error()
	}
	return e.Reason
}

func (e *GatewayError) Unwrap() error { return e.Err }

// Package login serves the login view: an email credential form with a
// validity-gated submit, plus a federated "Login with Google" action.
//
// Controller holds the state of one mounted view. It is not safe for
// concurrent use; Views serializes access per view.
package login

import (
	"context"
	"errors"

	"github.com/dalemusser/whiskers/pantry/validate"
)

// ReasonGatewayFailed is shown when the gateway fails without a reason.
const ReasonGatewayFailed = "Sign-in failed. Please try again."

// Validator checks a candidate email credential. validate.Policy
// satisfies it.
type Validator interface {
	Validate(text string) validate.Result
}

// Validity is the verdict for the current input.
type Validity int

const (
	Unevaluated Validity = iota
	Valid
	Invalid
)

func (v Validity) String() string {
	switch v {
	case Valid:
		return "valid"
	case Invalid:
		return "invalid"
	default:
		return "unevaluated"
	}
}

// State is derived from the controller's fields; it is never stored.
type State int

const (
	Pristine State = iota
	TypingInvalid
	TypingValid
	Submitting
	FederatedPending
)

func (s State) String() string {
	switch s {
	case TypingInvalid:
		return "typing_invalid"
	case TypingValid:
		return "typing_valid"
	case Submitting:
		return "submitting"
	case FederatedPending:
		return "federated_pending"
	default:
		return "pristine"
	}
}

// Outcome reports what a submit or federated action did.
type Outcome struct {
	// Dispatched is false when the action was a no-op.
	Dispatched bool
	// Succeeded implies Dispatched; Result is then set.
	Succeeded bool
	Result    Result
}

// View is what the rendering layer needs.
type View struct {
	RawText       string
	SubmitEnabled bool
	ShowError     bool
	Error         string
	State         State
}

// Controller is the login form state machine.
type Controller struct {
	validator Validator
	gateway   Gateway

	rawText  string
	validity Validity
	reason   string

	// touched: typed a non-empty value, or a gateway failure came back.
	touched bool
	// submitAttempted is sticky until Reset.
	submitAttempted   bool
	submitInFlight    bool
	federatedInFlight bool
}

// NewController returns a Pristine controller.
func NewController(v Validator, g Gateway) *Controller {
	return &Controller{validator: v, gateway: g}
}

// OnInputChanged replaces the input and re-validates it.
func (c *Controller) OnInputChanged(text string) {
	c.rawText = text
	r := c.validator.Validate(text)
	if r.Valid {
		c.validity, c.reason = Valid, ""
	} else {
		c.validity, c.reason = Invalid, r.Reason
	}
	if text != "" {
		c.touched = true
	}
}

// OnSubmit sends the current input to the gateway. It is a no-op unless
// the input is Valid and no flow is in flight.
func (c *Controller) OnSubmit(ctx context.Context) Outcome {
	if c.validity != Valid || c.submitInFlight || c.federatedInFlight {
		return Outcome{}
	}
	c.submitAttempted = true
	c.submitInFlight = true

	res, err := c.gateway.SubmitEmail(ctx, c.rawText)
	if err != nil {
		c.submitInFlight = false
		c.fail(reasonFor(err))
		return Outcome{Dispatched: true}
	}
	return Outcome{Dispatched: true, Succeeded: true, Result: res}
}

// OnFederatedLoginRequested starts the Google flow. It ignores the email
// input and is a no-op only while a federated flow is already in flight.
func (c *Controller) OnFederatedLoginRequested(ctx context.Context) Outcome {
	if c.federatedInFlight {
		return Outcome{}
	}
	c.federatedInFlight = true

	res, err := c.gateway.StartFederatedFlow(ctx, ProviderGoogle)
	if err != nil {
		c.federatedInFlight = false
		c.fail(reasonFor(err))
		return Outcome{Dispatched: true}
	}
	return Outcome{Dispatched: true, Succeeded: true, Result: res}
}

// ReportFailure shows reason for a flow that failed outside this
// controller, such as a federated callback error. Any federated latch is
// released since control is back with the view.
func (c *Controller) ReportFailure(reason string) {
	if reason == "" {
		reason = ReasonGatewayFailed
	}
	c.federatedInFlight = false
	c.fail(reason)
}

// Reset returns the controller to Pristine.
func (c *Controller) Reset() {
	*c = Controller{validator: c.validator, gateway: c.gateway}
}

func (c *Controller) fail(reason string) {
	c.validity = Invalid
	c.reason = reason
	c.touched = true
}

// Validity returns the current verdict.
func (c *Controller) Validity() Validity { return c.validity }

// SubmitEnabled reports whether the input is Valid.
func (c *Controller) SubmitEnabled() bool { return c.validity == Valid }

// State derives the current state.
func (c *Controller) State() State {
	switch {
	case c.federatedInFlight:
		return FederatedPending
	case c.submitInFlight:
		return Submitting
	case c.validity == Valid:
		return TypingValid
	case c.errorVisible():
		return TypingInvalid
	default:
		return Pristine
	}
}

func (c *Controller) errorVisible() bool {
	return c.validity == Invalid && (c.touched || c.submitAttempted)
}

// View returns the render model.
func (c *Controller) View() View {
	v := View{
		RawText:       c.rawText,
		SubmitEnabled: c.SubmitEnabled(),
		State:         c.State(),
	}
	if c.errorVisible() {
		v.ShowError = true
		v.Error = c.reason
	}
	return v
}

func reasonFor(err error) string {
	var ge *GatewayError
	if errors.As(err, &ge) && ge.Reason != "" {
		return ge.Reason
	}
	return ReasonGatewayFailed
}

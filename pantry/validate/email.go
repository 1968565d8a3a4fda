// pantry/validate/email.go
package validate

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/idna"
)

// ReasonInvalidEmail is the reason carried by every rejected address.
// UI layers render it verbatim, so treat the wording as part of the contract.
const ReasonInvalidEmail = "Invalid email address"

// DefaultMaxLength is the RFC 5321 limit on a forward path, for callers
// that opt into Policy.MaxLength.
const DefaultMaxLength = 254

// Result is the verdict for a candidate email address.
type Result struct {
	Valid  bool
	Reason string // empty when Valid
}

// Policy controls the email grammar accepted by Validate.
//
// The base shape is fixed: no whitespace anywhere, exactly one '@', a
// non-empty local part, and a domain of at least two non-empty
// dot-separated labels. The fields below only tighten that shape.
type Policy struct {
	// MaxLength rejects addresses longer than this many bytes. 0 disables the check.
	MaxLength int

	// StrictLocalDots rejects local parts that start or end with '.' or
	// contain "..".
	StrictLocalDots bool

	// ASCIIOnly rejects any non-ASCII rune in the address.
	ASCIIOnly bool

	// IDNA requires non-ASCII domains to convert cleanly to their ASCII
	// (punycode) form. Ignored when ASCIIOnly is set.
	IDNA bool
}

// DefaultPolicy returns the policy used by Email: the base shape only.
func DefaultPolicy() Policy {
	return Policy{}
}

// Email validates s with DefaultPolicy.
func Email(s string) Result {
	return DefaultPolicy().Validate(s)
}

// Validate reports whether s is a well-formed email address under p.
// It is total over strings and safe to call on every keystroke.
func (p Policy) Validate(s string) Result {
	if !p.valid(s) {
		return Result{Reason: ReasonInvalidEmail}
	}
	return Result{Valid: true}
}

func (p Policy) valid(s string) bool {
	if s == "" || !utf8.ValidString(s) {
		return false
	}
	if p.MaxLength > 0 && len(s) > p.MaxLength {
		return false
	}
	if strings.IndexFunc(s, unicode.IsSpace) >= 0 {
		return false
	}
	if p.ASCIIOnly && strings.IndexFunc(s, func(r rune) bool { return r > unicode.MaxASCII }) >= 0 {
		return false
	}

	local, domain, ok := strings.Cut(s, "@")
	if !ok || local == "" || strings.Contains(domain, "@") {
		return false
	}
	if p.StrictLocalDots && (strings.HasPrefix(local, ".") || strings.HasSuffix(local, ".") || strings.Contains(local, "..")) {
		return false
	}

	labels := strings.Split(domain, ".")
	if len(labels) < 2 {
		return false
	}
	for _, l := range labels {
		if l == "" {
			return false
		}
	}

	if p.IDNA && !p.ASCIIOnly && !isASCII(domain) {
		if _, err := idna.Lookup.ToASCII(domain); err != nil {
			return false
		}
	}
	return true
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > unicode.MaxASCII {
			return false
		}
	}
	return true
}

// SimpleEmailValid is a light, readable server-side guardrail kept for
// config checks. It trims input first, unlike Validate.
func SimpleEmailValid(s string) bool {
	return Email(strings.TrimSpace(s)).Valid
}

package identity

import (
	"fmt"
	"strings"
)

// Kind is the normalized auth failure taxonomy surfaced to the UI layer.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidCredentials
	KindDuplicateEmail
	KindWeakPassword
	KindInvalidEmail
)

func (k Kind) String() string {
	switch k {
	case KindInvalidCredentials:
		return "invalid_credentials"
	case KindDuplicateEmail:
		return "duplicate_email"
	case KindWeakPassword:
		return "weak_password"
	case KindInvalidEmail:
		return "invalid_email"
	default:
		return "unknown"
	}
}

// AuthError is the single error type the gateway raises. Handlers render a
// human-readable message per Kind.
type AuthError struct {
	Kind    Kind
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth failure (%s): %s", e.Kind, e.Message)
}

// classify maps a provider error response onto the Kind taxonomy. The
// provider exposes a stable error code on newer deployments and only a
// human-readable message on older ones, so both are matched here. All
// string matching lives in this one function; unit tests pin the literal
// provider strings so a provider-side wording change is a localized fix.
func classify(code, message string) Kind {
	switch code {
	case "invalid_credentials", "invalid_grant":
		return KindInvalidCredentials
	case "user_already_exists", "email_exists":
		return KindDuplicateEmail
	case "weak_password":
		return KindWeakPassword
	case "validation_failed":
		return KindInvalidEmail
	}
	m := strings.ToLower(message)
	switch {
	case strings.Contains(m, "invalid login credentials"):
		return KindInvalidCredentials
	case strings.Contains(m, "already registered"), strings.Contains(m, "already exists"):
		return KindDuplicateEmail
	case strings.Contains(m, "password should be at least"), strings.Contains(m, "password is too weak"):
		return KindWeakPassword
	case strings.Contains(m, "unable to validate email"), strings.Contains(m, "invalid email"):
		return KindInvalidEmail
	}
	return KindUnknown
}

package broker

import (
	"errors"

	"github.com/dmitrymomot/authbroker/pkg/oauth"
	"github.com/dmitrymomot/authbroker/pkg/state"
	"github.com/dmitrymomot/authbroker/pkg/token"
)

var (
	ErrProviderDenied   = errors.New("broker: provider denied the request")
	ErrMissingCode      = errors.New("broker: callback has no authorization code")
	ErrInvalidState     = errors.New("broker: invalid state")
	ErrProviderMismatch = errors.New("broker: state was issued for another provider")
	ErrUnknownUser      = errors.New("broker: user resolution failed")
	ErrUnknownSubject   = errors.New("broker: identity has no subject")

	// Re-exported so callers of the broker need not import lower packages.
	ErrUnknownProvider = oauth.ErrUnknownProvider
	ErrInvalidToken    = token.ErrInvalidToken
)

// Reason categories reported to end users.
const (
	ReasonState           = "state"
	ReasonProvider        = "provider"
	ReasonDenied          = "denied"
	ReasonToken           = "token"
	ReasonUser            = "user"
	ReasonUnknownProvider = "unknown_provider"
	ReasonInternal        = "internal"
)

// Reason maps an error returned by the Broker to a coarse category that is
// safe to show to the end user. State and token failures never reveal
// which check failed.
func Reason(err error) string {
	var perr *oauth.ProviderError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnknownProvider):
		return ReasonUnknownProvider
	case errors.Is(err, ErrProviderDenied):
		return ReasonDenied
	case errors.Is(err, ErrInvalidState), errors.Is(err, ErrProviderMismatch),
		errors.Is(err, state.ErrRedirectNotAllowed):
		return ReasonState
	case errors.Is(err, ErrInvalidToken):
		return ReasonToken
	case errors.Is(err, ErrUnknownUser):
		return ReasonUser
	case errors.As(err, &perr), errors.Is(err, ErrMissingCode), isProviderFailure(err):
		return ReasonProvider
	}
	return ReasonInternal
}

func isProviderFailure(err error) bool {
	for _, target := range []error{
		oauth.ErrRequestFailed,
		oauth.ErrDecodeFailed,
		oauth.ErrMissingAccessToken,
		oauth.ErrMissingSubject,
		oauth.ErrInvalidSignature,
		ErrUnknownSubject,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

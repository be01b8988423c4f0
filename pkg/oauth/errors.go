package oauth

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownProvider is returned when a provider id is not configured.
	ErrUnknownProvider = errors.New("oauth: unknown provider")

	// ErrDuplicateProvider is returned when two configs share an id.
	ErrDuplicateProvider = errors.New("oauth: duplicate provider id")

	// ErrInvalidConfig is returned when a provider config fails validation.
	ErrInvalidConfig = errors.New("oauth: invalid provider config")

	// ErrMissingClientID is returned when the OAuth client ID is not provided.
	ErrMissingClientID = errors.New("oauth: missing client ID")

	// ErrMissingClientSecret is returned when the OAuth client secret is not provided.
	ErrMissingClientSecret = errors.New("oauth: missing client secret")

	// ErrMissingPrivateKey is returned when a signed-gateway provider has no private key.
	ErrMissingPrivateKey = errors.New("oauth: missing private key")

	// ErrUnsupportedDialect is returned for a dialect with no adapter.
	ErrUnsupportedDialect = errors.New("oauth: unsupported dialect")

	// ErrUnsupportedAlgorithm is returned for an unknown signing algorithm.
	ErrUnsupportedAlgorithm = errors.New("oauth: unsupported signing algorithm")

	// ErrInvalidKey is returned when key material cannot be parsed.
	ErrInvalidKey = errors.New("oauth: invalid key material")

	// ErrInvalidSignature is returned when a provider response signature does not verify.
	ErrInvalidSignature = errors.New("oauth: invalid response signature")

	// ErrRequestFailed is returned when a request to the provider cannot be completed.
	ErrRequestFailed = errors.New("oauth: request to provider failed")

	// ErrDecodeFailed is returned when decoding the provider response fails.
	ErrDecodeFailed = errors.New("oauth: failed to decode response")

	// ErrMissingAccessToken is returned when a token response has no access token.
	ErrMissingAccessToken = errors.New("oauth: provider returned no access token")

	// ErrMissingSubject is returned when a user-info payload has no subject id.
	ErrMissingSubject = errors.New("oauth: user info has no subject id")
)

// ProviderError is a failure reported by the identity provider itself.
// Code and Message are the provider's own values, passed through verbatim.
type ProviderError struct {
	Provider string
	Code     string
	Message  string
	// Status is the HTTP status of the failed response, when known.
	Status int
}

func (e *ProviderError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("oauth: provider %s returned error %s", e.Provider, e.Code)
	}
	return fmt.Sprintf("oauth: provider %s returned error %s: %s", e.Provider, e.Code, e.Message)
}

package token

import "errors"

var (
	// ErrInvalidToken is the only verification failure callers see.
	// Signature, expiry, type, blacklist and ledger failures all map to it.
	ErrInvalidToken = errors.New("token: invalid token")

	// ErrNoSigningKey is returned by NewManager without a signing key.
	ErrNoSigningKey = errors.New("token: no signing key configured")

	// ErrInvalidKey is returned when key material cannot be used.
	ErrInvalidKey = errors.New("token: invalid key")

	// ErrUnsupportedAlgorithm is returned for an unknown signing algorithm.
	ErrUnsupportedAlgorithm = errors.New("token: unsupported signing algorithm")

	// ErrStorage wraps ledger and blacklist backend failures.
	ErrStorage = errors.New("token: storage failure")
)

// Ledger outcomes. Backends return these; Manager maps them to ErrInvalidToken.
var (
	ErrRecordNotFound = errors.New("token: refresh record not found")
	ErrRecordRevoked  = errors.New("token: refresh record revoked")
	ErrRecordExists   = errors.New("token: refresh record already exists")
)

package config

import "errors"

var (
	ErrParseEnv        = errors.New("config: failed to parse environment")
	ErrInvalidDriver   = errors.New("config: invalid driver")
	ErrReadProviders   = errors.New("config: failed to read providers file")
	ErrMissingVariable = errors.New("config: undefined variable in providers file")
	ErrNoProviders     = errors.New("config: no providers configured")
)

package token

import (
	"errors"
	"time"
)

// Config holds token settings loaded from the environment.
type Config struct {
	AccessTTLSeconds  int64  `env:"TOKEN_ACCESS_TTL_SECONDS" envDefault:"3600"`
	RefreshTTLSeconds int64  `env:"TOKEN_REFRESH_TTL_SECONDS" envDefault:"604800"`
	RotationEnabled   bool   `env:"TOKEN_ROTATION_ENABLED" envDefault:"true"`
	ReuseDetection    bool   `env:"TOKEN_REUSE_DETECTION" envDefault:"true"`
	SigningAlgorithm  string `env:"TOKEN_SIGNING_ALGORITHM" envDefault:"HS256"`
	SigningKey        string `env:"TOKEN_SIGNING_KEY"`
	SigningKeyFile    string `env:"TOKEN_SIGNING_KEY_FILE,file"`
	KeyID             string `env:"TOKEN_KEY_ID" envDefault:"primary"`
	PreviousAlgorithm string `env:"TOKEN_PREVIOUS_ALGORITHM"`
	PreviousKey       string `env:"TOKEN_PREVIOUS_KEY"`
	PreviousKeyID     string `env:"TOKEN_PREVIOUS_KEY_ID" envDefault:"previous"`
	Issuer            string `env:"TOKEN_ISSUER"`
	Audience          string `env:"TOKEN_AUDIENCE"`
}

// Options converts the config into Manager options. The signing key comes
// from SigningKey, or from the file named by TOKEN_SIGNING_KEY_FILE.
func (c Config) Options() ([]Option, error) {
	material := c.SigningKey
	if material == "" {
		material = c.SigningKeyFile
	}
	if material == "" {
		return nil, ErrNoSigningKey
	}

	active, err := ParseKey(c.SigningAlgorithm, c.KeyID, material)
	if err != nil {
		return nil, err
	}

	opts := []Option{
		WithSigningKey(active),
		WithAccessTTL(time.Duration(c.AccessTTLSeconds) * time.Second),
		WithRefreshTTL(time.Duration(c.RefreshTTLSeconds) * time.Second),
		WithRotation(c.RotationEnabled),
		WithReuseDetection(c.ReuseDetection),
		WithIssuer(c.Issuer),
		WithAudience(c.Audience),
	}

	if c.PreviousKey != "" {
		alg := c.PreviousAlgorithm
		if alg == "" {
			alg = c.SigningAlgorithm
		}
		prev, err := ParseKey(alg, c.PreviousKeyID, c.PreviousKey)
		if err != nil {
			return nil, errors.Join(errors.New("token: previous key"), err)
		}
		opts = append(opts, WithVerificationKeys(prev))
	}

	return opts, nil
}

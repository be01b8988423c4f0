package oauth

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Field name fallbacks, in priority order, for the identity attributes
// providers spell differently.
var (
	subjectKeys = []string{"openid", "sub", "user_id", "open_id", "id"}
	unionKeys   = []string{"unionid", "union_id"}
	nameKeys    = []string{"nickname", "nick_name", "name", "login"}
	avatarKeys  = []string{"headimgurl", "avatar_url", "avatar", "picture"}
	emailKeys   = []string{"email"}

	// verifiedKeys flag whether the provider verified the email address.
	verifiedKeys = []string{"email_verified", "verified_email"}
)

// fields is a decoded JSON object with lenient typed accessors.
type fields map[string]any

func decodeFields(data []byte) (fields, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var f fields
	if err := dec.Decode(&f); err != nil {
		return nil, errors.Join(ErrDecodeFailed, err)
	}
	if f == nil {
		return nil, errors.Join(ErrDecodeFailed, errors.New("response is not a JSON object"))
	}
	return f, nil
}

// str returns the first non-empty value among keys rendered as a string.
func (f fields) str(keys ...string) string {
	for _, k := range keys {
		switch v := f[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case json.Number:
			return v.String()
		}
	}
	return ""
}

// num returns the first numeric value among keys. Numeric strings count.
func (f fields) num(keys ...string) int64 {
	for _, k := range keys {
		switch v := f[k].(type) {
		case json.Number:
			if n, err := v.Int64(); err == nil {
				return n
			}
			if fl, err := v.Float64(); err == nil {
				return int64(fl)
			}
		case string:
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				return n
			}
		}
	}
	return 0
}

// flag returns the first boolean among keys and whether one was present.
// "true" and "false" strings count; some OIDC providers send them quoted.
func (f fields) flag(keys ...string) (value, ok bool) {
	for _, k := range keys {
		switch v := f[k].(type) {
		case bool:
			return v, true
		case string:
			if b, err := strconv.ParseBool(v); err == nil {
				return b, true
			}
		}
	}
	return false, false
}

func (f fields) obj(key string) fields {
	if m, ok := f[key].(map[string]any); ok {
		return fields(m)
	}
	return nil
}

// Normalize maps a provider user-info JSON object onto Identity.
// Optional attributes that are absent come back empty; only a missing
// subject id is an error. An email the provider explicitly reports as
// unverified is dropped.
func Normalize(provider string, payload []byte) (*Identity, error) {
	f, err := decodeFields(payload)
	if err != nil {
		return nil, err
	}
	return f.identity(provider)
}

func (f fields) identity(provider string) (*Identity, error) {
	id := &Identity{
		Provider:  provider,
		Subject:   f.str(subjectKeys...),
		UnionID:   f.str(unionKeys...),
		Name:      norm.NFC.String(strings.TrimSpace(f.str(nameKeys...))),
		AvatarURL: f.str(avatarKeys...),
		Email:     f.str(emailKeys...),
	}
	if id.Subject == "" {
		return nil, ErrMissingSubject
	}
	if verified, ok := f.flag(verifiedKeys...); ok {
		id.EmailVerified = verified && id.Email != ""
		if !verified {
			id.Email = ""
		}
	}
	return id, nil
}

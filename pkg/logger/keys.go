package logger

import "log/slog"

// Attribute keys shared across packages so log queries stay stable.
const (
	KeyError     = "error"
	KeyRequestID = "request_id"
	KeyProvider  = "provider"
	KeySubject   = "subject"
	KeyUserID    = "user_id"
	KeyTokenID   = "jti"
	KeyPhase     = "phase"
	KeyReason    = "reason"
	KeyDuration  = "duration"
)

// Error returns the error attribute. A nil error yields an empty value.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}

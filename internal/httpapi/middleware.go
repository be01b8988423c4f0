package httpapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/dmitrymomot/authbroker/pkg/logger"
	"github.com/dmitrymomot/authbroker/pkg/token"
)

// RequestIDHeaders are checked in order for an upstream request id.
var RequestIDHeaders = []string{"X-Request-ID", "X-Correlation-ID"}

const (
	requestIDHeader = "X-Request-ID"
	maxRequestIDLen = 128
	stackSize       = 4096
)

type (
	requestIDKey struct{}
	claimsKey    struct{}
)

// RequestIDFromContext returns the request id set by the RequestID
// middleware.
func RequestIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey{}).(string)
	return v
}

// RequestIDExtractor adds request_id to records logged with a request
// context.
func RequestIDExtractor(ctx context.Context) (slog.Attr, bool) {
	if v := RequestIDFromContext(ctx); v != "" {
		return slog.String(logger.KeyRequestID, v), true
	}
	return slog.Attr{}, false
}

// ClaimsFromContext returns the access claims stored by requireAccess.
func ClaimsFromContext(ctx context.Context) *token.Claims {
	c, _ := ctx.Value(claimsKey{}).(*token.Claims)
	return c
}

// requestID keeps an upstream request id, or generates one, and echoes it
// in the response.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var id string
		for _, h := range RequestIDHeaders {
			if v := r.Header.Get(h); v != "" && len(v) <= maxRequestIDLen {
				id = v
				break
			}
		}
		if id == "" {
			id = uuid.NewString()
		}

		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

// recoverer turns a panic into a 500 and logs it with a trimmed stack.
func recoverer(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				stack := make([]byte, stackSize)
				stack = stack[:runtime.Stack(stack, false)]
				log.ErrorContext(r.Context(), "panic recovered",
					slog.String("panic", fmt.Sprint(rec)),
					slog.String("stack", string(stack)),
				)
				writeError(w, http.StatusInternalServerError, "internal")
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// requestLogger logs one line per request.
func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			level := slog.LevelInfo
			if status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			log.LogAttrs(r.Context(), level, "http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", status),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Duration(logger.KeyDuration, time.Since(start)),
			)
		})
	}
}

// bearerToken reads a Bearer token from the Authorization header.
func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	if len(auth) < 7 || !strings.EqualFold(auth[:7], "bearer ") {
		return "", false
	}
	tok := strings.TrimSpace(auth[7:])
	return tok, tok != ""
}

// requireAccess rejects requests without a valid access token and stores
// the claims in the request context.
func (h *handlers) requireAccess(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "token")
			return
		}
		claims, err := h.broker.Authenticate(r.Context(), tok)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "token")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
	})
}

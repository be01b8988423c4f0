package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/authbroker/pkg/broker"
	"github.com/dmitrymomot/authbroker/pkg/logger"
	"github.com/dmitrymomot/authbroker/pkg/oauth"
	"github.com/dmitrymomot/authbroker/pkg/token"
)

// Broker is the login and session API served over HTTP. *broker.Broker
// implements it.
type Broker interface {
	BeginLogin(ctx context.Context, providerID, redirectHint string) (string, error)
	HandleCallback(ctx context.Context, params broker.CallbackParams) (*broker.LoginResult, error)
	Refresh(ctx context.Context, refresh string) (*token.Pair, error)
	Logout(ctx context.Context, access, refresh string)
	Authenticate(ctx context.Context, access string) (*token.Claims, error)
}

const maxBodyBytes = 64 << 10

type handlers struct {
	broker Broker
	log    *slog.Logger
}

type loginResponse struct {
	UserID       string `json:"user_id"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	Redirect     string `json:"redirect,omitempty"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	target, err := h.broker.BeginLogin(r.Context(), chi.URLParam(r, "provider"), r.URL.Query().Get("redirect"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// callback accepts the provider redirect as a query string or a form post.
// Alipay sends the code as auth_code.
func (h *handlers) callback(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, broker.ReasonProvider)
		return
	}

	code := r.Form.Get("code")
	if code == "" {
		code = r.Form.Get("auth_code")
	}

	res, err := h.broker.HandleCallback(r.Context(), broker.CallbackParams{
		Provider:         chi.URLParam(r, "provider"),
		Code:             code,
		State:            r.Form.Get("state"),
		Error:            r.Form.Get("error"),
		ErrorDescription: r.Form.Get("error_description"),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		UserID:       res.UserID,
		AccessToken:  res.Tokens.AccessToken,
		RefreshToken: res.Tokens.RefreshToken,
		TokenType:    res.Tokens.TokenType,
		ExpiresIn:    res.Tokens.ExpiresIn,
		Redirect:     res.Redirect,
	})
}

func (h *handlers) refresh(w http.ResponseWriter, r *http.Request) {
	refresh := readRefreshToken(w, r)
	if refresh == "" {
		writeError(w, http.StatusUnauthorized, broker.ReasonToken)
		return
	}

	pair, err := h.broker.Refresh(r.Context(), refresh)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

// logout always answers 204; there is nothing useful to tell the client.
func (h *handlers) logout(w http.ResponseWriter, r *http.Request) {
	access, _ := bearerToken(r)
	h.broker.Logout(r.Context(), access, readRefreshToken(w, r))
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ClaimsFromContext(r.Context()))
}

// fail maps a broker error to a status and a safe reason.
func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	reason := broker.Reason(err)
	body := errorBody{Error: reason}

	var perr *oauth.ProviderError
	if errors.As(err, &perr) {
		body.Code, body.Message = perr.Code, perr.Message
	}

	status := http.StatusBadRequest
	switch reason {
	case broker.ReasonUnknownProvider:
		status = http.StatusNotFound
	case broker.ReasonToken:
		status = http.StatusUnauthorized
	case broker.ReasonInternal:
		status = http.StatusInternalServerError
		h.log.ErrorContext(r.Context(), "request failed", logger.Error(err))
	}
	writeJSON(w, status, body)
}

// readRefreshToken accepts a JSON body or a form field.
func readRefreshToken(w http.ResponseWriter, r *http.Request) string {
	if r.Body == nil || r.Body == http.NoBody {
		return ""
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var req refreshRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			return ""
		}
		return req.RefreshToken
	}
	if err := r.ParseForm(); err != nil {
		return ""
	}
	return r.PostForm.Get("refresh_token")
}

// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jeremyhahn/go-passkey/pkg/correlation"
	"github.com/jeremyhahn/go-passkey/pkg/encoding"
	"github.com/jeremyhahn/go-passkey/pkg/logging"
	"github.com/jeremyhahn/go-passkey/pkg/ratelimit"
	"github.com/jeremyhahn/go-passkey/pkg/types"
)

// Error codes returned in the error response body.
const (
	ErrorCodeInvalidRequest = "invalid_request"
	ErrorCodeUserNotFound   = "user_not_found"
	ErrorCodeNoCeremony     = "no_pending_ceremony"
	ErrorCodeNoCredentials  = "no_credentials"
	ErrorCodeVerification   = "verification_failed"
	ErrorCodeUnauthorized   = "unauthorized"
	ErrorCodeForbidden      = "forbidden"
	ErrorCodeInternalError  = "internal_error"
)

// identifierParam is the URL parameter carrying the encoded user identifier.
const identifierParam = "identifier"

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Handler provides the HTTP surface over the ceremony service.
type Handler struct {
	service *Service
	tokens  *TokenIssuer
	hub     *Hub
	logger  *logging.Logger
}

// HandlerParams contains dependencies for creating a handler.
type HandlerParams struct {
	// Service is the ceremony service (required).
	Service *Service

	// Tokens verifies bearer tokens on authenticated endpoints (required).
	Tokens *TokenIssuer

	// Hub serves the realtime change stream. Optional.
	Hub *Hub

	// Limiter rate-limits ceremony endpoints. Optional.
	Limiter *ratelimit.Limiter

	// Logger receives handler logs. Optional.
	Logger *logging.Logger
}

// NewRouter builds the backend's chi router with all routes and middleware.
func NewRouter(params *HandlerParams) (chi.Router, error) {
	if params == nil || params.Service == nil {
		return nil, errors.New("service is required")
	}
	if params.Tokens == nil {
		return nil, errors.New("token issuer is required")
	}

	logger := params.Logger
	if logger == nil {
		logger = logging.DefaultLogger()
	}

	h := &Handler{
		service: params.Service,
		tokens:  params.Tokens,
		hub:     params.Hub,
		logger:  logger,
	}

	r := chi.NewRouter()
	r.Use(correlation.Middleware)
	if params.Limiter != nil {
		r.Use(ratelimit.Middleware(params.Limiter))
	}

	r.Post("/webauthn-begin-registration/{"+identifierParam+"}", h.BeginRegistration)
	r.Post("/webauthn-finish-registration/{"+identifierParam+"}", h.FinishRegistration)
	r.Post("/webauthn-begin-login/{"+identifierParam+"}", h.BeginLogin)
	r.Post("/webauthn-finish-login/{"+identifierParam+"}", h.FinishLogin)
	r.Get("/users/{"+identifierParam+"}", h.GetUser)
	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	if params.Hub != nil {
		r.Get("/realtime", h.Realtime)
	}

	return r, nil
}

// BeginRegistration handles POST /webauthn-begin-registration/{identifier}.
// Response: WebAuthn PublicKeyCredentialCreationOptions.
func (h *Handler) BeginRegistration(w http.ResponseWriter, r *http.Request) {
	identifier, ok := h.identifier(w, r)
	if !ok {
		return
	}

	options, err := h.service.BeginRegistration(r.Context(), identifier)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, options)
}

// FinishRegistration handles POST /webauthn-finish-registration/{identifier}.
// Request body: attestation response from the authenticator.
func (h *Handler) FinishRegistration(w http.ResponseWriter, r *http.Request) {
	identifier, ok := h.identifier(w, r)
	if !ok {
		return
	}

	if err := h.service.FinishRegistration(r.Context(), identifier, r.Body); err != nil {
		h.handleServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, types.RegistrationAck{Status: "ok"})
}

// BeginLogin handles POST /webauthn-begin-login/{identifier}.
// Response: WebAuthn PublicKeyCredentialRequestOptions.
func (h *Handler) BeginLogin(w http.ResponseWriter, r *http.Request) {
	identifier, ok := h.identifier(w, r)
	if !ok {
		return
	}

	options, err := h.service.BeginLogin(r.Context(), identifier)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, options)
}

// FinishLogin handles POST /webauthn-finish-login/{identifier}.
// Request body: assertion response from the authenticator.
// Response: session outcome with token and user profile.
func (h *Handler) FinishLogin(w http.ResponseWriter, r *http.Request) {
	identifier, ok := h.identifier(w, r)
	if !ok {
		return
	}

	outcome, err := h.service.FinishLogin(r.Context(), identifier, r.Body)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, outcome)
}

// GetUser handles GET /users/{identifier}. Requires a bearer token.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authorized(w, r); !ok {
		return
	}

	identifier, ok := h.identifier(w, r)
	if !ok {
		return
	}

	profile, err := h.service.Profile(r.Context(), identifier)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, profile)
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Realtime handles GET /realtime. The stream requires a bearer token and is
// scoped to one user record topic; the topic must be the token's subject.
// Without an explicit topic the stream is scoped to the subject itself.
func (h *Handler) Realtime(w http.ResponseWriter, r *http.Request) {
	subject, ok := h.authorized(w, r)
	if !ok {
		return
	}

	topic := r.URL.Query().Get("topic")
	if topic == "" {
		topic = subject
	}
	if topic != subject {
		h.writeError(w, http.StatusForbidden, ErrorCodeForbidden, "topic is not the token subject")
		return
	}

	h.hub.Stream(w, r, topic)
}

// identifier decodes the encoded identifier path segment.
func (h *Handler) identifier(w http.ResponseWriter, r *http.Request) (string, bool) {
	identifier, err := encoding.DecodeIdentifier(chi.URLParam(r, identifierParam))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "invalid identifier encoding")
		return "", false
	}
	return identifier, true
}

// authorized verifies the request's bearer token and returns its subject.
func (h *Handler) authorized(w http.ResponseWriter, r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(auth, "Bearer ")
	if !found || token == "" {
		h.writeError(w, http.StatusUnauthorized, ErrorCodeUnauthorized, "bearer token required")
		return "", false
	}
	subject, err := h.tokens.Verify(token)
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, ErrorCodeUnauthorized, "invalid token")
		return "", false
	}
	return subject, true
}

// handleServiceError maps service errors to HTTP responses.
func (h *Handler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrUserNotFound):
		h.writeError(w, http.StatusNotFound, ErrorCodeUserNotFound, "user not found")
	case errors.Is(err, ErrNoPendingCeremony):
		h.writeError(w, http.StatusBadRequest, ErrorCodeNoCeremony, "no pending ceremony for user")
	case errors.Is(err, ErrNoCredentials):
		h.writeError(w, http.StatusBadRequest, ErrorCodeNoCredentials, "user has no registered credentials")
	case errors.Is(err, ErrInvalidResponse):
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "invalid authenticator response")
	case errors.Is(err, ErrVerificationFailed):
		h.writeError(w, http.StatusUnauthorized, ErrorCodeVerification, "verification failed")
	default:
		h.logger.Errorf("internal error: %v", err)
		h.writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal server error")
	}
}

// writeJSON writes a JSON response.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Response headers already written, can only log the error
		h.logger.Errorf("failed to encode JSON response: %v", err)
	}
}

// writeError writes an error response.
func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	h.writeJSON(w, status, ErrorResponse{
		Error:   code,
		Message: message,
	})
}

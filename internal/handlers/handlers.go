package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/gatehouse-io/gatehouse/internal/domain"
	"github.com/gatehouse-io/gatehouse/internal/service"
	"github.com/gatehouse-io/gatehouse/pkg/auth"
	"github.com/gatehouse-io/gatehouse/pkg/config"
)

type contextKey string

const claimsKey contextKey = "claims"

type Handlers struct {
	signupService *service.SignupService
	config        *config.Config
}

func New(signupService *service.SignupService, config *config.Config) *Handlers {
	return &Handlers{
		signupService: signupService,
		config:        config,
	}
}

// Middleware for JWT authentication
func (h *Handlers) RequireJWT(requiredRole string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				writeError(w, http.StatusUnauthorized, "Missing or invalid authorization header", "UNAUTHORIZED")
				return
			}

			token := strings.TrimPrefix(authHeader, "Bearer ")
			claims, err := auth.Parse(token, h.config.Auth.JWTSecret)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Invalid token", "INVALID_TOKEN")
				return
			}

			if requiredRole != "" && claims.Role != requiredRole && claims.Role != "admin" {
				writeError(w, http.StatusForbidden, "Insufficient permissions", "FORBIDDEN")
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Helper functions
func getClaims(r *http.Request) *auth.Claims {
	if claims, ok := r.Context().Value(claimsKey).(*auth.Claims); ok {
		return claims
	}
	return nil
}

func getClientIP(r *http.Request) string {
	// Check X-Forwarded-For header first
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	// Check X-Real-IP header
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	// Fall back to RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, statusCode int, message, code string) {
	response := map[string]string{
		"error": message,
		"code":  code,
	}
	writeJSON(w, statusCode, response)
}

// writeDomainError maps flow sentinels to HTTP status and reason codes.
// Anything unrecognized becomes a 500 with no internal detail leaked.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrEmailRequired):
		writeError(w, http.StatusBadRequest, "Email is required", domain.CodeEmailRequired)
	case errors.Is(err, domain.ErrInvalidEmail):
		writeError(w, http.StatusUnprocessableEntity, "Email address failed validation", domain.CodeInvalidEmail)
	case errors.Is(err, domain.ErrInvalidPassword):
		writeError(w, http.StatusBadRequest, "Password does not meet requirements", domain.CodeInvalidPassword)
	case errors.Is(err, domain.ErrDomainTaken):
		writeError(w, http.StatusConflict, "Domain is already registered to a verified account", domain.CodeDomainTaken)
	case errors.Is(err, domain.ErrClaimPending):
		writeError(w, http.StatusConflict, "Domain has a pending signup awaiting confirmation", domain.CodePending)
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "Not found", domain.CodeNotFound)
	case errors.Is(err, domain.ErrAlreadyVerified):
		writeError(w, http.StatusConflict, "Signup is already verified", domain.CodeAlreadyVerified)
	case errors.Is(err, domain.ErrTokenExpired):
		writeError(w, http.StatusGone, "Verification link has expired", domain.CodeTokenExpired)
	case errors.Is(err, domain.ErrTokenInvalid):
		writeError(w, http.StatusBadRequest, "Verification link is invalid", domain.CodeTokenInvalid)
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "Too many requests. Please try again later.", domain.CodeRateLimited)
	case errors.Is(err, domain.ErrMaxResends):
		writeError(w, http.StatusTooManyRequests, "Resend limit reached for this signup", domain.CodeMaxResends)
	case errors.Is(err, domain.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "Invalid email or password", domain.CodeInvalidCredentials)
	default:
		writeError(w, http.StatusInternalServerError, "Internal server error", domain.CodeInternalError)
	}
}

package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gatehouse-io/gatehouse/internal/domain"
	"github.com/gatehouse-io/gatehouse/pkg/logger"
)

// Signup handles POST /v1/signup
func (h *Handlers) Signup(w http.ResponseWriter, r *http.Request) {
	var req domain.SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "INVALID_REQUEST")
		return
	}

	result, err := h.signupService.StartSignup(r.Context(), req, getClientIP(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"pending_id": result.PendingID,
		"email":      result.Email,
		"domain":     result.Domain,
		"expires_at": result.ExpiresAt,
		"message":    "Check your inbox for a confirmation link.",
	})
}

// Verify handles GET /verify?token=...
func (h *Handlers) Verify(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")

	result, err := h.signupService.Verify(r.Context(), token)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	status := http.StatusOK
	message := "Email verified. Your account is ready."
	if result.AlreadyVerified {
		message = "Email was already verified."
	}
	writeJSON(w, status, map[string]interface{}{
		"account_id":       result.AccountID,
		"email":            result.Email,
		"domain":           result.Domain,
		"already_verified": result.AlreadyVerified,
		"message":          message,
	})
}

// Resend handles POST /v1/signup/resend
func (h *Handlers) Resend(w http.ResponseWriter, r *http.Request) {
	var req domain.ResendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "INVALID_REQUEST")
		return
	}
	if req.PendingID == "" {
		writeError(w, http.StatusBadRequest, "pending_id is required", domain.CodePendingIDRequired)
		return
	}

	if err := h.signupService.Resend(r.Context(), req.PendingID); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Verification email sent.",
	})
}

// CheckDomain handles POST /v1/signup/check-domain
func (h *Handlers) CheckDomain(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Domain string `json:"domain"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "INVALID_REQUEST")
		return
	}
	if req.Domain == "" {
		writeError(w, http.StatusBadRequest, "domain is required", "DOMAIN_REQUIRED")
		return
	}

	availability, err := h.signupService.CheckDomain(r.Context(), req.Domain)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, availability)
}

// Status handles GET /v1/signup/{pendingID}/status
func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	pendingID := chi.URLParam(r, "pendingID")
	if pendingID == "" {
		writeError(w, http.StatusBadRequest, "pending_id is required", domain.CodePendingIDRequired)
		return
	}

	status, err := h.signupService.Status(r.Context(), pendingID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, status)
}

// Login handles POST /v1/login
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "INVALID_REQUEST")
		return
	}

	result, err := h.signupService.Login(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// CostStats handles GET /v1/admin/costs/{operation}
// Optional from/to query params in RFC 3339; defaults to the last 30 days.
func (h *Handlers) CostStats(w http.ResponseWriter, r *http.Request) {
	operation := chi.URLParam(r, "operation")
	switch operation {
	case domain.OpEmailValidation, domain.OpDomainVerification:
	default:
		writeError(w, http.StatusNotFound, "Unknown operation", domain.CodeNotFound)
		return
	}

	to := time.Now()
	from := to.AddDate(0, 0, -30)
	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid 'from' timestamp", "INVALID_REQUEST")
			return
		}
		from = t
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid 'to' timestamp", "INVALID_REQUEST")
			return
		}
		to = t
	}

	stats, err := h.signupService.CostStats(r.Context(), operation, from, to)
	if err != nil {
		logger.ErrorContext(r.Context(), "Failed to aggregate cost stats", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error", domain.CodeInternalError)
		return
	}

	if claims := getClaims(r); claims != nil {
		logger.InfoContext(r.Context(), "Cost stats queried",
			"operation", operation, "requested_by", claims.Sub)
	}

	writeJSON(w, http.StatusOK, stats)
}

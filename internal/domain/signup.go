package domain

import (
	"fmt"
	"strings"
	"time"
)

// SignupState is the closed set of verification cascade states. Persisted
// states start at AwaitingConfirmation; the earlier states only exist for
// the duration of the originating request.
type SignupState string

const (
	StateStarted              SignupState = "started"
	StateEmailProbing         SignupState = "email_probing"
	StateRejected             SignupState = "rejected"
	StateAwaitingConfirmation SignupState = "awaiting_confirmation"
	StateExpired              SignupState = "expired"
	StateConfirmed            SignupState = "confirmed"
	StateExtracting           SignupState = "extracting"
	StateFinalized            SignupState = "finalized"
)

var signupTransitions = map[SignupState][]SignupState{
	StateStarted:              {StateEmailProbing},
	StateEmailProbing:         {StateRejected, StateAwaitingConfirmation},
	StateAwaitingConfirmation: {StateExpired, StateConfirmed},
	StateConfirmed:            {StateExtracting, StateFinalized},
	StateExtracting:           {StateFinalized},
}

// CanTransition reports whether to is a legal successor of s.
func (s SignupState) CanTransition(to SignupState) bool {
	for _, next := range signupTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are possible.
func (s SignupState) Terminal() bool {
	return len(signupTransitions[s]) == 0
}

// PendingSignup tracks one signup attempt from token dispatch to account
// creation. Owned exclusively by the signup service.
type PendingSignup struct {
	ID           string
	Email        string
	Domain       string
	Provider     string // "password" or "google"
	PasswordHash string // empty for federated signups
	TokenDigest  string // sha256 of the bearer token; raw token never stored
	TokenExpires time.Time
	State        SignupState
	ResendCount  int
	LastResendAt time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Transition validates and applies a state change, rejecting illegal ones
// rather than silently proceeding.
func (p *PendingSignup) Transition(to SignupState) error {
	if !p.State.CanTransition(to) {
		return fmt.Errorf("illegal signup transition %s -> %s: %w", p.State, to, ErrIllegalTransition)
	}
	p.State = to
	return nil
}

// TokenExpired reports whether the verification token has lapsed.
func (p *PendingSignup) TokenExpired(now time.Time) bool {
	return now.After(p.TokenExpires)
}

// Account is the durable identity provisioned when a signup is confirmed.
type Account struct {
	ID           string
	Email        string
	Domain       string
	Provider     string
	PasswordHash string
	CreatedAt    time.Time
	VerifiedAt   time.Time
}

// Signup providers
const (
	ProviderPassword = "password"
	ProviderGoogle   = "google"
)

// SignupRequest is the boundary shape accepted by the signup endpoint.
type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password,omitempty"`
	Provider string `json:"provider,omitempty"`
}

func (r *SignupRequest) Normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	if r.Provider != ProviderGoogle {
		r.Provider = ProviderPassword
	}
}

// ResendRequest is the boundary shape accepted by the resend endpoint.
type ResendRequest struct {
	PendingID string `json:"pending_id"`
}

// LoginRequest is the boundary shape accepted by the login endpoint.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *LoginRequest) Normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
}

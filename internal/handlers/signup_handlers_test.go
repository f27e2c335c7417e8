package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gatehouse-io/gatehouse/internal/domain"
	"github.com/gatehouse-io/gatehouse/internal/handlers"
	"github.com/gatehouse-io/gatehouse/internal/service"
	"github.com/gatehouse-io/gatehouse/pkg/auth"
	"github.com/gatehouse-io/gatehouse/pkg/config"
)

// ---------- Mocks ----------

type stubSignupRepo struct {
	outcome domain.ClaimOutcome
	byID    map[string]*domain.PendingSignup
}

func (s *stubSignupRepo) CreateWithClaim(_ context.Context, p *domain.PendingSignup) (domain.ClaimOutcome, error) {
	if s.outcome.Acquired {
		s.byID[p.ID] = p
	}
	return s.outcome, nil
}

func (s *stubSignupRepo) GetByID(_ context.Context, id string) (*domain.PendingSignup, error) {
	return s.byID[id], nil
}

func (s *stubSignupRepo) GetByTokenDigest(_ context.Context, _ string) (*domain.PendingSignup, error) {
	return nil, nil
}

func (s *stubSignupRepo) RecordResend(_ context.Context, _, _ string, _ time.Time) error {
	return nil
}

func (s *stubSignupRepo) ConfirmWithClaim(_ context.Context, _ *domain.PendingSignup, _ *domain.Account) (domain.ClaimOutcome, error) {
	return domain.ClaimOutcome{Acquired: true}, nil
}

func (s *stubSignupRepo) SetState(_ context.Context, _ string, _ domain.SignupState) error {
	return nil
}

func (s *stubSignupRepo) SweepExpired(_ context.Context) (int64, error) { return 0, nil }

type stubClaimRepo struct {
	outcome domain.ClaimOutcome
}

func (s *stubClaimRepo) Get(_ context.Context, _ string) (*domain.DomainClaim, error) {
	return nil, nil
}

func (s *stubClaimRepo) Availability(_ context.Context, _ string) (domain.ClaimOutcome, error) {
	return s.outcome, nil
}

func (s *stubClaimRepo) SweepExpired(_ context.Context) (int64, error) { return 0, nil }

type stubAccountRepo struct{}

func (s *stubAccountRepo) FindByEmail(_ context.Context, _ string) (*domain.Account, error) {
	return nil, nil
}

func (s *stubAccountRepo) FindByID(_ context.Context, _ string) (*domain.Account, error) {
	return nil, nil
}

type stubProfileRepo struct{}

func (s *stubProfileRepo) Create(_ context.Context, _ *domain.CompanyProfile) error { return nil }
func (s *stubProfileRepo) LatestByDomain(_ context.Context, _ string) (*domain.CompanyProfile, error) {
	return nil, nil
}

type stubCostRepo struct{}

func (s *stubCostRepo) Append(_ context.Context, _ *domain.CostLogEntry) error { return nil }
func (s *stubCostRepo) Stats(_ context.Context, op string, _, _ time.Time) (*domain.CostStats, error) {
	return &domain.CostStats{Operation: op, TotalRequests: 7, TotalCost: 0.0007}, nil
}

type stubProber struct {
	verdict domain.Verdict
}

func (s *stubProber) Probe(_ context.Context, _ domain.EmailCandidate) ([]domain.ProbeResult, domain.Verdict) {
	return []domain.ProbeResult{{Tier: domain.TierFree, Verdict: s.verdict}}, s.verdict
}

type stubMailer struct{}

func (s *stubMailer) SendVerificationEmail(_, _, _ string) error { return nil }

type stubBus struct{}

func (s *stubBus) Publish(_ context.Context, _ string, _ interface{}) error { return nil }
func (s *stubBus) Close() error                                             { return nil }

// ---------- Fixture ----------

func newRouter(t *testing.T, signups *stubSignupRepo, claims *stubClaimRepo, prober *stubProber) (*chi.Mux, *config.Config) {
	t.Helper()
	cfg := config.Load()

	svc := service.NewSignupService(
		signups, claims, &stubAccountRepo{}, &stubProfileRepo{}, &stubCostRepo{},
		prober, &stubMailer{}, &stubBus{}, nil, nil, cfg)
	h := handlers.New(svc, cfg)

	r := chi.NewRouter()
	r.Get("/verify", h.Verify)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/signup", h.Signup)
		r.Post("/signup/resend", h.Resend)
		r.Post("/signup/check-domain", h.CheckDomain)
		r.Get("/signup/{pendingID}/status", h.Status)
		r.Post("/login", h.Login)
		r.Route("/admin", func(r chi.Router) {
			r.Use(h.RequireJWT("admin"))
			r.Get("/costs/{operation}", h.CostStats)
		})
	})
	return r, cfg
}

func defaultStubs() (*stubSignupRepo, *stubClaimRepo, *stubProber) {
	return &stubSignupRepo{
			outcome: domain.ClaimOutcome{Acquired: true},
			byID:    make(map[string]*domain.PendingSignup),
		},
		&stubClaimRepo{outcome: domain.ClaimOutcome{Acquired: true}},
		&stubProber{verdict: domain.VerdictPass}
}

func postJSON(t *testing.T, r http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(buf))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	return out
}

// ---------- Tests ----------

func TestSignupEndpointAccepted(t *testing.T) {
	signups, claims, prober := defaultStubs()
	r, _ := newRouter(t, signups, claims, prober)

	rec := postJSON(t, r, "/v1/signup", map[string]string{
		"email":    "jordan@acme.io",
		"password": "hunter22",
	})

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["pending_id"] == "" || body["pending_id"] == nil {
		t.Error("pending_id missing from response")
	}
	if body["domain"] != "acme.io" {
		t.Errorf("domain wrong: %v", body["domain"])
	}
}

func TestSignupEndpointRejectsProbeFailure(t *testing.T) {
	signups, claims, prober := defaultStubs()
	prober.verdict = domain.VerdictFail
	r, _ := newRouter(t, signups, claims, prober)

	rec := postJSON(t, r, "/v1/signup", map[string]string{
		"email":    "someone@gmail.com",
		"password": "hunter22",
	})

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["code"] != domain.CodeInvalidEmail {
		t.Errorf("expected code %s, got %v", domain.CodeInvalidEmail, body["code"])
	}
}

func TestSignupEndpointDomainConflicts(t *testing.T) {
	signups, claims, prober := defaultStubs()
	signups.outcome = domain.ClaimOutcome{Acquired: false, Reason: domain.ConflictDomainTaken}
	r, _ := newRouter(t, signups, claims, prober)

	rec := postJSON(t, r, "/v1/signup", map[string]string{
		"email":    "late@acme.io",
		"password": "hunter22",
	})

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["code"] != domain.CodeDomainTaken {
		t.Errorf("expected code %s, got %v", domain.CodeDomainTaken, body["code"])
	}
}

func TestSignupEndpointBadJSON(t *testing.T) {
	signups, claims, prober := defaultStubs()
	r, _ := newRouter(t, signups, claims, prober)

	req := httptest.NewRequest(http.MethodPost, "/v1/signup", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestVerifyEndpointInvalidToken(t *testing.T) {
	signups, claims, prober := defaultStubs()
	r, _ := newRouter(t, signups, claims, prober)

	req := httptest.NewRequest(http.MethodGet, "/verify?token=bogus", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["code"] != domain.CodeTokenInvalid {
		t.Errorf("expected code %s, got %v", domain.CodeTokenInvalid, body["code"])
	}
}

func TestCheckDomainEndpoint(t *testing.T) {
	signups, claims, prober := defaultStubs()
	claims.outcome = domain.ClaimOutcome{Acquired: false, Reason: domain.ConflictPending}
	r, _ := newRouter(t, signups, claims, prober)

	rec := postJSON(t, r, "/v1/signup/check-domain", map[string]string{"domain": "acme.io"})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["available"] != false {
		t.Error("expected available=false")
	}
	if body["reason"] != "PENDING" {
		t.Errorf("expected reason PENDING, got %v", body["reason"])
	}
}

func TestStatusEndpointNotFound(t *testing.T) {
	signups, claims, prober := defaultStubs()
	r, _ := newRouter(t, signups, claims, prober)

	req := httptest.NewRequest(http.MethodGet, "/v1/signup/ghost/status", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestResendEndpointRequiresPendingID(t *testing.T) {
	signups, claims, prober := defaultStubs()
	r, _ := newRouter(t, signups, claims, prober)

	rec := postJSON(t, r, "/v1/signup/resend", map[string]string{})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["code"] != domain.CodePendingIDRequired {
		t.Errorf("expected code %s, got %v", domain.CodePendingIDRequired, body["code"])
	}
}

func TestAdminCostsRequiresJWT(t *testing.T) {
	signups, claims, prober := defaultStubs()
	r, cfg := newRouter(t, signups, claims, prober)

	req := httptest.NewRequest(http.MethodGet, "/v1/admin/costs/email_validation", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	// Non-admin token is refused.
	memberToken, err := auth.NewAccessToken("acct-1", "a@acme.io", "acme.io", "member", cfg.Auth.JWTSecret, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	req = httptest.NewRequest(http.MethodGet, "/v1/admin/costs/email_validation", nil)
	req.Header.Set("Authorization", "Bearer "+memberToken)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for member, got %d", rec.Code)
	}

	adminToken, err := auth.NewAccessToken("acct-2", "ops@gatehouse.io", "gatehouse.io", "admin", cfg.Auth.JWTSecret, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	req = httptest.NewRequest(http.MethodGet, "/v1/admin/costs/email_validation", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d: %s", rec.Code, rec.Body.String())
	}
	if body := decodeBody(t, rec); body["operation"] != domain.OpEmailValidation {
		t.Errorf("operation wrong: %v", body["operation"])
	}
}

func TestAdminCostsUnknownOperation(t *testing.T) {
	signups, claims, prober := defaultStubs()
	r, cfg := newRouter(t, signups, claims, prober)

	token, err := auth.NewAccessToken("acct-2", "ops@gatehouse.io", "gatehouse.io", "admin", cfg.Auth.JWTSecret, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodGet, "/v1/admin/costs/nonsense", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

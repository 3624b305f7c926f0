package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/apperr"
	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/auth"
	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/config"
	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/domain/admin"
	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/domain/audit"
	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/domain/kyc"
	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/domain/loan"
	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/domain/user"
	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/http/handlers"
	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/observability"
	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/storage"
	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/ws"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeAuth struct{}

func (fakeAuth) Register(_ context.Context, in auth.RegisterInput) (*auth.Session, error) {
	if in.Email == "taken@example.com" {
		return nil, apperr.Conflict("user_exists", "User already exists")
	}
	return &auth.Session{Token: "tok", User: user.User{ID: "u-1", Email: in.Email, PasswordHash: "secret-hash"}}, nil
}

func (fakeAuth) Login(_ context.Context, email, password string) (*auth.Session, error) {
	if password != "secret123" {
		return nil, apperr.Unauthenticated("invalid_credentials", "Invalid credentials")
	}
	return &auth.Session{Token: "tok", User: user.User{ID: "u-1", Email: email}}, nil
}

func (fakeAuth) Me(_ context.Context, userID string) (*user.User, error) {
	return &user.User{ID: userID, Email: "ada@example.com"}, nil
}

func (fakeAuth) ForgotPassword(context.Context, string) string { return auth.ForgotPasswordMessage }

func (fakeAuth) ResetPassword(_ context.Context, token, _ string) error {
	if token == "" {
		return apperr.Validation("missing_token", "Token is required")
	}
	return nil
}

func (fakeAuth) AccessTTL() time.Duration { return time.Hour }

type fakeLoans struct {
	lastLimit, lastOffset int32
}

func (f *fakeLoans) Apply(_ context.Context, userID string, in loan.ApplyInput) (*loan.Entity, error) {
	if in.Amount.GreaterThan(decimal.NewFromInt(1000)) {
		return nil, apperr.Forbidden("KYC_VERIFICATION_REQUIRED", "KYC verification is required").With("required_level", "basic")
	}
	return &loan.Entity{ID: "l-1", UserID: userID, Amount: in.Amount, Status: loan.StatusPending}, nil
}

func (f *fakeLoans) ListMine(_ context.Context, _ string, limit, offset int32) (*loan.Page, error) {
	f.lastLimit, f.lastOffset = limit, offset
	return &loan.Page{Items: []loan.Entity{{ID: "l-1"}}, Total: 23}, nil
}

func (f *fakeLoans) PreApproval(context.Context, string) (*loan.PreApproval, error) {
	return &loan.PreApproval{IsPreApproved: true, CreditScore: 700, MinRequiredScore: 600}, nil
}

func (f *fakeLoans) Pay(_ context.Context, _, loanID string, amount decimal.Decimal) (*loan.PaymentOutcome, error) {
	return &loan.PaymentOutcome{Applied: amount, Unapplied: decimal.Zero, Loan: &loan.Entity{ID: loanID}}, nil
}

func (f *fakeLoans) Cancel(context.Context, string, string) (*loan.Entity, error) {
	return nil, errors.New("connection reset by peer")
}

type fakeTxs struct{}

func (fakeTxs) ListByUser(context.Context, string) ([]loan.Transaction, error) { return nil, nil }

type fakeAdmin struct{}

func (fakeAdmin) ListLoans(context.Context, string, int32, int32) (*loan.Page, error) {
	return &loan.Page{}, nil
}
func (fakeAdmin) ReviewLoan(_ context.Context, _ audit.Actor, id, status string) (*loan.Entity, error) {
	return &loan.Entity{ID: id, Status: loan.Status(status)}, nil
}
func (fakeAdmin) DisburseLoan(_ context.Context, _ audit.Actor, id string) (*loan.Entity, *loan.Transaction, error) {
	return &loan.Entity{ID: id}, &loan.Transaction{LoanID: id}, nil
}
func (fakeAdmin) ListUsers(context.Context, audit.Actor, int32, int32) ([]user.Summary, int64, error) {
	return []user.Summary{{ID: "u-1", Email: "ada@example.com"}}, 1, nil
}
func (fakeAdmin) UserTransactions(context.Context, audit.Actor, string) ([]loan.Transaction, error) {
	return nil, nil
}
func (fakeAdmin) Promote(_ context.Context, actor audit.Actor, target admin.PromoteTarget) (*user.Summary, error) {
	if target.UserID == actor.UserID {
		return nil, apperr.Forbidden("self_promotion", "You cannot modify your own role")
	}
	return &user.Summary{ID: target.UserID, UserType: user.RoleAdmin}, nil
}
func (fakeAdmin) Reports(context.Context, audit.Actor) (*admin.Report, error) {
	return &admin.Report{TotalLoans: 2, TotalRepayments: decimal.NewFromInt(150)}, nil
}
func (fakeAdmin) AuditLogs(context.Context, audit.ListFilter) ([]audit.Entry, int64, error) {
	return nil, 0, nil
}

type fakeKYC struct {
	uploaded map[string]string
}

func (f *fakeKYC) Requirements(amount string) (kyc.Requirement, error) {
	if amount == "abc" {
		return kyc.Requirement{}, apperr.Validation("invalid_amount", "Invalid amount")
	}
	return kyc.Requirement{Required: true, Level: kyc.LevelBasic}, nil
}
func (f *fakeKYC) Start(context.Context, string, string) (*kyc.StatusView, error) {
	return &kyc.StatusView{Status: kyc.StatusInProgress, Level: kyc.LevelBasic}, nil
}
func (f *fakeKYC) UploadDocuments(_ context.Context, _ string, uploads []kyc.Upload) (*kyc.UploadResult, error) {
	if len(uploads) == 0 {
		return nil, apperr.Validation("no_files_uploaded", "No files uploaded")
	}
	f.uploaded = map[string]string{}
	for _, u := range uploads {
		b, _ := io.ReadAll(u.Body)
		f.uploaded[u.Field] = string(b)
	}
	return &kyc.UploadResult{StatusView: kyc.StatusView{Status: kyc.StatusInProgress}}, nil
}
func (f *fakeKYC) Submit(context.Context, string, kyc.SubmitInput) (*kyc.StatusView, error) {
	return &kyc.StatusView{Status: kyc.StatusPendingReview}, nil
}
func (f *fakeKYC) Status(context.Context, string) (*kyc.StatusView, error) {
	return &kyc.StatusView{Status: kyc.StatusNotStarted, Level: kyc.LevelNone}, nil
}

type fakeReview struct{}

func (fakeReview) Pending(context.Context, int32, int32) (*kyc.Listing, error) {
	return &kyc.Listing{Items: []kyc.Case{}, Total: 0}, nil
}
func (fakeReview) Applications(context.Context, kyc.ListFilter) (*kyc.Listing, error) {
	return &kyc.Listing{Items: []kyc.Case{}, Total: 0}, nil
}
func (fakeReview) Get(_ context.Context, _ audit.Actor, id string) (*kyc.Case, error) {
	return &kyc.Case{ID: id}, nil
}
func (fakeReview) Approve(_ context.Context, _ audit.Actor, id string, _ kyc.ReviewInput) (*kyc.Case, error) {
	return nil, apperr.Conflict("invalid_state", "Cannot approve KYC in status in_progress")
}
func (fakeReview) Reject(_ context.Context, _ audit.Actor, id string, _ kyc.ReviewInput) (*kyc.Case, error) {
	return &kyc.Case{ID: id, Status: kyc.StatusRejected}, nil
}
func (fakeReview) SignedDocumentURL(context.Context, audit.Actor, string) (string, time.Duration, error) {
	return "http://api.test/v1/documents/abc", 10 * time.Minute, nil
}
func (fakeReview) Export(_ context.Context, _ audit.Actor, _ kyc.ExportFilter, w io.Writer) error {
	_, err := io.WriteString(w, "KYC ID,User Name\nk-1,Ada Lovelace\n")
	return err
}

type testServer struct {
	router  *gin.Engine
	jwt     *auth.JWTManager
	store   *storage.LocalStore
	loans   *fakeLoans
	kyc     *fakeKYC
	metrics *observability.Metrics
	hub     *ws.Hub
}

func testConfig() config.Config {
	return config.Config{
		Env:                       "test",
		RequestTimeout:            5 * time.Second,
		MaxUploadBytes:            1 << 20,
		RateLimitAPIPer15m:        1000,
		RateLimitAuthPer15m:       100,
		RateLimitKYCSubmitPerHour: 100,
	}
}

func newTestServer(t *testing.T, cfg config.Config) *testServer {
	t.Helper()
	jwt := auth.NewJWTManager("stl-test", "stl-api", "router-test-signing-key-0123456789")
	store, err := storage.NewLocalStore(t.TempDir(), "http://api.test", jwt)
	require.NoError(t, err)

	ts := &testServer{jwt: jwt, store: store, loans: &fakeLoans{}, kyc: &fakeKYC{}, metrics: observability.NewMetrics(), hub: ws.NewHub()}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ts.router = NewRouter(cfg, logger, Dependencies{
		Storage:         store,
		JWTManager:      jwt,
		Metrics:         ts.metrics,
		AuthHandler:     handlers.NewAuthHandler(fakeAuth{}, auth.CookieConfig{}),
		LoanHandler:     handlers.NewLoanHandler(ts.loans, fakeTxs{}, ts.metrics),
		KYCHandler:      handlers.NewKYCHandler(ts.kyc),
		AdminHandler:    handlers.NewAdminHandler(fakeAdmin{}),
		AdminKYCHandler: handlers.NewAdminKYCHandler(fakeReview{}),
		FilesHandler:    handlers.NewFilesHandler(store, jwt),
		WSHandler:       ws.NewHandler(ts.hub),
	})
	return ts
}

func (ts *testServer) token(t *testing.T, userID, role string) string {
	t.Helper()
	tok, err := ts.jwt.MintAccess(userID, userID+"@example.com", role, time.Hour)
	require.NoError(t, err)
	return tok
}

func (ts *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var r io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealthMetaAndMetrics(t *testing.T) {
	ts := newTestServer(t, testConfig())

	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/health", "", nil).Code)

	ready := ts.do(http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, ready.Code)
	assert.Equal(t, map[string]any{"database": "error", "storage": "ok"}, decode(t, ready)["checks"])

	metaResp := ts.do(http.MethodGet, "/v1/meta", "", nil)
	require.Equal(t, http.StatusOK, metaResp.Code)
	meta := decode(t, metaResp)
	assert.Equal(t, "test", meta["env"])
	assert.Equal(t, map[string]any{"max_amount": "50000", "max_duration": float64(60), "duration_units": []any{"months", "weeks"}}, meta["loan"])
	kycMeta := meta["kyc"].(map[string]any)
	assert.Equal(t, "1000", kycMeta["basic_above"])
	assert.Equal(t, "5000", kycMeta["enhanced_above"])
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, "/nope", "", nil).Code)

	w := ts.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `lending_http_requests_total{method="GET",route="/health",status="200"} 1`)
}

func TestRegisterSetsCookieAndHidesHash(t *testing.T) {
	ts := newTestServer(t, testConfig())

	w := ts.do(http.MethodPost, "/api/auth/register", "", map[string]string{"email": "ada@example.com", "password": "secret123"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Header().Get("Set-Cookie"), auth.AccessCookieName+"=tok")
	assert.NotContains(t, w.Body.String(), "secret-hash")

	w = ts.do(http.MethodPost, "/api/auth/register", "", map[string]string{"email": "taken@example.com"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "user_exists", decode(t, w)["error"])
}

func TestLoginAndPasswordReset(t *testing.T) {
	ts := newTestServer(t, testConfig())

	w := ts.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "a@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid_credentials", decode(t, w)["error"])

	w = ts.do(http.MethodPost, "/api/auth/forgot-password", "", map[string]string{"email": "ghost@example.com"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, auth.ForgotPasswordMessage, decode(t, w)["message"])

	w = ts.do(http.MethodPost, "/api/auth/reset-password", "", map[string]string{"token": "", "newPassword": "longenough"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "missing_token", decode(t, w)["error"])
}

func TestAuthLimiterReturns429(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitAuthPer15m = 2
	ts := newTestServer(t, cfg)

	body := map[string]string{"email": "a@example.com", "password": "wrong"}
	assert.Equal(t, http.StatusUnauthorized, ts.do(http.MethodPost, "/api/auth/login", "", body).Code)
	assert.Equal(t, http.StatusUnauthorized, ts.do(http.MethodPost, "/api/auth/login", "", body).Code)
	w := ts.do(http.MethodPost, "/api/auth/login", "", body)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "rate_limited", decode(t, w)["error"])

	m := ts.do(http.MethodGet, "/metrics", "", nil)
	assert.Contains(t, m.Body.String(), `lending_http_rate_limited_total{limiter="auth"} 1`)
}

func TestLoanRoutes(t *testing.T) {
	ts := newTestServer(t, testConfig())
	tok := ts.token(t, "u-1", "user")

	assert.Equal(t, http.StatusUnauthorized, ts.do(http.MethodPost, "/api/loan/apply", "", map[string]any{}).Code)

	w := ts.do(http.MethodPost, "/api/loan/apply", tok, map[string]any{"loan_amount": 500, "interest_rate": 10, "duration": 3, "repayment_date": "2026-11-01"})
	assert.Equal(t, http.StatusCreated, w.Code)

	w = ts.do(http.MethodPost, "/api/loan/apply", tok, map[string]any{"loan_amount": 5000})
	assert.Equal(t, http.StatusForbidden, w.Code)
	body := decode(t, w)
	assert.Equal(t, "KYC_VERIFICATION_REQUIRED", body["error"])
	assert.Equal(t, "basic", body["required_level"])

	w = ts.do(http.MethodGet, "/api/loan/my-loans?page=3&limit=500", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 50, ts.loans.lastLimit)
	assert.EqualValues(t, 100, ts.loans.lastOffset)
	pagination := decode(t, w)["pagination"].(map[string]any)
	assert.EqualValues(t, 3, pagination["page"])
	assert.EqualValues(t, 23, pagination["total"])
	assert.EqualValues(t, 1, pagination["pages"])

	w = ts.do(http.MethodPost, "/api/loan/l-1/pay", tok, map[string]any{"amount": "125.50"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Payment recorded successfully", decode(t, w)["message"])

	w = ts.do(http.MethodPost, "/api/loan/l-1/cancel", tok, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection reset")

	w = ts.do(http.MethodGet, "/api/transactions/my-transactions", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"transactions":[]}`, w.Body.String())

	m := ts.do(http.MethodGet, "/metrics", "", nil).Body.String()
	assert.Contains(t, m, `lending_loan_applications_total{outcome="kyc_blocked"} 1`)
	assert.Contains(t, m, `lending_loan_applications_total{outcome="submitted"} 1`)
	assert.Contains(t, m, `lending_loan_payments_applied_amount_total 125.5`)
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	ts := newTestServer(t, testConfig())
	userTok := ts.token(t, "u-1", "user")
	adminTok := ts.token(t, "a-1", "admin")

	assert.Equal(t, http.StatusForbidden, ts.do(http.MethodGet, "/api/admin/users", userTok, nil).Code)

	w := ts.do(http.MethodGet, "/api/admin/users", adminTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["users"], 1)

	w = ts.do(http.MethodPut, "/api/admin/users/a-1/promote", adminTok, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "self_promotion", decode(t, w)["error"])

	w = ts.do(http.MethodPost, "/api/admin/promote", adminTok, map[string]string{"userId": "u-1"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.do(http.MethodPut, "/api/admin/loans/l-1/approve", adminTok, map[string]string{"status": "approved"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Loan approved successfully", decode(t, w)["message"])

	w = ts.do(http.MethodGet, "/api/admin/reports", adminTok, nil)
	assert.JSONEq(t, `{"totalLoans":2,"totalRepayments":"150"}`, w.Body.String())
}

func TestAdminKYCRoutes(t *testing.T) {
	ts := newTestServer(t, testConfig())
	adminTok := ts.token(t, "a-1", "admin")

	w := ts.do(http.MethodGet, "/api/admin/kyc/export?from=2026-01-01&to=2026-02-01", adminTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")
	assert.Contains(t, w.Body.String(), "k-1,Ada Lovelace")

	w = ts.do(http.MethodGet, "/api/admin/kyc/export?from=01-01-2026", adminTok, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(http.MethodGet, "/api/admin/kyc/signed-url?url=x", adminTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 600, decode(t, w)["expires_in"])

	w = ts.do(http.MethodPost, "/api/admin/kyc/k-1/approve", adminTok, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = ts.do(http.MethodGet, "/api/admin/kyc/pending", adminTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"kycs":[]`)
}

func TestKYCUploadPassesFiles(t *testing.T) {
	ts := newTestServer(t, testConfig())
	tok := ts.token(t, "u-1", "user")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for field, content := range map[string]string{"front": "front-bytes", "selfie": "selfie-bytes", "ignored": "x"} {
		part, err := mw.CreateFormFile(field, field+".png")
		require.NoError(t, err)
		_, _ = part.Write([]byte(content))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/kyc/documents/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]string{"front": "front-bytes", "selfie": "selfie-bytes"}, ts.kyc.uploaded)

	w = ts.do(http.MethodGet, "/api/kyc/requirements/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = ts.do(http.MethodGet, "/api/kyc/status", tok, nil)
	assert.JSONEq(t, `{"status":"not_started","level":"none","submitted_at":null,"verified_at":null}`, w.Body.String())
}

func TestFilesOwnerAdminAndSignedLinks(t *testing.T) {
	ts := newTestServer(t, testConfig())
	key := "kyc/u-1/front-1.png"
	url, err := ts.store.Put(context.Background(), key, "image/png", strings.NewReader("png-bytes"))
	require.NoError(t, err)

	w := ts.do(http.MethodGet, "/v1/files/"+key, ts.token(t, "u-1", "user"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "png-bytes", w.Body.String())

	assert.Equal(t, http.StatusForbidden, ts.do(http.MethodGet, "/v1/files/"+key, ts.token(t, "u-2", "user"), nil).Code)
	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/v1/files/"+key, ts.token(t, "a-1", "admin"), nil).Code)
	assert.Equal(t, http.StatusUnauthorized, ts.do(http.MethodGet, "/v1/files/"+key, "", nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, "/v1/files/kyc/u-1/missing.png", ts.token(t, "u-1", "user"), nil).Code)

	signed, err := ts.store.SignedURL(url, time.Minute)
	require.NoError(t, err)
	w = ts.do(http.MethodGet, strings.TrimPrefix(signed, "http://api.test"), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "png-bytes", w.Body.String())

	w = ts.do(http.MethodGet, "/v1/documents/"+ts.token(t, "u-1", "user"), "", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestWebsocketRequiresAuth(t *testing.T) {
	ts := newTestServer(t, testConfig())
	assert.Equal(t, http.StatusUnauthorized, ts.do(http.MethodGet, "/v1/ws", "", nil).Code)
}

func TestWebsocketReceivesUserEvents(t *testing.T) {
	ts := newTestServer(t, testConfig())
	srv := httptest.NewServer(ts.router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/ws?token=" + ts.token(t, "u-1", "user")
	conn, err := websocket.Dial(wsURL, "", srv.URL)
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(2 * time.Second))

	// The pong proves the connection is registered on its channels.
	require.NoError(t, websocket.Message.Send(conn, `{"action":"ping"}`))
	var msg string
	require.NoError(t, websocket.Message.Receive(conn, &msg))
	assert.JSONEq(t, `{"event":"pong"}`, msg)

	ws.NewNotifier(ts.hub, nil).NotifyUser("u-1", loan.EventStatusChanged, map[string]string{"loan_id": "l-1", "status": "late"})
	require.NoError(t, websocket.Message.Receive(conn, &msg))
	assert.JSONEq(t, `{"event":"loan_status_changed","data":{"loan_id":"l-1","status":"late"}}`, msg)
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	cfg := testConfig()
	cfg.CORSOrigin = "http://app.example.com"
	ts := newTestServer(t, cfg)

	req := httptest.NewRequest(http.MethodOptions, "/api/loan/apply", nil)
	req.Header.Set("Origin", "http://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	assert.Equal(t, "http://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}

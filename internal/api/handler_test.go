package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/finquery/finquery/internal/config"
	"github.com/finquery/finquery/internal/engine"
	"github.com/finquery/finquery/internal/llm"
	"github.com/finquery/finquery/internal/service"
	"github.com/finquery/finquery/internal/sqlcheck"
	"github.com/finquery/finquery/internal/templates"
)

type fakePipeline struct {
	outcome service.Outcome
	askErr  error

	result      engine.Result
	records     []sqlcheck.Record
	runSQLErr   error
	gotSQL      string
	gotQuestion string
}

func (f *fakePipeline) Ask(_ context.Context, question string) (service.Outcome, error) {
	f.gotQuestion = question
	return f.outcome, f.askErr
}

func (f *fakePipeline) RunSQL(_ context.Context, sql string) (engine.Result, []sqlcheck.Record, error) {
	f.gotSQL = sql
	return f.result, f.records, f.runSQLErr
}

type fakeCatalog struct {
	list []templates.Template
}

func (f *fakeCatalog) All() []templates.Template { return f.list }

func testConfig() config.Config {
	cfg, err := config.Load("finquery-api", func(string) (string, bool) { return "", false })
	if err != nil {
		panic(err)
	}
	return cfg
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode body: %v (%s)", err, rec.Body.String())
	}
	return payload
}

func TestHealthEndpoint(t *testing.T) {
	handler := NewHandler(testConfig(), Dependencies{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	payload := decodeBody(t, rec)
	if payload["status"] != "ok" || payload["service"] != "finquery-api" {
		t.Fatalf("payload = %v", payload)
	}
}

func TestReadyEndpoint(t *testing.T) {
	handler := NewHandler(testConfig(), Dependencies{
		Readiness: func(context.Context) error { return nil },
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/ready", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestReadyEndpointFailure(t *testing.T) {
	handler := NewHandler(testConfig(), Dependencies{
		Readiness: func(context.Context) error { return errors.New("engine offline") },
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	payload := decodeBody(t, rec)
	if payload["error_code"] != "NOT_READY" {
		t.Fatalf("error_code = %v", payload["error_code"])
	}
	if payload["retryable"] != true {
		t.Fatalf("retryable = %v, want true", payload["retryable"])
	}
}

func TestAskEndpoint(t *testing.T) {
	pipeline := &fakePipeline{
		outcome: service.Outcome{
			RequestID: "abc123",
			Success:   true,
			Answer:    "Apple Inc's CIK is 320193.",
		},
	}
	handler := NewHandler(testConfig(), Dependencies{Pipeline: pipeline})

	body := strings.NewReader(`{"question": "What is Apple's CIK?"}`)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/ask", body))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", rec.Code, rec.Body.String())
	}
	if pipeline.gotQuestion != "What is Apple's CIK?" {
		t.Fatalf("question = %q", pipeline.gotQuestion)
	}
	payload := decodeBody(t, rec)
	if payload["answer"] != "Apple Inc's CIK is 320193." {
		t.Fatalf("answer = %v", payload["answer"])
	}
	if payload["success"] != true {
		t.Fatalf("success = %v", payload["success"])
	}
}

func TestAskEndpointRejectsBadRequests(t *testing.T) {
	handler := NewHandler(testConfig(), Dependencies{Pipeline: &fakePipeline{}})

	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{"invalid json", `{"question": `, "INVALID_JSON"},
		{"unknown field", `{"query": "hi"}`, "INVALID_JSON"},
		{"empty question", `{"question": "  "}`, "QUESTION_REQUIRED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader(tt.body)))
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if payload := decodeBody(t, rec); payload["error_code"] != tt.wantCode {
				t.Fatalf("error_code = %v, want %s", payload["error_code"], tt.wantCode)
			}
		})
	}
}

func TestAskEndpointLLMUnavailable(t *testing.T) {
	pipeline := &fakePipeline{
		askErr: fmt.Errorf("resolve question: %w", llm.ErrUnavailable),
	}
	handler := NewHandler(testConfig(), Dependencies{Pipeline: pipeline})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader(`{"question": "q"}`)))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	payload := decodeBody(t, rec)
	if payload["error_code"] != "LLM_UNAVAILABLE" {
		t.Fatalf("error_code = %v", payload["error_code"])
	}
	if payload["retryable"] != true {
		t.Fatalf("retryable = %v, want true", payload["retryable"])
	}
}

func TestAskEndpointWithoutPipeline(t *testing.T) {
	handler := NewHandler(testConfig(), Dependencies{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader(`{"question": "q"}`)))
	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("status = %d, want 501", rec.Code)
	}
}

func TestSQLEndpoint(t *testing.T) {
	pipeline := &fakePipeline{
		result: engine.Result{
			Columns:  []string{"name"},
			Rows:     [][]any{{"APPLE INC"}},
			RowCount: 1,
		},
		records: []sqlcheck.Record{{Stage: "static", Passed: true}},
	}
	handler := NewHandler(testConfig(), Dependencies{Pipeline: pipeline})

	body := strings.NewReader(`{"sql": "SELECT name FROM companies LIMIT 1"}`)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/sql", body))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", rec.Code, rec.Body.String())
	}
	if pipeline.gotSQL != "SELECT name FROM companies LIMIT 1" {
		t.Fatalf("sql = %q", pipeline.gotSQL)
	}
	payload := decodeBody(t, rec)
	if payload["row_count"] != float64(1) {
		t.Fatalf("row_count = %v", payload["row_count"])
	}
}

func TestSQLEndpointRejection(t *testing.T) {
	pipeline := &fakePipeline{
		records:   []sqlcheck.Record{{Stage: "static", Passed: false, Reason: "Disallowed keyword detected: DROP"}},
		runSQLErr: errors.New("sql rejected: Disallowed keyword detected: DROP"),
	}
	handler := NewHandler(testConfig(), Dependencies{Pipeline: pipeline})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/sql", strings.NewReader(`{"sql": "DROP TABLE companies"}`)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	payload := decodeBody(t, rec)
	if payload["error_code"] != "SQL_REJECTED" {
		t.Fatalf("error_code = %v", payload["error_code"])
	}
	extra, _ := payload["context"].(map[string]any)
	if extra == nil || extra["validation"] == nil {
		t.Fatalf("context = %v, want validation records", payload["context"])
	}
}

func TestSQLEndpointRequiresStatement(t *testing.T) {
	handler := NewHandler(testConfig(), Dependencies{Pipeline: &fakePipeline{}})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/sql", strings.NewReader(`{"sql": ""}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if payload := decodeBody(t, rec); payload["error_code"] != "SQL_REQUIRED" {
		t.Fatalf("error_code = %v", payload["error_code"])
	}
}

func TestTemplatesEndpoint(t *testing.T) {
	handler := NewHandler(testConfig(), Dependencies{
		Catalog: &fakeCatalog{list: templates.Builtin()},
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/templates", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	payload := decodeBody(t, rec)
	if payload["count"] != float64(len(templates.Builtin())) {
		t.Fatalf("count = %v", payload["count"])
	}
}

func TestTemplatesEndpointWithoutCatalog(t *testing.T) {
	handler := NewHandler(testConfig(), Dependencies{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/templates", nil))
	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("status = %d, want 501", rec.Code)
	}
}

func TestAuthRequiredWrapsProtectedRoutes(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Required = true

	authed := false
	middleware := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("X-API-Key") != "secret" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			authed = true
			next.ServeHTTP(w, r)
		})
	}
	handler := NewHandler(cfg, Dependencies{
		Pipeline:       &fakePipeline{outcome: service.Outcome{Success: true}},
		AuthMiddleware: middleware,
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader(`{"question": "q"}`)))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status without key = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader(`{"question": "q"}`))
	req.Header.Set("X-API-Key", "secret")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status with key = %d, want 200", rec.Code)
	}
	if !authed {
		t.Fatal("auth middleware did not run")
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d, want 200 without auth", rec.Code)
	}
}

func TestAuthRequiredWithoutMiddleware(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Required = true
	handler := NewHandler(cfg, Dependencies{Pipeline: &fakePipeline{}})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader(`{"question": "q"}`)))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if payload := decodeBody(t, rec); payload["error_code"] != "AUTH_MIDDLEWARE_MISSING" {
		t.Fatalf("error_code = %v", payload["error_code"])
	}
}

func TestCombineReadinessChecks(t *testing.T) {
	calls := 0
	ok := func(context.Context) error { calls++; return nil }
	failing := func(context.Context) error { return errors.New("down") }

	if err := CombineReadinessChecks(ok, nil, ok)(context.Background()); err != nil {
		t.Fatalf("combined check error = %v", err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
	if err := CombineReadinessChecks(ok, failing)(context.Background()); err == nil {
		t.Fatal("combined check should propagate failure")
	}
}

func TestCheckTemplateDSN(t *testing.T) {
	cfg := testConfig()
	if err := CheckTemplateDSN(cfg)(context.Background()); err == nil {
		t.Fatal("expected error for empty dsn")
	}
	cfg.Templates.DSN = "postgres://localhost/templates"
	if err := CheckTemplateDSN(cfg)(context.Background()); err != nil {
		t.Fatalf("CheckTemplateDSN() error = %v", err)
	}
}

package finqueryask

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRunAskPrintsAnswer(t *testing.T) {
	var gotPath, gotKey string
	var gotBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("X-API-Key")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"answer": "Apple Inc's CIK is 320193.", "success": true}`))
	}))
	defer server.Close()

	var stdout, stderr bytes.Buffer
	code := Run(context.Background(), []string{
		"-base-url", server.URL,
		"-api-key", "secret",
		"ask", "What", "is", "Apple's", "CIK?",
	}, Options{Stdout: &stdout, Stderr: &stderr})

	if code != 0 {
		t.Fatalf("exit code = %d, stderr: %s", code, stderr.String())
	}
	if gotPath != "/v1/ask" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotKey != "secret" {
		t.Fatalf("api key = %q", gotKey)
	}
	if gotBody["question"] != "What is Apple's CIK?" {
		t.Fatalf("question = %q", gotBody["question"])
	}
	if strings.TrimSpace(stdout.String()) != "Apple Inc's CIK is 320193." {
		t.Fatalf("stdout = %q", stdout.String())
	}
}

func TestRunAskJSONPrintsFullResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"answer": "42", "request_id": "abc"}`))
	}))
	defer server.Close()

	var stdout bytes.Buffer
	code := Run(context.Background(), []string{"-base-url", server.URL, "-json", "ask", "anything"}, Options{Stdout: &stdout})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(stdout.String(), `"request_id": "abc"`) {
		t.Fatalf("stdout = %q, want pretty JSON", stdout.String())
	}
}

func TestRunSQLCommand(t *testing.T) {
	var gotBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/sql" {
			t.Fatalf("path = %q", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"row_count": 1}`))
	}))
	defer server.Close()

	var stdout bytes.Buffer
	code := Run(context.Background(), []string{"-base-url", server.URL, "sql", "SELECT name FROM companies LIMIT 1"}, Options{Stdout: &stdout})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if gotBody["sql"] != "SELECT name FROM companies LIMIT 1" {
		t.Fatalf("sql = %q", gotBody["sql"])
	}
}

func TestRunTemplatesAndHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/templates":
			_, _ = w.Write([]byte(`{"count": 3}`))
		case "/v1/health":
			_, _ = w.Write([]byte(`{"status": "ok"}`))
		default:
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
	}))
	defer server.Close()

	for _, command := range []string{"templates", "health"} {
		var stdout bytes.Buffer
		if code := Run(context.Background(), []string{"-base-url", server.URL, command}, Options{Stdout: &stdout}); code != 0 {
			t.Fatalf("%s exit code = %d", command, code)
		}
		if stdout.Len() == 0 {
			t.Fatalf("%s produced no output", command)
		}
	}
}

func TestRunHTTPErrorExitsOne(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error_code": "NOT_READY"}`))
	}))
	defer server.Close()

	var stderr bytes.Buffer
	code := Run(context.Background(), []string{"-base-url", server.URL, "ready"}, Options{Stderr: &stderr})
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "http 503") {
		t.Fatalf("stderr = %q", stderr.String())
	}
}

func TestRunUsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no command", nil},
		{"unknown command", []string{"explode"}},
		{"ask without question", []string{"ask"}},
		{"sql without statement", []string{"sql"}},
		{"bad flag", []string{"-nope", "ask", "q"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stderr bytes.Buffer
			if code := Run(context.Background(), tt.args, Options{Stderr: &stderr}); code != 2 {
				t.Fatalf("exit code = %d, want 2", code)
			}
		})
	}
}

func TestRunConnectionFailureExitsOne(t *testing.T) {
	var stderr bytes.Buffer
	code := Run(context.Background(), []string{"-base-url", "http://127.0.0.1:1", "-timeout", "200ms", "health"}, Options{Stderr: &stderr})
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "request failed") {
		t.Fatalf("stderr = %q", stderr.String())
	}
}

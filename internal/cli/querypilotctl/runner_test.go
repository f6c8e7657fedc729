package querypilotctl

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type recordedRequest struct {
	method string
	path   string
	body   map[string]any
}

func newRecordingServer(t *testing.T, status int, response string) (*httptest.Server, *recordedRequest) {
	t.Helper()
	got := &recordedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.method = r.Method
		got.path = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &got.body); err != nil {
				t.Errorf("request body is not JSON: %s", raw)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func TestRunHealthCommand(t *testing.T) {
	srv, got := newRecordingServer(t, http.StatusOK, `{"status":"ok"}`)

	var stdout, stderr bytes.Buffer
	code := Run(context.Background(), []string{"--base-url", srv.URL, "health"}, Options{
		Stdout:  &stdout,
		Stderr:  &stderr,
		Timeout: 2 * time.Second,
	})
	if code != 0 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr.String())
	}
	if got.method != http.MethodGet || got.path != "/health" {
		t.Fatalf("request = %s %s", got.method, got.path)
	}
	if !strings.Contains(stdout.String(), `"status": "ok"`) {
		t.Fatalf("stdout = %s", stdout.String())
	}
}

func TestRunConnectSendsConnectionFlags(t *testing.T) {
	srv, got := newRecordingServer(t, http.StatusOK, `{"message":"Connection successful","tables":[]}`)

	code := Run(context.Background(), []string{
		"--base-url", srv.URL,
		"--username", "app",
		"--password", "p@ss:w/rd",
		"--hostname", "db:5432",
		"--database", "shop",
		"--dialect", "postgresql",
		"connect",
	}, Options{})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if got.method != http.MethodPost || got.path != "/connect/" {
		t.Fatalf("request = %s %s", got.method, got.path)
	}
	if got.body["password"] != "p@ss:w/rd" || got.body["dialect"] != "postgres" || got.body["database"] != "shop" {
		t.Fatalf("body = %#v", got.body)
	}
}

func TestRunUpdateModelUsesDefaultsConnection(t *testing.T) {
	srv, got := newRecordingServer(t, http.StatusOK, `{}`)

	opts := Options{BaseURL: srv.URL}
	opts.Connection.Username = "app"
	opts.Connection.Hostname = "localhost"
	code := Run(context.Background(), []string{"update-model"}, opts)
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if got.path != "/update_model/" || got.body["username"] != "app" {
		t.Fatalf("request = %s %#v", got.path, got.body)
	}
}

func TestRunSchemaCommand(t *testing.T) {
	srv, got := newRecordingServer(t, http.StatusOK, `{"tables":[{"name":"users","definition":"CREATE TABLE users (id INTEGER)"}],"captured_at":"2026-03-01T12:00:00Z"}`)

	var stdout bytes.Buffer
	code := Run(context.Background(), []string{"--base-url", srv.URL, "--database", "shop", "schema"}, Options{Stdout: &stdout})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if got.method != http.MethodPost || got.path != "/schema/" || got.body["database"] != "shop" {
		t.Fatalf("request = %s %s %#v", got.method, got.path, got.body)
	}
	if !strings.Contains(stdout.String(), `"name": "users"`) {
		t.Fatalf("stdout = %s", stdout.String())
	}
}

func TestRunTranslateWithExecute(t *testing.T) {
	srv, got := newRecordingServer(t, http.StatusOK, `{"sql_query":"SELECT * FROM users","result":[]}`)

	code := Run(context.Background(), []string{
		"--base-url", srv.URL,
		"--username", "app",
		"--database", "shop",
		"translate", "--execute", "show", "all", "users",
	}, Options{})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if got.path != "/translate_query/" || got.body["natural_language_query"] != "show all users" || got.body["execute"] != true {
		t.Fatalf("request = %s %#v", got.path, got.body)
	}
	if _, ok := got.body["connection_details"].(map[string]any); !ok {
		t.Fatalf("missing connection details: %#v", got.body)
	}
}

func TestRunExplainWithoutConnection(t *testing.T) {
	srv, got := newRecordingServer(t, http.StatusOK, `{"explanation":"Counts rows."}`)

	var stdout bytes.Buffer
	code := Run(context.Background(), []string{"--base-url", srv.URL, "explain", "SELECT COUNT(*) FROM t"}, Options{Stdout: &stdout})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if _, ok := got.body["connection_details"]; ok {
		t.Fatalf("unexpected connection details: %#v", got.body)
	}
	if got.body["sql_query"] != "SELECT COUNT(*) FROM t" || !strings.Contains(stdout.String(), "Counts rows.") {
		t.Fatalf("body = %#v stdout = %s", got.body, stdout.String())
	}
}

func TestRunReturnsErrorOnHTTPFailure(t *testing.T) {
	srv, _ := newRecordingServer(t, http.StatusBadRequest, `{"detail":"Query execution failed: no such table: t"}`)

	var stderr bytes.Buffer
	code := Run(context.Background(), []string{"--base-url", srv.URL, "execute", "SELECT * FROM t"}, Options{Stderr: &stderr})
	if code != 1 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr.String())
	}
	if !strings.Contains(stderr.String(), "http 400") || !strings.Contains(stderr.String(), "no such table") {
		t.Fatalf("stderr = %s", stderr.String())
	}
}

func TestRunUsageErrors(t *testing.T) {
	cases := [][]string{
		{},
		{"unknown"},
		{"translate"},
		{"--dialect", "oracle", "health"},
		{"health", "extra"},
	}
	for _, args := range cases {
		var stderr bytes.Buffer
		code := Run(context.Background(), args, Options{Stderr: &stderr})
		if code != 2 {
			t.Fatalf("args %q exit code = %d", args, code)
		}
		if stderr.Len() == 0 {
			t.Fatalf("args %q: expected usage output", args)
		}
	}
}

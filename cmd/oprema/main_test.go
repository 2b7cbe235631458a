package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/erazemk/oprema/internal/auth"
	"github.com/erazemk/oprema/internal/config"
	"github.com/erazemk/oprema/internal/metrics"
	"github.com/erazemk/oprema/internal/store"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLevelRouter(t *testing.T) {
	var stdout, stderr bytes.Buffer
	logger := slog.New(newLevelRouter(slog.LevelInfo, &stdout, &stderr)).With("component", "test")

	logger.Debug("hidden")
	logger.Info("hello")
	logger.Warn("careful")
	logger.Error("broken")

	out, errOut := stdout.String(), stderr.String()
	if strings.Contains(out, "hidden") || strings.Contains(errOut, "hidden") {
		t.Error("debug record should be dropped at info level")
	}
	if !strings.Contains(out, "hello") || !strings.Contains(out, "careful") {
		t.Errorf("expected info and warn on stdout, got %q", out)
	}
	if strings.Contains(out, "broken") {
		t.Error("error record should not go to stdout")
	}
	if !strings.Contains(errOut, "broken") || !strings.Contains(errOut, "component=test") {
		t.Errorf("expected error with attrs on stderr, got %q", errOut)
	}
}

func TestServerURL(t *testing.T) {
	tests := map[string]string{
		":3000":                 "http://localhost:3000",
		"0.0.0.0:8080":          "http://0.0.0.0:8080",
		"https://lab.example":   "https://lab.example",
		"http://localhost:3000": "http://localhost:3000",
	}
	for in, want := range tests {
		if got := serverURL(in); got != want {
			t.Errorf("serverURL(%q) = %q, want %q", in, got, want)
		}
	}
}

// writeConfig writes a config file whose data lives under the test's temp dir.
func writeConfig(t *testing.T, extra string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "oprema.yaml")
	body := "storage:\n  data_dir: " + filepath.Join(dir, "data") + "\n" +
		"server:\n  uploads_dir: " + filepath.Join(dir, "uploads") + "\n" + extra
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path, dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	path, _ := writeConfig(t, "")

	out, err := execute(t, "version", "--config", path)
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if out != "oprema dev\n" {
		t.Errorf("unexpected output %q", out)
	}
}

func TestInvalidConfigIsRejected(t *testing.T) {
	path, _ := writeConfig(t, "analytics:\n  default_preset: fortnight\n")

	if _, err := execute(t, "version", "--config", path); err == nil {
		t.Fatal("expected invalid preset to be rejected")
	}
}

func TestSeedAndTokenCommands(t *testing.T) {
	path, _ := writeConfig(t, "identity:\n  token_secret: s3cret\n")

	out, err := execute(t, "seed", "--config", path)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if !strings.Contains(out, "Sample data written") {
		t.Errorf("unexpected seed output %q", out)
	}

	out, err = execute(t, "seed", "--config", path)
	if err != nil {
		t.Fatalf("second seed: %v", err)
	}
	if !strings.Contains(out, "nothing written") {
		t.Errorf("unexpected second seed output %q", out)
	}

	out, err = execute(t, "token", "--config", path, "--user", "1")
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	claims, err := auth.ValidateToken("s3cret", strings.TrimSpace(out))
	if err != nil {
		t.Fatalf("validating minted token: %v", err)
	}
	if claims.UserID != 1 || claims.Login != "petrov" {
		t.Errorf("unexpected claims %+v", claims)
	}

	if _, err := execute(t, "token", "--config", path, "--user", "99"); err == nil {
		t.Error("expected unknown user to fail")
	}
}

func TestTokenCommandRequiresSecret(t *testing.T) {
	path, _ := writeConfig(t, "")

	if _, err := execute(t, "token", "--config", path, "--user", "1"); err == nil {
		t.Fatal("expected error without a token secret")
	}
}

func setupHandler(t *testing.T) (*httptest.Server, *config.Config) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Storage.DataDir = filepath.Join(dir, "data")
	cfg.Server.UploadsDir = filepath.Join(dir, "uploads")

	st, err := store.Open(cfg.StoreOptions())
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	if _, err := seedStore(context.Background(), st); err != nil {
		t.Fatalf("seeding: %v", err)
	}

	h, err := newHandler(cfg, st, metrics.New())
	if err != nil {
		t.Fatalf("building handler: %v", err)
	}
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)
	return server, cfg
}

func TestHandlerRoutes(t *testing.T) {
	server, _ := setupHandler(t)

	tests := []struct {
		path        string
		status      int
		contentType string
		contains    string
	}{
		{"/healthz", http.StatusOK, "application/json", `"ok":true`},
		{"/api/assets", http.StatusOK, "application/json", `"id":"5"`},
		{"/api/nope", http.StatusNotFound, "application/json", `"error":"not found"`},
		{"/dashboard", http.StatusOK, "text/html", "Осмометр Advanced 3320"},
		{"/static/style.css", http.StatusOK, "text/css", ".cards"},
		{"/metrics", http.StatusOK, "text/plain", "oprema_http_requests_total"},
	}
	for _, tt := range tests {
		resp, err := http.Get(server.URL + tt.path)
		if err != nil {
			t.Fatalf("GET %s: %v", tt.path, err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode != tt.status {
			t.Errorf("%s: expected %d, got %d", tt.path, tt.status, resp.StatusCode)
		}
		if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, tt.contentType) {
			t.Errorf("%s: expected content type %s, got %s", tt.path, tt.contentType, ct)
		}
		if !strings.Contains(string(body), tt.contains) {
			t.Errorf("%s: expected body to contain %q", tt.path, tt.contains)
		}
		if resp.Header.Get("X-Request-ID") == "" {
			t.Errorf("%s: missing X-Request-ID", tt.path)
		}
	}
}

func TestRemoteCommands(t *testing.T) {
	server, _ := setupHandler(t)
	path, dir := writeConfig(t, "")

	out, err := execute(t, "assets", "--config", path, "--server", server.URL)
	if err != nil {
		t.Fatalf("assets: %v", err)
	}
	if !strings.Contains(out, "Осмометр Advanced 3320") || !strings.HasPrefix(out, "ID") {
		t.Errorf("unexpected assets output %q", out)
	}

	out, err = execute(t, "claim", "5", "--config", path, "--server", server.URL)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if out != "Claimed 5 (Осмометр Advanced 3320).\n" {
		t.Errorf("unexpected claim output %q", out)
	}

	if _, err := execute(t, "claim", "5", "--config", path, "--server", server.URL); err == nil || !strings.Contains(err.Error(), "already busy") {
		t.Errorf("expected already busy, got %v", err)
	}

	out, err = execute(t, "release", "5", "--config", path, "--server", server.URL, "-w", "Ремонт", "-d", "замена датчика", "-p", "warning")
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if out != "Released 5: замена датчика • Проблема: предупреждение\n" {
		t.Errorf("unexpected release output %q", out)
	}

	out, err = execute(t, "show", "5", "--config", path, "--server", server.URL)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if !strings.Contains(out, "totals:  1 warnings, 0 alarms") || !strings.Contains(out, "Ремонт") {
		t.Errorf("unexpected show output %q", out)
	}

	target := filepath.Join(dir, "history.csv")
	if _, err := execute(t, "export", "5", "--config", path, "--server", server.URL, "--preset", "week", "-o", target); err != nil {
		t.Fatalf("export: %v", err)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("reading export: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("sep=;\r\n")) {
		t.Errorf("unexpected export %q", data[:min(len(data), 20)])
	}

	out, err = execute(t, "export", "5", "--config", path, "--server", server.URL, "--format", "pdf", "-o", "-")
	if err != nil {
		t.Fatalf("export to stdout: %v", err)
	}
	if !strings.HasPrefix(out, "%PDF") {
		t.Error("expected PDF on stdout")
	}
}

func TestHealthzBody(t *testing.T) {
	server, _ := setupHandler(t)

	resp, err := http.Get(server.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	var body map[string]bool
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if !body["ok"] {
		t.Errorf("unexpected body %v", body)
	}
}

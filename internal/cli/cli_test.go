package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"dispatch-cli/internal/store"
	"dispatch-cli/internal/web"
)

func runCLI(t *testing.T, stdin string, args ...string) (stdout []byte, stderr []byte, err error) {
	t.Helper()

	cmd := NewRootCmd()

	var outBuf bytes.Buffer
	var errBuf bytes.Buffer
	cmd.SetOut(&outBuf)
	cmd.SetErr(&errBuf)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	e := cmd.Execute()
	return outBuf.Bytes(), errBuf.Bytes(), e
}

// newSandbox serves a freshly seeded backend and returns its API base URL.
func newSandbox(t *testing.T, token string) string {
	t.Helper()
	t.Setenv("DISPATCH_CONFIG_DIR", t.TempDir())
	t.Setenv("DISPATCH_CONFIG", "")
	t.Setenv("DISPATCH_API_URL", "")
	t.Setenv("DISPATCH_TOKEN", "")
	t.Setenv("DISPATCH_FORMAT", "")

	ctx := context.Background()
	st, err := store.Open(ctx, filepath.Join(t.TempDir(), "sandbox.sqlite"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	if err := st.Save(ctx, store.Seed(time.Now())); err != nil {
		t.Fatalf("seed: %v", err)
	}
	srv, err := web.NewServer(web.ServerConfig{Store: st, Token: token})
	if err != nil {
		t.Fatalf("server: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.Close()
		ts.Close()
	})
	return ts.URL + "/api"
}

func mustData(t *testing.T, stdout, stderr []byte, err error) map[string]any {
	t.Helper()
	if err != nil {
		t.Fatalf("command failed: %v\nstderr:\n%s\nstdout:\n%s", err, stderr, stdout)
	}
	var env map[string]any
	if err := json.Unmarshal(stdout, &env); err != nil {
		t.Fatalf("unmarshal stdout as json envelope: %v\nstdout:\n%s", err, stdout)
	}
	data, ok := env["data"].(map[string]any)
	if !ok {
		t.Fatalf("expected data object; got: %#v", env["data"])
	}
	return data
}

func bucket(t *testing.T, data map[string]any, name string) []any {
	t.Helper()
	wos, _ := data["work_orders"].(map[string]any)
	list, ok := wos[name].([]any)
	if !ok {
		t.Fatalf("missing bucket %s in %#v", name, data["work_orders"])
	}
	return list
}

func idOf(v any) string {
	m, _ := v.(map[string]any)
	s, _ := m["id"].(string)
	return s
}

func TestSnapshot_JSONEnvelope(t *testing.T) {
	api := newSandbox(t, "")
	stdout, stderr, err := runCLI(t, "", "--api-url", api, "snapshot")
	data := mustData(t, stdout, stderr, err)

	if got := len(bucket(t, data, "unassigned")); got != 5 {
		t.Fatalf("expected 5 unassigned, got %d", got)
	}
	crews, _ := data["crews"].([]any)
	if len(crews) != 8 {
		t.Fatalf("expected 8 crews, got %d", len(crews))
	}
	summary, _ := data["summary"].(map[string]any)
	if summary["available_crews"] != float64(7) {
		t.Fatalf("unexpected summary: %#v", summary)
	}
}

func TestShow_TextAndNotFound(t *testing.T) {
	api := newSandbox(t, "")
	data := mustRunJSON(t, api, "snapshot")
	id := idOf(bucket(t, data, "unassigned")[0])

	stdout, stderr, err := runCLI(t, "", "--api-url", api, "--format", "text", "show", id)
	if err != nil {
		t.Fatalf("show: %v\n%s", err, stderr)
	}
	if !strings.Contains(string(stdout), "id        "+id) || !strings.Contains(string(stdout), "status    unassigned") {
		t.Fatalf("unexpected text output:\n%s", stdout)
	}

	_, stderr, err = runCLI(t, "", "--api-url", api, "show", "wo-missing")
	if err == nil || !strings.Contains(string(stderr), "work order not found: wo-missing") {
		t.Fatalf("expected not found error, got err=%v stderr=%s", err, stderr)
	}
}

func runCLIJSON(t *testing.T, api string, args ...string) ([]byte, []byte, error) {
	t.Helper()
	return runCLI(t, "", append([]string{"--api-url", api}, args...)...)
}

func mustRunJSON(t *testing.T, api string, args ...string) map[string]any {
	t.Helper()
	stdout, stderr, err := runCLIJSON(t, api, args...)
	return mustData(t, stdout, stderr, err)
}

func TestAssignThenUnassign(t *testing.T) {
	api := newSandbox(t, "")
	data := mustRunJSON(t, api, "snapshot")
	wo := idOf(bucket(t, data, "unassigned")[0])
	crews, _ := data["crews"].([]any)
	crew := idOf(crews[5])

	out := mustRunJSON(t, api, "assign", wo, crew, "--hours", "1.5")
	if out["work_order_id"] != wo || out["crew_id"] != crew || out["estimated_duration_hours"] != 1.5 {
		t.Fatalf("unexpected assign output: %#v", out)
	}
	if out["conflicts"] != float64(0) {
		t.Fatalf("expected no conflicts on an idle crew: %#v", out)
	}

	after := mustRunJSON(t, api, "snapshot")
	for _, v := range bucket(t, after, "unassigned") {
		if idOf(v) == wo {
			t.Fatalf("%s should have left the unassigned bucket", wo)
		}
	}

	msg := mustRunJSON(t, api, "unassign", wo)
	if msg["message"] != "Unassigned "+wo+"." {
		t.Fatalf("unexpected unassign output: %#v", msg)
	}
	final := mustRunJSON(t, api, "snapshot")
	found := false
	for _, v := range bucket(t, final, "unassigned") {
		found = found || idOf(v) == wo
	}
	if !found {
		t.Fatalf("%s should be unassigned again", wo)
	}
}

func TestOptimize_AsksBeforeAssigning(t *testing.T) {
	api := newSandbox(t, "")

	stdout, stderr, err := runCLI(t, "n\n", "--api-url", api, "optimize")
	data := mustData(t, stdout, stderr, err)
	if data["message"] != "Optimize cancelled." {
		t.Fatalf("unexpected output: %#v", data)
	}
	if !strings.Contains(string(stderr), "Auto-assign all unassigned work orders") {
		t.Fatalf("expected the prompt on stderr, got: %s", stderr)
	}
	before := mustRunJSON(t, api, "snapshot")
	if len(bucket(t, before, "unassigned")) != 5 {
		t.Fatalf("declined optimize must not change the board")
	}

	data = mustRunJSON(t, api, "optimize", "--yes")
	msg, _ := data["message"].(string)
	if !strings.HasPrefix(msg, "Assigned ") {
		t.Fatalf("unexpected optimize message: %q", msg)
	}
}

func TestTokenAndConfig(t *testing.T) {
	api := newSandbox(t, "s3cret")

	_, stderr, err := runCLIJSON(t, api, "snapshot")
	if err == nil || !strings.Contains(string(stderr), "401") {
		t.Fatalf("expected 401 without a token, got err=%v stderr=%s", err, stderr)
	}
	t.Setenv("DISPATCH_TOKEN", "s3cret")
	mustRunJSON(t, api, "snapshot")

	cfg := mustRunJSON(t, api, "config")
	if cfg["token"] != "********" || cfg["api_url"] != api {
		t.Fatalf("unexpected config output: %#v", cfg)
	}
	if ws, _ := cfg["ws_url"].(string); !strings.HasPrefix(ws, "ws://") || !strings.HasSuffix(ws, "/ws") {
		t.Fatalf("unexpected ws url: %v", cfg["ws_url"])
	}
}

func TestOutput_YAMLAndText(t *testing.T) {
	api := newSandbox(t, "")

	stdout, _, err := runCLIJSON(t, api, "--format", "yaml", "unassign", "wo-none")
	if err == nil {
		t.Fatalf("expected 404 for unknown work order, got:\n%s", stdout)
	}

	stdout, stderr, err := runCLIJSON(t, api, "--format", "text", "snapshot")
	if err != nil {
		t.Fatalf("snapshot: %v\n%s", err, stderr)
	}
	if !strings.Contains(string(stdout), "Unassigned (5)") {
		t.Fatalf("unexpected text snapshot:\n%s", stdout)
	}

	stdout, _, err = runCLIJSON(t, api, "--format", "yaml", "config")
	if err != nil || !strings.Contains(string(stdout), "data:\n") || !strings.Contains(string(stdout), "api_url: "+api) {
		t.Fatalf("unexpected yaml config (err=%v):\n%s", err, stdout)
	}
}

func TestExport_WritesBoardPages(t *testing.T) {
	api := newSandbox(t, "")
	dir := t.TempDir()

	data := mustRunJSON(t, api, "export", "--to", dir)
	written, _ := data["written"].([]any)
	if len(written) == 0 {
		t.Fatalf("expected written files, got %#v", data)
	}
	index, _ := written[0].(string)
	b, err := os.ReadFile(index)
	if err != nil {
		t.Fatalf("read index: %v", err)
	}
	if !strings.Contains(string(b), "# Dispatch board: ") || !strings.Contains(string(b), "](crews/") {
		t.Fatalf("unexpected index page:\n%s", b)
	}

	_, stderr, err := runCLIJSON(t, api, "export", "--to", dir)
	if err == nil || !strings.Contains(string(stderr), "--overwrite") {
		t.Fatalf("expected overwrite error, got err=%v stderr=%s", err, stderr)
	}
}

func TestDocs_TopicsAndRaw(t *testing.T) {
	t.Setenv("DISPATCH_CONFIG_DIR", t.TempDir())
	t.Setenv("DISPATCH_CONFIG", "")
	t.Setenv("DISPATCH_FORMAT", "")

	stdout, stderr, err := runCLI(t, "", "docs")
	data := mustData(t, stdout, stderr, err)
	topics, _ := data["topics"].([]any)
	if len(topics) == 0 || topics[0] != "board" {
		t.Fatalf("unexpected topics: %#v", data)
	}

	stdout, _, err = runCLI(t, "", "docs", "keys", "--raw")
	if err != nil || !strings.HasPrefix(string(stdout), "# Keys") {
		t.Fatalf("unexpected raw docs (err=%v):\n%s", err, stdout)
	}

	_, stderr, err = runCLI(t, "", "docs", "nope")
	if err == nil || !strings.Contains(string(stderr), "unknown docs topic") {
		t.Fatalf("expected unknown topic error, got err=%v stderr=%s", err, stderr)
	}
}

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const (
	TEST_SERVER_TIMEOUT = 30 * time.Second
	TEST_PASSWORD       = "correct horse battery"
)

// TestEndToEndWorkflow drives a built orbit binary through the local CLI and
// then the HTTP API against one sqlite database.
func TestEndToEndWorkflow(t *testing.T) {
	// 1. Setup Environment
	// Allow overriding bin dir via env var, default to ../../bin (relative to tests/e2e)
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get cwd: %v", err)
	}
	binDir := os.Getenv("ORBIT_BIN_DIR")
	if binDir == "" {
		binDir = filepath.Join(cwd, "..", "..", "bin")
	}
	binDir, _ = filepath.Abs(binDir)
	cliPath := filepath.Join(binDir, "orbit")
	if _, err := os.Stat(cliPath); os.IsNotExist(err) {
		t.Skipf("CLI binary not found at %s. Build it with: go build -o bin/orbit ./cmd/orbit", cliPath)
	}

	tempDir := t.TempDir()
	t.Logf("Running test in temp dir: %s", tempDir)

	// The config points both providers at a local Ollama URL; nothing in this
	// test talks to a model.
	configPath := filepath.Join(tempDir, "orbit.yaml")
	configYAML := fmt.Sprintf(`data_dir: %s
database:
  driver: sqlite
  dsn: %s
llm:
  interpret_provider: ollama
  extract_provider: ollama
`, tempDir, filepath.Join(tempDir, "orbit.db"))
	if err := os.WriteFile(configPath, []byte(configYAML), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	port := freePort(t)
	var cleanEnv []string
	for _, e := range os.Environ() {
		if !strings.HasPrefix(e, "HOME=") && !strings.HasPrefix(e, "ORBIT_") && !strings.HasPrefix(e, "GEMINI_API_KEY=") {
			cleanEnv = append(cleanEnv, e)
		}
	}
	cleanEnv = append(cleanEnv,
		fmt.Sprintf("HOME=%s", tempDir),
		fmt.Sprintf("ORBIT_CONFIG=%s", configPath),
		fmt.Sprintf("ORBIT_LISTEN=127.0.0.1:%d", port),
		"ORBIT_JWT_SECRET=e2e-secret",
		"ORBIT_USER=ada@example.com",
		"ORBIT_PASSWORD="+TEST_PASSWORD,
	)

	// 2. Local CLI workflow
	t.Log("Migrating database...")
	out := runCmd(t, cliPath, cleanEnv, "migrate")
	expectContains(t, out, "schema version")

	t.Log("Creating user...")
	out = runCmd(t, cliPath, cleanEnv, "user", "add", "--email", "ada@example.com", "--timezone", "UTC")
	expectContains(t, out, "Created user ada@example.com")

	t.Log("Adding habits...")
	out = runCmd(t, cliPath, cleanEnv, "habit", "add", "Read", "--every", "day", "--times", "1")
	expectContains(t, out, "Added habit: Read")
	runCmd(t, cliPath, cleanEnv, "habit", "add", "Ten pages", "--parent", "Read")

	t.Log("Logging habit...")
	out = runCmd(t, cliPath, cleanEnv, "habit", "log", "Read")
	expectContains(t, out, `Logged habit "Read"`)

	out = runCmd(t, cliPath, cleanEnv, "habit", "list")
	expectContains(t, out, "Read")
	expectContains(t, out, "Ten pages")

	out = runCmd(t, cliPath, cleanEnv, "doctor")
	expectContains(t, out, "Habit hierarchy")

	// 3. HTTP API against the same database
	t.Log("Starting server...")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serveCmd := exec.CommandContext(ctx, cliPath, "serve")
	serveCmd.Env = cleanEnv
	var stderrBuf bytes.Buffer
	serveCmd.Stdout = &stderrBuf
	serveCmd.Stderr = &stderrBuf
	if err := serveCmd.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	defer func() {
		cancel()
		_ = serveCmd.Wait()
		if t.Failed() {
			t.Logf("Server output: %s", stderrBuf.String())
		}
	}()

	baseURL := fmt.Sprintf("http://127.0.0.1:%d", port)
	waitForHealth(t, baseURL+"/api/health", TEST_SERVER_TIMEOUT)

	var login struct {
		Token string `json:"token"`
	}
	postJSON(t, baseURL+"/api/auth/login", "", map[string]string{
		"email":    "ada@example.com",
		"password": TEST_PASSWORD,
	}, http.StatusOK, &login)
	if login.Token == "" {
		t.Fatal("login returned an empty token")
	}

	var bulk struct {
		Results []struct {
			Status string `json:"status"`
		} `json:"results"`
	}
	postJSON(t, baseURL+"/api/bulk/habits", login.Token, map[string]any{
		"items": []map[string]any{
			{"title": "Stretch", "frequencyUnit": "day", "frequencyQuantity": 1},
			{"title": ""},
		},
	}, http.StatusOK, &bulk)
	if len(bulk.Results) != 2 || bulk.Results[0].Status != "success" || bulk.Results[1].Status != "failed" {
		t.Fatalf("unexpected bulk results: %+v", bulk.Results)
	}

	req, _ := http.NewRequest(http.MethodGet, baseURL+"/api/habits", nil)
	req.Header.Set("Authorization", "Bearer "+login.Token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Failed to list habits: %v", err)
	}
	defer resp.Body.Close()
	var habits []struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&habits); err != nil {
		t.Fatalf("Failed to decode habits: %v", err)
	}
	if len(habits) != 3 {
		t.Errorf("expected 3 habits after bulk create, got %d", len(habits))
	}
}

func runCmd(t *testing.T, path string, env []string, args ...string) string {
	t.Helper()
	cmd := exec.Command(path, args...)
	cmd.Env = env
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("Command %s %v failed: %v\nOutput: %s", path, args, err, out)
	}
	return string(out)
}

func expectContains(t *testing.T, out, want string) {
	t.Helper()
	if !strings.Contains(out, want) {
		t.Fatalf("expected output to contain %q, got:\n%s", want, out)
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to find a free port: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func waitForHealth(t *testing.T, url string, timeout time.Duration) {
	t.Helper()
	start := time.Now()
	for {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		if time.Since(start) > timeout {
			t.Fatalf("Timed out waiting for %s", url)
		}
		time.Sleep(100 * time.Millisecond)
	}
}

func postJSON(t *testing.T, url, token string, body any, wantStatus int, out any) {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("Failed to encode body: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST %s failed: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		t.Fatalf("POST %s: expected status %d, got %d", url, wantStatus, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
	}
}

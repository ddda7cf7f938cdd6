package e2e

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

const (
	startupTimeout = 10 * time.Second
	pollInterval   = 100 * time.Millisecond
	basePath       = "/workflow-manager"
)

const chainModel = `{
  "id": "Welding",
  "taskDescriptors": [
    {"id": "heat", "type": "set", "inputVariables": [{"name": "temp", "value": 420}]},
    {"id": "weld", "type": "operation", "dependencies": ["heat"]},
    {"id": "check", "type": "http", "dependencies": ["weld"]}
  ]
}`

// lockedBuffer is a thread-safe wrapper around bytes.Buffer.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (lb *lockedBuffer) Write(p []byte) (int, error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.buf.Write(p)
}

func (lb *lockedBuffer) String() string {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.buf.String()
}

// serverProc holds the running server subprocess and its output.
type serverProc struct {
	cmd    *exec.Cmd
	stdout *lockedBuffer
	url    string
}

var (
	binDir   string
	binMu    sync.Mutex
	binCache = map[string]string{}
)

// getBinary builds the command package pkg once per test run.
func getBinary(t *testing.T, pkg string) string {
	t.Helper()
	binMu.Lock()
	defer binMu.Unlock()

	if bin, ok := binCache[pkg]; ok {
		return bin
	}
	if binDir == "" {
		dir, err := os.MkdirTemp("", "mdt-workflow-e2e-*")
		if err != nil {
			t.Fatalf("mkdir temp: %v", err)
		}
		binDir = dir
	}

	binary := filepath.Join(binDir, filepath.Base(pkg))
	cmd := exec.Command("go", "build", "-o", binary, pkg)
	cmd.Dir = findRepoRoot(t)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("go build %s failed: %v\n%s", pkg, err, out)
	}
	binCache[pkg] = binary
	return binary
}

func findRepoRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find repo root")
		}
		dir = parent
	}
}

func startServer(t *testing.T) *serverProc {
	t.Helper()
	binary := getBinary(t, "./cmd/testserver")

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("find free port: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	stdout := &lockedBuffer{}
	cmd := exec.Command(binary)
	cmd.Env = append(os.Environ(), "MDT_WF_LISTEN_ADDR="+addr)
	cmd.Stdout = stdout
	cmd.Stderr = stdout

	if err := cmd.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}

	sp := &serverProc{
		cmd:    cmd,
		stdout: stdout,
		url:    "http://" + addr,
	}

	t.Cleanup(func() {
		cmd.Process.Kill()
		cmd.Wait()
	})

	deadline := time.Now().Add(startupTimeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(sp.url + "/healthz")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == 200 {
				return sp
			}
		}
		time.Sleep(pollInterval)
	}
	t.Fatalf("server did not become ready within %v\nstdout:\n%s", startupTimeout, stdout.String())
	return nil
}

func (sp *serverProc) do(t *testing.T, method, path, contentType, body string) (int, []byte) {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, sp.url+basePath+path, rdr)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, data
}

func TestWorkflowRoundTrip(t *testing.T) {
	sp := startServer(t)

	if status, body := sp.do(t, http.MethodPost, "/models", "application/json", chainModel); status != 201 {
		t.Fatalf("POST /models status = %d, want 201\nbody: %s", status, body)
	}

	status, body := sp.do(t, http.MethodPost, "/models/Welding/start", "", "")
	if status != 200 {
		t.Fatalf("start status = %d, want 200\nbody: %s", status, body)
	}
	var started struct {
		Name    string `json:"name"`
		ModelID string `json:"modelId"`
		Tasks   []struct {
			TaskID       string   `json:"taskId"`
			Status       string   `json:"status"`
			Dependencies []string `json:"dependencies"`
		} `json:"tasks"`
	}
	if err := json.Unmarshal(body, &started); err != nil {
		t.Fatalf("decode start response: %v", err)
	}
	if !strings.HasPrefix(started.Name, "welding-") {
		t.Errorf("name = %q, want welding- prefix", started.Name)
	}
	if started.ModelID != "Welding" {
		t.Errorf("modelId = %q, want Welding", started.ModelID)
	}
	if len(started.Tasks) != 3 {
		t.Fatalf("tasks = %d, want 3", len(started.Tasks))
	}
	if got := started.Tasks[2].Dependencies; len(got) != 1 || got[0] != "weld" {
		t.Errorf("check dependencies = %v, want [weld]", got)
	}

	if status, _ := sp.do(t, http.MethodGet, "/workflows/"+started.Name, "", ""); status != 200 {
		t.Errorf("GET workflow status = %d, want 200", status)
	}
	if status, _ := sp.do(t, http.MethodPut, "/workflows/"+started.Name+"/stop", "", ""); status != 204 {
		t.Errorf("stop status = %d, want 204", status)
	}

	status, body = sp.do(t, http.MethodDelete, "/workflows?modelFilter=welding", "", "")
	if status != 200 {
		t.Fatalf("remove all status = %d, want 200", status)
	}
	var report struct {
		Removed []string `json:"removed"`
	}
	if err := json.Unmarshal(body, &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if len(report.Removed) != 1 || report.Removed[0] != started.Name {
		t.Errorf("removed = %v, want [%s]", report.Removed, started.Name)
	}

	if status, _ := sp.do(t, http.MethodGet, "/workflows/"+started.Name, "", ""); status != 404 {
		t.Errorf("GET removed workflow status = %d, want 404", status)
	}
}

func TestMetricsExposed(t *testing.T) {
	sp := startServer(t)

	resp, err := http.Get(sp.url + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)
	body := string(bodyBytes)
	for _, name := range []string{"mdt_workflow_http_requests_total", "mdt_workflow_engine_requests_total"} {
		if !strings.Contains(body, name) {
			t.Errorf("metrics output missing %s", name)
		}
	}
}

func TestStructuredJSONLogs(t *testing.T) {
	sp := startServer(t)

	if status, _ := sp.do(t, http.MethodGet, "/models", "", ""); status != 200 {
		t.Fatalf("GET /models status = %d, want 200", status)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(sp.stdout.String(), basePath+"/models") {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	scanner := bufio.NewScanner(strings.NewReader(sp.stdout.String()))
	for scanner.Scan() {
		var entry map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue
		}
		if entry["msg"] == "request" && entry["path"] == basePath+"/models" {
			for _, key := range []string{"method", "status", "duration_ms", "request_id"} {
				if _, ok := entry[key]; !ok {
					t.Errorf("request log missing key %q", key)
				}
			}
			return
		}
	}
	t.Errorf("no request log line found\nstdout:\n%s", sp.stdout.String())
}

func TestScriptCommand(t *testing.T) {
	binary := getBinary(t, "./cmd/mdt-workflow")

	path := filepath.Join(t.TempDir(), "model.json")
	if err := os.WriteFile(path, []byte(chainModel), 0o600); err != nil {
		t.Fatalf("write model: %v", err)
	}

	out, err := exec.Command(binary, "script", path).CombinedOutput()
	if err != nil {
		t.Fatalf("script: %v\n%s", err, out)
	}
	for _, want := range []string{"kind: Workflow", "generateName: welding-", "entrypoint: dag"} {
		if !strings.Contains(string(out), want) {
			t.Errorf("script output missing %q", want)
		}
	}

	cyclic := fmt.Sprintf(`{"id":"loop","taskDescriptors":[%s,%s]}`,
		`{"id":"a","type":"copy","dependencies":["b"]}`,
		`{"id":"b","type":"copy","dependencies":["a"]}`)
	if err := os.WriteFile(path, []byte(cyclic), 0o600); err != nil {
		t.Fatalf("write model: %v", err)
	}
	if out, err := exec.Command(binary, "script", path).CombinedOutput(); err == nil {
		t.Errorf("script accepted a cyclic model\n%s", out)
	}
}

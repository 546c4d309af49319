package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/ansuz/internal/reconcile"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeRunner struct {
	mu      sync.Mutex
	calls   int
	dryRuns []bool
	report  *reconcile.Report
	err     error
	block   chan struct{} // when non-nil, Sync waits here
}

func (f *fakeRunner) Sync(_ context.Context, dryRun bool) (*reconcile.Report, error) {
	f.mu.Lock()
	f.calls++
	f.dryRuns = append(f.dryRuns, dryRun)
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	return f.report, f.err
}

func sampleReport() *reconcile.Report {
	return &reconcile.Report{
		IndexURL: "https://discourse.example.com/t/index/1",
		Records: []reconcile.ActionRecord{
			{URL: "https://discourse.example.com/t/intro/2", Path: "intro", Kind: reconcile.ActionCreate, Result: reconcile.ResultSuccess},
		},
	}
}

func newTestServer(t *testing.T, runner SyncRunner, authEnabled bool, token string) (*httptest.Server, *Service) {
	t.Helper()
	svc := NewService(runner, testLogger(), nil)
	srv := httptest.NewServer(NewRouter(svc, authEnabled, token, nil))
	t.Cleanup(srv.Close)
	return srv, svc
}

func TestGetStatus_NoRuns(t *testing.T) {
	srv, _ := newTestServer(t, &fakeRunner{}, false, "")

	resp, err := http.Get(srv.URL + "/status")
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var st Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.Running || st.LastRun != "" || st.IndexURL != "" {
		t.Errorf("expected empty status, got %+v", st)
	}
}

func TestTriggerSync_RecordsLastRun(t *testing.T) {
	runner := &fakeRunner{report: sampleReport()}
	srv, svc := newTestServer(t, runner, false, "")

	resp, err := http.Post(srv.URL+"/sync", "application/json", nil)
	if err != nil {
		t.Fatalf("post sync: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var out struct {
		IndexURL string            `json:"index_url"`
		Actions  map[string]string `json:"urls_with_actions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.IndexURL != "https://discourse.example.com/t/index/1" {
		t.Errorf("index url = %q", out.IndexURL)
	}
	if out.Actions["https://discourse.example.com/t/intro/2"] != "success" {
		t.Errorf("actions = %v", out.Actions)
	}

	st := svc.CurrentStatus()
	if st.IndexURL == "" || st.LastRun == "" {
		t.Errorf("status not recorded: %+v", st)
	}
}

func TestTriggerSync_DryRunFlag(t *testing.T) {
	runner := &fakeRunner{report: sampleReport()}
	srv, _ := newTestServer(t, runner, false, "")

	resp, err := http.Post(srv.URL+"/sync", "application/json", strings.NewReader(`{"dry_run":true}`))
	if err != nil {
		t.Fatalf("post sync: %v", err)
	}
	resp.Body.Close()

	runner.mu.Lock()
	defer runner.mu.Unlock()
	if len(runner.dryRuns) != 1 || !runner.dryRuns[0] {
		t.Errorf("dry run flag not passed through: %v", runner.dryRuns)
	}
}

func TestTriggerSync_ConflictWhileRunning(t *testing.T) {
	runner := &fakeRunner{report: sampleReport(), block: make(chan struct{})}
	srv, _ := newTestServer(t, runner, false, "")

	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		resp, err := http.Post(srv.URL+"/sync", "application/json", nil)
		if err == nil {
			resp.Body.Close()
		}
	}()

	// Wait until the first run is in flight.
	deadline := time.Now().Add(time.Second)
	for {
		runner.mu.Lock()
		calls := runner.calls
		runner.mu.Unlock()
		if calls == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("first sync never started")
		}
		time.Sleep(5 * time.Millisecond)
	}

	resp, err := http.Post(srv.URL+"/sync", "application/json", nil)
	if err != nil {
		t.Fatalf("second post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("second sync status = %d, want 409", resp.StatusCode)
	}

	close(runner.block)
	<-firstDone
}

func TestTriggerSync_RunError(t *testing.T) {
	runner := &fakeRunner{err: errors.New("forum unreachable")}
	srv, _ := newTestServer(t, runner, false, "")

	resp, err := http.Post(srv.URL+"/sync", "application/json", nil)
	if err != nil {
		t.Fatalf("post sync: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", resp.StatusCode)
	}

	var out struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.Contains(out.Error, "forum unreachable") {
		t.Errorf("error = %q", out.Error)
	}
}

func TestAuth_RejectsMissingToken(t *testing.T) {
	srv, _ := newTestServer(t, &fakeRunner{}, true, "secret")

	resp, err := http.Get(srv.URL + "/status")
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestAuth_AcceptsBearerToken(t *testing.T) {
	srv, _ := newTestServer(t, &fakeRunner{}, true, "secret")

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/status", nil)
	req.Header.Set("Authorization", "Bearer secret")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// TestRun_DemoOnce verifies the demo loop completes and Run returns
// Given: Options with a demo loop and Once
// When: Run is called
// Then: It returns nil after logging the finished loop
func TestRun_DemoOnce(t *testing.T) {
	// Arrange
	logs := &lockedBuffer{}
	opts := Options{
		Workers:      2,
		TickInterval: 5 * time.Millisecond,
		DemoItems:    100,
		Once:         true,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Act
	err := Run(ctx, opts, logs)

	// Assert
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if ctx.Err() != nil {
		t.Fatal("Run() only returned because the test deadline expired")
	}
	if !strings.Contains(logs.String(), "demo loop finished") {
		t.Errorf("logs = %q, want demo loop finished", logs.String())
	}
}

// TestRun_ServesMetrics verifies the Prometheus endpoint exposes scheduler series
func TestRun_ServesMetrics(t *testing.T) {
	ready := make(chan string, 1)
	opts := Options{
		Workers:       1,
		TickInterval:  5 * time.Millisecond,
		MetricsListen: "127.0.0.1:0",
		ready:         ready,
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, opts, io.Discard) }()

	var addr string
	select {
	case addr = <-ready:
	case err := <-done:
		t.Fatalf("Run() returned early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("metrics listener not ready")
	}

	var body string
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get("http://" + addr + "/metrics")
		if err == nil {
			b, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			body = string(b)
			if strings.Contains(body, "tickworker_pool_workers") {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run() error = %v", err)
	}
	if !strings.Contains(body, `tickworker_pool_workers{pool="workers"} 1`) {
		t.Errorf("metrics body missing pool gauge:\n%s", body)
	}
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tickworker.yaml")
	if err := os.WriteFile(path, []byte("workers: 3\ndefault_budget: 1ms\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(Options{ConfigPath: path, DefaultBudget: 2 * time.Millisecond})
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.Workers != 3 {
		t.Errorf("Workers = %d, want 3 from file", cfg.Workers)
	}
	if cfg.DefaultBudget.Std() != 2*time.Millisecond {
		t.Errorf("DefaultBudget = %v, want 2ms from flag", cfg.DefaultBudget)
	}

	if _, err := loadConfig(Options{ConfigPath: filepath.Join(t.TempDir(), "missing.yaml")}); err == nil {
		t.Error("loadConfig() with a missing file error = nil")
	}
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	root := newRootCommand()
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	if err := root.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != "tickworker dev" {
		t.Errorf("version output = %q, want %q", got, "tickworker dev")
	}
}

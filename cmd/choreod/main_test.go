package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Swind/choreo/internal/config"
	"github.com/Swind/choreo/stage"
	"github.com/Swind/choreo/transport"
	"github.com/prometheus/client_golang/prometheus"
)

func TestNewLogger_LevelAndFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, config.LogConfig{Level: "warn", Format: "json"}, false)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line logged at warn level: %s", out)
	}
	var line map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &line); err != nil {
		t.Fatalf("output is not one JSON line: %v (%s)", err, out)
	}
	if line["msg"] != "shown" || line["k"] != "v" {
		t.Errorf("line = %v", line)
	}

	buf.Reset()
	newLogger(&buf, config.LogConfig{Level: "error", Format: "text"}, true).Debug("dbg")
	if !strings.Contains(buf.String(), "msg=dbg") {
		t.Errorf("--debug should force debug level in text form, got %q", buf.String())
	}
}

// scriptedSource replays payloads once and then waits for ctx.
type scriptedSource struct {
	payloads []string
	mu       sync.Mutex
	closed   bool
}

func (s *scriptedSource) Listen(ctx context.Context, handler transport.Handler) error {
	for _, p := range s.payloads {
		handler([]byte(p))
	}
	<-ctx.Done()
	return nil
}

func (s *scriptedSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Metrics.Addr = ""
	cfg.Stage.GridWidth, cfg.Stage.GridHeight = 40, 20
	cfg.Stage.HexSize = 10
	cfg.Stage.UnlistenOnFullReveal = true
	return cfg
}

// TestService_UnlistensOnFullReveal verifies the wiring from payloads to the session
// Given: a source replaying a series, a marker, a status string and a full reveal
// When: the service runs with unlisten_on_full_reveal
// Then: Run returns on its own and the session saw the events
func TestService_UnlistensOnFullReveal(t *testing.T) {
	// Arrange
	cfg := testConfig()
	svc, err := newService(cfg, newLogger(io.Discard, cfg.Log, false), prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("newService failed: %v", err)
	}
	src := &scriptedSource{payloads: []string{
		`{"series":"series1","label":"Series 1"}`,
		`{"type":"marker","data":1}`,
		`Finished loop - restarting in 1 seconds`,
		`{"type":"reveal","data":1}`,
	}}
	svc.source = src

	// Act
	done := make(chan error, 1)
	go func() { done <- svc.Run(context.Background()) }()

	// Assert
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after the full reveal")
	}
	c := svc.session.Counters()
	if c.Sync != 1 || c.Series != "1" || c.SeriesLabel != "Series 1" {
		t.Errorf("counters = %+v", c)
	}
	if !src.closed {
		t.Error("source should be closed when Run returns")
	}
}

func TestStatusMux(t *testing.T) {
	cfg := testConfig()
	reg := prometheus.NewRegistry()
	svc, err := newService(cfg, newLogger(io.Discard, cfg.Log, false), reg)
	if err != nil {
		t.Fatalf("newService failed: %v", err)
	}
	if err := svc.session.HandleEvent(context.Background(), stage.Marker(1)); err != nil {
		t.Fatalf("HandleEvent failed: %v", err)
	}

	srv := httptest.NewServer(newStatusMux(reg, svc.session))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("/healthz = %v, %v", resp, err)
	}
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/status")
	if err != nil {
		t.Fatalf("/status failed: %v", err)
	}
	var status statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode /status: %v", err)
	}
	resp.Body.Close()
	if status.Counters.Sync != 1 {
		t.Errorf("status counters = %+v, want one marker", status.Counters)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err = http.Get(srv.URL + "/metrics")
		if err != nil {
			t.Fatalf("/metrics failed: %v", err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if strings.Contains(string(body), "choreo_task_duration_seconds") {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("/metrics missing task duration histogram:\n%s", body)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestNewSource(t *testing.T) {
	cfg := config.Default().Transport
	if _, err := newSource(cfg, nil); err != nil {
		t.Fatalf("mqtt source: %v", err)
	}
	cfg.Kind = "poll"
	cfg.Poll.URL = "http://localhost/events"
	src, err := newSource(cfg, nil)
	if err != nil {
		t.Fatalf("poll source: %v", err)
	}
	if _, ok := src.(*transport.PollSource); !ok {
		t.Errorf("source = %T, want *transport.PollSource", src)
	}
	cfg.Kind = "carrier-pigeon"
	if _, err := newSource(cfg, nil); err == nil {
		t.Error("unknown transport should fail")
	}
}

func TestNewApp_Commands(t *testing.T) {
	app := newApp()
	names := map[string]bool{}
	for _, cmd := range app.Commands {
		names[cmd.Name] = true
	}
	if !names["run"] || !names["emit"] {
		t.Fatalf("commands = %v, want run and emit", names)
	}
}

package core_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	core "github.com/Swind/choreo/core"
)

// =============================================================================
// Test Logger
// =============================================================================

type logLine struct {
	level  string
	msg    string
	fields map[string]any
}

// recordingLogger is a core.Logger that keeps every line.
type recordingLogger struct {
	mu    sync.Mutex
	lines []logLine
}

func (l *recordingLogger) add(level, msg string, fields []core.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	m := make(map[string]any, len(fields))
	for _, f := range fields {
		m[f.Key] = f.Value
	}
	l.lines = append(l.lines, logLine{level: level, msg: msg, fields: m})
}

func (l *recordingLogger) Debug(msg string, fields ...core.Field) { l.add("debug", msg, fields) }
func (l *recordingLogger) Info(msg string, fields ...core.Field)  { l.add("info", msg, fields) }
func (l *recordingLogger) Warn(msg string, fields ...core.Field)  { l.add("warn", msg, fields) }
func (l *recordingLogger) Error(msg string, fields ...core.Field) { l.add("error", msg, fields) }

func (l *recordingLogger) snapshot() []logLine {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]logLine(nil), l.lines...)
}

// =============================================================================
// Test Metrics
// =============================================================================

// recordingMetrics is a core.Metrics that keeps failure reasons and counts.
type recordingMetrics struct {
	core.NilMetrics

	mu        sync.Mutex
	durations int
	reasons   []string
	rejected  []string
}

func (m *recordingMetrics) RecordTaskDuration(queueName string, tier core.Tier, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.durations++
}

func (m *recordingMetrics) RecordTaskFailure(queueName string, tier core.Tier, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reasons = append(m.reasons, reason)
}

func (m *recordingMetrics) RecordProcessRejected(schedulerID string, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejected = append(m.rejected, reason)
}

func (m *recordingMetrics) snapshot() (int, []string, []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.durations, append([]string(nil), m.reasons...), append([]string(nil), m.rejected...)
}

// TestLoggingFailureHandler_IncludesStackForPanics verifies failure logging
// Given: a LoggingFailureHandler over a recording logger
// When: a plain error and a panic are reported
// Then: both are logged at warn level and only the panic carries a stack
func TestLoggingFailureHandler_IncludesStackForPanics(t *testing.T) {
	// Arrange
	logger := &recordingLogger{}
	handler := &core.LoggingFailureHandler{Logger: logger}
	record := core.TaskExecutionRecord{TaskID: core.GenerateTaskID(), Name: "reveal"}

	// Act
	handler.HandleTaskFailure(context.Background(), "low", record, errors.New("tile missing"))
	handler.HandleTaskFailure(context.Background(), "low", record, &core.PanicError{Value: "boom", Stack: []byte("goroutine 1")})

	// Assert
	lines := logger.snapshot()
	if len(lines) != 2 {
		t.Fatalf("logged %d lines, want 2", len(lines))
	}
	for _, l := range lines {
		if l.level != "warn" || l.fields["queue"] != "low" || l.fields["task"] != "reveal" {
			t.Errorf("line = %+v", l)
		}
	}
	if _, ok := lines[0].fields["stack"]; ok {
		t.Error("plain error should not log a stack")
	}
	if lines[1].fields["stack"] != "goroutine 1" {
		t.Errorf("panic stack = %v", lines[1].fields["stack"])
	}
}

func TestLoggingRejectedHandler(t *testing.T) {
	logger := &recordingLogger{}
	(&core.LoggingRejectedHandler{Logger: logger}).HandleRejected("s1", "locked")

	lines := logger.snapshot()
	if len(lines) != 1 || lines[0].level != "debug" || lines[0].fields["reason"] != "locked" {
		t.Fatalf("lines = %+v", lines)
	}
}

// TestSlogLogger_FieldsAndLevel verifies the slog adapter
// Given: a SlogLogger over a JSON handler at info level
// When: a debug and a warn line are logged with fields
// Then: only the warn line is written and its fields become attributes
func TestSlogLogger_FieldsAndLevel(t *testing.T) {
	// Arrange
	var buf bytes.Buffer
	logger := core.NewSlogLogger(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))

	// Act
	logger.Debug("hidden", core.F("k", 1))
	logger.Warn("stutter", core.F("rtt_ms", 640), core.F("queue", "low"))

	// Assert
	out := strings.TrimSpace(buf.String())
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line written at info level: %s", out)
	}
	var line map[string]any
	if err := json.Unmarshal([]byte(out), &line); err != nil {
		t.Fatalf("not a single JSON line: %v (%s)", err, out)
	}
	if line["msg"] != "stutter" || line["level"] != "WARN" || line["rtt_ms"] != float64(640) || line["queue"] != "low" {
		t.Errorf("line = %v", line)
	}
}

func TestDefaultLogger_Format(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Writer()
	log.SetOutput(&buf)
	defer log.SetOutput(prev)

	core.NewDefaultLogger().Info("flash", core.F("color", "#e55d87"), core.F("sync", 3))

	if !strings.Contains(buf.String(), "[INFO] flash {color: #e55d87, sync: 3}") {
		t.Errorf("output = %q", buf.String())
	}
}

// TestMetrics_FailureReasons verifies the reason labels reported for failures
// Given: a queue with one slot, a short task timeout and recording metrics
// When: an erroring, a panicking and a stalled task run
// Then: every task records a duration and the reasons are error, panic and timeout
func TestMetrics_FailureReasons(t *testing.T) {
	// Arrange
	metrics := &recordingMetrics{}
	q, err := core.NewQueue(core.QueueOptions{
		Name:        "low",
		MaxWorkers:  1,
		TaskTimeout: 30 * time.Millisecond,
		Metrics:     metrics,
	})
	if err != nil {
		t.Fatalf("NewQueue failed: %v", err)
	}
	q.Push(core.NewTask("err", func(ctx context.Context, _ ...any) error { return errors.New("bad") }, nil))
	q.Push(core.NewTask("panic", func(ctx context.Context, _ ...any) error { panic("bad") }, nil))
	release := make(chan struct{})
	defer close(release)
	q.Push(core.NewTask("stall", func(ctx context.Context, _ ...any) error {
		<-release
		return nil
	}, nil))

	// Act
	waitClosed(t, q.Process(), "failure cascade")

	// Assert
	durations, reasons, _ := metrics.snapshot()
	if durations != 3 {
		t.Errorf("durations recorded = %d, want 3", durations)
	}
	want := []string{"error", "panic", "timeout"}
	if strings.Join(reasons, ",") != strings.Join(want, ",") {
		t.Errorf("reasons = %v, want %v", reasons, want)
	}
	if stats := q.Stats(); stats.Failed != 3 || stats.LastTaskName != "stall" {
		t.Errorf("stats = %+v", stats)
	}
}

// TestMetrics_ProcessRejected verifies locked rejections reach metrics
func TestMetrics_ProcessRejected(t *testing.T) {
	metrics := &recordingMetrics{}
	s, err := core.NewPriorityScheduler(core.SchedulerConfig{Logger: core.NewNoOpLogger(), Metrics: metrics})
	if err != nil {
		t.Fatalf("NewPriorityScheduler failed: %v", err)
	}

	s.Lock()
	if _, err := s.Process(); !errors.Is(err, core.ErrSchedulerLocked) {
		t.Fatalf("Process err = %v, want ErrSchedulerLocked", err)
	}

	_, _, rejected := metrics.snapshot()
	if len(rejected) != 1 || rejected[0] != "locked" {
		t.Errorf("rejected = %v, want [locked]", rejected)
	}
	if s.Stats().Rejected != 1 {
		t.Errorf("Stats().Rejected = %d, want 1", s.Stats().Rejected)
	}
}

func TestDefaultSchedulerConfig(t *testing.T) {
	cfg := core.DefaultSchedulerConfig()
	if cfg.LowMaxWorkers != core.DefaultLowMaxWorkers {
		t.Errorf("LowMaxWorkers = %d, want %d", cfg.LowMaxWorkers, core.DefaultLowMaxWorkers)
	}
	if cfg.Logger == nil || cfg.Metrics == nil || cfg.FailureHandler == nil || cfg.RejectedHandler == nil {
		t.Errorf("default config has nil handlers: %+v", cfg)
	}
}

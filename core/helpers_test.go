package core_test

import (
	"context"
	"sync"
	"testing"
	"time"

	core "github.com/Swind/choreo/core"
)

const (
	eventually = 2 * time.Second
	quietly    = 50 * time.Millisecond
)

// step is an effect whose start can be observed and whose completion is
// controlled by the test.
type step struct {
	name    string
	log     *eventLog
	started chan struct{}
	release chan struct{}
	once    sync.Once
	err     error
}

func newStep(name string, log *eventLog) *step {
	return &step{
		name:    name,
		log:     log,
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (s *step) effect(ctx context.Context, args ...any) error {
	if s.log != nil {
		s.log.add("start:" + s.name)
	}
	close(s.started)
	<-s.release
	if s.log != nil {
		s.log.add("end:" + s.name)
	}
	return s.err
}

func (s *step) finish() {
	s.once.Do(func() { close(s.release) })
}

func (s *step) hasStarted() bool {
	select {
	case <-s.started:
		return true
	default:
		return false
	}
}

func waitStarted(t *testing.T, s *step) {
	t.Helper()
	select {
	case <-s.started:
	case <-time.After(eventually):
		t.Fatalf("step %s did not start", s.name)
	}
}

func assertNotStarted(t *testing.T, s *step) {
	t.Helper()
	select {
	case <-s.started:
		t.Fatalf("step %s started, want it to wait", s.name)
	case <-time.After(quietly):
	}
}

func waitClosed(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(eventually):
		t.Fatalf("%s did not settle", what)
	}
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(eventually)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// eventLog records effect starts and ends in the order they happen.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(e string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

func indexOf(events []string, e string) int {
	for i, got := range events {
		if got == e {
			return i
		}
	}
	return -1
}

// failureRecorder is a FailureHandler that keeps every reported failure.
type failureRecorder struct {
	mu      sync.Mutex
	errs    []error
	records []core.TaskExecutionRecord
}

func (r *failureRecorder) HandleTaskFailure(ctx context.Context, queueName string, record core.TaskExecutionRecord, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
	r.records = append(r.records, record)
}

func (r *failureRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.errs)
}

func (r *failureRecorder) errAt(i int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errs[i]
}

// rejectionRecorder is a RejectedHandler that counts rejections.
type rejectionRecorder struct {
	mu      sync.Mutex
	reasons []string
}

func (r *rejectionRecorder) HandleRejected(schedulerID string, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reasons = append(r.reasons, reason)
}

func (r *rejectionRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reasons)
}

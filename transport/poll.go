package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/Swind/choreo/core"
)

const (
	// DefaultPollInterval is the pause after each delivered payload.
	DefaultPollInterval = 300 * time.Millisecond
	// PollRetryDelay is the longest pause before re-polling after a non-2xx
	// answer. Intervals shorter than this are used instead.
	PollRetryDelay = 100 * time.Millisecond
)

// PollSource long-polls an HTTP endpoint. A 2xx body is one payload; any
// other status is polled again after a short retry delay.
type PollSource struct {
	url      string
	interval time.Duration
	retry    time.Duration
	client   *http.Client
	logger   core.Logger

	closeOnce sync.Once
	closed    chan struct{}
}

// NewPollSource creates a poll source. A nil client uses http.DefaultClient.
func NewPollSource(url string, interval time.Duration, client *http.Client, logger core.Logger) *PollSource {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = core.NewNoOpLogger()
	}
	retry := PollRetryDelay
	if interval < retry {
		retry = interval
	}
	return &PollSource{
		url:      url,
		interval: interval,
		retry:    retry,
		client:   client,
		logger:   logger,
		closed:   make(chan struct{}),
	}
}

// Listen polls until ctx ends or Close. A transport error ends Listen.
func (s *PollSource) Listen(ctx context.Context, handler Handler) error {
	select {
	case <-s.closed:
		return ErrClosed
	default:
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.closed:
			cancel()
		case <-ctx.Done():
		}
	}()

	s.logger.Info("polling for events", core.F("url", s.url), core.F("interval", s.interval))
	for {
		payload, ok, err := s.pollOnce(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return err
		}
		if !ok {
			if !sleepCtx(ctx, s.retry) {
				return nil
			}
			continue
		}
		if len(payload) > 0 {
			handler(payload)
		}
		if !sleepCtx(ctx, s.interval) {
			return nil
		}
	}
}

// sleepCtx waits for d and reports false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (s *PollSource) pollOnce(ctx context.Context) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("poll request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("poll %s: %w", s.url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("poll %s: read body: %w", s.url, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		s.logger.Debug("poll returned no event", core.F("status", resp.StatusCode))
		return nil, false, nil
	}
	return body, true, nil
}

// Close stops Listen.
func (s *PollSource) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

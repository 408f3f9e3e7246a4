package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/Swind/choreo/core"
	"github.com/Swind/choreo/stage"
)

// EmitterOptions paces the test script.
type EmitterOptions struct {
	// Step is the pause between two messages (default 500ms).
	Step time.Duration
	// Delay is the pause between two series in loop mode (default 1s).
	Delay time.Duration
	// Series is how many series one loop pass plays (default 4).
	Series int
	// Rounds bounds the loop passes; 0 loops until ctx ends.
	Rounds int
}

// Emitter publishes a scripted event sequence for exercising a listener.
type Emitter struct {
	pub    Publisher
	codec  stage.Codec
	opts   EmitterOptions
	logger core.Logger
}

// NewEmitter creates an emitter.
func NewEmitter(pub Publisher, codec stage.Codec, opts EmitterOptions, logger core.Logger) *Emitter {
	if opts.Step <= 0 {
		opts.Step = 500 * time.Millisecond
	}
	if opts.Delay <= 0 {
		opts.Delay = time.Second
	}
	if opts.Series <= 0 {
		opts.Series = 4
	}
	if logger == nil {
		logger = core.NewNoOpLogger()
	}
	return &Emitter{pub: pub, codec: codec, opts: opts, logger: logger}
}

// Once plays series1, marker 1 and reveal 0.1.
func (e *Emitter) Once(ctx context.Context) error {
	script := []stage.Event{stage.Series("series1", ""), stage.Marker(1), stage.Reveal(0.1)}
	for i, ev := range script {
		if i > 0 {
			if err := sleep(ctx, e.opts.Step); err != nil {
				return err
			}
		}
		if err := e.send(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

// Loop plays every series followed by ten marker/reveal pairs and an end,
// pass after pass.
func (e *Emitter) Loop(ctx context.Context) error {
	for round := 0; e.opts.Rounds == 0 || round < e.opts.Rounds; round++ {
		for i := 1; i <= e.opts.Series; i++ {
			e.logger.Info("sending series", core.F("series", i), core.F("round", round))
			if err := e.send(ctx, stage.Series(fmt.Sprintf("series%d", i), fmt.Sprintf("Series %d", i))); err != nil {
				return err
			}
			if err := sleep(ctx, e.opts.Step); err != nil {
				return err
			}
			for j := 1; j <= 10; j++ {
				if err := e.send(ctx, stage.Marker(j)); err != nil {
					return err
				}
				if err := sleep(ctx, e.opts.Step); err != nil {
					return err
				}
				if err := e.send(ctx, stage.Reveal(float64(j)/10)); err != nil {
					return err
				}
				if err := sleep(ctx, e.opts.Step); err != nil {
					return err
				}
			}
			if err := e.send(ctx, stage.End()); err != nil {
				return err
			}
			if err := sleep(ctx, e.opts.Delay); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Emitter) send(ctx context.Context, ev stage.Event) error {
	payload, err := e.codec.Encode(ev)
	if err != nil {
		return fmt.Errorf("encode %s: %w", ev, err)
	}
	if err := e.pub.Publish(ctx, payload); err != nil {
		return fmt.Errorf("publish %s: %w", ev, err)
	}
	e.logger.Debug("event sent", core.F("event", ev.String()))
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

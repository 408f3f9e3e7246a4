package stage

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/Swind/choreo/core"
	"github.com/lucasb-eyer/go-colorful"
)

// ErrRevealComplete is returned by HandleEvent once a reveal of the whole
// image has been queued. Callers may stop listening for the round.
var ErrRevealComplete = errors.New("reveal complete")

// SessionOptions configures a Session.
type SessionOptions struct {
	Grid    Grid
	Palette []colorful.Color
	// StutterRTT is the round trip time at or above which a stutter effect is
	// queued. Zero disables stutters.
	StutterRTT time.Duration
	// EndFlushTimeout bounds how long an end event waits for pending low
	// priority effects. Zero waits as long as the caller's context allows.
	EndFlushTimeout time.Duration
	Logger          core.Logger
}

// Counters is a snapshot of the round's progress.
type Counters struct {
	Sync           int
	Series         string
	SeriesLabel    string
	HasSeries      bool
	LastReveal     float64
	TilesTotal     int
	TilesRemaining int
}

// Session turns events into scheduled effects for one round on one surface.
type Session struct {
	scheduler *core.PriorityScheduler
	surface   Surface
	grid      Grid
	logger    core.Logger
	stutter   time.Duration
	endFlush  time.Duration

	mu          sync.Mutex
	revealTurn  *sync.Cond
	revealNext  uint64 // next ticket handed to a reveal push
	revealDone  uint64 // next ticket allowed to take tiles
	roundStart  uint64 // first ticket of the current round
	round       uint64 // bumped by every end of round
	palette     *Shuffled[colorful.Color]
	tiles       *Shuffled[Point]
	hasSeries   bool
	series      string
	seriesLabel string
	syncCount   int
	lastReveal  float64
}

// NewSession creates a session driving surface through scheduler.
func NewSession(scheduler *core.PriorityScheduler, surface Surface, opts SessionOptions) (*Session, error) {
	if scheduler == nil {
		return nil, fmt.Errorf("session needs a scheduler")
	}
	if surface == nil {
		return nil, fmt.Errorf("session needs a surface")
	}
	if opts.Grid.Len() == 0 {
		opts.Grid = DefaultGrid()
	}
	if len(opts.Palette) == 0 {
		p, err := Palette([]string{"#e55d87", "#5fc3e4"}, 4)
		if err != nil {
			return nil, err
		}
		opts.Palette = p
	}
	if opts.Logger == nil {
		opts.Logger = core.NewNoOpLogger()
	}

	s := &Session{
		scheduler: scheduler,
		surface:   surface,
		grid:      opts.Grid,
		logger:    opts.Logger,
		stutter:   opts.StutterRTT,
		endFlush:  opts.EndFlushTimeout,
		palette:   NewShuffled(opts.Palette),
	}
	s.revealTurn = sync.NewCond(&s.mu)
	return s, nil
}

// Scheduler returns the scheduler the session pushes to.
func (s *Session) Scheduler() *core.PriorityScheduler { return s.scheduler }

// HandleEvent schedules the effect for ev. It never waits for the effect to
// run, except for KindEnd which drains the round before resetting.
func (s *Session) HandleEvent(ctx context.Context, ev Event) error {
	switch ev.Kind {
	case KindMarker:
		s.scheduler.PushHighPriority("flash", s.flash, s, ev.Number)
		s.mu.Lock()
		s.syncCount++
		s.mu.Unlock()

	case KindReveal:
		s.mu.Lock()
		ticket := s.revealNext
		s.revealNext++
		s.scheduler.PushLowPriority("reveal", s.reveal, s, ev.Number, ticket)
		s.mu.Unlock()
		if ev.Number >= 1 {
			return ErrRevealComplete
		}

	case KindSeries:
		s.mu.Lock()
		first := !s.hasSeries
		s.hasSeries = true
		s.series = strings.Replace(ev.Text, "series", "", 1)
		s.seriesLabel = ev.Label
		round := s.round
		s.mu.Unlock()
		if first {
			phrase := strings.Replace(ev.Text, "series", "phrase", 1)
			s.scheduler.PushHighPriority("load-series", s.loadSeries, s, ev.Text, phrase, round)
		}

	case KindRTT, KindRoundTripTime:
		rtt := time.Duration(ev.Number * float64(time.Millisecond))
		s.logger.Info("round trip time", core.F("rtt", rtt))
		if s.stutter > 0 && rtt >= s.stutter && !s.scheduler.Busy() {
			s.scheduler.PushLowPriority("stutter", s.stutterEffect, s)
		}

	case KindEnd:
		return s.endRound(ctx)

	case KindMessage:
		s.logger.Info("message", core.F("text", ev.Text))

	default:
		s.logger.Warn("unknown event kind", core.F("kind", string(ev.Kind)), core.F("event", ev.String()))
	}
	return nil
}

// Counters returns a snapshot of the round's progress.
func (s *Session) Counters() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := Counters{
		Sync:        s.syncCount,
		Series:      s.series,
		SeriesLabel: s.seriesLabel,
		HasSeries:   s.hasSeries,
		LastReveal:  s.lastReveal,
	}
	if s.tiles != nil {
		c.TilesTotal = s.tiles.Len()
		c.TilesRemaining = s.tiles.Remaining()
	}
	return c
}

// endRound drains the low queue under the lock, clears the surface and
// forgets the round. Work queued meanwhile is started after the unlock.
func (s *Session) endRound(ctx context.Context) error {
	s.scheduler.Lock()
	flushCtx, cancel := ctx, context.CancelFunc(func() {})
	if s.endFlush > 0 {
		flushCtx, cancel = context.WithTimeout(ctx, s.endFlush)
	}
	flushErr := s.scheduler.Flush(flushCtx)
	cancel()
	resetErr := s.surface.Reset(ctx)

	s.mu.Lock()
	s.tiles = nil
	s.hasSeries = false
	s.series = ""
	s.seriesLabel = ""
	s.syncCount = 0
	s.lastReveal = 0
	s.revealDone = s.revealNext
	s.roundStart = s.revealNext
	s.round++
	s.revealTurn.Broadcast()
	s.palette.Reset()
	s.mu.Unlock()

	s.scheduler.Unlock()
	// A high cascade that settled during the lock resumed the low queue
	// without processing it.
	_, _ = s.scheduler.Process()

	if err := errors.Join(flushErr, resetErr); err != nil {
		return fmt.Errorf("end round: %w", err)
	}
	return nil
}

// ==== effects ====

func (s *Session) flash(ctx context.Context, args ...any) error {
	s.mu.Lock()
	color, ok := s.palette.TakeRandom()
	s.mu.Unlock()
	if !ok {
		return nil
	}
	return s.surface.Flash(ctx, color)
}

func (s *Session) loadSeries(ctx context.Context, args ...any) error {
	series, _ := args[0].(string)
	phrase, _ := args[1].(string)
	round, _ := args[2].(uint64)
	bounds, err := s.surface.LoadSeries(ctx, series, phrase)
	if err != nil {
		return fmt.Errorf("load series %s: %w", series, err)
	}
	tiles := NewShuffled(s.grid.Within(bounds))

	s.mu.Lock()
	if round != s.round {
		s.mu.Unlock()
		s.logger.Debug("series load outlived its round", core.F("series", series))
		return nil
	}
	s.tiles = tiles
	s.mu.Unlock()
	s.logger.Debug("series loaded", core.F("series", series), core.F("tiles", tiles.Len()))
	return nil
}

// reveal takes its batch in push order even though low priority tasks may
// start concurrently. Tickets left over from an ended round do nothing.
func (s *Session) reveal(ctx context.Context, args ...any) error {
	p, _ := args[0].(float64)
	ticket, _ := args[1].(uint64)

	s.mu.Lock()
	for ticket > s.revealDone {
		s.revealTurn.Wait()
	}
	if ticket == s.revealDone {
		s.revealDone++
		s.revealTurn.Broadcast()
	}
	if ticket < s.roundStart {
		s.mu.Unlock()
		return nil
	}
	var batch []Point
	if s.tiles != nil {
		n := revealCount(s.tiles.Len(), p, s.lastReveal)
		batch = s.tiles.Take(n)
	}
	s.lastReveal = p
	s.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}
	return s.surface.RevealTiles(ctx, batch)
}

func (s *Session) stutterEffect(ctx context.Context, args ...any) error {
	return s.surface.Stutter(ctx)
}

// revealCount is the number of tiles moving from last to p: the delta is
// rounded to two decimals, then scaled by the total and floored.
func revealCount(total int, p, last float64) int {
	delta := math.Round((p-last)*100) / 100
	n := int(math.Floor(float64(total) * delta))
	if n < 0 {
		return 0
	}
	return n
}

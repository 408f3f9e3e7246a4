// Package term renders stage effects as styled terminal lines.
package term

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/Swind/choreo/stage"
	"github.com/charmbracelet/lipgloss/v2"
	"github.com/lucasb-eyer/go-colorful"
)

// Durations are the logical lengths of each effect.
type Durations struct {
	Flash   time.Duration
	Reveal  time.Duration
	Stutter time.Duration
	Load    time.Duration
}

// DefaultDurations matches the animation timings of the browser stage.
func DefaultDurations() Durations {
	return Durations{
		Flash:   100 * time.Millisecond,
		Reveal:  1000 * time.Millisecond,
		Stutter: 150 * time.Millisecond,
	}
}

// ImageSize is the footprint of a loaded series.
type ImageSize struct {
	Width, Height float64
}

// Surface writes one line per effect to an io.Writer and holds the effect
// for its logical duration.
type Surface struct {
	out       io.Writer
	durations Durations
	image     ImageSize
	canvas    stage.Bounds

	mu       sync.Mutex
	revealed int

	title  lipgloss.Style
	muted  lipgloss.Style
	reveal lipgloss.Style
	warn   lipgloss.Style
}

// NewSurface creates a terminal surface. The series image is centred on a
// canvas the size of grid.
func NewSurface(out io.Writer, grid stage.Grid, durations Durations) *Surface {
	cells := grid.Centers()
	var canvas stage.Bounds
	for i, p := range cells {
		if i == 0 || p.X > canvas.Max.X {
			canvas.Max.X = p.X
		}
		if i == 0 || p.Y > canvas.Max.Y {
			canvas.Max.Y = p.Y
		}
	}
	return &Surface{
		out:       out,
		durations: durations,
		image:     ImageSize{Width: 600, Height: 200},
		canvas:    canvas,
		title:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")),
		muted:     lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		reveal:    lipgloss.NewStyle().Foreground(lipgloss.Color("86")),
		warn:      lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
}

// SetImageSize overrides the default 600x200 image footprint.
func (s *Surface) SetImageSize(size ImageSize) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.image = size
}

// LoadSeries announces the series and returns the image footprint centred on
// the canvas.
func (s *Surface) LoadSeries(ctx context.Context, series, phrase string) (stage.Bounds, error) {
	s.mu.Lock()
	size := s.image
	s.mu.Unlock()

	cx, cy := s.canvas.Max.X/2, s.canvas.Max.Y/2
	bounds := stage.Bounds{
		Min: stage.Point{X: cx - size.Width/2, Y: cy - size.Height/2},
		Max: stage.Point{X: cx + size.Width/2, Y: cy + size.Height/2},
	}
	s.println(s.title.Render(fmt.Sprintf("series %s", series)) + " " + s.muted.Render(phrase))
	return bounds, hold(ctx, s.durations.Load)
}

// Flash paints a full width bar in color.
func (s *Surface) Flash(ctx context.Context, color colorful.Color) error {
	bar := lipgloss.NewStyle().Background(lipgloss.Color(color.Hex())).Render("                                        ")
	s.println(bar + " " + s.muted.Render(color.Hex()))
	return hold(ctx, s.durations.Flash)
}

// RevealTiles reports the batch and the running total.
func (s *Surface) RevealTiles(ctx context.Context, tiles []stage.Point) error {
	s.mu.Lock()
	s.revealed += len(tiles)
	total := s.revealed
	s.mu.Unlock()

	s.println(s.reveal.Render(fmt.Sprintf("reveal +%d", len(tiles))) + " " + s.muted.Render(fmt.Sprintf("(%d shown)", total)))
	return hold(ctx, s.durations.Reveal)
}

// Stutter marks a slow round trip.
func (s *Surface) Stutter(ctx context.Context) error {
	s.println(s.warn.Render("~ stutter ~"))
	return hold(ctx, s.durations.Stutter)
}

// Reset clears the revealed count.
func (s *Surface) Reset(ctx context.Context) error {
	s.mu.Lock()
	s.revealed = 0
	s.mu.Unlock()
	s.println(s.muted.Render("---- round over ----"))
	return nil
}

// Revealed returns how many tiles have been shown this round.
func (s *Surface) Revealed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revealed
}

func (s *Surface) println(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.out, line)
}

func hold(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

package stage

import (
	"context"

	"github.com/lucasb-eyer/go-colorful"
)

// Point is a position on the stage.
type Point struct {
	X, Y float64
}

// Bounds is an axis aligned rectangle, usually the footprint of a loaded image.
type Bounds struct {
	Min, Max Point
}

// Contains reports whether p lies inside b, edges included.
func (b Bounds) Contains(p Point) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X && p.Y >= b.Min.Y && p.Y <= b.Max.Y
}

// Empty reports whether b has no area.
func (b Bounds) Empty() bool {
	return b.Max.X <= b.Min.X || b.Max.Y <= b.Min.Y
}

// Surface renders the visual effects. Each call returns when the effect has
// finished, which is what releases its scheduler slot.
type Surface interface {
	// LoadSeries shows the base and masking images of a series and returns
	// the footprint the reveal tiles are chosen from.
	LoadSeries(ctx context.Context, series, phrase string) (Bounds, error)
	Flash(ctx context.Context, color colorful.Color) error
	RevealTiles(ctx context.Context, tiles []Point) error
	Stutter(ctx context.Context) error
	Reset(ctx context.Context) error
}

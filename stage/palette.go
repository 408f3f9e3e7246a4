package stage

import (
	"fmt"

	"github.com/lucasb-eyer/go-colorful"
)

// Palette spreads size colours evenly along the path through the given stops,
// blending neighbouring stops in HCL space.
func Palette(stops []string, size int) ([]colorful.Color, error) {
	if len(stops) == 0 {
		return nil, fmt.Errorf("palette needs at least one colour")
	}
	if size < 1 {
		return nil, fmt.Errorf("palette size must be >= 1, got %d", size)
	}

	colors := make([]colorful.Color, len(stops))
	for i, hex := range stops {
		c, err := colorful.Hex(hex)
		if err != nil {
			return nil, fmt.Errorf("palette colour %q: %w", hex, err)
		}
		colors[i] = c
	}

	out := make([]colorful.Color, size)
	if size == 1 || len(colors) == 1 {
		for i := range out {
			out[i] = colors[0]
		}
		return out, nil
	}

	segments := float64(len(colors) - 1)
	for i := range out {
		pos := float64(i) / float64(size-1) * segments
		seg := int(pos)
		if seg >= len(colors)-1 {
			out[i] = colors[len(colors)-1]
			continue
		}
		out[i] = colors[seg].BlendHcl(colors[seg+1], pos-float64(seg)).Clamped()
	}
	return out, nil
}

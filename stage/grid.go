package stage

import "math"

// Grid is a rectangle of pointy-top hexagons laid out in offset rows, odd
// rows shifted right by half a hexagon.
type Grid struct {
	Width  int     // hexagons per row
	Height int     // rows
	Size   float64 // centre to corner
}

// DefaultGrid is the 200x200 grid of size 20 hexagons.
func DefaultGrid() Grid {
	return Grid{Width: 200, Height: 200, Size: 20}
}

// Len returns the number of hexagons in the grid.
func (g Grid) Len() int {
	if g.Width <= 0 || g.Height <= 0 {
		return 0
	}
	return g.Width * g.Height
}

// Center returns the centre of the hexagon at column col, row row.
func (g Grid) Center(col, row int) Point {
	w := math.Sqrt(3) * g.Size
	x := w/2 + float64(col)*w
	if row%2 == 1 {
		x += w / 2
	}
	y := g.Size + float64(row)*1.5*g.Size
	return Point{X: x, Y: y}
}

// Centers returns every hexagon centre, row by row.
func (g Grid) Centers() []Point {
	out := make([]Point, 0, g.Len())
	for row := 0; row < g.Height; row++ {
		for col := 0; col < g.Width; col++ {
			out = append(out, g.Center(col, row))
		}
	}
	return out
}

// Within returns the centres that fall inside b.
func (g Grid) Within(b Bounds) []Point {
	if b.Empty() {
		return nil
	}
	var out []Point
	for row := 0; row < g.Height; row++ {
		for col := 0; col < g.Width; col++ {
			if p := g.Center(col, row); b.Contains(p) {
				out = append(out, p)
			}
		}
	}
	return out
}

// Package geo provides 2D geometry for the desktop plane.
//
// All coordinates are desktop-relative pixels with the origin at the
// top-left corner. Vector math is delegated to gonum's r2 package;
// the exported types stay plain structs so they serialize cleanly
// into sessions and API responses.
package geo

import (
	"time"

	"gonum.org/v1/gonum/spatial/r2"
)

// Point is a position on the desktop plane.
type Point struct {
	X float64 `json:"x" toml:"x"`
	Y float64 `json:"y" toml:"y"`
}

func (p Point) vec() r2.Vec { return r2.Vec{X: p.X, Y: p.Y} }

// Dist returns the euclidean distance between two points.
func Dist(a, b Point) float64 {
	return r2.Norm(r2.Sub(b.vec(), a.vec()))
}

// Stroke is a polyline of desktop points.
type Stroke []Point

// Length returns the total path length of a stroke.
func (s Stroke) Length() float64 {
	var total float64
	for i := 1; i < len(s); i++ {
		total += Dist(s[i-1], s[i])
	}
	return total
}

// Rect is a window rectangle in desktop coordinates.
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the rectangle's center point.
func (r Rect) Center() Point {
	return Point{X: r.Left + r.Width/2, Y: r.Top + r.Height/2}
}

// ClampTo constrains r to fit inside bounds. Size is reduced first if
// the rectangle is larger than the desktop, then position is shifted so
// the whole rectangle stays visible.
func (r Rect) ClampTo(bounds Rect) Rect {
	out := r
	if out.Width > bounds.Width {
		out.Width = bounds.Width
	}
	if out.Height > bounds.Height {
		out.Height = bounds.Height
	}
	if out.Left < bounds.Left {
		out.Left = bounds.Left
	}
	if out.Top < bounds.Top {
		out.Top = bounds.Top
	}
	if out.Left+out.Width > bounds.Left+bounds.Width {
		out.Left = bounds.Left + bounds.Width - out.Width
	}
	if out.Top+out.Height > bounds.Top+bounds.Height {
		out.Top = bounds.Top + bounds.Height - out.Height
	}
	return out
}

// Contains reports whether p lies inside r.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.Left && p.X <= r.Left+r.Width &&
		p.Y >= r.Top && p.Y <= r.Top+r.Height
}

// Animation pacing: cursor travel speed in pixels per second, with a
// floor and cap so short hops stay visible and long sweeps stay snappy.
const (
	travelSpeed = 1200.0
	minTravel   = 80 * time.Millisecond
	maxTravel   = 900 * time.Millisecond
)

// TravelDuration maps a travel distance to an animation duration.
func TravelDuration(dist float64) time.Duration {
	d := time.Duration(dist / travelSpeed * float64(time.Second))
	if d < minTravel {
		return minTravel
	}
	if d > maxTravel {
		return maxTravel
	}
	return d
}

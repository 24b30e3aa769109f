// Package geometry converts between the 0-1000 normalized box space and
// device-pixel canvas space.
package geometry

import "math"

// Scale is the extent of the normalized coordinate space on both axes.
const Scale = 1000.0

// Rect is an axis-aligned rectangle. Depending on context its fields hold
// normalized units or pixels.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ToScreen maps a normalized rectangle onto a page rendered at pageW x pageH
// pixels and zoomed by scale.
func ToScreen(r Rect, pageW, pageH, scale float64) Rect {
	return Rect{
		X:      r.X / Scale * pageW * scale,
		Y:      r.Y / Scale * pageH * scale,
		Width:  r.Width / Scale * pageW * scale,
		Height: r.Height / Scale * pageH * scale,
	}
}

// ToNormalized is the inverse of ToScreen, rounded to whole normalized units.
func ToNormalized(screen Rect, pageW, pageH, scale float64) Rect {
	return Rect{
		X:      normalize(screen.X, pageW, scale),
		Y:      normalize(screen.Y, pageH, scale),
		Width:  normalize(screen.Width, pageW, scale),
		Height: normalize(screen.Height, pageH, scale),
	}
}

// NormalizedDelta converts a pointer movement in pixels into a movement in
// normalized units. Only the delta is converted, so the page origin does not
// matter.
func NormalizedDelta(dxPx, dyPx, pageW, pageH, scale float64) (dx, dy float64) {
	return normalize(dxPx, pageW, scale), normalize(dyPx, pageH, scale)
}

func normalize(px, pageDim, scale float64) float64 {
	return math.Round((px / scale) / pageDim * Scale)
}

// Contains reports whether the point lies inside r, edges included.
func (r Rect) Contains(px, py float64) bool {
	return px >= r.X && px <= r.X+r.Width && py >= r.Y && py <= r.Y+r.Height
}

// Center returns the midpoint of r.
func (r Rect) Center() (float64, float64) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

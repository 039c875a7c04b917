// Package canvas owns the fixed virtual coordinate space every layout is addressed in.
// Screen rendering may be at any size; only this package knows how pixels map to units.
package canvas

const (
	Width  = 1440.0
	Height = 810.0
)

// Scale is rendered pixels per canvas unit on each axis.
type Scale struct {
	X float64
	Y float64
}

// Identity is a canvas rendered at its native size.
var Identity = Scale{X: 1, Y: 1}

// ScaleFor returns the scale of a canvas rendered at renderedW x renderedH pixels.
// Non-positive sizes fall back to Identity.
func ScaleFor(renderedW, renderedH float64) Scale {
	if renderedW <= 0 || renderedH <= 0 {
		return Identity
	}
	return Scale{X: renderedW / Width, Y: renderedH / Height}
}

// ToUnits converts a pixel delta to a canvas delta.
func (s Scale) ToUnits(dxPx, dyPx float64) (float64, float64) {
	return dxPx / s.X, dyPx / s.Y
}

// ToPixels converts canvas units to rendered pixels.
func (s Scale) ToPixels(x, y float64) (float64, float64) {
	return x * s.X, y * s.Y
}

// Contains reports whether a point lies on the canvas. Dragging does not enforce it.
func Contains(x, y float64) bool {
	return x >= 0 && y >= 0 && x <= Width && y <= Height
}

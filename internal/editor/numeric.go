package editor

import (
	"math"
	"strconv"
	"strings"

	"papanskor/internal/scoreboard/model"
)

// Bounds is an inclusive numeric range.
type Bounds struct {
	Min float64
	Max float64
}

var (
	FontSizeBounds = Bounds{Min: 12, Max: 300}
	IconSizeBounds = Bounds{Min: 20, Max: 500}
)

// Clamp maps v into the range. NaN becomes Min.
func (b Bounds) Clamp(v float64) float64 {
	if math.IsNaN(v) || v < b.Min {
		return b.Min
	}
	if v > b.Max {
		return b.Max
	}
	return v
}

// BoundsFor returns the size bounds of an element: image size for logo and icons, font size otherwise.
func BoundsFor(el model.Element) Bounds {
	if model.IsSized(el) {
		return IconSizeBounds
	}
	return FontSizeBounds
}

// NumericInput is a text field that accepts anything while focused and clamps on blur.
type NumericInput struct {
	bounds Bounds
	value  float64
	text   string
}

func NewNumericInput(b Bounds, value float64) *NumericInput {
	v := b.Clamp(value)
	return &NumericInput{bounds: b, value: v, text: format(v)}
}

// Type replaces the raw text. No validation happens until Blur.
func (n *NumericInput) Type(text string) {
	n.text = text
}

func (n *NumericInput) Text() string {
	return n.text
}

func (n *NumericInput) Value() float64 {
	return n.value
}

// Blur parses and clamps the typed text. Unparseable or non-finite text restores the last value.
func (n *NumericInput) Blur() float64 {
	if v, err := strconv.ParseFloat(strings.TrimSpace(n.text), 64); err == nil && !math.IsNaN(v) && !math.IsInf(v, 0) {
		n.value = n.bounds.Clamp(v)
	}
	n.text = format(n.value)
	return n.value
}

func format(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

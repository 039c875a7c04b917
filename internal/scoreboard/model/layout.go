package model

import (
	"encoding/json"
	"fmt"
)

// Element is a positioned piece of the scoreboard.
type Element string

const (
	ElementTitle     Element = "title"
	ElementSubtitle  Element = "subtitle"
	ElementLogo      Element = "logo"
	ElementSideA     Element = "sideA"
	ElementSideB     Element = "sideB"
	ElementScoreA    Element = "scoreA"
	ElementScoreB    Element = "scoreB"
	ElementSideAIcon Element = "sideAIcon"
	ElementSideBIcon Element = "sideBIcon"
)

// Elements is the fixed key set of every layout.
var Elements = []Element{
	ElementTitle, ElementSubtitle, ElementLogo,
	ElementSideA, ElementSideB, ElementScoreA, ElementScoreB,
	ElementSideAIcon, ElementSideBIcon,
}

// IsElement reports whether e is one of the known layout keys.
func IsElement(e Element) bool {
	for _, k := range Elements {
		if k == e {
			return true
		}
	}
	return false
}

// IsSized reports whether the element is sized by width/height (images) rather than font size.
func IsSized(e Element) bool {
	return e == ElementLogo || e == ElementSideAIcon || e == ElementSideBIcon
}

// Position is in virtual canvas units. Zero FontSize/Width/Height means "not set".
type Position struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	FontSize float64 `json:"fontSize,omitempty"`
	Width    float64 `json:"width,omitempty"`
	Height   float64 `json:"height,omitempty"`
}

// Layout maps every element to its position.
type Layout map[Element]Position

// Clone copies the map.
func (l Layout) Clone() Layout {
	if l == nil {
		return nil
	}
	out := make(Layout, len(l))
	for k, v := range l {
		out[k] = v
	}
	return out
}

// Equal compares two layouts entry by entry.
func (l Layout) Equal(o Layout) bool {
	if len(l) != len(o) {
		return false
	}
	for k, v := range l {
		if ov, ok := o[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// Document types select a default layout template.
const (
	DocumentTypeClassic = "classic"
	DocumentTypeVersus  = "versus"
	DocumentTypeCompact = "compact"
)

var templates = map[string]Layout{
	DocumentTypeClassic: {
		ElementTitle:     {X: 720, Y: 90, FontSize: 64},
		ElementSubtitle:  {X: 720, Y: 160, FontSize: 32},
		ElementLogo:      {X: 720, Y: 300, Width: 160, Height: 160},
		ElementSideA:     {X: 360, Y: 300, FontSize: 48},
		ElementSideB:     {X: 1080, Y: 300, FontSize: 48},
		ElementScoreA:    {X: 360, Y: 520, FontSize: 180},
		ElementScoreB:    {X: 1080, Y: 520, FontSize: 180},
		ElementSideAIcon: {X: 360, Y: 190, Width: 96, Height: 96},
		ElementSideBIcon: {X: 1080, Y: 190, Width: 96, Height: 96},
	},
	DocumentTypeVersus: {
		ElementTitle:     {X: 720, Y: 70, FontSize: 56},
		ElementSubtitle:  {X: 720, Y: 740, FontSize: 28},
		ElementLogo:      {X: 720, Y: 405, Width: 120, Height: 120},
		ElementSideA:     {X: 300, Y: 200, FontSize: 56},
		ElementSideB:     {X: 1140, Y: 200, FontSize: 56},
		ElementScoreA:    {X: 300, Y: 450, FontSize: 220},
		ElementScoreB:    {X: 1140, Y: 450, FontSize: 220},
		ElementSideAIcon: {X: 300, Y: 640, Width: 120, Height: 120},
		ElementSideBIcon: {X: 1140, Y: 640, Width: 120, Height: 120},
	},
	DocumentTypeCompact: {
		ElementTitle:     {X: 720, Y: 60, FontSize: 40},
		ElementSubtitle:  {X: 720, Y: 110, FontSize: 24},
		ElementLogo:      {X: 80, Y: 80, Width: 80, Height: 80},
		ElementSideA:     {X: 520, Y: 405, FontSize: 40},
		ElementSideB:     {X: 920, Y: 405, FontSize: 40},
		ElementScoreA:    {X: 620, Y: 405, FontSize: 96},
		ElementScoreB:    {X: 820, Y: 405, FontSize: 96},
		ElementSideAIcon: {X: 420, Y: 405, Width: 64, Height: 64},
		ElementSideBIcon: {X: 1020, Y: 405, Width: 64, Height: 64},
	},
}

// NormalizeDocumentType maps unknown or empty types to classic.
func NormalizeDocumentType(t string) string {
	if _, ok := templates[t]; ok {
		return t
	}
	return DocumentTypeClassic
}

// DefaultLayout returns a fresh copy of the template for the document type.
func DefaultLayout(docType string) Layout {
	return templates[NormalizeDocumentType(docType)].Clone()
}

// ResolveLayout fills missing elements and unset sizes from the template, and drops unknown keys.
func ResolveLayout(docType string, l Layout) Layout {
	out := DefaultLayout(docType)
	for k, p := range l {
		def, ok := out[k]
		if !ok {
			continue
		}
		if p.FontSize == 0 {
			p.FontSize = def.FontSize
		}
		if p.Width == 0 {
			p.Width = def.Width
		}
		if p.Height == 0 {
			p.Height = def.Height
		}
		out[k] = p
	}
	return out
}

// PositionEdit is a layout entry as written by a client: absent keys stay nil.
type PositionEdit struct {
	X        *float64 `json:"x"`
	Y        *float64 `json:"y"`
	FontSize *float64 `json:"fontSize"`
	Width    *float64 `json:"width"`
	Height   *float64 `json:"height"`
}

// LayoutEdit is a partial layout.
type LayoutEdit map[Element]PositionEdit

// Apply merges the edit field by field onto a copy of base. Unknown elements are dropped,
// and zero or absent sizes keep the base size.
func (e LayoutEdit) Apply(base Layout) Layout {
	out := base.Clone()
	if out == nil {
		out = Layout{}
	}
	for k, p := range e {
		if !IsElement(k) {
			continue
		}
		pos := out[k]
		if p.X != nil {
			pos.X = *p.X
		}
		if p.Y != nil {
			pos.Y = *p.Y
		}
		setSize(&pos.FontSize, p.FontSize)
		setSize(&pos.Width, p.Width)
		setSize(&pos.Height, p.Height)
		out[k] = pos
	}
	return out
}

// ParseLayout decodes a stored layout column, merging each partial entry field by field
// against the template. Empty or null input yields the template.
func ParseLayout(docType string, raw []byte) (Layout, error) {
	out := DefaultLayout(docType)
	if len(raw) == 0 || string(raw) == "null" {
		return out, nil
	}
	var edit LayoutEdit
	if err := json.Unmarshal(raw, &edit); err != nil {
		return out, fmt.Errorf("parse layout: %w", err)
	}
	return edit.Apply(out), nil
}

// setSize keeps the existing size when the new one is absent or zero.
func setSize(dst *float64, v *float64) {
	if v != nil && *v > 0 {
		*dst = *v
	}
}

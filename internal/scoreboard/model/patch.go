package model

import (
	"time"
)

// Patch is a partial scoreboard. A nil field is absent and must be left untouched.
// ID, Version and LastModifiedAt are server-assigned and only travel on remote snapshots.
type Patch struct {
	ID              *string    `json:"id,omitempty"`
	Title           *string    `json:"title,omitempty"`
	Subtitle        *string    `json:"subtitle,omitempty"`
	SideALabel      *string    `json:"sideALabel,omitempty"`
	SideBLabel      *string    `json:"sideBLabel,omitempty"`
	SideAScore      *int       `json:"sideAScore,omitempty"`
	SideBScore      *int       `json:"sideBScore,omitempty"`
	Style           *string    `json:"style,omitempty"`
	TitleVisible    *bool      `json:"titleVisible,omitempty"`
	CenterTextColor *string    `json:"centerTextColor,omitempty"`
	LogoURL         *string    `json:"logoUrl,omitempty"`
	DocumentType    *string    `json:"documentType,omitempty"`
	SideAIcon       *string    `json:"sideAIcon,omitempty"`
	SideBIcon       *string    `json:"sideBIcon,omitempty"`
	Layout          Layout     `json:"layout,omitempty"`
	Version         *int64     `json:"version,omitempty"`
	LastModifiedAt  *time.Time `json:"lastModifiedAt,omitempty"`
}

// Fields lists the editable fields present in the patch.
func (p Patch) Fields() []Field {
	var out []Field
	add := func(present bool, f Field) {
		if present {
			out = append(out, f)
		}
	}
	add(p.Title != nil, FieldTitle)
	add(p.Subtitle != nil, FieldSubtitle)
	add(p.SideALabel != nil, FieldSideALabel)
	add(p.SideBLabel != nil, FieldSideBLabel)
	add(p.SideAScore != nil, FieldSideAScore)
	add(p.SideBScore != nil, FieldSideBScore)
	add(p.Style != nil, FieldStyle)
	add(p.TitleVisible != nil, FieldTitleVisible)
	add(p.CenterTextColor != nil, FieldCenterTextColor)
	add(p.LogoURL != nil, FieldLogoURL)
	add(p.DocumentType != nil, FieldDocumentType)
	add(p.SideAIcon != nil, FieldSideAIcon)
	add(p.SideBIcon != nil, FieldSideBIcon)
	add(p.Layout != nil, FieldLayout)
	return out
}

// IsEmpty reports whether no editable field is present.
func (p Patch) IsEmpty() bool {
	return len(p.Fields()) == 0
}

// Has reports whether field f is present.
func (p Patch) Has(f Field) bool {
	for _, pf := range p.Fields() {
		if pf == f {
			return true
		}
	}
	return false
}

// Merge overlays next onto p; fields present in next win.
func (p Patch) Merge(next Patch) Patch {
	out := p
	if next.Title != nil {
		out.Title = next.Title
	}
	if next.Subtitle != nil {
		out.Subtitle = next.Subtitle
	}
	if next.SideALabel != nil {
		out.SideALabel = next.SideALabel
	}
	if next.SideBLabel != nil {
		out.SideBLabel = next.SideBLabel
	}
	if next.SideAScore != nil {
		out.SideAScore = next.SideAScore
	}
	if next.SideBScore != nil {
		out.SideBScore = next.SideBScore
	}
	if next.Style != nil {
		out.Style = next.Style
	}
	if next.TitleVisible != nil {
		out.TitleVisible = next.TitleVisible
	}
	if next.CenterTextColor != nil {
		out.CenterTextColor = next.CenterTextColor
	}
	if next.LogoURL != nil {
		out.LogoURL = next.LogoURL
	}
	if next.DocumentType != nil {
		out.DocumentType = next.DocumentType
	}
	if next.SideAIcon != nil {
		out.SideAIcon = next.SideAIcon
	}
	if next.SideBIcon != nil {
		out.SideBIcon = next.SideBIcon
	}
	if next.Layout != nil {
		out.Layout = next.Layout.Clone()
	}
	if next.Version != nil {
		out.Version = next.Version
	}
	if next.LastModifiedAt != nil {
		out.LastModifiedAt = next.LastModifiedAt
	}
	return out
}

// Without returns a copy of p with the given fields removed.
func (p Patch) Without(fields ...Field) Patch {
	out := p
	for _, f := range fields {
		switch f {
		case FieldTitle:
			out.Title = nil
		case FieldSubtitle:
			out.Subtitle = nil
		case FieldSideALabel:
			out.SideALabel = nil
		case FieldSideBLabel:
			out.SideBLabel = nil
		case FieldSideAScore:
			out.SideAScore = nil
		case FieldSideBScore:
			out.SideBScore = nil
		case FieldStyle:
			out.Style = nil
		case FieldTitleVisible:
			out.TitleVisible = nil
		case FieldCenterTextColor:
			out.CenterTextColor = nil
		case FieldLogoURL:
			out.LogoURL = nil
		case FieldDocumentType:
			out.DocumentType = nil
		case FieldSideAIcon:
			out.SideAIcon = nil
		case FieldSideBIcon:
			out.SideBIcon = nil
		case FieldLayout:
			out.Layout = nil
		}
	}
	return out
}

// Only returns the subset of the full row s restricted to fields.
func Only(s Scoreboard, fields ...Field) Patch {
	full := s.AsPatch()
	keep := make(map[Field]bool, len(fields))
	for _, f := range fields {
		keep[f] = true
	}
	var drop []Field
	for _, f := range full.Fields() {
		if !keep[f] {
			drop = append(drop, f)
		}
	}
	out := full.Without(drop...)
	out.ID, out.Version, out.LastModifiedAt = nil, nil, nil
	return out
}

// ApplyTo overwrites every present field of s and returns the fields that were present.
// Scores are clamped at zero; layouts are resolved against the (possibly new) document type.
func (p Patch) ApplyTo(s *Scoreboard) []Field {
	if p.Title != nil {
		s.Title = *p.Title
	}
	if p.Subtitle != nil {
		s.Subtitle = *p.Subtitle
	}
	if p.SideALabel != nil {
		s.SideALabel = *p.SideALabel
	}
	if p.SideBLabel != nil {
		s.SideBLabel = *p.SideBLabel
	}
	if p.SideAScore != nil {
		s.SideAScore = ClampScore(*p.SideAScore)
	}
	if p.SideBScore != nil {
		s.SideBScore = ClampScore(*p.SideBScore)
	}
	if p.Style != nil {
		s.Style = *p.Style
	}
	if p.TitleVisible != nil {
		s.TitleVisible = *p.TitleVisible
	}
	if p.CenterTextColor != nil {
		s.CenterTextColor = *p.CenterTextColor
	}
	if p.LogoURL != nil {
		s.LogoURL = *p.LogoURL
	}
	if p.DocumentType != nil {
		s.DocumentType = NormalizeDocumentType(*p.DocumentType)
	}
	if p.SideAIcon != nil {
		s.SideAIcon = *p.SideAIcon
	}
	if p.SideBIcon != nil {
		s.SideBIcon = *p.SideBIcon
	}
	if p.Layout != nil {
		s.Layout = ResolveLayout(s.DocumentType, p.Layout)
	} else if p.DocumentType != nil {
		s.Layout = ResolveLayout(s.DocumentType, s.Layout)
	}
	if p.Version != nil {
		s.Version = *p.Version
	}
	if p.LastModifiedAt != nil {
		s.LastModifiedAt = *p.LastModifiedAt
	}
	return p.Fields()
}

// Groups returns the distinct field groups touched by the patch.
func (p Patch) Groups() []FieldGroup {
	seen := map[FieldGroup]bool{}
	var out []FieldGroup
	for _, f := range p.Fields() {
		g := GroupOf(f)
		if !seen[g] {
			seen[g] = true
			out = append(out, g)
		}
	}
	return out
}

// Ptr is a helper for building patches.
func Ptr[T any](v T) *T {
	return &v
}

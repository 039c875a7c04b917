package model

import (
	"time"
)

// Field names a single editable column of a scoreboard.
type Field string

const (
	FieldTitle           Field = "title"
	FieldSubtitle        Field = "subtitle"
	FieldSideALabel      Field = "sideALabel"
	FieldSideBLabel      Field = "sideBLabel"
	FieldSideAScore      Field = "sideAScore"
	FieldSideBScore      Field = "sideBScore"
	FieldStyle           Field = "style"
	FieldTitleVisible    Field = "titleVisible"
	FieldCenterTextColor Field = "centerTextColor"
	FieldLogoURL         Field = "logoUrl"
	FieldDocumentType    Field = "documentType"
	FieldSideAIcon       Field = "sideAIcon"
	FieldSideBIcon       Field = "sideBIcon"
	FieldLayout          Field = "layout"
)

// FieldGroup is the unit of debounced persistence. One flush writes one group.
type FieldGroup string

const (
	GroupTitle      FieldGroup = "title"
	GroupSubtitle   FieldGroup = "subtitle"
	GroupSideALabel FieldGroup = "sideALabel"
	GroupSideBLabel FieldGroup = "sideBLabel"
	GroupSideAScore FieldGroup = "sideAScore"
	GroupSideBScore FieldGroup = "sideBScore"
	GroupAppearance FieldGroup = "appearance" // style, colors, document type
	GroupAssets     FieldGroup = "assets"     // logo and icons
	GroupLayout     FieldGroup = "layout"     // layout + visible state, written together with history
)

// GroupOf returns the field group a field is persisted with.
func GroupOf(f Field) FieldGroup {
	switch f {
	case FieldTitle:
		return GroupTitle
	case FieldSubtitle:
		return GroupSubtitle
	case FieldSideALabel:
		return GroupSideALabel
	case FieldSideBLabel:
		return GroupSideBLabel
	case FieldSideAScore:
		return GroupSideAScore
	case FieldSideBScore:
		return GroupSideBScore
	case FieldLogoURL, FieldSideAIcon, FieldSideBIcon:
		return GroupAssets
	case FieldLayout, FieldTitleVisible:
		return GroupLayout
	default:
		return GroupAppearance
	}
}

// Side selects one of the two competitors.
type Side string

const (
	SideA Side = "A"
	SideB Side = "B"
)

// Scoreboard is one durable row. Empty text fields mean "unset".
type Scoreboard struct {
	ID              string    `json:"id"`
	OwnerID         string    `json:"ownerId"`
	Title           string    `json:"title"`
	Subtitle        string    `json:"subtitle"`
	SideALabel      string    `json:"sideALabel"`
	SideBLabel      string    `json:"sideBLabel"`
	SideAScore      int       `json:"sideAScore"`
	SideBScore      int       `json:"sideBScore"`
	Style           string    `json:"style"`
	TitleVisible    bool      `json:"titleVisible"`
	CenterTextColor string    `json:"centerTextColor"`
	LogoURL         string    `json:"logoUrl"`
	DocumentType    string    `json:"documentType"`
	SideAIcon       string    `json:"sideAIcon"`
	SideBIcon       string    `json:"sideBIcon"`
	Layout          Layout    `json:"layout"`
	Version         int64     `json:"version"`
	LastModifiedAt  time.Time `json:"lastModifiedAt"`
	ViewToken       string    `json:"viewToken,omitempty"`
	ControlToken    string    `json:"controlToken,omitempty"`
}

// Clone returns a deep copy; Layout is the only reference-typed field.
func (s Scoreboard) Clone() Scoreboard {
	s.Layout = s.Layout.Clone()
	return s
}

// DisplayTitle returns the title or its fallback.
func (s Scoreboard) DisplayTitle() string {
	return fallback(s.Title, "Scoreboard")
}

// DisplayLabel returns the side label or its fallback.
func (s Scoreboard) DisplayLabel(side Side) string {
	if side == SideA {
		return fallback(s.SideALabel, "Home")
	}
	return fallback(s.SideBLabel, "Away")
}

// Score returns the score of the given side.
func (s Scoreboard) Score(side Side) int {
	if side == SideA {
		return s.SideAScore
	}
	return s.SideBScore
}

// AsPatch returns a patch in which every field of the row is present.
func (s Scoreboard) AsPatch() Patch {
	c := s.Clone()
	return Patch{
		ID:              &c.ID,
		Title:           &c.Title,
		Subtitle:        &c.Subtitle,
		SideALabel:      &c.SideALabel,
		SideBLabel:      &c.SideBLabel,
		SideAScore:      &c.SideAScore,
		SideBScore:      &c.SideBScore,
		Style:           &c.Style,
		TitleVisible:    &c.TitleVisible,
		CenterTextColor: &c.CenterTextColor,
		LogoURL:         &c.LogoURL,
		DocumentType:    &c.DocumentType,
		SideAIcon:       &c.SideAIcon,
		SideBIcon:       &c.SideBIcon,
		Layout:          c.Layout,
		Version:         &c.Version,
		LastModifiedAt:  &c.LastModifiedAt,
	}
}

// ClampScore keeps a score non-negative.
func ClampScore(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

func fallback(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// VisibleState is the visibility half of a history snapshot.
type VisibleState struct {
	TitleVisible bool `json:"titleVisible"`
}

type CreateScoreboardRequest struct {
	Title        string `json:"title"`
	DocumentType string `json:"documentType"`
}

type CreateScoreboardResponse struct {
	ID           string `json:"id"`
	ViewToken    string `json:"viewToken"`
	ControlToken string `json:"controlToken"`
}

// ShareAccess is what a share token grants.
type ShareAccess string

const (
	ShareView    ShareAccess = "view"
	ShareControl ShareAccess = "control"
)

type ShareResolution struct {
	DocumentID string      `json:"documentId"`
	Access     ShareAccess `json:"access"`
}

// ChangeNotice is the LISTEN/NOTIFY payload announcing a committed row version.
type ChangeNotice struct {
	ID      string `json:"id"`
	Version int64  `json:"version"`
}

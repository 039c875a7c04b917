// Package permission derives what a caller may do with a scoreboard. It is pure: the
// result is computed once per request or session and passed down, never re-queried.
package permission

import (
	"errors"

	"papanskor/internal/scoreboard/model"
)

var (
	// ErrReadOnly is returned instead of attempting a mutation the gate denies.
	ErrReadOnly = errors.New("permission: read-only access")
	// ErrSignInRequired means the caller must sign in or upgrade to edit.
	ErrSignInRequired = errors.New("permission: sign in or upgrade to edit")
)

// Tier is the caller's entitlement level.
type Tier int

const (
	TierNone Tier = iota // lapsed or never subscribed
	TierFree
	TierPro
)

// ParseTier maps a claim value to a Tier. Unknown values are TierNone.
func ParseTier(s string) Tier {
	switch s {
	case "free":
		return TierFree
	case "pro":
		return TierPro
	default:
		return TierNone
	}
}

func (t Tier) String() string {
	switch t {
	case TierFree:
		return "free"
	case TierPro:
		return "pro"
	default:
		return "none"
	}
}

// Access is how the request reached the document.
type Access int

const (
	AccessDirect  Access = iota // by primary id
	AccessView                  // read-only share link
	AccessControl               // limited-control share link
)

func (a Access) String() string {
	switch a {
	case AccessView:
		return "view"
	case AccessControl:
		return "control"
	default:
		return "direct"
	}
}

type Caller struct {
	UserID        string
	Authenticated bool
	Anonymous     bool // guest session
	Tier          Tier
}

// EffectiveTier caps guest sessions at TierFree.
func (c Caller) EffectiveTier() Tier {
	if c.Anonymous && c.Tier > TierFree {
		return TierFree
	}
	return c.Tier
}

type Request struct {
	Caller  Caller
	OwnerID string
	// Required is the entitlement the document's type needs.
	Required Tier
	Access   Access
}

func (r Request) IsOwner() bool {
	return r.Caller.Authenticated && r.Caller.UserID != "" && r.Caller.UserID == r.OwnerID
}

// CanEdit reports whether the caller may change scores, labels and layout.
// A control link is itself the capability; a view link never edits.
func CanEdit(r Request) bool {
	switch r.Access {
	case AccessView:
		return false
	case AccessControl:
		return true
	}
	return r.IsOwner() && r.Caller.EffectiveTier() >= r.Required && r.Caller.EffectiveTier() > TierNone
}

// CanEditField reports whether the access path may change f at all. A control link is
// limited to the live fields: title, subtitle, labels, scores, layout and title visibility.
// Document type, style, colors, logo and icons stay with the owner.
func CanEditField(a Access, f model.Field) bool {
	if a != AccessControl {
		return true
	}
	switch model.GroupOf(f) {
	case model.GroupAppearance, model.GroupAssets:
		return false
	}
	return true
}

// CanManage reports whether the caller may perform destructive or billing operations.
// Share links never can.
func CanManage(r Request) bool {
	return r.Access == AccessDirect && r.IsOwner()
}

// Denial explains a negative CanEdit so callers can redirect instead of failing raw.
func Denial(r Request) error {
	if CanEdit(r) {
		return nil
	}
	if r.Access == AccessDirect && (!r.Caller.Authenticated || (r.IsOwner() && r.Caller.EffectiveTier() < max(r.Required, TierFree))) {
		return ErrSignInRequired
	}
	return ErrReadOnly
}

// RequiredTier is the entitlement a document type needs to be edited.
func RequiredTier(documentType string) Tier {
	if model.NormalizeDocumentType(documentType) == model.DocumentTypeVersus {
		return TierPro
	}
	return TierFree
}

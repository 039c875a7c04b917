// Package session wires the sync engine for one client editing or viewing one scoreboard:
// local state, event bus, debounced writer, change-feed subscriber, history and drag editor.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"papanskor/internal/docstate"
	"papanskor/internal/editor"
	"papanskor/internal/eventbus"
	"papanskor/internal/history"
	"papanskor/internal/permission"
	"papanskor/internal/persist"
	"papanskor/internal/remote"
	"papanskor/internal/scoreboard/model"
	"papanskor/pkg/logger"
)

var ErrUnknownField = errors.New("session: field is not a text field")

type Options struct {
	QuietPeriod  time.Duration
	WriteTimeout time.Duration
	HistoryLimit int
	Events       *eventbus.Events
}

type Session struct {
	docID   string
	canEdit bool
	events  *eventbus.Events
	state   *docstate.Model
	writer  *persist.Writer
	history *history.Manager
	editor  *editor.Editor
	remote  *remote.Subscriber

	mu        sync.Mutex
	confirmed model.Scoreboard
}

// New builds a session from the row loaded at mount time. canEdit comes from the
// permission gate and is fixed for the session's lifetime.
func New(doc model.Scoreboard, canEdit bool, store persist.Store, feed remote.Feed, opts Options) *Session {
	events := opts.Events
	if events == nil {
		events = eventbus.NewEvents()
	}

	s := &Session{docID: doc.ID, canEdit: canEdit, events: events}
	s.state = docstate.New(doc, events.Changes)
	s.confirmed = s.state.Snapshot()

	s.writer = persist.NewWriter(doc.ID, store, persist.Options{
		QuietPeriod:  opts.QuietPeriod,
		WriteTimeout: opts.WriteTimeout,
		Status:       events.Status,
		OnSaved:      s.onSaved,
		OnFailed:     s.onFailed,
	})
	s.history = history.New(history.Of(s.confirmed), s.applyHistory).WithLimit(opts.HistoryLimit)
	s.editor = editor.New(layoutHost{s}, canEdit)
	s.remote = remote.NewSubscriber(feed, s.state, remote.Options{
		Animations: events.Animations,
		Filter:     s.maskBusy,
		OnApplied:  s.onRemote,
	})
	return s
}

// Start opens the change feed subscription.
func (s *Session) Start(ctx context.Context) error {
	return s.remote.Start(ctx)
}

// Close tears the session down. Pending edits that have not been flushed are dropped.
func (s *Session) Close() {
	s.remote.Stop()
	s.writer.Close()
}

// Save flushes pending edits immediately.
func (s *Session) Save(ctx context.Context) {
	s.writer.Flush(ctx)
}

func (s *Session) DocID() string                 { return s.docID }
func (s *Session) CanEdit() bool                 { return s.canEdit }
func (s *Session) Events() *eventbus.Events      { return s.events }
func (s *Session) Snapshot() model.Scoreboard    { return s.state.Snapshot() }
func (s *Session) Editor() *editor.Editor        { return s.editor }
func (s *Session) CanUndo() bool                 { return s.history.CanUndo() }
func (s *Session) CanRedo() bool                 { return s.history.CanRedo() }
func (s *Session) HasPending(f model.Field) bool { return s.writer.Busy(f) }

// Confirmed is the last value the durable store acknowledged.
func (s *Session) Confirmed() model.Scoreboard {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.confirmed.Clone()
}

func (s *Session) guard() error {
	if !s.canEdit {
		return permission.ErrReadOnly
	}
	return nil
}

// SetText edits one free-text or cosmetic field.
func (s *Session) SetText(f model.Field, value string) error {
	if err := s.guard(); err != nil {
		return err
	}
	p, err := textPatch(f, value)
	if err != nil {
		return err
	}
	return s.edit(p)
}

// AdjustScore adds delta to a side's score, never going below zero.
func (s *Session) AdjustScore(side model.Side, delta int) error {
	if err := s.guard(); err != nil {
		return err
	}
	next := model.ClampScore(s.state.Snapshot().Score(side) + delta)
	return s.edit(scorePatch(side, next))
}

// SetScore replaces a side's score, clamped at zero.
func (s *Session) SetScore(side model.Side, value int) error {
	if err := s.guard(); err != nil {
		return err
	}
	return s.edit(scorePatch(side, model.ClampScore(value)))
}

// SetAppearance applies the cosmetic and asset fields of p: style, center text color,
// document type, logo and icons. Any other field in p is ignored.
func (s *Session) SetAppearance(p model.Patch) error {
	if err := s.guard(); err != nil {
		return err
	}
	var drop []model.Field
	for _, f := range p.Fields() {
		if g := model.GroupOf(f); g != model.GroupAppearance && g != model.GroupAssets {
			drop = append(drop, f)
		}
	}
	p = p.Without(drop...)
	p.ID, p.Version, p.LastModifiedAt = nil, nil, nil
	return s.edit(p)
}

// SetTitleVisible toggles the title; it is part of the layout history.
func (s *Session) SetTitleVisible(visible bool) error {
	if err := s.guard(); err != nil {
		return err
	}
	snap := history.Of(s.state.Snapshot())
	snap.Visible.TitleVisible = visible
	s.commit(snap)
	return nil
}

// SetElementSize sets the font size of a text element or the box size of an image
// element, clamped to the element's bounds, and records it in history.
func (s *Session) SetElementSize(el model.Element, size float64) error {
	if err := s.guard(); err != nil {
		return err
	}
	if !model.IsElement(el) {
		return fmt.Errorf("session: unknown element %q", el)
	}
	size = editor.BoundsFor(el).Clamp(size)

	snap := history.Of(s.state.Snapshot())
	pos := snap.Layout[el]
	if model.IsSized(el) {
		pos.Width, pos.Height = size, size
	} else {
		pos.FontSize = size
	}
	snap.Layout[el] = pos
	s.commit(snap)
	return nil
}

func (s *Session) Undo() (bool, error) {
	if err := s.guard(); err != nil {
		return false, err
	}
	return s.history.Undo(), nil
}

func (s *Session) Redo() (bool, error) {
	if err := s.guard(); err != nil {
		return false, err
	}
	return s.history.Redo(), nil
}

func (s *Session) ResetToInitial() error {
	if err := s.guard(); err != nil {
		return err
	}
	s.history.ResetToInitial()
	return nil
}

// edit applies p locally, then schedules one write per touched group.
func (s *Session) edit(p model.Patch) error {
	if p.IsEmpty() {
		return nil
	}
	s.state.ApplyLocal(p)
	for _, g := range p.Groups() {
		if err := s.writer.Schedule(g, groupPatch(p, g)); err != nil {
			return err
		}
	}
	return nil
}

// commit records a layout snapshot in history, applies it and schedules the layout group.
func (s *Session) commit(snap history.Snapshot) {
	s.history.Commit(snap)
	s.applyHistory(snap)
}

func (s *Session) applyHistory(snap history.Snapshot) {
	p := layoutPatch(snap)
	s.state.ApplyLocal(p)
	if err := s.writer.Schedule(model.GroupLayout, p); err != nil {
		logger.Sugar.Warnf("Layout change for %s not persisted: %v", s.docID, err)
	}
}

func (s *Session) onSaved(_ model.FieldGroup, row *model.Scoreboard) {
	s.remote.Apply(row.AsPatch())
}

// onFailed rolls the written fields back to their last confirmed value, except fields the
// user has edited again since, and reports an inline error for each.
func (s *Session) onFailed(_ model.FieldGroup, p model.Patch, err error) {
	var fields []model.Field
	for _, f := range p.Fields() {
		if !s.writer.Busy(f) {
			fields = append(fields, f)
		}
	}
	if len(fields) == 0 {
		return
	}

	s.mu.Lock()
	rollback := model.Only(s.confirmed, fields...)
	s.mu.Unlock()

	s.state.ApplyLocal(rollback)
	if rollback.Layout != nil || rollback.TitleVisible != nil {
		s.history.Rebase(history.Of(s.state.Snapshot()))
	}
	for _, f := range fields {
		s.events.Errors.Publish(eventbus.FieldTopic(s.docID, f), eventbus.FieldError{DocID: s.docID, Field: f, Err: err})
	}
}

// maskBusy keeps fields with an unsaved local edit out of remote snapshots.
func (s *Session) maskBusy(p model.Patch) model.Patch {
	var busy []model.Field
	for _, f := range p.Fields() {
		if s.writer.Busy(f) {
			busy = append(busy, f)
		}
	}
	return p.Without(busy...)
}

func (s *Session) onRemote(received model.Patch) {
	s.mu.Lock()
	received.ApplyTo(&s.confirmed)
	s.mu.Unlock()

	if (received.Layout != nil && !s.writer.Busy(model.FieldLayout)) ||
		(received.TitleVisible != nil && !s.writer.Busy(model.FieldTitleVisible)) {
		s.history.Rebase(history.Of(s.state.Snapshot()))
	}
}

// layoutHost adapts the session to the drag editor.
type layoutHost struct {
	s *Session
}

func (h layoutHost) Layout() model.Layout {
	return h.s.state.Snapshot().Layout
}

func (h layoutHost) Move(el model.Element, pos model.Position) {
	l := h.s.state.Snapshot().Layout
	l[el] = pos
	h.s.state.ApplyLocal(model.Patch{Layout: l})
}

func (h layoutHost) Commit(l model.Layout) {
	snap := history.Of(h.s.state.Snapshot())
	snap.Layout = l
	h.s.commit(snap)
}

func layoutPatch(snap history.Snapshot) model.Patch {
	return model.Patch{Layout: snap.Layout.Clone(), TitleVisible: model.Ptr(snap.Visible.TitleVisible)}
}

func scorePatch(side model.Side, v int) model.Patch {
	if side == model.SideA {
		return model.Patch{SideAScore: &v}
	}
	return model.Patch{SideBScore: &v}
}

func textPatch(f model.Field, v string) (model.Patch, error) {
	switch f {
	case model.FieldTitle:
		return model.Patch{Title: &v}, nil
	case model.FieldSubtitle:
		return model.Patch{Subtitle: &v}, nil
	case model.FieldSideALabel:
		return model.Patch{SideALabel: &v}, nil
	case model.FieldSideBLabel:
		return model.Patch{SideBLabel: &v}, nil
	case model.FieldStyle:
		return model.Patch{Style: &v}, nil
	case model.FieldCenterTextColor:
		return model.Patch{CenterTextColor: &v}, nil
	case model.FieldLogoURL:
		return model.Patch{LogoURL: &v}, nil
	case model.FieldDocumentType:
		return model.Patch{DocumentType: &v}, nil
	case model.FieldSideAIcon:
		return model.Patch{SideAIcon: &v}, nil
	case model.FieldSideBIcon:
		return model.Patch{SideBIcon: &v}, nil
	}
	return model.Patch{}, fmt.Errorf("%w: %s", ErrUnknownField, f)
}

// groupPatch restricts p to the fields of group g.
func groupPatch(p model.Patch, g model.FieldGroup) model.Patch {
	var other []model.Field
	for _, f := range p.Fields() {
		if model.GroupOf(f) != g {
			other = append(other, f)
		}
	}
	return p.Without(other...)
}

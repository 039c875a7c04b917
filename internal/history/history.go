// Package history keeps the undo/redo stacks of layout edits for one editing session.
// Stacks live in memory only and do not survive a reload.
package history

import (
	"sync"

	"papanskor/internal/scoreboard/model"
)

// Snapshot is a layout plus the visibility state that is edited alongside it.
type Snapshot struct {
	Layout  model.Layout
	Visible model.VisibleState
}

func (s Snapshot) Clone() Snapshot {
	s.Layout = s.Layout.Clone()
	return s
}

func (s Snapshot) Equal(o Snapshot) bool {
	return s.Visible == o.Visible && s.Layout.Equal(o.Layout)
}

// Of captures the history-relevant part of a scoreboard.
func Of(doc model.Scoreboard) Snapshot {
	return Snapshot{Layout: doc.Layout.Clone(), Visible: model.VisibleState{TitleVisible: doc.TitleVisible}}
}

// Apply makes a snapshot the current state and schedules its persistence.
type Apply func(Snapshot)

type Manager struct {
	mu      sync.Mutex
	initial Snapshot
	current Snapshot
	undo    []Snapshot
	redo    []Snapshot
	apply   Apply
	limit   int
}

// New starts with empty stacks. initial is also the reset target.
func New(initial Snapshot, apply Apply) *Manager {
	return &Manager{initial: initial.Clone(), current: initial.Clone(), apply: apply}
}

// WithLimit caps the undo stack; the oldest entries are dropped first. Zero means unbounded.
func (m *Manager) WithLimit(n int) *Manager {
	m.limit = n
	return m
}

// Commit records s as the new current state. Redo history is discarded.
func (m *Manager) Commit(s Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.undo = append(m.undo, m.current)
	if m.limit > 0 && len(m.undo) > m.limit {
		m.undo = m.undo[len(m.undo)-m.limit:]
	}
	m.redo = nil
	m.current = s.Clone()
}

// Undo restores the state before the last commit. It reports false when there is nothing to undo.
func (m *Manager) Undo() bool {
	m.mu.Lock()
	if len(m.undo) == 0 {
		m.mu.Unlock()
		return false
	}
	prev := m.undo[len(m.undo)-1]
	m.undo = m.undo[:len(m.undo)-1]
	m.redo = append(m.redo, m.current)
	m.current = prev
	m.mu.Unlock()

	m.apply(prev.Clone())
	return true
}

// Redo re-applies the last undone state.
func (m *Manager) Redo() bool {
	m.mu.Lock()
	if len(m.redo) == 0 {
		m.mu.Unlock()
		return false
	}
	next := m.redo[len(m.redo)-1]
	m.redo = m.redo[:len(m.redo)-1]
	m.undo = append(m.undo, m.current)
	m.current = next
	m.mu.Unlock()

	m.apply(next.Clone())
	return true
}

// ResetToInitial applies the snapshot captured at first load without touching the stacks.
func (m *Manager) ResetToInitial() {
	m.mu.Lock()
	m.current = m.initial.Clone()
	s := m.initial.Clone()
	m.mu.Unlock()

	m.apply(s)
}

// Rebase replaces the current state after a remote change, leaving the stacks alone.
func (m *Manager) Rebase(s Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = s.Clone()
}

func (m *Manager) Current() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current.Clone()
}

func (m *Manager) CanUndo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.undo) > 0
}

func (m *Manager) CanRedo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.redo) > 0
}

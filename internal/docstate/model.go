// Package docstate holds the last known good value of a scoreboard for one client.
package docstate

import (
	"sync"

	"papanskor/internal/eventbus"
	"papanskor/internal/scoreboard/model"
)

type Model struct {
	mu  sync.RWMutex
	doc model.Scoreboard
	bus *eventbus.Bus[eventbus.Change]
}

func New(doc model.Scoreboard, bus *eventbus.Bus[eventbus.Change]) *Model {
	doc = doc.Clone()
	doc.DocumentType = model.NormalizeDocumentType(doc.DocumentType)
	doc.Layout = model.ResolveLayout(doc.DocumentType, doc.Layout)
	return &Model{doc: doc, bus: bus}
}

// Snapshot returns a copy safe to hand to UI code.
func (m *Model) Snapshot() model.Scoreboard {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.doc.Clone()
}

func (m *Model) ID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.doc.ID
}

// ApplyLocal applies an optimistic edit and publishes one change per touched field
// before returning. It never fails.
func (m *Model) ApplyLocal(p model.Patch) []model.Field {
	p.ID, p.Version, p.LastModifiedAt = nil, nil, nil
	return m.apply(p, false)
}

// ApplyRemote overwrites exactly the fields present in the snapshot. Last write wins.
func (m *Model) ApplyRemote(p model.Patch) []model.Field {
	p.ID = nil
	return m.apply(p, true)
}

func (m *Model) apply(p model.Patch, remote bool) []model.Field {
	m.mu.Lock()
	fields := p.ApplyTo(&m.doc)
	doc := m.doc.Clone()
	m.mu.Unlock()

	if m.bus == nil {
		return fields
	}
	for _, f := range fields {
		m.bus.Publish(eventbus.FieldTopic(doc.ID, f), eventbus.Change{
			DocID:  doc.ID,
			Field:  f,
			Doc:    doc,
			Remote: remote,
		})
	}
	return fields
}

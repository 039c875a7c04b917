package docstate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"papanskor/internal/eventbus"
	"papanskor/internal/scoreboard/model"
)

func TestApplyLocalPublishesBeforeReturning(t *testing.T) {
	bus := eventbus.New[eventbus.Change]()
	m := New(model.Scoreboard{ID: "doc-1", Title: "Semis"}, bus)

	var preview string
	bus.Subscribe(eventbus.FieldTopic("doc-1", model.FieldTitle), func(c eventbus.Change) {
		assert.False(t, c.Remote)
		preview = c.Doc.Title
	})

	fields := m.ApplyLocal(model.Patch{Title: model.Ptr("Finals")})

	assert.Equal(t, []model.Field{model.FieldTitle}, fields)
	assert.Equal(t, "Finals", preview)
	assert.Equal(t, "Finals", m.Snapshot().Title)
}

func TestApplyRemoteLeavesAbsentFieldsUntouched(t *testing.T) {
	m := New(model.Scoreboard{ID: "doc-1", Title: "A", Subtitle: "B", SideAScore: 2}, nil)

	m.ApplyRemote(model.Patch{Subtitle: model.Ptr(""), SideAScore: model.Ptr(5), Version: model.Ptr(int64(3))})

	s := m.Snapshot()
	assert.Equal(t, "A", s.Title)
	assert.Equal(t, "", s.Subtitle)
	assert.Equal(t, 5, s.SideAScore)
	assert.EqualValues(t, 3, s.Version)
}

func TestNewResolvesLayout(t *testing.T) {
	m := New(model.Scoreboard{ID: "doc-1", DocumentType: "nope"}, nil)

	s := m.Snapshot()
	assert.Equal(t, model.DocumentTypeClassic, s.DocumentType)
	require.Len(t, s.Layout, len(model.Elements))
}

func TestSnapshotIsACopy(t *testing.T) {
	m := New(model.Scoreboard{ID: "doc-1"}, nil)

	s := m.Snapshot()
	s.Layout[model.ElementTitle] = model.Position{X: -1}

	assert.NotEqual(t, -1.0, m.Snapshot().Layout[model.ElementTitle].X)
}

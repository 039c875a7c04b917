package editor

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"papanskor/internal/scoreboard/model"
)

type fakeHost struct {
	layout  model.Layout
	moves   []model.Position
	commits []model.Layout
}

func newHost() *fakeHost {
	return &fakeHost{layout: model.DefaultLayout(model.DocumentTypeClassic)}
}

func (h *fakeHost) Layout() model.Layout { return h.layout.Clone() }

func (h *fakeHost) Move(el model.Element, pos model.Position) {
	h.moves = append(h.moves, pos)
	h.layout[el] = pos
}

func (h *fakeHost) Commit(l model.Layout) { h.commits = append(h.commits, l.Clone()) }

func TestDragTranslatesPixelsToCanvasUnits(t *testing.T) {
	h := newHost()
	e := New(h, true)
	e.Resize(720, 405)
	start := h.layout[model.ElementScoreA]

	require.True(t, e.PointerDown(model.ElementScoreA, 100, 100))
	assert.Equal(t, Dragging, e.State())
	require.True(t, e.PointerMove(110, 95))
	require.True(t, e.PointerUp())
	assert.Equal(t, Idle, e.State())

	want := start
	want.X += 20
	want.Y -= 10
	require.Len(t, h.commits, 1)
	assert.Equal(t, want, h.commits[0][model.ElementScoreA])
	assert.Equal(t, want, h.layout[model.ElementScoreA])
}

func TestDragIsNotClampedToCanvas(t *testing.T) {
	h := newHost()
	e := New(h, true)

	require.True(t, e.PointerDown(model.ElementTitle, 0, 0))
	e.PointerMove(-5000, 5000)
	e.PointerUp()

	require.Len(t, h.commits, 1)
	assert.Less(t, h.commits[0][model.ElementTitle].X, 0.0)
}

func TestReadOnlyEditorIgnoresGestures(t *testing.T) {
	h := newHost()
	e := New(h, false)

	assert.False(t, e.PointerDown(model.ElementTitle, 0, 0))
	assert.False(t, e.PointerMove(50, 50))
	assert.False(t, e.PointerUp())
	assert.Empty(t, h.moves)
	assert.Empty(t, h.commits)
}

func TestClickWithoutMoveDoesNotCommit(t *testing.T) {
	h := newHost()
	e := New(h, true)

	require.True(t, e.PointerDown(model.ElementLogo, 5, 5))
	assert.False(t, e.PointerUp())
	assert.Empty(t, h.commits)
}

func TestCancelRestoresOrigin(t *testing.T) {
	h := newHost()
	e := New(h, true)
	origin := h.layout[model.ElementSideA]

	require.True(t, e.PointerDown(model.ElementSideA, 0, 0))
	e.PointerMove(30, 30)
	e.PointerCancel()

	assert.Equal(t, origin, h.layout[model.ElementSideA])
	assert.Empty(t, h.commits)
	assert.Equal(t, Idle, e.State())
}

func TestUnknownElementAndDoubleDown(t *testing.T) {
	h := newHost()
	e := New(h, true)

	assert.False(t, e.PointerDown(model.Element("banner"), 0, 0))
	require.True(t, e.PointerDown(model.ElementSideB, 0, 0))
	assert.False(t, e.PointerDown(model.ElementSideA, 0, 0))
}

func TestNumericInputClampsOnBlur(t *testing.T) {
	font := NewNumericInput(FontSizeBounds, 48)
	font.Type("999")
	assert.Equal(t, "999", font.Text(), "free typing is kept until blur")
	assert.Equal(t, 300.0, font.Blur())
	assert.Equal(t, "300", font.Text())

	font.Type("3")
	assert.Equal(t, 12.0, font.Blur())

	font.Type("abc")
	assert.Equal(t, 12.0, font.Blur())

	icon := NewNumericInput(BoundsFor(model.ElementSideAIcon), 1)
	assert.Equal(t, 20.0, icon.Value())
	icon.Type("10000")
	assert.Equal(t, 500.0, icon.Blur())

	assert.Equal(t, FontSizeBounds, BoundsFor(model.ElementScoreB))
}

func TestNumericInputRejectsNonFinite(t *testing.T) {
	font := NewNumericInput(FontSizeBounds, 48)
	for _, text := range []string{"NaN", "nan", "Inf", "-Infinity"} {
		font.Type(text)
		assert.Equal(t, 48.0, font.Blur(), text)
		assert.Equal(t, "48", font.Text())
	}

	assert.Equal(t, 12.0, FontSizeBounds.Clamp(math.NaN()))
	assert.Equal(t, 500.0, IconSizeBounds.Clamp(math.Inf(1)))
	assert.Equal(t, 20.0, IconSizeBounds.Clamp(math.Inf(-1)))
}

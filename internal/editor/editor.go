// Package editor turns pointer gestures into layout edits on the virtual canvas.
package editor

import (
	"sync"

	"papanskor/internal/canvas"
	"papanskor/internal/scoreboard/model"
)

// Host is the document side of the editor.
type Host interface {
	// Layout returns the current resolved layout.
	Layout() model.Layout
	// Move applies an in-progress position locally, without persisting it.
	Move(el model.Element, pos model.Position)
	// Commit records the finished layout in history and schedules its persistence.
	Commit(layout model.Layout)
}

type State int

const (
	Idle State = iota
	Dragging
)

type drag struct {
	el     model.Element
	startX float64
	startY float64
	origin model.Position
	last   model.Position
}

// Editor is the idle -> dragging -> idle state machine shared by all draggable elements.
type Editor struct {
	mu      sync.Mutex
	host    Host
	canEdit bool
	scale   canvas.Scale
	drag    *drag
}

func New(host Host, canEdit bool) *Editor {
	return &Editor{host: host, canEdit: canEdit, scale: canvas.Identity}
}

// Resize records the on-screen size the canvas is rendered at.
func (e *Editor) Resize(renderedW, renderedH float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scale = canvas.ScaleFor(renderedW, renderedH)
}

func (e *Editor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.drag != nil {
		return Dragging
	}
	return Idle
}

// PointerDown starts dragging el from client pixel coordinates. It is ignored when
// read-only, for unknown elements, or while another drag is active.
func (e *Editor) PointerDown(el model.Element, clientX, clientY float64) bool {
	if !e.canEdit || !model.IsElement(el) {
		return false
	}
	origin, ok := e.host.Layout()[el]
	if !ok {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.drag != nil {
		return false
	}
	e.drag = &drag{el: el, startX: clientX, startY: clientY, origin: origin, last: origin}
	return true
}

// PointerMove repositions the dragged element. Positions are not clamped to the canvas.
func (e *Editor) PointerMove(clientX, clientY float64) bool {
	e.mu.Lock()
	d := e.drag
	if d == nil {
		e.mu.Unlock()
		return false
	}
	dx, dy := e.scale.ToUnits(clientX-d.startX, clientY-d.startY)
	pos := d.origin
	pos.X += dx
	pos.Y += dy
	d.last = pos
	el := d.el
	e.mu.Unlock()

	e.host.Move(el, pos)
	return true
}

// PointerUp ends the drag and commits when the element actually moved.
func (e *Editor) PointerUp() bool {
	e.mu.Lock()
	d := e.drag
	e.drag = nil
	e.mu.Unlock()
	if d == nil || d.last == d.origin {
		return false
	}

	layout := e.host.Layout()
	layout[d.el] = d.last
	e.host.Commit(layout)
	return true
}

// PointerCancel aborts the drag and puts the element back without committing.
func (e *Editor) PointerCancel() {
	e.mu.Lock()
	d := e.drag
	e.drag = nil
	e.mu.Unlock()
	if d != nil && d.last != d.origin {
		e.host.Move(d.el, d.origin)
	}
}

package eventbus

import (
	"papanskor/internal/scoreboard/model"
)

// Topic fields for events that are not bound to a single document field.
const (
	StatusField    = "save-status"
	AnimationField = "animation"
)

// FieldTopic is the topic of a document field.
func FieldTopic(docID string, f model.Field) Topic {
	return Topic{DocID: docID, Field: string(f)}
}

// Change is published whenever a field of the in-memory document changes.
type Change struct {
	DocID  string
	Field  model.Field
	Doc    model.Scoreboard
	Remote bool
}

// SaveStatus is the global save indicator state.
type SaveStatus string

const (
	StatusSaving SaveStatus = "saving"
	StatusSaved  SaveStatus = "saved"
	StatusError  SaveStatus = "error"
)

type Status struct {
	DocID string
	Group model.FieldGroup
	State SaveStatus
}

// FieldError is shown inline next to the control of a rolled-back field.
type FieldError struct {
	DocID string
	Field model.Field
	Err   error
}

// Animation carries a delta observed on a remote snapshot, e.g. a score going up by one.
type Animation struct {
	DocID string
	Field model.Field
	From  int
	To    int
	Delta int
}

// Events groups the typed buses one client session uses.
type Events struct {
	Changes    *Bus[Change]
	Status     *Bus[Status]
	Errors     *Bus[FieldError]
	Animations *Bus[Animation]
}

func NewEvents() *Events {
	return &Events{
		Changes:    New[Change](),
		Status:     New[Status](),
		Errors:     New[FieldError](),
		Animations: New[Animation](),
	}
}

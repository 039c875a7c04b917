// Package persist coalesces rapid local edits into one durable write per field group.
package persist

import (
	"context"
	"errors"
	"sync"
	"time"

	"papanskor/internal/eventbus"
	"papanskor/internal/scoreboard/model"
	"papanskor/pkg/logger"
	"papanskor/pkg/metrics"
)

const (
	DefaultQuietPeriod  = 400 * time.Millisecond
	DefaultWriteTimeout = 10 * time.Second
)

var ErrClosed = errors.New("persist: writer closed")

// Store performs one partial-column write and returns the row as stored.
type Store interface {
	Save(ctx context.Context, docID string, patch model.Patch) (*model.Scoreboard, error)
}

type Options struct {
	QuietPeriod  time.Duration
	WriteTimeout time.Duration
	// Status receives saving/saved/error around every flush.
	Status *eventbus.Bus[eventbus.Status]
	// OnSaved runs after a successful flush with the stored row.
	OnSaved func(group model.FieldGroup, row *model.Scoreboard)
	// OnFailed runs after a rejected flush. No retry is attempted.
	OnFailed func(group model.FieldGroup, patch model.Patch, err error)
}

type entry struct {
	patch model.Patch
	timer *time.Timer
}

// Writer is a coalescing write queue keyed by field group.
type Writer struct {
	docID string
	store Store
	opts  Options

	mu       sync.Mutex
	pending  map[model.FieldGroup]*entry
	inflight map[model.Field]int
	closed   bool
	wg       sync.WaitGroup
}

func NewWriter(docID string, store Store, opts Options) *Writer {
	if opts.QuietPeriod <= 0 {
		opts.QuietPeriod = DefaultQuietPeriod
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}
	return &Writer{
		docID:    docID,
		store:    store,
		opts:     opts,
		pending:  make(map[model.FieldGroup]*entry),
		inflight: make(map[model.Field]int),
	}
}

// Schedule merges patch into the group's pending write and restarts its quiet period.
// Only the value standing when the period expires is written.
func (w *Writer) Schedule(group model.FieldGroup, patch model.Patch) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}

	if e, ok := w.pending[group]; ok {
		e.patch = e.patch.Merge(patch)
		e.timer.Reset(w.opts.QuietPeriod)
		return nil
	}

	e := &entry{patch: patch}
	e.timer = time.AfterFunc(w.opts.QuietPeriod, func() { w.fire(group, e) })
	w.pending[group] = e
	return nil
}

func (w *Writer) fire(group model.FieldGroup, e *entry) {
	w.mu.Lock()
	if w.closed || w.pending[group] != e {
		w.mu.Unlock()
		return
	}
	delete(w.pending, group)
	w.begin(e.patch)
	w.mu.Unlock()

	w.write(context.Background(), group, e.patch)
}

// begin marks the patch's fields in flight. Caller holds mu.
func (w *Writer) begin(p model.Patch) {
	w.wg.Add(1)
	for _, f := range p.Fields() {
		w.inflight[f]++
	}
}

// settle clears the in-flight marks once the store has answered.
func (w *Writer) settle(p model.Patch) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, f := range p.Fields() {
		if w.inflight[f]--; w.inflight[f] <= 0 {
			delete(w.inflight, f)
		}
	}
}

func (w *Writer) write(ctx context.Context, group model.FieldGroup, patch model.Patch) {
	defer w.wg.Done()

	w.publish(group, eventbus.StatusSaving)

	ctx, cancel := context.WithTimeout(ctx, w.opts.WriteTimeout)
	defer cancel()

	row, err := w.store.Save(ctx, w.docID, patch)
	w.settle(patch)
	if err != nil {
		logger.Sugar.Errorf("Failed to save %s for scoreboard %s: %v", group, w.docID, err)
		metrics.WritesTotal.WithLabelValues(string(group), "error").Inc()
		w.publish(group, eventbus.StatusError)
		if w.opts.OnFailed != nil {
			w.opts.OnFailed(group, patch, err)
		}
		return
	}

	metrics.WritesTotal.WithLabelValues(string(group), "ok").Inc()
	w.publish(group, eventbus.StatusSaved)
	if w.opts.OnSaved != nil && row != nil {
		w.opts.OnSaved(group, row)
	}
}

func (w *Writer) publish(group model.FieldGroup, state eventbus.SaveStatus) {
	if w.opts.Status == nil {
		return
	}
	w.opts.Status.Publish(eventbus.Topic{DocID: w.docID, Field: eventbus.StatusField}, eventbus.Status{
		DocID: w.docID,
		Group: group,
		State: state,
	})
}

// Flush writes every pending group now, one write per group, and waits for them.
func (w *Writer) Flush(ctx context.Context) {
	w.mu.Lock()
	taken := make(map[model.FieldGroup]model.Patch, len(w.pending))
	for g, e := range w.pending {
		e.timer.Stop()
		taken[g] = e.patch
		w.begin(e.patch)
		delete(w.pending, g)
	}
	w.mu.Unlock()

	for g, p := range taken {
		w.write(ctx, g, p)
	}
}

// Cancel drops every pending write without flushing it.
func (w *Writer) Cancel() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for g, e := range w.pending {
		e.timer.Stop()
		delete(w.pending, g)
	}
}

// Close cancels pending writes, rejects further schedules and waits for in-flight writes.
func (w *Writer) Close() {
	w.Cancel()
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	w.wg.Wait()
}

// Busy reports whether f has an unflushed or in-flight local value.
func (w *Writer) Busy(f model.Field) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.inflight[f] > 0 {
		return true
	}
	for _, e := range w.pending {
		if e.patch.Has(f) {
			return true
		}
	}
	return false
}

// Pending returns the number of groups waiting for their quiet period.
func (w *Writer) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

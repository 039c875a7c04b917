// Package remote merges change-feed snapshots from the durable store into local state.
package remote

import (
	"context"
	"sync"

	"papanskor/internal/docstate"
	"papanskor/internal/eventbus"
	"papanskor/internal/scoreboard/model"
	"papanskor/pkg/logger"
)

// Feed opens one change subscription per document id. Delivery is at least once and
// unordered across distinct writes; fn receives full row snapshots.
type Feed interface {
	Subscribe(ctx context.Context, docID string, fn func(model.Patch)) (Subscription, error)
}

type Subscription interface {
	Close() error
}

type Options struct {
	Animations *eventbus.Bus[eventbus.Animation]
	// Filter may drop fields before they are applied, e.g. fields with an unsaved local edit.
	Filter func(model.Patch) model.Patch
	// OnApplied runs after a snapshot was merged, with the snapshot as received.
	OnApplied func(model.Patch)
}

type Subscriber struct {
	feed  Feed
	state *docstate.Model
	opts  Options

	mu      sync.Mutex
	docID   string
	sub     Subscription
	version int64
}

func NewSubscriber(feed Feed, state *docstate.Model, opts Options) *Subscriber {
	return &Subscriber{feed: feed, state: state, opts: opts, version: state.Snapshot().Version}
}

// Start subscribes to the model's document.
func (s *Subscriber) Start(ctx context.Context) error {
	return s.Switch(ctx, s.state.ID())
}

// Switch drops the current subscription and subscribes to docID.
func (s *Subscriber) Switch(ctx context.Context, docID string) error {
	s.Stop()

	// The feed may deliver before Subscribe returns.
	s.mu.Lock()
	s.docID = docID
	if docID != s.state.ID() {
		s.version = 0
	}
	s.mu.Unlock()

	sub, err := s.feed.Subscribe(ctx, docID, func(p model.Patch) { s.handle(docID, p) })
	if err != nil {
		s.mu.Lock()
		s.docID = ""
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	s.sub = sub
	s.mu.Unlock()
	return nil
}

// Stop closes the subscription, if any.
func (s *Subscriber) Stop() {
	s.mu.Lock()
	sub := s.sub
	s.sub = nil
	s.docID = ""
	s.mu.Unlock()

	if sub != nil {
		if err := sub.Close(); err != nil {
			logger.Sugar.Warnf("Closing change feed subscription: %v", err)
		}
	}
}

// Observe raises the version floor, e.g. after our own write returned a newer row.
func (s *Subscriber) Observe(version int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if version > s.version {
		s.version = version
	}
}

// Version is the newest version applied so far.
func (s *Subscriber) Version() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Apply merges a row obtained outside the feed, such as the response to our own write,
// with the same version checks as a feed notification.
func (s *Subscriber) Apply(p model.Patch) {
	s.merge(s.state.ID(), p)
}

func (s *Subscriber) handle(docID string, p model.Patch) {
	s.mu.Lock()
	current := s.docID
	s.mu.Unlock()
	if current != docID {
		return
	}
	s.merge(docID, p)
}

func (s *Subscriber) merge(docID string, p model.Patch) {
	s.mu.Lock()
	if p.Version != nil {
		if *p.Version <= s.version {
			s.mu.Unlock()
			logger.Sugar.Debugf("Dropping stale snapshot v%d of %s (have v%d)", *p.Version, docID, s.version)
			return
		}
		s.version = *p.Version
	}
	s.mu.Unlock()

	received := p
	if s.opts.Filter != nil {
		p = s.opts.Filter(p)
	}

	// Deltas only exist here: once applied, the previous value is gone.
	prev := s.state.Snapshot()
	s.animate(docID, model.FieldSideAScore, prev.SideAScore, p.SideAScore)
	s.animate(docID, model.FieldSideBScore, prev.SideBScore, p.SideBScore)

	s.state.ApplyRemote(p)

	if s.opts.OnApplied != nil {
		s.opts.OnApplied(received)
	}
}

func (s *Subscriber) animate(docID string, f model.Field, from int, to *int) {
	if s.opts.Animations == nil || to == nil || *to == from {
		return
	}
	s.opts.Animations.Publish(eventbus.Topic{DocID: docID, Field: eventbus.AnimationField}, eventbus.Animation{
		DocID: docID,
		Field: f,
		From:  from,
		To:    *to,
		Delta: *to - from,
	})
}

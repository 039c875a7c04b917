package socket

import (
	"context"
	"encoding/json"
	"time"

	"github.com/lib/pq"

	"papanskor/internal/scoreboard/model"
	"papanskor/pkg/logger"
)

// RowLoader fetches the committed row a notification refers to.
type RowLoader interface {
	Get(ctx context.Context, id string) (*model.Scoreboard, error)
}

// Relay forwards row changes committed by other instances into the local hub.
type Relay struct {
	Hub    *Hub
	Loader RowLoader
}

// Listen blocks on LISTEN channel until ctx is done. lib/pq reconnects on its own.
func (r *Relay) Listen(ctx context.Context, dsn, channel string) error {
	l := pq.NewListener(dsn, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			logger.Sugar.Warnf("Change listener event %d: %v", ev, err)
		}
	})
	defer l.Close()

	if err := l.Listen(channel); err != nil {
		return err
	}
	logger.Sugar.Infof("Listening for scoreboard changes on %s", channel)

	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-l.Notify:
			// nil after a reconnect; notifications sent meanwhile are lost, watchers catch up on the next write.
			if n == nil {
				continue
			}
			r.Handle(ctx, n.Extra)
		case <-time.After(90 * time.Second):
			go l.Ping()
		}
	}
}

// Handle processes one notification payload.
func (r *Relay) Handle(ctx context.Context, payload string) {
	var notice model.ChangeNotice
	if err := json.Unmarshal([]byte(payload), &notice); err != nil {
		logger.Sugar.Warnf("Malformed change notice %q: %v", payload, err)
		return
	}
	// Nobody watches, or this instance already delivered it.
	if v := r.Hub.Version(notice.ID); v == 0 || notice.Version <= v {
		return
	}

	row, err := r.Loader.Get(ctx, notice.ID)
	if err != nil {
		logger.Sugar.Errorf("Failed to load scoreboard %s for relay: %v", notice.ID, err)
		return
	}
	r.Hub.Publish(row)
}

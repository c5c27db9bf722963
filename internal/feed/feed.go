// Package feed delivers inventory change notifications to subscribers.
//
// The store side is a Postgres trigger doing pg_notify on every stats
// update; Listener holds a dedicated connection, LISTENs on the channel
// and fans payloads out through a Hub. Delivery is best effort: slow
// subscribers miss intermediate values and a reconnect re-broadcasts the
// current row instead of replaying history.
package feed

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/arjunvm/puffmeter/internal/model"
)

// channel is the pg_notify channel installed by the migrations.
const channel = "stats_changed"

// Hub fans a stats update out to all current subscribers.
type Hub struct {
	mu   sync.Mutex
	subs map[int]chan model.Stats
	next int
}

// NewHub constructs an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan model.Stats)}
}

// Subscribe registers a subscriber and returns its channel plus an
// unsubscribe func. Unsubscribing closes the channel; calling the func
// twice is safe.
func (h *Hub) Subscribe() (<-chan model.Stats, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.next
	h.next++
	ch := make(chan model.Stats, 1)
	h.subs[id] = ch

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if c, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(c)
			}
		})
	}
	return ch, unsubscribe
}

// Broadcast delivers s to every subscriber without blocking. A subscriber
// that has not drained its previous value is skipped; it will catch up on
// the next update.
func (h *Hub) Broadcast(s model.Stats) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- s:
		default:
		}
	}
}

// Listener consumes pg_notify payloads on a dedicated connection.
type Listener struct {
	dsn     string
	hub     *Hub
	log     *zap.Logger
	backoff time.Duration
}

// NewListener constructs a listener for the given DSN.
func NewListener(dsn string, hub *Hub, log *zap.Logger) *Listener {
	return &Listener{dsn: dsn, hub: hub, log: log, backoff: time.Second}
}

// Run listens until ctx is done, reconnecting with a flat backoff on any
// connection failure. On every (re)connect the current row is read and
// broadcast so subscribers converge after missed notifications.
func (l *Listener) Run(ctx context.Context) error {
	for {
		if err := l.listenOnce(ctx); err != nil && ctx.Err() == nil {
			l.log.Warn("stats listener disconnected", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.backoff):
		}
	}
}

func (l *Listener) listenOnce(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, l.dsn)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close(context.Background()) }()

	if _, err := conn.Exec(ctx, "LISTEN "+channel); err != nil {
		return err
	}

	// Coalesced catch-up for anything missed while disconnected.
	var s model.Stats
	err = conn.QueryRow(ctx, `SELECT chicken, motta, meat, updated_at FROM stats WHERE id=1`).
		Scan(&s.Chicken, &s.Motta, &s.Meat, &s.UpdatedAt)
	if err != nil {
		return err
	}
	l.hub.Broadcast(s)

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		var upd model.Stats
		if err := json.Unmarshal([]byte(n.Payload), &upd); err != nil {
			l.log.Warn("bad stats payload", zap.String("payload", n.Payload), zap.Error(err))
			continue
		}
		l.hub.Broadcast(upd)
	}
}

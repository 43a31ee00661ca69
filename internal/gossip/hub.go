// Package gossip broadcasts CompactionEvents to any connected observer
// over a websocket, best-effort: a slow or gone client never blocks or
// fails a compaction round.
//
// Grounded on miretskiy-rollingstone/cmd/server/main.go's
// handleWebSocket: the same Upgrader{ReadBufferSize, WriteBufferSize,
// CheckOrigin} plus safeConn{*websocket.Conn, writeMu} plus
// per-connection read-loop-until-error shape, generalized from one
// simulator's UI stream to a fan-out hub serving many subscribers.
package gossip

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/beaverdb/tsdb-core/internal/persist"
	"github.com/beaverdb/tsdb-core/pkg/types"
)

var log = slog.Default()

// writeTimeout bounds how long Broadcast waits on one slow subscriber
// before giving up on it for this event.
const writeTimeout = 2 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// CompactionEvent is broadcast after every successful round commit.
type CompactionEvent struct {
	NewFiles            []types.ParquetFileID `json:"new_files"`
	UpdatedFileIDs      []types.ParquetFileID `json:"updated_file_ids"`
	DeletedFileIDs      []types.ParquetFileID `json:"deleted_file_ids"`
	UpgradedTargetLevel types.CompactionLevel  `json:"upgraded_target_level"`
}

// safeConn serialises concurrent writers: Broadcast and per-connection
// ping/close paths can both write to the same conn.
type safeConn struct {
	*websocket.Conn
	writeMu sync.Mutex
}

func (sc *safeConn) WriteJSON(v any) error {
	sc.writeMu.Lock()
	defer sc.writeMu.Unlock()
	_ = sc.SetWriteDeadline(time.Now().Add(writeTimeout))
	return sc.Conn.WriteJSON(v)
}

// Hub fans CompactionEvents out to every currently-connected subscriber.
type Hub struct {
	mu    sync.Mutex
	conns map[*safeConn]struct{}
}

// NewHub constructs an empty Hub.
func NewHub() *Hub {
	return &Hub{conns: make(map[*safeConn]struct{})}
}

// HandleWebSocket upgrades r and registers the connection as a
// subscriber until it disconnects. Mount this at the gossip endpoint.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("gossip: upgrade failed", "error", err)
		return
	}
	sc := &safeConn{Conn: conn}

	h.mu.Lock()
	h.conns[sc] = struct{}{}
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.conns, sc)
		h.mu.Unlock()
		sc.Close()
	}()

	for {
		if _, _, err := sc.ReadMessage(); err != nil {
			return
		}
	}
}

// Broadcast sends event to every connected subscriber, best effort: a
// write failure drops that one subscriber without affecting the others
// or returning an error to the caller.
func (h *Hub) Broadcast(ctx context.Context, event CompactionEvent) {
	if ctx.Err() != nil {
		return
	}

	h.mu.Lock()
	targets := make([]*safeConn, 0, len(h.conns))
	for c := range h.conns {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	for _, c := range targets {
		if err := c.WriteJSON(event); err != nil {
			log.Warn("gossip: dropping subscriber after write error", "error", err)
			h.mu.Lock()
			delete(h.conns, c)
			h.mu.Unlock()
			c.Close()
		}
	}
}

// ObservePersisted implements internal/persist.CompletionObserver:
// every durably-registered file is announced to gossip subscribers the
// same way a compaction round's output is.
func (h *Hub) ObservePersisted(ctx context.Context, event persist.PersistedEvent) error {
	h.Broadcast(ctx, CompactionEvent{NewFiles: []types.ParquetFileID{event.File}})
	return nil
}

// Subscribers reports how many connections are currently registered.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// ServeHTTP mounts hub at the root path of addr and blocks until ctx is
// cancelled, mirroring internal/metrics.StartServer's lifecycle.
func ServeHTTP(ctx context.Context, addr string, hub *Hub) error {
	srv := &http.Server{Addr: addr, Handler: http.HandlerFunc(hub.HandleWebSocket)}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		return srv.Close()
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}

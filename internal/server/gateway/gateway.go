// Package gateway is the websocket entry point. Each connection runs a
// small state machine: it must authenticate before anything else, after
// which its inbound frames are decoded into typed commands and dispatched
// to the services.
package gateway

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophchat/internal/logging"
	"github.com/dmitrijs2005/gophchat/internal/server/models"
	"github.com/dmitrijs2005/gophchat/internal/server/realtime"
	"github.com/dmitrijs2005/gophchat/internal/server/services"
	"github.com/dmitrijs2005/gophchat/internal/server/session"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// commandTimeout bounds a single command that is not a message submit.
const commandTimeout = 10 * time.Second

type Authenticator interface {
	Verify(ctx context.Context, credential string) (int64, error)
}

type UserLookup interface {
	Get(ctx context.Context, id int64) (*models.User, error)
}

type MessageSubmitter interface {
	Submit(ctx context.Context, actor services.Actor, req services.SubmitRequest) (*models.Message, error)
	Recall(ctx context.Context, actor services.Actor, messageID int64) error
	ListMessages(ctx context.Context, actor services.Actor, conversationID, sinceSequence int64, limit int) ([]*models.Message, error)
}

type RoomManager interface {
	Join(ctx context.Context, s *session.Session, conversationID int64) error
	Leave(ctx context.Context, s *session.Session, conversationID int64)
	LeaveAll(s *session.Session) []int64
}

type PresenceNotifier interface {
	Online(ctx context.Context, s *session.Session)
	Offline(ctx context.Context, s *session.Session) bool
}

type ReadMarker interface {
	MarkRead(ctx context.Context, userID, conversationID, uptoMessageID int64) (int64, int64, error)
}

// Dependencies are the collaborators a Gateway dispatches to.
type Dependencies struct {
	Auth     Authenticator
	Users    UserLookup
	Registry *session.Registry
	Rooms    RoomManager
	Messages MessageSubmitter
	Presence PresenceNotifier
	Unread   ReadMarker
}

// Gateway upgrades HTTP requests to websocket connections and serves them.
type Gateway struct {
	deps      Dependencies
	sendLimit rate.Limit
	sendBurst int
	logger    logging.Logger
	upgrader  websocket.Upgrader

	mu      sync.Mutex
	conns   map[string]*realtime.Conn
	closing bool
	serving sync.WaitGroup
}

// NewGateway builds a Gateway. sendPerSecond and burst bound send_message
// per connection; a non-positive sendPerSecond disables the limit.
func NewGateway(deps Dependencies, sendPerSecond float64, burst int, logger logging.Logger) *Gateway {
	limit := rate.Limit(sendPerSecond)
	if sendPerSecond <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	return &Gateway{
		deps:      deps,
		sendLimit: limit,
		sendBurst: burst,
		logger:    logger.With("module", "gateway"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		conns: make(map[string]*realtime.Conn),
	}
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		g.logger.Warn(r.Context(), "upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	conn := realtime.NewConn(ws)
	conn.Start()
	if !g.track(conn) {
		conn.Close(session.CloseGoingAway, "server shutting down")
		return
	}
	defer g.untrack(conn)

	c := newConnection(g, conn)
	c.serve(context.WithoutCancel(r.Context()))
}

// Shutdown closes every open connection, authenticated or not, and waits
// until each has been torn down so presence transitions are persisted
// before the store goes away. Connections arriving afterwards are refused.
// It returns ctx.Err() if ctx ends first.
func (g *Gateway) Shutdown(ctx context.Context, code int, reason string) error {
	g.mu.Lock()
	g.closing = true
	conns := make([]*realtime.Conn, 0, len(g.conns))
	for _, c := range g.conns {
		conns = append(conns, c)
	}
	g.mu.Unlock()

	for _, c := range conns {
		c.Shutdown(code, reason)
	}

	done := make(chan struct{})
	go func() {
		g.serving.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Connections reports how many websocket connections are open.
func (g *Gateway) Connections() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.conns)
}

// track registers c unless the gateway is shutting down. The serving
// counter is raised under mu so Shutdown never waits on a zero counter
// that is about to grow.
func (g *Gateway) track(c *realtime.Conn) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closing {
		return false
	}
	g.conns[c.ID] = c
	g.serving.Add(1)
	return true
}

func (g *Gateway) untrack(c *realtime.Conn) {
	g.mu.Lock()
	delete(g.conns, c.ID)
	g.mu.Unlock()
	g.serving.Done()
}

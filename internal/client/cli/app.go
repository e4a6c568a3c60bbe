package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophchat/internal/client/client"
	"github.com/dmitrijs2005/gophchat/internal/client/config"
	"github.com/dmitrijs2005/gophchat/internal/server/models"

	gs "github.com/dmitrijs2005/gophchat/internal/server/grpc"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

// realtimeConn is the websocket command surface.
type realtimeConn interface {
	Join(conversationID int64) error
	Leave(conversationID int64) error
	SendMessage(conversationID int64, typ models.MessageType, content, clientID string) error
	Recall(messageID int64) error
	MarkRead(conversationID, uptoMessageID int64) error
	Sync(conversationID, sinceSequence int64, limit int) error
}

// pullAPI is the request/response surface.
type pullAPI interface {
	Ping(ctx context.Context) error
	Conversations(ctx context.Context) ([]*models.ConversationSummary, error)
	History(ctx context.Context, conversationID, sinceSequence int64, limit int) ([]*models.Message, error)
	UnreadCount(ctx context.Context, conversationID int64) (int64, error)
	Participants(ctx context.Context, conversationID int64) ([]gs.ParticipantInfo, error)
	MessageStatus(ctx context.Context, messageID int64) (*models.MessageStatus, error)
	CreatePrivate(ctx context.Context, peerID int64) (*gs.CreateConversationResponse, error)
	CreateGroup(ctx context.Context, name string, memberIDs []int64) (*gs.CreateConversationResponse, error)
	Upload(ctx context.Context, kind models.MessageType, path string) (string, error)
}

type App struct {
	config *config.Config
	rt     realtimeConn
	pull   pullAPI
	userID int64

	mu   sync.Mutex
	mode Mode
	seq  int
}

func NewApp(c *config.Config) *App {
	return &App{config: c, mode: ModeOffline}
}

func (a *App) setMode(mode Mode) {
	a.mu.Lock()
	changed := a.mode != mode
	a.mode = mode
	a.mu.Unlock()
	if changed {
		printlnFn(fmt.Sprintf("Switched to %s mode", mode))
	}
}

func (a *App) getStatus() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return fmt.Sprintf("(user %d %s)", a.userID, a.mode)
}

// nextClientID numbers outgoing messages so acks can be matched.
func (a *App) nextClientID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seq++
	return fmt.Sprintf("c%d", a.seq)
}

// connect authenticates the websocket and opens the pull API client.
func (a *App) connect(ctx context.Context) (*client.Realtime, *client.Pull, error) {
	token := a.config.Token
	if token == "" {
		t, err := GetToken(os.Stdout)
		if err != nil {
			return nil, nil, err
		}
		token = t
	}

	dctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	rt, err := client.DialRealtime(dctx, a.config.WSURL)
	if err != nil {
		return nil, nil, err
	}
	userID, err := rt.Authenticate(dctx, token)
	if err != nil {
		_ = rt.Close()
		return nil, nil, err
	}

	pull, err := client.NewPull(a.config.GRPCAddr, token)
	if err != nil {
		_ = rt.Close()
		return nil, nil, err
	}

	a.rt, a.pull, a.userID = rt, pull, userID
	a.setMode(ModeOnline)
	return rt, pull, nil
}

// printEvents writes inbound frames until the websocket ends.
func (a *App) printEvents(rt *client.Realtime) {
	for f := range rt.Events() {
		if line := formatEvent(f); line != "" {
			printlnFn(line)
		}
	}
	a.setMode(ModeOffline)
	if err := rt.Err(); err != nil {
		printlnFn("Disconnected:", err)
	}
}

func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			err := a.pull.Ping(pctx)
			cancel()

			if err != nil {
				a.setMode(ModeOffline)
			} else {
				a.setMode(ModeOnline)
			}

		case <-ctx.Done():
			return
		}
	}
}

// Run connects, then blocks in the REPL until the user exits.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	printlnFn("gophchat terminal client (type 'help' for commands)")

	rt, pull, err := a.connect(ctx)
	if err != nil {
		return err
	}
	defer pull.Close()
	defer rt.Close()

	go a.printEvents(rt)
	go a.StartOnlineStatusWatcher(ctx, a.config.OnlineCheckInterval)

	runREPL(ctx, a, a.getStatus, bufio.NewScanner(os.Stdin))
	return nil
}

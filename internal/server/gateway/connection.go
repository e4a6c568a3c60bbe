package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophchat/internal/common"
	"github.com/dmitrijs2005/gophchat/internal/logging"
	"github.com/dmitrijs2005/gophchat/internal/server/realtime"
	"github.com/dmitrijs2005/gophchat/internal/server/services"
	"github.com/dmitrijs2005/gophchat/internal/server/session"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// State is the lifecycle stage of a connection.
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticating
	StateAuthenticated
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Client-facing error texts. They never carry internal details.
const (
	msgAuthFailed       = "invalid or expired credential"
	msgAlreadyAuthed    = "already authenticated"
	msgNotAuthenticated = "not authenticated"
	msgNotAuthorized    = "not authorized"
	msgInvalidContent   = "invalid content"
	msgDeliveryFailed   = "delivery failed"
	msgRateLimited      = "rate limited"
	msgNotFound         = "not found"
	msgRecallExpired    = "recall window expired"
	msgNotInRoom        = "join the conversation first"
	msgMalformed        = "malformed frame"
	msgUnknownEvent     = "unknown event"
	msgInternal         = "internal error"
)

// closeGrace bounds how long a rejected connection waits for its failure
// acknowledgment to be flushed.
const closeGrace = 5 * time.Second

// connection is owned by the goroutine running serve; none of its fields
// need locking.
type connection struct {
	g       *Gateway
	conn    *realtime.Conn
	state   State
	session *session.Session
	limiter *rate.Limiter
	logger  logging.Logger

	rejected bool
}

func newConnection(g *Gateway, conn *realtime.Conn) *connection {
	return &connection{
		g:       g,
		conn:    conn,
		state:   StateUnauthenticated,
		limiter: rate.NewLimiter(g.sendLimit, g.sendBurst),
		logger:  g.logger.With("conn_id", conn.ID),
	}
}

// serve reads frames until the connection ends, then tears down whatever
// the connection had set up.
func (c *connection) serve(ctx context.Context) {
	defer c.teardown(ctx)

	for c.state != StateClosed {
		raw, err := c.conn.Read()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) &&
				!errors.Is(err, websocket.ErrCloseSent) {
				c.logger.Debug(ctx, "read ended", "error", err)
			}
			return
		}
		c.handle(ctx, raw)
	}
}

func (c *connection) handle(ctx context.Context, raw []byte) {
	cmd, event, err := decodeCommand(raw)
	if err != nil {
		msg := msgMalformed
		if errors.Is(err, errUnknownEvent) {
			msg = msgUnknownEvent
		}
		c.reply(ctx, realtime.EventError, realtime.ErrorPayload{Event: event, Error: msg})
		return
	}

	if auth, ok := cmd.(authenticateCommand); ok {
		c.authenticate(ctx, auth)
		return
	}
	if c.state != StateAuthenticated {
		c.reply(ctx, realtime.EventError, realtime.ErrorPayload{Event: event, Error: msgNotAuthenticated})
		return
	}

	switch cmd := cmd.(type) {
	case sendMessageCommand:
		c.sendMessage(ctx, cmd)
	case joinRoomCommand:
		c.joinRoom(ctx, cmd)
	case leaveRoomCommand:
		c.g.deps.Rooms.Leave(ctx, c.session, cmd.ConversationID)
		c.reply(ctx, realtime.EventRoomLeft, realtime.RoomPayload{ConversationID: cmd.ConversationID})
	case recallMessageCommand:
		c.recall(ctx, cmd)
	case markReadCommand:
		c.markRead(ctx, cmd)
	case syncMessagesCommand:
		c.syncMessages(ctx, cmd)
	}
}

// authenticate drives Unauthenticated -> Authenticating -> Authenticated.
// Any failure closes the connection without retaining state.
func (c *connection) authenticate(ctx context.Context, cmd authenticateCommand) {
	if c.state == StateAuthenticated {
		c.reply(ctx, realtime.EventAuthenticated, realtime.AuthenticatedPayload{Success: false, Error: msgAlreadyAuthed})
		return
	}
	c.state = StateAuthenticating

	actx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	userID, err := c.g.deps.Auth.Verify(actx, cmd.Token)
	if err != nil {
		c.rejectAuth(ctx, err)
		return
	}
	user, err := c.g.deps.Users.Get(actx, userID)
	if err != nil {
		c.rejectAuth(ctx, err)
		return
	}

	s := session.New(c.conn.ID, user.ID, user.DisplayName(), c.conn)
	if replaced := c.g.deps.Registry.Add(s); replaced != nil {
		c.logger.Info(ctx, "session replaced", "user_id", user.ID, "old_conn_id", replaced.ID)
		replaced.Close(session.CloseReplaced, "session replaced")
	}
	c.session = s
	c.state = StateAuthenticated
	c.logger = c.logger.With("user_id", user.ID)

	c.reply(ctx, realtime.EventAuthenticated, realtime.AuthenticatedPayload{Success: true, UserID: user.ID})
	c.g.deps.Presence.Online(ctx, s)
	c.logger.Info(ctx, "authenticated")
}

func (c *connection) rejectAuth(ctx context.Context, err error) {
	c.logger.Info(ctx, "authentication failed", "error", err)
	c.reply(ctx, realtime.EventAuthenticated, realtime.AuthenticatedPayload{Success: false, Error: msgAuthFailed})
	c.state = StateClosed
	c.rejected = true
	c.conn.Shutdown(session.ClosePolicyViolation, "authentication failed")
}

// teardown runs once, when the read loop ends.
func (c *connection) teardown(ctx context.Context) {
	wasAuthed := c.state == StateAuthenticated
	c.state = StateClosed
	if c.rejected {
		select {
		case <-c.conn.Done():
		case <-time.After(closeGrace):
		}
	}
	c.conn.Close(websocket.CloseNormalClosure, "")

	if !wasAuthed {
		return
	}
	s := c.session
	current := c.g.deps.Registry.Remove(s)
	c.g.deps.Rooms.LeaveAll(s)
	if !current {
		// Replaced by a newer login, which owns the user's presence now.
		c.logger.Info(ctx, "disconnected", "replaced", true)
		return
	}
	c.g.deps.Presence.Offline(ctx, s)
	c.logger.Info(ctx, "disconnected")
}

func (c *connection) actor() services.Actor {
	return services.Actor{UserID: c.session.UserID, DisplayName: c.session.DisplayName}
}

func (c *connection) sendMessage(ctx context.Context, cmd sendMessageCommand) {
	fail := func(msg string) {
		c.reply(ctx, realtime.EventMessageError, realtime.MessageErrorPayload{
			Error:          msg,
			ConversationID: cmd.ConversationID,
			ClientID:       cmd.ClientID,
		})
	}

	if !c.limiter.Allow() {
		fail(msgRateLimited)
		return
	}

	msg, err := c.g.deps.Messages.Submit(ctx, c.actor(), services.SubmitRequest{
		ConversationID: cmd.ConversationID,
		Content:        cmd.Content,
		Type:           cmd.Type,
	})
	if err != nil {
		fail(errorText(err))
		return
	}
	c.reply(ctx, realtime.EventMessageSent, realtime.MessageSentPayload{Message: msg, ClientID: cmd.ClientID})
}

func (c *connection) joinRoom(ctx context.Context, cmd joinRoomCommand) {
	jctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	if err := c.g.deps.Rooms.Join(jctx, c.session, cmd.ConversationID); err != nil {
		c.fail(ctx, realtime.EventJoinRoom, err)
		return
	}
	c.reply(ctx, realtime.EventRoomJoined, realtime.RoomPayload{ConversationID: cmd.ConversationID})
}

func (c *connection) recall(ctx context.Context, cmd recallMessageCommand) {
	rctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	if err := c.g.deps.Messages.Recall(rctx, c.actor(), cmd.MessageID); err != nil {
		c.fail(ctx, realtime.EventRecallMessage, err)
	}
}

func (c *connection) markRead(ctx context.Context, cmd markReadCommand) {
	mctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	last, unread, err := c.g.deps.Unread.MarkRead(mctx, c.session.UserID, cmd.ConversationID, cmd.UptoMessageID)
	if err != nil {
		c.fail(ctx, realtime.EventMarkRead, err)
		return
	}
	c.reply(ctx, realtime.EventReadUpdated, realtime.ReadUpdatedPayload{
		ConversationID:   cmd.ConversationID,
		LastReadSequence: last,
		UnreadCount:      unread,
	})
}

// syncMessages is a pull tied to the room the client is viewing.
func (c *connection) syncMessages(ctx context.Context, cmd syncMessagesCommand) {
	if !c.session.InRoom(cmd.ConversationID) {
		c.reply(ctx, realtime.EventError, realtime.ErrorPayload{Event: realtime.EventSyncMessages, Error: msgNotInRoom})
		return
	}

	sctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	msgs, err := c.g.deps.Messages.ListMessages(sctx, c.actor(), cmd.ConversationID, cmd.SinceSequence, cmd.Limit)
	if err != nil {
		c.fail(ctx, realtime.EventSyncMessages, err)
		return
	}
	c.reply(ctx, realtime.EventMessages, realtime.MessagesPayload{ConversationID: cmd.ConversationID, Messages: msgs})
}

func (c *connection) fail(ctx context.Context, event string, err error) {
	text := errorText(err)
	if text == msgInternal || text == msgDeliveryFailed {
		c.logger.Error(ctx, "command failed", "event", event, "error", err)
	}
	c.reply(ctx, realtime.EventError, realtime.ErrorPayload{Event: event, Error: text})
}

func (c *connection) reply(ctx context.Context, event string, payload any) {
	frame, err := realtime.Encode(event, payload)
	if err != nil {
		c.logger.Error(ctx, "encode failed", "event", event, "error", err)
		return
	}
	if err := c.conn.Send(frame); err != nil {
		c.logger.Debug(ctx, "reply dropped", "event", event, "error", err)
	}
}

// errorText maps an error onto the generic text shown to clients.
func errorText(err error) string {
	switch {
	case errors.Is(err, common.ErrNotAuthorized):
		return msgNotAuthorized
	case errors.Is(err, common.ErrInvalidContent):
		return msgInvalidContent
	case errors.Is(err, common.ErrDeliveryFailed):
		return msgDeliveryFailed
	case errors.Is(err, common.ErrorNotFound):
		return msgNotFound
	case errors.Is(err, common.ErrRecallExpired):
		return msgRecallExpired
	}
	return msgInternal
}

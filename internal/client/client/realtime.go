package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/gophchat/internal/server/models"
	"github.com/dmitrijs2005/gophchat/internal/server/realtime"
	"github.com/gorilla/websocket"
)

// Realtime is one websocket session with the gateway.
type Realtime struct {
	ws     *websocket.Conn
	events chan realtime.Frame

	writeMu sync.Mutex

	mu  sync.Mutex
	err error
}

// DialRealtime opens the websocket and starts reading frames. Frames are
// delivered on Events until the connection ends.
func DialRealtime(ctx context.Context, url string) (*Realtime, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	r := &Realtime{ws: ws, events: make(chan realtime.Frame, 64)}
	go r.readLoop()
	return r, nil
}

func (r *Realtime) readLoop() {
	defer close(r.events)
	for {
		_, data, err := r.ws.ReadMessage()
		if err != nil {
			r.mu.Lock()
			r.err = err
			r.mu.Unlock()
			return
		}
		var f realtime.Frame
		if err := json.Unmarshal(data, &f); err != nil {
			continue
		}
		r.events <- f
	}
}

// Events is closed when the connection ends; Err then reports why.
func (r *Realtime) Events() <-chan realtime.Frame {
	return r.events
}

func (r *Realtime) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Authenticate sends the credential and waits for the answer. It must be
// called before anything else consumes Events.
func (r *Realtime) Authenticate(ctx context.Context, token string) (int64, error) {
	if err := r.Send(realtime.EventAuthenticate, map[string]string{"token": token}); err != nil {
		return 0, err
	}
	for {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case f, ok := <-r.events:
			if !ok {
				return 0, ErrClosed
			}
			if f.Event != realtime.EventAuthenticated {
				continue
			}
			var p realtime.AuthenticatedPayload
			if err := json.Unmarshal(f.Data, &p); err != nil {
				return 0, err
			}
			if !p.Success {
				return 0, fmt.Errorf("%w: %s", ErrAuthRejected, p.Error)
			}
			return p.UserID, nil
		}
	}
}

// Send writes one frame. Safe for concurrent use.
func (r *Realtime) Send(event string, payload any) error {
	frame, err := realtime.Encode(event, payload)
	if err != nil {
		return err
	}
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	if err := r.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("%w: %v", ErrClosed, err)
	}
	return nil
}

func (r *Realtime) Join(conversationID int64) error {
	return r.Send(realtime.EventJoinRoom, realtime.RoomPayload{ConversationID: conversationID})
}

func (r *Realtime) Leave(conversationID int64) error {
	return r.Send(realtime.EventLeaveRoom, realtime.RoomPayload{ConversationID: conversationID})
}

// SendMessage submits content; clientID comes back on message_sent or
// message_error so the caller can correlate.
func (r *Realtime) SendMessage(conversationID int64, typ models.MessageType, content, clientID string) error {
	return r.Send(realtime.EventSendMessage, map[string]any{
		"conversationId": conversationID,
		"content":        content,
		"type":           typ,
		"clientId":       clientID,
	})
}

func (r *Realtime) Recall(messageID int64) error {
	return r.Send(realtime.EventRecallMessage, map[string]int64{"messageId": messageID})
}

func (r *Realtime) MarkRead(conversationID, uptoMessageID int64) error {
	return r.Send(realtime.EventMarkRead, map[string]int64{
		"conversationId": conversationID,
		"uptoMessageId":  uptoMessageID,
	})
}

func (r *Realtime) Sync(conversationID, sinceSequence int64, limit int) error {
	return r.Send(realtime.EventSyncMessages, map[string]any{
		"conversationId": conversationID,
		"sinceSequence":  sinceSequence,
		"limit":          limit,
	})
}

// Close sends a normal close frame and drops the connection.
func (r *Realtime) Close() error {
	r.writeMu.Lock()
	_ = r.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
	r.writeMu.Unlock()
	return r.ws.Close()
}

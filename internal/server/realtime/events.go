package realtime

import (
	"encoding/json"
	"time"

	"github.com/dmitrijs2005/gophchat/internal/server/models"
)

// Event names, inbound and outbound.
const (
	EventAuthenticate        = "authenticate"
	EventAuthenticated       = "authenticated"
	EventJoinRoom            = "join_room"
	EventLeaveRoom           = "leave_room"
	EventRoomJoined          = "room_joined"
	EventRoomLeft            = "room_left"
	EventSendMessage         = "send_message"
	EventMessageSent         = "message_sent"
	EventMessageError        = "message_error"
	EventReceiveMessage      = "receive_message"
	EventConversationUpdated = "conversation_updated"
	EventNewConversation     = "new_conversation"
	EventUserStatus          = "user_status"
	EventRecallMessage       = "recall_message"
	EventMessageRecalled     = "message_recalled"
	EventMarkRead            = "mark_read"
	EventReadUpdated         = "read_updated"
	EventSyncMessages        = "sync_messages"
	EventMessages            = "messages"
	EventError               = "error"
)

// Frame is the envelope of every websocket message in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode wraps payload into a Frame and serializes it.
func Encode(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Event: event, Data: data})
}

type AuthenticatedPayload struct {
	Success bool   `json:"success"`
	UserID  int64  `json:"userId,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ReceiveMessagePayload is the fan-out form of a persisted message.
type ReceiveMessagePayload struct {
	*models.Message
	SenderAvatar string `json:"senderAvatar,omitempty"`
}

type ConversationUpdatedPayload struct {
	ConversationID     int64           `json:"conversationId"`
	LastMessagePreview *models.Preview `json:"lastMessagePreview,omitempty"`
}

type NewConversationPayload struct {
	ConversationID int64                   `json:"conversationId"`
	Kind           models.ConversationKind `json:"kind"`
	Name           string                  `json:"name,omitempty"`
}

type UserStatusPayload struct {
	UserID   int64     `json:"userId"`
	Status   string    `json:"status"`
	LastSeen time.Time `json:"lastSeen"`
}

type MessageSentPayload struct {
	Message  *models.Message `json:"message"`
	ClientID string          `json:"clientId,omitempty"`
}

type MessageErrorPayload struct {
	Error          string `json:"error"`
	ConversationID int64  `json:"conversationId,omitempty"`
	ClientID       string `json:"clientId,omitempty"`
}

type MessageRecalledPayload struct {
	ConversationID int64 `json:"conversationId"`
	MessageID      int64 `json:"messageId"`
}

type ReadUpdatedPayload struct {
	ConversationID   int64 `json:"conversationId"`
	LastReadSequence int64 `json:"lastReadSequence"`
	UnreadCount      int64 `json:"unreadCount"`
}

type MessagesPayload struct {
	ConversationID int64             `json:"conversationId"`
	Messages       []*models.Message `json:"messages"`
}

type RoomPayload struct {
	ConversationID int64 `json:"conversationId"`
}

type ErrorPayload struct {
	Event string `json:"event,omitempty"`
	Error string `json:"error"`
}

package models

import "time"

// MessageType is the kind of content a message carries.
type MessageType string

const (
	MessageText  MessageType = "text"
	MessageFile  MessageType = "file"
	MessageAudio MessageType = "audio"
)

// Valid reports whether t is one of text, file or audio.
func (t MessageType) Valid() bool {
	switch t {
	case MessageText, MessageFile, MessageAudio:
		return true
	}
	return false
}

// Message is a persisted message. Sequence is unique and gap-free within its
// conversation and defines the conversation's total order.
type Message struct {
	ID             int64       `json:"id"`
	ConversationID int64       `json:"conversationId"`
	SenderID       int64       `json:"senderId"`
	SenderName     string      `json:"senderName"`
	Content        string      `json:"content"`
	Type           MessageType `json:"type"`
	Sequence       int64       `json:"sequence"`
	CreatedAt      time.Time   `json:"createdAt"`
	Deleted        bool        `json:"deleted"`
}

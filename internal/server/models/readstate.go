package models

import "time"

// ReadState is a user's read position in one conversation.
// LastReadSequence never decreases.
type ReadState struct {
	ConversationID   int64
	UserID           int64
	LastReadSequence int64
}

// ParticipantRead is a participant's read position joined with their
// display info. UpdatedAt is zero for a participant who never read.
type ParticipantRead struct {
	ReadState
	Username  string
	Nickname  string
	UpdatedAt time.Time
}

// DisplayName prefers the nickname over the username.
func (p *ParticipantRead) DisplayName() string {
	if p.Nickname != "" {
		return p.Nickname
	}
	return p.Username
}

const (
	ReceiptRead   = "read"
	ReceiptUnread = "unread"
)

// Receipt is whether one recipient has read a message.
type Receipt struct {
	UserID      int64     `json:"userId"`
	DisplayName string    `json:"displayName"`
	Status      string    `json:"status"`
	UpdatedAt   time.Time `json:"updatedAt,omitempty"`
}

// MessageStatus lists a receipt for every participant except the sender.
type MessageStatus struct {
	MessageID      int64     `json:"messageId"`
	ConversationID int64     `json:"conversationId"`
	Sequence       int64     `json:"sequence"`
	Receipts       []Receipt `json:"receipts"`
}

package models

import (
	"time"

	"github.com/dmitrijs2005/gophchat/internal/common"
)

// PreviewMaxRunes bounds the text of a conversation list preview.
const PreviewMaxRunes = 64

// Preview is the short form of a conversation's latest message.
type Preview struct {
	MessageID  int64       `json:"messageId"`
	Sequence   int64       `json:"sequence"`
	SenderID   int64       `json:"senderId"`
	SenderName string      `json:"senderName"`
	Type       MessageType `json:"type"`
	Content    string      `json:"content"`
	CreatedAt  time.Time   `json:"createdAt"`
}

// NewPreview builds the preview of m. Text is truncated; file and audio
// messages are shown as a marker.
func NewPreview(m *Message) *Preview {
	p := &Preview{
		MessageID:  m.ID,
		Sequence:   m.Sequence,
		SenderID:   m.SenderID,
		SenderName: m.SenderName,
		Type:       m.Type,
		CreatedAt:  m.CreatedAt,
	}
	switch {
	case m.Deleted:
		p.Content = "[recalled]"
	case m.Type == MessageFile:
		p.Content = "[file]"
	case m.Type == MessageAudio:
		p.Content = "[audio]"
	default:
		p.Content = common.Truncate(m.Content, PreviewMaxRunes)
	}
	return p
}

// ConversationSummary is one line of a user's conversation list.
type ConversationSummary struct {
	ID           int64            `json:"id"`
	Kind         ConversationKind `json:"kind"`
	Name         string           `json:"name"`
	DisplayName  string           `json:"displayName"`
	Preview      *Preview         `json:"lastMessage,omitempty"`
	LastActivity time.Time        `json:"lastActivity"`
	CreatedAt    time.Time        `json:"createdAt"`
}

// Activity is the ordering key of a summary: its newest message time or,
// for an empty conversation, its creation time.
func (s *ConversationSummary) Activity() time.Time {
	if s.Preview != nil {
		return s.Preview.CreatedAt
	}
	return s.CreatedAt
}

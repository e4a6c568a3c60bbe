package grpc

import (
	"time"

	"github.com/dmitrijs2005/gophchat/internal/server/models"
	"github.com/dmitrijs2005/gophchat/internal/server/services"
)

type Empty struct{}

type PingResponse struct {
	Status string `json:"status"`
}

type ListConversationsResponse struct {
	Conversations []*models.ConversationSummary `json:"conversations"`
}

type ListMessagesRequest struct {
	ConversationID int64 `json:"conversationId"`
	SinceSequence  int64 `json:"sinceSequence"`
	Limit          int   `json:"limit,omitempty"`
}

type ListMessagesResponse struct {
	Messages []*models.Message `json:"messages"`
}

type ConversationRequest struct {
	ConversationID int64 `json:"conversationId"`
}

type UnreadCountResponse struct {
	ConversationID int64 `json:"conversationId"`
	Count          int64 `json:"count"`
}

type MarkReadRequest struct {
	ConversationID int64 `json:"conversationId"`
	UptoMessageID  int64 `json:"uptoMessageId"`
}

type MarkReadResponse struct {
	LastReadSequence int64 `json:"lastReadSequence"`
	UnreadCount      int64 `json:"unreadCount"`
}

type ParticipantInfo struct {
	UserID      int64       `json:"userId"`
	Username    string      `json:"username"`
	DisplayName string      `json:"displayName"`
	Role        models.Role `json:"role"`
	Online      bool        `json:"online"`
	LastSeen    time.Time   `json:"lastSeen"`
}

type ListParticipantsResponse struct {
	Participants []ParticipantInfo `json:"participants"`
}

type RoleRequest struct {
	ConversationID int64       `json:"conversationId"`
	UserID         int64       `json:"userId"`
	Role           models.Role `json:"role,omitempty"`
}

type RoleResponse struct {
	Role models.Role `json:"role"`
}

type ConversationInfo struct {
	ID        int64                   `json:"id"`
	Kind      models.ConversationKind `json:"kind"`
	Name      string                  `json:"name,omitempty"`
	OwnerID   int64                   `json:"ownerId"`
	CreatedAt time.Time               `json:"createdAt"`
}

type CreatePrivateRequest struct {
	PeerID int64 `json:"peerId"`
}

type CreateGroupRequest struct {
	Name      string  `json:"name"`
	MemberIDs []int64 `json:"memberIds"`
}

type CreateConversationResponse struct {
	Conversation ConversationInfo `json:"conversation"`
	Created      bool             `json:"created"`
}

type ParticipantsRequest struct {
	ConversationID int64   `json:"conversationId"`
	UserIDs        []int64 `json:"userIds"`
}

type AddParticipantsResponse struct {
	Added []int64 `json:"added"`
}

type RemoveParticipantRequest struct {
	ConversationID int64 `json:"conversationId"`
	UserID         int64 `json:"userId"`
}

type RecallMessageRequest struct {
	MessageID int64 `json:"messageId"`
}

type MessageStatusRequest struct {
	MessageID int64 `json:"messageId"`
}

type PresignUploadRequest struct {
	Kind     models.MessageType `json:"kind"`
	Filename string             `json:"filename"`
}

type PresignUploadResponse struct {
	Ticket *services.UploadTicket `json:"ticket"`
}

func conversationInfo(c *models.Conversation) ConversationInfo {
	return ConversationInfo{ID: c.ID, Kind: c.Kind, Name: c.Name, OwnerID: c.OwnerID, CreatedAt: c.CreatedAt}
}

func participantInfo(p *models.Participant) ParticipantInfo {
	return ParticipantInfo{
		UserID:      p.ID,
		Username:    p.Username,
		DisplayName: p.DisplayName(),
		Role:        p.Role,
		Online:      p.Online,
		LastSeen:    p.LastSeen,
	}
}

package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/gophchat/internal/common"
	"github.com/dmitrijs2005/gophchat/internal/server/models"
	"github.com/dmitrijs2005/gophchat/internal/server/services"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// toStatus maps domain errors onto gRPC status codes.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, common.ErrNotAuthorized):
		return status.Error(codes.PermissionDenied, "not authorized")
	case errors.Is(err, common.ErrInvalidContent):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrorNotFound):
		return status.Error(codes.NotFound, "not found")
	case errors.Is(err, common.ErrRecallExpired):
		return status.Error(codes.FailedPrecondition, "recall window has passed")
	case errors.Is(err, common.ErrInvalidToken), errors.Is(err, common.ErrTokenExpired):
		return status.Error(codes.Unauthenticated, "invalid or expired token")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "canceled")
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "deadline exceeded")
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

func (s *GRPCServer) actor(ctx context.Context) (services.Actor, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return services.Actor{}, err
	}
	return services.Actor{UserID: userID}, nil
}

func (s *GRPCServer) internal(ctx context.Context, method string, err error) error {
	st := toStatus(err)
	if status.Code(st) == codes.Internal {
		s.logger.Error(ctx, "rpc failed", "method", method, "error", err)
	}
	return st
}

func (s *GRPCServer) Ping(ctx context.Context, _ *Empty) (*PingResponse, error) {
	return &PingResponse{Status: "ok"}, nil
}

func (s *GRPCServer) ListConversations(ctx context.Context, _ *Empty) (*ListConversationsResponse, error) {
	a, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	list, err := s.services.Conversations.List(ctx, a.UserID)
	if err != nil {
		return nil, s.internal(ctx, MethodListConversations, err)
	}
	return &ListConversationsResponse{Conversations: list}, nil
}

func (s *GRPCServer) ListMessages(ctx context.Context, req *ListMessagesRequest) (*ListMessagesResponse, error) {
	a, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	msgs, err := s.services.Messages.ListMessages(ctx, a, req.ConversationID, req.SinceSequence, req.Limit)
	if err != nil {
		return nil, s.internal(ctx, MethodListMessages, err)
	}
	return &ListMessagesResponse{Messages: msgs}, nil
}

func (s *GRPCServer) GetUnreadCount(ctx context.Context, req *ConversationRequest) (*UnreadCountResponse, error) {
	a, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	n, err := s.services.Unread.UnreadCount(ctx, a.UserID, req.ConversationID)
	if err != nil {
		return nil, s.internal(ctx, MethodGetUnreadCount, err)
	}
	return &UnreadCountResponse{ConversationID: req.ConversationID, Count: n}, nil
}

func (s *GRPCServer) MarkRead(ctx context.Context, req *MarkReadRequest) (*MarkReadResponse, error) {
	a, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	last, unread, err := s.services.Unread.MarkRead(ctx, a.UserID, req.ConversationID, req.UptoMessageID)
	if err != nil {
		return nil, s.internal(ctx, MethodMarkRead, err)
	}
	return &MarkReadResponse{LastReadSequence: last, UnreadCount: unread}, nil
}

func (s *GRPCServer) ListParticipants(ctx context.Context, req *ConversationRequest) (*ListParticipantsResponse, error) {
	a, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	list, err := s.services.Conversations.ListParticipants(ctx, a, req.ConversationID)
	if err != nil {
		return nil, s.internal(ctx, MethodListParticipants, err)
	}
	out := make([]ParticipantInfo, 0, len(list))
	for _, p := range list {
		out = append(out, participantInfo(p))
	}
	return &ListParticipantsResponse{Participants: out}, nil
}

func (s *GRPCServer) GetRole(ctx context.Context, req *RoleRequest) (*RoleResponse, error) {
	a, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	role, err := s.services.Conversations.GetRole(ctx, a, req.ConversationID, req.UserID)
	if err != nil {
		return nil, s.internal(ctx, MethodGetRole, err)
	}
	return &RoleResponse{Role: role}, nil
}

func (s *GRPCServer) SetRole(ctx context.Context, req *RoleRequest) (*Empty, error) {
	a, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	upd := services.RoleUpdate{UserID: req.UserID, Role: req.Role}
	if err := s.services.Conversations.SetRole(ctx, a, req.ConversationID, upd); err != nil {
		return nil, s.internal(ctx, MethodSetRole, err)
	}
	return &Empty{}, nil
}

func (s *GRPCServer) CreatePrivateConversation(ctx context.Context, req *CreatePrivateRequest) (*CreateConversationResponse, error) {
	a, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	conv, created, err := s.services.Conversations.CreatePrivate(ctx, a, req.PeerID)
	if err != nil {
		return nil, s.internal(ctx, MethodCreatePrivateConversation, err)
	}
	return &CreateConversationResponse{Conversation: conversationInfo(conv), Created: created}, nil
}

func (s *GRPCServer) CreateGroupConversation(ctx context.Context, req *CreateGroupRequest) (*CreateConversationResponse, error) {
	a, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	conv, err := s.services.Conversations.CreateGroup(ctx, a, req.Name, req.MemberIDs)
	if err != nil {
		return nil, s.internal(ctx, MethodCreateGroupConversation, err)
	}
	return &CreateConversationResponse{Conversation: conversationInfo(conv), Created: true}, nil
}

func (s *GRPCServer) AddParticipants(ctx context.Context, req *ParticipantsRequest) (*AddParticipantsResponse, error) {
	a, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	added, err := s.services.Conversations.AddParticipants(ctx, a, req.ConversationID, req.UserIDs)
	if err != nil {
		return nil, s.internal(ctx, MethodAddParticipants, err)
	}
	if added == nil {
		added = []int64{}
	}
	return &AddParticipantsResponse{Added: added}, nil
}

func (s *GRPCServer) RemoveParticipant(ctx context.Context, req *RemoveParticipantRequest) (*Empty, error) {
	a, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.services.Conversations.RemoveParticipant(ctx, a, req.ConversationID, req.UserID); err != nil {
		return nil, s.internal(ctx, MethodRemoveParticipant, err)
	}
	return &Empty{}, nil
}

func (s *GRPCServer) RecallMessage(ctx context.Context, req *RecallMessageRequest) (*Empty, error) {
	a, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.services.Messages.Recall(ctx, a, req.MessageID); err != nil {
		return nil, s.internal(ctx, MethodRecallMessage, err)
	}
	return &Empty{}, nil
}

// GetMessageStatus reports which participants have read a message.
func (s *GRPCServer) GetMessageStatus(ctx context.Context, req *MessageStatusRequest) (*models.MessageStatus, error) {
	a, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	st, err := s.services.Unread.ReadBy(ctx, a.UserID, req.MessageID)
	if err != nil {
		return nil, s.internal(ctx, MethodGetMessageStatus, err)
	}
	return st, nil
}

func (s *GRPCServer) PresignUpload(ctx context.Context, req *PresignUploadRequest) (*PresignUploadResponse, error) {
	a, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	ticket, err := s.services.Blobs.PresignUpload(ctx, a.UserID, req.Kind, req.Filename)
	if err != nil {
		return nil, s.internal(ctx, MethodPresignUpload, err)
	}
	return &PresignUploadResponse{Ticket: ticket}, nil
}

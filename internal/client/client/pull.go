package client

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/gophchat/internal/common"
	"github.com/dmitrijs2005/gophchat/internal/server/models"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	gs "github.com/dmitrijs2005/gophchat/internal/server/grpc"
)

// Pull is a client of the gRPC pull API.
type Pull struct {
	conn  *grpc.ClientConn
	api   *gs.PullClient
	token string
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(common.AccessTokenHeaderName, token)
	return metadata.NewOutgoingContext(ctx, md)
}

func (p *Pull) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	return invoker(withAccessToken(ctx, p.token), method, req, reply, cc, opts...)
}

// NewPull connects lazily to addr; extra options are appended after the
// defaults (tests pass a bufconn dialer).
func NewPull(addr, token string, opts ...grpc.DialOption) (*Pull, error) {
	p := &Pull{token: token}
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(p.accessTokenInterceptor),
	}, opts...)

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, err
	}
	p.conn = conn
	p.api = gs.NewPullClient(conn)
	return p, nil
}

func (p *Pull) Close() error {
	return p.conn.Close()
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return fmt.Errorf("%w: %s", ErrUnauthorized, st.Message())
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}

func (p *Pull) Ping(ctx context.Context) error {
	_, err := p.api.Ping(ctx)
	return mapError(err)
}

func (p *Pull) Conversations(ctx context.Context) ([]*models.ConversationSummary, error) {
	resp, err := p.api.ListConversations(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	return resp.Conversations, nil
}

func (p *Pull) History(ctx context.Context, conversationID, sinceSequence int64, limit int) ([]*models.Message, error) {
	resp, err := p.api.ListMessages(ctx, &gs.ListMessagesRequest{ConversationID: conversationID, SinceSequence: sinceSequence, Limit: limit})
	if err != nil {
		return nil, mapError(err)
	}
	return resp.Messages, nil
}

func (p *Pull) UnreadCount(ctx context.Context, conversationID int64) (int64, error) {
	resp, err := p.api.GetUnreadCount(ctx, &gs.ConversationRequest{ConversationID: conversationID})
	if err != nil {
		return 0, mapError(err)
	}
	return resp.Count, nil
}

func (p *Pull) Participants(ctx context.Context, conversationID int64) ([]gs.ParticipantInfo, error) {
	resp, err := p.api.ListParticipants(ctx, &gs.ConversationRequest{ConversationID: conversationID})
	if err != nil {
		return nil, mapError(err)
	}
	return resp.Participants, nil
}

// MessageStatus returns the read receipts of a message.
func (p *Pull) MessageStatus(ctx context.Context, messageID int64) (*models.MessageStatus, error) {
	st, err := p.api.GetMessageStatus(ctx, &gs.MessageStatusRequest{MessageID: messageID})
	if err != nil {
		return nil, mapError(err)
	}
	return st, nil
}

func (p *Pull) CreatePrivate(ctx context.Context, peerID int64) (*gs.CreateConversationResponse, error) {
	resp, err := p.api.CreatePrivateConversation(ctx, &gs.CreatePrivateRequest{PeerID: peerID})
	return resp, mapError(err)
}

func (p *Pull) CreateGroup(ctx context.Context, name string, memberIDs []int64) (*gs.CreateConversationResponse, error) {
	resp, err := p.api.CreateGroupConversation(ctx, &gs.CreateGroupRequest{Name: name, MemberIDs: memberIDs})
	return resp, mapError(err)
}

package grpc

import (
	"context"

	"github.com/dmitrijs2005/gophchat/internal/server/models"
	"google.golang.org/grpc"
)

// ServiceName is the fully qualified name of the pull API.
const ServiceName = "gophchat.PullService"

// Method names of the pull API.
const (
	MethodPing                      = "Ping"
	MethodListConversations         = "ListConversations"
	MethodListMessages              = "ListMessages"
	MethodGetUnreadCount            = "GetUnreadCount"
	MethodMarkRead                  = "MarkRead"
	MethodListParticipants          = "ListParticipants"
	MethodGetRole                   = "GetRole"
	MethodSetRole                   = "SetRole"
	MethodCreatePrivateConversation = "CreatePrivateConversation"
	MethodCreateGroupConversation   = "CreateGroupConversation"
	MethodAddParticipants           = "AddParticipants"
	MethodRemoveParticipant         = "RemoveParticipant"
	MethodRecallMessage             = "RecallMessage"
	MethodPresignUpload             = "PresignUpload"
	MethodGetMessageStatus          = "GetMessageStatus"
)

// FullMethod returns the gRPC path of a pull API method.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// PullServiceServer is the request/response side of the chat: history,
// read state, rosters and conversation management.
type PullServiceServer interface {
	Ping(context.Context, *Empty) (*PingResponse, error)
	ListConversations(context.Context, *Empty) (*ListConversationsResponse, error)
	ListMessages(context.Context, *ListMessagesRequest) (*ListMessagesResponse, error)
	GetUnreadCount(context.Context, *ConversationRequest) (*UnreadCountResponse, error)
	MarkRead(context.Context, *MarkReadRequest) (*MarkReadResponse, error)
	ListParticipants(context.Context, *ConversationRequest) (*ListParticipantsResponse, error)
	GetRole(context.Context, *RoleRequest) (*RoleResponse, error)
	SetRole(context.Context, *RoleRequest) (*Empty, error)
	CreatePrivateConversation(context.Context, *CreatePrivateRequest) (*CreateConversationResponse, error)
	CreateGroupConversation(context.Context, *CreateGroupRequest) (*CreateConversationResponse, error)
	AddParticipants(context.Context, *ParticipantsRequest) (*AddParticipantsResponse, error)
	RemoveParticipant(context.Context, *RemoveParticipantRequest) (*Empty, error)
	RecallMessage(context.Context, *RecallMessageRequest) (*Empty, error)
	PresignUpload(context.Context, *PresignUploadRequest) (*PresignUploadResponse, error)
	GetMessageStatus(context.Context, *MessageStatusRequest) (*models.MessageStatus, error)
}

func unary[Req, Resp any](method string, call func(PullServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(PullServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(method)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(PullServiceServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// PullServiceDesc describes the pull API for grpc.Server.RegisterService.
var PullServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PullServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodPing, PullServiceServer.Ping),
		unary(MethodListConversations, PullServiceServer.ListConversations),
		unary(MethodListMessages, PullServiceServer.ListMessages),
		unary(MethodGetUnreadCount, PullServiceServer.GetUnreadCount),
		unary(MethodMarkRead, PullServiceServer.MarkRead),
		unary(MethodListParticipants, PullServiceServer.ListParticipants),
		unary(MethodGetRole, PullServiceServer.GetRole),
		unary(MethodSetRole, PullServiceServer.SetRole),
		unary(MethodCreatePrivateConversation, PullServiceServer.CreatePrivateConversation),
		unary(MethodCreateGroupConversation, PullServiceServer.CreateGroupConversation),
		unary(MethodAddParticipants, PullServiceServer.AddParticipants),
		unary(MethodRemoveParticipant, PullServiceServer.RemoveParticipant),
		unary(MethodRecallMessage, PullServiceServer.RecallMessage),
		unary(MethodPresignUpload, PullServiceServer.PresignUpload),
		unary(MethodGetMessageStatus, PullServiceServer.GetMessageStatus),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "gophchat/pull",
}

// PullClient calls the pull API over a client connection using the JSON
// codec.
type PullClient struct {
	cc grpc.ClientConnInterface
}

func NewPullClient(cc grpc.ClientConnInterface) *PullClient {
	return &PullClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts ...grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *PullClient) Ping(ctx context.Context, opts ...grpc.CallOption) (*PingResponse, error) {
	return invoke[PingResponse](ctx, c.cc, MethodPing, &Empty{}, opts...)
}

func (c *PullClient) ListConversations(ctx context.Context, opts ...grpc.CallOption) (*ListConversationsResponse, error) {
	return invoke[ListConversationsResponse](ctx, c.cc, MethodListConversations, &Empty{}, opts...)
}

func (c *PullClient) ListMessages(ctx context.Context, in *ListMessagesRequest, opts ...grpc.CallOption) (*ListMessagesResponse, error) {
	return invoke[ListMessagesResponse](ctx, c.cc, MethodListMessages, in, opts...)
}

func (c *PullClient) GetUnreadCount(ctx context.Context, in *ConversationRequest, opts ...grpc.CallOption) (*UnreadCountResponse, error) {
	return invoke[UnreadCountResponse](ctx, c.cc, MethodGetUnreadCount, in, opts...)
}

func (c *PullClient) MarkRead(ctx context.Context, in *MarkReadRequest, opts ...grpc.CallOption) (*MarkReadResponse, error) {
	return invoke[MarkReadResponse](ctx, c.cc, MethodMarkRead, in, opts...)
}

func (c *PullClient) ListParticipants(ctx context.Context, in *ConversationRequest, opts ...grpc.CallOption) (*ListParticipantsResponse, error) {
	return invoke[ListParticipantsResponse](ctx, c.cc, MethodListParticipants, in, opts...)
}

func (c *PullClient) GetRole(ctx context.Context, in *RoleRequest, opts ...grpc.CallOption) (*RoleResponse, error) {
	return invoke[RoleResponse](ctx, c.cc, MethodGetRole, in, opts...)
}

func (c *PullClient) SetRole(ctx context.Context, in *RoleRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, MethodSetRole, in, opts...)
}

func (c *PullClient) CreatePrivateConversation(ctx context.Context, in *CreatePrivateRequest, opts ...grpc.CallOption) (*CreateConversationResponse, error) {
	return invoke[CreateConversationResponse](ctx, c.cc, MethodCreatePrivateConversation, in, opts...)
}

func (c *PullClient) CreateGroupConversation(ctx context.Context, in *CreateGroupRequest, opts ...grpc.CallOption) (*CreateConversationResponse, error) {
	return invoke[CreateConversationResponse](ctx, c.cc, MethodCreateGroupConversation, in, opts...)
}

func (c *PullClient) AddParticipants(ctx context.Context, in *ParticipantsRequest, opts ...grpc.CallOption) (*AddParticipantsResponse, error) {
	return invoke[AddParticipantsResponse](ctx, c.cc, MethodAddParticipants, in, opts...)
}

func (c *PullClient) RemoveParticipant(ctx context.Context, in *RemoveParticipantRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, MethodRemoveParticipant, in, opts...)
}

func (c *PullClient) RecallMessage(ctx context.Context, in *RecallMessageRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, MethodRecallMessage, in, opts...)
}

func (c *PullClient) PresignUpload(ctx context.Context, in *PresignUploadRequest, opts ...grpc.CallOption) (*PresignUploadResponse, error) {
	return invoke[PresignUploadResponse](ctx, c.cc, MethodPresignUpload, in, opts...)
}

func (c *PullClient) GetMessageStatus(ctx context.Context, in *MessageStatusRequest, opts ...grpc.CallOption) (*models.MessageStatus, error) {
	return invoke[models.MessageStatus](ctx, c.cc, MethodGetMessageStatus, in, opts...)
}

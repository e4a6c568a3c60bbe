// Package grpc exposes the pull API: conversation lists, message history,
// read state, rosters and conversation management. Messages are JSON
// encoded; there is no generated code.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/gophchat/internal/logging"
	"github.com/dmitrijs2005/gophchat/internal/server/models"
	"github.com/dmitrijs2005/gophchat/internal/server/services"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type Authenticator interface {
	Verify(ctx context.Context, credential string) (int64, error)
}

type Conversations interface {
	List(ctx context.Context, userID int64) ([]*models.ConversationSummary, error)
	CreatePrivate(ctx context.Context, actor services.Actor, peerID int64) (*models.Conversation, bool, error)
	CreateGroup(ctx context.Context, actor services.Actor, name string, memberIDs []int64) (*models.Conversation, error)
	AddParticipants(ctx context.Context, actor services.Actor, conversationID int64, userIDs []int64) ([]int64, error)
	RemoveParticipant(ctx context.Context, actor services.Actor, conversationID, targetID int64) error
	SetRole(ctx context.Context, actor services.Actor, conversationID int64, upd services.RoleUpdate) error
	GetRole(ctx context.Context, actor services.Actor, conversationID, userID int64) (models.Role, error)
	ListParticipants(ctx context.Context, actor services.Actor, conversationID int64) ([]*models.Participant, error)
}

type Messages interface {
	Recall(ctx context.Context, actor services.Actor, messageID int64) error
	ListMessages(ctx context.Context, actor services.Actor, conversationID, sinceSequence int64, limit int) ([]*models.Message, error)
}

type Unread interface {
	MarkRead(ctx context.Context, userID, conversationID, uptoMessageID int64) (int64, int64, error)
	UnreadCount(ctx context.Context, userID, conversationID int64) (int64, error)
	ReadBy(ctx context.Context, userID, messageID int64) (*models.MessageStatus, error)
}

type Blobs interface {
	PresignUpload(ctx context.Context, userID int64, kind models.MessageType, filename string) (*services.UploadTicket, error)
}

// Services bundles what the pull API dispatches to.
type Services struct {
	Conversations Conversations
	Messages      Messages
	Unread        Unread
	Blobs         Blobs
}

type GRPCServer struct {
	address  string
	services Services
	auth     Authenticator
	health   *health.Server
	logger   logging.Logger
}

func NewGRPCServer(a string, l logging.Logger, svc Services, auth Authenticator) *GRPCServer {
	return &GRPCServer{
		address:  a,
		logger:   l.With("module", "grpc_server"),
		services: svc,
		auth:     auth,
		health:   health.NewServer(),
	}
}

// Register installs the pull API and the health service on srv.
func (s *GRPCServer) Register(srv *grpc.Server) {
	srv.RegisterService(&PullServiceDesc, s)
	healthpb.RegisterHealthServer(srv, s.health)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
}

// NewServer builds a grpc.Server with the access token interceptor.
func (s *GRPCServer) NewServer() *grpc.Server {
	return grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.accessTokenInterceptor))
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := s.NewServer()
	s.Register(srv)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}

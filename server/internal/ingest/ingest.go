package ingest

import (
	"context"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	ingestpb "github.com/devicehub/devicehub/pkg/ingest"
	"github.com/devicehub/devicehub/server/internal/broadcast"
	"github.com/devicehub/devicehub/server/internal/metrics"
)

// Publisher hands messages to the broadcast engine.
type Publisher interface {
	PublishFrom(origin, topic, message string) broadcast.Result
}

// Server implements the devicehub.v1.Ingest service.
type Server struct {
	pub Publisher
}

var _ ingestpb.Server = (*Server)(nil)

// New creates a Server that publishes through pub.
func New(pub Publisher) *Server {
	return &Server{pub: pub}
}

// Publish validates the request and broadcasts it. It returns the number of
// connections that accepted the message.
func (s *Server) Publish(ctx context.Context, req *structpb.Struct) (*wrapperspb.Int32Value, error) {
	fields := req.GetFields()

	topic := fields[ingestpb.FieldTopic].GetStringValue()
	if topic == "" {
		return nil, status.Error(codes.InvalidArgument, "topic is required")
	}
	msg, ok := fields[ingestpb.FieldMessage].GetKind().(*structpb.Value_StringValue)
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "message must be a string")
	}

	res := s.pub.PublishFrom(metrics.OriginGRPC, topic, msg.StringValue)

	slog.Debug("ingest: published",
		"topic", topic,
		"subscribers", res.Subscribers,
		"delivered", res.Delivered,
	)

	return wrapperspb.Int32(int32(res.Delivered)), nil
}

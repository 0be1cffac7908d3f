package ingest

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	// ServiceName is the fully-qualified gRPC service name.
	ServiceName = "devicehub.v1.Ingest"

	// PublishMethod is the full method name of the Publish RPC.
	PublishMethod = "/" + ServiceName + "/Publish"

	// Request field names.
	FieldTopic   = "topic"
	FieldMessage = "message"
)

// Server is the server-side Ingest API.
type Server interface {
	Publish(ctx context.Context, req *structpb.Struct) (*wrapperspb.Int32Value, error)
}

// Register attaches srv to a gRPC server.
func Register(s grpc.ServiceRegistrar, srv Server) {
	s.RegisterService(&serviceDesc, srv)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*Server)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Publish", Handler: publishHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "devicehub/v1/ingest.proto",
}

func publishHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Server).Publish(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: PublishMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(Server).Publish(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// NewRequest builds a Publish request.
func NewRequest(topic, message string) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldTopic:   structpb.NewStringValue(topic),
		FieldMessage: structpb.NewStringValue(message),
	}}
}

// Client calls the Ingest service over an established connection.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Publish sends message to topic and returns the delivered count.
func (c *Client) Publish(ctx context.Context, topic, message string, opts ...grpc.CallOption) (int, error) {
	out := new(wrapperspb.Int32Value)
	if err := c.cc.Invoke(ctx, PublishMethod, NewRequest(topic, message), out, opts...); err != nil {
		return 0, fmt.Errorf("ingest: publish %q: %w", topic, err)
	}
	return int(out.GetValue()), nil
}

// Package ingest implements the devicehub.v1.Ingest gRPC service.
//
// Backend publishers that do not hold a WebSocket connection call Publish to
// inject a message into a topic. Each accepted request is handed to the
// broadcast engine with the "grpc" origin label.
//
// LoggingInterceptor is installed on the gRPC server and logs every call.
package ingest

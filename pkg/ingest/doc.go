// Package ingest defines the devicehub.v1.Ingest gRPC contract shared by the
// hub server and hubctl.
//
// The service carries well-known protobuf types so no generated code is
// needed: a Publish request is a google.protobuf.Struct with string fields
// "topic" and "message", and the response is a google.protobuf.Int32Value
// holding the number of connections the message was delivered to.
package ingest

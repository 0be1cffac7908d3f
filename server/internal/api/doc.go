// Package api implements the HTTP REST API for devicehub-server.
//
// RegisterRoutes(r) mounts, under /api/v1:
//
//	POST /api/v1/publish           publish {"topic","message"}; returns delivery counts
//	GET  /api/v1/topics            live topics with subscriber counts, sorted by name
//	GET  /api/v1/topics/{topic}    one topic; topic may contain "/"; 404 if no subscribers
//	GET  /api/v1/health            session counts per role and topic count
//
// All endpoints respond with Content-Type: application/json, including the
// 404 and 405 errors. JSON types are defined in types.go.
package api

// Package config loads the hub configuration from the `server:` section of
// config.yaml.
//
// Config fields:
//   - HTTPPort           WebSocket endpoints, REST API, /metrics (default 8080)
//   - GRPCPort           ingest publish service (default 50051, 0 disables)
//   - LogLevel           debug | info | warn | error (default info, hot-reloaded)
//   - ShutdownTimeout    wait for session cleanup on shutdown (default 10s)
//   - WebSocket.*        read limit, write timeout, pong wait, send buffer, origins
//   - Endpoints[]        role, path and accepted actions per client kind
//
// Load(path) applies defaults before unmarshalling, then validates.
// Watch(ctx, path, fn) reloads the file on change and hands valid configs to fn.
package config

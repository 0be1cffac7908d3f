// Package cli implements the hubctl command tree.
//
//	hubctl publish TOPIC MESSAGE   publish via gRPC ingest (or --via rest)
//	hubctl subscribe TOPIC...      stream messages over WebSocket, reconnecting
//	hubctl topics [TOPIC]          list live topics via the REST API
//	hubctl stats                   summarize the server's /metrics
//
// Settings resolve flag > HUBCTL_* environment variable > config file >
// default, through viper.
package cli

package config

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"slices"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads path whenever it is saved and passes each valid, changed
// Config to onChange. It returns nil when ctx ends.
//
// Files that fail Load are logged and ignored, so onChange only ever sees
// configs that passed validation. Repeated events for the same content are
// collapsed.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: watch: %w", err)
	}
	defer w.Close()

	if err := w.Add(path); err != nil {
		return fmt.Errorf("config: watch %s: %w", path, err)
	}
	slog.Info("config: watching for changes", "path", path)

	var last *Config
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !saved(ev) {
				continue
			}
			// An atomic save swaps the inode, which drops the old watch.
			_ = w.Add(path)

			cfg, err := Load(path)
			if err != nil {
				slog.Error("config: ignoring invalid update", "path", path, "err", err)
				continue
			}
			if last != nil && reflect.DeepEqual(last, cfg) {
				continue
			}
			last = cfg
			slog.Info("config: reloaded", "path", path)
			onChange(cfg)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Error("config: watcher error", "path", path, "err", err)
		}
	}
}

// saved reports whether ev can carry new file content. Rename-based saves
// show up as Create.
func saved(ev fsnotify.Event) bool {
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)
}

// RestartRequired lists the settings that differ between old and updated and
// only take effect after a restart. Everything except log_level is static.
func RestartRequired(old, updated *Config) []string {
	var out []string
	o, n := old.Server, updated.Server
	if o.HTTPPort != n.HTTPPort {
		out = append(out, "http_port")
	}
	if o.GRPCPort != n.GRPCPort {
		out = append(out, "grpc_port")
	}
	if o.ShutdownTimeout != n.ShutdownTimeout {
		out = append(out, "shutdown_timeout")
	}
	if !sameWebSocket(o.WebSocket, n.WebSocket) {
		out = append(out, "websocket")
	}
	if !sameEndpoints(o.Endpoints, n.Endpoints) {
		out = append(out, "endpoints")
	}
	return out
}

func sameWebSocket(a, b WebSocketConfig) bool {
	return a.ReadLimit == b.ReadLimit &&
		a.WriteTimeout == b.WriteTimeout &&
		a.PongWait == b.PongWait &&
		a.SendBuffer == b.SendBuffer &&
		slices.Equal(a.AllowedOrigins, b.AllowedOrigins)
}

func sameEndpoints(a, b []Endpoint) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Role != b[i].Role || a[i].Path != b[i].Path || !slices.Equal(a[i].Actions, b[i].Actions) {
			return false
		}
	}
	return true
}

package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/devicehub/devicehub/client/internal/subscriber"
)

func newSubscribeCmd(a *app) *cobra.Command {
	var (
		path        string
		count       int
		maxAttempts int
	)
	cmd := &cobra.Command{
		Use:   "subscribe TOPIC...",
		Short: "Print messages published to the given topics",
		Long: `Connects to a role endpoint, subscribes to every TOPIC and prints each
message on its own line. The subscription survives server restarts: hubctl
reconnects with backoff and subscribes again.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			sub := subscriber.New(subscriber.Options{
				URL:         wsURL(a.serverURL()) + path,
				Topics:      args,
				MaxAttempts: maxAttempts,
			})

			seen := 0
			return sub.Run(ctx, func(msg string) {
				if count > 0 && seen >= count {
					return
				}
				fmt.Fprintln(a.out, msg)
				seen++
				if count > 0 && seen >= count {
					cancel()
				}
			})
		},
	}
	cmd.Flags().StringVar(&path, "path", "/ws/app", "role endpoint path")
	cmd.Flags().IntVarP(&count, "count", "n", 0, "exit after this many messages (0 = run until interrupted)")
	cmd.Flags().IntVar(&maxAttempts, "max-attempts", 0, "give up after this many failed dials in a row (0 = never)")
	return cmd
}

// wsURL maps an http(s) base URL to ws(s).
func wsURL(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base
}

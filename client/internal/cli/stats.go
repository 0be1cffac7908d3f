package cli

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/devicehub/devicehub/client/internal/scrape"
)

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize hub counters from the server's /metrics endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.timeoutCtx(cmd.Context())
			defer cancel()

			s, err := scrape.Stats(ctx, scrape.NewClient(), a.serverURL()+"/metrics")
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "topics\t%.0f\n", s.Topics)
			fmt.Fprintf(tw, "sessions active\t%.0f\n", s.SessionsActive)
			for _, role := range sortedKeys(s.ActiveByRole) {
				fmt.Fprintf(tw, "  %s\t%.0f\n", role, s.ActiveByRole[role])
			}
			fmt.Fprintf(tw, "sessions opened\t%.0f\n", s.SessionsOpened)
			fmt.Fprintf(tw, "published\t%.0f\n", s.Published)
			for _, origin := range sortedKeys(s.PublishedBy) {
				fmt.Fprintf(tw, "  %s\t%.0f\n", origin, s.PublishedBy[origin])
			}
			fmt.Fprintf(tw, "delivered\t%.0f\n", s.Delivered)
			fmt.Fprintf(tw, "send failures\t%.0f\n", s.SendFailures)
			fmt.Fprintf(tw, "malformed\t%.0f\n", s.Malformed)
			return tw.Flush()
		},
	}
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

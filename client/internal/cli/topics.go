package cli

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

type topicInfo struct {
	Topic       string `json:"topic"`
	Subscribers int    `json:"subscribers"`
}

func newTopicsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "topics [TOPIC]",
		Short: "List live topics and their subscriber counts",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.timeoutCtx(cmd.Context())
			defer cancel()

			path := "/api/v1/topics"
			if len(args) == 1 {
				path += "/" + escapeTopic(args[0])
			}
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.serverURL()+path, nil)
			if err != nil {
				return fmt.Errorf("build request: %w", err)
			}

			var topics []topicInfo
			if len(args) == 1 {
				var one topicInfo
				if err := doJSON(req, &one); err != nil {
					return err
				}
				topics = append(topics, one)
			} else if err := doJSON(req, &topics); err != nil {
				return err
			}

			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TOPIC\tSUBSCRIBERS")
			for _, t := range topics {
				fmt.Fprintf(tw, "%s\t%d\n", t.Topic, t.Subscribers)
			}
			return tw.Flush()
		},
	}
}

// escapeTopic escapes each path segment and keeps the separators, which the
// server accepts as part of the topic.
func escapeTopic(topic string) string {
	parts := strings.Split(topic, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

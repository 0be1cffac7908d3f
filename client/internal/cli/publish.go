package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/devicehub/devicehub/pkg/ingest"
)

func newPublishCmd(a *app) *cobra.Command {
	var via string
	cmd := &cobra.Command{
		Use:   "publish TOPIC MESSAGE",
		Short: "Publish a message to every subscriber of TOPIC",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.timeoutCtx(cmd.Context())
			defer cancel()

			var (
				delivered int
				err       error
			)
			switch via {
			case "grpc":
				delivered, err = a.publishGRPC(ctx, args[0], args[1])
			case "rest":
				delivered, err = a.publishREST(ctx, args[0], args[1])
			default:
				return fmt.Errorf("--via must be grpc or rest, got %q", via)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "delivered to %d subscriber(s)\n", delivered)
			return nil
		},
	}
	cmd.Flags().StringVar(&via, "via", "grpc", "transport: grpc or rest")
	return cmd
}

func (a *app) publishGRPC(ctx context.Context, topic, message string) (int, error) {
	conn, err := grpc.NewClient(a.v.GetString(keyGRPC),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return 0, fmt.Errorf("connect %s: %w", a.v.GetString(keyGRPC), err)
	}
	defer conn.Close()
	return ingest.NewClient(conn).Publish(ctx, topic, message)
}

func (a *app) publishREST(ctx context.Context, topic, message string) (int, error) {
	body, err := json.Marshal(map[string]string{"topic": topic, "message": message})
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.serverURL()+"/api/v1/publish", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var res struct {
		Delivered int `json:"delivered"`
	}
	if err := doJSON(req, &res); err != nil {
		return 0, err
	}
	return res.Delivered, nil
}

// doJSON sends req and decodes a 200 JSON response into v. Non-200 responses
// carry {"error": "..."} from the server.
func doJSON(req *http.Request, v interface{}) error {
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&e) //nolint:errcheck
		return fmt.Errorf("%s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, e.Error)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

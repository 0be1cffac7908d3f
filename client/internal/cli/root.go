package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Setting keys. Each is also a persistent flag and a HUBCTL_ env variable.
const (
	keyServer  = "server"
	keyGRPC    = "grpc"
	keyTimeout = "timeout"
	keyVerbose = "verbose"
)

const envPrefix = "HUBCTL"

// app carries resolved settings and output streams into subcommands.
type app struct {
	v       *viper.Viper
	cfgFile string
	out     io.Writer
}

// NewRootCmd builds the hubctl command tree writing results to out.
func NewRootCmd(out io.Writer) *cobra.Command {
	a := &app{v: viper.New(), out: out}

	root := &cobra.Command{
		Use:           "hubctl",
		Short:         "Command-line client for devicehub-server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initConfig()
		},
	}
	root.SetOut(out)

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default $HOME/.hubctl.yaml if present)")
	pf.String(keyServer, "http://localhost:8080", "devicehub-server HTTP base URL")
	pf.String(keyGRPC, "localhost:50051", "devicehub-server gRPC address")
	pf.Duration(keyTimeout, 10*time.Second, "request timeout for one-shot commands")
	pf.BoolP(keyVerbose, "v", false, "log connection events to stderr")
	for _, k := range []string{keyServer, keyGRPC, keyTimeout, keyVerbose} {
		a.v.BindPFlag(k, pf.Lookup(k)) //nolint:errcheck
	}

	root.AddCommand(
		newPublishCmd(a),
		newSubscribeCmd(a),
		newTopicsCmd(a),
		newStatsCmd(a),
	)
	return root
}

// Execute runs hubctl with os.Args and exits non-zero on failure.
func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := NewRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "hubctl:", err)
		cancel()
		os.Exit(1)
	}
}

// initConfig resolves settings from env and the optional config file.
func (a *app) initConfig() error {
	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		a.v.AddConfigPath(home)
		a.v.SetConfigType("yaml")
		a.v.SetConfigName(".hubctl")
	}

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if a.cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}

	level := slog.LevelWarn
	if a.v.GetBool(keyVerbose) {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return nil
}

func (a *app) serverURL() string {
	return strings.TrimRight(a.v.GetString(keyServer), "/")
}

// timeoutCtx bounds one-shot commands.
func (a *app) timeoutCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, a.v.GetDuration(keyTimeout))
}

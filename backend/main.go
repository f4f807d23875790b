package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/TheKrainBow/mnk/internal/logx"
	"github.com/TheKrainBow/mnk/internal/settings"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

// load reads the settings file and builds a logger writing to out.
func (o *rootOptions) load(out io.Writer) (settings.File, zerolog.Logger, error) {
	cfg, err := settings.Load(o.configPath)
	if err != nil {
		return cfg, zerolog.Nop(), err
	}
	if o.logLevel != "" {
		cfg.Server.LogLevel = o.logLevel
	}
	log, err := logx.NewLoggerTo(out, cfg.Server.LogLevel, cfg.Server.LogPretty)
	if err != nil {
		return cfg, zerolog.Nop(), err
	}
	return cfg, log, nil
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "mnk",
		Short:         "m,n,k-game engine: minimax search over k-in-a-row boards",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", os.Getenv("MNK_CONFIG"), "YAML settings file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override the configured log level")
	root.AddCommand(newServeCmd(opts), newMoveCmd(opts))
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "mnk:", err)
		os.Exit(1)
	}
}

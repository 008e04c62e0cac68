package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"spyroom/internal/relay"
)

const releaseVersion = "0.1.0"

type relayFlags struct {
	bind      string
	port      int
	logLevel  string
	logFormat string
}

func main() {
	cobra.CheckErr(newCmd().Execute())
}

func newCmd() *cobra.Command {
	flags := &relayFlags{}

	v := viper.New()
	v.SetEnvPrefix("SPYROOM")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "spyroom-relay",
		Short:         "Rendezvous relay forwarding room updates between peers.",
		Args:          cobra.ExactArgs(0),
		Version:       releaseVersion,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.port < 1 || flags.port > 65535 {
				return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", flags.port)
			}
			return run(flags)
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&flags.bind, "bind", "b", "0.0.0.0", "address to bind to (env: SPYROOM_BIND)")
	fs.IntVarP(&flags.port, "port", "p", 8080, "port to listen on (env: SPYROOM_PORT)")
	fs.StringVar(&flags.logLevel, "log-level", "info", "log level: debug, info, warn, error (env: SPYROOM_LOG_LEVEL)")
	fs.StringVar(&flags.logFormat, "log-format", "text", "log format: text or json (env: SPYROOM_LOG_FORMAT)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	return cmd
}

func run(flags *relayFlags) error {
	logger := newLogger(flags.logLevel, flags.logFormat)
	slog.SetDefault(logger)

	hub := relay.NewHub(logger)
	server := relay.NewServer(fmt.Sprintf("%s:%d", flags.bind, flags.port), hub, logger)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	logger.Info("shutting down relay...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}

func newLogger(level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(level)}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"spyroom/internal/app"
	"spyroom/internal/config"
	"spyroom/internal/domain"
)

const releaseVersion = "0.1.0"

type peerFlags struct {
	room      string
	name      string
	relays    []string
	mode      string
	duration  time.Duration
	logLevel  string
	logFormat string
}

func main() {
	cobra.CheckErr(newCmd().Execute())
}

func newCmd() *cobra.Command {
	flags := &peerFlags{}

	v := viper.New()
	v.SetEnvPrefix("SPYROOM")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "spyroom",
		Short:         "Join a spyroom game session as a peer.",
		Args:          cobra.ExactArgs(0),
		Version:       releaseVersion,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), flags)
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&flags.room, "room", "r", "", "room code to join (env: SPYROOM_ROOM)")
	fs.StringVarP(&flags.name, "name", "n", "", "display name (env: SPYROOM_NAME)")
	fs.StringSliceVar(&flags.relays, "relay", nil, "relay endpoints, tried in order (env: SPYROOM_RELAY)")
	fs.StringVar(&flags.mode, "mode", "", "game mode: classic or double (env: SPYROOM_MODE)")
	fs.DurationVar(&flags.duration, "duration", 8*time.Minute, "round duration (env: SPYROOM_DURATION)")
	fs.StringVar(&flags.logLevel, "log-level", "warn", "log level: debug, info, warn, error (env: SPYROOM_LOG_LEVEL)")
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

func run(ctx context.Context, flags *peerFlags) error {
	logger := newLogger(flags.logLevel, flags.logFormat)
	slog.SetDefault(logger)

	cfg := config.Default()
	if len(flags.relays) > 0 {
		cfg.Peer.Endpoints = flags.relays
	}
	cfg.Game.RoundDuration = flags.duration
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Prefer persisted rejoin state when flags are left empty
	saved := loadSavedSession()
	room, name := flags.room, flags.name
	if room == "" {
		room = saved.Room
	}
	if name == "" {
		name = saved.Name
	}
	playerID := ""
	if room != "" && room == saved.Room {
		playerID = saved.PlayerID
	}

	session, err := app.NewSession(cfg, logger, playerID, name, room)
	if err != nil {
		return err
	}

	connectCtx, cancelConnect := context.WithTimeout(ctx, 30*time.Second)
	if err := session.Connect(connectCtx); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}
	cancelConnect()

	saveSession(savedSession{Room: session.Room(), Name: name, PlayerID: session.ID()})
	printShareInfo(cfg.Peer.Endpoints[0], session.Room())

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		cancel()
	}()

	go readCommands(runCtx, session, flags.mode, cancel)

	session.Run(runCtx)
	return nil
}

// readCommands drives the session from stdin: lines starting with "/" are
// commands, anything else is chat.
func readCommands(ctx context.Context, session *app.Session, mode string, quit func()) {
	if mode != "" {
		// takes effect once this peer is elected host
		session.QueueGameMode(parseMode(mode))
	}

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var err error
		cmd, arg, _ := strings.Cut(line, " ")
		switch cmd {
		case "/start":
			err = session.StartGame()
		case "/vote":
			err = session.CastVote(resolveTarget(session, arg))
		case "/confirm":
			err = session.ConfirmVote()
		case "/openvote":
			err = session.RequestOpenVote()
		case "/guess":
			err = session.SubmitGuess(strings.TrimSpace(arg))
		case "/newround":
			err = session.NewRound()
		case "/reveal":
			err = session.RevealNow()
		case "/kick":
			err = session.Kick(resolveTarget(session, arg))
		case "/mode":
			err = session.SetGameMode(parseMode(arg))
		case "/status":
			printStatus(session)
		case "/quit":
			quit()
			return
		default:
			err = session.SendChat(line)
		}

		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}
}

// parseMode maps a mode argument to a game mode, defaulting to classic
func parseMode(arg string) domain.GameMode {
	if strings.EqualFold(strings.TrimSpace(arg), "double") {
		return domain.ModeDouble
	}
	return domain.ModeClassic
}

// resolveTarget maps a display name to a player id, passing ids through
func resolveTarget(session *app.Session, arg string) string {
	arg = strings.TrimSpace(arg)
	for _, p := range session.Doc().Players() {
		if strings.EqualFold(p.DisplayName, arg) {
			return p.ID
		}
	}
	return arg
}

func printStatus(session *app.Session) {
	st := session.Doc().State()
	fmt.Printf("room=%s phase=%s round=%d host=%s winner=%s\n",
		session.Room(), st.Phase, st.Round, st.HostID, st.Winner)
	for _, p := range session.Doc().Players() {
		marker := " "
		if p.ID == st.HostID {
			marker = "*"
		}
		fmt.Printf("  %s %s\n", marker, p.DisplayName)
	}
	if role, ok := st.Roles[session.ID()]; ok {
		fmt.Printf("  you are the %s at the %s\n", role, st.Location)
	} else if st.IsSpy(session.ID()) {
		fmt.Println("  you are the SPY")
	}
}

func newLogger(level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(level)}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

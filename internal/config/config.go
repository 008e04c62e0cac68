package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds all application configuration
type Config struct {
	Peer    PeerConfig
	Game    GameConfig
	Chat    ChatConfig
	Logging LoggingConfig
}

// PeerConfig holds connection- and identity-related configuration
type PeerConfig struct {
	Endpoints         []string      // relay candidates, tried in order
	DialWait          time.Duration // per-candidate wait for the connected signal
	JoinTimeout       time.Duration // wait before a queued join is retried
	HeartbeatInterval time.Duration // activity timestamp refresh period
}

// GameConfig holds game-progression configuration
type GameConfig struct {
	RoundDuration     time.Duration // playing countdown
	VoteWindow        time.Duration // fixed voting window
	TieGuessWindow    time.Duration // spy guess window after a tie
	IdleTimeout       time.Duration // room reset after this much inactivity
	ElectionReadiness time.Duration // settle time before any election decision
	MinPlayers        int           // players needed to start a round
	DoubleSpyMin      int           // players needed for two spies in double mode
	MaxPoolSize       int           // location pool cap per round
}

// ChatConfig holds the sender-side chat limits
type ChatConfig struct {
	MaxMessages    int           // messages allowed per rolling window
	Window         time.Duration // rolling window length
	RepeatCooldown time.Duration // extra cooldown after repeating the previous text
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string
	Format string // "json" or "text"
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Peer: PeerConfig{
			Endpoints:         []string{"wss://relay.spyroom.net", "ws://localhost:8080"},
			DialWait:          1200 * time.Millisecond,
			JoinTimeout:       5 * time.Second,
			HeartbeatInterval: 30 * time.Second,
		},
		Game: GameConfig{
			RoundDuration:     8 * time.Minute,
			VoteWindow:        30 * time.Second,
			TieGuessWindow:    20 * time.Second,
			IdleTimeout:       5 * time.Minute,
			ElectionReadiness: 2 * time.Second,
			MinPlayers:        3,
			DoubleSpyMin:      8,
			MaxPoolSize:       16,
		},
		Chat: ChatConfig{
			MaxMessages:    5,
			Window:         10 * time.Second,
			RepeatCooldown: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks the configuration for values that cannot work
func (c *Config) Validate() error {
	if len(c.Peer.Endpoints) == 0 {
		return errors.New("at least one relay endpoint is required")
	}
	if c.Game.MinPlayers < 3 {
		return fmt.Errorf("min-players must be at least 3, got %d", c.Game.MinPlayers)
	}
	if c.Game.MaxPoolSize < 1 {
		return fmt.Errorf("invalid location pool cap: %d", c.Game.MaxPoolSize)
	}
	if c.Game.RoundDuration <= 0 || c.Game.VoteWindow <= 0 || c.Game.TieGuessWindow <= 0 {
		return errors.New("round, vote and tie-guess durations must be positive")
	}
	return nil
}

package domain

import "errors"

// Domain errors
var (
	ErrEmptyName        = errors.New("display name cannot be empty")
	ErrEmptyRoom        = errors.New("room code cannot be empty")
	ErrNotHost          = errors.New("only the host can perform this action")
	ErrNotEnoughPlayers = errors.New("not enough players to start")
	ErrEmptyPool        = errors.New("no locations available for this round")
	ErrInvalidPhase     = errors.New("invalid action for current phase")
	ErrPlayerNotFound   = errors.New("player not found")
	ErrNotEligible      = errors.New("player joined after round start")
	ErrVoteConfirmed    = errors.New("vote already confirmed")
	ErrNoVote           = errors.New("no vote to confirm")
	ErrNotSpy           = errors.New("only a spy can guess the location")
	ErrAlreadyGuessed   = errors.New("guess already submitted this round")
	ErrEmptyMessage     = errors.New("chat message cannot be empty")
	ErrMessageTooLong   = errors.New("chat message too long")
	ErrRateLimited      = errors.New("sending too fast, slow down")
	ErrNotConnected     = errors.New("transport not connected")
)

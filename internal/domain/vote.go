package domain

// VoteEntry is one voter's vote for the current round. Unconfirmed entries
// may be toggled or retargeted; confirmed entries are immutable until the
// round resets.
type VoteEntry struct {
	TargetID  string `json:"targetId"`
	Confirmed bool   `json:"confirmed"`
}

// Winner identifies which side won a round
type Winner string

const (
	WinnerNone      Winner = ""
	WinnerSpy       Winner = "SPY"
	WinnerCivilians Winner = "CIVILIANS"
)

// String returns the string representation of the winner
func (w Winner) String() string {
	return string(w)
}

package domain

// GameStatus represents the lifecycle status of a game
type GameStatus string

const (
	StatusSetup    GameStatus = "setup"    // Created, no round played yet
	StatusPlaying  GameStatus = "playing"  // A round is being played
	StatusRoundEnd GameStatus = "roundEnd" // Between rounds, corrections allowed
	StatusGameEnd  GameStatus = "gameEnd"  // Terminal
)

// String returns the string representation of the status
func (s GameStatus) String() string {
	return string(s)
}

// Valid reports whether s is a known status
func (s GameStatus) Valid() bool {
	switch s {
	case StatusSetup, StatusPlaying, StatusRoundEnd, StatusGameEnd:
		return true
	}
	return false
}

// CanTransitionTo checks if a transition from current status to target status is valid
func (s GameStatus) CanTransitionTo(target GameStatus) bool {
	validTransitions := map[GameStatus][]GameStatus{
		StatusSetup:    {StatusPlaying},
		StatusPlaying:  {StatusRoundEnd, StatusGameEnd},
		StatusRoundEnd: {StatusPlaying},
	}

	for _, status := range validTransitions[s] {
		if status == target {
			return true
		}
	}
	return false
}

// WordStatus is the outcome of one word in a round
type WordStatus string

const (
	WordPending WordStatus = "pending"
	WordCorrect WordStatus = "correct"
	WordSkipped WordStatus = "skipped"
)

// Decided reports whether s is a final outcome (correct or skipped)
func (s WordStatus) Decided() bool {
	return s == WordCorrect || s == WordSkipped
}

// ParseWordStatus parses a client supplied status
func ParseWordStatus(s string) (WordStatus, error) {
	switch ws := WordStatus(s); ws {
	case WordPending, WordCorrect, WordSkipped:
		return ws, nil
	}
	return "", invalid("status", "unknown word status %q", s)
}

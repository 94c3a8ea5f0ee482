package domain

// Difficulty is the complexity tier of a catalog word
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"

	// DifficultyMixed is only valid as a game setting: no difficulty filter.
	DifficultyMixed Difficulty = "mixed"
)

// String returns the string representation of the difficulty
func (d Difficulty) String() string {
	return string(d)
}

// IsTier reports whether d is a concrete word tier (not mixed)
func (d Difficulty) IsTier() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// ParseDifficulty parses a game difficulty setting. An empty string means mixed.
func ParseDifficulty(s string) (Difficulty, error) {
	if s == "" {
		return DifficultyMixed, nil
	}
	d := Difficulty(s)
	if d.IsTier() || d == DifficultyMixed {
		return d, nil
	}
	return "", invalid("difficulty", "must be one of easy, medium, hard, mixed; got %q", s)
}

// Word is an immutable catalog entry
type Word struct {
	ID         string     `json:"id"`
	Text       string     `json:"text"`
	Language   string     `json:"language"`
	Difficulty Difficulty `json:"difficulty"`
	Category   string     `json:"category,omitempty"`
}

// WordFilter constrains catalog sampling. Empty fields are unconstrained.
type WordFilter struct {
	Difficulty Difficulty `json:"difficulty,omitempty"`
	Category   string     `json:"category,omitempty"`
	Language   string     `json:"language,omitempty"`
}

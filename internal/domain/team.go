package domain

// Team is one side of a game. Score never drops below zero.
type Team struct {
	Name    string   `json:"name"`
	Score   int      `json:"score"`
	Players []string `json:"players"`
}

// NewTeam creates a team with zero score and no players
func NewTeam(name string) Team {
	return Team{
		Name:    name,
		Score:   0,
		Players: make([]string, 0),
	}
}

func (t *Team) award(points int) {
	t.Score += points
}

// deduct removes one point unless the score is already zero, and reports
// whether a point was actually removed.
func (t *Team) deduct() bool {
	if t.Score <= 0 {
		t.Score = 0
		return false
	}
	t.Score--
	return true
}

func (t Team) clone() Team {
	players := make([]string, len(t.Players))
	copy(players, t.Players)
	t.Players = players
	return t
}

// Standing is a team's place in the final ranking
type Standing struct {
	Rank      int    `json:"rank"`
	TeamIndex int    `json:"teamIndex"`
	Name      string `json:"name"`
	Score     int    `json:"score"`
}

// TeamStats summarises one team's rounds
type TeamStats struct {
	TeamIndex    int    `json:"teamIndex"`
	Name         string `json:"name"`
	Score        int    `json:"score"`
	RoundsPlayed int    `json:"roundsPlayed"`
	TotalWords   int    `json:"totalWords"`
	CorrectWords int    `json:"correctWords"`
	SkippedWords int    `json:"skippedWords"`
	SuccessRate  int    `json:"successRate"` // percent, rounded
}

package domain

import (
	"cmp"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Limits bounds the settings accepted by NewGame
type Limits struct {
	MinTeams      int `json:"minTeams"`
	MinRoundTime  int `json:"minRoundTime"`  // seconds
	MaxRoundTime  int `json:"maxRoundTime"`  // seconds
	MinScoreLimit int `json:"minScoreLimit"` // points
	MaxScoreLimit int `json:"maxScoreLimit"` // points
}

// DefaultLimits returns the default setup bounds
func DefaultLimits() Limits {
	return Limits{
		MinTeams:      2,
		MinRoundTime:  30,
		MaxRoundTime:  300,
		MinScoreLimit: 5,
		MaxScoreLimit: 100,
	}
}

// GameOptions are the setup parameters of a new game
type GameOptions struct {
	TeamNames       []string   `json:"teamNames"`
	RoundTime       int        `json:"roundTime"`
	Difficulty      Difficulty `json:"difficulty"`
	ScoreLimit      int        `json:"scoreLimit"`
	LosePointOnSkip bool       `json:"losePointOnSkip"`
}

// Game is the aggregate root of one match
type Game struct {
	ID                string     `json:"id"`
	Teams             []Team     `json:"teams"`
	Rounds            []Round    `json:"rounds"`
	CurrentRound      int        `json:"currentRound"`
	RoundTime         int        `json:"roundTime"`
	Status            GameStatus `json:"status"`
	Difficulty        Difficulty `json:"difficulty"`
	ScoreLimit        int        `json:"scoreLimit"`
	LosePointOnSkip   bool       `json:"losePointOnSkip"`
	ScoreLimitReached bool       `json:"scoreLimitReached"`
	ScoreLimitRound   *int       `json:"scoreLimitRound,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
}

// NewGame validates opts against limits and creates a game in setup status.
// Team names are trimmed; uniqueness is case-sensitive.
func NewGame(id string, opts GameOptions, limits Limits, now time.Time) (*Game, error) {
	if len(opts.TeamNames) < limits.MinTeams {
		return nil, invalid("teamNames", "at least %d teams are required", limits.MinTeams)
	}

	teams := make([]Team, 0, len(opts.TeamNames))
	seen := make(map[string]bool, len(opts.TeamNames))
	for i, raw := range opts.TeamNames {
		name := strings.TrimSpace(raw)
		if name == "" {
			return nil, invalid("teamNames", "team %d must have a name", i+1)
		}
		if seen[name] {
			return nil, invalid("teamNames", "team names must be unique: %q is used twice", name)
		}
		seen[name] = true
		teams = append(teams, NewTeam(name))
	}

	if opts.RoundTime < limits.MinRoundTime || opts.RoundTime > limits.MaxRoundTime {
		return nil, invalid("roundTime", "must be between %d and %d seconds", limits.MinRoundTime, limits.MaxRoundTime)
	}

	if opts.ScoreLimit < limits.MinScoreLimit || opts.ScoreLimit > limits.MaxScoreLimit {
		return nil, invalid("scoreLimit", "must be between %d and %d points", limits.MinScoreLimit, limits.MaxScoreLimit)
	}

	difficulty := opts.Difficulty
	if difficulty == "" {
		difficulty = DifficultyMixed
	}
	if !difficulty.IsTier() && difficulty != DifficultyMixed {
		return nil, invalid("difficulty", "unknown difficulty %q", difficulty)
	}

	return &Game{
		ID:              id,
		Teams:           teams,
		Rounds:          make([]Round, 0),
		CurrentRound:    0,
		RoundTime:       opts.RoundTime,
		Status:          StatusSetup,
		Difficulty:      difficulty,
		ScoreLimit:      opts.ScoreLimit,
		LosePointOnSkip: opts.LosePointOnSkip,
		CreatedAt:       now.UTC(),
	}, nil
}

// NextTeamIndex returns the team that plays the next round (strict round-robin)
func (g *Game) NextTeamIndex() int {
	return len(g.Rounds) % len(g.Teams)
}

// WordsPerRound is the batch size requested from the catalog for each round
func (g *Game) WordsPerRound() int {
	return 2 * g.ScoreLimit
}

// WordFilter returns the catalog filter for this game's difficulty
func (g *Game) WordFilter() WordFilter {
	if g.Difficulty == DifficultyMixed {
		return WordFilter{}
	}
	return WordFilter{Difficulty: g.Difficulty}
}

// StartRound appends a new round for the next team with every word pending
func (g *Game) StartRound(words []Word) error {
	if !g.Status.CanTransitionTo(StatusPlaying) {
		return &PreconditionError{Op: "start a round", Status: g.Status}
	}

	if len(words) == 0 {
		return &ResourceExhaustedError{Resource: "words", Detail: "difficulty " + g.Difficulty.String()}
	}

	g.Rounds = append(g.Rounds, NewRound(g.NextTeamIndex(), words))
	g.CurrentRound = len(g.Rounds) - 1
	g.Status = StatusPlaying

	return nil
}

// ActiveRound returns the round currently being played or reviewed
func (g *Game) ActiveRound() (*Round, error) {
	if len(g.Rounds) == 0 || g.CurrentRound < 0 || g.CurrentRound >= len(g.Rounds) {
		return nil, &NotFoundError{Kind: "current round"}
	}
	return &g.Rounds[g.CurrentRound], nil
}

// MarkWord records the live outcome of a pending word in the current round
func (g *Game) MarkWord(wordIndex int, status WordStatus) error {
	if g.Status != StatusPlaying {
		return &PreconditionError{Op: "mark a word", Status: g.Status}
	}

	if !status.Decided() {
		return invalid("status", "must be correct or skipped; got %q", status)
	}

	round, err := g.ActiveRound()
	if err != nil {
		return err
	}

	word, err := round.word(wordIndex)
	if err != nil {
		return err
	}

	if word.Status != WordPending {
		return invalid("wordIndex", "word %d is already %s", wordIndex, word.Status)
	}

	word.Status = status
	team := &g.Teams[round.TeamIndex]

	switch status {
	case WordCorrect:
		team.award(1)
		g.noteScore(round.TeamIndex, g.CurrentRound)
	case WordSkipped:
		if g.LosePointOnSkip {
			word.Penalized = team.deduct()
		}
	}

	return nil
}

// EndRound closes the current round. The game ends only once the score limit
// has been reached and every team has played the same number of rounds.
func (g *Game) EndRound() (GameStatus, error) {
	if g.Status != StatusPlaying {
		return g.Status, &PreconditionError{Op: "end a round", Status: g.Status}
	}

	if g.ScoreLimitReached && len(g.Rounds)%len(g.Teams) == 0 {
		g.Status = StatusGameEnd
	} else {
		g.Status = StatusRoundEnd
	}

	return g.Status, nil
}

// CorrectWord toggles a decided word of any played round between correct and
// skipped and adjusts the team's score by the delta of that transition. It
// reports false when the word already has the requested status.
func (g *Game) CorrectWord(roundIndex, wordIndex int, status WordStatus) (bool, error) {
	if g.Status == StatusGameEnd {
		return false, &PreconditionError{Op: "correct a word", Status: g.Status}
	}

	if !status.Decided() {
		return false, invalid("status", "corrections must target correct or skipped; got %q", status)
	}

	if roundIndex < 0 || roundIndex >= len(g.Rounds) {
		return false, &NotFoundError{Kind: "round", ID: strconv.Itoa(roundIndex)}
	}
	round := &g.Rounds[roundIndex]

	word, err := round.word(wordIndex)
	if err != nil {
		return false, err
	}

	if word.Status == status {
		return false, nil
	}

	if word.Status == WordPending {
		return false, invalid("wordIndex", "word %d has not been played yet", wordIndex)
	}

	team := &g.Teams[round.TeamIndex]
	word.Status = status

	switch status {
	case WordSkipped:
		// correct -> skipped: drop the credit, then charge the penalty.
		team.deduct()
		word.Penalized = false
		if g.LosePointOnSkip {
			word.Penalized = team.deduct()
		}
		g.reviseScoreLimit()
	case WordCorrect:
		// skipped -> correct: refund a charged penalty, then credit.
		if word.Penalized {
			team.award(1)
			word.Penalized = false
		}
		team.award(1)
		g.noteScore(round.TeamIndex, roundIndex)
	}

	return true, nil
}

func (g *Game) noteScore(teamIndex, roundIndex int) {
	if g.ScoreLimitReached || g.Teams[teamIndex].Score < g.ScoreLimit {
		return
	}
	g.ScoreLimitReached = true
	round := roundIndex
	g.ScoreLimitRound = &round
}

// reviseScoreLimit rescinds the score-limit flag once no team is at or above it
func (g *Game) reviseScoreLimit() {
	if !g.ScoreLimitReached {
		return
	}
	for _, t := range g.Teams {
		if t.Score >= g.ScoreLimit {
			return
		}
	}
	g.ScoreLimitReached = false
	g.ScoreLimitRound = nil
}

// Clone returns a deep copy of the game
func (g *Game) Clone() *Game {
	if g == nil {
		return nil
	}

	c := *g
	c.Teams = make([]Team, len(g.Teams))
	for i, t := range g.Teams {
		c.Teams[i] = t.clone()
	}
	c.Rounds = make([]Round, len(g.Rounds))
	for i, r := range g.Rounds {
		c.Rounds[i] = r.Clone()
	}
	if g.ScoreLimitRound != nil {
		round := *g.ScoreLimitRound
		c.ScoreLimitRound = &round
	}
	return &c
}

// Validate checks the structural invariants of a game, e.g. one restored from storage
func (g *Game) Validate() error {
	if g.ID == "" {
		return invalid("id", "game id is required")
	}
	if len(g.Teams) < 2 {
		return invalid("teams", "at least 2 teams are required")
	}
	if !g.Status.Valid() {
		return invalid("status", "unknown status %q", g.Status)
	}
	if g.ScoreLimit <= 0 {
		return invalid("scoreLimit", "must be positive")
	}
	for i, t := range g.Teams {
		if t.Score < 0 {
			return invalid("teams", "team %d has a negative score", i)
		}
	}
	for i, r := range g.Rounds {
		if r.TeamIndex != i%len(g.Teams) {
			return invalid("rounds", "round %d is assigned to team %d out of turn", i, r.TeamIndex)
		}
		for j, w := range r.Words {
			if w.Status != WordPending && !w.Status.Decided() {
				return invalid("rounds", "round %d word %d has unknown status %q", i, j, w.Status)
			}
		}
	}
	if g.Status == StatusPlaying || g.Status == StatusRoundEnd {
		if len(g.Rounds) == 0 || g.CurrentRound != len(g.Rounds)-1 {
			return invalid("currentRound", "must index the last round")
		}
	}
	return nil
}

// Standings ranks teams by score, highest first. Tied teams share a rank and
// keep their setup order.
func (g *Game) Standings() []Standing {
	standings := make([]Standing, len(g.Teams))
	for i, t := range g.Teams {
		standings[i] = Standing{TeamIndex: i, Name: t.Name, Score: t.Score}
	}

	slices.SortStableFunc(standings, func(a, b Standing) int {
		return cmp.Compare(b.Score, a.Score)
	})

	for i := range standings {
		if i > 0 && standings[i].Score == standings[i-1].Score {
			standings[i].Rank = standings[i-1].Rank
		} else {
			standings[i].Rank = i + 1
		}
	}
	return standings
}

// Winners returns every team sharing the top score
func (g *Game) Winners() []Standing {
	standings := g.Standings()
	winners := make([]Standing, 0, 1)
	for _, s := range standings {
		if s.Rank != 1 {
			break
		}
		winners = append(winners, s)
	}
	return winners
}

// IsTie reports whether more than one team shares the top score
func (g *Game) IsTie() bool {
	return len(g.Winners()) > 1
}

// TeamStats returns per-team word statistics over all played rounds
func (g *Game) TeamStats() []TeamStats {
	stats := make([]TeamStats, len(g.Teams))
	for i, t := range g.Teams {
		stats[i] = TeamStats{TeamIndex: i, Name: t.Name, Score: t.Score}
	}

	for i := range g.Rounds {
		r := &g.Rounds[i]
		s := &stats[r.TeamIndex]
		s.RoundsPlayed++
		s.TotalWords += len(r.Words)
		s.CorrectWords += r.Count(WordCorrect)
		s.SkippedWords += r.Count(WordSkipped)
	}

	for i := range stats {
		stats[i].SuccessRate = percent(stats[i].CorrectWords, stats[i].TotalWords)
	}
	return stats
}

func percent(part, total int) int {
	if total == 0 {
		return 0
	}
	return (part*100 + total/2) / total
}

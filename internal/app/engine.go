package app

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"alias/internal/domain"
)

// WordSampler is the catalog query the engine needs to fill a round
type WordSampler interface {
	SampleRandom(count int, filter domain.WordFilter) ([]domain.Word, error)
}

// Listener observes committed engine changes. It runs synchronously inside the
// engine's critical section, in commit order, and must not call back into the
// engine. state is shared between listeners and must be treated as read-only.
type Listener func(event *domain.GameEvent, state domain.State)

type subscription struct {
	id int
	fn Listener
}

// Engine owns the game collection and the current game pointer. Every command
// works on a clone of the game and swaps it in whole, so readers never see a
// half-applied change.
type Engine struct {
	words      WordSampler
	limits     domain.Limits
	maxHistory int
	logger     *slog.Logger
	now        func() time.Time
	newID      func() string

	mu        sync.RWMutex
	games     map[string]*domain.Game
	order     []string // game ids in creation order
	currentID string

	listeners    []subscription
	nextListener int
}

// EngineOption configures an Engine
type EngineOption func(*Engine)

// WithLimits sets the bounds used to validate new games
func WithLimits(limits domain.Limits) EngineOption {
	return func(e *Engine) {
		e.limits = limits
	}
}

// WithMaxHistory caps the number of retained games; 0 keeps everything
func WithMaxHistory(n int) EngineOption {
	return func(e *Engine) {
		e.maxHistory = n
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// WithIDGenerator overrides game id generation
func WithIDGenerator(newID func() string) EngineOption {
	return func(e *Engine) {
		e.newID = newID
	}
}

// NewEngine creates an empty engine drawing words from words
func NewEngine(words WordSampler, logger *slog.Logger, opts ...EngineOption) *Engine {
	e := &Engine{
		words:  words,
		limits: domain.DefaultLimits(),
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
		games:  make(map[string]*domain.Game),
		order:  make([]string, 0),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Limits returns the setup bounds enforced by CreateGame
func (e *Engine) Limits() domain.Limits {
	return e.limits
}

// Subscribe registers l for every future change and returns a function that
// removes it.
func (e *Engine) Subscribe(l Listener) func() {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextListener
	e.nextListener++
	e.listeners = append(e.listeners, subscription{id: id, fn: l})

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		for i, s := range e.listeners {
			if s.id == id {
				e.listeners = append(e.listeners[:i], e.listeners[i+1:]...)
				return
			}
		}
	}
}

// CreateGame validates opts, stores a new game in setup status, makes it the
// current game and returns its id. Nothing is stored on failure.
func (e *Engine) CreateGame(opts domain.GameOptions) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.newID()
	if _, exists := e.games[id]; exists {
		return "", fmt.Errorf("failed to generate unique game id")
	}

	game, err := domain.NewGame(id, opts, e.limits, e.now())
	if err != nil {
		return "", err
	}

	e.games[id] = game
	e.order = append(e.order, id)
	e.currentID = id
	e.pruneLocked()

	e.logger.Info("game created",
		"gameID", id,
		"teams", len(game.Teams),
		"difficulty", game.Difficulty,
		"scoreLimit", game.ScoreLimit,
	)

	e.publishLocked(domain.NewEvent(domain.EventGameCreated, id, game.Clone()))

	return id, nil
}

// SetCurrentGameID selects the current game. An empty id clears the selection.
func (e *Engine) SetCurrentGameID(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if id != "" {
		if _, ok := e.games[id]; !ok {
			return &domain.NotFoundError{Kind: "game", ID: id}
		}
	}
	if e.currentID == id {
		return nil
	}

	e.currentID = id
	e.publishLocked(domain.NewEvent(domain.EventCurrentGameChanged, id, nil))

	return nil
}

// CurrentGameID returns the id of the current game, or "" when none is selected
func (e *Engine) CurrentGameID() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.currentID
}

// CurrentGame returns a copy of the current game, or nil when none is selected
func (e *Engine) CurrentGame() *domain.Game {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.currentID == "" {
		return nil
	}
	return e.games[e.currentID].Clone()
}

// Game returns a copy of the game with the given id
func (e *Engine) Game(id string) (*domain.Game, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	game, ok := e.games[id]
	if !ok {
		return nil, &domain.NotFoundError{Kind: "game", ID: id}
	}
	return game.Clone(), nil
}

// Games returns copies of every retained game in creation order
func (e *Engine) Games() []*domain.Game {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.stateLocked().Games
}

// GameCount returns the number of retained games
func (e *Engine) GameCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.games)
}

// State returns a copy of the full engine state
func (e *Engine) State() domain.State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.stateLocked()
}

// StartRound draws a fresh batch of words and starts the next team's round
func (e *Engine) StartRound() (domain.Round, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	current, err := e.currentLocked()
	if err != nil {
		return domain.Round{}, err
	}
	if current.Status != domain.StatusSetup && current.Status != domain.StatusRoundEnd {
		return domain.Round{}, &domain.PreconditionError{Op: "start a round", Status: current.Status}
	}

	words, err := e.words.SampleRandom(current.WordsPerRound(), current.WordFilter())
	if err != nil {
		return domain.Round{}, fmt.Errorf("sample words: %w", err)
	}

	game := current.Clone()
	if err := game.StartRound(words); err != nil {
		return domain.Round{}, err
	}
	e.games[game.ID] = game

	round, _ := game.ActiveRound()
	team := game.Teams[round.TeamIndex]

	e.logger.Debug("round started",
		"gameID", game.ID,
		"round", game.CurrentRound,
		"team", team.Name,
		"words", len(round.Words),
	)

	e.publishLocked(domain.NewEvent(domain.EventRoundStarted, game.ID, &domain.RoundStartedPayload{
		RoundIndex: game.CurrentRound,
		TeamIndex:  round.TeamIndex,
		TeamName:   team.Name,
		WordCount:  len(round.Words),
		RoundTime:  game.RoundTime,
	}))

	return round.Clone(), nil
}

// UpdateWordStatus records the live outcome of a word in the current round
func (e *Engine) UpdateWordStatus(wordIndex int, status domain.WordStatus) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	current, err := e.currentLocked()
	if err != nil {
		return err
	}

	game := current.Clone()
	if err := game.MarkWord(wordIndex, status); err != nil {
		return err
	}
	e.games[game.ID] = game

	e.publishLocked(domain.NewEvent(domain.EventWordMarked, game.ID, wordUpdate(game, game.CurrentRound, wordIndex)))

	return nil
}

// UpdateWordStatusInRound corrects the status of a word in any played round
// of the current game. Setting a word to the status it already has is a no-op.
func (e *Engine) UpdateWordStatusInRound(roundIndex, wordIndex int, status domain.WordStatus) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	current, err := e.currentLocked()
	if err != nil {
		return err
	}

	game := current.Clone()
	changed, err := game.CorrectWord(roundIndex, wordIndex, status)
	if err != nil || !changed {
		return err
	}
	e.games[game.ID] = game

	e.logger.Debug("word corrected",
		"gameID", game.ID,
		"round", roundIndex,
		"word", wordIndex,
		"status", status,
	)

	e.publishLocked(domain.NewEvent(domain.EventWordCorrected, game.ID, wordUpdate(game, roundIndex, wordIndex)))

	return nil
}

// EndRound closes the round being played and returns the resulting status,
// either roundEnd or gameEnd.
func (e *Engine) EndRound() (domain.GameStatus, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	current, err := e.currentLocked()
	if err != nil {
		return "", err
	}

	game := current.Clone()
	outcome, err := game.EndRound()
	if err != nil {
		return "", err
	}
	e.games[game.ID] = game

	if outcome == domain.StatusGameEnd {
		e.logger.Info("game ended", "gameID", game.ID, "rounds", len(game.Rounds))
		e.publishLocked(domain.NewEvent(domain.EventGameEnded, game.ID, &domain.GameEndedPayload{
			Standings: game.Standings(),
			Winners:   game.Winners(),
			IsTie:     game.IsTie(),
		}))
		return outcome, nil
	}

	round, _ := game.ActiveRound()
	e.publishLocked(domain.NewEvent(domain.EventRoundEnded, game.ID, &domain.RoundEndedPayload{
		RoundIndex: game.CurrentRound,
		Outcome:    outcome,
		Correct:    round.Count(domain.WordCorrect),
		Skipped:    round.Count(domain.WordSkipped),
		Teams:      game.Clone().Teams,
	}))

	return outcome, nil
}

// DeleteGame removes a game from the history. Deleting the current game
// clears the current selection.
func (e *Engine) DeleteGame(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.games[id]; !ok {
		return &domain.NotFoundError{Kind: "game", ID: id}
	}
	e.removeLocked(id)

	e.logger.Info("game deleted", "gameID", id)
	e.publishLocked(domain.NewEvent(domain.EventGameDeleted, id, nil))

	return nil
}

// Restore replaces the whole engine state, e.g. from a persisted snapshot.
// Every game is validated first; on error nothing changes.
func (e *Engine) Restore(state domain.State) error {
	games := make(map[string]*domain.Game, len(state.Games))
	order := make([]string, 0, len(state.Games))
	for i, g := range state.Games {
		if g == nil {
			return &domain.ValidationError{Field: "games", Reason: fmt.Sprintf("entry %d is empty", i)}
		}
		if err := g.Validate(); err != nil {
			return fmt.Errorf("game %q: %w", g.ID, err)
		}
		if _, dup := games[g.ID]; dup {
			return &domain.ValidationError{Field: "games", Reason: fmt.Sprintf("duplicate game id %q", g.ID)}
		}
		games[g.ID] = g.Clone()
		order = append(order, g.ID)
	}
	if state.CurrentGameID != "" {
		if _, ok := games[state.CurrentGameID]; !ok {
			return &domain.NotFoundError{Kind: "game", ID: state.CurrentGameID}
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.games = games
	e.order = order
	e.currentID = state.CurrentGameID

	e.publishLocked(domain.NewEvent(domain.EventStateRestored, e.currentID, nil))

	return nil
}

// Reset drops every game and clears the current selection
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.games = make(map[string]*domain.Game)
	e.order = make([]string, 0)
	e.currentID = ""

	e.publishLocked(domain.NewEvent(domain.EventStateReset, "", nil))
}

func (e *Engine) currentLocked() (*domain.Game, error) {
	if e.currentID == "" {
		return nil, &domain.NotFoundError{Kind: "current game"}
	}
	game, ok := e.games[e.currentID]
	if !ok {
		return nil, &domain.NotFoundError{Kind: "game", ID: e.currentID}
	}
	return game, nil
}

func (e *Engine) stateLocked() domain.State {
	games := make([]*domain.Game, 0, len(e.order))
	for _, id := range e.order {
		games = append(games, e.games[id].Clone())
	}
	return domain.State{Games: games, CurrentGameID: e.currentID}
}

func (e *Engine) removeLocked(id string) {
	delete(e.games, id)
	for i, gid := range e.order {
		if gid == id {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
	if e.currentID == id {
		e.currentID = ""
	}
}

// pruneLocked drops the oldest games other than the current one until the
// history fits maxHistory
func (e *Engine) pruneLocked() {
	if e.maxHistory <= 0 {
		return
	}
	for len(e.order) > e.maxHistory {
		victim := ""
		for _, id := range e.order {
			if id != e.currentID {
				victim = id
				break
			}
		}
		if victim == "" {
			return
		}
		e.removeLocked(victim)
		e.logger.Info("old game pruned", "gameID", victim)
	}
}

// publishLocked hands event and a state snapshot to every listener
func (e *Engine) publishLocked(event *domain.GameEvent) {
	if len(e.listeners) == 0 {
		return
	}
	state := e.stateLocked()
	for _, s := range e.listeners {
		s.fn(event, state)
	}
}

func wordUpdate(game *domain.Game, roundIndex, wordIndex int) *domain.WordUpdatePayload {
	round := game.Rounds[roundIndex]
	return &domain.WordUpdatePayload{
		RoundIndex:        roundIndex,
		WordIndex:         wordIndex,
		Status:            round.Words[wordIndex].Status,
		TeamIndex:         round.TeamIndex,
		TeamScore:         game.Teams[round.TeamIndex].Score,
		ScoreLimitReached: game.ScoreLimitReached,
	}
}

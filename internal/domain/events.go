package domain

import "time"

// EventType represents the type of game event
type EventType string

const (
	EventGameCreated        EventType = "GAME_CREATED"
	EventCurrentGameChanged EventType = "CURRENT_GAME_CHANGED"
	EventRoundStarted       EventType = "ROUND_STARTED"
	EventWordMarked         EventType = "WORD_MARKED"
	EventWordCorrected      EventType = "WORD_CORRECTED"
	EventRoundEnded         EventType = "ROUND_ENDED"
	EventGameEnded          EventType = "GAME_ENDED"
	EventGameDeleted        EventType = "GAME_DELETED"
	EventStateRestored      EventType = "STATE_RESTORED"
	EventStateReset         EventType = "STATE_RESET"
)

// GameEvent represents an event that occurred in the engine
type GameEvent struct {
	Type      EventType `json:"type"`
	GameID    string    `json:"gameId,omitempty"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent creates a new game event
func NewEvent(eventType EventType, gameID string, payload any) *GameEvent {
	return &GameEvent{
		Type:      eventType,
		GameID:    gameID,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// State is the full engine state: every game in creation order plus the
// current game pointer. It is what gets persisted.
type State struct {
	Games         []*Game `json:"games"`
	CurrentGameID string  `json:"currentGameId,omitempty"`
}

// Game returns the game with the given id from the state
func (s State) Game(id string) *Game {
	for _, g := range s.Games {
		if g.ID == id {
			return g
		}
	}
	return nil
}

// Payload types for different events

// RoundStartedPayload is sent when a round starts
type RoundStartedPayload struct {
	RoundIndex int    `json:"roundIndex"`
	TeamIndex  int    `json:"teamIndex"`
	TeamName   string `json:"teamName"`
	WordCount  int    `json:"wordCount"`
	RoundTime  int    `json:"roundTime"`
}

// WordUpdatePayload is sent when a word changes status, live or by correction
type WordUpdatePayload struct {
	RoundIndex        int        `json:"roundIndex"`
	WordIndex         int        `json:"wordIndex"`
	Status            WordStatus `json:"status"`
	TeamIndex         int        `json:"teamIndex"`
	TeamScore         int        `json:"teamScore"`
	ScoreLimitReached bool       `json:"scoreLimitReached"`
}

// RoundEndedPayload is sent when a round ends
type RoundEndedPayload struct {
	RoundIndex int        `json:"roundIndex"`
	Outcome    GameStatus `json:"outcome"`
	Correct    int        `json:"correct"`
	Skipped    int        `json:"skipped"`
	Teams      []Team     `json:"teams"`
}

// GameEndedPayload is sent when the game reaches its terminal status
type GameEndedPayload struct {
	Standings []Standing `json:"standings"`
	Winners   []Standing `json:"winners"`
	IsTie     bool       `json:"isTie"`
}

// ErrorPayload is sent when an error occurs
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

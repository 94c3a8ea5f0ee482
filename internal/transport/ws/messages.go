package ws

import (
	"encoding/json"
	"time"

	"alias/internal/domain"
)

// MessageType represents the type of WebSocket message
type MessageType string

// Client → Server message types
const (
	MsgStartRound  MessageType = "start_round"
	MsgMarkWord    MessageType = "mark_word"
	MsgCorrectWord MessageType = "correct_word"
	MsgEndRound    MessageType = "end_round"
	MsgSelectGame  MessageType = "select_game"
	MsgPing        MessageType = "ping"
)

// Server → Client message types
const (
	MsgState        MessageType = "state"
	MsgGameEvent    MessageType = "game_event"
	MsgRoundStarted MessageType = "round_started"
	MsgRoundEnded   MessageType = "round_ended"
	MsgError        MessageType = "error"
	MsgPong         MessageType = "pong"
)

// ClientMessage represents a message from client to server
type ClientMessage struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ServerMessage represents a message from server to client
type ServerMessage struct {
	Type      MessageType `json:"type"`
	Payload   any         `json:"payload,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// NewServerMessage creates a new server message with current timestamp
func NewServerMessage(msgType MessageType, payload any) *ServerMessage {
	return &ServerMessage{
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// Client message payloads

// MarkWordPayload is the payload for mark_word message
type MarkWordPayload struct {
	WordIndex int    `json:"wordIndex"`
	Status    string `json:"status"`
}

// CorrectWordPayload is the payload for correct_word message
type CorrectWordPayload struct {
	RoundIndex int    `json:"roundIndex"`
	WordIndex  int    `json:"wordIndex"`
	Status     string `json:"status"`
}

// SelectGamePayload is the payload for select_game message
type SelectGamePayload struct {
	GameID string `json:"gameId"`
}

// Server message payloads

// StatePayload is sent once a client connects
type StatePayload struct {
	ClientID    string        `json:"clientId"`
	CurrentGame *domain.Game  `json:"currentGame"`
	Games       int           `json:"games"`
	Limits      domain.Limits `json:"limits"`
}

// RoundEndedPayload answers an end_round command
type RoundEndedPayload struct {
	Outcome domain.GameStatus `json:"outcome"`
}

// Error codes
const (
	ErrCodeInvalidMessage    = "INVALID_MESSAGE"
	ErrCodeValidation        = "VALIDATION_FAILED"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeInvalidState      = "INVALID_STATE"
	ErrCodeResourceExhausted = "RESOURCE_EXHAUSTED"
	ErrCodeInternalError     = "INTERNAL_ERROR"
)

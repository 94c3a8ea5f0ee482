package ws

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"alias/internal/app"
	"alias/internal/domain"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096

	// Size of the send channel buffer
	sendBufferSize = 256
)

// Client represents a WebSocket client connection
type Client struct {
	conn        *websocket.Conn
	engine      *app.Engine
	broadcaster *app.Broadcaster
	clientID    string
	send        chan []byte
	done        chan struct{}
	logger      *slog.Logger
	mu          sync.Mutex
	closed      bool
}

// NewClient creates a new WebSocket client
func NewClient(conn *websocket.Conn, engine *app.Engine, broadcaster *app.Broadcaster, clientID string, logger *slog.Logger) *Client {
	return &Client{
		conn:        conn,
		engine:      engine,
		broadcaster: broadcaster,
		clientID:    clientID,
		send:        make(chan []byte, sendBufferSize),
		done:        make(chan struct{}),
		logger:      logger,
	}
}

// GetClientID implements app.ClientConnection interface
func (c *Client) GetClientID() string {
	return c.clientID
}

// Send implements app.ClientConnection interface. Engine updates are wrapped
// as game_event messages.
func (c *Client) Send(message any) error {
	if update, ok := message.(*app.Update); ok {
		message = NewServerMessage(MsgGameEvent, update)
	}

	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	select {
	case c.send <- data:
		return nil
	default:
		// Buffer full, message dropped
		c.logger.Warn("send buffer full, message dropped", "clientID", c.clientID)
		return nil
	}
}

// Close implements app.ClientConnection interface
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true
	close(c.done)
	return c.conn.Close()
}

// Run starts the client's read and write pumps
func (c *Client) Run() {
	go c.writePump()
	c.readPump()
}

// readPump pumps messages from the WebSocket connection
func (c *Client) readPump() {
	defer func() {
		c.broadcaster.UnregisterClient(c.clientID)
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Debug("websocket read error", "error", err)
			}
			break
		}

		c.handleMessage(message)
	}
}

// writePump pumps messages from the send channel to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage processes an incoming message from the client
func (c *Client) handleMessage(data []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError(ErrCodeInvalidMessage, "Invalid message format")
		return
	}

	switch msg.Type {
	case MsgStartRound:
		c.handleStartRound()
	case MsgMarkWord:
		c.handleMarkWord(msg.Payload)
	case MsgCorrectWord:
		c.handleCorrectWord(msg.Payload)
	case MsgEndRound:
		c.handleEndRound()
	case MsgSelectGame:
		c.handleSelectGame(msg.Payload)
	case MsgPing:
		c.sendPong()
	default:
		c.sendError(ErrCodeInvalidMessage, "Unknown message type")
	}
}

// handleStartRound handles a start_round message
func (c *Client) handleStartRound() {
	round, err := c.engine.StartRound()
	if err != nil {
		c.sendEngineError(err)
		return
	}
	c.Send(NewServerMessage(MsgRoundStarted, round))
}

// handleMarkWord handles a mark_word message
func (c *Client) handleMarkWord(raw json.RawMessage) {
	var payload MarkWordPayload
	if !c.decode(raw, &payload) {
		return
	}
	status, err := domain.ParseWordStatus(payload.Status)
	if err != nil {
		c.sendEngineError(err)
		return
	}
	if err := c.engine.UpdateWordStatus(payload.WordIndex, status); err != nil {
		c.sendEngineError(err)
	}
}

// handleCorrectWord handles a correct_word message
func (c *Client) handleCorrectWord(raw json.RawMessage) {
	var payload CorrectWordPayload
	if !c.decode(raw, &payload) {
		return
	}
	status, err := domain.ParseWordStatus(payload.Status)
	if err != nil {
		c.sendEngineError(err)
		return
	}
	if err := c.engine.UpdateWordStatusInRound(payload.RoundIndex, payload.WordIndex, status); err != nil {
		c.sendEngineError(err)
	}
}

// handleEndRound handles an end_round message
func (c *Client) handleEndRound() {
	outcome, err := c.engine.EndRound()
	if err != nil {
		c.sendEngineError(err)
		return
	}
	c.Send(NewServerMessage(MsgRoundEnded, &RoundEndedPayload{Outcome: outcome}))
}

// handleSelectGame handles a select_game message
func (c *Client) handleSelectGame(raw json.RawMessage) {
	var payload SelectGamePayload
	if !c.decode(raw, &payload) {
		return
	}
	if err := c.engine.SetCurrentGameID(payload.GameID); err != nil {
		c.sendEngineError(err)
		return
	}
	c.sendState()
}

func (c *Client) decode(raw json.RawMessage, v any) bool {
	if len(raw) == 0 {
		c.sendError(ErrCodeInvalidMessage, "Payload is required")
		return false
	}
	if err := json.Unmarshal(raw, v); err != nil {
		c.sendError(ErrCodeInvalidMessage, "Invalid payload")
		return false
	}
	return true
}

// sendState sends the current game to the client
func (c *Client) sendState() {
	payload := &StatePayload{
		ClientID:    c.clientID,
		CurrentGame: c.engine.CurrentGame(),
		Games:       c.engine.GameCount(),
		Limits:      c.engine.Limits(),
	}
	c.Send(NewServerMessage(MsgState, payload))
}

// sendEngineError maps an engine error onto an error message
func (c *Client) sendEngineError(err error) {
	code := errorCode(err)
	if code == ErrCodeInternalError {
		c.logger.Error("websocket command failed", "clientID", c.clientID, "error", err)
		c.sendError(code, "Internal server error")
		return
	}
	c.sendError(code, err.Error())
}

// sendError sends an error message to the client
func (c *Client) sendError(code, message string) {
	payload := &domain.ErrorPayload{
		Code:    code,
		Message: message,
	}

	msg := NewServerMessage(MsgError, payload)
	c.Send(msg)
}

// sendPong sends a pong message in response to ping
func (c *Client) sendPong() {
	msg := NewServerMessage(MsgPong, nil)
	c.Send(msg)
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return ErrCodeValidation
	case errors.Is(err, domain.ErrNotFound):
		return ErrCodeNotFound
	case errors.Is(err, domain.ErrPrecondition):
		return ErrCodeInvalidState
	case errors.Is(err, domain.ErrResourceExhausted):
		return ErrCodeResourceExhausted
	default:
		return ErrCodeInternalError
	}
}

package ws

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"alias/internal/app"
	"alias/internal/catalog"
	"alias/internal/domain"
)

type received struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func dial(t *testing.T) (*websocket.Conn, *app.Engine) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	words := catalog.New()
	if err := words.Initialize(); err != nil {
		t.Fatalf("catalog Initialize() error = %v", err)
	}
	engine := app.NewEngine(words, logger)
	broadcaster := app.NewBroadcaster(engine, logger)

	srv := httptest.NewServer(NewHandler(engine, broadcaster, logger))
	t.Cleanup(func() {
		broadcaster.Close()
		srv.Close()
	})

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn, engine
}

func send(t *testing.T, conn *websocket.Conn, msgType MessageType, payload any) {
	t.Helper()
	msg := map[string]any{"type": msgType}
	if payload != nil {
		msg["payload"] = payload
	}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
}

// next reads messages until one of type want arrives
func next(t *testing.T, conn *websocket.Conn, want MessageType) json.RawMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var msg received
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("waiting for %s: %v", want, err)
		}
		if msg.Type == want {
			return msg.Payload
		}
	}
}

func TestConnectSendsState(t *testing.T) {
	conn, _ := dial(t)

	var state StatePayload
	if err := json.Unmarshal(next(t, conn, MsgState), &state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if state.ClientID == "" {
		t.Error("state has no client id")
	}
	if state.CurrentGame != nil || state.Games != 0 {
		t.Errorf("state = %+v, want empty", state)
	}
	if state.Limits.MinTeams != 2 {
		t.Errorf("limits = %+v", state.Limits)
	}
}

func TestPing(t *testing.T) {
	conn, _ := dial(t)
	next(t, conn, MsgState)

	send(t, conn, MsgPing, nil)
	next(t, conn, MsgPong)
}

func TestCommandErrors(t *testing.T) {
	conn, _ := dial(t)
	next(t, conn, MsgState)

	tests := []struct {
		name    string
		msgType MessageType
		payload any
		code    string
	}{
		{"no current game", MsgStartRound, nil, ErrCodeNotFound},
		{"unknown type", "dance", nil, ErrCodeInvalidMessage},
		{"missing payload", MsgMarkWord, nil, ErrCodeInvalidMessage},
		{"bad status", MsgMarkWord, MarkWordPayload{WordIndex: 0, Status: "maybe"}, ErrCodeValidation},
		{"unknown game", MsgSelectGame, SelectGamePayload{GameID: "ghost"}, ErrCodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			send(t, conn, tt.msgType, tt.payload)

			var payload domain.ErrorPayload
			if err := json.Unmarshal(next(t, conn, MsgError), &payload); err != nil {
				t.Fatalf("decode error payload: %v", err)
			}
			if payload.Code != tt.code {
				t.Errorf("code = %s (%s), want %s", payload.Code, payload.Message, tt.code)
			}
		})
	}
}

func TestGameplayOverWebSocket(t *testing.T) {
	conn, engine := dial(t)
	next(t, conn, MsgState)

	id, err := engine.CreateGame(domain.GameOptions{
		TeamNames:  []string{"A", "B"},
		RoundTime:  60,
		Difficulty: domain.DifficultyEasy,
		ScoreLimit: 5,
	})
	if err != nil {
		t.Fatalf("CreateGame() error = %v", err)
	}
	next(t, conn, MsgGameEvent)

	send(t, conn, MsgStartRound, nil)
	var round domain.Round
	if err := json.Unmarshal(next(t, conn, MsgRoundStarted), &round); err != nil {
		t.Fatalf("decode round: %v", err)
	}
	if len(round.Words) != 10 {
		t.Fatalf("round has %d words, want 10", len(round.Words))
	}

	send(t, conn, MsgMarkWord, MarkWordPayload{WordIndex: 0, Status: "correct"})
	for {
		var update app.Update
		if err := json.Unmarshal(next(t, conn, MsgGameEvent), &update); err != nil {
			t.Fatalf("decode update: %v", err)
		}
		if update.Event.Type == domain.EventWordMarked {
			if update.CurrentGame == nil || update.CurrentGame.ID != id || update.CurrentGame.Teams[0].Score != 1 {
				t.Errorf("update current game = %+v", update.CurrentGame)
			}
			break
		}
	}

	send(t, conn, MsgEndRound, nil)
	var ended RoundEndedPayload
	if err := json.Unmarshal(next(t, conn, MsgRoundEnded), &ended); err != nil {
		t.Fatalf("decode round end: %v", err)
	}
	if ended.Outcome != domain.StatusRoundEnd {
		t.Errorf("outcome = %s, want roundEnd", ended.Outcome)
	}

	send(t, conn, MsgCorrectWord, CorrectWordPayload{RoundIndex: 0, WordIndex: 0, Status: "skipped"})
	for {
		var update app.Update
		if err := json.Unmarshal(next(t, conn, MsgGameEvent), &update); err != nil {
			t.Fatalf("decode update: %v", err)
		}
		if update.Event.Type == domain.EventWordCorrected {
			break
		}
	}
	if got := engine.CurrentGame().Teams[0].Score; got != 0 {
		t.Errorf("score after correction = %d, want 0", got)
	}
}

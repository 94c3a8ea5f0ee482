package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"alias/internal/domain"
	"alias/internal/storage"
)

// DefaultSnapshotKey is the store key the engine snapshot is written under
const DefaultSnapshotKey = "alias-react-gameStore"

// snapshotWriteTimeout bounds a single best-effort snapshot write
const snapshotWriteTimeout = 5 * time.Second

// Snapshot is the persisted record: games as ordered [id, game] pairs plus
// the current game id (null when none).
type Snapshot struct {
	Games         []GameEntry `json:"games"`
	CurrentGameID *string     `json:"currentGameId"`
}

// GameEntry encodes as a two element JSON array: [id, game]
type GameEntry struct {
	ID   string
	Game *domain.Game
}

func (e GameEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{e.ID, e.Game})
}

func (e *GameEntry) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("game entry must have 2 elements, got %d", len(pair))
	}
	if err := json.Unmarshal(pair[0], &e.ID); err != nil {
		return fmt.Errorf("game entry id: %w", err)
	}
	e.Game = new(domain.Game)
	if err := json.Unmarshal(pair[1], e.Game); err != nil {
		return fmt.Errorf("game entry %q: %w", e.ID, err)
	}
	return nil
}

// NewSnapshot converts engine state to its persisted form
func NewSnapshot(state domain.State) Snapshot {
	s := Snapshot{Games: make([]GameEntry, 0, len(state.Games))}
	for _, g := range state.Games {
		s.Games = append(s.Games, GameEntry{ID: g.ID, Game: g})
	}
	if state.CurrentGameID != "" {
		id := state.CurrentGameID
		s.CurrentGameID = &id
	}
	return s
}

// State converts a snapshot back to engine state, rejecting entries whose key
// does not match the game they hold.
func (s Snapshot) State() (domain.State, error) {
	state := domain.State{Games: make([]*domain.Game, 0, len(s.Games))}
	for _, e := range s.Games {
		if e.Game == nil {
			return domain.State{}, fmt.Errorf("game %q is null", e.ID)
		}
		if e.Game.ID != e.ID {
			return domain.State{}, fmt.Errorf("game key %q holds game %q", e.ID, e.Game.ID)
		}
		state.Games = append(state.Games, e.Game)
	}
	if s.CurrentGameID != nil {
		state.CurrentGameID = *s.CurrentGameID
	}
	return state, nil
}

// Persister mirrors engine state into a durable store. Writes are best effort:
// failures are logged and never reach the caller that triggered the change.
type Persister struct {
	store  storage.Store
	key    string
	logger *slog.Logger
	detach func()
}

// NewPersister creates a persister writing under key in store
func NewPersister(store storage.Store, key string, logger *slog.Logger) *Persister {
	if key == "" {
		key = DefaultSnapshotKey
	}
	return &Persister{
		store:  store,
		key:    key,
		logger: logger,
	}
}

// Restore loads the persisted snapshot into engine. A missing, unreadable or
// structurally invalid snapshot leaves the engine empty and is not an error.
// It reports whether a snapshot was applied.
func (p *Persister) Restore(ctx context.Context, engine *Engine) bool {
	data, err := p.store.Get(ctx, p.key)
	if errors.Is(err, storage.ErrNotFound) {
		p.logger.Debug("no persisted state", "key", p.key)
		return false
	}
	if err != nil {
		p.logger.Error("failed to load persisted state", "key", p.key, "error", err)
		return false
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		p.logger.Warn("ignoring corrupt persisted state", "key", p.key, "error", err)
		return false
	}

	state, err := snapshot.State()
	if err != nil {
		p.logger.Warn("ignoring invalid persisted state", "key", p.key, "error", err)
		return false
	}

	if err := engine.Restore(state); err != nil {
		p.logger.Warn("ignoring invalid persisted state", "key", p.key, "error", err)
		return false
	}

	p.logger.Info("restored persisted state",
		"games", len(state.Games),
		"currentGameID", state.CurrentGameID,
	)
	return true
}

// Attach subscribes to engine and writes a snapshot after every change
func (p *Persister) Attach(engine *Engine) {
	p.Detach()
	p.detach = engine.Subscribe(func(event *domain.GameEvent, state domain.State) {
		ctx, cancel := context.WithTimeout(context.Background(), snapshotWriteTimeout)
		defer cancel()

		if err := p.Save(ctx, state); err != nil {
			p.logger.Error("failed to save game state",
				"key", p.key,
				"event", event.Type,
				"error", err,
			)
		}
	})
}

// Detach stops mirroring engine changes
func (p *Persister) Detach() {
	if p.detach != nil {
		p.detach()
		p.detach = nil
	}
}

// Save writes state to the store
func (p *Persister) Save(ctx context.Context, state domain.State) error {
	data, err := json.Marshal(NewSnapshot(state))
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := p.store.Put(ctx, p.key, data); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// Clear removes the persisted snapshot
func (p *Persister) Clear(ctx context.Context) error {
	if err := p.store.Delete(ctx, p.key); err != nil {
		return fmt.Errorf("clear snapshot: %w", err)
	}
	p.logger.Info("persisted state cleared", "key", p.key)
	return nil
}

package app

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"alias/internal/domain"
	"alias/internal/storage"
)

// failingStore rejects every write
type failingStore struct {
	*storage.MemoryStore
	puts int
}

func (s *failingStore) Put(ctx context.Context, key string, value []byte) error {
	s.puts++
	return errors.New("quota exceeded")
}

func TestPersisterSnapshotShape(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	e, _ := newTestEngine(t)

	p := NewPersister(store, "", discardLogger())
	p.Attach(e)
	defer p.Detach()

	first := mustCreate(t, e, defaultOptions())
	second := mustCreate(t, e, defaultOptions("X", "Y"))

	data, err := store.Get(ctx, DefaultSnapshotKey)
	if err != nil {
		t.Fatalf("snapshot not written: %v", err)
	}

	var raw struct {
		Games         [][]json.RawMessage `json:"games"`
		CurrentGameID *string             `json:"currentGameId"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("snapshot is not the expected shape: %v\n%s", err, data)
	}
	if len(raw.Games) != 2 {
		t.Fatalf("snapshot holds %d games, want 2", len(raw.Games))
	}
	for i, want := range []string{first, second} {
		var id string
		if err := json.Unmarshal(raw.Games[i][0], &id); err != nil || id != want {
			t.Errorf("entry %d key = %q (%v), want %q", i, id, err, want)
		}
	}
	if raw.CurrentGameID == nil || *raw.CurrentGameID != second {
		t.Errorf("currentGameId = %v, want %q", raw.CurrentGameID, second)
	}

	if err := e.SetCurrentGameID(""); err != nil {
		t.Fatalf("SetCurrentGameID() error = %v", err)
	}
	data, _ = store.Get(ctx, DefaultSnapshotKey)
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if raw.CurrentGameID != nil {
		t.Errorf("currentGameId = %q, want null", *raw.CurrentGameID)
	}
}

func TestPersisterRestore(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()

	source, _ := newTestEngine(t)
	p := NewPersister(store, "snap", discardLogger())
	p.Attach(source)

	id := mustCreate(t, source, defaultOptions())
	if _, err := source.StartRound(); err != nil {
		t.Fatalf("StartRound() error = %v", err)
	}
	if err := source.UpdateWordStatus(2, domain.WordCorrect); err != nil {
		t.Fatalf("UpdateWordStatus() error = %v", err)
	}
	p.Detach()

	target, _ := newTestEngine(t)
	if !NewPersister(store, "snap", discardLogger()).Restore(ctx, target) {
		t.Fatal("Restore() = false")
	}

	want := source.CurrentGame()
	got := target.CurrentGame()
	if got == nil || got.ID != id {
		t.Fatalf("restored current game = %+v", got)
	}
	if got.Teams[0].Score != 1 || got.Rounds[0].Words[2].Status != domain.WordCorrect {
		t.Errorf("restored game lost progress: %+v", got)
	}
	if !got.CreatedAt.Equal(want.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, want.CreatedAt)
	}
}

func TestPersisterRestoreIgnoresBadSnapshots(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		data string
	}{
		{"not json", `{"games": [`},
		{"wrong entry shape", `{"games": [["only-id"]], "currentGameId": null}`},
		{"key mismatch", `{"games": [["a", {"id": "b"}]], "currentGameId": null}`},
		{"invalid game", `{"games": [["a", {"id": "a", "teams": [], "status": "setup", "scoreLimit": 5}]], "currentGameId": null}`},
		{"dangling current", `{"games": [], "currentGameId": "ghost"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := storage.NewMemoryStore()
			if err := store.Put(ctx, DefaultSnapshotKey, []byte(tt.data)); err != nil {
				t.Fatalf("Put() error = %v", err)
			}

			e, _ := newTestEngine(t)
			if NewPersister(store, "", discardLogger()).Restore(ctx, e) {
				t.Fatal("Restore() = true for a bad snapshot")
			}
			if e.GameCount() != 0 || e.CurrentGameID() != "" {
				t.Errorf("engine not empty after ignored snapshot")
			}
		})
	}
}

func TestPersisterRestoreMissing(t *testing.T) {
	e, _ := newTestEngine(t)
	if NewPersister(storage.NewMemoryStore(), "", discardLogger()).Restore(context.Background(), e) {
		t.Error("Restore() = true with no snapshot")
	}
}

func TestPersisterWriteFailureDoesNotReachCaller(t *testing.T) {
	store := &failingStore{MemoryStore: storage.NewMemoryStore()}
	e, _ := newTestEngine(t)

	p := NewPersister(store, "", discardLogger())
	p.Attach(e)
	defer p.Detach()

	if _, err := e.CreateGame(defaultOptions()); err != nil {
		t.Fatalf("CreateGame() error = %v", err)
	}
	if _, err := e.StartRound(); err != nil {
		t.Fatalf("StartRound() error = %v", err)
	}
	if store.puts != 2 {
		t.Errorf("store saw %d writes, want 2", store.puts)
	}
}

func TestPersisterClear(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	e, _ := newTestEngine(t)

	p := NewPersister(store, "", discardLogger())
	p.Attach(e)
	mustCreate(t, e, defaultOptions())

	e.Reset()
	if err := p.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if _, err := store.Get(ctx, DefaultSnapshotKey); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("snapshot still present after Clear: %v", err)
	}

	// Clearing twice is harmless.
	if err := p.Clear(ctx); err != nil {
		t.Errorf("second Clear() error = %v", err)
	}
}

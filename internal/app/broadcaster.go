package app

import (
	"log/slog"
	"sync"

	"alias/internal/domain"
)

// eventQueueSize bounds the number of updates waiting to be fanned out
const eventQueueSize = 100

// ClientConnection represents a connected observer, e.g. a WebSocket client
type ClientConnection interface {
	Send(message any) error
	GetClientID() string
	Close() error
}

// Update is what observers receive after every engine change
type Update struct {
	Event       *domain.GameEvent `json:"event"`
	CurrentGame *domain.Game      `json:"currentGame,omitempty"`
}

// Broadcaster fans engine changes out to connected clients without blocking
// the engine: updates are queued and delivered from a separate goroutine.
type Broadcaster struct {
	clients   map[string]ClientConnection
	clientsMu sync.RWMutex
	logger    *slog.Logger

	events chan *Update
	done   chan struct{}
	detach func()
	once   sync.Once
}

// NewBroadcaster creates a broadcaster fed by engine
func NewBroadcaster(engine *Engine, logger *slog.Logger) *Broadcaster {
	b := &Broadcaster{
		clients: make(map[string]ClientConnection),
		logger:  logger,
		events:  make(chan *Update, eventQueueSize),
		done:    make(chan struct{}),
	}

	b.detach = engine.Subscribe(func(event *domain.GameEvent, state domain.State) {
		b.queueUpdate(&Update{
			Event:       event,
			CurrentGame: state.Game(state.CurrentGameID),
		})
	})

	// Start update broadcaster
	go b.eventLoop()

	return b
}

// RegisterClient registers a client connection
func (b *Broadcaster) RegisterClient(client ClientConnection) {
	b.clientsMu.Lock()
	defer b.clientsMu.Unlock()
	b.clients[client.GetClientID()] = client
}

// UnregisterClient removes a client connection
func (b *Broadcaster) UnregisterClient(clientID string) {
	b.clientsMu.Lock()
	defer b.clientsMu.Unlock()
	delete(b.clients, clientID)
}

// ClientCount returns the number of connected clients
func (b *Broadcaster) ClientCount() int {
	b.clientsMu.RLock()
	defer b.clientsMu.RUnlock()
	return len(b.clients)
}

// queueUpdate adds an update to the broadcast queue
func (b *Broadcaster) queueUpdate(update *Update) {
	select {
	case b.events <- update:
	default:
		b.logger.Warn("update queue full, dropping update", "type", update.Event.Type)
	}
}

// eventLoop processes updates and broadcasts to clients
func (b *Broadcaster) eventLoop() {
	for {
		select {
		case <-b.done:
			return
		case update := <-b.events:
			b.broadcast(update)
		}
	}
}

// broadcast sends an update to every client
func (b *Broadcaster) broadcast(update *Update) {
	b.clientsMu.RLock()
	defer b.clientsMu.RUnlock()

	for clientID, client := range b.clients {
		if err := client.Send(update); err != nil {
			b.logger.Debug("failed to send to client", "clientID", clientID, "error", err)
		}
	}
}

// Close stops broadcasting and closes every client
func (b *Broadcaster) Close() {
	b.once.Do(func() {
		b.detach()
		close(b.done)

		b.clientsMu.Lock()
		for _, client := range b.clients {
			client.Close()
		}
		b.clients = make(map[string]ClientConnection)
		b.clientsMu.Unlock()
	})
}

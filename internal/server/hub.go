package server

import (
	"sync"

	"tictactoe4/internal/game"
)

const subscriberBuffer = 16

// Update is sent to every subscriber of a game after each move
type Update struct {
	Snapshot game.GameSnapshot
	Message  string
}

// Hub fans game updates out to subscribers (gRPC streams and WebSockets)
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[chan Update]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan Update]struct{})}
}

// Subscribe registers a channel for gameID. The returned func unsubscribes
// and closes the channel.
func (h *Hub) Subscribe(gameID string) (<-chan Update, func()) {
	ch := make(chan Update, subscriberBuffer)

	h.mu.Lock()
	if h.subs[gameID] == nil {
		h.subs[gameID] = make(map[chan Update]struct{})
	}
	h.subs[gameID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			subs, ok := h.subs[gameID]
			if !ok {
				return
			}
			if _, ok := subs[ch]; !ok {
				// already closed by the final broadcast
				return
			}
			delete(subs, ch)
			if len(subs) == 0 {
				delete(h.subs, gameID)
			}
			close(ch)
		})
	}
}

// Broadcast delivers u to every subscriber of gameID. Subscribers whose
// buffer is full miss the update, except for the update of a finished
// game: that one replaces the oldest buffered update, and the channels are
// closed after it.
func (h *Hub) Broadcast(gameID string, u Update) {
	if u.Snapshot.Status.IsFinished() {
		h.finish(gameID, u)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subs[gameID] {
		select {
		case ch <- u:
		default:
		}
	}
}

func (h *Hub) finish(gameID string, u Update) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs[gameID] {
		select {
		case ch <- u:
		default:
			// only subscribers read from ch, so one free slot is enough
			select {
			case <-ch:
			default:
			}
			ch <- u
		}
		close(ch)
	}
	delete(h.subs, gameID)
}

// Subscribers returns how many channels listen on gameID
func (h *Hub) Subscribers(gameID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[gameID])
}

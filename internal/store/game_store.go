package store

import (
	"errors"
	"hash/fnv"
	"sort"
	"sync"

	"tictactoe4/internal/game"
)

const DefaultShards = 64

var (
	ErrGameNotFound      = errors.New("game not found")
	ErrGameAlreadyExists = errors.New("game already exists")
)

// shardIndex spreads keys over n shards
func shardIndex(key string, n int) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(n))
}

// GameStore keeps games in memory, split into shards so that lookups on
// different games rarely contend for the same lock
type GameStore struct {
	shards []*gameShard
}

type gameShard struct {
	mu    sync.RWMutex
	games map[string]*game.Game
}

// NewGameStore creates a store with numShards shards (DefaultShards if < 1)
func NewGameStore(numShards int) *GameStore {
	if numShards < 1 {
		numShards = DefaultShards
	}
	shards := make([]*gameShard, numShards)
	for i := range shards {
		shards[i] = &gameShard{games: make(map[string]*game.Game)}
	}
	return &GameStore{shards: shards}
}

func (s *GameStore) shard(gameID string) *gameShard {
	return s.shards[shardIndex(gameID, len(s.shards))]
}

// Create stores a new game
func (s *GameStore) Create(g *game.Game) error {
	shard := s.shard(g.ID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	if _, exists := shard.games[g.ID]; exists {
		return ErrGameAlreadyExists
	}
	shard.games[g.ID] = g
	return nil
}

// Get retrieves a game by ID
func (s *GameStore) Get(gameID string) (*game.Game, error) {
	shard := s.shard(gameID)
	shard.mu.RLock()
	defer shard.mu.RUnlock()

	g, exists := shard.games[gameID]
	if !exists {
		return nil, ErrGameNotFound
	}
	return g, nil
}

// Delete removes a game by ID
func (s *GameStore) Delete(gameID string) error {
	shard := s.shard(gameID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	if _, exists := shard.games[gameID]; !exists {
		return ErrGameNotFound
	}
	delete(shard.games, gameID)
	return nil
}

// ListFilter selects games for List. A nil Status matches every game.
type ListFilter struct {
	Status *game.Status
	Limit  int
	Offset int
}

// List returns snapshots of matching games, oldest first, and the total
// number of matches before pagination
func (s *GameStore) List(f ListFilter) ([]game.GameSnapshot, int) {
	var matched []game.GameSnapshot
	for _, shard := range s.shards {
		shard.mu.RLock()
		for _, g := range shard.games {
			if f.Status != nil && g.GetStatus() != *f.Status {
				continue
			}
			matched = append(matched, g.GetSnapshot())
		}
		shard.mu.RUnlock()
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})

	total := len(matched)
	if f.Offset >= total {
		return []game.GameSnapshot{}, total
	}
	matched = matched[max(f.Offset, 0):]
	if f.Limit > 0 && len(matched) > f.Limit {
		matched = matched[:f.Limit]
	}
	return matched, total
}

// Count returns the total number of games
func (s *GameStore) Count() int {
	count := 0
	for _, shard := range s.shards {
		shard.mu.RLock()
		count += len(shard.games)
		shard.mu.RUnlock()
	}
	return count
}

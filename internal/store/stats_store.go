package store

import (
	"sync"
	"sync/atomic"

	"tictactoe4/internal/game"
)

// UserStats holds win/loss/draw counts for a player
type UserStats struct {
	UserID string
	Wins   int32
	Losses int32
	Draws  int32
}

// TotalGames returns the total number of finished games
func (s UserStats) TotalGames() int32 {
	return s.Wins + s.Losses + s.Draws
}

type counters struct {
	wins   atomic.Int32
	losses atomic.Int32
	draws  atomic.Int32
}

// StatsStore keeps per-player results, sharded like GameStore
type StatsStore struct {
	shards []*statsShard
}

type statsShard struct {
	mu    sync.RWMutex
	stats map[string]*counters
}

// NewStatsStore creates a store with numShards shards (DefaultShards if < 1)
func NewStatsStore(numShards int) *StatsStore {
	if numShards < 1 {
		numShards = DefaultShards
	}
	shards := make([]*statsShard, numShards)
	for i := range shards {
		shards[i] = &statsShard{stats: make(map[string]*counters)}
	}
	return &StatsStore{shards: shards}
}

func (s *StatsStore) counters(userID string) *counters {
	shard := s.shards[shardIndex(userID, len(s.shards))]

	shard.mu.RLock()
	c, ok := shard.stats[userID]
	shard.mu.RUnlock()
	if ok {
		return c
	}

	shard.mu.Lock()
	defer shard.mu.Unlock()
	if c, ok = shard.stats[userID]; ok {
		return c
	}
	c = &counters{}
	shard.stats[userID] = c
	return c
}

// Get returns the stats for a player; unknown players have zero counts
func (s *StatsStore) Get(userID string) UserStats {
	c := s.counters(userID)
	return UserStats{
		UserID: userID,
		Wins:   c.wins.Load(),
		Losses: c.losses.Load(),
		Draws:  c.draws.Load(),
	}
}

// RecordWin records a win for a player
func (s *StatsStore) RecordWin(userID string) {
	s.counters(userID).wins.Add(1)
}

// RecordLoss records a loss for a player
func (s *StatsStore) RecordLoss(userID string) {
	s.counters(userID).losses.Add(1)
}

// RecordDraw records a draw for a player
func (s *StatsStore) RecordDraw(userID string) {
	s.counters(userID).draws.Add(1)
}

// RecordOutcome updates both players of a finished game. It reports whether
// anything was recorded: unfinished games and games the engine played
// against itself are skipped.
func (s *StatsStore) RecordOutcome(snapshot game.GameSnapshot) bool {
	if !snapshot.Status.IsFinished() || snapshot.PlayerX == snapshot.PlayerO {
		return false
	}
	if snapshot.IsDraw() {
		s.RecordDraw(snapshot.PlayerX)
		s.RecordDraw(snapshot.PlayerO)
		return true
	}
	s.RecordWin(snapshot.GetWinner())
	s.RecordLoss(snapshot.GetLoser())
	return true
}

package store

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tictactoe4/internal/game"
)

func TestStatsStore_Get(t *testing.T) {
	store := NewStatsStore(4)

	stats := store.Get("user-1")
	assert.Equal(t, "user-1", stats.UserID)
	assert.Equal(t, int32(0), stats.TotalGames())
}

func TestStatsStore_Record(t *testing.T) {
	store := NewStatsStore(4)

	store.RecordWin("user-1")
	store.RecordWin("user-1")
	store.RecordLoss("user-1")
	store.RecordDraw("user-1")

	stats := store.Get("user-1")
	assert.Equal(t, int32(2), stats.Wins)
	assert.Equal(t, int32(1), stats.Losses)
	assert.Equal(t, int32(1), stats.Draws)
	assert.Equal(t, int32(4), stats.TotalGames())
}

func finishedSnapshot(t *testing.T, mode game.Mode, rows ...string) game.GameSnapshot {
	t.Helper()
	g, err := game.NewGame("game-1", "human", mode, 4)
	require.NoError(t, err)
	if mode == game.ModeHumanVsHuman {
		require.NoError(t, g.Join("friend"))
	}
	board, err := game.ParseBoard(rows...)
	require.NoError(t, err)
	s := g.GetSnapshot()
	s.Board = board
	s.Status = board.Outcome()
	return s
}

func TestStatsStore_RecordOutcome(t *testing.T) {
	store := NewStatsStore(4)

	// computer (X) beats the human
	recorded := store.RecordOutcome(finishedSnapshot(t, game.ModeHumanVsComputer, "XXXX", "OOO.", "....", "...."))
	assert.True(t, recorded)
	assert.Equal(t, int32(1), store.Get(game.ComputerPlayerID).Wins)
	assert.Equal(t, int32(1), store.Get("human").Losses)

	recorded = store.RecordOutcome(finishedSnapshot(t, game.ModeHumanVsHuman, "XOXO", "XOXO", "OXOX", "OXOX"))
	assert.True(t, recorded)
	assert.Equal(t, int32(1), store.Get("human").Draws)
	assert.Equal(t, int32(1), store.Get("friend").Draws)

	// engine against itself and unfinished games do not count
	assert.False(t, store.RecordOutcome(finishedSnapshot(t, game.ModeComputerVsComputer, "XXXX", "OOO.", "....", "....")))
	assert.False(t, store.RecordOutcome(finishedSnapshot(t, game.ModeHumanVsComputer, "X...", "O...", "....", "....")))
	assert.Equal(t, int32(1), store.Get(game.ComputerPlayerID).TotalGames())
}

func TestStatsStore_Concurrent(t *testing.T) {
	store := NewStatsStore(4)
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			store.RecordWin("user-1")
		}()
		go func() {
			defer wg.Done()
			store.RecordLoss("user-1")
		}()
		go func() {
			defer wg.Done()
			store.RecordDraw("user-1")
		}()
	}
	wg.Wait()

	stats := store.Get("user-1")
	assert.Equal(t, int32(100), stats.Wins)
	assert.Equal(t, int32(100), stats.Losses)
	assert.Equal(t, int32(100), stats.Draws)
	assert.Equal(t, int32(300), stats.TotalGames())
}

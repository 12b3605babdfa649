package game

import (
	"fmt"
	"sync"
	"time"
)

// ComputerPlayerID is the player ID the engine plays under
const ComputerPlayerID = "computer"

// FirstMover is the mark that opens every game
const FirstMover = MarkO

// Mode selects who controls each side
type Mode int

const (
	ModeHumanVsHuman Mode = iota
	ModeHumanVsComputer
	ModeComputerVsComputer
)

func (m Mode) String() string {
	switch m {
	case ModeHumanVsHuman:
		return "HUMAN_VS_HUMAN"
	case ModeHumanVsComputer:
		return "HUMAN_VS_COMPUTER"
	case ModeComputerVsComputer:
		return "COMPUTER_VS_COMPUTER"
	default:
		return "UNKNOWN"
	}
}

// ParseMode converts a mode name back to a Mode
func ParseMode(s string) (Mode, error) {
	for m := ModeHumanVsHuman; m <= ModeComputerVsComputer; m++ {
		if m.String() == s {
			return m, nil
		}
	}
	return ModeHumanVsHuman, fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

// Game is one session on a board. The creator always plays O, which moves
// first; X is the computer in HUMAN_VS_COMPUTER and the joiner in
// HUMAN_VS_HUMAN.
type Game struct {
	mu sync.RWMutex

	ID        string
	Mode      Mode
	CreatedBy string
	PlayerX   string
	PlayerO   string
	Board     *Board
	Turn      Mark
	Status    Status
	Plies     int
	LastMove  *Move
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewGame creates a game of the given mode on a fresh board
func NewGame(id, creatorID string, mode Mode, boardSize int) (*Game, error) {
	board, err := NewBoard(boardSize)
	if err != nil {
		return nil, err
	}

	g := &Game{
		ID:        id,
		Mode:      mode,
		CreatedBy: creatorID,
		Board:     board,
		Turn:      FirstMover,
	}

	switch mode {
	case ModeHumanVsHuman:
		g.PlayerO = creatorID
		g.Status = StatusPending
	case ModeHumanVsComputer:
		g.PlayerO = creatorID
		g.PlayerX = ComputerPlayerID
		g.Status = StatusInProgress
	case ModeComputerVsComputer:
		g.PlayerO = ComputerPlayerID
		g.PlayerX = ComputerPlayerID
		g.Status = StatusInProgress
	default:
		return nil, ErrInvalidMode
	}

	now := time.Now()
	g.CreatedAt = now
	g.UpdatedAt = now
	return g, nil
}

// Join adds the X player to a pending HUMAN_VS_HUMAN game
func (g *Game) Join(playerID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.Status != StatusPending {
		return ErrGameAlreadyStarted
	}
	if g.PlayerO == playerID {
		return ErrCannotJoinOwnGame
	}

	g.PlayerX = playerID
	g.Status = StatusInProgress
	g.UpdatedAt = time.Now()
	return nil
}

// MoveResult is the state right after a move, taken under the game lock.
// Finished is true only for the move that ended the game.
type MoveResult struct {
	Snapshot GameSnapshot
	Finished bool
}

// MakeMove places the mark of the side to move, on behalf of playerID
func (g *Game) MakeMove(playerID string, row, col int) error {
	_, err := g.ApplyMove(playerID, row, col)
	return err
}

// ApplyMove is MakeMove that also reports the resulting state
func (g *Game) ApplyMove(playerID string, row, col int) (MoveResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.Status != StatusInProgress {
		return MoveResult{}, ErrGameNotInProgress
	}
	if g.playerFor(g.Turn) != playerID {
		if g.PlayerX == playerID || g.PlayerO == playerID {
			return MoveResult{}, ErrNotYourTurn
		}
		return MoveResult{}, ErrPlayerNotInGame
	}

	if err := g.Board.Set(row, col, g.Turn); err != nil {
		return MoveResult{}, err
	}

	g.Plies++
	g.LastMove = &Move{Row: row, Col: col}
	g.UpdatedAt = time.Now()

	if outcome := g.Board.Outcome(); outcome.IsFinished() {
		g.Status = outcome
		return MoveResult{Snapshot: g.snapshot(), Finished: true}, nil
	}

	g.Turn = g.Turn.Opponent()
	return MoveResult{Snapshot: g.snapshot()}, nil
}

// ComputerToMove reports whether the engine owns the next move
func (g *Game) ComputerToMove() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.Status == StatusInProgress && g.playerFor(g.Turn) == ComputerPlayerID
}

func (g *Game) playerFor(mark Mark) string {
	switch mark {
	case MarkX:
		return g.PlayerX
	case MarkO:
		return g.PlayerO
	default:
		return ""
	}
}

// GetStatus returns the current game status (thread-safe)
func (g *Game) GetStatus() Status {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.Status
}

// GetSnapshot returns a copy of the game state
func (g *Game) GetSnapshot() GameSnapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.snapshot()
}

// snapshot copies the state; the caller holds g.mu
func (g *Game) snapshot() GameSnapshot {
	var last *Move
	if g.LastMove != nil {
		m := *g.LastMove
		last = &m
	}
	return GameSnapshot{
		ID:        g.ID,
		Mode:      g.Mode,
		CreatedBy: g.CreatedBy,
		PlayerX:   g.PlayerX,
		PlayerO:   g.PlayerO,
		Board:     g.Board.Clone(),
		Turn:      g.Turn,
		Status:    g.Status,
		Plies:     g.Plies,
		LastMove:  last,
		CreatedAt: g.CreatedAt,
		UpdatedAt: g.UpdatedAt,
	}
}

// GameSnapshot is an immutable copy of game state
type GameSnapshot struct {
	ID        string
	Mode      Mode
	CreatedBy string
	PlayerX   string
	PlayerO   string
	Board     *Board
	Turn      Mark
	Status    Status
	Plies     int
	LastMove  *Move
	CreatedAt time.Time
	UpdatedAt time.Time
}

// GetWinner returns the winner's player ID, or empty string if no winner
func (s *GameSnapshot) GetWinner() string {
	switch s.Status {
	case StatusXWon:
		return s.PlayerX
	case StatusOWon:
		return s.PlayerO
	default:
		return ""
	}
}

// GetLoser returns the loser's player ID, or empty string if no loser
func (s *GameSnapshot) GetLoser() string {
	switch s.Status {
	case StatusXWon:
		return s.PlayerO
	case StatusOWon:
		return s.PlayerX
	default:
		return ""
	}
}

// IsDraw returns true if the game ended in a draw
func (s *GameSnapshot) IsDraw() bool {
	return s.Status == StatusDraw
}

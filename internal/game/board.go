package game

import (
	"errors"
	"fmt"
	"strings"
)

// Mark represents a cell state on the board
type Mark int

const (
	MarkEmpty Mark = iota
	MarkX
	MarkO
)

func (m Mark) String() string {
	switch m {
	case MarkEmpty:
		return " "
	case MarkX:
		return "X"
	case MarkO:
		return "O"
	default:
		return "?"
	}
}

// Opponent returns the opposing mark
func (m Mark) Opponent() Mark {
	switch m {
	case MarkX:
		return MarkO
	case MarkO:
		return MarkX
	default:
		return MarkEmpty
	}
}

// IsPlayer reports whether m is one of the two player marks
func (m Mark) IsPlayer() bool {
	return m == MarkX || m == MarkO
}

// ParseMark converts "X" or "O" (any case) to a Mark
func ParseMark(s string) (Mark, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "X":
		return MarkX, nil
	case "O":
		return MarkO, nil
	default:
		return MarkEmpty, fmt.Errorf("%w: %q", ErrInvalidMark, s)
	}
}

// Status represents the current status of a game
type Status int

const (
	StatusPending Status = iota
	StatusInProgress
	StatusXWon
	StatusOWon
	StatusDraw
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "PENDING"
	case StatusInProgress:
		return "IN_PROGRESS"
	case StatusXWon:
		return "X_WON"
	case StatusOWon:
		return "O_WON"
	case StatusDraw:
		return "DRAW"
	default:
		return "UNKNOWN"
	}
}

// ParseStatus is the inverse of Status.String
func ParseStatus(s string) (Status, error) {
	for st := StatusPending; st <= StatusDraw; st++ {
		if st.String() == s {
			return st, nil
		}
	}
	return StatusPending, fmt.Errorf("unknown status %q", s)
}

// IsFinished returns true if the game has ended
func (s Status) IsFinished() bool {
	return s == StatusXWon || s == StatusOWon || s == StatusDraw
}

// WonBy returns the status for a win by mark
func WonBy(mark Mark) Status {
	if mark == MarkX {
		return StatusXWon
	}
	return StatusOWon
}

// Common errors
var (
	ErrInvalidBoardSize   = errors.New("invalid board size: must be at least 3")
	ErrInvalidDepth       = errors.New("invalid search depth: must be at least 1")
	ErrInvalidMark        = errors.New("invalid mark: must be X or O")
	ErrInvalidPosition    = errors.New("invalid position: out of bounds")
	ErrCellOccupied       = errors.New("cell is already occupied")
	ErrInvalidMode        = errors.New("invalid game mode")
	ErrGameNotInProgress  = errors.New("game is not in progress")
	ErrNotYourTurn        = errors.New("not your turn")
	ErrPlayerNotInGame    = errors.New("player is not part of this game")
	ErrGameAlreadyStarted = errors.New("game has already started")
	ErrCannotJoinOwnGame  = errors.New("cannot join your own game")
)

// Move is a 0-based (row, column) coordinate
type Move struct {
	Row int
	Col int
}

func (m Move) String() string {
	return fmt.Sprintf("(%d, %d)", m.Row, m.Col)
}

// Board is a square grid of marks stored row-major. A line is complete only
// when it spans the whole side, so the win length always equals Size.
type Board struct {
	Size  int
	Cells []Mark
}

// NewBoard creates an empty board with the given side length
func NewBoard(size int) (*Board, error) {
	if size < 3 {
		return nil, ErrInvalidBoardSize
	}
	return &Board{
		Size:  size,
		Cells: make([]Mark, size*size),
	}, nil
}

// Get returns the mark at the given position
func (b *Board) Get(row, col int) (Mark, error) {
	if !b.InBounds(row, col) {
		return MarkEmpty, ErrInvalidPosition
	}
	return b.Cells[row*b.Size+col], nil
}

// Set validates and places a mark. This is the entry point for moves that
// come from outside the engine.
func (b *Board) Set(row, col int, mark Mark) error {
	if !mark.IsPlayer() {
		return ErrInvalidMark
	}
	if !b.InBounds(row, col) {
		return ErrInvalidPosition
	}
	idx := row*b.Size + col
	if b.Cells[idx] != MarkEmpty {
		return ErrCellOccupied
	}
	b.Cells[idx] = mark
	return nil
}

// Place puts mark on an empty cell. Callers must already know the move is
// legal; a violation panics rather than corrupting the board.
func (b *Board) Place(m Move, mark Mark) {
	if err := b.Set(m.Row, m.Col, mark); err != nil {
		panic(fmt.Errorf("illegal placement of %s at %s: %w", mark, m, err))
	}
}

// Clear resets a cell to empty, undoing a Place
func (b *Board) Clear(m Move) {
	if !b.InBounds(m.Row, m.Col) {
		panic(fmt.Errorf("clear at %s: %w", m, ErrInvalidPosition))
	}
	b.Cells[m.Row*b.Size+m.Col] = MarkEmpty
}

// InBounds checks if the position is on the board
func (b *Board) InBounds(row, col int) bool {
	return row >= 0 && row < b.Size && col >= 0 && col < b.Size
}

// IsFull returns true if all cells are occupied
func (b *Board) IsFull() bool {
	for _, cell := range b.Cells {
		if cell == MarkEmpty {
			return false
		}
	}
	return true
}

// EmptyCells lists the empty coordinates in row-major order. Move selection
// tie-breaks depend on this order.
func (b *Board) EmptyCells() []Move {
	moves := make([]Move, 0, len(b.Cells))
	for idx, cell := range b.Cells {
		if cell == MarkEmpty {
			moves = append(moves, Move{Row: idx / b.Size, Col: idx % b.Size})
		}
	}
	return moves
}

// HasWon reports whether mark fills a whole row, column, the main diagonal
// or the anti-diagonal.
func (b *Board) HasWon(mark Mark) bool {
	if !mark.IsPlayer() {
		return false
	}
	n := b.Size
	diag, anti := true, true
	for i := 0; i < n; i++ {
		row, col := true, true
		for j := 0; j < n; j++ {
			if b.Cells[i*n+j] != mark {
				row = false
			}
			if b.Cells[j*n+i] != mark {
				col = false
			}
		}
		if row || col {
			return true
		}
		if b.Cells[i*n+i] != mark {
			diag = false
		}
		if b.Cells[i*n+n-1-i] != mark {
			anti = false
		}
	}
	return diag || anti
}

// Outcome resolves the board to a verdict. O is checked before X, then a full
// board is a draw.
func (b *Board) Outcome() Status {
	switch {
	case b.HasWon(MarkO):
		return StatusOWon
	case b.HasWon(MarkX):
		return StatusXWon
	case b.IsFull():
		return StatusDraw
	default:
		return StatusInProgress
	}
}

// Count returns how many cells hold mark
func (b *Board) Count(mark Mark) int {
	n := 0
	for _, cell := range b.Cells {
		if cell == mark {
			n++
		}
	}
	return n
}

// Clone creates a deep copy of the board
func (b *Board) Clone() *Board {
	cells := make([]Mark, len(b.Cells))
	copy(cells, b.Cells)
	return &Board{
		Size:  b.Size,
		Cells: cells,
	}
}

// Equal reports whether both boards have the same size and cells
func (b *Board) Equal(other *Board) bool {
	if other == nil || b.Size != other.Size || len(b.Cells) != len(other.Cells) {
		return false
	}
	for i := range b.Cells {
		if b.Cells[i] != other.Cells[i] {
			return false
		}
	}
	return true
}

// String renders the board one row per line as "| X | O |   |"
func (b *Board) String() string {
	var sb strings.Builder
	for row := 0; row < b.Size; row++ {
		cells := make([]string, b.Size)
		for col := 0; col < b.Size; col++ {
			cells[col] = b.Cells[row*b.Size+col].String()
		}
		sb.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
	return sb.String()
}

// ParseBoard builds a board from rows of 'X', 'O' and '.' (or ' ').
// It is mostly useful for setting up positions.
func ParseBoard(rows ...string) (*Board, error) {
	b, err := NewBoard(len(rows))
	if err != nil {
		return nil, err
	}
	for r, line := range rows {
		if len(line) != b.Size {
			return nil, fmt.Errorf("row %d has %d cells, want %d: %w", r, len(line), b.Size, ErrInvalidBoardSize)
		}
		for c, ch := range line {
			switch ch {
			case 'X', 'x':
				b.Cells[r*b.Size+c] = MarkX
			case 'O', 'o':
				b.Cells[r*b.Size+c] = MarkO
			case '.', ' ':
			default:
				return nil, fmt.Errorf("row %d col %d: %w: %q", r, c, ErrInvalidMark, ch)
			}
		}
	}
	return b, nil
}

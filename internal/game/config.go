package game

const (
	DefaultBoardSize = 4
	DefaultMaxDepth  = 4
)

// Config holds the fixed parameters of a game and its search. It is passed
// by value and never mutated after construction.
type Config struct {
	BoardSize int
	MaxDepth  int
	// Computer is the mark whose wins score positive in the search.
	Computer Mark
}

// DefaultConfig returns a 4x4 board searched 4 plies deep with X as the computer
func DefaultConfig() Config {
	return Config{
		BoardSize: DefaultBoardSize,
		MaxDepth:  DefaultMaxDepth,
		Computer:  MarkX,
	}
}

// Human returns the mark opposing the computer
func (c Config) Human() Mark {
	return c.Computer.Opponent()
}

// Validate checks the configuration
func (c Config) Validate() error {
	if c.BoardSize < 3 {
		return ErrInvalidBoardSize
	}
	if c.MaxDepth < 1 {
		return ErrInvalidDepth
	}
	if !c.Computer.IsPlayer() {
		return ErrInvalidMark
	}
	return nil
}

// NewBoard creates an empty board sized by the configuration
func (c Config) NewBoard() (*Board, error) {
	return NewBoard(c.BoardSize)
}

// Package console is the terminal front end: a mode menu, keyboard moves
// and a coloured board.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/muesli/termenv"

	"tictactoe4/internal/engine"
	"tictactoe4/internal/game"
	"tictactoe4/internal/match"
)

var ErrInputClosed = errors.New("input closed")

// Console reads moves from in and writes everything to out
type Console struct {
	in     *bufio.Scanner
	out    *termenv.Output
	engine *engine.Engine
	cfg    game.Config
}

// New creates a console. Colours are used only when out is a terminal.
func New(in io.Reader, out io.Writer, eng *engine.Engine, opts ...termenv.OutputOption) *Console {
	return &Console{
		in:     bufio.NewScanner(in),
		out:    termenv.NewOutput(out, opts...),
		engine: eng,
		cfg:    eng.Config(),
	}
}

// Run shows the menu and plays one game in the chosen mode
func (c *Console) Run(ctx context.Context) (match.Result, error) {
	mode, err := c.SelectMode()
	if err != nil {
		return match.Result{}, err
	}
	return c.Play(ctx, mode)
}

// SelectMode prompts until a valid mode number is entered
func (c *Console) SelectMode() (game.Mode, error) {
	c.println("Select a game mode:")
	c.println("1. Human vs Human")
	c.println("2. Human vs Computer")
	c.println("3. Computer vs Computer")
	for {
		c.printf("Enter the mode number: ")
		line, err := c.readLine()
		if err != nil {
			return game.ModeHumanVsHuman, err
		}
		n, err := strconv.Atoi(strings.TrimSpace(line))
		if err == nil && n >= 1 && n <= 3 {
			return game.Mode(n - 1), nil
		}
		c.println("Invalid mode. Enter 1, 2 or 3.")
	}
}

// Play runs a full game in mode and announces the outcome
func (c *Console) Play(ctx context.Context, mode game.Mode) (match.Result, error) {
	b, err := c.cfg.NewBoard()
	if err != nil {
		return match.Result{}, err
	}

	var players match.Players
	switch mode {
	case game.ModeHumanVsHuman:
		players = match.Players{X: c.human(), O: c.human()}
	case game.ModeHumanVsComputer:
		if c.cfg.Computer == game.MarkX {
			players = match.Players{X: c.computer(), O: c.human()}
		} else {
			players = match.Players{X: c.human(), O: c.computer()}
		}
	case game.ModeComputerVsComputer:
		players = match.Players{X: c.computer(), O: c.computer()}
	default:
		return match.Result{}, game.ErrInvalidMode
	}

	c.RenderBoard(b)
	res, err := match.Run(ctx, b, game.FirstMover, players, func(e match.Event) {
		c.RenderBoard(e.Board)
	})
	if err != nil {
		return res, err
	}
	c.Announce(res.Status)
	return res, nil
}

// RenderBoard prints the board, one "| X | O |   |" line per row
func (c *Console) RenderBoard(b *game.Board) {
	var sb strings.Builder
	for row := 0; row < b.Size; row++ {
		cells := make([]string, b.Size)
		for col := 0; col < b.Size; col++ {
			mark, _ := b.Get(row, col)
			cells[col] = c.styled(mark)
		}
		sb.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
	sb.WriteString("\n")
	c.printf("%s", sb.String())
}

func (c *Console) styled(mark game.Mark) string {
	switch mark {
	case game.MarkX:
		return c.out.String(mark.String()).Foreground(c.out.Color("1")).Bold().String()
	case game.MarkO:
		return c.out.String(mark.String()).Foreground(c.out.Color("4")).Bold().String()
	default:
		return mark.String()
	}
}

// Announce prints the end of game message for status
func (c *Console) Announce(status game.Status) {
	switch status {
	case game.StatusOWon:
		c.println("Player O wins!")
	case game.StatusXWon:
		c.println("Player X wins!")
	case game.StatusDraw:
		c.println("Draw!")
	default:
		c.println("Game is still in progress.")
	}
}

func (c *Console) human() match.Mover {
	return match.MoverFunc(func(ctx context.Context, b *game.Board, side game.Mark) (game.Move, error) {
		for {
			c.printf("Player %s, enter your move (row and column 1-%d separated by a space): ", side, b.Size)
			line, err := c.readLine()
			if err != nil {
				return game.Move{}, err
			}
			m, err := parseMove(line)
			if err != nil {
				c.println("Invalid input. Enter two numbers separated by a space.")
				continue
			}
			if mark, err := b.Get(m.Row, m.Col); err != nil || mark != game.MarkEmpty {
				c.println("Invalid move. Try again.")
				continue
			}
			return m, nil
		}
	})
}

func (c *Console) computer() match.Mover {
	cm := &match.ComputerMover{Engine: c.engine}
	return match.MoverFunc(func(ctx context.Context, b *game.Board, side game.Mark) (game.Move, error) {
		c.printf("Computer (%s) is thinking...\n", side)
		m, err := cm.NextMove(ctx, b, side)
		if errors.Is(err, engine.ErrNoLegalMove) {
			c.printf("No move found for computer (%s).\n", side)
		}
		if err != nil {
			return game.Move{}, err
		}
		c.printf("Computer (%s) plays at: %d, %d\n", side, m.Row+1, m.Col+1)
		return m, nil
	})
}

// parseMove reads a 1-based "row col" pair into a 0-based move. Bounds are
// checked by the caller against the board.
func parseMove(line string) (game.Move, error) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return game.Move{}, fmt.Errorf("want 2 numbers, got %d fields", len(fields))
	}
	row, err := strconv.Atoi(fields[0])
	if err != nil {
		return game.Move{}, err
	}
	col, err := strconv.Atoi(fields[1])
	if err != nil {
		return game.Move{}, err
	}
	return game.Move{Row: row - 1, Col: col - 1}, nil
}

func (c *Console) readLine() (string, error) {
	if !c.in.Scan() {
		if err := c.in.Err(); err != nil {
			return "", err
		}
		return "", ErrInputClosed
	}
	return c.in.Text(), nil
}

func (c *Console) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

func (c *Console) println(s string) {
	fmt.Fprintln(c.out, s)
}

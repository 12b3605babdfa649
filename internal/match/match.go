// Package match runs the outer game loop: it asks each side for a move,
// applies it, and stops as soon as the board has a verdict.
package match

import (
	"context"
	"errors"
	"fmt"

	"tictactoe4/internal/engine"
	"tictactoe4/internal/game"
)

var ErrNoMover = errors.New("no mover for side")

// Mover produces the next move for side. The board it receives is a copy
// and may be modified freely.
type Mover interface {
	NextMove(ctx context.Context, b *game.Board, side game.Mark) (game.Move, error)
}

// MoverFunc adapts a function to the Mover interface
type MoverFunc func(ctx context.Context, b *game.Board, side game.Mark) (game.Move, error)

func (f MoverFunc) NextMove(ctx context.Context, b *game.Board, side game.Mark) (game.Move, error) {
	return f(ctx, b, side)
}

// ComputerMover asks the engine for a move and keeps the last decision
type ComputerMover struct {
	Engine   *engine.Engine
	Parallel bool

	Last  engine.Decision
	Nodes int
}

func (c *ComputerMover) NextMove(ctx context.Context, b *game.Board, side game.Mark) (game.Move, error) {
	var (
		d   engine.Decision
		err error
	)
	if c.Parallel {
		d, err = c.Engine.ChooseMoveParallel(ctx, b, side)
	} else {
		d, err = c.Engine.ChooseMove(b, side)
	}
	if err != nil {
		return game.Move{}, err
	}
	c.Last = d
	c.Nodes += d.Nodes
	return d.Move, nil
}

// Players maps each mark to whoever controls it
type Players struct {
	X Mover
	O Mover
}

func (p Players) For(side game.Mark) Mover {
	switch side {
	case game.MarkX:
		return p.X
	case game.MarkO:
		return p.O
	default:
		return nil
	}
}

// Event describes one applied move
type Event struct {
	Ply   int
	Side  game.Mark
	Move  game.Move
	Board *game.Board
}

// Result is the verdict of a finished game
type Result struct {
	Status game.Status
	Plies  int
}

// Run plays on b, starting with first, until someone wins or the board is
// full. observe, if not nil, sees every move after it is applied.
func Run(ctx context.Context, b *game.Board, first game.Mark, players Players, observe func(Event)) (Result, error) {
	side := first
	plies := 0
	for {
		if status := b.Outcome(); status.IsFinished() {
			return Result{Status: status, Plies: plies}, nil
		}
		if err := ctx.Err(); err != nil {
			return Result{Status: game.StatusInProgress, Plies: plies}, err
		}

		mover := players.For(side)
		if mover == nil {
			return Result{Status: game.StatusInProgress, Plies: plies}, fmt.Errorf("%w %s", ErrNoMover, side)
		}
		m, err := mover.NextMove(ctx, b.Clone(), side)
		if err != nil {
			return Result{Status: game.StatusInProgress, Plies: plies}, fmt.Errorf("move for %s: %w", side, err)
		}
		if err := b.Set(m.Row, m.Col, side); err != nil {
			return Result{Status: game.StatusInProgress, Plies: plies}, fmt.Errorf("%s played %s: %w", side, m, err)
		}
		plies++

		if observe != nil {
			observe(Event{Ply: plies, Side: side, Move: m, Board: b.Clone()})
		}
		side = side.Opponent()
	}
}

package engine

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"tictactoe4/internal/game"
)

// ChooseMoveParallel returns the same decision as ChooseMove but searches the
// root moves concurrently. Every worker gets its own copy of the board, so b
// itself is never written. Cancelling ctx stops root moves that have not
// started yet.
func (e *Engine) ChooseMoveParallel(ctx context.Context, b *game.Board, side game.Mark) (Decision, error) {
	if !side.IsPlayer() {
		return Decision{}, ErrInvalidSide
	}
	start := time.Now()

	cells := b.EmptyCells()
	candidates := make([]Candidate, len(cells))
	nodes := make([]int, len(cells))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, m := range cells {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			board := b.Clone()
			board.Place(m, side)
			s := e.newSearcher(board)
			score := s.search(0, -Infinity, Infinity, e.rootMaximizing(side), side.Opponent())

			candidates[i] = Candidate{Move: m, Score: score}
			nodes[i] = s.nodes
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Decision{}, err
	}

	total := 0
	for i, c := range candidates {
		total += nodes[i]
		e.logger.Debug().
			Stringer("side", side).
			Stringer("move", c.Move).
			Int("score", c.Score).
			Msg("candidate evaluated")
	}
	return e.decide(side, candidates, total, start)
}

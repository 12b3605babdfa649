// Package engine picks moves with a depth-limited minimax search with
// alpha-beta pruning.
//
// Scores are relative to the configured computer mark: a computer win found
// d plies below the root scores WinScore-d, a loss scores d-WinScore, and any
// other position that is full or at the depth cap scores 0. The cap makes the
// result a heuristic, not the game-theoretic value of the position.
package engine

import (
	"errors"
	"runtime"
	"time"

	"github.com/rs/zerolog"

	"tictactoe4/internal/game"
)

const (
	// WinScore is the score of a win at the search root.
	WinScore = 10
	// Infinity bounds every reachable score.
	Infinity = 1000000
)

var (
	ErrNoLegalMove = errors.New("no legal move: board is full")
	ErrInvalidSide = errors.New("side to move must be X or O")
)

// Candidate is the score of one root move.
type Candidate struct {
	Move  game.Move
	Score int
}

// Decision is the outcome of a move selection.
type Decision struct {
	Move       game.Move
	Score      int
	Nodes      int
	Candidates []Candidate
	Elapsed    time.Duration
}

// Engine runs searches for a fixed configuration. It keeps no state between
// calls and is safe for concurrent use as long as callers do not share a board.
type Engine struct {
	cfg            game.Config
	logger         zerolog.Logger
	disablePruning bool
	workers        int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for per-candidate and per-decision events.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithoutPruning makes every search exhaustive up to the depth cap.
func WithoutPruning() Option {
	return func(e *Engine) { e.disablePruning = true }
}

// WithWorkers bounds how many root moves ChooseMoveParallel searches at once.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// New creates an engine. The config must be valid.
func New(cfg game.Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:     cfg,
		logger:  zerolog.Nop(),
		workers: runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Config returns the configuration the engine was built with.
func (e *Engine) Config() game.Config {
	return e.cfg
}

// Evaluate scores b as seen depth plies below the root. The second result is
// false when the position is neither terminal nor at the depth cap, in which
// case the search has to go deeper.
func (e *Engine) Evaluate(b *game.Board, depth int) (int, bool) {
	switch {
	case b.HasWon(e.cfg.Computer):
		return WinScore - depth, true
	case b.HasWon(e.cfg.Human()):
		return depth - WinScore, true
	case b.IsFull() || depth >= e.cfg.MaxDepth:
		return 0, true
	default:
		return 0, false
	}
}

// Search scores b with side to move. b is modified during the call and
// restored before it returns.
func (e *Engine) Search(b *game.Board, depth, alpha, beta int, maximizing bool, side game.Mark) int {
	s := e.newSearcher(b)
	return s.search(depth, alpha, beta, maximizing, side)
}

type searcher struct {
	e     *Engine
	board *game.Board
	nodes int
}

func (e *Engine) newSearcher(b *game.Board) *searcher {
	return &searcher{e: e, board: b}
}

func (s *searcher) search(depth, alpha, beta int, maximizing bool, side game.Mark) int {
	s.nodes++
	if score, ok := s.e.Evaluate(s.board, depth); ok {
		return score
	}

	if maximizing {
		best := -Infinity
		for _, m := range s.board.EmptyCells() {
			s.board.Place(m, side)
			score := s.search(depth+1, alpha, beta, false, side.Opponent())
			s.board.Clear(m)

			best = max(best, score)
			alpha = max(alpha, score)
			if beta <= alpha && !s.e.disablePruning {
				break
			}
		}
		return best
	}

	best := Infinity
	for _, m := range s.board.EmptyCells() {
		s.board.Place(m, side)
		score := s.search(depth+1, alpha, beta, true, side.Opponent())
		s.board.Clear(m)

		best = min(best, score)
		beta = min(beta, score)
		if beta <= alpha && !s.e.disablePruning {
			break
		}
	}
	return best
}

// rootMaximizing reports whether the replies below a root move of side are
// searched as maximizing nodes.
func (e *Engine) rootMaximizing(side game.Mark) bool {
	return side == e.cfg.Computer
}

// improves reports whether score beats best for side; ties keep the earlier move.
func (e *Engine) improves(side game.Mark, score, best int) bool {
	if side == e.cfg.Computer {
		return score > best
	}
	return score < best
}

func (e *Engine) worstScore(side game.Mark) int {
	if side == e.cfg.Computer {
		return -Infinity
	}
	return Infinity
}

// ChooseMove tries every empty cell in row-major order and returns the one
// with the best score for side: the highest when side is the computer, the
// lowest otherwise. b is restored before it returns.
func (e *Engine) ChooseMove(b *game.Board, side game.Mark) (Decision, error) {
	if !side.IsPlayer() {
		return Decision{}, ErrInvalidSide
	}
	start := time.Now()

	s := e.newSearcher(b)
	cells := b.EmptyCells()
	candidates := make([]Candidate, 0, len(cells))
	for _, m := range cells {
		b.Place(m, side)
		score := s.search(0, -Infinity, Infinity, e.rootMaximizing(side), side.Opponent())
		b.Clear(m)

		e.logger.Debug().
			Stringer("side", side).
			Stringer("move", m).
			Int("score", score).
			Msg("candidate evaluated")
		candidates = append(candidates, Candidate{Move: m, Score: score})
	}

	return e.decide(side, candidates, s.nodes, start)
}

func (e *Engine) decide(side game.Mark, candidates []Candidate, nodes int, start time.Time) (Decision, error) {
	if len(candidates) == 0 {
		e.logger.Warn().Stringer("side", side).Msg("no move available")
		return Decision{}, ErrNoLegalMove
	}

	best := Candidate{Score: e.worstScore(side)}
	for _, c := range candidates {
		if e.improves(side, c.Score, best.Score) {
			best = c
		}
	}

	d := Decision{
		Move:       best.Move,
		Score:      best.Score,
		Nodes:      nodes,
		Candidates: candidates,
		Elapsed:    time.Since(start),
	}
	e.logger.Debug().
		Stringer("side", side).
		Stringer("move", d.Move).
		Int("score", d.Score).
		Int("nodes", d.Nodes).
		Dur("elapsed", d.Elapsed).
		Msg("move chosen")
	return d, nil
}

// Package analysis plays the engine against itself from every opening move
// and summarises how the games went.
package analysis

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"tictactoe4/internal/engine"
	"tictactoe4/internal/game"
	"tictactoe4/internal/match"
)

// Game is one self-play game that opened on Opening
type Game struct {
	Opening game.Move
	Status  game.Status
	Plies   int
	Nodes   int
	Moves   []game.Move
}

// Report summarises a self-play run
type Report struct {
	Config game.Config
	Games  []Game

	XWins int
	OWins int
	Draws int

	MeanPlies   float64
	StdDevPlies float64
	MeanNodes   float64
	StdDevNodes float64
}

// Analyzer runs self-play games with one engine
type Analyzer struct {
	engine  *engine.Engine
	workers int
	logger  zerolog.Logger
}

func New(eng *engine.Engine, workers int, logger zerolog.Logger) *Analyzer {
	return &Analyzer{engine: eng, workers: max(workers, 1), logger: logger}
}

// Run plays one game per empty cell: the first mover opens there, then the
// engine plays both sides. Games run concurrently on up to workers
// goroutines; the report lists them in row-major opening order.
func (a *Analyzer) Run(ctx context.Context) (Report, error) {
	cfg := a.engine.Config()
	empty, err := cfg.NewBoard()
	if err != nil {
		return Report{}, err
	}

	openings := empty.EmptyCells()
	games := make([]Game, len(openings))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for i, opening := range openings {
		g.Go(func() error {
			played, err := a.playFrom(gctx, opening)
			if err != nil {
				return fmt.Errorf("opening %s: %w", opening, err)
			}
			games[i] = played
			a.logger.Debug().
				Stringer("opening", opening).
				Stringer("status", played.Status).
				Int("plies", played.Plies).
				Int("nodes", played.Nodes).
				Msg("self-play game finished")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	return summarise(cfg, games), nil
}

func (a *Analyzer) playFrom(ctx context.Context, opening game.Move) (Game, error) {
	b, err := a.engine.Config().NewBoard()
	if err != nil {
		return Game{}, err
	}
	first := game.FirstMover
	if err := b.Set(opening.Row, opening.Col, first); err != nil {
		return Game{}, err
	}

	x := &match.ComputerMover{Engine: a.engine}
	o := &match.ComputerMover{Engine: a.engine}
	played := Game{Opening: opening, Moves: []game.Move{opening}}

	result, err := match.Run(ctx, b, first.Opponent(), match.Players{X: x, O: o}, func(ev match.Event) {
		played.Moves = append(played.Moves, ev.Move)
	})
	if err != nil {
		return Game{}, err
	}

	played.Status = result.Status
	played.Plies = result.Plies + 1
	played.Nodes = x.Nodes + o.Nodes
	return played, nil
}

func summarise(cfg game.Config, games []Game) Report {
	r := Report{Config: cfg, Games: games}

	plies := make([]float64, len(games))
	nodes := make([]float64, len(games))
	for i, g := range games {
		switch g.Status {
		case game.StatusXWon:
			r.XWins++
		case game.StatusOWon:
			r.OWins++
		case game.StatusDraw:
			r.Draws++
		}
		plies[i] = float64(g.Plies)
		nodes[i] = float64(g.Nodes)
	}

	if len(games) > 0 {
		r.MeanPlies, r.StdDevPlies = stat.MeanStdDev(plies, nil)
		r.MeanNodes, r.StdDevNodes = stat.MeanStdDev(nodes, nil)
	}
	return r
}

// Write prints the report as a table followed by the summary
func (r Report) Write(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "Self-play on %dx%d, depth %d, computer %s\n\n",
		r.Config.BoardSize, r.Config.BoardSize, r.Config.MaxDepth, r.Config.Computer); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "%-10s %-12s %6s %10s\n", "opening", "result", "plies", "nodes"); err != nil {
		return err
	}
	for _, g := range r.Games {
		if _, err := fmt.Fprintf(w, "%-10s %-12s %6d %10d\n", g.Opening, g.Status, g.Plies, g.Nodes); err != nil {
			return err
		}
	}

	total := len(r.Games)
	_, err := fmt.Fprintf(w, "\nX wins: %d  O wins: %d  draws: %d  (of %d)\n"+
		"plies: mean %.2f, stddev %.2f\n"+
		"nodes: mean %.0f, stddev %.0f\n",
		r.XWins, r.OWins, r.Draws, total,
		r.MeanPlies, r.StdDevPlies,
		r.MeanNodes, r.StdDevNodes)
	return err
}

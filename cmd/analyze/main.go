package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/rs/zerolog/log"

	"tictactoe4/internal/analysis"
	"tictactoe4/internal/engine"
	"tictactoe4/internal/game"
	"tictactoe4/internal/logging"
)

func main() {
	size := flag.Int("size", game.DefaultBoardSize, "Board size (rows and columns)")
	depth := flag.Int("depth", game.DefaultMaxDepth, "Search depth cap in plies")
	workers := flag.Int("workers", runtime.NumCPU(), "Games played concurrently")
	logLevel := flag.String("log-level", "info", "Log level")
	flag.Parse()

	logger, err := logging.Setup(os.Stderr, *logLevel)
	if err != nil {
		logging.Fatal(err, "invalid log level")
	}

	cfg := game.Config{BoardSize: *size, MaxDepth: *depth, Computer: game.MarkX}
	eng, err := engine.New(cfg)
	if err != nil {
		logging.Fatal(err, "invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Int("size", cfg.BoardSize).Int("depth", cfg.MaxDepth).Int("workers", *workers).Msg("starting self-play")
	report, err := analysis.New(eng, *workers, logger).Run(ctx)
	if err != nil {
		logging.Fatal(err, "self-play failed")
	}
	if err := report.Write(os.Stdout); err != nil {
		logging.Fatal(err, "write report")
	}
}

package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"tictactoe4/internal/console"
	"tictactoe4/internal/engine"
	"tictactoe4/internal/game"
	"tictactoe4/internal/logging"
)

func main() {
	size := flag.Int("size", game.DefaultBoardSize, "Board size (rows and columns)")
	depth := flag.Int("depth", game.DefaultMaxDepth, "Search depth cap in plies")
	mode := flag.String("mode", "", "HUMAN_VS_HUMAN, HUMAN_VS_COMPUTER or COMPUTER_VS_COMPUTER (asks when empty)")
	logLevel := flag.String("log-level", "warn", "Log level (debug shows every candidate score)")
	flag.Parse()

	logger, err := logging.Setup(os.Stderr, *logLevel)
	if err != nil {
		logging.Fatal(err, "invalid log level")
	}

	cfg := game.Config{BoardSize: *size, MaxDepth: *depth, Computer: game.MarkX}
	eng, err := engine.New(cfg, engine.WithLogger(logger))
	if err != nil {
		logging.Fatal(err, "invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := console.New(os.Stdin, os.Stdout, eng)
	if *mode == "" {
		_, err = c.Run(ctx)
	} else {
		var m game.Mode
		if m, err = game.ParseMode(*mode); err != nil {
			logging.Fatal(err, "invalid mode")
		}
		_, err = c.Play(ctx, m)
	}
	if err != nil && !errors.Is(err, console.ErrInputClosed) && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("game aborted")
		os.Exit(1)
	}
}

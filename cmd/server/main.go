package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"

	"tictactoe4/internal/engine"
	"tictactoe4/internal/game"
	"tictactoe4/internal/logging"
	"tictactoe4/internal/server"
	"tictactoe4/internal/store"
)

func main() {
	// Parse command line flags
	grpcPort := flag.Int("grpc-port", 50051, "The gRPC server port")
	httpPort := flag.Int("http-port", 8080, "The HTTP/REST server port")
	shards := flag.Int("shards", store.DefaultShards, "Number of shards for data stores (higher = better concurrency)")
	size := flag.Int("size", game.DefaultBoardSize, "Board size (rows and columns)")
	depth := flag.Int("depth", game.DefaultMaxDepth, "Search depth cap in plies")
	workers := flag.Int("workers", runtime.NumCPU(), "Root moves searched concurrently per computer turn")
	logLevel := flag.String("log-level", "info", "Log level")
	flag.Parse()

	logger, err := logging.Setup(os.Stderr, *logLevel)
	if err != nil {
		logging.Fatal(err, "invalid log level")
	}

	cfg := game.Config{BoardSize: *size, MaxDepth: *depth, Computer: game.MarkX}
	eng, err := engine.New(cfg, engine.WithWorkers(*workers), engine.WithLogger(logger.With().Str("component", "engine").Logger()))
	if err != nil {
		logging.Fatal(err, "invalid configuration")
	}

	// Create stores
	gameStore := store.NewGameStore(*shards)
	statsStore := store.NewStatsStore(*shards)
	gameServer := server.NewGameServer(gameStore, statsStore, eng, logger.With().Str("component", "server").Logger())

	// Start gRPC server
	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(server.UnaryLogger(logger)),
		grpc.StreamInterceptor(server.StreamLogger(logger)),
	)
	server.RegisterGameService(grpcServer, gameServer)

	grpcAddr := fmt.Sprintf(":%d", *grpcPort)
	grpcListener, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		logging.Fatal(err, "failed to listen on "+grpcAddr)
	}

	go func() {
		log.Info().Str("addr", grpcAddr).Msg("gRPC server listening")
		if err := grpcServer.Serve(grpcListener); err != nil {
			logging.Fatal(err, "failed to serve gRPC")
		}
	}()

	// REST gateway calls the service in-process
	gateway, err := server.NewGateway(gameServer)
	if err != nil {
		logging.Fatal(err, "failed to create gateway")
	}

	httpAddr := fmt.Sprintf(":%d", *httpPort)
	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           server.NewRouter(gameServer, gateway, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", httpAddr).Msg("HTTP/REST server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal(err, "failed to serve HTTP")
		}
	}()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutting down servers")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("HTTP shutdown")
	}
	grpcServer.GracefulStop()
	log.Info().Int("games", gameStore.Count()).Msg("servers stopped")
}

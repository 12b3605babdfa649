package server

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/genproto/googleapis/api/httpbody"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"tictactoe4/internal/engine"
	"tictactoe4/internal/game"
	"tictactoe4/internal/store"
)

const (
	DefaultMode      = game.ModeHumanVsComputer
	DefaultListLimit = 50
	MaxListLimit     = 100
)

// GameServer implements GameService on top of the stores and the engine
type GameServer struct {
	gameStore  *store.GameStore
	statsStore *store.StatsStore
	engine     *engine.Engine
	hub        *Hub
	logger     zerolog.Logger
}

// NewGameServer creates a server. Board size and search depth come from the
// engine's configuration.
func NewGameServer(gameStore *store.GameStore, statsStore *store.StatsStore, eng *engine.Engine, logger zerolog.Logger) *GameServer {
	return &GameServer{
		gameStore:  gameStore,
		statsStore: statsStore,
		engine:     eng,
		hub:        NewHub(),
		logger:     logger,
	}
}

// CreateGame starts a game. Computer turns are played before it returns, so
// a COMPUTER_VS_COMPUTER game comes back finished.
func (s *GameServer) CreateGame(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := requireUser(req)
	if err != nil {
		return nil, err
	}

	mode := DefaultMode
	if name := stringField(req, "mode"); name != "" {
		if mode, err = game.ParseMode(name); err != nil {
			return nil, toStatus(err)
		}
	}

	g, err := game.NewGame(uuid.New().String(), userID, mode, s.engine.Config().BoardSize)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to create game: %v", err)
	}
	if err := s.gameStore.Create(g); err != nil {
		return nil, status.Errorf(codes.Internal, "failed to store game: %v", err)
	}
	s.logger.Info().Str("game_id", g.ID).Str("user_id", userID).Stringer("mode", mode).Msg("game created")

	// the game must not be left waiting on the engine if the caller goes away
	if err := s.playComputerTurns(context.WithoutCancel(ctx), g); err != nil {
		return nil, toStatus(err)
	}
	return gameResponse(g.GetSnapshot())
}

// JoinGame takes the X seat of a pending HUMAN_VS_HUMAN game
func (s *GameServer) JoinGame(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := requireUser(req)
	if err != nil {
		return nil, err
	}
	g, err := s.lookup(req)
	if err != nil {
		return nil, err
	}

	if err := g.Join(userID); err != nil {
		return nil, toStatus(err)
	}

	snapshot := g.GetSnapshot()
	s.hub.Broadcast(snapshot.ID, Update{Snapshot: snapshot, Message: "Game started! " + updateMessage(snapshot)})
	return gameResponse(snapshot)
}

// MakeMove applies a human move, then any computer replies
func (s *GameServer) MakeMove(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := requireUser(req)
	if err != nil {
		return nil, err
	}
	row, err := requireInt(req, "row")
	if err != nil {
		return nil, err
	}
	col, err := requireInt(req, "col")
	if err != nil {
		return nil, err
	}
	g, err := s.lookup(req)
	if err != nil {
		return nil, err
	}

	res, err := g.ApplyMove(userID, row, col)
	if err != nil {
		return nil, toStatus(err)
	}
	s.afterMove(res)

	// once the human move is committed the reply has to be played too
	if err := s.playComputerTurns(context.WithoutCancel(ctx), g); err != nil {
		return nil, toStatus(err)
	}
	return gameResponse(g.GetSnapshot())
}

// GetGame returns the current state of a game
func (s *GameServer) GetGame(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	g, err := s.lookup(req)
	if err != nil {
		return nil, err
	}
	return gameResponse(g.GetSnapshot())
}

// ListGames pages through games, optionally filtered by status
func (s *GameServer) ListGames(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	filter := store.ListFilter{Limit: DefaultListLimit}

	if name := stringField(req, "status"); name != "" {
		st, err := game.ParseStatus(name)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		filter.Status = &st
	}
	limit, ok, err := intField(req, "limit")
	if err != nil {
		return nil, err
	}
	if ok && limit > 0 {
		filter.Limit = min(limit, MaxListLimit)
	}
	offset, _, err := intField(req, "offset")
	if err != nil {
		return nil, err
	}
	filter.Offset = max(offset, 0)

	snapshots, total := s.gameStore.List(filter)
	games := make([]any, len(snapshots))
	for i, snap := range snapshots {
		games[i] = gameFields(snap)
	}
	return newStruct(map[string]any{
		"games":       games,
		"total_count": total,
	})
}

// SuggestMove runs the engine for the side to move without playing it
func (s *GameServer) SuggestMove(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	g, err := s.lookup(req)
	if err != nil {
		return nil, err
	}
	snapshot := g.GetSnapshot()
	if snapshot.Status != game.StatusInProgress {
		return nil, toStatus(game.ErrGameNotInProgress)
	}

	d, err := s.engine.ChooseMoveParallel(ctx, snapshot.Board, snapshot.Turn)
	if err != nil {
		return nil, toStatus(err)
	}
	return newStruct(map[string]any{
		"game_id": snapshot.ID,
		"side":    markToWire(snapshot.Turn),
		"row":     d.Move.Row,
		"col":     d.Move.Col,
		"score":   d.Score,
		"nodes":   d.Nodes,
	})
}

// GetGameBoard renders the board as plain text
func (s *GameServer) GetGameBoard(ctx context.Context, req *structpb.Struct) (*httpbody.HttpBody, error) {
	g, err := s.lookup(req)
	if err != nil {
		return nil, err
	}
	return &httpbody.HttpBody{
		ContentType: "text/plain; charset=utf-8",
		Data:        []byte(renderBoard(g.GetSnapshot())),
	}, nil
}

// GetUserStats returns win/loss/draw counts for a player
func (s *GameServer) GetUserStats(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := requireString(req, "user_id")
	if err != nil {
		return nil, err
	}
	stats := s.statsStore.Get(userID)
	return newStruct(map[string]any{
		"user_id":     stats.UserID,
		"wins":        stats.Wins,
		"losses":      stats.Losses,
		"draws":       stats.Draws,
		"total_games": stats.TotalGames(),
	})
}

// StreamGameUpdates sends the current state, then every update, until the
// game finishes or the client goes away
func (s *GameServer) StreamGameUpdates(req *structpb.Struct, stream grpc.ServerStream) error {
	gameID, err := requireString(req, "game_id")
	if err != nil {
		return err
	}
	return s.streamUpdates(stream.Context(), gameID, func(u Update) error {
		msg, err := newStruct(updateFields(u))
		if err != nil {
			return err
		}
		return stream.SendMsg(msg)
	})
}

func (s *GameServer) streamUpdates(ctx context.Context, gameID string, send func(Update) error) error {
	g, err := s.gameStore.Get(gameID)
	if err != nil {
		return toStatus(err)
	}

	updates, unsubscribe := s.hub.Subscribe(gameID)
	defer unsubscribe()

	snapshot := g.GetSnapshot()
	if err := send(Update{Snapshot: snapshot, Message: "Connected to game"}); err != nil {
		return err
	}
	if snapshot.Status.IsFinished() {
		return nil
	}

	last := snapshot.Plies
	for {
		select {
		case u, ok := <-updates:
			if !ok {
				return nil
			}
			// updates from concurrent requests can arrive out of order
			if u.Snapshot.Plies < last {
				continue
			}
			last = u.Snapshot.Plies
			if err := send(u); err != nil {
				return err
			}
			if u.Snapshot.Status.IsFinished() {
				return nil
			}
		case <-ctx.Done():
			return toStatus(ctx.Err())
		}
	}
}

func (s *GameServer) lookup(req *structpb.Struct) (*game.Game, error) {
	gameID, err := requireString(req, "game_id")
	if err != nil {
		return nil, err
	}
	g, err := s.gameStore.Get(gameID)
	if err != nil {
		return nil, toStatus(err)
	}
	return g, nil
}

// playComputerTurns lets the engine move for as long as it owns the turn
func (s *GameServer) playComputerTurns(ctx context.Context, g *game.Game) error {
	for g.ComputerToMove() {
		snapshot := g.GetSnapshot()
		d, err := s.engine.ChooseMoveParallel(ctx, snapshot.Board, snapshot.Turn)
		if err != nil {
			return err
		}

		res, err := g.ApplyMove(game.ComputerPlayerID, d.Move.Row, d.Move.Col)
		if errors.Is(err, game.ErrNotYourTurn) || errors.Is(err, game.ErrGameNotInProgress) {
			// a concurrent request already moved for the computer
			return nil
		}
		if err != nil {
			return err
		}

		s.logger.Debug().
			Str("game_id", snapshot.ID).
			Stringer("side", snapshot.Turn).
			Stringer("move", d.Move).
			Int("score", d.Score).
			Int("nodes", d.Nodes).
			Msg("computer moved")
		s.afterMove(res)
	}
	return nil
}

// afterMove records the game once, on the move that finished it, and
// notifies subscribers
func (s *GameServer) afterMove(res game.MoveResult) {
	snapshot := res.Snapshot
	if res.Finished {
		s.statsStore.RecordOutcome(snapshot)
		s.logger.Info().Str("game_id", snapshot.ID).Stringer("status", snapshot.Status).Int("plies", snapshot.Plies).Msg("game finished")
	}
	s.hub.Broadcast(snapshot.ID, Update{Snapshot: snapshot, Message: updateMessage(snapshot)})
}

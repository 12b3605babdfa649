package server

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"tictactoe4/internal/engine"
	"tictactoe4/internal/game"
	"tictactoe4/internal/store"
)

// gameFields converts a snapshot into the wire representation of a game
func gameFields(s game.GameSnapshot) map[string]any {
	board := make([]any, len(s.Board.Cells))
	for i, cell := range s.Board.Cells {
		board[i] = markToWire(cell)
	}

	turn := ""
	if s.Status == game.StatusInProgress {
		turn = markToWire(s.Turn)
	}

	var lastMove any
	if s.LastMove != nil {
		lastMove = map[string]any{"row": s.LastMove.Row, "col": s.LastMove.Col}
	}

	return map[string]any{
		"game_id":      s.ID,
		"mode":         s.Mode.String(),
		"created_by":   s.CreatedBy,
		"player_x_id":  s.PlayerX,
		"player_o_id":  s.PlayerO,
		"board_size":   s.Board.Size,
		"board":        board,
		"current_turn": turn,
		"status":       s.Status.String(),
		"plies":        s.Plies,
		"last_move":    lastMove,
		"created_at":   s.CreatedAt.UTC().Format(time.RFC3339Nano),
		"updated_at":   s.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func markToWire(m game.Mark) string {
	switch m {
	case game.MarkX:
		return "X"
	case game.MarkO:
		return "O"
	default:
		return ""
	}
}

func updateFields(u Update) map[string]any {
	return map[string]any{
		"game":    gameFields(u.Snapshot),
		"message": u.Message,
	}
}

func newStruct(fields map[string]any) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return s, nil
}

func gameResponse(s game.GameSnapshot) (*structpb.Struct, error) {
	return newStruct(map[string]any{"game": gameFields(s)})
}

// stringField returns a string field, or "" if it is missing
func stringField(req *structpb.Struct, key string) string {
	return strings.TrimSpace(req.GetFields()[key].GetStringValue())
}

// intField reads an integer sent either as a JSON number or, from query
// strings and paths, as a decimal string. ok is false when the key is absent.
func intField(req *structpb.Struct, key string) (n int, ok bool, err error) {
	v, present := req.GetFields()[key]
	if !present {
		return 0, false, nil
	}
	switch kind := v.GetKind().(type) {
	case *structpb.Value_NumberValue:
		f := kind.NumberValue
		if f != math.Trunc(f) || math.IsInf(f, 0) {
			return 0, true, status.Errorf(codes.InvalidArgument, "%s must be an integer", key)
		}
		return int(f), true, nil
	case *structpb.Value_StringValue:
		n, err := strconv.Atoi(strings.TrimSpace(kind.StringValue))
		if err != nil {
			return 0, true, status.Errorf(codes.InvalidArgument, "%s must be an integer", key)
		}
		return n, true, nil
	default:
		return 0, true, status.Errorf(codes.InvalidArgument, "%s must be an integer", key)
	}
}

func requireString(req *structpb.Struct, key string) (string, error) {
	v := stringField(req, key)
	if v == "" {
		return "", status.Errorf(codes.InvalidArgument, "%s is required", key)
	}
	return v, nil
}

// requireUser reads user_id and refuses the id reserved for the engine
func requireUser(req *structpb.Struct) (string, error) {
	userID, err := requireString(req, "user_id")
	if err != nil {
		return "", err
	}
	if userID == game.ComputerPlayerID {
		return "", status.Errorf(codes.InvalidArgument, "user_id %q is reserved", userID)
	}
	return userID, nil
}

func requireInt(req *structpb.Struct, key string) (int, error) {
	n, ok, err := intField(req, key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, status.Errorf(codes.InvalidArgument, "%s is required", key)
	}
	return n, nil
}

// renderBoard draws a snapshot for humans
func renderBoard(s game.GameSnapshot) string {
	size := s.Board.Size
	separator := "+" + strings.Repeat("---+", size) + "\n"

	var sb strings.Builder
	sb.WriteString(separator)
	for row := 0; row < size; row++ {
		cells := make([]string, size)
		for col := 0; col < size; col++ {
			mark, _ := s.Board.Get(row, col)
			cells[col] = mark.String()
		}
		sb.WriteString("| " + strings.Join(cells, " | ") + " |\n")
		sb.WriteString(separator)
	}
	sb.WriteString("Status: " + statusText(s.Status) + "\n")
	if s.Status == game.StatusInProgress {
		sb.WriteString("Turn: " + s.Turn.String() + "\n")
	}
	return sb.String()
}

func statusText(st game.Status) string {
	switch st {
	case game.StatusPending:
		return "Waiting for opponent"
	case game.StatusInProgress:
		return "Game in progress"
	case game.StatusXWon:
		return "Player X won!"
	case game.StatusOWon:
		return "Player O won!"
	case game.StatusDraw:
		return "Game ended in a draw"
	default:
		return "Unknown"
	}
}

// updateMessage describes the state a subscriber has just been sent
func updateMessage(s game.GameSnapshot) string {
	switch s.Status {
	case game.StatusXWon:
		return "Player X wins!"
	case game.StatusOWon:
		return "Player O wins!"
	case game.StatusDraw:
		return "Game ended in a draw!"
	case game.StatusInProgress:
		return "Player " + s.Turn.String() + "'s turn"
	default:
		return ""
	}
}

// toStatus maps domain errors onto gRPC status codes
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, store.ErrGameNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, game.ErrPlayerNotInGame):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, game.ErrGameNotInProgress),
		errors.Is(err, game.ErrNotYourTurn),
		errors.Is(err, game.ErrGameAlreadyStarted),
		errors.Is(err, engine.ErrNoLegalMove):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, game.ErrInvalidPosition),
		errors.Is(err, game.ErrCellOccupied),
		errors.Is(err, game.ErrCannotJoinOwnGame),
		errors.Is(err, game.ErrInvalidMode):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	default:
		return status.Errorf(codes.Internal, "%v", err)
	}
}

package server

import (
	"context"
	"io"
	"net"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"tictactoe4/internal/engine"
	"tictactoe4/internal/game"
	"tictactoe4/internal/store"
)

// testServer holds a running gRPC server and a client connected to it
type testServer struct {
	srv    *GameServer
	client *Client
}

func newGameServer(t *testing.T) *GameServer {
	t.Helper()
	eng, err := engine.New(game.DefaultConfig(), engine.WithWorkers(4))
	require.NoError(t, err)
	return NewGameServer(store.NewGameStore(4), store.NewStatsStore(4), eng, zerolog.Nop())
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	srv := newGameServer(t)

	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(UnaryLogger(zerolog.Nop())),
		grpc.StreamInterceptor(StreamLogger(zerolog.Nop())),
	)
	RegisterGameService(grpcServer, srv)

	listener, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)
	go grpcServer.Serve(listener)

	conn, err := grpc.NewClient(listener.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)

	t.Cleanup(func() {
		conn.Close()
		grpcServer.Stop()
	})
	return &testServer{srv: srv, client: NewClient(conn)}
}

// oWinsTopRow is a HUMAN_VS_HUMAN game in which O fills row 0 while X
// fills row 1
var oWinsTopRow = []struct {
	player   string
	row, col int
}{
	{"alice", 0, 0}, {"bob", 1, 0},
	{"alice", 0, 1}, {"bob", 1, 1},
	{"alice", 0, 2}, {"bob", 1, 2},
	{"alice", 0, 3},
}

func gameOf(t *testing.T, resp map[string]any) map[string]any {
	t.Helper()
	g, ok := resp["game"].(map[string]any)
	require.True(t, ok, "response has no game: %v", resp)
	return g
}

func (ts *testServer) startHumanGame(t *testing.T, ctx context.Context) string {
	t.Helper()
	resp, err := ts.client.Call(ctx, "CreateGame", map[string]any{"user_id": "alice", "mode": "HUMAN_VS_HUMAN"})
	require.NoError(t, err)
	gameID := gameOf(t, resp)["game_id"].(string)

	_, err = ts.client.Call(ctx, "JoinGame", map[string]any{"user_id": "bob", "game_id": gameID})
	require.NoError(t, err)
	return gameID
}

func TestGRPC_CreateGame(t *testing.T) {
	ts := setupTestServer(t)
	ctx := context.Background()

	resp, err := ts.client.Call(ctx, "CreateGame", map[string]any{"user_id": "alice", "mode": "HUMAN_VS_HUMAN"})
	require.NoError(t, err)

	g := gameOf(t, resp)
	assert.NotEmpty(t, g["game_id"])
	assert.Equal(t, "HUMAN_VS_HUMAN", g["mode"])
	assert.Equal(t, "alice", g["player_o_id"])
	assert.Equal(t, "", g["player_x_id"])
	assert.Equal(t, "PENDING", g["status"])
	assert.Equal(t, "", g["current_turn"])
	assert.EqualValues(t, 4, g["board_size"])
	assert.Len(t, g["board"], 16)
	assert.Nil(t, g["last_move"])
}

func TestGRPC_CreateGame_DefaultsToHumanVsComputer(t *testing.T) {
	ts := setupTestServer(t)

	resp, err := ts.client.Call(context.Background(), "CreateGame", map[string]any{"user_id": "alice"})
	require.NoError(t, err)

	g := gameOf(t, resp)
	assert.Equal(t, "HUMAN_VS_COMPUTER", g["mode"])
	assert.Equal(t, game.ComputerPlayerID, g["player_x_id"])
	assert.Equal(t, "IN_PROGRESS", g["status"])
	assert.Equal(t, "O", g["current_turn"])
	assert.EqualValues(t, 0, g["plies"])
}

func TestGRPC_CreateGame_InvalidArguments(t *testing.T) {
	ts := setupTestServer(t)
	ctx := context.Background()

	_, err := ts.client.Call(ctx, "CreateGame", map[string]any{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = ts.client.Call(ctx, "CreateGame", map[string]any{"user_id": "alice", "mode": "CHESS"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestGRPC_ComputerVsComputerFinishes(t *testing.T) {
	ts := setupTestServer(t)

	resp, err := ts.client.Call(context.Background(), "CreateGame", map[string]any{"user_id": "alice", "mode": "COMPUTER_VS_COMPUTER"})
	require.NoError(t, err)

	g := gameOf(t, resp)
	assert.Contains(t, []any{"X_WON", "O_WON", "DRAW"}, g["status"])
	assert.LessOrEqual(t, g["plies"].(float64), float64(16))
	assert.Equal(t, "", g["current_turn"])
}

func TestGRPC_HumanVsComputer_ComputerReplies(t *testing.T) {
	ts := setupTestServer(t)
	ctx := context.Background()

	resp, err := ts.client.Call(ctx, "CreateGame", map[string]any{"user_id": "alice"})
	require.NoError(t, err)
	gameID := gameOf(t, resp)["game_id"].(string)

	resp, err = ts.client.Call(ctx, "MakeMove", map[string]any{"user_id": "alice", "game_id": gameID, "row": 0, "col": 0})
	require.NoError(t, err)

	g := gameOf(t, resp)
	assert.EqualValues(t, 2, g["plies"])
	assert.Equal(t, "O", g["current_turn"])
	board := g["board"].([]any)
	assert.Equal(t, "O", board[0])
	// every reply scores the same, so the first empty cell is kept
	assert.Equal(t, "X", board[1])
	assert.Equal(t, map[string]any{"row": float64(0), "col": float64(1)}, g["last_move"])
}

func TestGRPC_HumanVsHuman_FullGame(t *testing.T) {
	ts := setupTestServer(t)
	ctx := context.Background()

	gameID := ts.startHumanGame(t, ctx)

	var last map[string]any
	for _, m := range oWinsTopRow {
		resp, err := ts.client.Call(ctx, "MakeMove", map[string]any{"user_id": m.player, "game_id": gameID, "row": m.row, "col": m.col})
		require.NoError(t, err)
		last = gameOf(t, resp)
	}
	assert.Equal(t, "O_WON", last["status"])
	assert.EqualValues(t, 7, last["plies"])

	alice, err := ts.client.Call(ctx, "GetUserStats", map[string]any{"user_id": "alice"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, alice["wins"])
	assert.EqualValues(t, 1, alice["total_games"])

	bob, err := ts.client.Call(ctx, "GetUserStats", map[string]any{"user_id": "bob"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, bob["losses"])

	_, err = ts.client.Call(ctx, "MakeMove", map[string]any{"user_id": "bob", "game_id": gameID, "row": 3, "col": 3})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
}

func TestGRPC_MakeMove_Errors(t *testing.T) {
	ts := setupTestServer(t)
	ctx := context.Background()
	gameID := ts.startHumanGame(t, ctx)

	tests := []struct {
		name   string
		fields map[string]any
		code   codes.Code
	}{
		{"unknown game", map[string]any{"user_id": "alice", "game_id": "missing", "row": 0, "col": 0}, codes.NotFound},
		{"missing row", map[string]any{"user_id": "alice", "game_id": gameID, "col": 0}, codes.InvalidArgument},
		{"fractional row", map[string]any{"user_id": "alice", "game_id": gameID, "row": 0.5, "col": 0}, codes.InvalidArgument},
		{"out of bounds", map[string]any{"user_id": "alice", "game_id": gameID, "row": 4, "col": 0}, codes.InvalidArgument},
		{"wrong turn", map[string]any{"user_id": "bob", "game_id": gameID, "row": 0, "col": 0}, codes.FailedPrecondition},
		{"stranger", map[string]any{"user_id": "carol", "game_id": gameID, "row": 0, "col": 0}, codes.PermissionDenied},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ts.client.Call(ctx, "MakeMove", tt.fields)
			assert.Equal(t, tt.code, status.Code(err))
		})
	}

	_, err := ts.client.Call(ctx, "MakeMove", map[string]any{"user_id": "alice", "game_id": gameID, "row": 0, "col": 0})
	require.NoError(t, err)
	_, err = ts.client.Call(ctx, "MakeMove", map[string]any{"user_id": "bob", "game_id": gameID, "row": 0, "col": 0})
	assert.Equal(t, codes.InvalidArgument, status.Code(err), "occupied cell")
}

func TestGRPC_JoinGame_Errors(t *testing.T) {
	ts := setupTestServer(t)
	ctx := context.Background()

	resp, err := ts.client.Call(ctx, "CreateGame", map[string]any{"user_id": "alice", "mode": "HUMAN_VS_HUMAN"})
	require.NoError(t, err)
	gameID := gameOf(t, resp)["game_id"].(string)

	_, err = ts.client.Call(ctx, "JoinGame", map[string]any{"user_id": "alice", "game_id": gameID})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	resp, err = ts.client.Call(ctx, "JoinGame", map[string]any{"user_id": "bob", "game_id": gameID})
	require.NoError(t, err)
	g := gameOf(t, resp)
	assert.Equal(t, "bob", g["player_x_id"])
	assert.Equal(t, "IN_PROGRESS", g["status"])
	assert.Equal(t, "O", g["current_turn"])

	_, err = ts.client.Call(ctx, "JoinGame", map[string]any{"user_id": "carol", "game_id": gameID})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
}

func TestGRPC_GetGame(t *testing.T) {
	ts := setupTestServer(t)
	ctx := context.Background()
	gameID := ts.startHumanGame(t, ctx)

	resp, err := ts.client.Call(ctx, "GetGame", map[string]any{"game_id": gameID})
	require.NoError(t, err)
	assert.Equal(t, gameID, gameOf(t, resp)["game_id"])

	_, err = ts.client.Call(ctx, "GetGame", map[string]any{"game_id": "missing"})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestGRPC_ListGames(t *testing.T) {
	ts := setupTestServer(t)
	ctx := context.Background()

	ts.startHumanGame(t, ctx)
	_, err := ts.client.Call(ctx, "CreateGame", map[string]any{"user_id": "carol", "mode": "HUMAN_VS_HUMAN"})
	require.NoError(t, err)
	_, err = ts.client.Call(ctx, "CreateGame", map[string]any{"user_id": "dave", "mode": "HUMAN_VS_HUMAN"})
	require.NoError(t, err)

	resp, err := ts.client.Call(ctx, "ListGames", map[string]any{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, resp["total_count"])
	assert.Len(t, resp["games"], 3)

	resp, err = ts.client.Call(ctx, "ListGames", map[string]any{"status": "PENDING", "limit": 1, "offset": 1})
	require.NoError(t, err)
	assert.EqualValues(t, 2, resp["total_count"])
	assert.Len(t, resp["games"], 1)

	_, err = ts.client.Call(ctx, "ListGames", map[string]any{"status": "PAUSED"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestGRPC_SuggestMove(t *testing.T) {
	ts := setupTestServer(t)
	ctx := context.Background()
	gameID := ts.startHumanGame(t, ctx)

	// O: row 0 except (0,3); X: row 1 except (1,3)
	for _, m := range oWinsTopRow[:6] {
		_, err := ts.client.Call(ctx, "MakeMove", map[string]any{"user_id": m.player, "game_id": gameID, "row": m.row, "col": m.col})
		require.NoError(t, err)
	}

	resp, err := ts.client.Call(ctx, "SuggestMove", map[string]any{"game_id": gameID})
	require.NoError(t, err)
	assert.Equal(t, "O", resp["side"])
	assert.EqualValues(t, 0, resp["row"])
	assert.EqualValues(t, 3, resp["col"])
	assert.EqualValues(t, -10, resp["score"])
	assert.Greater(t, resp["nodes"].(float64), float64(0))

	snapshot, err := ts.client.Call(ctx, "GetGame", map[string]any{"game_id": gameID})
	require.NoError(t, err)
	assert.EqualValues(t, 6, gameOf(t, snapshot)["plies"], "suggestion must not play")
}

func TestGRPC_SuggestMove_PendingGame(t *testing.T) {
	ts := setupTestServer(t)
	ctx := context.Background()

	resp, err := ts.client.Call(ctx, "CreateGame", map[string]any{"user_id": "alice", "mode": "HUMAN_VS_HUMAN"})
	require.NoError(t, err)

	_, err = ts.client.Call(ctx, "SuggestMove", map[string]any{"game_id": gameOf(t, resp)["game_id"]})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
}

func TestGRPC_GetGameBoard(t *testing.T) {
	ts := setupTestServer(t)
	ctx := context.Background()
	gameID := ts.startHumanGame(t, ctx)

	_, err := ts.client.Call(ctx, "MakeMove", map[string]any{"user_id": "alice", "game_id": gameID, "row": 1, "col": 2})
	require.NoError(t, err)

	text, err := ts.client.GameBoard(ctx, gameID)
	require.NoError(t, err)
	assert.Equal(t,
		"+---+---+---+---+\n"+
			"|   |   |   |   |\n"+
			"+---+---+---+---+\n"+
			"|   |   | O |   |\n"+
			"+---+---+---+---+\n"+
			"|   |   |   |   |\n"+
			"+---+---+---+---+\n"+
			"|   |   |   |   |\n"+
			"+---+---+---+---+\n"+
			"Status: Game in progress\n"+
			"Turn: X\n",
		text)
}

func TestGRPC_StreamGameUpdates(t *testing.T) {
	ts := setupTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	gameID := ts.startHumanGame(t, ctx)

	stream, err := ts.client.StreamUpdates(ctx, gameID)
	require.NoError(t, err)

	first, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, "Connected to game", first["message"])

	for _, m := range oWinsTopRow {
		_, err := ts.client.Call(ctx, "MakeMove", map[string]any{"user_id": m.player, "game_id": gameID, "row": m.row, "col": m.col})
		require.NoError(t, err)
	}

	var updates []map[string]any
	for {
		u, err := stream.Recv()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		updates = append(updates, u)
	}

	require.Len(t, updates, len(oWinsTopRow))
	assert.Equal(t, "Player X's turn", updates[0]["message"])
	last := updates[len(updates)-1]
	assert.Equal(t, "Player O wins!", last["message"])
	assert.Equal(t, "O_WON", gameOf(t, last)["status"])
}

func TestGRPC_StreamGameUpdates_FinishedGame(t *testing.T) {
	ts := setupTestServer(t)
	ctx := context.Background()

	resp, err := ts.client.Call(ctx, "CreateGame", map[string]any{"user_id": "alice", "mode": "COMPUTER_VS_COMPUTER"})
	require.NoError(t, err)

	stream, err := ts.client.StreamUpdates(ctx, gameOf(t, resp)["game_id"].(string))
	require.NoError(t, err)

	u, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, "Connected to game", u["message"])

	_, err = stream.Recv()
	assert.Equal(t, io.EOF, err)
}

func TestGRPC_StreamGameUpdates_UnknownGame(t *testing.T) {
	ts := setupTestServer(t)
	ctx := context.Background()

	stream, err := ts.client.StreamUpdates(ctx, "missing")
	require.NoError(t, err)

	_, err = stream.Recv()
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestGRPC_ConcurrentGames(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping concurrent games in short mode")
	}
	ts := setupTestServer(t)
	ctx := context.Background()

	const numGames = 20
	var wg sync.WaitGroup
	errs := make(chan error, numGames)

	for i := 0; i < numGames; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := ts.client.Call(ctx, "CreateGame", map[string]any{"user_id": "alice", "mode": "COMPUTER_VS_COMPUTER"})
			if err != nil {
				errs <- err
				return
			}
			if g := resp["game"].(map[string]any); g["status"] == "IN_PROGRESS" {
				errs <- status.Error(codes.Internal, "game did not finish")
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	resp, err := ts.client.Call(ctx, "ListGames", map[string]any{"status": "IN_PROGRESS"})
	require.NoError(t, err)
	assert.EqualValues(t, 0, resp["total_count"])
}

func TestGRPC_ReservedUserID(t *testing.T) {
	ts := setupTestServer(t)
	ctx := context.Background()

	_, err := ts.client.Call(ctx, "CreateGame", map[string]any{"user_id": game.ComputerPlayerID})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	resp, err := ts.client.Call(ctx, "CreateGame", map[string]any{"user_id": "alice", "mode": "HUMAN_VS_HUMAN"})
	require.NoError(t, err)
	gameID := gameOf(t, resp)["game_id"].(string)
	_, err = ts.client.Call(ctx, "JoinGame", map[string]any{"user_id": game.ComputerPlayerID, "game_id": gameID})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	resp, err = ts.client.Call(ctx, "CreateGame", map[string]any{"user_id": "alice"})
	require.NoError(t, err)
	gameID = gameOf(t, resp)["game_id"].(string)
	_, err = ts.client.Call(ctx, "MakeMove", map[string]any{"user_id": game.ComputerPlayerID, "game_id": gameID, "row": 0, "col": 0})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	resp, err = ts.client.Call(ctx, "GetGame", map[string]any{"game_id": gameID})
	require.NoError(t, err)
	assert.EqualValues(t, 0, gameOf(t, resp)["plies"])
}

func TestMakeMove_CancelledCallerStillGetsComputerReply(t *testing.T) {
	srv := newGameServer(t)

	created, err := srv.CreateGame(context.Background(), mustStruct(t, map[string]any{"user_id": "alice"}))
	require.NoError(t, err)
	gameID := created.AsMap()["game"].(map[string]any)["game_id"].(string)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	resp, err := srv.MakeMove(ctx, mustStruct(t, map[string]any{"user_id": "alice", "game_id": gameID, "row": 0, "col": 0}))
	require.NoError(t, err)

	g := resp.AsMap()["game"].(map[string]any)
	assert.EqualValues(t, 2, g["plies"])
	assert.Equal(t, "O", g["current_turn"])

	_, err = srv.MakeMove(context.Background(), mustStruct(t, map[string]any{"user_id": "alice", "game_id": gameID, "row": 1, "col": 1}))
	assert.NoError(t, err, "the human can keep playing")
}

func TestCreateGame_CancelledComputerVsComputerFinishes(t *testing.T) {
	srv := newGameServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	resp, err := srv.CreateGame(ctx, mustStruct(t, map[string]any{"user_id": "alice", "mode": "COMPUTER_VS_COMPUTER"}))
	require.NoError(t, err)
	assert.NotEqual(t, "IN_PROGRESS", resp.AsMap()["game"].(map[string]any)["status"])
}

func TestAfterMove_RecordsStatsOnlyForFinishingMove(t *testing.T) {
	srv := newGameServer(t)

	g, err := game.NewGame("g1", "alice", game.ModeHumanVsHuman, 4)
	require.NoError(t, err)
	require.NoError(t, g.Join("bob"))
	require.NoError(t, srv.gameStore.Create(g))

	var results []game.MoveResult
	for _, m := range oWinsTopRow {
		res, err := g.ApplyMove(m.player, m.row, m.col)
		require.NoError(t, err)
		results = append(results, res)
	}

	// the earlier move is reported after the winning one, while the game
	// already shows as finished
	srv.afterMove(results[6])
	srv.afterMove(results[5])

	assert.EqualValues(t, 1, srv.statsStore.Get("alice").Wins)
	assert.EqualValues(t, 1, srv.statsStore.Get("bob").Losses)
	assert.EqualValues(t, 1, srv.statsStore.Get("bob").TotalGames())
}

func TestStreamUpdates_SkipsStaleUpdates(t *testing.T) {
	srv := newGameServer(t)

	g, err := game.NewGame("g1", "alice", game.ModeHumanVsHuman, 4)
	require.NoError(t, err)
	require.NoError(t, g.Join("bob"))
	require.NoError(t, srv.gameStore.Create(g))

	var results []game.MoveResult
	for _, m := range oWinsTopRow[:3] {
		res, err := g.ApplyMove(m.player, m.row, m.col)
		require.NoError(t, err)
		results = append(results, res)
	}

	sent := make(chan Update, 8)
	done := make(chan error, 1)
	go func() {
		done <- srv.streamUpdates(context.Background(), "g1", func(u Update) error {
			sent <- u
			return nil
		})
	}()
	first := <-sent
	assert.Equal(t, 3, first.Snapshot.Plies)

	for _, m := range oWinsTopRow[3:] {
		res, err := g.ApplyMove(m.player, m.row, m.col)
		require.NoError(t, err)
		results = append(results, res)
	}
	srv.afterMove(results[4])
	srv.afterMove(results[3])
	srv.afterMove(results[5])
	srv.afterMove(results[6])

	require.NoError(t, <-done)
	close(sent)

	var plies []int
	for u := range sent {
		plies = append(plies, u.Snapshot.Plies)
	}
	assert.Equal(t, []int{5, 6, 7}, plies)
}

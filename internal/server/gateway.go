package server

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

type gatewayCall func(context.Context, *structpb.Struct) (proto.Message, error)

// NewGateway exposes svc as JSON over HTTP. Path parameters and query
// values are merged into the request Struct next to the decoded body.
func NewGateway(svc GameService) (*runtime.ServeMux, error) {
	mux := runtime.NewServeMux()

	routes := []struct {
		method  string
		pattern string
		call    gatewayCall
	}{
		{http.MethodPost, "/api/v1/games", func(ctx context.Context, req *structpb.Struct) (proto.Message, error) {
			return svc.CreateGame(ctx, req)
		}},
		{http.MethodGet, "/api/v1/games", func(ctx context.Context, req *structpb.Struct) (proto.Message, error) {
			return svc.ListGames(ctx, req)
		}},
		{http.MethodGet, "/api/v1/games/{game_id}", func(ctx context.Context, req *structpb.Struct) (proto.Message, error) {
			return svc.GetGame(ctx, req)
		}},
		{http.MethodPost, "/api/v1/games/{game_id}/join", func(ctx context.Context, req *structpb.Struct) (proto.Message, error) {
			return svc.JoinGame(ctx, req)
		}},
		{http.MethodPost, "/api/v1/games/{game_id}/moves", func(ctx context.Context, req *structpb.Struct) (proto.Message, error) {
			return svc.MakeMove(ctx, req)
		}},
		{http.MethodGet, "/api/v1/games/{game_id}/suggestion", func(ctx context.Context, req *structpb.Struct) (proto.Message, error) {
			return svc.SuggestMove(ctx, req)
		}},
		{http.MethodGet, "/api/v1/games/{game_id}/board", func(ctx context.Context, req *structpb.Struct) (proto.Message, error) {
			return svc.GetGameBoard(ctx, req)
		}},
		{http.MethodGet, "/api/v1/users/{user_id}/stats", func(ctx context.Context, req *structpb.Struct) (proto.Message, error) {
			return svc.GetUserStats(ctx, req)
		}},
	}

	for _, r := range routes {
		if err := mux.HandlePath(r.method, r.pattern, gatewayHandler(mux, r.call)); err != nil {
			return nil, err
		}
	}
	return mux, nil
}

func gatewayHandler(mux *runtime.ServeMux, call gatewayCall) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
		ctx := r.Context()
		inbound, outbound := runtime.MarshalerForRequest(mux, r)

		req := &structpb.Struct{}
		if r.Method == http.MethodPost {
			if err := inbound.NewDecoder(r.Body).Decode(req); err != nil && !errors.Is(err, io.EOF) {
				runtime.HTTPError(ctx, mux, outbound, w, r, status.Errorf(codes.InvalidArgument, "decode body: %v", err))
				return
			}
		}
		if req.Fields == nil {
			req.Fields = make(map[string]*structpb.Value)
		}
		for key, values := range r.URL.Query() {
			if len(values) > 0 {
				req.Fields[key] = structpb.NewStringValue(values[0])
			}
		}
		for key, value := range pathParams {
			req.Fields[key] = structpb.NewStringValue(value)
		}

		resp, err := call(ctx, req)
		if err != nil {
			runtime.HTTPError(ctx, mux, outbound, w, r, err)
			return
		}
		runtime.ForwardResponseMessage(ctx, mux, outbound, w, r, resp)
	}
}

package server

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genproto/googleapis/api/httpbody"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "tictactoe4.v1.GameService"

// GameService is the gRPC surface. Requests and replies are
// google.protobuf.Struct messages with snake_case keys.
type GameService interface {
	CreateGame(context.Context, *structpb.Struct) (*structpb.Struct, error)
	JoinGame(context.Context, *structpb.Struct) (*structpb.Struct, error)
	MakeMove(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetGame(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListGames(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SuggestMove(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetGameBoard(context.Context, *structpb.Struct) (*httpbody.HttpBody, error)
	GetUserStats(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StreamGameUpdates(*structpb.Struct, grpc.ServerStream) error
}

var _ GameService = (*GameServer)(nil)

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

func unaryMethod[Resp proto.Message](name string, call func(GameService, context.Context, *structpb.Struct) (Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			handler := func(ctx context.Context, req any) (any, error) {
				resp, err := call(srv.(GameService), ctx, req.(*structpb.Struct))
				if err != nil {
					return nil, err
				}
				return resp, nil
			}
			if interceptor == nil {
				return handler(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			return interceptor(ctx, in, info, handler)
		},
	}
}

const streamUpdatesMethod = "StreamGameUpdates"

var gameServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*GameService)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("CreateGame", GameService.CreateGame),
		unaryMethod("JoinGame", GameService.JoinGame),
		unaryMethod("MakeMove", GameService.MakeMove),
		unaryMethod("GetGame", GameService.GetGame),
		unaryMethod("ListGames", GameService.ListGames),
		unaryMethod("SuggestMove", GameService.SuggestMove),
		unaryMethod("GetGameBoard", GameService.GetGameBoard),
		unaryMethod("GetUserStats", GameService.GetUserStats),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    streamUpdatesMethod,
			ServerStreams: true,
			Handler: func(srv any, stream grpc.ServerStream) error {
				in := new(structpb.Struct)
				if err := stream.RecvMsg(in); err != nil {
					return err
				}
				return srv.(GameService).StreamGameUpdates(in, stream)
			},
		},
	},
	Metadata: "tictactoe4/v1/game_service",
}

// RegisterGameService registers srv on a gRPC server
func RegisterGameService(s grpc.ServiceRegistrar, srv GameService) {
	s.RegisterService(&gameServiceDesc, srv)
}

// UnaryLogger logs every unary call with its status code and duration
func UnaryLogger(logger zerolog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Info().
			Str("method", info.FullMethod).
			Stringer("code", status.Code(err)).
			Dur("elapsed", time.Since(start)).
			Msg("grpc call")
		return resp, err
	}
}

// StreamLogger logs every stream when it ends
func StreamLogger(logger zerolog.Logger) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		err := handler(srv, ss)
		logger.Info().
			Str("method", info.FullMethod).
			Stringer("code", status.Code(err)).
			Dur("elapsed", time.Since(start)).
			Msg("grpc stream")
		return err
	}
}

package server

import (
	"context"
	"errors"
	"io"

	"google.golang.org/genproto/googleapis/api/httpbody"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls GameService over a gRPC connection
type Client struct {
	conn grpc.ClientConnInterface
}

func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// Call invokes a unary method that answers with a Struct
func (c *Client) Call(ctx context.Context, method string, fields map[string]any) (map[string]any, error) {
	req, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	resp := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, fullMethod(method), req, resp); err != nil {
		return nil, err
	}
	return resp.AsMap(), nil
}

// GameBoard fetches the rendered board of a game
func (c *Client) GameBoard(ctx context.Context, gameID string) (string, error) {
	req, err := structpb.NewStruct(map[string]any{"game_id": gameID})
	if err != nil {
		return "", err
	}
	resp := new(httpbody.HttpBody)
	if err := c.conn.Invoke(ctx, fullMethod("GetGameBoard"), req, resp); err != nil {
		return "", err
	}
	return string(resp.GetData()), nil
}

// UpdateStream receives game updates until the server closes the stream
type UpdateStream struct {
	stream grpc.ClientStream
}

// Recv returns the next update, or io.EOF once the game is over
func (s *UpdateStream) Recv() (map[string]any, error) {
	msg := new(structpb.Struct)
	if err := s.stream.RecvMsg(msg); err != nil {
		return nil, err
	}
	return msg.AsMap(), nil
}

// StreamUpdates subscribes to a game's updates
func (c *Client) StreamUpdates(ctx context.Context, gameID string) (*UpdateStream, error) {
	req, err := structpb.NewStruct(map[string]any{"game_id": gameID})
	if err != nil {
		return nil, err
	}
	stream, err := c.conn.NewStream(ctx, &gameServiceDesc.Streams[0], fullMethod(streamUpdatesMethod))
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(req); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &UpdateStream{stream: stream}, nil
}

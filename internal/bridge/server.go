package bridge

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/cartridge/dinosweep/internal/env"
	"github.com/cartridge/dinosweep/internal/game"
)

// Server exposes a Session over gRPC.
type Server struct {
	session env.Session
}

// NewServer creates a new Environment service backed by session.
func NewServer(session env.Session) *Server {
	return &Server{session: session}
}

// Poll returns the current frame as a frame vector.
func (s *Server) Poll(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	frame, err := s.session.Poll(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	vec := frame.Vector()
	values := make([]*structpb.Value, len(vec))
	for i, v := range vec {
		values[i] = structpb.NewNumberValue(v)
	}
	return &structpb.ListValue{Values: values}, nil
}

// Submit applies a named action.
func (s *Server) Submit(ctx context.Context, req *wrapperspb.StringValue) (*emptypb.Empty, error) {
	action, err := game.ParseAction(req.GetValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := s.session.Submit(ctx, action); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, game.ErrInvalidAction):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, game.ErrEnvironmentUnavailable):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// LoggingInterceptor logs gRPC requests
func LoggingInterceptor(logger zerolog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()

		resp, err := handler(ctx, req)

		event := logger.Debug()
		if err != nil {
			event = logger.Warn().Err(err).Str("code", status.Code(err).String())
		}
		event.
			Str("method", info.FullMethod).
			Dur("duration", time.Since(start)).
			Msg("gRPC request")

		return resp, err
	}
}

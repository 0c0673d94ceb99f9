package bridge

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/cartridge/dinosweep/internal/game"
)

// Client is a Session backed by a remote Environment service.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to the Environment service at addr.
func Dial(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.Dial(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial environment %s: %w: %w", addr, game.ErrEnvironmentUnavailable, err)
	}
	return &Client{conn: conn}, nil
}

// NewClient wraps an existing connection. Close closes conn.
func NewClient(conn *grpc.ClientConn) *Client {
	return &Client{conn: conn}
}

// Poll fetches and decodes the current frame.
func (c *Client) Poll(ctx context.Context) (game.FrameState, error) {
	out := new(structpb.ListValue)
	if err := c.conn.Invoke(ctx, pollMethod, &emptypb.Empty{}, out); err != nil {
		return game.FrameState{}, fromStatus("poll", err)
	}
	vec := make([]float64, len(out.GetValues()))
	for i, v := range out.GetValues() {
		n, ok := v.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return game.FrameState{}, fmt.Errorf("poll: %w: element %d is not a number", game.ErrEnvironmentUnavailable, i)
		}
		vec[i] = n.NumberValue
	}
	return game.DecodeFrame(vec)
}

// Submit sends one action.
func (c *Client) Submit(ctx context.Context, action game.Action) error {
	if !action.Valid() {
		return fmt.Errorf("submit: %w: %v", game.ErrInvalidAction, action)
	}
	if err := c.conn.Invoke(ctx, submitMethod, wrapperspb.String(action.String()), new(emptypb.Empty)); err != nil {
		return fromStatus("submit "+action.String(), err)
	}
	return nil
}

// Close releases the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func fromStatus(op string, err error) error {
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.InvalidArgument:
		return fmt.Errorf("%s: %w: %s", op, game.ErrInvalidAction, st.Message())
	case codes.Canceled:
		return fmt.Errorf("%s: %w", op, context.Canceled)
	case codes.DeadlineExceeded:
		return fmt.Errorf("%s: %w", op, context.DeadlineExceeded)
	default:
		return fmt.Errorf("%s: %w: %s", op, game.ErrEnvironmentUnavailable, st.Message())
	}
}

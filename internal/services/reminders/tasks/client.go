// Package tasks is the gRPC contract of the remote task service the
// reminder session reads from.
package tasks

import (
	"context"
	"strconv"
	"strings"

	"github.com/louisbranch/dailytasks/internal/services/reminders/domain"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client calls the task service over a gRPC connection.
type Client struct {
	conn grpc.ClientConnInterface
}

// NewClient wraps conn.
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

func (c *Client) invoke(ctx context.Context, method string, in, out any) error {
	return mapError(method, c.conn.Invoke(ctx, "/"+ServiceName+"/"+method, in, out))
}

// ListTasks returns every task of the caller.
func (c *Client) ListTasks(ctx context.Context) ([]domain.Task, error) {
	out := &structpb.Struct{}
	if err := c.invoke(ctx, "ListTasks", &emptypb.Empty{}, out); err != nil {
		return nil, err
	}
	return decodeTaskList(out)
}

// ListTasksForDay returns tasks for the day starting at the nanosecond epoch.
func (c *Client) ListTasksForDay(ctx context.Context, day int64) ([]domain.Task, error) {
	in := &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldDay: structpb.NewStringValue(strconv.FormatInt(day, 10)),
	}}
	out := &structpb.Struct{}
	if err := c.invoke(ctx, "ListTasksForDay", in, out); err != nil {
		return nil, err
	}
	return decodeTaskList(out)
}

// CreateTask creates a task and returns it.
func (c *Client) CreateTask(ctx context.Context, input TaskInput) (domain.Task, error) {
	out := &structpb.Struct{}
	if err := c.invoke(ctx, "CreateTask", encodeInput("", input), out); err != nil {
		return domain.Task{}, err
	}
	return decodeTask(out)
}

// UpdateTask replaces the editable fields of a task.
func (c *Client) UpdateTask(ctx context.Context, id string, input TaskInput) (domain.Task, error) {
	out := &structpb.Struct{}
	if err := c.invoke(ctx, "UpdateTask", encodeInput(strings.TrimSpace(id), input), out); err != nil {
		return domain.Task{}, err
	}
	return decodeTask(out)
}

// DeleteTask removes a task.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.invoke(ctx, "DeleteTask", taskIDRequest(strings.TrimSpace(id)), &emptypb.Empty{})
}

// CompleteTask marks a task completed.
func (c *Client) CompleteTask(ctx context.Context, id string) error {
	return c.invoke(ctx, "CompleteTask", taskIDRequest(strings.TrimSpace(id)), &emptypb.Empty{})
}

// ToggleDeferred flips the procrastinated flag.
func (c *Client) ToggleDeferred(ctx context.Context, id string) error {
	return c.invoke(ctx, "ToggleProcrastination", taskIDRequest(strings.TrimSpace(id)), &emptypb.Empty{})
}

// NotificationsEnabled reads the notifications setting.
func (c *Client) NotificationsEnabled(ctx context.Context) (bool, error) {
	out := &wrapperspb.BoolValue{}
	if err := c.invoke(ctx, "GetNotificationsEnabled", &emptypb.Empty{}, out); err != nil {
		return false, err
	}
	return out.GetValue(), nil
}

// SetNotificationsEnabled writes the notifications setting.
func (c *Client) SetNotificationsEnabled(ctx context.Context, enabled bool) error {
	return c.invoke(ctx, "SetNotificationsEnabled", wrapperspb.Bool(enabled), &emptypb.Empty{})
}

// AutoReset reads the reset-at-midnight setting.
func (c *Client) AutoReset(ctx context.Context) (bool, error) {
	out := &wrapperspb.BoolValue{}
	if err := c.invoke(ctx, "GetAutoReset", &emptypb.Empty{}, out); err != nil {
		return false, err
	}
	return out.GetValue(), nil
}

// SetAutoReset writes the reset-at-midnight setting.
func (c *Client) SetAutoReset(ctx context.Context, enabled bool) error {
	return c.invoke(ctx, "SetAutoReset", wrapperspb.Bool(enabled), &emptypb.Empty{})
}

var _ Service = (*Client)(nil)

package tasks

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	apperrors "github.com/louisbranch/dailytasks/internal/platform/errors"
	"github.com/louisbranch/dailytasks/internal/services/reminders/domain"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name of the task service.
const ServiceName = "dailytasks.tasks.v1.TaskService"

// ErrTaskNotFound indicates the task service has no task with the given id.
var ErrTaskNotFound = errors.New("task not found")

// Service is the remote task service contract.
type Service interface {
	ListTasks(ctx context.Context) ([]domain.Task, error)
	ListTasksForDay(ctx context.Context, day int64) ([]domain.Task, error)
	CreateTask(ctx context.Context, input TaskInput) (domain.Task, error)
	UpdateTask(ctx context.Context, id string, input TaskInput) (domain.Task, error)
	DeleteTask(ctx context.Context, id string) error
	CompleteTask(ctx context.Context, id string) error
	ToggleDeferred(ctx context.Context, id string) error
	NotificationsEnabled(ctx context.Context) (bool, error)
	SetNotificationsEnabled(ctx context.Context, enabled bool) error
	AutoReset(ctx context.Context) (bool, error)
	SetAutoReset(ctx context.Context, enabled bool) error
}

// NotFoundError builds the status a task service returns for a missing task.
func NotFoundError(id string) error {
	return apperrors.WithMetadata(apperrors.CodeTaskNotFound, "task not found", map[string]string{fieldTaskID: id})
}

// Register exposes impl as the task service on s.
func Register(s grpc.ServiceRegistrar, impl Service) {
	s.RegisterService(&serviceDesc, impl)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*Service)(nil),
	Methods: []grpc.MethodDesc{
		unary("ListTasks", newEmpty, func(ctx context.Context, svc Service, _ proto.Message) (proto.Message, error) {
			list, err := svc.ListTasks(ctx)
			if err != nil {
				return nil, err
			}
			return encodeTaskList(list), nil
		}),
		unary("ListTasksForDay", newStruct, func(ctx context.Context, svc Service, req proto.Message) (proto.Message, error) {
			raw := strings.TrimSpace(req.(*structpb.Struct).GetFields()[fieldDay].GetStringValue())
			day, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return nil, apperrors.Wrap(apperrors.CodeTaskInvalidDay, "day: "+err.Error(), err)
			}
			list, err := svc.ListTasksForDay(ctx, day)
			if err != nil {
				return nil, err
			}
			return encodeTaskList(list), nil
		}),
		unary("CreateTask", newStruct, func(ctx context.Context, svc Service, req proto.Message) (proto.Message, error) {
			_, input, err := decodeInput(req.(*structpb.Struct))
			if err != nil {
				return nil, apperrors.Wrap(apperrors.CodeTaskInvalidInput, err.Error(), err)
			}
			task, err := svc.CreateTask(ctx, input)
			if err != nil {
				return nil, err
			}
			return encodeTask(task), nil
		}),
		unary("UpdateTask", newStruct, func(ctx context.Context, svc Service, req proto.Message) (proto.Message, error) {
			id, input, err := decodeInput(req.(*structpb.Struct))
			if err != nil {
				return nil, apperrors.Wrap(apperrors.CodeTaskInvalidInput, err.Error(), err)
			}
			task, err := svc.UpdateTask(ctx, id, input)
			if err != nil {
				return nil, err
			}
			return encodeTask(task), nil
		}),
		unary("DeleteTask", newStruct, taskIDCall(Service.DeleteTask)),
		unary("CompleteTask", newStruct, taskIDCall(Service.CompleteTask)),
		unary("ToggleProcrastination", newStruct, taskIDCall(Service.ToggleDeferred)),
		unary("GetNotificationsEnabled", newEmpty, boolGetter(Service.NotificationsEnabled)),
		unary("SetNotificationsEnabled", newBool, boolSetter(Service.SetNotificationsEnabled)),
		unary("GetAutoReset", newEmpty, boolGetter(Service.AutoReset)),
		unary("SetAutoReset", newBool, boolSetter(Service.SetAutoReset)),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "dailytasks/tasks/v1/tasks.proto",
}

type unaryCall func(ctx context.Context, svc Service, req proto.Message) (proto.Message, error)

func unary(name string, newRequest func() proto.Message, call unaryCall) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			req := newRequest()
			if err := dec(req); err != nil {
				return nil, err
			}
			svc := srv.(Service)
			if interceptor == nil {
				return call(ctx, svc, req)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			return interceptor(ctx, req, info, func(ctx context.Context, req any) (any, error) {
				return call(ctx, svc, req.(proto.Message))
			})
		},
	}
}

func taskIDCall(fn func(Service, context.Context, string) error) unaryCall {
	return func(ctx context.Context, svc Service, req proto.Message) (proto.Message, error) {
		id := strings.TrimSpace(req.(*structpb.Struct).GetFields()[fieldTaskID].GetStringValue())
		if id == "" {
			return nil, apperrors.New(apperrors.CodeTaskIDRequired, "task id is required")
		}
		if err := fn(svc, ctx, id); err != nil {
			return nil, err
		}
		return &emptypb.Empty{}, nil
	}
}

func boolGetter(fn func(Service, context.Context) (bool, error)) unaryCall {
	return func(ctx context.Context, svc Service, _ proto.Message) (proto.Message, error) {
		value, err := fn(svc, ctx)
		if err != nil {
			return nil, err
		}
		return wrapperspb.Bool(value), nil
	}
}

func boolSetter(fn func(Service, context.Context, bool) error) unaryCall {
	return func(ctx context.Context, svc Service, req proto.Message) (proto.Message, error) {
		if err := fn(svc, ctx, req.(*wrapperspb.BoolValue).GetValue()); err != nil {
			return nil, err
		}
		return &emptypb.Empty{}, nil
	}
}

func newEmpty() proto.Message  { return &emptypb.Empty{} }
func newStruct() proto.Message { return &structpb.Struct{} }
func newBool() proto.Message   { return &wrapperspb.BoolValue{} }

// mapError converts task service statuses into package errors.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if domainErr, ok := apperrors.FromStatus(err); ok {
		if domainErr.Code == apperrors.CodeTaskNotFound {
			return fmt.Errorf("%s: %w: %s", op, ErrTaskNotFound, domainErr.Metadata[fieldTaskID])
		}
		return fmt.Errorf("%s: %w", op, domainErr)
	}
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("%s: %w", op, ErrTaskNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}

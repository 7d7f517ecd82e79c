package tasks

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	apperrors "github.com/louisbranch/dailytasks/internal/platform/errors"
	"github.com/louisbranch/dailytasks/internal/services/reminders/domain"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

type fakeService struct {
	mu            sync.Mutex
	tasks         map[string]domain.Task
	order         []string
	notifications bool
	autoReset     bool
	lastDay       int64
	nextID        int
}

func newFakeService() *fakeService {
	return &fakeService{tasks: map[string]domain.Task{}}
}

func (s *fakeService) ListTasks(context.Context) ([]domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Task, 0, len(s.order))
	for _, id := range s.order {
		if task, ok := s.tasks[id]; ok {
			out = append(out, task)
		}
	}
	return out, nil
}

func (s *fakeService) ListTasksForDay(ctx context.Context, day int64) ([]domain.Task, error) {
	s.mu.Lock()
	s.lastDay = day
	s.mu.Unlock()
	return s.ListTasks(ctx)
}

func (s *fakeService) CreateTask(_ context.Context, input TaskInput) (domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := string(rune('0' + s.nextID))
	now := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	task := domain.Task{
		ID:          id,
		Title:       input.Title,
		Description: input.Description,
		ReminderAt:  input.ReminderAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.tasks[id] = task
	s.order = append(s.order, id)
	return task, nil
}

func (s *fakeService) UpdateTask(_ context.Context, id string, input TaskInput) (domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return domain.Task{}, NotFoundError(id)
	}
	task.Title = input.Title
	task.Description = input.Description
	task.ReminderAt = input.ReminderAt
	s.tasks[id] = task
	return task, nil
}

func (s *fakeService) mutate(id string, fn func(*domain.Task)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return NotFoundError(id)
	}
	fn(&task)
	s.tasks[id] = task
	return nil
}

func (s *fakeService) DeleteTask(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return NotFoundError(id)
	}
	delete(s.tasks, id)
	return nil
}

func (s *fakeService) CompleteTask(_ context.Context, id string) error {
	return s.mutate(id, func(task *domain.Task) { task.Completed = true })
}

func (s *fakeService) ToggleDeferred(_ context.Context, id string) error {
	return s.mutate(id, func(task *domain.Task) { task.Deferred = !task.Deferred })
}

func (s *fakeService) NotificationsEnabled(context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notifications, nil
}

func (s *fakeService) SetNotificationsEnabled(_ context.Context, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = enabled
	return nil
}

func (s *fakeService) AutoReset(context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.autoReset, nil
}

func (s *fakeService) SetAutoReset(_ context.Context, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if enabled && s.autoReset {
		return status.Error(codes.FailedPrecondition, "already enabled")
	}
	s.autoReset = enabled
	return nil
}

func startTaskService(t *testing.T, svc Service) *Client {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	server := grpc.NewServer()
	Register(server, svc)
	go func() {
		_ = server.Serve(listener)
	}()
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient(listener.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return NewClient(conn)
}

func TestClientTaskLifecycle(t *testing.T) {
	client := startTaskService(t, newFakeService())
	ctx := context.Background()
	reminderAt := time.Date(2026, 4, 1, 18, 30, 0, 123_000_000, time.UTC)

	created, err := client.CreateTask(ctx, TaskInput{Title: "Water plants", Description: "Balcony", ReminderAt: reminderAt})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" || !created.ReminderAt.Equal(reminderAt) {
		t.Fatalf("created = %+v", created)
	}

	if err := client.ToggleDeferred(ctx, created.ID); err != nil {
		t.Fatalf("toggle deferred: %v", err)
	}
	if err := client.CompleteTask(ctx, created.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	list, err := client.ListTasks(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("list = %+v, want one task", list)
	}
	got := list[0]
	if got.Title != "Water plants" || got.Description != "Balcony" || !got.Completed || !got.Deferred {
		t.Fatalf("task = %+v", got)
	}
	if !got.ReminderAt.Equal(reminderAt) {
		t.Fatalf("reminder = %v, want %v", got.ReminderAt, reminderAt)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Fatalf("timestamps missing: %+v", got)
	}

	updated, err := client.UpdateTask(ctx, created.ID, TaskInput{Title: "Water plants"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.HasReminder() {
		t.Fatalf("updated reminder = %v, want cleared", updated.ReminderAt)
	}

	if err := client.DeleteTask(ctx, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	list, err = client.ListTasks(ctx)
	if err != nil {
		t.Fatalf("list after delete: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("list after delete = %+v", list)
	}
}

func TestClientListTasksForDay(t *testing.T) {
	svc := newFakeService()
	client := startTaskService(t, svc)
	day := int64(1_775_001_600_000_000_123)
	if _, err := client.ListTasksForDay(context.Background(), day); err != nil {
		t.Fatalf("list for day: %v", err)
	}
	svc.mu.Lock()
	defer svc.mu.Unlock()
	if svc.lastDay != day {
		t.Fatalf("day = %d, want %d", svc.lastDay, day)
	}
}

func TestClientMapsNotFound(t *testing.T) {
	client := startTaskService(t, newFakeService())
	err := client.CompleteTask(context.Background(), "missing")
	if !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("complete err = %v, want ErrTaskNotFound", err)
	}
}

func TestClientSettings(t *testing.T) {
	client := startTaskService(t, newFakeService())
	ctx := context.Background()

	if enabled, err := client.NotificationsEnabled(ctx); err != nil || enabled {
		t.Fatalf("notifications = %v, err = %v", enabled, err)
	}
	if err := client.SetNotificationsEnabled(ctx, true); err != nil {
		t.Fatalf("set notifications: %v", err)
	}
	if enabled, err := client.NotificationsEnabled(ctx); err != nil || !enabled {
		t.Fatalf("notifications = %v, err = %v", enabled, err)
	}

	if err := client.SetAutoReset(ctx, true); err != nil {
		t.Fatalf("set auto reset: %v", err)
	}
	if enabled, err := client.AutoReset(ctx); err != nil || !enabled {
		t.Fatalf("auto reset = %v, err = %v", enabled, err)
	}
	err := client.SetAutoReset(ctx, true)
	if status.Code(errors.Unwrap(err)) != codes.FailedPrecondition {
		t.Fatalf("set auto reset again err = %v, want FailedPrecondition", err)
	}
}

func TestDecodeTaskRequiresID(t *testing.T) {
	if _, err := decodeTask(encodeTask(domain.Task{Title: "no id"})); err == nil {
		t.Fatal("expected error for missing id")
	}
}

func TestClientSurfacesDomainErrors(t *testing.T) {
	client := startTaskService(t, newFakeService())
	err := client.DeleteTask(context.Background(), "   ")
	if !errors.Is(err, apperrors.New(apperrors.CodeTaskIDRequired, "")) {
		t.Fatalf("delete err = %v, want TASK_ID_REQUIRED", err)
	}
	if status.Code(errors.Unwrap(err)) != codes.InvalidArgument {
		t.Fatalf("unwrapped err code = %v, want InvalidArgument", status.Code(errors.Unwrap(err)))
	}
}

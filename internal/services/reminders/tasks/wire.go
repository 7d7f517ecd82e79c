package tasks

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/louisbranch/dailytasks/internal/services/reminders/domain"
	"google.golang.org/protobuf/types/known/structpb"
)

// Wire field names. Ids and nanosecond timestamps travel as decimal
// strings because struct numbers are float64.
const (
	fieldID             = "id"
	fieldTitle          = "title"
	fieldDescription    = "description"
	fieldCompleted      = "completed"
	fieldProcrastinated = "procrastinated"
	fieldCreatedAt      = "created_at"
	fieldUpdatedAt      = "updated_at"
	fieldReminderTime   = "reminder_time"
	fieldTasks          = "tasks"
	fieldTaskID         = "task_id"
	fieldDay            = "day"
)

// TaskInput carries the editable task fields.
type TaskInput struct {
	Title       string
	Description string
	// ReminderAt is zero to clear the reminder.
	ReminderAt time.Time
}

func encodeTask(task domain.Task) *structpb.Struct {
	fields := map[string]*structpb.Value{
		fieldID:             structpb.NewStringValue(task.ID),
		fieldTitle:          structpb.NewStringValue(task.Title),
		fieldDescription:    structpb.NewStringValue(task.Description),
		fieldCompleted:      structpb.NewBoolValue(task.Completed),
		fieldProcrastinated: structpb.NewBoolValue(task.Deferred),
		fieldCreatedAt:      nanosValue(task.CreatedAt),
		fieldUpdatedAt:      nanosValue(task.UpdatedAt),
	}
	if task.HasReminder() {
		fields[fieldReminderTime] = nanosValue(task.ReminderAt)
	}
	return &structpb.Struct{Fields: fields}
}

func decodeTask(value *structpb.Struct) (domain.Task, error) {
	fields := value.GetFields()
	task := domain.Task{
		ID:          strings.TrimSpace(fields[fieldID].GetStringValue()),
		Title:       fields[fieldTitle].GetStringValue(),
		Description: fields[fieldDescription].GetStringValue(),
		Completed:   fields[fieldCompleted].GetBoolValue(),
		Deferred:    fields[fieldProcrastinated].GetBoolValue(),
	}
	if task.ID == "" {
		return domain.Task{}, fmt.Errorf("task id is required")
	}
	var err error
	if task.CreatedAt, err = decodeNanos(fields[fieldCreatedAt]); err != nil {
		return domain.Task{}, fmt.Errorf("task %s created_at: %w", task.ID, err)
	}
	if task.UpdatedAt, err = decodeNanos(fields[fieldUpdatedAt]); err != nil {
		return domain.Task{}, fmt.Errorf("task %s updated_at: %w", task.ID, err)
	}
	if task.ReminderAt, err = decodeNanos(fields[fieldReminderTime]); err != nil {
		return domain.Task{}, fmt.Errorf("task %s reminder_time: %w", task.ID, err)
	}
	return task, nil
}

func encodeTaskList(list []domain.Task) *structpb.Struct {
	values := make([]*structpb.Value, 0, len(list))
	for _, task := range list {
		values = append(values, structpb.NewStructValue(encodeTask(task)))
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldTasks: structpb.NewListValue(&structpb.ListValue{Values: values}),
	}}
}

func decodeTaskList(value *structpb.Struct) ([]domain.Task, error) {
	items := value.GetFields()[fieldTasks].GetListValue().GetValues()
	list := make([]domain.Task, 0, len(items))
	for _, item := range items {
		task, err := decodeTask(item.GetStructValue())
		if err != nil {
			return nil, err
		}
		list = append(list, task)
	}
	return list, nil
}

func encodeInput(id string, input TaskInput) *structpb.Struct {
	fields := map[string]*structpb.Value{
		fieldTitle:       structpb.NewStringValue(input.Title),
		fieldDescription: structpb.NewStringValue(input.Description),
	}
	if id != "" {
		fields[fieldTaskID] = structpb.NewStringValue(id)
	}
	if !input.ReminderAt.IsZero() {
		fields[fieldReminderTime] = nanosValue(input.ReminderAt)
	}
	return &structpb.Struct{Fields: fields}
}

func decodeInput(value *structpb.Struct) (string, TaskInput, error) {
	fields := value.GetFields()
	input := TaskInput{
		Title:       fields[fieldTitle].GetStringValue(),
		Description: fields[fieldDescription].GetStringValue(),
	}
	reminderAt, err := decodeNanos(fields[fieldReminderTime])
	if err != nil {
		return "", TaskInput{}, fmt.Errorf("reminder_time: %w", err)
	}
	input.ReminderAt = reminderAt
	return strings.TrimSpace(fields[fieldTaskID].GetStringValue()), input, nil
}

func taskIDRequest(id string) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldTaskID: structpb.NewStringValue(id),
	}}
}

func nanosValue(t time.Time) *structpb.Value {
	return structpb.NewStringValue(strconv.FormatInt(domain.NanosFromTime(t), 10))
}

func decodeNanos(value *structpb.Value) (time.Time, error) {
	if value == nil {
		return time.Time{}, nil
	}
	raw := strings.TrimSpace(value.GetStringValue())
	if raw == "" {
		return time.Time{}, nil
	}
	ns, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return domain.TimeFromNanos(ns), nil
}

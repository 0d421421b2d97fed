package campaign

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/LeventeLantos/blast-desk/internal/model"
	"github.com/LeventeLantos/blast-desk/internal/repo"
)

const maxFailReasonLength = 500

type TaskFilter string

const (
	FilterAll       TaskFilter = "all"
	FilterPending   TaskFilter = "pending"
	FilterCompleted TaskFilter = "completed"
	FilterFailed    TaskFilter = "failed"
)

func ParseTaskFilter(s string) (TaskFilter, error) {
	switch f := TaskFilter(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FilterAll, nil
	case FilterAll, FilterPending, FilterCompleted, FilterFailed:
		return f, nil
	default:
		return "", invalid("Invalid filter %q", s)
	}
}

// Task is the assistant's view of one recipient: sent maps to completed and
// deleted maps to failed.
type Task struct {
	ID            int64      `json:"id"`
	PhoneE164     string     `json:"phone_e164"`
	Completed     bool       `json:"completed"`
	Failed        bool       `json:"failed"`
	FailedReason  *string    `json:"failed_reason,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	AssignedTo    *int64     `json:"assigned_to"`
	AssistantName *string    `json:"assistant_name,omitempty"`
}

func TaskFromRecipient(r model.Recipient) Task {
	return Task{
		ID:            r.ID,
		PhoneE164:     r.PhoneE164,
		Completed:     r.State == model.Sent,
		Failed:        r.State == model.Deleted,
		FailedReason:  r.FailedReason,
		CompletedAt:   r.CompletedAt,
		AssignedTo:    r.AssignedTo,
		AssistantName: r.AssistantName,
	}
}

func (t Task) matches(f TaskFilter) bool {
	switch f {
	case FilterPending:
		return !t.Completed && !t.Failed
	case FilterCompleted:
		return t.Completed
	case FilterFailed:
		return t.Failed
	default:
		return true
	}
}

type TaskStats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

type TaskList struct {
	Blast model.Blast `json:"blast"`
	Tasks []Task      `json:"tasks"`
	Stats TaskStats   `json:"stats"`
}

type TaskQuery struct {
	Filter     TaskFilter
	Search     string
	AssignedTo *int64
}

// ListTasks projects an open blast's recipients into tasks. Stats cover every
// task visible to the query's assignee; Filter and Search only narrow Tasks.
func (s *Service) ListTasks(ctx context.Context, blastID int64, q TaskQuery) (TaskList, error) {
	b, err := s.store.Blasts.Get(ctx, blastID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return TaskList{}, notFound("Campaign")
		}
		return TaskList{}, fmt.Errorf("load blast %d: %w", blastID, err)
	}
	if b.Status != model.BlastOpen {
		return TaskList{}, conflict("Campaign is closed")
	}

	recipients, err := s.store.Recipients.ListForBlast(ctx, blastID, repo.TaskQuery{AssignedTo: q.AssignedTo})
	if err != nil {
		return TaskList{}, fmt.Errorf("load tasks of blast %d: %w", blastID, err)
	}

	search := strings.ToLower(strings.TrimSpace(q.Search))
	list := TaskList{Blast: b, Tasks: []Task{}}
	for _, r := range recipients {
		t := TaskFromRecipient(r)

		list.Stats.Total++
		switch {
		case t.Completed:
			list.Stats.Completed++
		case t.Failed:
			list.Stats.Failed++
		default:
			list.Stats.Pending++
		}

		if !t.matches(q.Filter) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(t.PhoneE164), search) {
			continue
		}
		list.Tasks = append(list.Tasks, t)
	}
	return list, nil
}

// CompleteTask records that the message was sent to the recipient.
func (s *Service) CompleteTask(ctx context.Context, id int64) (Task, error) {
	r, err := s.store.Recipients.MarkSent(ctx, id)
	if err != nil {
		return Task{}, s.taskError(id, "complete", err)
	}
	slog.Info("task completed", "recipient_id", id)
	return TaskFromRecipient(r), nil
}

// FailTask records that the recipient could not be reached and why.
func (s *Service) FailTask(ctx context.Context, id int64, reason string) (Task, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Task{}, invalid("Failure reason is required")
	}
	if utf8.RuneCountInString(reason) > maxFailReasonLength {
		return Task{}, invalid("Failure reason must be at most %d characters", maxFailReasonLength)
	}

	r, err := s.store.Recipients.MarkFailed(ctx, id, reason)
	if err != nil {
		return Task{}, s.taskError(id, "fail", err)
	}
	slog.Info("task failed", "recipient_id", id)
	return TaskFromRecipient(r), nil
}

// ReopenTask moves a completed task back to pending.
func (s *Service) ReopenTask(ctx context.Context, id int64) (Task, error) {
	r, err := s.store.Recipients.Reopen(ctx, id)
	if err != nil {
		return Task{}, s.taskError(id, "reopen", err)
	}
	slog.Info("task reopened", "recipient_id", id)
	return TaskFromRecipient(r), nil
}

// CompleteAllTasks marks every pending task of an open blast as sent.
func (s *Service) CompleteAllTasks(ctx context.Context, blastID int64) (int64, error) {
	b, err := s.store.Blasts.Get(ctx, blastID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return 0, notFound("Campaign")
		}
		return 0, fmt.Errorf("load blast %d: %w", blastID, err)
	}
	if b.Status != model.BlastOpen {
		return 0, conflict("Campaign is closed")
	}

	n, err := s.store.Recipients.MarkAllSent(ctx, blastID)
	if err != nil {
		return 0, fmt.Errorf("complete all tasks of blast %d: %w", blastID, err)
	}
	slog.Info("all tasks completed", "blast_id", blastID, "count", n)
	return n, nil
}

func (s *Service) taskError(id int64, op string, err error) error {
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return notFound("Task")
	case errors.Is(err, repo.ErrInvalidTransition):
		return conflict("Task cannot be %s from its current state", pastTense(op))
	default:
		return fmt.Errorf("%s task %d: %w", op, id, err)
	}
}

func pastTense(op string) string {
	switch op {
	case "complete":
		return "completed"
	case "fail":
		return "failed"
	default:
		return op + "ed"
	}
}

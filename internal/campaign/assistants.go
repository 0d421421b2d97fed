package campaign

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/LeventeLantos/blast-desk/internal/model"
	"github.com/LeventeLantos/blast-desk/internal/repo"
)

type AddAssistantInput struct {
	DisplayName string
	Code        string
	Notes       string
}

func (s *Service) AddAssistant(ctx context.Context, in AddAssistantInput) (model.Assistant, error) {
	name := strings.TrimSpace(in.DisplayName)
	code := strings.TrimSpace(in.Code)
	if name == "" || code == "" {
		return model.Assistant{}, invalid("Name and code are required")
	}

	var notes *string
	if n := strings.TrimSpace(in.Notes); n != "" {
		notes = &n
	}

	a, err := s.store.Assistants.Create(ctx, name, code, notes)
	if err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return model.Assistant{}, conflict("Code already exists")
		}
		return model.Assistant{}, fmt.Errorf("add assistant: %w", err)
	}
	slog.Info("assistant added", "assistant_id", a.ID)
	return a, nil
}

func (s *Service) ListAssistants(ctx context.Context) ([]model.Assistant, error) {
	out, err := s.store.Assistants.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list assistants: %w", err)
	}
	return out, nil
}

func (s *Service) ToggleAssistant(ctx context.Context, id int64) (model.Assistant, error) {
	a, err := s.store.Assistants.Toggle(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.Assistant{}, notFound("Assistant")
		}
		return model.Assistant{}, fmt.Errorf("toggle assistant %d: %w", id, err)
	}
	return a, nil
}

func (s *Service) SetAssistantActive(ctx context.Context, id int64, active bool) (model.Assistant, error) {
	a, err := s.store.Assistants.SetActive(ctx, id, active)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.Assistant{}, notFound("Assistant")
		}
		return model.Assistant{}, fmt.Errorf("set assistant %d active: %w", id, err)
	}
	return a, nil
}

// DeleteAssistant removes the assistant. Its recipients are unassigned in the
// same transaction, so none is left pointing at a deleted assistant.
func (s *Service) DeleteAssistant(ctx context.Context, id int64) error {
	if err := s.store.Assistants.Delete(ctx, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return notFound("Assistant")
		}
		return fmt.Errorf("delete assistant %d: %w", id, err)
	}
	slog.Info("assistant deleted", "assistant_id", id)
	return nil
}

package campaign

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/LeventeLantos/blast-desk/internal/model"
	"github.com/LeventeLantos/blast-desk/internal/repo"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

type RecipientPage struct {
	Recipients []model.Recipient `json:"recipients"`
	Total      int               `json:"total"`
	Page       int               `json:"page"`
	PageSize   int               `json:"page_size"`
	Pages      int               `json:"pages"`
}

// PageCount is ceil(total/pageSize).
func PageCount(total, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

// LoadRecipients returns one page of a blast's recipients, oldest first.
// Pages are 1-based.
func (s *Service) LoadRecipients(ctx context.Context, blastID int64, page, pageSize int) (RecipientPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	if _, err := s.store.Blasts.Get(ctx, blastID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return RecipientPage{}, notFound("Campaign")
		}
		return RecipientPage{}, fmt.Errorf("load blast %d: %w", blastID, err)
	}

	items, total, err := s.store.Recipients.ListPage(ctx, blastID, pageSize, (page-1)*pageSize)
	if err != nil {
		return RecipientPage{}, fmt.Errorf("load recipients of blast %d: %w", blastID, err)
	}

	return RecipientPage{
		Recipients: items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		Pages:      PageCount(total, pageSize),
	}, nil
}

// AssignRecipients points every recipient in ids at the assistant. Assigning
// the same set twice leaves the same result.
func (s *Service) AssignRecipients(ctx context.Context, ids []int64, assistantID int64) (int64, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return 0, invalid("Select at least one recipient")
	}

	a, err := s.store.Assistants.Get(ctx, assistantID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return 0, notFound("Assistant")
		}
		return 0, fmt.Errorf("load assistant %d: %w", assistantID, err)
	}
	if !a.Active {
		return 0, conflict("Assistant %s is inactive", a.DisplayName)
	}

	n, err := s.store.Recipients.Assign(ctx, ids, assistantID)
	if err != nil {
		return 0, fmt.Errorf("assign recipients: %w", err)
	}
	slog.Info("recipients assigned", "assistant_id", assistantID, "requested", len(ids), "updated", n)
	return n, nil
}

func (s *Service) UnassignRecipients(ctx context.Context, ids []int64) (int64, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return 0, invalid("Select at least one recipient")
	}

	n, err := s.store.Recipients.Unassign(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("unassign recipients: %w", err)
	}
	slog.Info("recipients unassigned", "requested", len(ids), "updated", n)
	return n, nil
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

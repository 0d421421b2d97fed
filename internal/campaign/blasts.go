package campaign

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/LeventeLantos/blast-desk/internal/model"
	"github.com/LeventeLantos/blast-desk/internal/phone"
	"github.com/LeventeLantos/blast-desk/internal/repo"
)

const recentBlastsLimit = 5

type CreateBlastInput struct {
	Message     string
	Phones      []string
	FiltersJSON string
}

type CreateBlastResult struct {
	Blast       model.Blast `json:"blast"`
	Count       int         `json:"count"`
	OverSoftCap bool        `json:"over_soft_cap"`
}

// CreateBlast validates the input and stores the blast together with one
// pending recipient per distinct phone number.
func (s *Service) CreateBlast(ctx context.Context, in CreateBlastInput) (CreateBlastResult, error) {
	message := strings.TrimSpace(in.Message)
	if message == "" {
		return CreateBlastResult{}, invalid("Message is required")
	}

	phones, err := s.normalizePhones(in.Phones)
	if err != nil {
		return CreateBlastResult{}, err
	}
	if len(phones) == 0 {
		return CreateBlastResult{}, invalid("Select at least one recipient")
	}

	var filters *string
	if f := strings.TrimSpace(in.FiltersJSON); f != "" {
		if !json.Valid([]byte(f)) {
			return CreateBlastResult{}, invalid("Invalid filters data")
		}
		filters = &f
	}

	overCap := utf8.RuneCountInString(message) > s.opts.MessageSoftCap
	if overCap {
		slog.Warn("blast message exceeds soft cap",
			"length", utf8.RuneCountInString(message),
			"soft_cap", s.opts.MessageSoftCap,
		)
	}

	b, err := s.store.Blasts.CreateWithRecipients(ctx, repo.NewBlast{
		Message:           message,
		FiltersJSON:       filters,
		CostEstimateCents: int64(len(phones)) * int64(s.opts.CostPerRecipientCents),
	}, phones)
	if err != nil {
		return CreateBlastResult{}, fmt.Errorf("create blast: %w", err)
	}

	slog.Info("blast created", "blast_id", b.ID, "recipients", len(phones))
	return CreateBlastResult{Blast: b, Count: len(phones), OverSoftCap: overCap}, nil
}

// normalizePhones trims, drops blanks, converts to E.164 and removes
// duplicates while keeping first-seen order.
func (s *Service) normalizePhones(raw []string) ([]string, error) {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	var bad []string

	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		n, ok := phone.Normalize(r, s.opts.DefaultCountry)
		if !ok {
			bad = append(bad, r)
			continue
		}
		if _, dup := seen[n.E164]; dup {
			continue
		}
		seen[n.E164] = struct{}{}
		out = append(out, n.E164)
	}

	if len(bad) > 0 {
		return nil, invalid("Invalid phone numbers: %s", strings.Join(bad, ", "))
	}
	return out, nil
}

// ListRecentBlasts returns the newest blasts with their recipient counts.
func (s *Service) ListRecentBlasts(ctx context.Context) ([]model.BlastSummary, error) {
	blasts, err := s.store.Blasts.ListRecent(ctx, recentBlastsLimit)
	if err != nil {
		return nil, fmt.Errorf("list recent blasts: %w", err)
	}

	out := make([]model.BlastSummary, len(blasts))
	g, gctx := errgroup.WithContext(ctx)
	for i, b := range blasts {
		g.Go(func() error {
			counts, err := s.store.Blasts.CountByState(gctx, b.ID)
			if err != nil {
				return fmt.Errorf("count recipients of blast %d: %w", b.ID, err)
			}
			out[i] = model.BlastSummary{Blast: b, RecipientCounts: counts}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListBlasts returns every blast, newest first. status may be empty.
func (s *Service) ListBlasts(ctx context.Context, status string) ([]model.Blast, error) {
	st := model.BlastStatus(status)
	if st != "" && !st.Valid() {
		return nil, invalid("Invalid status %q", status)
	}
	blasts, err := s.store.Blasts.List(ctx, st)
	if err != nil {
		return nil, fmt.Errorf("list blasts: %w", err)
	}
	return blasts, nil
}

func (s *Service) SetBlastStatus(ctx context.Context, id int64, status string) error {
	st := model.BlastStatus(status)
	if !st.Valid() {
		return invalid("Status must be open or closed")
	}
	if err := s.store.Blasts.SetStatus(ctx, id, st); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return notFound("Campaign")
		}
		return fmt.Errorf("set blast %d status: %w", id, err)
	}
	slog.Info("blast status changed", "blast_id", id, "status", st)
	return nil
}

// CloseCompletedBlasts closes every open blast whose recipients have all been
// worked. It is the sweeper's job.
func (s *Service) CloseCompletedBlasts(ctx context.Context) (int64, error) {
	n, err := s.store.Blasts.CloseCompleted(ctx)
	if err != nil {
		return 0, fmt.Errorf("close completed blasts: %w", err)
	}
	if n > 0 {
		slog.Info("closed completed blasts", "count", n)
	}
	return n, nil
}

package repo

import (
	"context"
	"errors"
	"time"

	"github.com/LeventeLantos/blast-desk/internal/model"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicate         = errors.New("duplicate")
	ErrInvalidTransition = errors.New("invalid state transition")
)

type NewBlast struct {
	Message           string
	FiltersJSON       *string
	CostEstimateCents int64
}

type BlastRepository interface {
	// CreateWithRecipients inserts the blast and one pending recipient per
	// phone atomically.
	CreateWithRecipients(ctx context.Context, b NewBlast, phones []string) (model.Blast, error)
	Get(ctx context.Context, id int64) (model.Blast, error)
	ListRecent(ctx context.Context, limit int) ([]model.Blast, error)
	// List returns blasts newest first; an empty status means all.
	List(ctx context.Context, status model.BlastStatus) ([]model.Blast, error)
	CountByState(ctx context.Context, blastID int64) (model.RecipientCounts, error)
	SetStatus(ctx context.Context, id int64, status model.BlastStatus) error
	// CloseCompleted closes open blasts that have recipients and none pending.
	CloseCompleted(ctx context.Context) (int64, error)
}

type AssistantRepository interface {
	Create(ctx context.Context, displayName, code string, notes *string) (model.Assistant, error)
	Get(ctx context.Context, id int64) (model.Assistant, error)
	List(ctx context.Context) ([]model.Assistant, error)
	SetActive(ctx context.Context, id int64, active bool) (model.Assistant, error)
	Toggle(ctx context.Context, id int64) (model.Assistant, error)
	// Delete unassigns the assistant's recipients and removes it atomically.
	Delete(ctx context.Context, id int64) error
}

// TaskQuery narrows a blast's recipients. A nil AssignedTo means everyone.
type TaskQuery struct {
	AssignedTo *int64
}

type RecipientRepository interface {
	Get(ctx context.Context, id int64) (model.Recipient, error)
	ListPage(ctx context.Context, blastID int64, limit, offset int) ([]model.Recipient, int, error)
	ListForBlast(ctx context.Context, blastID int64, q TaskQuery) ([]model.Recipient, error)
	Assign(ctx context.Context, ids []int64, assistantID int64) (int64, error)
	Unassign(ctx context.Context, ids []int64) (int64, error)
	MarkSent(ctx context.Context, id int64) (model.Recipient, error)
	MarkFailed(ctx context.Context, id int64, reason string) (model.Recipient, error)
	Reopen(ctx context.Context, id int64) (model.Recipient, error)
	MarkAllSent(ctx context.Context, blastID int64) (int64, error)
}

type ContactFilter struct {
	PhoneContains string
	From          *time.Time
	// To is exclusive.
	To *time.Time
}

type ContactRepository interface {
	// Insert stores contacts, skipping phones already known, and returns how
	// many rows were new.
	Insert(ctx context.Context, contacts []model.Contact) (int, error)
	List(ctx context.Context, f ContactFilter) ([]model.Contact, error)
}

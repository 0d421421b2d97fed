// Package campaign holds the blast workflow: admin blast creation, the
// assistant task view, the max console's assistant and assignment management,
// and contact import/export. Validation happens here; persistence is delegated
// to the repositories in Store.
package campaign

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/LeventeLantos/blast-desk/internal/repo"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
)

// UserError carries a message that is safe to show to the caller. Kind is one
// of ErrValidation, ErrNotFound or ErrConflict.
type UserError struct {
	Kind error
	Msg  string
}

func (e *UserError) Error() string { return e.Msg }
func (e *UserError) Unwrap() error { return e.Kind }

func invalid(format string, args ...any) error {
	return &UserError{Kind: ErrValidation, Msg: fmt.Sprintf(format, args...)}
}

func notFound(what string) error {
	return &UserError{Kind: ErrNotFound, Msg: what + " not found"}
}

func conflict(format string, args ...any) error {
	return &UserError{Kind: ErrConflict, Msg: fmt.Sprintf(format, args...)}
}

type Store struct {
	Blasts     repo.BlastRepository
	Assistants repo.AssistantRepository
	Recipients repo.RecipientRepository
	Contacts   repo.ContactRepository
}

// NewPostgresStore wires every repository to the same database handle.
func NewPostgresStore(db *sql.DB) Store {
	return Store{
		Blasts:     repo.NewPostgresBlastRepo(db),
		Assistants: repo.NewPostgresAssistantRepo(db),
		Recipients: repo.NewPostgresRecipientRepo(db),
		Contacts:   repo.NewPostgresContactRepo(db),
	}
}

const (
	DefaultMessageSoftCap        = 160
	DefaultCostPerRecipientCents = 10
)

type Options struct {
	DefaultCountry        string
	MessageSoftCap        int
	CostPerRecipientCents int
}

func (o Options) withDefaults() Options {
	if o.DefaultCountry == "" {
		o.DefaultCountry = "US"
	}
	if o.MessageSoftCap <= 0 {
		o.MessageSoftCap = DefaultMessageSoftCap
	}
	if o.CostPerRecipientCents <= 0 {
		o.CostPerRecipientCents = DefaultCostPerRecipientCents
	}
	return o
}

type Service struct {
	store Store
	opts  Options
}

func NewService(store Store, opts Options) *Service {
	return &Service{
		store: store,
		opts:  opts.withDefaults(),
	}
}

// Package memrepo is an in-memory campaign store with the same semantics as
// the Postgres repositories. Tests use it in place of a database.
package memrepo

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/LeventeLantos/blast-desk/internal/model"
	"github.com/LeventeLantos/blast-desk/internal/repo"
)

type data struct {
	mu sync.Mutex

	now func() time.Time

	nextID     int64
	blasts     map[int64]model.Blast
	recipients map[int64]model.Recipient
	assistants map[int64]model.Assistant
	contacts   map[string]model.Contact

	// Err, when set, is returned by every call.
	err error
}

type Store struct {
	d *data

	Blasts     *Blasts
	Assistants *Assistants
	Recipients *Recipients
	Contacts   *Contacts
}

func New() *Store {
	d := &data{
		blasts:     map[int64]model.Blast{},
		recipients: map[int64]model.Recipient{},
		assistants: map[int64]model.Assistant{},
		contacts:   map[string]model.Contact{},
	}
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var tick int64
	d.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	return &Store{
		d:          d,
		Blasts:     &Blasts{d},
		Assistants: &Assistants{d},
		Recipients: &Recipients{d},
		Contacts:   &Contacts{d},
	}
}

// FailWith makes every subsequent call return err. Pass nil to reset.
func (s *Store) FailWith(err error) {
	s.d.mu.Lock()
	s.d.err = err
	s.d.mu.Unlock()
}

func (d *data) id() int64 {
	d.nextID++
	return d.nextID
}

func (d *data) lock() error {
	d.mu.Lock()
	return d.err
}

func (d *data) withName(r model.Recipient) model.Recipient {
	r.AssistantName = nil
	if r.AssignedTo != nil {
		if a, ok := d.assistants[*r.AssignedTo]; ok {
			name := a.DisplayName
			r.AssistantName = &name
		}
	}
	return r
}

func (d *data) sortedRecipients(blastID int64) []model.Recipient {
	out := []model.Recipient{}
	for _, r := range d.recipients {
		if r.BlastID == blastID {
			out = append(out, d.withName(r))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

type Blasts struct{ d *data }

func (b *Blasts) CreateWithRecipients(_ context.Context, nb repo.NewBlast, phones []string) (model.Blast, error) {
	d := b.d
	if err := d.lock(); err != nil {
		d.mu.Unlock()
		return model.Blast{}, err
	}
	defer d.mu.Unlock()

	seen := map[string]struct{}{}
	for _, p := range phones {
		if _, dup := seen[p]; dup {
			return model.Blast{}, fmt.Errorf("phone %s: %w", p, repo.ErrDuplicate)
		}
		seen[p] = struct{}{}
	}

	blast := model.Blast{
		ID:                d.id(),
		Message:           nb.Message,
		Status:            model.BlastOpen,
		FiltersJSON:       nb.FiltersJSON,
		CostEstimateCents: nb.CostEstimateCents,
		CreatedAt:         d.now(),
	}
	d.blasts[blast.ID] = blast
	for _, p := range phones {
		r := model.Recipient{
			ID:        d.id(),
			BlastID:   blast.ID,
			PhoneE164: p,
			State:     model.Pending,
			CreatedAt: blast.CreatedAt,
		}
		d.recipients[r.ID] = r
	}
	return blast, nil
}

func (b *Blasts) Get(_ context.Context, id int64) (model.Blast, error) {
	d := b.d
	if err := d.lock(); err != nil {
		d.mu.Unlock()
		return model.Blast{}, err
	}
	defer d.mu.Unlock()

	blast, ok := d.blasts[id]
	if !ok {
		return model.Blast{}, repo.ErrNotFound
	}
	return blast, nil
}

func (b *Blasts) ListRecent(ctx context.Context, limit int) ([]model.Blast, error) {
	all, err := b.List(ctx, "")
	if err != nil {
		return nil, err
	}
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (b *Blasts) List(_ context.Context, status model.BlastStatus) ([]model.Blast, error) {
	d := b.d
	if err := d.lock(); err != nil {
		d.mu.Unlock()
		return nil, err
	}
	defer d.mu.Unlock()

	out := []model.Blast{}
	for _, blast := range d.blasts {
		if status == "" || blast.Status == status {
			out = append(out, blast)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (b *Blasts) CountByState(_ context.Context, blastID int64) (model.RecipientCounts, error) {
	d := b.d
	if err := d.lock(); err != nil {
		d.mu.Unlock()
		return model.RecipientCounts{}, err
	}
	defer d.mu.Unlock()

	var c model.RecipientCounts
	for _, r := range d.recipients {
		if r.BlastID != blastID {
			continue
		}
		switch r.State {
		case model.Pending:
			c.Pending++
		case model.Sent:
			c.Sent++
		case model.Deleted:
			c.Deleted++
		}
	}
	return c, nil
}

func (b *Blasts) SetStatus(_ context.Context, id int64, status model.BlastStatus) error {
	d := b.d
	if err := d.lock(); err != nil {
		d.mu.Unlock()
		return err
	}
	defer d.mu.Unlock()

	blast, ok := d.blasts[id]
	if !ok {
		return repo.ErrNotFound
	}
	blast.Status = status
	d.blasts[id] = blast
	return nil
}

func (b *Blasts) CloseCompleted(_ context.Context) (int64, error) {
	d := b.d
	if err := d.lock(); err != nil {
		d.mu.Unlock()
		return 0, err
	}
	defer d.mu.Unlock()

	total := map[int64]int{}
	pending := map[int64]int{}
	for _, r := range d.recipients {
		total[r.BlastID]++
		if r.State == model.Pending {
			pending[r.BlastID]++
		}
	}

	var n int64
	for id, blast := range d.blasts {
		if blast.Status == model.BlastOpen && total[id] > 0 && pending[id] == 0 {
			blast.Status = model.BlastClosed
			d.blasts[id] = blast
			n++
		}
	}
	return n, nil
}

type Assistants struct{ d *data }

func (a *Assistants) Create(_ context.Context, displayName, code string, notes *string) (model.Assistant, error) {
	d := a.d
	if err := d.lock(); err != nil {
		d.mu.Unlock()
		return model.Assistant{}, err
	}
	defer d.mu.Unlock()

	for _, existing := range d.assistants {
		if existing.Code == code {
			return model.Assistant{}, fmt.Errorf("assistant code %q: %w", code, repo.ErrDuplicate)
		}
	}
	as := model.Assistant{
		ID:          d.id(),
		DisplayName: displayName,
		Code:        code,
		Active:      true,
		Notes:       notes,
		CreatedAt:   d.now(),
	}
	d.assistants[as.ID] = as
	return as, nil
}

func (a *Assistants) Get(_ context.Context, id int64) (model.Assistant, error) {
	d := a.d
	if err := d.lock(); err != nil {
		d.mu.Unlock()
		return model.Assistant{}, err
	}
	defer d.mu.Unlock()

	as, ok := d.assistants[id]
	if !ok {
		return model.Assistant{}, repo.ErrNotFound
	}
	return as, nil
}

func (a *Assistants) List(_ context.Context) ([]model.Assistant, error) {
	d := a.d
	if err := d.lock(); err != nil {
		d.mu.Unlock()
		return nil, err
	}
	defer d.mu.Unlock()

	out := []model.Assistant{}
	for _, as := range d.assistants {
		out = append(out, as)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (a *Assistants) SetActive(_ context.Context, id int64, active bool) (model.Assistant, error) {
	d := a.d
	if err := d.lock(); err != nil {
		d.mu.Unlock()
		return model.Assistant{}, err
	}
	defer d.mu.Unlock()

	as, ok := d.assistants[id]
	if !ok {
		return model.Assistant{}, repo.ErrNotFound
	}
	as.Active = active
	d.assistants[id] = as
	return as, nil
}

func (a *Assistants) Toggle(ctx context.Context, id int64) (model.Assistant, error) {
	as, err := a.Get(ctx, id)
	if err != nil {
		return model.Assistant{}, err
	}
	return a.SetActive(ctx, id, !as.Active)
}

func (a *Assistants) Delete(_ context.Context, id int64) error {
	d := a.d
	if err := d.lock(); err != nil {
		d.mu.Unlock()
		return err
	}
	defer d.mu.Unlock()

	if _, ok := d.assistants[id]; !ok {
		return repo.ErrNotFound
	}
	for rid, r := range d.recipients {
		if r.AssignedTo != nil && *r.AssignedTo == id {
			r.AssignedTo = nil
			d.recipients[rid] = r
		}
	}
	delete(d.assistants, id)
	return nil
}

type Recipients struct{ d *data }

func (rr *Recipients) Get(_ context.Context, id int64) (model.Recipient, error) {
	d := rr.d
	if err := d.lock(); err != nil {
		d.mu.Unlock()
		return model.Recipient{}, err
	}
	defer d.mu.Unlock()

	r, ok := d.recipients[id]
	if !ok {
		return model.Recipient{}, repo.ErrNotFound
	}
	return d.withName(r), nil
}

func (rr *Recipients) ListPage(_ context.Context, blastID int64, limit, offset int) ([]model.Recipient, int, error) {
	d := rr.d
	if err := d.lock(); err != nil {
		d.mu.Unlock()
		return nil, 0, err
	}
	defer d.mu.Unlock()

	all := d.sortedRecipients(blastID)
	total := len(all)
	if offset >= total {
		return []model.Recipient{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (rr *Recipients) ListForBlast(_ context.Context, blastID int64, q repo.TaskQuery) ([]model.Recipient, error) {
	d := rr.d
	if err := d.lock(); err != nil {
		d.mu.Unlock()
		return nil, err
	}
	defer d.mu.Unlock()

	out := []model.Recipient{}
	for _, r := range d.sortedRecipients(blastID) {
		if q.AssignedTo != nil && (r.AssignedTo == nil || *r.AssignedTo != *q.AssignedTo) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (rr *Recipients) setAssignee(ids []int64, to *int64) (int64, error) {
	d := rr.d
	if err := d.lock(); err != nil {
		d.mu.Unlock()
		return 0, err
	}
	defer d.mu.Unlock()

	var n int64
	for _, id := range ids {
		r, ok := d.recipients[id]
		if !ok {
			continue
		}
		r.AssignedTo = to
		d.recipients[id] = r
		n++
	}
	return n, nil
}

func (rr *Recipients) Assign(_ context.Context, ids []int64, assistantID int64) (int64, error) {
	return rr.setAssignee(ids, &assistantID)
}

func (rr *Recipients) Unassign(_ context.Context, ids []int64) (int64, error) {
	return rr.setAssignee(ids, nil)
}

func (rr *Recipients) transition(id int64, from model.RecipientState, apply func(*model.Recipient)) (model.Recipient, error) {
	d := rr.d
	if err := d.lock(); err != nil {
		d.mu.Unlock()
		return model.Recipient{}, err
	}
	defer d.mu.Unlock()

	r, ok := d.recipients[id]
	if !ok {
		return model.Recipient{}, repo.ErrNotFound
	}
	if r.State != from {
		return d.withName(r), fmt.Errorf("recipient %d is %s, want %s: %w", id, r.State, from, repo.ErrInvalidTransition)
	}
	apply(&r)
	d.recipients[id] = r
	return d.withName(r), nil
}

func (rr *Recipients) MarkSent(_ context.Context, id int64) (model.Recipient, error) {
	return rr.transition(id, model.Pending, func(r *model.Recipient) {
		now := rr.d.now()
		r.State = model.Sent
		r.CompletedAt = &now
		r.FailedReason = nil
	})
}

func (rr *Recipients) MarkFailed(_ context.Context, id int64, reason string) (model.Recipient, error) {
	return rr.transition(id, model.Pending, func(r *model.Recipient) {
		r.State = model.Deleted
		r.FailedReason = &reason
		r.CompletedAt = nil
	})
}

func (rr *Recipients) Reopen(_ context.Context, id int64) (model.Recipient, error) {
	return rr.transition(id, model.Sent, func(r *model.Recipient) {
		r.State = model.Pending
		r.CompletedAt = nil
	})
}

func (rr *Recipients) MarkAllSent(_ context.Context, blastID int64) (int64, error) {
	d := rr.d
	if err := d.lock(); err != nil {
		d.mu.Unlock()
		return 0, err
	}
	defer d.mu.Unlock()

	var n int64
	for id, r := range d.recipients {
		if r.BlastID == blastID && r.State == model.Pending {
			now := d.now()
			r.State = model.Sent
			r.CompletedAt = &now
			d.recipients[id] = r
			n++
		}
	}
	return n, nil
}

type Contacts struct{ d *data }

func (c *Contacts) Insert(_ context.Context, contacts []model.Contact) (int, error) {
	d := c.d
	if err := d.lock(); err != nil {
		d.mu.Unlock()
		return 0, err
	}
	defer d.mu.Unlock()

	inserted := 0
	for _, ct := range contacts {
		if _, exists := d.contacts[ct.PhoneE164]; exists {
			continue
		}
		ct.ID = d.id()
		if ct.ReceivedAt.IsZero() {
			ct.ReceivedAt = d.now()
		}
		d.contacts[ct.PhoneE164] = ct
		inserted++
	}
	return inserted, nil
}

func (c *Contacts) List(_ context.Context, f repo.ContactFilter) ([]model.Contact, error) {
	d := c.d
	if err := d.lock(); err != nil {
		d.mu.Unlock()
		return nil, err
	}
	defer d.mu.Unlock()

	out := []model.Contact{}
	for _, ct := range d.contacts {
		if f.PhoneContains != "" && !strings.Contains(ct.PhoneE164, f.PhoneContains) {
			continue
		}
		if f.From != nil && ct.ReceivedAt.Before(*f.From) {
			continue
		}
		if f.To != nil && !ct.ReceivedAt.Before(*f.To) {
			continue
		}
		out = append(out, ct)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ReceivedAt.Equal(out[j].ReceivedAt) {
			return out[i].ReceivedAt.After(out[j].ReceivedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

var (
	_ repo.BlastRepository     = (*Blasts)(nil)
	_ repo.AssistantRepository = (*Assistants)(nil)
	_ repo.RecipientRepository = (*Recipients)(nil)
	_ repo.ContactRepository   = (*Contacts)(nil)
)

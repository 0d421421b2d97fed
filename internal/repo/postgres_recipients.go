package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/LeventeLantos/blast-desk/internal/model"
)

type PostgresRecipientRepo struct {
	db *sql.DB
}

func NewPostgresRecipientRepo(db *sql.DB) *PostgresRecipientRepo {
	return &PostgresRecipientRepo{db: db}
}

const recipientSelect = `
	SELECT r.id, r.blast_id, r.phone_e164, r.state, r.assigned_to, a.display_name,
	       r.failed_reason, r.completed_at, r.created_at
	FROM blast_recipients r
	LEFT JOIN assistants a ON a.id = r.assigned_to
`

func (r *PostgresRecipientRepo) Get(ctx context.Context, id int64) (model.Recipient, error) {
	rec, err := scanRecipient(r.db.QueryRowContext(ctx, recipientSelect+` WHERE r.id = $1`, id))
	if err != nil {
		return model.Recipient{}, notFound(err)
	}
	return rec, nil
}

func (r *PostgresRecipientRepo) ListPage(ctx context.Context, blastID int64, limit, offset int) ([]model.Recipient, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `
		SELECT count(*) FROM blast_recipients WHERE blast_id = $1
	`, blastID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx, recipientSelect+`
		WHERE r.blast_id = $1
		ORDER BY r.created_at ASC, r.id ASC
		LIMIT $2 OFFSET $3
	`, blastID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	items, err := collectRecipients(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *PostgresRecipientRepo) ListForBlast(ctx context.Context, blastID int64, q TaskQuery) ([]model.Recipient, error) {
	where := []string{"r.blast_id = $1"}
	args := []any{blastID}
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if q.AssignedTo != nil {
		add("r.assigned_to = $%d", *q.AssignedTo)
	}

	rows, err := r.db.QueryContext(ctx, recipientSelect+`
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY r.created_at ASC, r.id ASC
	`, args...)
	if err != nil {
		return nil, err
	}
	return collectRecipients(rows)
}

func (r *PostgresRecipientRepo) Assign(ctx context.Context, ids []int64, assistantID int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE blast_recipients SET assigned_to = $2 WHERE id = ANY($1::bigint[])
	`, ids, assistantID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *PostgresRecipientRepo) Unassign(ctx context.Context, ids []int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE blast_recipients SET assigned_to = NULL WHERE id = ANY($1::bigint[])
	`, ids)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *PostgresRecipientRepo) MarkSent(ctx context.Context, id int64) (model.Recipient, error) {
	return r.transition(ctx, id, model.Pending, `
		UPDATE blast_recipients
		SET state = 'sent', completed_at = now(), failed_reason = NULL
		WHERE id = $1 AND state = 'pending'
	`)
}

func (r *PostgresRecipientRepo) MarkFailed(ctx context.Context, id int64, reason string) (model.Recipient, error) {
	return r.transition(ctx, id, model.Pending, `
		UPDATE blast_recipients
		SET state = 'deleted', failed_reason = $2, completed_at = NULL
		WHERE id = $1 AND state = 'pending'
	`, reason)
}

func (r *PostgresRecipientRepo) Reopen(ctx context.Context, id int64) (model.Recipient, error) {
	return r.transition(ctx, id, model.Sent, `
		UPDATE blast_recipients
		SET state = 'pending', completed_at = NULL
		WHERE id = $1 AND state = 'sent'
	`)
}

func (r *PostgresRecipientRepo) MarkAllSent(ctx context.Context, blastID int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE blast_recipients
		SET state = 'sent', completed_at = now()
		WHERE blast_id = $1 AND state = 'pending'
	`, blastID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// transition runs a state-guarded update. When no row matches it tells a
// missing recipient apart from one in the wrong state.
func (r *PostgresRecipientRepo) transition(ctx context.Context, id int64, from model.RecipientState, update string, args ...any) (model.Recipient, error) {
	res, err := r.db.ExecContext(ctx, update, append([]any{id}, args...)...)
	if err != nil {
		return model.Recipient{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.Recipient{}, err
	}

	rec, err := r.Get(ctx, id)
	if err != nil {
		return model.Recipient{}, err
	}
	if n == 0 {
		return rec, fmt.Errorf("recipient %d is %s, want %s: %w", id, rec.State, from, ErrInvalidTransition)
	}
	return rec, nil
}

func scanRecipient(s rowScanner) (model.Recipient, error) {
	var (
		rec          model.Recipient
		state        string
		assignedTo   sql.NullInt64
		assistant    sql.NullString
		failedReason sql.NullString
		completedAt  sql.NullTime
	)
	if err := s.Scan(
		&rec.ID,
		&rec.BlastID,
		&rec.PhoneE164,
		&state,
		&assignedTo,
		&assistant,
		&failedReason,
		&completedAt,
		&rec.CreatedAt,
	); err != nil {
		return model.Recipient{}, err
	}
	rec.State = model.RecipientState(state)
	rec.AssignedTo = int64Ptr(assignedTo)
	rec.AssistantName = stringPtr(assistant)
	rec.FailedReason = stringPtr(failedReason)
	rec.CompletedAt = timePtr(completedAt)
	return rec, nil
}

func collectRecipients(rows *sql.Rows) ([]model.Recipient, error) {
	defer rows.Close()

	out := []model.Recipient{}
	for rows.Next() {
		rec, err := scanRecipient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}


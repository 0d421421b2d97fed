package repo

import (
	"context"
	"database/sql"

	"github.com/LeventeLantos/blast-desk/internal/model"
)

type PostgresBlastRepo struct {
	db *sql.DB
}

func NewPostgresBlastRepo(db *sql.DB) *PostgresBlastRepo {
	return &PostgresBlastRepo{db: db}
}

const blastColumns = `id, message, status, filters_json, cost_estimate_cents, created_at`

func (r *PostgresBlastRepo) CreateWithRecipients(ctx context.Context, nb NewBlast, phones []string) (model.Blast, error) {
	b := model.Blast{
		Message:           nb.Message,
		Status:            model.BlastOpen,
		FiltersJSON:       nb.FiltersJSON,
		CostEstimateCents: nb.CostEstimateCents,
	}

	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, `
			INSERT INTO blasts (message, status, filters_json, cost_estimate_cents)
			VALUES ($1, $2, $3, $4)
			RETURNING id, created_at
		`, nb.Message, string(model.BlastOpen), nb.FiltersJSON, nb.CostEstimateCents).Scan(&b.ID, &b.CreatedAt); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO blast_recipients (blast_id, phone_e164, state)
			SELECT $1, phone, 'pending'
			FROM unnest($2::text[]) WITH ORDINALITY AS p(phone, ord)
			ORDER BY ord
		`, b.ID, phones)
		return err
	})
	if err != nil {
		return model.Blast{}, err
	}
	return b, nil
}

func (r *PostgresBlastRepo) Get(ctx context.Context, id int64) (model.Blast, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+blastColumns+` FROM blasts WHERE id = $1`, id)
	b, err := scanBlast(row)
	if err != nil {
		return model.Blast{}, notFound(err)
	}
	return b, nil
}

func (r *PostgresBlastRepo) ListRecent(ctx context.Context, limit int) ([]model.Blast, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+blastColumns+`
		FROM blasts
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	return collectBlasts(rows)
}

func (r *PostgresBlastRepo) List(ctx context.Context, status model.BlastStatus) ([]model.Blast, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if status == "" {
		rows, err = r.db.QueryContext(ctx, `
			SELECT `+blastColumns+`
			FROM blasts
			ORDER BY created_at DESC, id DESC
		`)
	} else {
		rows, err = r.db.QueryContext(ctx, `
			SELECT `+blastColumns+`
			FROM blasts
			WHERE status = $1
			ORDER BY created_at DESC, id DESC
		`, string(status))
	}
	if err != nil {
		return nil, err
	}
	return collectBlasts(rows)
}

func (r *PostgresBlastRepo) CountByState(ctx context.Context, blastID int64) (model.RecipientCounts, error) {
	var c model.RecipientCounts
	err := r.db.QueryRowContext(ctx, `
		SELECT
			count(*) FILTER (WHERE state = 'pending'),
			count(*) FILTER (WHERE state = 'sent'),
			count(*) FILTER (WHERE state = 'deleted')
		FROM blast_recipients
		WHERE blast_id = $1
	`, blastID).Scan(&c.Pending, &c.Sent, &c.Deleted)
	return c, err
}

func (r *PostgresBlastRepo) SetStatus(ctx context.Context, id int64, status model.BlastStatus) error {
	res, err := r.db.ExecContext(ctx, `UPDATE blasts SET status = $2 WHERE id = $1`, id, string(status))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresBlastRepo) CloseCompleted(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE blasts b
		SET status = 'closed'
		WHERE b.status = 'open'
		  AND EXISTS (SELECT 1 FROM blast_recipients r WHERE r.blast_id = b.id)
		  AND NOT EXISTS (
			SELECT 1 FROM blast_recipients r
			WHERE r.blast_id = b.id AND r.state = 'pending'
		  )
	`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBlast(s rowScanner) (model.Blast, error) {
	var (
		b       model.Blast
		status  string
		filters sql.NullString
	)
	if err := s.Scan(&b.ID, &b.Message, &status, &filters, &b.CostEstimateCents, &b.CreatedAt); err != nil {
		return model.Blast{}, err
	}
	b.Status = model.BlastStatus(status)
	b.FiltersJSON = stringPtr(filters)
	return b, nil
}

func collectBlasts(rows *sql.Rows) ([]model.Blast, error) {
	defer rows.Close()

	out := []model.Blast{}
	for rows.Next() {
		b, err := scanBlast(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

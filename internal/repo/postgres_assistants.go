package repo

import (
	"context"
	"database/sql"

	"github.com/LeventeLantos/blast-desk/internal/model"
)

type PostgresAssistantRepo struct {
	db *sql.DB
}

func NewPostgresAssistantRepo(db *sql.DB) *PostgresAssistantRepo {
	return &PostgresAssistantRepo{db: db}
}

const assistantColumns = `id, display_name, code, active, notes, created_at`

func (r *PostgresAssistantRepo) Create(ctx context.Context, displayName, code string, notes *string) (model.Assistant, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO assistants (display_name, code, active, notes)
		VALUES ($1, $2, TRUE, $3)
		RETURNING `+assistantColumns, displayName, code, notes)
	a, err := scanAssistant(row)
	if err != nil {
		if isUniqueViolation(err) {
			return model.Assistant{}, ErrDuplicate
		}
		return model.Assistant{}, err
	}
	return a, nil
}

func (r *PostgresAssistantRepo) Get(ctx context.Context, id int64) (model.Assistant, error) {
	a, err := scanAssistant(r.db.QueryRowContext(ctx, `SELECT `+assistantColumns+` FROM assistants WHERE id = $1`, id))
	if err != nil {
		return model.Assistant{}, notFound(err)
	}
	return a, nil
}

func (r *PostgresAssistantRepo) List(ctx context.Context) ([]model.Assistant, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+assistantColumns+`
		FROM assistants
		ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Assistant{}
	for rows.Next() {
		a, err := scanAssistant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *PostgresAssistantRepo) SetActive(ctx context.Context, id int64, active bool) (model.Assistant, error) {
	a, err := scanAssistant(r.db.QueryRowContext(ctx, `
		UPDATE assistants SET active = $2 WHERE id = $1
		RETURNING `+assistantColumns, id, active))
	if err != nil {
		return model.Assistant{}, notFound(err)
	}
	return a, nil
}

func (r *PostgresAssistantRepo) Toggle(ctx context.Context, id int64) (model.Assistant, error) {
	a, err := scanAssistant(r.db.QueryRowContext(ctx, `
		UPDATE assistants SET active = NOT active WHERE id = $1
		RETURNING `+assistantColumns, id))
	if err != nil {
		return model.Assistant{}, notFound(err)
	}
	return a, nil
}

func (r *PostgresAssistantRepo) Delete(ctx context.Context, id int64) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			UPDATE blast_recipients SET assigned_to = NULL WHERE assigned_to = $1
		`, id); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM assistants WHERE id = $1`, id)
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
	})
}

func scanAssistant(s rowScanner) (model.Assistant, error) {
	var (
		a     model.Assistant
		notes sql.NullString
	)
	if err := s.Scan(&a.ID, &a.DisplayName, &a.Code, &a.Active, &notes, &a.CreatedAt); err != nil {
		return model.Assistant{}, err
	}
	a.Notes = stringPtr(notes)
	return a, nil
}

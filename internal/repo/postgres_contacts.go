package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/LeventeLantos/blast-desk/internal/model"
)

type PostgresContactRepo struct {
	db *sql.DB
}

func NewPostgresContactRepo(db *sql.DB) *PostgresContactRepo {
	return &PostgresContactRepo{db: db}
}

func (r *PostgresContactRepo) Insert(ctx context.Context, contacts []model.Contact) (int, error) {
	if len(contacts) == 0 {
		return 0, nil
	}

	inserted := 0
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO contacts (phone_e164, keyword, raw_text, country_iso2, received_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (phone_e164) DO NOTHING
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		now := time.Now().UTC()
		for _, c := range contacts {
			receivedAt := c.ReceivedAt
			if receivedAt.IsZero() {
				receivedAt = now
			}
			res, err := stmt.ExecContext(ctx, c.PhoneE164, c.Keyword, c.RawText, c.CountryISO2, receivedAt)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			inserted += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

func (r *PostgresContactRepo) List(ctx context.Context, f ContactFilter) ([]model.Contact, error) {
	where := []string{"1=1"}
	args := []any{}
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.PhoneContains != "" {
		add(`phone_e164 LIKE $%d ESCAPE '\'`, containsPattern(f.PhoneContains))
	}
	if f.From != nil {
		add("received_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("received_at < $%d", *f.To)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, phone_e164, keyword, raw_text, country_iso2, received_at
		FROM contacts
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY received_at DESC, id DESC
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Contact{}
	for rows.Next() {
		var (
			c                         model.Contact
			keyword, rawText, country sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.PhoneE164, &keyword, &rawText, &country, &c.ReceivedAt); err != nil {
			return nil, err
		}
		c.Keyword = stringPtr(keyword)
		c.RawText = stringPtr(rawText)
		c.CountryISO2 = stringPtr(country)
		out = append(out, c)
	}
	return out, rows.Err()
}

package repo

import (
	"context"
	"database/sql"
	"fmt"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS blasts (
  id BIGSERIAL PRIMARY KEY,
  message TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'open' CHECK (status IN ('open', 'closed')),
  filters_json TEXT NULL,
  cost_estimate_cents BIGINT NOT NULL DEFAULT 0,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_blasts_created_at ON blasts (created_at DESC);

CREATE TABLE IF NOT EXISTS assistants (
  id BIGSERIAL PRIMARY KEY,
  display_name TEXT NOT NULL,
  code TEXT NOT NULL UNIQUE,
  active BOOLEAN NOT NULL DEFAULT TRUE,
  notes TEXT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS blast_recipients (
  id BIGSERIAL PRIMARY KEY,
  blast_id BIGINT NOT NULL REFERENCES blasts(id),
  phone_e164 TEXT NOT NULL,
  state TEXT NOT NULL DEFAULT 'pending' CHECK (state IN ('pending', 'sent', 'deleted')),
  assigned_to BIGINT NULL REFERENCES assistants(id) ON DELETE SET NULL,
  failed_reason TEXT NULL,
  completed_at TIMESTAMPTZ NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  UNIQUE (blast_id, phone_e164)
);

ALTER TABLE blast_recipients ADD COLUMN IF NOT EXISTS failed_reason TEXT NULL;
ALTER TABLE blast_recipients ADD COLUMN IF NOT EXISTS completed_at TIMESTAMPTZ NULL;

CREATE INDEX IF NOT EXISTS idx_blast_recipients_blast_state ON blast_recipients (blast_id, state);
CREATE INDEX IF NOT EXISTS idx_blast_recipients_assigned_to ON blast_recipients (assigned_to);

CREATE TABLE IF NOT EXISTS contacts (
  id BIGSERIAL PRIMARY KEY,
  phone_e164 TEXT NOT NULL UNIQUE,
  keyword TEXT NULL,
  raw_text TEXT NULL,
  country_iso2 TEXT NULL,
  received_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_contacts_received_at ON contacts (received_at DESC);
`

// Migrate applies the schema. It is safe to run on every start.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

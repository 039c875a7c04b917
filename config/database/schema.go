package database

import (
	"context"
	"database/sql"
	"fmt"

	"papanskor/pkg/logger"
)

type schemaStep struct {
	Name string
	SQL  string
}

var schema = []schemaStep{
	{
		Name: "create_table_scoreboards",
		SQL: `CREATE TABLE IF NOT EXISTS scoreboards (
  id                TEXT        PRIMARY KEY,
  owner_id          TEXT        NOT NULL,
  title             TEXT        NOT NULL DEFAULT '',
  subtitle          TEXT        NOT NULL DEFAULT '',
  side_a_label      TEXT        NOT NULL DEFAULT '',
  side_b_label      TEXT        NOT NULL DEFAULT '',
  side_a_score      INTEGER     NOT NULL DEFAULT 0 CHECK (side_a_score >= 0),
  side_b_score      INTEGER     NOT NULL DEFAULT 0 CHECK (side_b_score >= 0),
  style             TEXT        NOT NULL DEFAULT '',
  title_visible     BOOLEAN     NOT NULL DEFAULT TRUE,
  center_text_color TEXT        NOT NULL DEFAULT '',
  logo_url          TEXT        NOT NULL DEFAULT '',
  document_type     TEXT        NOT NULL DEFAULT 'classic',
  side_a_icon       TEXT        NOT NULL DEFAULT '',
  side_b_icon       TEXT        NOT NULL DEFAULT '',
  layout            JSONB,
  version           BIGINT      NOT NULL DEFAULT 1,
  last_modified_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  view_token        TEXT        NOT NULL UNIQUE,
  control_token     TEXT        NOT NULL UNIQUE
);`,
	},
	{
		Name: "create_index_scoreboards_owner",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_scoreboards_owner ON scoreboards (owner_id, last_modified_at DESC);`,
	},
}

// EnsureSchema applies every step; each is idempotent.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, step := range schema {
		if _, err := db.ExecContext(ctx, step.SQL); err != nil {
			return fmt.Errorf("schema step %s: %w", step.Name, err)
		}
		logger.Sugar.Debugf("Schema step %s applied", step.Name)
	}
	return nil
}

// Package storage mirrors the import log into SQLite so imported targets
// can be queried across runs.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/khulnasoft-lab/vulnmap-api-import/pkg/targets"
	_ "modernc.org/sqlite"
)

type DB struct {
	sql *sql.DB
}

func Open(path string) (*DB, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	// Ensure schema exists for convenience.
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS imported_targets (
  id              INTEGER PRIMARY KEY,
  identity_key    TEXT NOT NULL UNIQUE,
  org_id          TEXT NOT NULL,
  integration_id  TEXT NOT NULL,
  target_json     TEXT NOT NULL,
  files_json      TEXT,
  exclusion_globs TEXT,
  message         TEXT,
  run_id          TEXT NOT NULL,
  first_seen_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  last_seen_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_imported_org ON imported_targets(org_id);
    `); err != nil {
		db.Close()
		return nil, err
	}
	return &DB{sql: db}, nil
}

func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}

// UpsertImportedTargets records every target in one transaction and
// returns how many were not known before. Known targets only have their
// run and last seen time refreshed, so repeating a call is harmless.
func (d *DB) UpsertImportedTargets(ctx context.Context, runID string, records []targets.ImportTarget, message string) (added int, err error) {
	tx, err := d.sql.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, r := range records {
		key := identityKey(r)
		targetJSON, err := json.Marshal(r.Target)
		if err != nil {
			return 0, err
		}
		var filesJSON interface{}
		if len(r.Files) > 0 {
			b, err := json.Marshal(r.Files)
			if err != nil {
				return 0, err
			}
			filesJSON = string(b)
		}

		var exists int
		err = tx.QueryRowContext(ctx, "SELECT COUNT(1) FROM imported_targets WHERE identity_key = ?", key).Scan(&exists)
		if err != nil {
			return 0, err
		}

		if exists == 0 {
			_, err = tx.ExecContext(ctx, `INSERT INTO imported_targets(identity_key, org_id, integration_id, target_json, files_json, exclusion_globs, message, run_id, first_seen_at, last_seen_at) VALUES(?,?,?,?,?,?,?,?,CURRENT_TIMESTAMP,CURRENT_TIMESTAMP)`,
				key, r.OrgID, r.IntegrationID, string(targetJSON), filesJSON, nullIfEmpty(r.ExclusionGlobs), nullIfEmpty(message), runID)
			if err != nil {
				return 0, err
			}
			added++
			continue
		}
		_, err = tx.ExecContext(ctx, `UPDATE imported_targets SET files_json = ?, exclusion_globs = ?, message = ?, run_id = ?, last_seen_at = CURRENT_TIMESTAMP WHERE identity_key = ?`,
			filesJSON, nullIfEmpty(r.ExclusionGlobs), nullIfEmpty(message), runID, key)
		if err != nil {
			return 0, err
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return added, nil
}

// ListImportedTargets returns the stored targets, optionally for one org,
// ordered by org and identity.
func (d *DB) ListImportedTargets(ctx context.Context, orgID string) ([]ImportedTarget, error) {
	q := "SELECT org_id, integration_id, target_json, files_json, exclusion_globs, message, run_id, first_seen_at, last_seen_at FROM imported_targets"
	args := []interface{}{}
	if orgID != "" {
		q += " WHERE org_id = ?"
		args = append(args, orgID)
	}
	q += " ORDER BY org_id, identity_key"

	rows, err := d.sql.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ImportedTarget
	for rows.Next() {
		var (
			it                      ImportedTarget
			targetJSON              string
			filesNS, globsNS, msgNS sql.NullString
			firstSeen, lastSeen     string
		)
		if err := rows.Scan(&it.OrgID, &it.IntegrationID, &targetJSON, &filesNS, &globsNS, &msgNS, &it.RunID, &firstSeen, &lastSeen); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(targetJSON), &it.Target); err != nil {
			return nil, err
		}
		if filesNS.Valid {
			if err := json.Unmarshal([]byte(filesNS.String), &it.Files); err != nil {
				return nil, err
			}
		}
		it.ExclusionGlobs = globsNS.String
		it.Message = msgNS.String
		it.FirstSeenAt = parseTimestamp(firstSeen)
		it.LastSeenAt = parseTimestamp(lastSeen)
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

type OrgStats struct {
	OrgID            string
	IntegrationCount int
	TargetCount      int
}

func (d *DB) GetStats(ctx context.Context) ([]OrgStats, error) {
	query := `
		SELECT
			org_id,
			COUNT(DISTINCT integration_id),
			COUNT(identity_key)
		FROM
			imported_targets
		GROUP BY
			org_id
		ORDER BY
			org_id;
	`
	rows, err := d.sql.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []OrgStats
	for rows.Next() {
		var s OrgStats
		if err := rows.Scan(&s.OrgID, &s.IntegrationCount, &s.TargetCount); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return stats, nil
}

// parseTimestamp accepts SQLite's CURRENT_TIMESTAMP format and RFC3339,
// which is what the driver hands back for DATETIME columns.
func parseTimestamp(s string) time.Time {
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	return time.Time{}
}

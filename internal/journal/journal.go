// Package journal keeps a local SQLite record of completed session summaries.
// The journal row is written before the Postgres insert and marked synced
// after it, so a summary survives a crash or database outage between the two.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/claude/repcoach/internal/models"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Journal is the crash-safe session summary log.
type Journal struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite journal database at dir/journal.db.
func Open(dir string) (*Journal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating journal dir %s: %w", dir, err)
	}

	dbPath := filepath.Join(dir, "journal.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening journal db: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS completed_sessions (
		id          TEXT PRIMARY KEY,
		summary     TEXT NOT NULL,
		recorded_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		synced_at   TIMESTAMP
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating journal table: %w", err)
	}

	return &Journal{db: db}, nil
}

// Record writes a summary row. Re-recording the same session is a no-op.
func (j *Journal) Record(ctx context.Context, s *models.ProgramSession) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshaling summary: %w", err)
	}
	_, err = j.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO completed_sessions (id, summary) VALUES (?, ?)`,
		s.ID.String(), string(data))
	if err != nil {
		return fmt.Errorf("recording session: %w", err)
	}
	return nil
}

// MarkSynced records that the summary reached the primary store.
func (j *Journal) MarkSynced(ctx context.Context, id uuid.UUID) error {
	_, err := j.db.ExecContext(ctx,
		`UPDATE completed_sessions SET synced_at = ? WHERE id = ?`,
		time.Now().UTC(), id.String())
	if err != nil {
		return fmt.Errorf("marking session synced: %w", err)
	}
	return nil
}

// Unsynced returns summaries not yet confirmed in the primary store, oldest
// first, for replay at startup.
func (j *Journal) Unsynced(ctx context.Context) ([]*models.ProgramSession, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT summary FROM completed_sessions
		 WHERE synced_at IS NULL
		 ORDER BY recorded_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying unsynced sessions: %w", err)
	}
	defer rows.Close()

	var result []*models.ProgramSession
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning unsynced session: %w", err)
		}
		var s models.ProgramSession
		if err := json.Unmarshal([]byte(data), &s); err != nil {
			return nil, fmt.Errorf("unmarshaling summary: %w", err)
		}
		result = append(result, &s)
	}
	return result, rows.Err()
}

// Close closes the journal database.
func (j *Journal) Close() error {
	return j.db.Close()
}

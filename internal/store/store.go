package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/andresmejia3/visage/internal/types"
)

// Store manages the PostgreSQL connection holding session summaries.
type Store struct {
	conn *pgx.Conn
}

// New establishes a connection to the database and ensures the schema is initialized.
func New(ctx context.Context, connString string) (*Store, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, err
	}

	// Initialize schema (Auto-Migration)
	if err := initSchema(ctx, conn); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	return &Store{conn: conn}, nil
}

// initSchema creates the necessary tables if they don't exist (Auto-Migration).
func initSchema(ctx context.Context, conn *pgx.Conn) error {
	query := `
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			backend TEXT NOT NULL,
			started_at TIMESTAMPTZ NOT NULL,
			ended_at TIMESTAMPTZ NOT NULL,
			frames INT NOT NULL,
			faceless_frames INT NOT NULL,
			detections INT NOT NULL,
			classified INT NOT NULL,
			skipped INT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS session_labels (
			session_id TEXT REFERENCES sessions(id) ON DELETE CASCADE,
			gender TEXT NOT NULL,
			age TEXT NOT NULL,
			face_count INT NOT NULL,
			PRIMARY KEY (session_id, gender, age)
		);
	`
	_, err := conn.Exec(ctx, query)
	return err
}

// Close terminates the database connection.
func (s *Store) Close(ctx context.Context) {
	s.conn.Close(ctx)
}

// SaveSession stores a finished session and its label counts. Saving the same
// ID again replaces the previous summary.
func (s *Store) SaveSession(ctx context.Context, sum types.SessionSummary) error {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO sessions (id, source, backend, started_at, ended_at, frames, faceless_frames, detections, classified, skipped)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			ended_at = EXCLUDED.ended_at,
			frames = EXCLUDED.frames,
			faceless_frames = EXCLUDED.faceless_frames,
			detections = EXCLUDED.detections,
			classified = EXCLUDED.classified,
			skipped = EXCLUDED.skipped
	`, sum.ID, sum.Source, sum.Backend, sum.StartedAt, sum.EndedAt,
		sum.Frames, sum.FacelessFrames, sum.Detections, sum.Classified, sum.Skipped)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	// Clean up old label rows so a re-save stays idempotent
	if _, err := tx.Exec(ctx, "DELETE FROM session_labels WHERE session_id = $1", sum.ID); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, l := range sum.Labels {
		batch.Queue("INSERT INTO session_labels (session_id, gender, age, face_count) VALUES ($1, $2, $3, $4)",
			sum.ID, l.Gender, l.Age, l.Count)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert label counts: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// ListSessions returns the most recent sessions first, without label counts.
func (s *Store) ListSessions(ctx context.Context, limit int) ([]types.SessionSummary, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT id, source, backend, started_at, ended_at, frames, faceless_frames, detections, classified, skipped
		FROM sessions
		ORDER BY started_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []types.SessionSummary
	for rows.Next() {
		var sum types.SessionSummary
		if err := rows.Scan(&sum.ID, &sum.Source, &sum.Backend, &sum.StartedAt, &sum.EndedAt,
			&sum.Frames, &sum.FacelessFrames, &sum.Detections, &sum.Classified, &sum.Skipped); err != nil {
			return nil, err
		}
		sessions = append(sessions, sum)
	}
	return sessions, rows.Err()
}

// LabelCounts returns the label totals of one session, or of every session
// when sessionID is empty, most frequent first.
func (s *Store) LabelCounts(ctx context.Context, sessionID string) ([]types.LabelCount, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT gender, age, SUM(face_count)::INT AS total
		FROM session_labels
		WHERE $1::TEXT = '' OR session_id = $1::TEXT
		GROUP BY gender, age
		ORDER BY total DESC, gender, age
	`, sessionID)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (types.LabelCount, error) {
		var l types.LabelCount
		err := row.Scan(&l.Gender, &l.Age, &l.Count)
		return l, err
	})
}

// Reset drops all application tables to clear the database state.
// This is useful for development to force a schema refresh without migrations.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.conn.Exec(ctx, `
		DROP TABLE IF EXISTS session_labels CASCADE;
		DROP TABLE IF EXISTS sessions CASCADE;
	`)
	return err
}

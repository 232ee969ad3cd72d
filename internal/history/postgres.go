package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
)

// migrationLockID guards schema creation when several processes start together.
const migrationLockID = 583_120_771

// PostgresRecorder stores entries in a single table.
type PostgresRecorder struct {
	db        *sql.DB
	table     string
	insertSQL string
}

// NewPostgres opens dsn with the pgx driver and creates the table when missing.
func NewPostgres(ctx context.Context, dsn, table string) (*PostgresRecorder, error) {
	if table == "" {
		return nil, fmt.Errorf("history table required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	r := &PostgresRecorder{db: db, table: table, insertSQL: insertStatement(table)}
	if err := r.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func (r *PostgresRecorder) migrate(ctx context.Context) error {
	var acquired bool
	err := r.db.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1)`, migrationLockID).Scan(&acquired)
	if err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}

	if !acquired {
		// Another process is running migrations; wait briefly and skip
		time.Sleep(2 * time.Second)
		return nil
	}

	defer func() {
		_, _ = r.db.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, migrationLockID)
	}()

	for _, stmt := range schemaStatements(r.table) {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate %s: %w", r.table, err)
		}
	}
	return nil
}

func schemaStatements(table string) []string {
	t := pq.QuoteIdentifier(table)
	return []string{
		`CREATE TABLE IF NOT EXISTS ` + t + ` (
			id UUID PRIMARY KEY,
			session_id TEXT NOT NULL,
			question TEXT NOT NULL,
			document_name TEXT,
			document_size BIGINT,
			outcome TEXT NOT NULL,
			error TEXT,
			duration_ms BIGINT,
			created_at TIMESTAMPTZ DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS ` + pq.QuoteIdentifier(table+"_session_idx") +
			` ON ` + t + ` (session_id, created_at DESC);`,
	}
}

// insertStatement ignores duplicates so redelivered entries are stored once.
func insertStatement(table string) string {
	return `INSERT INTO ` + pq.QuoteIdentifier(table) +
		`(id, session_id, question, document_name, document_size, outcome, error, duration_ms, created_at)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9) ON CONFLICT (id) DO NOTHING`
}

func (r *PostgresRecorder) Record(ctx context.Context, entry Entry) error {
	e := normalize(entry)
	_, err := r.db.ExecContext(ctx, r.insertSQL,
		e.ID, e.SessionID, e.Question, e.DocumentName, e.DocumentSize,
		string(e.Outcome), e.Error, e.Duration.Milliseconds(), e.CreatedAt)
	return err
}

func (r *PostgresRecorder) Close() error {
	return r.db.Close()
}

package sink

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/iwvelando/equity-snapshot/internal/config"
	"github.com/iwvelando/equity-snapshot/internal/form"
	"github.com/iwvelando/equity-snapshot/pkg/constants"
	"github.com/lib/pq"
)

// OpenPostgres opens a connection pool for the Postgres sink. No connection
// is made until the first write.
func OpenPostgres(cfg config.PostgresConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return db, nil
}

// PostgresSink inserts one row per submission.
type PostgresSink struct {
	db    *sql.DB
	table string
}

// NewPostgresSink writes to table (default "submissions") through db.
func NewPostgresSink(db *sql.DB, table string) *PostgresSink {
	if table == "" {
		table = constants.DefaultCollection
	}
	return &PostgresSink{db: db, table: pq.QuoteIdentifier(table)}
}

func (s *PostgresSink) Name() string { return constants.SinkTypePostgres }

// EnsureSchema creates the submissions table when it does not exist.
func (s *PostgresSink) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+s.table+` (
		id UUID PRIMARY KEY,
		job_title TEXT NOT NULL,
		monthly_income DOUBLE PRECISION NOT NULL,
		monthly_rent DOUBLE PRECISION NOT NULL,
		zip_code TEXT NOT NULL,
		race TEXT NOT NULL,
		gender TEXT NOT NULL,
		rent_burden DOUBLE PRECISION NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", s.table, err)
	}
	return nil
}

// Save inserts the submission on a single pinned connection. Unlike
// DB.ExecContext, Conn.ExecContext does not replay the statement when the
// driver reports a bad connection, so each call makes one attempt.
func (s *PostgresSink) Save(ctx context.Context, sub form.Submission) error {
	doc, err := prepare(sub)
	if err != nil {
		return err
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("insert failed: %w", err)
	}
	defer conn.Close()

	_, err = conn.ExecContext(ctx, `INSERT INTO `+s.table+` (
			id, job_title, monthly_income, monthly_rent, zip_code,
			race, gender, rent_burden, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		doc.ID,
		doc.JobTitle,
		doc.MonthlyIncome,
		doc.MonthlyRent,
		doc.ZipCode,
		doc.Race,
		doc.Gender,
		doc.RentBurden,
		doc.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert failed: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (s *PostgresSink) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

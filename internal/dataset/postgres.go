package dataset

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"wmbench/internal/database"
)

// PostgresSink mirrors rows into the evaluation_cells table. Each row is a
// single multi-value INSERT so it lands atomically. A missing cell has a
// NULL score and its error text.
type PostgresSink struct {
	DB    database.Execer
	RunID uuid.UUID
	Now   func() time.Time
}

func NewPostgresSink(db database.Execer, runID uuid.UUID) *PostgresSink {
	return &PostgresSink{DB: db, RunID: runID, Now: time.Now}
}

func (s *PostgresSink) Open(ctx context.Context, header []string) error {
	if err := database.EnsureSchema(ctx, s.DB); err != nil {
		return fmt.Errorf("db error creating schema: %w", err)
	}
	_, err := s.DB.Exec(ctx,
		`INSERT INTO evaluation_runs (run_id, started_at, header) VALUES ($1::uuid, $2, $3)`,
		s.RunID.String(), s.Now(), header)
	if err != nil {
		return fmt.Errorf("db error inserting run: %w", err)
	}
	return nil
}

// insertCells builds the statement and arguments for one row.
func (s *PostgresSink) insertCells(row Row) (string, []interface{}) {
	const cols = 7
	var sb strings.Builder
	sb.WriteString(`INSERT INTO evaluation_cells (run_id, clip, duration_seconds, position, field, score, error) VALUES `)
	args := make([]interface{}, 0, cols*len(row.Cells))
	for i, c := range row.Cells {
		if i > 0 {
			sb.WriteString(", ")
		}
		n := i * cols
		fmt.Fprintf(&sb, "($%d::uuid, $%d, $%d, $%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4, n+5, n+6, n+7)

		var score, errText interface{}
		if c.Missing() {
			errText = c.Err.Error()
		} else {
			score = c.Score
		}
		args = append(args, s.RunID.String(), row.Path, row.Duration, i, c.Field, score, errText)
	}
	return sb.String(), args
}

func (s *PostgresSink) Write(ctx context.Context, row Row) error {
	if len(row.Cells) == 0 {
		return nil
	}
	sql, args := s.insertCells(row)
	if _, err := s.DB.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("db error inserting cells for %s: %w", row.Path, err)
	}
	return nil
}

// Close is a no-op; the pool is owned by the caller.
func (s *PostgresSink) Close() error { return nil }

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/FranksOps/paaplan/internal/plan"
	"github.com/FranksOps/paaplan/internal/storage"
	_ "modernc.org/sqlite"
)

// ensure sqliteBackend implements storage.Backend
var _ storage.Backend = (*sqliteBackend)(nil)

type sqliteBackend struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	site TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	extraction_date DATETIME NOT NULL,
	total_keywords INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS pages (
	run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	full_keyword TEXT NOT NULL,
	keyword TEXT NOT NULL,
	location TEXT NOT NULL,
	paa_questions TEXT NOT NULL,
	related_searches TEXT NOT NULL,
	priority INTEGER NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, position)
);
CREATE INDEX IF NOT EXISTS runs_site_created ON runs (site, created_at);
`

// New creates a new SQLite-backed storage.Backend.
func New(dsn string) (storage.Backend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &sqliteBackend{db: db}, nil
}

func (b *sqliteBackend) Save(ctx context.Context, run *storage.Run) error {
	res := run.Result
	if res == nil {
		res = plan.NewResult(nil, run.CreatedAt)
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, site, created_at, extraction_date, total_keywords) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Site, run.CreatedAt.UTC(), res.ExtractionDate.UTC(), res.TotalKeywords,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO pages (
		run_id, position, full_keyword, keyword, location, paa_questions, related_searches, priority, error
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare pages: %w", err)
	}
	defer stmt.Close()

	for i, p := range res.Pages {
		paa, err := json.Marshal(p.PAAQuestions)
		if err != nil {
			return fmt.Errorf("encode questions: %w", err)
		}
		related, err := json.Marshal(p.RelatedSearches)
		if err != nil {
			return fmt.Errorf("encode related searches: %w", err)
		}
		if _, err := stmt.ExecContext(ctx,
			run.ID, i, p.FullKeyword, p.Keyword, p.Location, string(paa), string(related), p.Priority, p.Error,
		); err != nil {
			return fmt.Errorf("insert page: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (b *sqliteBackend) Get(ctx context.Context, id string) (*storage.Run, error) {
	row := b.db.QueryRowContext(ctx,
		`SELECT id, site, created_at, extraction_date FROM runs WHERE id = ?`, id)

	run, date, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := b.loadPages(ctx, run, date); err != nil {
		return nil, err
	}
	return run, nil
}

func (b *sqliteBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.Run, error) {
	query := `SELECT id, site, created_at, extraction_date FROM runs WHERE 1=1`
	args := []any{}

	if filter.Site != "" {
		query += ` AND site = ?`
		args = append(args, filter.Site)
	}
	if filter.Since != nil {
		query += ` AND created_at >= ?`
		args = append(args, filter.Since.UTC())
	}

	query += ` ORDER BY created_at DESC`

	// SQLite only accepts OFFSET after a LIMIT.
	if filter.Limit > 0 || filter.Offset > 0 {
		limit := filter.Limit
		if limit <= 0 {
			limit = -1
		}
		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, filter.Offset)
	}

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}

	var (
		runs  []*storage.Run
		dates []time.Time
	)
	for rows.Next() {
		run, date, err := scanRun(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		runs = append(runs, run)
		dates = append(dates, date)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("query runs: %w", err)
	}
	rows.Close()

	for i, run := range runs {
		if err := b.loadPages(ctx, run, dates[i]); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*storage.Run, time.Time, error) {
	var (
		run  storage.Run
		date time.Time
	)
	if err := s.Scan(&run.ID, &run.Site, &run.CreatedAt, &date); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, time.Time{}, err
		}
		return nil, time.Time{}, fmt.Errorf("scan run: %w", err)
	}
	return &run, date, nil
}

func (b *sqliteBackend) loadPages(ctx context.Context, run *storage.Run, date time.Time) error {
	rows, err := b.db.QueryContext(ctx, `
	SELECT full_keyword, keyword, location, paa_questions, related_searches, priority, error
	FROM pages WHERE run_id = ? ORDER BY position`, run.ID)
	if err != nil {
		return fmt.Errorf("query pages: %w", err)
	}
	defer rows.Close()

	pages := []plan.Page{}
	for rows.Next() {
		var (
			p            plan.Page
			paa, related string
		)
		if err := rows.Scan(&p.FullKeyword, &p.Keyword, &p.Location, &paa, &related, &p.Priority, &p.Error); err != nil {
			return fmt.Errorf("scan page: %w", err)
		}
		if err := json.Unmarshal([]byte(paa), &p.PAAQuestions); err != nil {
			return fmt.Errorf("decode questions: %w", err)
		}
		if err := json.Unmarshal([]byte(related), &p.RelatedSearches); err != nil {
			return fmt.Errorf("decode related searches: %w", err)
		}
		pages = append(pages, p)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("query pages: %w", err)
	}

	run.Result = plan.NewResult(pages, date)
	return nil
}

func (b *sqliteBackend) Close() error {
	return b.db.Close()
}

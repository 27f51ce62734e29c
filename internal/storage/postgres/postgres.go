package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/FranksOps/paaplan/internal/plan"
	"github.com/FranksOps/paaplan/internal/storage"
)

// ensure postgresBackend implements storage.Backend
var _ storage.Backend = (*postgresBackend)(nil)

type postgresBackend struct {
	pool *pgxpool.Pool
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	site TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	extraction_date TIMESTAMPTZ NOT NULL,
	total_keywords INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS pages (
	run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	full_keyword TEXT NOT NULL,
	keyword TEXT NOT NULL,
	location TEXT NOT NULL,
	paa_questions JSONB NOT NULL,
	related_searches JSONB NOT NULL,
	priority INTEGER NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, position)
);
CREATE INDEX IF NOT EXISTS runs_site_created ON runs (site, created_at);
`

// New creates a new Postgres-backed storage.Backend.
func New(ctx context.Context, dsn string) (storage.Backend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &postgresBackend{pool: pool}, nil
}

func (b *postgresBackend) Save(ctx context.Context, run *storage.Run) error {
	res := run.Result
	if res == nil {
		res = plan.NewResult(nil, run.CreatedAt)
	}

	batch := &pgx.Batch{}
	batch.Queue(
		`INSERT INTO runs (id, site, created_at, extraction_date, total_keywords) VALUES ($1, $2, $3, $4, $5)`,
		run.ID, run.Site, run.CreatedAt, res.ExtractionDate, res.TotalKeywords,
	)
	for i, p := range res.Pages {
		paa, err := json.Marshal(p.PAAQuestions)
		if err != nil {
			return fmt.Errorf("encode questions: %w", err)
		}
		related, err := json.Marshal(p.RelatedSearches)
		if err != nil {
			return fmt.Errorf("encode related searches: %w", err)
		}
		batch.Queue(`
		INSERT INTO pages (
			run_id, position, full_keyword, keyword, location, paa_questions, related_searches, priority, error
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			run.ID, i, p.FullKeyword, p.Keyword, p.Location, paa, related, p.Priority, p.Error,
		)
	}

	err := pgx.BeginFunc(ctx, b.pool, func(tx pgx.Tx) error {
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

func (b *postgresBackend) Get(ctx context.Context, id string) (*storage.Run, error) {
	var (
		run  storage.Run
		date time.Time
	)
	err := b.pool.QueryRow(ctx,
		`SELECT id, site, created_at, extraction_date FROM runs WHERE id = $1`, id,
	).Scan(&run.ID, &run.Site, &run.CreatedAt, &date)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	if err := b.loadPages(ctx, &run, date); err != nil {
		return nil, err
	}
	return &run, nil
}

func (b *postgresBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.Run, error) {
	query := `SELECT id, site, created_at, extraction_date FROM runs WHERE 1=1`
	args := []any{}
	paramCount := 1

	if filter.Site != "" {
		query += fmt.Sprintf(` AND site = $%d`, paramCount)
		args = append(args, filter.Site)
		paramCount++
	}
	if filter.Since != nil {
		query += fmt.Sprintf(` AND created_at >= $%d`, paramCount)
		args = append(args, *filter.Since)
		paramCount++
	}

	query += ` ORDER BY created_at DESC`

	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, paramCount)
		args = append(args, filter.Limit)
		paramCount++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, paramCount)
		args = append(args, filter.Offset)
	}

	rows, err := b.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}

	type header struct {
		run  *storage.Run
		date time.Time
	}
	headers, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (header, error) {
		h := header{run: &storage.Run{}}
		err := row.Scan(&h.run.ID, &h.run.Site, &h.run.CreatedAt, &h.date)
		return h, err
	})
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}

	runs := make([]*storage.Run, 0, len(headers))
	for _, h := range headers {
		if err := b.loadPages(ctx, h.run, h.date); err != nil {
			return nil, err
		}
		runs = append(runs, h.run)
	}
	return runs, nil
}

func (b *postgresBackend) loadPages(ctx context.Context, run *storage.Run, date time.Time) error {
	rows, err := b.pool.Query(ctx, `
	SELECT full_keyword, keyword, location, paa_questions, related_searches, priority, error
	FROM pages WHERE run_id = $1 ORDER BY position`, run.ID)
	if err != nil {
		return fmt.Errorf("query pages: %w", err)
	}

	pages, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (plan.Page, error) {
		var (
			p            plan.Page
			paa, related []byte
		)
		if err := row.Scan(&p.FullKeyword, &p.Keyword, &p.Location, &paa, &related, &p.Priority, &p.Error); err != nil {
			return p, err
		}
		if err := json.Unmarshal(paa, &p.PAAQuestions); err != nil {
			return p, fmt.Errorf("decode questions: %w", err)
		}
		if err := json.Unmarshal(related, &p.RelatedSearches); err != nil {
			return p, fmt.Errorf("decode related searches: %w", err)
		}
		return p, nil
	})
	if err != nil {
		return fmt.Errorf("query pages: %w", err)
	}
	if pages == nil {
		pages = []plan.Page{}
	}

	run.Result = plan.NewResult(pages, date)
	return nil
}

func (b *postgresBackend) Close() error {
	b.pool.Close()
	return nil
}

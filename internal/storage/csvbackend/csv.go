package csvbackend

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/FranksOps/paaplan/internal/plan"
	"github.com/FranksOps/paaplan/internal/storage"
)

// ensure csvBackend implements storage.Backend
var _ storage.Backend = (*csvBackend)(nil)

type csvBackend struct {
	mu   sync.Mutex
	file *os.File
}

// headers defines the CSV column order. Each row is one page; a run with
// no pages is stored as a single row with position -1.
var headers = []string{
	"run_id",
	"site",
	"created_at",
	"extraction_date",
	"position",
	"full_keyword",
	"keyword",
	"location",
	"paa_questions_json",
	"related_searches_json",
	"priority",
	"error",
}

// New creates a new CSV-backed storage.Backend.
func New(filePath string) (storage.Backend, error) {
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open runs file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat runs file: %w", err)
	}

	if info.Size() == 0 {
		w := csv.NewWriter(f)
		if err := w.Write(headers); err != nil {
			f.Close()
			return nil, fmt.Errorf("write header: %w", err)
		}
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return nil, fmt.Errorf("write header: %w", err)
		}
	}

	return &csvBackend{file: f}, nil
}

func (b *csvBackend) Save(ctx context.Context, run *storage.Run) error {
	res := run.Result
	if res == nil {
		res = plan.NewResult(nil, run.CreatedAt)
	}

	prefix := []string{
		run.ID,
		run.Site,
		run.CreatedAt.Format(time.RFC3339Nano),
		res.ExtractionDate.Format(time.RFC3339Nano),
	}

	var records [][]string
	if len(res.Pages) == 0 {
		records = append(records, append(prefix, "-1", "", "", "", "[]", "[]", "0", ""))
	}
	for i, p := range res.Pages {
		paa, err := json.Marshal(p.PAAQuestions)
		if err != nil {
			return fmt.Errorf("encode questions: %w", err)
		}
		related, err := json.Marshal(p.RelatedSearches)
		if err != nil {
			return fmt.Errorf("encode related searches: %w", err)
		}
		row := append(append([]string{}, prefix...),
			strconv.Itoa(i),
			p.FullKeyword,
			p.Keyword,
			p.Location,
			string(paa),
			string(related),
			strconv.Itoa(p.Priority),
			p.Error,
		)
		records = append(records, row)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("seek runs file: %w", err)
	}

	w := csv.NewWriter(b.file)
	if err := w.WriteAll(records); err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	return nil
}

func (b *csvBackend) Get(ctx context.Context, id string) (*storage.Run, error) {
	runs, err := b.readAll()
	if err != nil {
		return nil, err
	}
	for _, r := range runs {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (b *csvBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.Run, error) {
	runs, err := b.readAll()
	if err != nil {
		return nil, err
	}
	var matched []*storage.Run
	for _, r := range runs {
		if filter.Match(r) {
			matched = append(matched, r)
		}
	}
	return filter.Window(matched), nil
}

// readAll regroups page rows into runs, in the order runs were written.
func (b *csvBackend) readAll() ([]*storage.Run, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek runs file: %w", err)
	}
	defer func() {
		// Restore pointer to end for writing
		_, _ = b.file.Seek(0, io.SeekEnd)
	}()

	r := csv.NewReader(b.file)
	r.FieldsPerRecord = -1

	if _, err := r.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	type partial struct {
		run   *storage.Run
		date  time.Time
		pages []plan.Page
	}
	var (
		order []string
		byID  = map[string]*partial{}
	)

	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		if len(record) != len(headers) {
			continue // skip malformed rows
		}

		id := record[0]
		p, ok := byID[id]
		if !ok {
			createdAt, _ := time.Parse(time.RFC3339Nano, record[2])
			date, _ := time.Parse(time.RFC3339Nano, record[3])
			p = &partial{
				run:  &storage.Run{ID: id, Site: record[1], CreatedAt: createdAt},
				date: date,
			}
			byID[id] = p
			order = append(order, id)
		}

		if record[4] == "-1" {
			continue
		}

		page := plan.Page{
			FullKeyword: record[5],
			Keyword:     record[6],
			Location:    record[7],
			Error:       record[11],
		}
		page.Priority, _ = strconv.Atoi(record[10])
		if err := json.Unmarshal([]byte(record[8]), &page.PAAQuestions); err != nil || page.PAAQuestions == nil {
			page.PAAQuestions = []string{}
		}
		if err := json.Unmarshal([]byte(record[9]), &page.RelatedSearches); err != nil || page.RelatedSearches == nil {
			page.RelatedSearches = []string{}
		}
		p.pages = append(p.pages, page)
	}

	runs := make([]*storage.Run, 0, len(order))
	for _, id := range order {
		p := byID[id]
		p.run.Result = plan.NewResult(p.pages, p.date)
		runs = append(runs, p.run)
	}
	return runs, nil
}

func (b *csvBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.file.Close()
}

package jsonbackend

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/FranksOps/paaplan/internal/storage"
)

// ensure jsonBackend implements storage.Backend
var _ storage.Backend = (*jsonBackend)(nil)

// maxLine bounds a single NDJSON record; a large plan can run to megabytes.
const maxLine = 64 << 20

type jsonBackend struct {
	mu   sync.Mutex
	file *os.File
}

// New creates a new NDJSON-backed storage.Backend, one run per line.
func New(filePath string) (storage.Backend, error) {
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open runs file: %w", err)
	}
	return &jsonBackend{file: f}, nil
}

func (b *jsonBackend) Save(ctx context.Context, run *storage.Run) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("encode run: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	return nil
}

func (b *jsonBackend) Get(ctx context.Context, id string) (*storage.Run, error) {
	var found *storage.Run
	err := b.scan(func(r *storage.Run) {
		if r.ID == id {
			found = r
		}
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, storage.ErrNotFound
	}
	return found, nil
}

func (b *jsonBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.Run, error) {
	var runs []*storage.Run
	err := b.scan(func(r *storage.Run) {
		if filter.Match(r) {
			runs = append(runs, r)
		}
	})
	if err != nil {
		return nil, err
	}
	return filter.Window(runs), nil
}

// scan decodes every stored run in file order.
func (b *jsonBackend) scan(fn func(*storage.Run)) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("seek runs file: %w", err)
	}
	defer func() {
		// Restore pointer to end for writing
		_, _ = b.file.Seek(0, io.SeekEnd)
	}()

	scanner := bufio.NewScanner(b.file)
	scanner.Buffer(make([]byte, 0, 64<<10), maxLine)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var r storage.Run
		if err := json.Unmarshal(line, &r); err != nil {
			return fmt.Errorf("decode run: %w", err)
		}
		fn(&r)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read runs file: %w", err)
	}
	return nil
}

func (b *jsonBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.file.Close()
}

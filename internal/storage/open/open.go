// Package open selects a storage backend by driver name.
package open

import (
	"context"
	"fmt"
	"strings"

	"github.com/FranksOps/paaplan/internal/storage"
	"github.com/FranksOps/paaplan/internal/storage/csvbackend"
	"github.com/FranksOps/paaplan/internal/storage/jsonbackend"
	"github.com/FranksOps/paaplan/internal/storage/postgres"
	"github.com/FranksOps/paaplan/internal/storage/sqlite"
)

// Drivers lists the accepted driver names.
var Drivers = []string{"json", "csv", "sqlite", "postgres"}

// Open returns the backend for driver. For file backends dsn is a path;
// for sqlite a database/sql DSN; for postgres a connection string.
func Open(ctx context.Context, driver, dsn string) (storage.Backend, error) {
	if dsn == "" {
		return nil, fmt.Errorf("storage: %s driver needs a dsn", driver)
	}
	switch strings.ToLower(driver) {
	case "json", "ndjson":
		return jsonbackend.New(dsn)
	case "csv":
		return csvbackend.New(dsn)
	case "sqlite", "sqlite3":
		return sqlite.New(dsn)
	case "postgres", "postgresql", "pg":
		return postgres.New(ctx, dsn)
	default:
		return nil, fmt.Errorf("storage: unknown driver %q (want one of %s)", driver, strings.Join(Drivers, ", "))
	}
}

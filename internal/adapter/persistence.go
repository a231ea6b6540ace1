// Package adapter selects the batch history backend from configuration.
package adapter

import (
	"context"
	"fmt"

	"imagebatch/internal/adapter/repo"
	"imagebatch/internal/adapter/sqlite"
	"imagebatch/internal/domain"
	"imagebatch/internal/infra"
)

// Persistence is the configured recorder. History is nil when records are
// discarded.
type Persistence struct {
	Driver   string
	Recorder domain.BatchRecorder
	History  domain.BatchHistory
	close    func()
}

// Close releases the underlying database handle.
func (p *Persistence) Close() {
	if p != nil && p.close != nil {
		p.close()
	}
}

// Open connects the backend named by cfg.PersistenceDriver and prepares its
// schema.
func Open(ctx context.Context, cfg *infra.Config, logger infra.Logger) (*Persistence, error) {
	switch cfg.PersistenceDriver {
	case infra.PersistencePostgres:
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		r := repo.NewBatchRepository(infra.NewSQLRunner(pool, logger))
		if err := r.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return &Persistence{Driver: cfg.PersistenceDriver, Recorder: r, History: r, close: pool.Close}, nil

	case infra.PersistenceSQLite:
		r, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &Persistence{
			Driver:   cfg.PersistenceDriver,
			Recorder: r,
			History:  r,
			close:    func() { _ = r.Close() },
		}, nil

	case infra.PersistenceNone, "":
		return &Persistence{Driver: infra.PersistenceNone, Recorder: domain.NopRecorder{}}, nil

	default:
		return nil, fmt.Errorf("unsupported persistence driver %q", cfg.PersistenceDriver)
	}
}

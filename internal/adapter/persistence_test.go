package adapter

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imagebatch/internal/domain"
	"imagebatch/internal/infra"
)

func TestOpenNone(t *testing.T) {
	p, err := Open(context.Background(), &infra.Config{PersistenceDriver: infra.PersistenceNone}, zerolog.Nop())
	require.NoError(t, err)
	defer p.Close()
	assert.Equal(t, infra.PersistenceNone, p.Driver)
	assert.Nil(t, p.History)
	assert.NoError(t, p.Recorder.SaveBatchJob(context.Background(), domain.BatchRecord{JobID: "x"}))
}

func TestOpenSQLite(t *testing.T) {
	cfg := &infra.Config{
		PersistenceDriver: infra.PersistenceSQLite,
		SQLitePath:        filepath.Join(t.TempDir(), "batches.db"),
	}
	p, err := Open(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, p.Recorder.SaveBatchJob(context.Background(), domain.BatchRecord{
		JobID: "j1", UserID: "u1", Mode: "grid_2x2", TotalCost: 13, ResultsCount: 4, CreatedAt: time.Now(),
	}))
	require.NotNil(t, p.History)
	recs, err := p.History.ListByUser(context.Background(), "u1", 5)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "j1", recs[0].JobID)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), &infra.Config{PersistenceDriver: "mongo"}, zerolog.Nop())
	assert.Error(t, err)
}

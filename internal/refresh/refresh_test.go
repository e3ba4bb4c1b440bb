package refresh

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dataquery/internal/domain"
	"dataquery/internal/engine"
	"dataquery/internal/registry"
)

type fakeExecutor struct {
	mu          sync.Mutex
	executed    []string
	invalidated []string
}

func (f *fakeExecutor) Execute(_ context.Context, queryID string, _ *engine.Override) (*domain.QueryResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.executed = append(f.executed, queryID)
	return &domain.QueryResult{QueryID: queryID}, nil
}

func (f *fakeExecutor) Invalidate(_ context.Context, queryID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, queryID)
	return 1, nil
}

func (f *fakeExecutor) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.executed), len(f.invalidated)
}

func loadRegistry(t *testing.T, docs map[string]string) *registry.Registry {
	t.Helper()
	dir := t.TempDir()
	for name, doc := range docs {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(doc), 0o600))
	}
	reg, err := registry.Load(dir)
	require.NoError(t, err)
	return reg
}

const specWithRefresh = `apiVersion: dataquery/v1
kind: Query
id: gdp
source: remote_stats
params:
  indicator: "NY.GDP.MKTP.KD.ZG"
refresh: "@every 50ms"
`

const specWithoutRefresh = `apiVersion: dataquery/v1
kind: Query
id: employment
source: tabular_file
params:
  pattern: "employment/*.csv"
`

func TestNewScheduler_RegistersOnlyRefreshSpecs(t *testing.T) {
	reg := loadRegistry(t, map[string]string{
		"gdp.yaml":        specWithRefresh,
		"employment.yaml": specWithoutRefresh,
	})

	s, err := NewScheduler(reg, &fakeExecutor{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Jobs())
}

func TestNewScheduler_RejectsInvalidExpression(t *testing.T) {
	reg := loadRegistry(t, map[string]string{
		"bad.yaml": `apiVersion: dataquery/v1
kind: Query
id: bad
source: tabular_file
params:
  pattern: "x/*.csv"
refresh: "every full moon"
`,
	})

	_, err := NewScheduler(reg, &fakeExecutor{}, nil)
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, err.Error(), "refresh expression")
}

func TestScheduler_WarmsCache(t *testing.T) {
	reg := loadRegistry(t, map[string]string{"gdp.yaml": specWithRefresh})
	exec := &fakeExecutor{}

	s, err := NewScheduler(reg, exec, nil)
	require.NoError(t, err)

	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool {
		executed, invalidated := exec.counts()
		return executed >= 1 && invalidated >= 1
	}, 2*time.Second, 10*time.Millisecond, "warming job should have fired")

	exec.mu.Lock()
	defer exec.mu.Unlock()
	assert.Equal(t, "gdp", exec.executed[0])
	assert.Equal(t, "gdp", exec.invalidated[0])
}

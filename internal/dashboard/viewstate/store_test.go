package viewstate

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/smallbiznis/meseboard/internal/dashboard/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// gatedLoader blocks loads of a gated year until the gate is released.
type gatedLoader struct {
	mu      sync.Mutex
	gates   map[int]chan struct{}
	started chan int
	fail    map[int]error
}

func newGatedLoader() *gatedLoader {
	return &gatedLoader{gates: map[int]chan struct{}{}, started: make(chan int, 8), fail: map[int]error{}}
}

func (l *gatedLoader) gate(year int) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch := make(chan struct{})
	l.gates[year] = ch
	return ch
}

func (l *gatedLoader) Load(ctx context.Context, year int) (*domain.Dataset, error) {
	l.mu.Lock()
	gate := l.gates[year]
	err := l.fail[year]
	l.mu.Unlock()

	l.started <- year
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return sample(year), nil
}

func TestStoreCreateLoadsYear(t *testing.T) {
	store := NewStore(newGatedLoader(), 0, 200, zap.NewNop())

	snap, err := store.Create(context.Background(), 2025)
	require.NoError(t, err)
	assert.NotEmpty(t, snap.ID)
	assert.Equal(t, uint64(1), snap.Token)
	assert.False(t, snap.View.Loading)
	require.NotNil(t, snap.View.Dashboard)

	again, err := store.Get(snap.ID)
	require.NoError(t, err)
	assert.Equal(t, snap.ID, again.ID)
}

func TestStoreCreateInvalidYear(t *testing.T) {
	store := NewStore(newGatedLoader(), 0, 200, zap.NewNop())

	_, err := store.Create(context.Background(), 1)
	assert.ErrorIs(t, err, domain.ErrInvalidYear)
}

func TestStoreUnknownSession(t *testing.T) {
	store := NewStore(newGatedLoader(), 0, 200, zap.NewNop())

	_, err := store.Get("missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = store.Dispatch(context.Background(), "missing", Action{Type: ActionRefresh})
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestStoreDiscardsSupersededFetch(t *testing.T) {
	ctx := context.Background()
	loader := newGatedLoader()
	store := NewStore(loader, 0, 200, zap.NewNop())

	snap, err := store.Create(ctx, 2025)
	require.NoError(t, err)
	<-loader.started

	release := loader.gate(2024)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = store.Dispatch(ctx, snap.ID, Action{Type: ActionSelectYear, Year: 2024})
	}()
	require.Equal(t, 2024, <-loader.started)

	latest, err := store.Dispatch(ctx, snap.ID, Action{Type: ActionSelectYear, Year: 2026})
	require.NoError(t, err)
	<-loader.started
	assert.Equal(t, 2026, latest.View.Year)

	close(release)
	<-done

	final, err := store.Get(snap.ID)
	require.NoError(t, err)
	assert.Equal(t, 2026, final.View.Year)
	assert.Equal(t, uint64(3), final.Token)
	require.NotNil(t, final.View.Dashboard)
	assert.Equal(t, 2026, final.View.Dashboard.Year)
}

func TestStoreRecordsLoadError(t *testing.T) {
	ctx := context.Background()
	loader := newGatedLoader()
	loader.fail[2024] = errors.New("backend down")
	store := NewStore(loader, 0, 200, zap.NewNop())

	snap, err := store.Create(ctx, 2024)
	require.NoError(t, err)
	assert.Equal(t, "backend down", snap.View.Error)
	assert.Nil(t, snap.View.Dashboard)
}

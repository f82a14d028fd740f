package workers

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cart-service/internal/storage"
)

type purgingStore struct {
	*storage.MemoryStorage
	purged int64
	err    error
	calls  atomic.Int32
}

func (p *purgingStore) PurgeExpired(context.Context) (int64, error) {
	p.calls.Add(1)
	return p.purged, p.err
}

type countingSweeper struct {
	swept int
	idle  time.Duration
	calls atomic.Int32
}

func (s *countingSweeper) Sweep(idle time.Duration) int {
	s.idle = idle
	s.calls.Add(1)
	return s.swept
}

func nullEntry() *logrus.Entry {
	logger, _ := logtest.NewNullLogger()
	return logrus.NewEntry(logger)
}

func TestCartExpirationWorker_ForceRun(t *testing.T) {
	store := &purgingStore{MemoryStorage: storage.NewMemoryStorage(), purged: 4}
	sweeper := &countingSweeper{swept: 2}
	w := NewCartExpirationWorker(store, sweeper, time.Hour, 10*time.Minute, nullEntry())

	require.NoError(t, w.ForceRun(context.Background()))
	require.NoError(t, w.ForceRun(context.Background()))

	stats := w.Stats()
	assert.Equal(t, int64(8), stats.SnapshotsPurged)
	assert.Equal(t, int64(4), stats.SessionsSwept)
	assert.Equal(t, int64(2), stats.TotalRuns)
	assert.Equal(t, 10*time.Minute, sweeper.idle)
}

func TestCartExpirationWorker_StoreWithoutPurger(t *testing.T) {
	sweeper := &countingSweeper{swept: 1}
	w := NewCartExpirationWorker(storage.NewMemoryStorage(), sweeper, 0, 0, nullEntry())

	require.NoError(t, w.ForceRun(context.Background()))
	assert.Equal(t, int64(0), w.Stats().SnapshotsPurged)
	assert.Equal(t, int64(1), w.Stats().SessionsSwept)
	assert.Equal(t, DefaultSessionIdle, sweeper.idle)
	assert.Equal(t, DefaultExpirationCheckInterval.String(), w.Status().Interval)
}

func TestCartExpirationWorker_PurgeError(t *testing.T) {
	store := &purgingStore{MemoryStorage: storage.NewMemoryStorage(), err: errors.New("connection refused")}
	sweeper := &countingSweeper{}
	w := NewCartExpirationWorker(store, sweeper, time.Hour, time.Minute, nullEntry())

	err := w.ForceRun(context.Background())
	require.Error(t, err)
	assert.Equal(t, "connection refused", w.Status().LastError)
	// sessions are still swept
	assert.Equal(t, int32(1), sweeper.calls.Load())
}

func TestCartExpirationWorker_StartStop(t *testing.T) {
	store := &purgingStore{MemoryStorage: storage.NewMemoryStorage()}
	w := NewCartExpirationWorker(store, &countingSweeper{}, 10*time.Millisecond, time.Minute, nullEntry())

	w.Start()
	w.Start()
	assert.True(t, w.IsRunning())

	assert.Eventually(t, func() bool { return store.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)

	w.Stop()
	w.Stop()
	assert.False(t, w.IsRunning())
}

func TestCartExpirationWorker_RestartAfterStop(t *testing.T) {
	store := &purgingStore{MemoryStorage: storage.NewMemoryStorage()}
	w := NewCartExpirationWorker(store, &countingSweeper{}, 10*time.Millisecond, time.Minute, nullEntry())

	w.Start()
	assert.Eventually(t, func() bool { return store.calls.Load() >= 1 }, time.Second, 5*time.Millisecond)
	w.Stop()

	before := store.calls.Load()
	require.NotPanics(t, w.Start)
	assert.True(t, w.IsRunning())
	assert.Eventually(t, func() bool { return store.calls.Load() > before }, time.Second, 5*time.Millisecond)

	require.NotPanics(t, w.Stop)
	assert.False(t, w.IsRunning())
}

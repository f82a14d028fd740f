// Package workers provides background job processors for the cart service.
package workers

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"cart-service/internal/storage"
)

const (
	// DefaultExpirationCheckInterval is the default interval for cart expiration checks
	DefaultExpirationCheckInterval = 15 * time.Minute

	// DefaultSessionIdle is how long an in-memory session may sit unused
	DefaultSessionIdle = 30 * time.Minute
)

// SessionSweeper drops idle in-memory cart sessions.
type SessionSweeper interface {
	Sweep(idle time.Duration) int
}

// CartExpirationWorker purges expired snapshots and idle sessions.
type CartExpirationWorker struct {
	purger    storage.Purger
	sessions  SessionSweeper
	interval  time.Duration
	idle      time.Duration
	logger    *logrus.Entry
	stopChan  chan struct{}
	doneChan  chan struct{}
	mu        sync.Mutex
	running   bool
	lastRun   time.Time
	lastError error
	stats     ExpirationStats
}

// ExpirationStats tracks cleanup statistics.
type ExpirationStats struct {
	SnapshotsPurged int64     `json:"snapshotsPurged"`
	SessionsSwept   int64     `json:"sessionsSwept"`
	TotalRuns       int64     `json:"totalRuns"`
	LastRunAt       time.Time `json:"lastRunAt,omitempty"`
	LastRunDuration string    `json:"lastRunDuration,omitempty"`
}

// NewCartExpirationWorker creates a new cart expiration worker. Stores that
// expire keys on their own (redis, memory) only get the session sweep.
func NewCartExpirationWorker(store storage.Storage, sessions SessionSweeper, interval, idle time.Duration, logger *logrus.Entry) *CartExpirationWorker {
	if interval <= 0 {
		interval = DefaultExpirationCheckInterval
	}
	if idle <= 0 {
		idle = DefaultSessionIdle
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	purger, _ := store.(storage.Purger)

	return &CartExpirationWorker{
		purger:   purger,
		sessions: sessions,
		interval: interval,
		idle:     idle,
		logger:   logger.WithField("component", "cart_expiration_worker"),
	}
}

// Start begins the cart expiration check loop. A stopped worker may be
// started again.
func (w *CartExpirationWorker) Start() {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.stopChan = make(chan struct{})
	w.doneChan = make(chan struct{})
	stop, done := w.stopChan, w.doneChan
	w.mu.Unlock()

	go w.run(stop, done)
	w.logger.WithField("interval", w.interval.String()).Info("Cart expiration worker started")
}

// Stop stops the cart expiration check loop.
func (w *CartExpirationWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	stop, done := w.stopChan, w.doneChan
	w.mu.Unlock()

	close(stop)
	<-done
	w.logger.Info("Cart expiration worker stopped")
}

// ForceRun triggers an immediate expiration check.
func (w *CartExpirationWorker) ForceRun(ctx context.Context) error {
	return w.processExpired(ctx)
}

// IsRunning returns whether the worker is running.
func (w *CartExpirationWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Stats returns the current expiration statistics.
func (w *CartExpirationWorker) Stats() ExpirationStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func (w *CartExpirationWorker) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), w.interval)
			if err := w.processExpired(ctx); err != nil {
				w.logger.WithError(err).Error("Cart expiration check failed")
			}
			cancel()
		}
	}
}

func (w *CartExpirationWorker) processExpired(ctx context.Context) error {
	startTime := time.Now()

	var purged int64
	var err error
	if w.purger != nil {
		purged, err = w.purger.PurgeExpired(ctx)
	}

	var swept int
	if w.sessions != nil {
		swept = w.sessions.Sweep(w.idle)
	}
	duration := time.Since(startTime)

	w.mu.Lock()
	w.lastRun = startTime
	w.lastError = err
	w.stats.TotalRuns++
	w.stats.SnapshotsPurged += purged
	w.stats.SessionsSwept += int64(swept)
	w.stats.LastRunAt = startTime
	w.stats.LastRunDuration = duration.String()
	w.mu.Unlock()

	if err != nil {
		return err
	}

	if purged > 0 || swept > 0 {
		w.logger.WithFields(logrus.Fields{
			"purged":   purged,
			"swept":    swept,
			"duration": duration.String(),
		}).Info("Cart expiration check completed")
	}
	return nil
}

// WorkerStatus contains the current status of the worker.
type WorkerStatus struct {
	Running   bool            `json:"running"`
	Interval  string          `json:"interval"`
	LastRun   time.Time       `json:"lastRun,omitempty"`
	LastError string          `json:"lastError,omitempty"`
	Stats     ExpirationStats `json:"stats"`
}

// Status returns the current status of the worker.
func (w *CartExpirationWorker) Status() WorkerStatus {
	w.mu.Lock()
	defer w.mu.Unlock()

	status := WorkerStatus{
		Running:  w.running,
		Interval: w.interval.String(),
		LastRun:  w.lastRun,
		Stats:    w.stats,
	}
	if w.lastError != nil {
		status.LastError = w.lastError.Error()
	}
	return status
}

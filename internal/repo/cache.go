// Package repo implements the persistence layer. This file provides the
// local cache: an in-memory mirror of the remote state document that
// coalesces rapid writes into a single delayed flush.
//
// Write path semantics:
//   - Update mutates the working document synchronously, so every subsequent
//     local read observes the change immediately.
//   - Durability is asynchronous: each Update clones the working document
//     into a flush snapshot and (re)arms a debounce timer. Rapid updates
//     collapse into one remote write carrying the newest snapshot.
//   - A flush performs bounded retries with linear backoff. A re-entrancy
//     guard ensures at most one remote write is in flight; timers firing
//     during a flush are absorbed, and a snapshot left behind by a mid-flush
//     Update is rescheduled when the flush finishes.
//   - Flush failure is logged and abandoned for the cycle. The next Update
//     schedules a new flush, so the write is retried on any subsequent
//     mutation. If no further mutation occurs, the last unflushed window can
//     be lost; that is accepted.
package repo

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/avendel/go-delivery-backend/internal/domain"
)

var (
	// flushAttempts counts remote write attempts by result.
	flushAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "record_store_flush_attempts_total",
			Help: "Remote record store write attempts.",
		},
		[]string{"result"},
	)

	// flushAbandoned counts flush cycles that exhausted all retries.
	flushAbandoned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "record_store_flush_abandoned_total",
			Help: "Flush cycles abandoned after exhausting retries.",
		},
	)
)

func init() {
	prometheus.MustRegister(flushAttempts, flushAbandoned)
}

// CacheOptions tunes the debounce and retry behavior of a Cache.
type CacheOptions struct {
	// Debounce is the delay between an Update and the flush it schedules.
	Debounce time.Duration
	// FlushRetries is the number of remote write attempts per flush cycle.
	FlushRetries int
	// FlushBackoff is the linear backoff unit between attempts: attempt n
	// waits n*FlushBackoff before running.
	FlushBackoff time.Duration
}

// Cache is the in-memory mirror of the remote state document. All access to
// the working document goes through Update and View, which hold the cache
// lock for the duration of the callback.
type Cache struct {
	remote Remote
	opts   CacheOptions
	log    zerolog.Logger

	mu       sync.Mutex
	doc      *domain.StateDocument
	snapshot *domain.StateDocument // newest clone pending flush
	timer    *time.Timer
	flushing bool
}

// NewCache builds a cache over the given remote store. Call Load before use.
func NewCache(remote Remote, opts CacheOptions, log zerolog.Logger) *Cache {
	if opts.Debounce <= 0 {
		opts.Debounce = time.Second
	}
	if opts.FlushRetries < 1 {
		opts.FlushRetries = 3
	}
	return &Cache{
		remote: remote,
		opts:   opts,
		log:    log.With().Str("component", "cache").Logger(),
		doc:    domain.NewStateDocument(),
	}
}

// Load fetches the full document from the remote store into the cache. On
// fetch failure the cache degrades to an empty document so the system stays
// available; the failure is logged, not propagated.
func (c *Cache) Load(ctx context.Context) {
	doc, err := c.remote.Load(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("record store load failed, starting from empty document")
		doc = domain.NewStateDocument()
	}

	c.mu.Lock()
	c.doc = doc
	c.snapshot = nil
	c.mu.Unlock()
}

// View runs fn against the working document under the cache lock. fn must
// not retain the document or mutate it.
func (c *Cache) View(fn func(doc *domain.StateDocument)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c.doc)
}

// Update runs fn against the working document under the cache lock, then
// snapshots the result and schedules a debounced flush. The in-memory change
// is visible to all subsequent reads before Update returns.
func (c *Cache) Update(fn func(doc *domain.StateDocument)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fn(c.doc)
	c.snapshot = c.doc.Clone()

	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.opts.Debounce, c.flush)
}

// TryUpdate runs fn against the working document under the cache lock and
// schedules a debounced flush only when fn reports that it changed the
// document. Lets callers make a read-check-mutate sequence atomic without
// persisting untouched state.
func (c *Cache) TryUpdate(fn func(doc *domain.StateDocument) bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !fn(c.doc) {
		return false
	}
	c.snapshot = c.doc.Clone()

	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.opts.Debounce, c.flush)
	return true
}

// ForceSave bypasses the debounce window and writes the current document to
// the remote store synchronously, for callers that need a best-effort
// durability guarantee before shutdown. A single attempt is made; the error,
// if any, is returned and logged.
func (c *Cache) ForceSave(ctx context.Context) error {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	snap := c.doc.Clone()
	c.snapshot = nil
	c.mu.Unlock()

	if err := c.remote.Store(ctx, snap); err != nil {
		flushAttempts.WithLabelValues("error").Inc()
		c.log.Error().Err(err).Msg("forced save failed")
		return err
	}
	flushAttempts.WithLabelValues("ok").Inc()
	return nil
}

// flush writes the most recent snapshot to the remote store with bounded
// retries and linear backoff. Overlapping schedules collapse: if a flush is
// already in flight, the call returns immediately.
func (c *Cache) flush() {
	c.mu.Lock()
	if c.flushing || c.snapshot == nil {
		c.mu.Unlock()
		return
	}
	c.flushing = true
	snap := c.snapshot
	c.snapshot = nil
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.flushing = false
		// An Update that landed mid-flush left a newer snapshot behind;
		// rearm so it is not stranded until the next mutation.
		if c.snapshot != nil {
			if c.timer != nil {
				c.timer.Stop()
			}
			c.timer = time.AfterFunc(c.opts.Debounce, c.flush)
		}
		c.mu.Unlock()
	}()

	for attempt := 1; attempt <= c.opts.FlushRetries; attempt++ {
		err := c.remote.Store(context.Background(), snap)
		if err == nil {
			flushAttempts.WithLabelValues("ok").Inc()
			c.log.Debug().Int("attempt", attempt).Msg("state document flushed")
			return
		}
		flushAttempts.WithLabelValues("error").Inc()
		c.log.Warn().Err(err).Int("attempt", attempt).Msg("record store write failed")
		if attempt < c.opts.FlushRetries {
			time.Sleep(time.Duration(attempt) * c.opts.FlushBackoff)
		}
	}

	// Abandon this cycle; the next Update reschedules a flush.
	flushAbandoned.Inc()
	c.log.Error().Msg("flush abandoned after retries, awaiting next mutation")
}

package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/atlasbio/atlas-search/internal/bigsi"
	"github.com/atlasbio/atlas-search/internal/cache"
	"github.com/atlasbio/atlas-search/internal/classifier"
	"github.com/atlasbio/atlas-search/internal/fingerprint"
	"github.com/atlasbio/atlas-search/internal/notify"
	"github.com/atlasbio/atlas-search/internal/storage"
	"github.com/atlasbio/atlas-search/pkg/types"
)

// Outcome describes what the orchestrator did with a search request
type Outcome string

const (
	// OutcomeComplete means a fresh result was returned immediately
	OutcomeComplete Outcome = "complete"
	// OutcomePending means the requester was attached as a waiter
	OutcomePending Outcome = "pending"
)

// Default orchestration settings
const (
	DefaultTTL       = time.Hour
	DefaultCacheSize = cache.DefaultMaxEntries
)

// Config holds orchestrator settings
type Config struct {
	// TTL overrides result lifetime per query type
	TTL map[types.QueryType]time.Duration

	// DefaultTTL applies when no per-type override exists
	DefaultTTL time.Duration

	// MaxPendingAge re-dispatches searches stuck in pending longer
	// than this. Zero disables the check.
	MaxPendingAge time.Duration

	// CacheSize bounds the in-memory result cache
	CacheSize int
}

// SearchRequest is one de-duplicated search submission
type SearchRequest struct {
	Query     types.RawQuery
	Requester string
}

// SearchResponse reports the outcome of a search submission
type SearchResponse struct {
	Outcome     Outcome
	Fingerprint string
	Type        types.QueryType
	SearchID    int64
	Result      json.RawMessage
	CacheHit    bool
	Dispatched  bool
	JobID       string
}

// Orchestrator coordinates classification, de-duplication, dispatch
// and completion of search requests
type Orchestrator struct {
	store    storage.Storage
	client   bigsi.Client
	cache    *cache.Cache
	notifier notify.Notifier
	cfg      Config
	locks    *keyedLock
}

// New creates an orchestrator
func New(store storage.Storage, client bigsi.Client, notifier notify.Notifier, cfg Config) *Orchestrator {
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = DefaultTTL
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultCacheSize
	}
	if notifier == nil {
		notifier = notify.LogNotifier{}
	}
	resultCache, err := cache.New(cfg.CacheSize)
	if err != nil {
		// This should never happen with valid size parameter
		panic(fmt.Sprintf("failed to create result cache: %v", err))
	}
	return &Orchestrator{
		store:    store,
		client:   client,
		cache:    resultCache,
		notifier: notifier,
		cfg:      cfg,
		locks:    newKeyedLock(),
	}
}

// Cache exposes the result cache for status reporting
func (o *Orchestrator) Cache() *cache.Cache {
	return o.cache
}

// ttlFor returns the result lifetime for a query type
func (o *Orchestrator) ttlFor(t types.QueryType) time.Duration {
	if ttl, ok := o.cfg.TTL[t]; ok && ttl > 0 {
		return ttl
	}
	return o.cfg.DefaultTTL
}

// Search submits one search request. Identical queries collapse onto a
// single search record: the first submission dispatches a job, later
// submissions attach as waiters, and a fresh completed result is
// returned immediately.
func (o *Orchestrator) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	if req.Requester == "" {
		return nil, types.ErrEmptyRequester
	}

	typed, _, ok := classifier.Classify(req.Query)
	if !ok {
		return nil, fmt.Errorf("%w: %q", types.ErrNotClassifiable, req.Query.Text)
	}
	if err := typed.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrMalformedQuery, err)
	}

	fp := fingerprint.Fingerprint(typed)

	// Cache fast path. A hit means a fresh completed result exists
	// and no record state changes.
	if payload, ok := o.cache.Get(fp); ok {
		return &SearchResponse{
			Outcome:     OutcomeComplete,
			Fingerprint: fp,
			Type:        typed.Type,
			Result:      payload,
			CacheHit:    true,
		}, nil
	}

	o.locks.Lock(fp)
	defer o.locks.Unlock(fp)

	now := time.Now()
	rec, err := o.store.GetSearchByFingerprint(ctx, fp)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return o.startSearch(ctx, fp, typed, req.Requester)
	case err != nil:
		return nil, fmt.Errorf("lookup search: %w", err)
	}

	switch {
	case rec.Status == storage.StatusPending:
		return o.joinPending(ctx, rec, req.Requester, now)

	case rec.Expired(now):
		return o.restartSearch(ctx, rec, req.Requester)

	default:
		// Fresh completed result. Repopulate the cache from the
		// record so the next identical query skips storage.
		if rec.ExpiresAt != nil {
			o.cache.Put(fp, rec.Result, time.Until(*rec.ExpiresAt))
		}
		return &SearchResponse{
			Outcome:     OutcomeComplete,
			Fingerprint: fp,
			Type:        rec.Type,
			SearchID:    rec.ID,
			Result:      rec.Result,
		}, nil
	}
}

// startSearch creates the record and dispatches the first job. The
// record is rolled back if dispatch fails so a later submission can
// try again.
func (o *Orchestrator) startSearch(ctx context.Context, fp string, typed types.TypedQuery, requester string) (*SearchResponse, error) {
	queryJSON, err := json.Marshal(typed)
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	rec := &storage.Search{
		Fingerprint: fp,
		Type:        typed.Type,
		Query:       queryJSON,
		Status:      storage.StatusPending,
	}
	if err := o.store.CreateSearch(ctx, rec); err != nil {
		return nil, fmt.Errorf("create search: %w", err)
	}

	job, err := o.client.Dispatch(ctx, bigsi.DispatchRequest{
		Fingerprint: fp,
		Type:        typed.Type,
		Query:       queryJSON,
	})
	if err != nil {
		if delErr := o.store.DeleteSearch(ctx, rec.ID); delErr != nil {
			log.Printf("orchestrator: rollback of %s failed: %v", fp, delErr)
		}
		return nil, fmt.Errorf("dispatch search: %w", err)
	}

	if _, err := o.store.AddWaiter(ctx, rec.ID, requester); err != nil {
		return nil, fmt.Errorf("attach waiter: %w", err)
	}

	log.Printf("orchestrator: dispatched %s search %s as job %s", typed.Type, fp, job.ID)
	return &SearchResponse{
		Outcome:     OutcomePending,
		Fingerprint: fp,
		Type:        typed.Type,
		SearchID:    rec.ID,
		Dispatched:  true,
		JobID:       job.ID,
	}, nil
}

// joinPending attaches the requester to an in-flight search and
// confirms the attach to newly added waiters. A search stuck in
// pending beyond MaxPendingAge is dispatched again.
func (o *Orchestrator) joinPending(ctx context.Context, rec *storage.Search, requester string, now time.Time) (*SearchResponse, error) {
	dispatched := false
	jobID := ""

	if o.cfg.MaxPendingAge > 0 && rec.PendingSince(now) > o.cfg.MaxPendingAge {
		o.cache.Delete(rec.Fingerprint)
		if err := o.store.MarkPending(ctx, rec.ID); err != nil {
			return nil, fmt.Errorf("refresh pending search: %w", err)
		}
		job, err := o.client.Dispatch(ctx, bigsi.DispatchRequest{
			Fingerprint: rec.Fingerprint,
			Type:        rec.Type,
			Query:       rec.Query,
		})
		if err != nil {
			return nil, fmt.Errorf("re-dispatch stuck search: %w", err)
		}
		dispatched = true
		jobID = job.ID
		log.Printf("orchestrator: re-dispatched stuck search %s as job %s", rec.Fingerprint, job.ID)
	}

	added, err := o.store.AddWaiter(ctx, rec.ID, requester)
	if err != nil {
		return nil, fmt.Errorf("attach waiter: %w", err)
	}

	// Only a newly attached requester hears about the join. A repeat
	// submission while pending is a no-op on the waiter set and must
	// not produce a second event.
	if added {
		event := notify.Event{
			Kind:        notify.KindAttached,
			Fingerprint: rec.Fingerprint,
			Type:        rec.Type,
		}
		if err := o.notifier.Emit(ctx, requester, event); err != nil {
			log.Printf("orchestrator: attach notification to %s failed for %s: %v", requester, rec.Fingerprint, err)
		}
	}

	return &SearchResponse{
		Outcome:     OutcomePending,
		Fingerprint: rec.Fingerprint,
		Type:        rec.Type,
		SearchID:    rec.ID,
		Dispatched:  dispatched,
		JobID:       jobID,
	}, nil
}

// restartSearch begins a new pending cycle for an expired result. The
// stale cache entry goes first so no reader can observe it after the
// record flips back to pending.
func (o *Orchestrator) restartSearch(ctx context.Context, rec *storage.Search, requester string) (*SearchResponse, error) {
	o.cache.Delete(rec.Fingerprint)

	if err := o.store.MarkPending(ctx, rec.ID); err != nil {
		return nil, fmt.Errorf("reset expired search: %w", err)
	}

	job, err := o.client.Dispatch(ctx, bigsi.DispatchRequest{
		Fingerprint: rec.Fingerprint,
		Type:        rec.Type,
		Query:       rec.Query,
	})
	if err != nil {
		return nil, fmt.Errorf("dispatch search: %w", err)
	}

	if _, err := o.store.AddWaiter(ctx, rec.ID, requester); err != nil {
		return nil, fmt.Errorf("attach waiter: %w", err)
	}

	log.Printf("orchestrator: expired %s search %s re-dispatched as job %s", rec.Type, rec.Fingerprint, job.ID)
	return &SearchResponse{
		Outcome:     OutcomePending,
		Fingerprint: rec.Fingerprint,
		Type:        rec.Type,
		SearchID:    rec.ID,
		Dispatched:  true,
		JobID:       job.ID,
	}, nil
}

// Complete records a finished result for a fingerprint, drains the
// waiter set in the same transaction, then fans the result out to the
// drained waiters. Safe to call more than once per job: the second
// call finds no waiters to notify.
func (o *Orchestrator) Complete(ctx context.Context, fp string, result json.RawMessage) error {
	o.locks.Lock(fp)
	defer o.locks.Unlock(fp)

	tx, err := o.store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rec, err := tx.GetSearchByFingerprint(ctx, fp)
	if err != nil {
		return fmt.Errorf("lookup search %s: %w", fp, err)
	}

	ttl := o.ttlFor(rec.Type)
	expiresAt := time.Now().Add(ttl)

	if err := tx.MarkComplete(ctx, rec.ID, result, expiresAt); err != nil {
		return fmt.Errorf("mark complete: %w", err)
	}

	waiters, err := tx.ListWaiters(ctx, rec.ID)
	if err != nil {
		return fmt.Errorf("list waiters: %w", err)
	}
	if err := tx.ClearWaiters(ctx, rec.ID); err != nil {
		return fmt.Errorf("clear waiters: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit completion: %w", err)
	}

	o.cache.Put(fp, result, ttl)

	delivered := notify.FanOut(ctx, o.notifier, waiters, notify.Event{
		Kind:        notify.KindComplete,
		Fingerprint: fp,
		Type:        rec.Type,
		Result:      result,
		CompletedAt: time.Now(),
	})
	log.Printf("orchestrator: completed search %s, notified %d of %d waiters", fp, delivered, len(waiters))
	return nil
}

// GetSearch returns the stored record for a search id
func (o *Orchestrator) GetSearch(ctx context.Context, searchID int64) (*storage.Search, error) {
	return o.store.GetSearchByID(ctx, searchID)
}

// Status reports storage and cache statistics
func (o *Orchestrator) Status(ctx context.Context) (*storage.Stats, int, error) {
	stats, err := o.store.GetStats(ctx)
	if err != nil {
		return nil, 0, err
	}
	return stats, o.cache.Len(), nil
}

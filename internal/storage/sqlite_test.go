package storage

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/atlasbio/atlas-search/pkg/types"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStorage: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestSearch(t *testing.T, s *SQLiteStorage, fp string) *Search {
	t.Helper()
	search := &Search{
		Fingerprint: fp,
		Type:        types.QueryTypeSequence,
		Query:       json.RawMessage(`{"seq":"ACGT","threshold":100}`),
	}
	if err := s.CreateSearch(context.Background(), search); err != nil {
		t.Fatalf("CreateSearch: %v", err)
	}
	return search
}

func TestCreateSearchDuplicateFingerprint(t *testing.T) {
	s := newTestStorage(t)
	newTestSearch(t, s, "fp-1")

	dup := &Search{
		Fingerprint: "fp-1",
		Type:        types.QueryTypeSequence,
		Query:       json.RawMessage(`{}`),
	}
	err := s.CreateSearch(context.Background(), dup)
	if !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestGetSearchByFingerprint(t *testing.T) {
	s := newTestStorage(t)
	created := newTestSearch(t, s, "fp-get")

	got, err := s.GetSearchByFingerprint(context.Background(), "fp-get")
	if err != nil {
		t.Fatalf("GetSearchByFingerprint: %v", err)
	}
	if got.ID != created.ID {
		t.Errorf("ID = %d, want %d", got.ID, created.ID)
	}
	if got.Status != StatusPending {
		t.Errorf("Status = %q, want %q", got.Status, StatusPending)
	}
	if got.Result != nil {
		t.Errorf("Result should be nil for pending search, got %s", got.Result)
	}
	if got.ExpiresAt != nil {
		t.Errorf("ExpiresAt should be nil for pending search")
	}

	if _, err := s.GetSearchByFingerprint(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMarkCompleteAndPendingCycle(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	search := newTestSearch(t, s, "fp-cycle")

	result := json.RawMessage(`{"ERR1":{"percent":100}}`)
	expires := time.Now().Add(time.Hour)
	if err := s.MarkComplete(ctx, search.ID, result, expires); err != nil {
		t.Fatalf("MarkComplete: %v", err)
	}

	got, err := s.GetSearchByID(ctx, search.ID)
	if err != nil {
		t.Fatalf("GetSearchByID: %v", err)
	}
	if got.Status != StatusComplete {
		t.Errorf("Status = %q, want %q", got.Status, StatusComplete)
	}
	if string(got.Result) != string(result) {
		t.Errorf("Result = %s, want %s", got.Result, result)
	}
	if got.ExpiresAt == nil {
		t.Fatal("ExpiresAt should be set after completion")
	}
	if got.Expired(time.Now()) {
		t.Error("search should not be expired yet")
	}
	if !got.Expired(expires.Add(time.Second)) {
		t.Error("search should be expired after its expiry time")
	}

	// Reset for a new pending cycle
	if err := s.MarkPending(ctx, search.ID); err != nil {
		t.Fatalf("MarkPending: %v", err)
	}
	got, err = s.GetSearchByID(ctx, search.ID)
	if err != nil {
		t.Fatalf("GetSearchByID: %v", err)
	}
	if got.Status != StatusPending {
		t.Errorf("Status = %q, want %q", got.Status, StatusPending)
	}
	if got.Result != nil || got.ExpiresAt != nil {
		t.Error("MarkPending should clear result and expiry")
	}
}

func TestMarkCompleteMissing(t *testing.T) {
	s := newTestStorage(t)
	err := s.MarkComplete(context.Background(), 9999, json.RawMessage(`{}`), time.Now())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestWaiters(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	search := newTestSearch(t, s, "fp-waiters")

	added, err := s.AddWaiter(ctx, search.ID, "alice")
	if err != nil {
		t.Fatalf("AddWaiter: %v", err)
	}
	if !added {
		t.Error("first attach should report added")
	}

	// Same requester again is a no-op
	added, err = s.AddWaiter(ctx, search.ID, "alice")
	if err != nil {
		t.Fatalf("AddWaiter: %v", err)
	}
	if added {
		t.Error("duplicate attach should not report added")
	}

	if _, err := s.AddWaiter(ctx, search.ID, "bob"); err != nil {
		t.Fatalf("AddWaiter: %v", err)
	}

	waiters, err := s.ListWaiters(ctx, search.ID)
	if err != nil {
		t.Fatalf("ListWaiters: %v", err)
	}
	if len(waiters) != 2 {
		t.Fatalf("got %d waiters, want 2", len(waiters))
	}

	if err := s.ClearWaiters(ctx, search.ID); err != nil {
		t.Fatalf("ClearWaiters: %v", err)
	}
	waiters, err = s.ListWaiters(ctx, search.ID)
	if err != nil {
		t.Fatalf("ListWaiters: %v", err)
	}
	if len(waiters) != 0 {
		t.Errorf("got %d waiters after clear, want 0", len(waiters))
	}
}

func TestDeleteSearchCascadesWaiters(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	search := newTestSearch(t, s, "fp-del")
	if _, err := s.AddWaiter(ctx, search.ID, "alice"); err != nil {
		t.Fatalf("AddWaiter: %v", err)
	}

	if err := s.DeleteSearch(ctx, search.ID); err != nil {
		t.Fatalf("DeleteSearch: %v", err)
	}
	if _, err := s.GetSearchByID(ctx, search.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}

	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM search_waiters WHERE search_id = ?", search.ID).Scan(&count)
	if err != nil {
		t.Fatalf("count waiters: %v", err)
	}
	if count != 0 {
		t.Errorf("got %d orphaned waiters, want 0", count)
	}
}

func TestTxCompleteAndDrain(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	search := newTestSearch(t, s, "fp-tx")
	if _, err := s.AddWaiter(ctx, search.ID, "alice"); err != nil {
		t.Fatalf("AddWaiter: %v", err)
	}

	tx, err := s.BeginTx(ctx)
	if err != nil {
		t.Fatalf("BeginTx: %v", err)
	}

	waiters, err := tx.ListWaiters(ctx, search.ID)
	if err != nil {
		t.Fatalf("tx.ListWaiters: %v", err)
	}
	if len(waiters) != 1 || waiters[0] != "alice" {
		t.Fatalf("waiters = %v, want [alice]", waiters)
	}
	if err := tx.MarkComplete(ctx, search.ID, json.RawMessage(`{}`), time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("tx.MarkComplete: %v", err)
	}
	if err := tx.ClearWaiters(ctx, search.ID); err != nil {
		t.Fatalf("tx.ClearWaiters: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	got, err := s.GetSearchByID(ctx, search.ID)
	if err != nil {
		t.Fatalf("GetSearchByID: %v", err)
	}
	if got.Status != StatusComplete {
		t.Errorf("Status = %q, want %q", got.Status, StatusComplete)
	}
	remaining, _ := s.ListWaiters(ctx, search.ID)
	if len(remaining) != 0 {
		t.Errorf("waiters not drained: %v", remaining)
	}
}

func TestTxRollback(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	tx, err := s.BeginTx(ctx)
	if err != nil {
		t.Fatalf("BeginTx: %v", err)
	}
	search := &Search{
		Fingerprint: "fp-rollback",
		Type:        types.QueryTypeDNAVariant,
		Query:       json.RawMessage(`{"ref":"C","pos":761,"alt":"T"}`),
	}
	if err := tx.CreateSearch(ctx, search); err != nil {
		t.Fatalf("tx.CreateSearch: %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("Rollback: %v", err)
	}

	if _, err := s.GetSearchByFingerprint(ctx, "fp-rollback"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after rollback, got %v", err)
	}
}

func TestGroups(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	group := &Group{UID: "uid-1", Name: "london-outbreak"}
	if err := s.CreateGroup(ctx, group); err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	if group.ID == 0 {
		t.Error("group ID not assigned")
	}

	dup := &Group{UID: "uid-2", Name: "london-outbreak"}
	if err := s.CreateGroup(ctx, dup); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists for duplicate name, got %v", err)
	}

	got, err := s.GetGroupByName(ctx, "london-outbreak")
	if err != nil {
		t.Fatalf("GetGroupByName: %v", err)
	}
	if got.UID != "uid-1" {
		t.Errorf("UID = %q, want uid-1", got.UID)
	}

	search := newTestSearch(t, s, "fp-group")
	if err := s.AddSearchToGroup(ctx, group.ID, search.ID); err != nil {
		t.Fatalf("AddSearchToGroup: %v", err)
	}
	// Attaching again is a no-op
	if err := s.AddSearchToGroup(ctx, group.ID, search.ID); err != nil {
		t.Fatalf("AddSearchToGroup repeat: %v", err)
	}

	searches, err := s.ListGroupSearches(ctx, group.ID)
	if err != nil {
		t.Fatalf("ListGroupSearches: %v", err)
	}
	if len(searches) != 1 {
		t.Fatalf("got %d searches in group, want 1", len(searches))
	}
	if searches[0].Fingerprint != "fp-group" {
		t.Errorf("Fingerprint = %q, want fp-group", searches[0].Fingerprint)
	}

	groups, err := s.ListGroups(ctx)
	if err != nil {
		t.Fatalf("ListGroups: %v", err)
	}
	if len(groups) != 1 {
		t.Errorf("got %d groups, want 1", len(groups))
	}
}

func TestGetStats(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	a := newTestSearch(t, s, "fp-a")
	newTestSearch(t, s, "fp-b")
	if err := s.MarkComplete(ctx, a.ID, json.RawMessage(`{}`), time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("MarkComplete: %v", err)
	}
	if _, err := s.AddWaiter(ctx, a.ID, "alice"); err != nil {
		t.Fatalf("AddWaiter: %v", err)
	}

	stats, err := s.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.SearchesTotal != 2 {
		t.Errorf("SearchesTotal = %d, want 2", stats.SearchesTotal)
	}
	if stats.SearchesPending != 1 {
		t.Errorf("SearchesPending = %d, want 1", stats.SearchesPending)
	}
	if stats.SearchesComplete != 1 {
		t.Errorf("SearchesComplete = %d, want 1", stats.SearchesComplete)
	}
	if stats.WaitersTotal != 1 {
		t.Errorf("WaitersTotal = %d, want 1", stats.WaitersTotal)
	}
}

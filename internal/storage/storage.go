package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/atlasbio/atlas-search/pkg/types"
)

// Status is the lifecycle state of a search record
type Status string

const (
	// StatusPending means a compute job is (or should be) in flight
	StatusPending Status = "pending"
	// StatusComplete means the result payload has landed
	StatusComplete Status = "complete"
)

// Storage defines the interface for persisting search records, waiter sets and
// saved-search groups
type Storage interface {
	// Search record operations
	CreateSearch(ctx context.Context, search *Search) error
	GetSearchByFingerprint(ctx context.Context, fingerprint string) (*Search, error)
	GetSearchByID(ctx context.Context, searchID int64) (*Search, error)
	MarkPending(ctx context.Context, searchID int64) error
	MarkComplete(ctx context.Context, searchID int64, result json.RawMessage, expiresAt time.Time) error
	DeleteSearch(ctx context.Context, searchID int64) error

	// Waiter operations. AddWaiter is a set-union: attaching an already
	// attached requester reports added=false and changes nothing.
	AddWaiter(ctx context.Context, searchID int64, requester string) (added bool, err error)
	ListWaiters(ctx context.Context, searchID int64) ([]string, error)
	ClearWaiters(ctx context.Context, searchID int64) error

	// Group operations
	CreateGroup(ctx context.Context, group *Group) error
	GetGroupByName(ctx context.Context, name string) (*Group, error)
	GetGroupByID(ctx context.Context, groupID int64) (*Group, error)
	ListGroups(ctx context.Context) ([]*Group, error)
	AddSearchToGroup(ctx context.Context, groupID, searchID int64) error
	ListGroupSearches(ctx context.Context, groupID int64) ([]*Search, error)

	// Status operations
	GetStats(ctx context.Context) (*Stats, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Storage // Embed Storage interface for transaction operations
}

// Search is the durable record of one fingerprinted query: its lifecycle
// state, result payload, expiry, and the waiter set tracked alongside it. The
// fingerprint is recomputed from the typed query before persistence and never
// trusted from callers.
type Search struct {
	ID          int64
	Fingerprint string
	Type        types.QueryType
	Query       json.RawMessage // canonical typed query, serialized
	Status      Status
	Result      json.RawMessage // nil while pending
	ExpiresAt   *time.Time      // nil while pending
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Expired reports whether a complete record's result is past its TTL at the
// given instant. Pending records are never expired; they are unstuck by the
// orchestrator's max-pending-age policy instead.
func (s *Search) Expired(now time.Time) bool {
	return s.Status == StatusComplete && s.ExpiresAt != nil && now.After(*s.ExpiresAt)
}

// PendingSince reports how long the record has been in its current pending
// cycle, or zero if it is not pending
func (s *Search) PendingSince(now time.Time) time.Duration {
	if s.Status != StatusPending {
		return 0
	}
	return now.Sub(s.UpdatedAt)
}

// Group is a named saved-search bundle
type Group struct {
	ID        int64
	UID       string // stable external identifier
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Stats contains counts and size information for the status surface
type Stats struct {
	SearchesTotal    int
	SearchesPending  int
	SearchesComplete int
	WaitersTotal     int
	GroupsTotal      int
	DatabaseSizeMB   float64
}

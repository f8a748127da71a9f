package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atlasbio/atlas-search/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when trying to create a duplicate entity
	ErrAlreadyExists = errors.New("already exists")
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Apply migrations
	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, storage: s}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

// querier returns the transaction querier
func (t *sqliteTx) querier() querier {
	return t.tx
}

// querier returns the DB querier
func (s *SQLiteStorage) querier() querier {
	return s.db
}

// isUniqueViolation detects constraint failures across both drivers
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

const searchColumns = `id, fingerprint, query_type, query_json, status, result_json, expires_at, created_at, updated_at`

// scanSearch reads one searches row from a row scanner
func scanSearch(scan func(dest ...interface{}) error) (*Search, error) {
	var search Search
	var queryType, queryJSON, status string
	var resultJSON sql.NullString
	var expiresAt sql.NullTime
	err := scan(
		&search.ID, &search.Fingerprint, &queryType, &queryJSON, &status,
		&resultJSON, &expiresAt, &search.CreatedAt, &search.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	search.Type = types.QueryType(queryType)
	search.Query = json.RawMessage(queryJSON)
	search.Status = Status(status)
	if resultJSON.Valid {
		search.Result = json.RawMessage(resultJSON.String)
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		search.ExpiresAt = &t
	}
	return &search, nil
}

// Search record operations

// createSearchWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) createSearchWithQuerier(ctx context.Context, q querier, search *Search) error {
	query := `
		INSERT INTO searches (fingerprint, query_type, query_json, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	now := time.Now()
	if search.Status == "" {
		search.Status = StatusPending
	}
	result, err := q.ExecContext(ctx, query,
		search.Fingerprint, string(search.Type), string(search.Query),
		string(search.Status), now, now)
	if isUniqueViolation(err) {
		return fmt.Errorf("fingerprint %s: %w", search.Fingerprint, ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("failed to create search: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	search.ID = id
	search.CreatedAt = now
	search.UpdatedAt = now
	return nil
}

func (s *SQLiteStorage) CreateSearch(ctx context.Context, search *Search) error {
	return s.createSearchWithQuerier(ctx, s.querier(), search)
}

// getSearchByFingerprintWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) getSearchByFingerprintWithQuerier(ctx context.Context, q querier, fingerprint string) (*Search, error) {
	query := `SELECT ` + searchColumns + ` FROM searches WHERE fingerprint = ?`
	return scanSearch(q.QueryRowContext(ctx, query, fingerprint).Scan)
}

func (s *SQLiteStorage) GetSearchByFingerprint(ctx context.Context, fingerprint string) (*Search, error) {
	return s.getSearchByFingerprintWithQuerier(ctx, s.querier(), fingerprint)
}

// getSearchByIDWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) getSearchByIDWithQuerier(ctx context.Context, q querier, searchID int64) (*Search, error) {
	query := `SELECT ` + searchColumns + ` FROM searches WHERE id = ?`
	return scanSearch(q.QueryRowContext(ctx, query, searchID).Scan)
}

func (s *SQLiteStorage) GetSearchByID(ctx context.Context, searchID int64) (*Search, error) {
	return s.getSearchByIDWithQuerier(ctx, s.querier(), searchID)
}

// markPendingWithQuerier resets a record to the start of a pending cycle
func (s *SQLiteStorage) markPendingWithQuerier(ctx context.Context, q querier, searchID int64) error {
	query := `
		UPDATE searches
		SET status = ?, result_json = NULL, expires_at = NULL, updated_at = ?
		WHERE id = ?
	`
	result, err := q.ExecContext(ctx, query, string(StatusPending), time.Now(), searchID)
	if err != nil {
		return fmt.Errorf("failed to mark search pending: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStorage) MarkPending(ctx context.Context, searchID int64) error {
	return s.markPendingWithQuerier(ctx, s.querier(), searchID)
}

// markCompleteWithQuerier stores the result payload and expiry in one update
func (s *SQLiteStorage) markCompleteWithQuerier(ctx context.Context, q querier, searchID int64, result json.RawMessage, expiresAt time.Time) error {
	query := `
		UPDATE searches
		SET status = ?, result_json = ?, expires_at = ?, updated_at = ?
		WHERE id = ?
	`
	res, err := q.ExecContext(ctx, query, string(StatusComplete), string(result), expiresAt, time.Now(), searchID)
	if err != nil {
		return fmt.Errorf("failed to mark search complete: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStorage) MarkComplete(ctx context.Context, searchID int64, result json.RawMessage, expiresAt time.Time) error {
	return s.markCompleteWithQuerier(ctx, s.querier(), searchID, result, expiresAt)
}

// deleteSearchWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) deleteSearchWithQuerier(ctx context.Context, q querier, searchID int64) error {
	query := `DELETE FROM searches WHERE id = ?`
	_, err := q.ExecContext(ctx, query, searchID)
	return err
}

func (s *SQLiteStorage) DeleteSearch(ctx context.Context, searchID int64) error {
	return s.deleteSearchWithQuerier(ctx, s.querier(), searchID)
}

// Waiter operations

// addWaiterWithQuerier attaches a requester; INSERT OR IGNORE makes the
// attach a set-union so duplicate requesters never appear
func (s *SQLiteStorage) addWaiterWithQuerier(ctx context.Context, q querier, searchID int64, requester string) (bool, error) {
	query := `
		INSERT OR IGNORE INTO search_waiters (search_id, requester_id, created_at)
		VALUES (?, ?, ?)
	`
	result, err := q.ExecContext(ctx, query, searchID, requester, time.Now())
	if err != nil {
		return false, fmt.Errorf("failed to add waiter: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *SQLiteStorage) AddWaiter(ctx context.Context, searchID int64, requester string) (bool, error) {
	return s.addWaiterWithQuerier(ctx, s.querier(), searchID, requester)
}

// listWaitersWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) listWaitersWithQuerier(ctx context.Context, q querier, searchID int64) ([]string, error) {
	query := `SELECT requester_id FROM search_waiters WHERE search_id = ? ORDER BY created_at`
	rows, err := q.QueryContext(ctx, query, searchID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	waiters := make([]string, 0)
	for rows.Next() {
		var requester string
		if err := rows.Scan(&requester); err != nil {
			return nil, err
		}
		waiters = append(waiters, requester)
	}
	return waiters, rows.Err()
}

func (s *SQLiteStorage) ListWaiters(ctx context.Context, searchID int64) ([]string, error) {
	return s.listWaitersWithQuerier(ctx, s.querier(), searchID)
}

// clearWaitersWithQuerier drains the waiter set without touching the record
func (s *SQLiteStorage) clearWaitersWithQuerier(ctx context.Context, q querier, searchID int64) error {
	query := `DELETE FROM search_waiters WHERE search_id = ?`
	_, err := q.ExecContext(ctx, query, searchID)
	return err
}

func (s *SQLiteStorage) ClearWaiters(ctx context.Context, searchID int64) error {
	return s.clearWaitersWithQuerier(ctx, s.querier(), searchID)
}

// Group operations

// createGroupWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) createGroupWithQuerier(ctx context.Context, q querier, group *Group) error {
	query := `
		INSERT INTO groups (uid, name, created_at, updated_at)
		VALUES (?, ?, ?, ?)
	`
	now := time.Now()
	result, err := q.ExecContext(ctx, query, group.UID, group.Name, now, now)
	if isUniqueViolation(err) {
		return fmt.Errorf("group %s: %w", group.Name, ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("failed to create group: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	group.ID = id
	group.CreatedAt = now
	group.UpdatedAt = now
	return nil
}

func (s *SQLiteStorage) CreateGroup(ctx context.Context, group *Group) error {
	return s.createGroupWithQuerier(ctx, s.querier(), group)
}

// getGroupByNameWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) getGroupByNameWithQuerier(ctx context.Context, q querier, name string) (*Group, error) {
	query := `SELECT id, uid, name, created_at, updated_at FROM groups WHERE name = ?`
	var group Group
	err := q.QueryRowContext(ctx, query, name).Scan(
		&group.ID, &group.UID, &group.Name, &group.CreatedAt, &group.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &group, nil
}

func (s *SQLiteStorage) GetGroupByName(ctx context.Context, name string) (*Group, error) {
	return s.getGroupByNameWithQuerier(ctx, s.querier(), name)
}

// getGroupByIDWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) getGroupByIDWithQuerier(ctx context.Context, q querier, groupID int64) (*Group, error) {
	query := `SELECT id, uid, name, created_at, updated_at FROM groups WHERE id = ?`
	var group Group
	err := q.QueryRowContext(ctx, query, groupID).Scan(
		&group.ID, &group.UID, &group.Name, &group.CreatedAt, &group.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &group, nil
}

func (s *SQLiteStorage) GetGroupByID(ctx context.Context, groupID int64) (*Group, error) {
	return s.getGroupByIDWithQuerier(ctx, s.querier(), groupID)
}

// listGroupsWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) listGroupsWithQuerier(ctx context.Context, q querier) ([]*Group, error) {
	query := `SELECT id, uid, name, created_at, updated_at FROM groups ORDER BY name`
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	groups := make([]*Group, 0)
	for rows.Next() {
		var group Group
		err := rows.Scan(&group.ID, &group.UID, &group.Name, &group.CreatedAt, &group.UpdatedAt)
		if err != nil {
			return nil, err
		}
		groups = append(groups, &group)
	}
	return groups, rows.Err()
}

func (s *SQLiteStorage) ListGroups(ctx context.Context) ([]*Group, error) {
	return s.listGroupsWithQuerier(ctx, s.querier())
}

// addSearchToGroupWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) addSearchToGroupWithQuerier(ctx context.Context, q querier, groupID, searchID int64) error {
	query := `
		INSERT OR IGNORE INTO group_searches (group_id, search_id, created_at)
		VALUES (?, ?, ?)
	`
	_, err := q.ExecContext(ctx, query, groupID, searchID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to attach search to group: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) AddSearchToGroup(ctx context.Context, groupID, searchID int64) error {
	return s.addSearchToGroupWithQuerier(ctx, s.querier(), groupID, searchID)
}

// listGroupSearchesWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) listGroupSearchesWithQuerier(ctx context.Context, q querier, groupID int64) ([]*Search, error) {
	query := `
		SELECT s.id, s.fingerprint, s.query_type, s.query_json, s.status,
		       s.result_json, s.expires_at, s.created_at, s.updated_at
		FROM searches s
		JOIN group_searches gs ON gs.search_id = s.id
		WHERE gs.group_id = ?
		ORDER BY gs.created_at
	`
	rows, err := q.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	searches := make([]*Search, 0)
	for rows.Next() {
		search, err := scanSearch(rows.Scan)
		if err != nil {
			return nil, err
		}
		searches = append(searches, search)
	}
	return searches, rows.Err()
}

func (s *SQLiteStorage) ListGroupSearches(ctx context.Context, groupID int64) ([]*Search, error) {
	return s.listGroupSearchesWithQuerier(ctx, s.querier(), groupID)
}

// Status operations

func (s *SQLiteStorage) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM searches").Scan(&stats.SearchesTotal)
	if err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM searches WHERE status = ?", string(StatusPending)).Scan(&stats.SearchesPending)
	if err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM searches WHERE status = ?", string(StatusComplete)).Scan(&stats.SearchesComplete)
	if err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM search_waiters").Scan(&stats.WaitersTotal)
	if err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM groups").Scan(&stats.GroupsTotal)
	if err != nil {
		return nil, err
	}

	// Calculate database size
	var pageCount, pageSize int
	err = s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount)
	if err == nil {
		_ = s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		stats.DatabaseSizeMB = float64(pageCount*pageSize) / (1024 * 1024)
	}

	return stats, nil
}

// Transaction implementations - delegate to the internal querier helpers

func (t *sqliteTx) CreateSearch(ctx context.Context, search *Search) error {
	return t.storage.createSearchWithQuerier(ctx, t.querier(), search)
}

func (t *sqliteTx) GetSearchByFingerprint(ctx context.Context, fingerprint string) (*Search, error) {
	return t.storage.getSearchByFingerprintWithQuerier(ctx, t.querier(), fingerprint)
}

func (t *sqliteTx) GetSearchByID(ctx context.Context, searchID int64) (*Search, error) {
	return t.storage.getSearchByIDWithQuerier(ctx, t.querier(), searchID)
}

func (t *sqliteTx) MarkPending(ctx context.Context, searchID int64) error {
	return t.storage.markPendingWithQuerier(ctx, t.querier(), searchID)
}

func (t *sqliteTx) MarkComplete(ctx context.Context, searchID int64, result json.RawMessage, expiresAt time.Time) error {
	return t.storage.markCompleteWithQuerier(ctx, t.querier(), searchID, result, expiresAt)
}

func (t *sqliteTx) DeleteSearch(ctx context.Context, searchID int64) error {
	return t.storage.deleteSearchWithQuerier(ctx, t.querier(), searchID)
}

func (t *sqliteTx) AddWaiter(ctx context.Context, searchID int64, requester string) (bool, error) {
	return t.storage.addWaiterWithQuerier(ctx, t.querier(), searchID, requester)
}

func (t *sqliteTx) ListWaiters(ctx context.Context, searchID int64) ([]string, error) {
	return t.storage.listWaitersWithQuerier(ctx, t.querier(), searchID)
}

func (t *sqliteTx) ClearWaiters(ctx context.Context, searchID int64) error {
	return t.storage.clearWaitersWithQuerier(ctx, t.querier(), searchID)
}

func (t *sqliteTx) CreateGroup(ctx context.Context, group *Group) error {
	return t.storage.createGroupWithQuerier(ctx, t.querier(), group)
}

func (t *sqliteTx) GetGroupByName(ctx context.Context, name string) (*Group, error) {
	return t.storage.getGroupByNameWithQuerier(ctx, t.querier(), name)
}

func (t *sqliteTx) GetGroupByID(ctx context.Context, groupID int64) (*Group, error) {
	return t.storage.getGroupByIDWithQuerier(ctx, t.querier(), groupID)
}

func (t *sqliteTx) ListGroups(ctx context.Context) ([]*Group, error) {
	return t.storage.listGroupsWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) AddSearchToGroup(ctx context.Context, groupID, searchID int64) error {
	return t.storage.addSearchToGroupWithQuerier(ctx, t.querier(), groupID, searchID)
}

func (t *sqliteTx) ListGroupSearches(ctx context.Context, groupID int64) ([]*Search, error) {
	return t.storage.listGroupSearchesWithQuerier(ctx, t.querier(), groupID)
}

func (t *sqliteTx) GetStats(ctx context.Context) (*Stats, error) {
	return t.storage.GetStats(ctx)
}

func (t *sqliteTx) Close() error {
	// Transactions don't close the underlying connection
	return nil
}

func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	// SQLite does not support true nested transactions
	return nil, errors.New("nested transactions not supported")
}

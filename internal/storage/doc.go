// Package storage provides SQLite-based persistence for search records.
//
// The storage layer manages:
//   - Search records keyed by query fingerprint
//   - Waiter sets (requesters attached to an in-flight search)
//   - Sample groups and their search membership
//
// # Database Schema
//
// Tables:
//   - searches: one row per unique query fingerprint, with status,
//     serialized query, result payload and expiry
//   - search_waiters: requesters to notify when a search completes
//   - groups: named sample groups
//   - group_searches: searches attached to a group
//
// # Basic Usage
//
//	db, err := storage.NewSQLiteStorage("~/.atlas-search/atlas.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	search := &storage.Search{
//	    Fingerprint: fp,
//	    Type:        types.QueryTypeSequence,
//	    Query:       queryJSON,
//	}
//	err = db.CreateSearch(ctx, search)
//
// # Transactions
//
// Completion updates the record and drains the waiter set atomically:
//
//	tx, err := db.BeginTx(ctx)
//	if err != nil {
//	    return err
//	}
//	defer tx.Rollback()
//
//	waiters, _ := tx.ListWaiters(ctx, searchID)
//	_ = tx.MarkComplete(ctx, searchID, result, expiresAt)
//	_ = tx.ClearWaiters(ctx, searchID)
//
//	if err := tx.Commit(); err != nil {
//	    return err
//	}
//
// # Build Tags
//
// The storage package supports two build configurations:
//
// CGO Build:
//
//   - Uses github.com/mattn/go-sqlite3 driver
//
//   - Requires C compiler
//
//     CGO_ENABLED=1 go build
//
// Pure Go Build (purego tag):
//
//   - Uses modernc.org/sqlite driver
//
//   - No C compiler needed
//
//     CGO_ENABLED=0 go build -tags "purego"
package storage

// Package orchestrator coordinates the search request lifecycle.
//
// Every submitted query is classified, reduced to a content
// fingerprint, and collapsed onto at most one search record. The first
// submission of a query dispatches a BIGSI job; submissions that
// arrive while the job is in flight attach their requester to the
// record's waiter set instead of dispatching again. When the result
// arrives the record is marked complete and every waiter is notified
// exactly once.
//
// Completed results carry a per-type TTL. A fresh result is returned
// immediately, from the in-memory cache when possible. An expired
// result starts a new pending cycle with a fresh dispatch.
//
// The cache is an accelerator only: losing it changes latency, never
// answers, because the search record in storage remains the source of
// truth.
package orchestrator

package types

import "errors"

// Domain errors shared across the search pipeline
var (
	// ErrMalformedQuery indicates a typed query whose tag and payload disagree
	ErrMalformedQuery = errors.New("malformed typed query")
	// ErrNotClassifiable indicates free text that matches no known query pattern.
	// This is a defined outcome, not a failure: callers fall back to plain filtering.
	ErrNotClassifiable = errors.New("query is not classifiable")
	// ErrEmptyRequester indicates a search call without a requester identity
	ErrEmptyRequester = errors.New("requester identity is required")
)

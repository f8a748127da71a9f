package bigsi

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/atlasbio/atlas-search/pkg/types"
)

// Common errors
var (
	ErrInvalidRequest    = errors.New("invalid dispatch request")
	ErrProviderFailed    = errors.New("bigsi provider failed")
	ErrNoProviderEnabled = errors.New("no bigsi provider configured")
)

// DispatchRequest asks the aggregation service to run one search job
type DispatchRequest struct {
	Fingerprint string
	Type        types.QueryType
	Query       json.RawMessage
}

// Job is the provider's handle for an accepted search job
type Job struct {
	ID       string
	Provider string
}

// Client dispatches search jobs to a BIGSI aggregation backend.
// Results come back asynchronously through the completion callback,
// not through Dispatch.
type Client interface {
	// Dispatch submits a search job for the given fingerprint
	Dispatch(ctx context.Context, req DispatchRequest) (*Job, error)

	// Provider returns the provider name
	Provider() string

	// Close releases any resources held by the client
	Close() error
}

// ValidateRequest validates a dispatch request
func ValidateRequest(req DispatchRequest) error {
	if req.Fingerprint == "" {
		return errors.New("fingerprint cannot be empty")
	}
	if len(req.Query) == 0 {
		return errors.New("query cannot be empty")
	}
	switch req.Type {
	case types.QueryTypeSequence, types.QueryTypeProteinVariant, types.QueryTypeDNAVariant:
		return nil
	default:
		return errors.New("unknown query type " + string(req.Type))
	}
}

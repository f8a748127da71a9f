// Package bigsi dispatches search jobs to a BIGSI sequence aggregation
// backend.
//
// Dispatch is fire-and-forget: the backend acknowledges the job and
// later delivers the finished result through a completion callback
// (the webhook endpoint for the http provider, an in-process completer
// for the local provider).
//
// # Providers
//
//   - http: remote aggregation API, dispatched with retry and
//     exponential backoff
//   - local: in-process stub that completes jobs immediately, used
//     for development and tests
//
// # Configuration
//
// The provider is chosen from the environment:
//
//	ATLAS_BIGSI_PROVIDER  http or local (optional)
//	ATLAS_BIGSI_URL       aggregation API base URL (implies http)
//	ATLAS_BIGSI_API_KEY   bearer token for the aggregation API
//	ATLAS_CALLBACK_URL    where the API posts completed results
//
// With no URL configured the local provider is used.
package bigsi

// Package mcp implements the Model Context Protocol server for
// atlas-search.
//
// The server communicates over stdio using JSON-RPC 2.0. Stdout is
// reserved for the protocol; all logging goes to stderr.
//
// # Tools
//
// search submits a genomic query:
//
//	{
//	  "query": "rpoB_S450L",
//	  "requester": "alice"
//	}
//
// The response reports the outcome: "complete" carries the result
// inline, "pending" means a job was dispatched (or joined) and the
// requester will be notified on completion. Optional structured
// fields (threshold, gene, ref, pos, alt) override what the query
// text parses to.
//
// get_search fetches a record by id:
//
//	{"search_id": 7}
//
// get_status reports search, waiter, group and cache statistics.
//
// create_group, add_group_search and get_group manage named sample
// groups. Group membership is derived from completed search results,
// so get_group reflects searches as they finish.
//
// # Errors
//
// Tool failures use JSON-RPC error codes:
//
//	-32602  invalid parameters
//	-32603  internal error
//	-32001  query matched no known query type
//	-32002  search not found
//	-32003  group not found
//	-32004  group name already in use
//	-32005  aggregation backend rejected the job
//	-32006  requester missing
package mcp

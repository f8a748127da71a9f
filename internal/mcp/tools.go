package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/atlasbio/atlas-search/internal/orchestrator"
	"github.com/atlasbio/atlas-search/internal/storage"
	"github.com/atlasbio/atlas-search/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams    = -32602 // Invalid method parameters
	ErrorCodeInternalError    = -32603 // Internal JSON-RPC error
	ErrorCodeNotClassifiable  = -32001 // Query matched no known query type
	ErrorCodeSearchNotFound   = -32002 // No search record with that id
	ErrorCodeGroupNotFound    = -32003 // No group with that name
	ErrorCodeDuplicateGroup   = -32004 // Group name already in use
	ErrorCodeDispatchFailed   = -32005 // Aggregation backend rejected the job
	ErrorCodeRequesterMissing = -32006 // Requester parameter is empty
)

// handleSearch handles the search tool invocation
func (s *Server) handleSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "query parameter is required", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	requester, ok := args["requester"].(string)
	if !ok || requester == "" {
		return nil, newMCPError(ErrorCodeRequesterMissing, "requester parameter is required", map[string]interface{}{
			"param":  "requester",
			"reason": "missing or empty",
		})
	}

	// Collect optional structured fields; they override what the
	// query text parses to
	fields := make(map[string]any)
	for _, key := range []string{"threshold", "gene", "ref", "pos", "alt"} {
		if val, ok := args[key]; ok {
			fields[key] = val
		}
	}

	resp, err := s.orchestrator.Search(ctx, orchestrator.SearchRequest{
		Query:     types.RawQuery{Text: query, Fields: fields},
		Requester: requester,
	})
	switch {
	case errors.Is(err, types.ErrNotClassifiable):
		return nil, newMCPError(ErrorCodeNotClassifiable, "query matched no known query type", map[string]interface{}{
			"query": query,
		})
	case errors.Is(err, types.ErrMalformedQuery):
		return nil, newMCPError(ErrorCodeInvalidParams, "malformed query", map[string]interface{}{
			"error": err.Error(),
		})
	case errors.Is(err, types.ErrEmptyRequester):
		return nil, newMCPError(ErrorCodeRequesterMissing, "requester cannot be empty", nil)
	case err != nil:
		return nil, newMCPError(ErrorCodeDispatchFailed, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"outcome":     string(resp.Outcome),
		"fingerprint": resp.Fingerprint,
		"type":        string(resp.Type),
		"search_id":   resp.SearchID,
		"cache_hit":   resp.CacheHit,
		"dispatched":  resp.Dispatched,
	}
	if resp.JobID != "" {
		response["job_id"] = resp.JobID
	}
	if resp.Result != nil {
		response["result"] = json.RawMessage(resp.Result)
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetSearch handles the get_search tool invocation
func (s *Server) handleGetSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	searchID := getIntDefault(args, "search_id", 0)
	if searchID <= 0 {
		return nil, newMCPError(ErrorCodeInvalidParams, "search_id parameter is required", map[string]interface{}{
			"param":  "search_id",
			"reason": "missing or not positive",
		})
	}

	rec, err := s.orchestrator.GetSearch(ctx, int64(searchID))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, newMCPError(ErrorCodeSearchNotFound, "search not found", map[string]interface{}{
			"search_id": searchID,
		})
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to fetch search", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return mcp.NewToolResultText(formatJSON(searchResponse(rec))), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, cached, err := s.orchestrator.Status(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"provider": s.client.Provider(),
		"searches": map[string]interface{}{
			"total":    stats.SearchesTotal,
			"pending":  stats.SearchesPending,
			"complete": stats.SearchesComplete,
		},
		"waiters":       stats.WaitersTotal,
		"groups":        stats.GroupsTotal,
		"cached":        cached,
		"database_size": fmt.Sprintf("%.2f MB", stats.DatabaseSizeMB),
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleCreateGroup handles the create_group tool invocation
func (s *Server) handleCreateGroup(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	name, ok := args["name"].(string)
	if !ok || name == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "name parameter is required", map[string]interface{}{
			"param":  "name",
			"reason": "missing or empty",
		})
	}

	g, err := s.groups.Create(ctx, name)
	if errors.Is(err, storage.ErrAlreadyExists) {
		return nil, newMCPError(ErrorCodeDuplicateGroup, "group already exists", map[string]interface{}{
			"name": name,
		})
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to create group", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"id":   g.ID,
		"uid":  g.UID,
		"name": g.Name,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleAddGroupSearch handles the add_group_search tool invocation
func (s *Server) handleAddGroupSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	name, ok := args["name"].(string)
	if !ok || name == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "name parameter is required", map[string]interface{}{
			"param":  "name",
			"reason": "missing or empty",
		})
	}
	searchID := getIntDefault(args, "search_id", 0)
	if searchID <= 0 {
		return nil, newMCPError(ErrorCodeInvalidParams, "search_id parameter is required", map[string]interface{}{
			"param":  "search_id",
			"reason": "missing or not positive",
		})
	}

	err := s.groups.AddSearch(ctx, name, int64(searchID))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, newMCPError(ErrorCodeGroupNotFound, "group or search not found", map[string]interface{}{
			"name":      name,
			"search_id": searchID,
		})
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to attach search", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"attached":  true,
		"name":      name,
		"search_id": searchID,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetGroup handles the get_group tool invocation
func (s *Server) handleGetGroup(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	name, ok := args["name"].(string)
	if !ok || name == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "name parameter is required", map[string]interface{}{
			"param":  "name",
			"reason": "missing or empty",
		})
	}

	detail, err := s.groups.Get(ctx, name)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, newMCPError(ErrorCodeGroupNotFound, "group not found", map[string]interface{}{
			"name": name,
		})
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to fetch group", map[string]interface{}{
			"error": err.Error(),
		})
	}

	searches := make([]map[string]interface{}, 0, len(detail.Searches))
	for _, rec := range detail.Searches {
		searches = append(searches, searchResponse(rec))
	}
	members := make([]map[string]interface{}, 0, len(detail.Members))
	for _, m := range detail.Members {
		members = append(members, map[string]interface{}{
			"sample_id": m.SampleID,
			"percent":   m.Percent,
		})
	}

	response := map[string]interface{}{
		"id":       detail.Group.ID,
		"uid":      detail.Group.UID,
		"name":     detail.Group.Name,
		"searches": searches,
		"members":  members,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// searchResponse renders one record for tool output
func searchResponse(rec *storage.Search) map[string]interface{} {
	response := map[string]interface{}{
		"search_id":   rec.ID,
		"fingerprint": rec.Fingerprint,
		"type":        string(rec.Type),
		"status":      string(rec.Status),
		"query":       json.RawMessage(rec.Query),
		"created_at":  rec.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		"updated_at":  rec.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if rec.Result != nil {
		response["result"] = json.RawMessage(rec.Result)
	}
	if rec.ExpiresAt != nil {
		response["expires_at"] = rec.ExpiresAt.Format("2006-01-02T15:04:05Z07:00")
	}
	return response
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

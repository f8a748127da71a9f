package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// searchTool returns the tool definition for search
func searchTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search",
		Description: "Submit a genomic search query. Identical queries share one search job; the result is returned immediately when a fresh one exists.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Query text: a DNA sequence (e.g. GTCAGTCC), a protein variant (e.g. rpoB_S450L) or a DNA variant (e.g. C761T)",
				},
				"requester": map[string]interface{}{
					"type":        "string",
					"description": "Identity of the requester to notify when the search completes",
				},
				"threshold": map[string]interface{}{
					"type":        "integer",
					"description": "Minimum match percentage for sequence queries (1-100)",
					"default":     100,
					"minimum":     1,
					"maximum":     100,
				},
				"gene": map[string]interface{}{
					"type":        "string",
					"description": "Gene name override for protein variant queries",
				},
				"ref": map[string]interface{}{
					"type":        "string",
					"description": "Reference allele override for variant queries",
				},
				"pos": map[string]interface{}{
					"type":        "integer",
					"description": "Position override for variant queries",
				},
				"alt": map[string]interface{}{
					"type":        "string",
					"description": "Alternate allele override for variant queries",
				},
			},
			Required: []string{"query", "requester"},
		},
	}
}

// getSearchTool returns the tool definition for get_search
func getSearchTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_search",
		Description: "Fetch a search record by id, including its result when complete",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"search_id": map[string]interface{}{
					"type":        "integer",
					"description": "Search record id returned by the search tool",
				},
			},
			Required: []string{"search_id"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report search, waiter and group statistics for this server",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// createGroupTool returns the tool definition for create_group
func createGroupTool() mcp.Tool {
	return mcp.Tool{
		Name:        "create_group",
		Description: "Create a named sample group",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"name": map[string]interface{}{
					"type":        "string",
					"description": "Unique group name",
				},
			},
			Required: []string{"name"},
		},
	}
}

// addGroupSearchTool returns the tool definition for add_group_search
func addGroupSearchTool() mcp.Tool {
	return mcp.Tool{
		Name:        "add_group_search",
		Description: "Attach an existing search to a group",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"name": map[string]interface{}{
					"type":        "string",
					"description": "Group name",
				},
				"search_id": map[string]interface{}{
					"type":        "integer",
					"description": "Search record id to attach",
				},
			},
			Required: []string{"name", "search_id"},
		},
	}
}

// getGroupTool returns the tool definition for get_group
func getGroupTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_group",
		Description: "Fetch a group with membership derived from its completed searches",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"name": map[string]interface{}{
					"type":        "string",
					"description": "Group name",
				},
			},
			Required: []string{"name"},
		},
	}
}

package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/echofeed/internal/config"
	"github.com/hpungsan/echofeed/internal/errors"
	"github.com/hpungsan/echofeed/internal/feed"
	"github.com/hpungsan/echofeed/internal/narrative"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	lib *feed.Library
	cfg *config.Config
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(lib *feed.Library, cfg *config.Config) *Handlers {
	return &Handlers{lib: lib, cfg: cfg}
}

// Request types for each tool

// ListRequest represents the arguments for post_list.
type ListRequest struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// SearchRequest represents the arguments for post_search.
type SearchRequest struct {
	Query  string `json:"query,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// FetchRequest represents the arguments for post_fetch.
type FetchRequest struct {
	URL string `json:"url"`
}

// FlattenRequest represents the arguments for post_flatten.
type FlattenRequest struct {
	URL string `json:"url"`
}

// FetchResult is the post_fetch response payload.
type FetchResult struct {
	Post *narrative.Post `json:"post"`
}

// FlattenResult is the post_flatten response payload.
type FlattenResult struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	Text  string `json:"text"`
	Chars int    `json:"chars"`
}

// Handler implementations

// HandleList handles the post_list tool call.
func (h *Handlers) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result := feed.Search(h.lib, feed.SearchInput{
		Limit:  input.Limit,
		Offset: input.Offset,
	})

	return successResult(result)
}

// HandleSearch handles the post_search tool call.
func (h *Handlers) HandleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SearchRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result := feed.Search(h.lib, feed.SearchInput{
		Query:  input.Query,
		Limit:  input.Limit,
		Offset: input.Offset,
	})

	return successResult(result)
}

// HandleFetch handles the post_fetch tool call.
func (h *Handlers) HandleFetch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[FetchRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.URL == "" {
		return errorResult(errors.NewInvalidRequest("url is required")), nil
	}

	post, err := h.lib.Get(input.URL)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(FetchResult{Post: post})
}

// HandleFlatten handles the post_flatten tool call.
func (h *Handlers) HandleFlatten(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[FlattenRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.URL == "" {
		return errorResult(errors.NewInvalidRequest("url is required")), nil
	}

	post, err := h.lib.Get(input.URL)
	if err != nil {
		return errorResult(err), nil
	}

	text := post.FlattenText()
	return successResult(FlattenResult{
		URL:   post.URL,
		Title: post.DisplayTitle(),
		Text:  text,
		Chars: post.TotalTextLength(),
	})
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Note: Internal error details are not exposed to prevent leaking sensitive info.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if feedErr, ok := err.(*errors.FeedError); ok {
		errorObj := map[string]any{
			"code":    feedErr.Code,
			"message": feedErr.Message,
			"status":  feedErr.Status,
		}
		// Only include details for non-internal errors to avoid leaking
		// sensitive info like file paths
		if feedErr.Code != errors.ErrInternal && feedErr.Details != nil {
			errorObj["details"] = feedErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}

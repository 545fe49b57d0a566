package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/echofeed/internal/config"
	"github.com/hpungsan/echofeed/internal/feed"
	"github.com/hpungsan/echofeed/internal/narrative"
)

func stringPtr(s string) *string { return &s }

// testSetup builds an in-memory library and default config for testing.
func testSetup(t *testing.T, posts []narrative.Post) (*feed.Library, *config.Config) {
	t.Helper()
	return feed.New(posts), config.DefaultConfig()
}

// makeRequest creates a CallToolRequest with the given arguments.
func makeRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

func textPost(u, title, text string) narrative.Post {
	return narrative.Post{
		URL:   u,
		Title: stringPtr(title),
		Narrative: []narrative.Paragraph{
			{{Kind: narrative.KindText, Content: text}},
		},
	}
}

func numberedPosts(n int) []narrative.Post {
	posts := make([]narrative.Post, 0, n)
	for i := 0; i < n; i++ {
		posts = append(posts, textPost(
			fmt.Sprintf("https://example.com/p%03d", i),
			fmt.Sprintf("Post %03d", i),
			"numbered body",
		))
	}
	return posts
}

// TestHandleList tests the post_list handler.
func TestHandleList(t *testing.T) {
	lib, cfg := testSetup(t, numberedPosts(25))
	h := NewHandlers(lib, cfg)
	ctx := context.Background()

	tests := []struct {
		name      string
		args      map[string]any
		wantItems int
		wantTotal int
		wantMore  bool
	}{
		{
			name:      "default page",
			args:      map[string]any{},
			wantItems: 20,
			wantTotal: 25,
			wantMore:  true,
		},
		{
			name:      "second page",
			args:      map[string]any{"offset": 20},
			wantItems: 5,
			wantTotal: 25,
			wantMore:  false,
		},
		{
			name:      "small limit",
			args:      map[string]any{"limit": 3},
			wantItems: 3,
			wantTotal: 25,
			wantMore:  true,
		},
		{
			name:      "limit capped at max",
			args:      map[string]any{"limit": 500},
			wantItems: 25,
			wantTotal: 25,
			wantMore:  false,
		},
		{
			name:      "offset past end",
			args:      map[string]any{"offset": 100},
			wantItems: 0,
			wantTotal: 25,
			wantMore:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := h.HandleList(ctx, makeRequest(tt.args))
			if err != nil {
				t.Fatalf("handler returned error: %v", err)
			}
			if result.IsError {
				t.Fatalf("expected success, got error: %v", extractErrorMessage(result))
			}

			var out feed.SearchOutput
			decodeResult(t, result, &out)

			if len(out.Items) != tt.wantItems {
				t.Errorf("items = %d, want %d", len(out.Items), tt.wantItems)
			}
			if out.Pagination.Total != tt.wantTotal {
				t.Errorf("total = %d, want %d", out.Pagination.Total, tt.wantTotal)
			}
			if out.Pagination.HasMore != tt.wantMore {
				t.Errorf("has_more = %v, want %v", out.Pagination.HasMore, tt.wantMore)
			}
			if out.Sort != "load-order" {
				t.Errorf("sort = %q, want load-order", out.Sort)
			}
		})
	}
}

// TestHandleList_PreservesLoadOrder verifies items come back unranked.
func TestHandleList_PreservesLoadOrder(t *testing.T) {
	lib, cfg := testSetup(t, numberedPosts(5))
	h := NewHandlers(lib, cfg)

	result, err := h.HandleList(context.Background(), makeRequest(map[string]any{}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}

	var out feed.SearchOutput
	decodeResult(t, result, &out)

	for i, item := range out.Items {
		want := fmt.Sprintf("https://example.com/p%03d", i)
		if item.URL != want {
			t.Errorf("item %d URL = %q, want %q", i, item.URL, want)
		}
	}
}

// TestHandleSearch tests the post_search handler.
func TestHandleSearch(t *testing.T) {
	posts := []narrative.Post{
		textPost("https://example.com/cats", "Cat Facts", "all about felines"),
		textPost("https://example.com/dogs", "Dog Facts", "all about canines"),
		{
			URL:   "https://example.com/links",
			Title: stringPtr("Link Roundup"),
			Narrative: []narrative.Paragraph{
				{{Kind: narrative.KindLink, URL: "https://elsewhere.test", Content: "feline resources"}},
			},
		},
	}
	lib, cfg := testSetup(t, posts)
	h := NewHandlers(lib, cfg)
	ctx := context.Background()

	tests := []struct {
		name      string
		query     string
		wantURLs  []string
		wantTotal int
	}{
		{
			name:      "matches text content",
			query:     "felines",
			wantURLs:  []string{"https://example.com/cats"},
			wantTotal: 1,
		},
		{
			name:      "matches title case-insensitively",
			query:     "cat facts",
			wantURLs:  []string{"https://example.com/cats"},
			wantTotal: 1,
		},
		{
			name:      "matches URL",
			query:     "/dogs",
			wantURLs:  []string{"https://example.com/dogs"},
			wantTotal: 1,
		},
		{
			name:      "matches link label",
			query:     "feline resources",
			wantURLs:  []string{"https://example.com/links"},
			wantTotal: 1,
		},
		{
			name:  "empty query matches all",
			query: "",
			wantURLs: []string{
				"https://example.com/cats",
				"https://example.com/dogs",
				"https://example.com/links",
			},
			wantTotal: 3,
		},
		{
			name:      "no matches",
			query:     "zebra",
			wantURLs:  []string{},
			wantTotal: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := h.HandleSearch(ctx, makeRequest(map[string]any{"query": tt.query}))
			if err != nil {
				t.Fatalf("handler returned error: %v", err)
			}

			var out feed.SearchOutput
			decodeResult(t, result, &out)

			if len(out.Items) != len(tt.wantURLs) {
				t.Fatalf("items = %d, want %d", len(out.Items), len(tt.wantURLs))
			}
			for i, want := range tt.wantURLs {
				if out.Items[i].URL != want {
					t.Errorf("item %d URL = %q, want %q", i, out.Items[i].URL, want)
				}
			}
			if out.Pagination.Total != tt.wantTotal {
				t.Errorf("total = %d, want %d", out.Pagination.Total, tt.wantTotal)
			}
		})
	}
}

// TestHandleFetch tests the post_fetch handler.
func TestHandleFetch(t *testing.T) {
	post := textPost("https://example.com/a", "Alpha", "full body text")
	lib, cfg := testSetup(t, []narrative.Post{post})
	h := NewHandlers(lib, cfg)
	ctx := context.Background()

	tests := []struct {
		name      string
		args      map[string]any
		wantError bool
		errorCode string
	}{
		{
			name: "fetch existing post",
			args: map[string]any{"url": "https://example.com/a"},
		},
		{
			name:      "fetch unknown post",
			args:      map[string]any{"url": "https://example.com/missing"},
			wantError: true,
			errorCode: "NOT_FOUND",
		},
		{
			name:      "fetch without url",
			args:      map[string]any{},
			wantError: true,
			errorCode: "INVALID_REQUEST",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := h.HandleFetch(ctx, makeRequest(tt.args))
			if err != nil {
				t.Fatalf("handler returned error: %v", err)
			}

			if tt.wantError {
				if !result.IsError {
					t.Fatal("expected error result, got success")
				}
				assertErrorCode(t, result, tt.errorCode)
				return
			}

			if result.IsError {
				t.Fatalf("expected success, got error: %v", extractErrorMessage(result))
			}

			var out FetchResult
			decodeResult(t, result, &out)
			if out.Post == nil || out.Post.URL != post.URL {
				t.Errorf("fetched post = %+v, want URL %q", out.Post, post.URL)
			}
			if len(out.Post.Narrative) != 1 {
				t.Errorf("narrative paragraphs = %d, want 1", len(out.Post.Narrative))
			}
		})
	}
}

// TestHandleFlatten tests the post_flatten handler.
func TestHandleFlatten(t *testing.T) {
	post := narrative.Post{
		URL:   "https://example.com/mixed",
		Title: stringPtr("Mixed"),
		Narrative: []narrative.Paragraph{
			{
				{Kind: narrative.KindText, Content: "First run."},
				{Kind: narrative.KindImage, URL: "https://example.com/pic.jpg"},
			},
			{{Kind: narrative.KindText, Content: "Second run."}},
		},
	}
	lib, cfg := testSetup(t, []narrative.Post{post})
	h := NewHandlers(lib, cfg)

	result, err := h.HandleFlatten(context.Background(), makeRequest(map[string]any{
		"url": post.URL,
	}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success, got error: %v", extractErrorMessage(result))
	}

	var out FlattenResult
	decodeResult(t, result, &out)

	if out.Text != "First run. Second run." {
		t.Errorf("text = %q, want %q", out.Text, "First run. Second run.")
	}
	if out.Title != "Mixed" {
		t.Errorf("title = %q, want Mixed", out.Title)
	}
	if out.Chars != len("First run.")+len("Second run.") {
		t.Errorf("chars = %d, want %d", out.Chars, len("First run.")+len("Second run."))
	}
}

func TestHandleFlatten_UnknownPost(t *testing.T) {
	lib, cfg := testSetup(t, nil)
	h := NewHandlers(lib, cfg)

	result, err := h.HandleFlatten(context.Background(), makeRequest(map[string]any{
		"url": "https://example.com/missing",
	}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result for unknown post")
	}
	assertErrorCode(t, result, "NOT_FOUND")
}

// TestNewServer_DisabledTools verifies disabled tools are not registered.
func TestNewServer_DisabledTools(t *testing.T) {
	lib, cfg := testSetup(t, nil)
	cfg.DisabledTools = []string{"post_fetch"}

	s := NewServer(lib, cfg, "test")
	if s == nil {
		t.Fatal("NewServer returned nil")
	}
}

func TestValidateDisabledTools(t *testing.T) {
	unknown := ValidateDisabledTools([]string{"post_list", "bogus_tool"})
	if len(unknown) != 1 || unknown[0] != "bogus_tool" {
		t.Errorf("unknown = %v, want [bogus_tool]", unknown)
	}
}

func TestAllToolNames(t *testing.T) {
	names := AllToolNames()
	if len(names) != 4 {
		t.Errorf("tool count = %d, want 4", len(names))
	}
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		seen[n] = true
	}
	for _, want := range []string{"post_list", "post_search", "post_fetch", "post_flatten"} {
		if !seen[want] {
			t.Errorf("missing tool %q", want)
		}
	}
}

// Test helpers

// decodeResult unmarshals a success result's JSON text into out.
func decodeResult(t *testing.T, result *mcp.CallToolResult, out any) {
	t.Helper()

	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatal("content is not TextContent")
	}
	if err := json.Unmarshal([]byte(text.Text), out); err != nil {
		t.Fatalf("failed to unmarshal result payload: %v", err)
	}
}

func assertErrorCode(t *testing.T, result *mcp.CallToolResult, expectedCode string) {
	t.Helper()

	if len(result.Content) == 0 {
		t.Errorf("no content in error result")
		return
	}

	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Errorf("content is not TextContent")
		return
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(text.Text), &payload); err != nil {
		t.Errorf("failed to unmarshal error payload: %v", err)
		return
	}

	errorObj, ok := payload["error"].(map[string]any)
	if !ok {
		t.Errorf("no error object in payload")
		return
	}

	if code, _ := errorObj["code"].(string); code != expectedCode {
		t.Errorf("error code = %q, want %q", code, expectedCode)
	}
}

func extractErrorMessage(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return "<no content>"
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		return "<not text content>"
	}
	return text.Text
}

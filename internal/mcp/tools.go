package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

var listToolDef = mcp.NewTool("post_list",
	mcp.WithDescription("List loaded posts as summaries in load order, with pagination."),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of posts to return (default 20, max 100)"),
	),
	mcp.WithNumber("offset",
		mcp.Description("Number of posts to skip (default 0)"),
	),
)

var searchToolDef = mcp.NewTool("post_search",
	mcp.WithDescription("Search posts by case-insensitive substring over title, URL, and text/link content. An empty query matches every post."),
	mcp.WithString("query",
		mcp.Description("Substring to match (empty matches all posts)"),
	),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of posts to return (default 20, max 100)"),
	),
	mcp.WithNumber("offset",
		mcp.Description("Number of posts to skip (default 0)"),
	),
)

var fetchToolDef = mcp.NewTool("post_fetch",
	mcp.WithDescription("Fetch a single post with its full narrative content by URL."),
	mcp.WithString("url",
		mcp.Required(),
		mcp.Description("The post URL"),
	),
)

var flattenToolDef = mcp.NewTool("post_flatten",
	mcp.WithDescription("Return a post's narrative flattened to plain speakable text (text runs joined with single spaces, media skipped)."),
	mcp.WithString("url",
		mcp.Required(),
		mcp.Description("The post URL"),
	),
)

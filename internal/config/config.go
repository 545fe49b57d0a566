package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// Config holds application configuration.
type Config struct {
	// PageSize is the number of posts shown per feed page. "Load more"
	// grows the visible window by this amount.
	PageSize int `json:"page_size"`

	// ExpandThresholdChars is the flattened-text length above which a post
	// gets a Read More control. Shorter posts always render in full.
	ExpandThresholdChars int `json:"expand_threshold_chars"`

	// CollapsedParagraphs is the number of leading paragraphs shown while a
	// long post is collapsed.
	CollapsedParagraphs int `json:"collapsed_paragraphs"`

	// PostsPath is the default posts.json file loaded by serve and import.
	PostsPath string `json:"posts_path,omitempty"`

	// TTSEndpoint is the speech synthesis service URL. The service accepts
	// POST {"text": "..."} and responds with an audio binary.
	TTSEndpoint string `json:"tts_endpoint,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// If set to 1, all database access is serialized (reduces "database is
	// locked" errors). 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	// 0 means use sql.DB default. Typically set equal to DBMaxOpenConns.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		PageSize:             20,
		ExpandThresholdChars: 500,
		CollapsedParagraphs:  3,
		PostsPath:            "posts.json",
		TTSEndpoint:          "http://127.0.0.1:5002/api/tts",
	}
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.echofeed.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFileRaw(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// File doesn't exist, return zero config
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	// Scalars: overlay wins if non-zero, else base
	result.PageSize = overlay.PageSize
	if result.PageSize == 0 {
		result.PageSize = base.PageSize
	}

	result.ExpandThresholdChars = overlay.ExpandThresholdChars
	if result.ExpandThresholdChars == 0 {
		result.ExpandThresholdChars = base.ExpandThresholdChars
	}

	result.CollapsedParagraphs = overlay.CollapsedParagraphs
	if result.CollapsedParagraphs == 0 {
		result.CollapsedParagraphs = base.CollapsedParagraphs
	}

	result.PostsPath = overlay.PostsPath
	if result.PostsPath == "" {
		result.PostsPath = base.PostsPath
	}

	result.TTSEndpoint = overlay.TTSEndpoint
	if result.TTSEndpoint == "" {
		result.TTSEndpoint = base.TTSEndpoint
	}

	result.DBMaxOpenConns = overlay.DBMaxOpenConns
	if result.DBMaxOpenConns == 0 {
		result.DBMaxOpenConns = base.DBMaxOpenConns
	}

	result.DBMaxIdleConns = overlay.DBMaxIdleConns
	if result.DBMaxIdleConns == 0 {
		result.DBMaxIdleConns = base.DBMaxIdleConns
	}

	// Arrays: merge and deduplicate
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range a {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	for _, s := range b {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}

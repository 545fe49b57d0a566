package feed

import (
	"sync"

	"github.com/hpungsan/echofeed/internal/config"
	"github.com/hpungsan/echofeed/internal/narrative"
)

// Session is the presentation state for one page session: the active
// query, the visible window into the filtered post list, and the per-post
// expansion map. Posts themselves are never mutated; all derived state
// lives here, keyed by post URL.
type Session struct {
	mu sync.Mutex

	lib     *Library
	query   string
	visible int

	// expanded is keyed by URL, not position, so it survives re-filtering
	// and re-pagination. It is only ever mutated by an explicit toggle.
	expanded map[string]bool

	pageSize            int
	expandThreshold     int
	collapsedParagraphs int
}

// View is a consistent snapshot of the session for rendering.
type View struct {
	Query         string
	Posts         []narrative.Post // the visible window, in load order
	VisibleCount  int              // current window size (may exceed FilteredCount)
	FilteredCount int
	TotalCount    int
	HasMore       bool
	Remaining     int
}

// NewSession creates a Session over a library with presentation settings
// taken from config.
func NewSession(lib *Library, cfg *config.Config) *Session {
	return &Session{
		lib:                 lib,
		visible:             cfg.PageSize,
		expanded:            make(map[string]bool),
		pageSize:            cfg.PageSize,
		expandThreshold:     cfg.ExpandThresholdChars,
		collapsedParagraphs: cfg.CollapsedParagraphs,
	}
}

// Query returns the active query.
func (s *Session) Query() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.query
}

// SetQuery sets the active query. Any change resets the visible window
// back to one page, so a new search always starts at the first page.
// Setting the same query again leaves the window alone.
func (s *Session) SetQuery(query string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if query == s.query {
		return
	}
	s.query = query
	s.visible = s.pageSize
}

// GrowWindow increases the visible window by one page size. There is no
// upper clamp; slicing past the filtered length is a no-op truncation.
func (s *Session) GrowWindow() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visible += s.pageSize
}

// View filters the library with the active query and slices the visible
// window off the front.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	filtered := Filter(s.lib.Posts(), s.query)
	shown := min(s.visible, len(filtered))

	return View{
		Query:         s.query,
		Posts:         filtered[:shown],
		VisibleCount:  s.visible,
		FilteredCount: len(filtered),
		TotalCount:    s.lib.Len(),
		HasMore:       s.visible < len(filtered),
		Remaining:     len(filtered) - shown,
	}
}

// ToggleExpanded flips the expansion flag for a post URL. Missing entries
// default to collapsed, so the first toggle expands.
func (s *Session) ToggleExpanded(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expanded[url] = !s.expanded[url]
}

// IsExpanded returns the expansion flag for a post URL, defaulting to
// false for unknown URLs.
func (s *Session) IsExpanded(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expanded[url]
}

// NeedsExpandControl reports whether a post is long enough to warrant a
// Read More control. Below the threshold the full narrative always
// renders and no control is shown.
func (s *Session) NeedsExpandControl(p *narrative.Post) bool {
	return p.TotalTextLength() > s.expandThreshold
}

// VisibleParagraphs returns the paragraphs to render for a post given its
// expansion state, and whether the tail was held back. Collapse only
// applies to posts that have an expand control; short posts render fully
// regardless of paragraph count.
func (s *Session) VisibleParagraphs(p *narrative.Post) ([]narrative.Paragraph, bool) {
	if !s.NeedsExpandControl(p) || s.IsExpanded(p.URL) {
		return p.Narrative, false
	}
	if len(p.Narrative) <= s.collapsedParagraphs {
		return p.Narrative, false
	}
	return p.Narrative[:s.collapsedParagraphs], true
}

// Library returns the session's current library.
func (s *Session) Library() *Library {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lib
}

// ReplaceLibrary swaps in a freshly loaded library (posts file changed on
// disk). The query and expansion map survive; the window is left alone
// since only a query change resets it.
func (s *Session) ReplaceLibrary(lib *Library) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lib = lib
}

package feed

import (
	"strings"

	"github.com/hpungsan/echofeed/internal/narrative"
)

// Matches reports whether a post matches a free-text query. The match is a
// case-insensitive substring test against the title (when present), the
// post URL, and the content of every text and link element in the
// narrative. Images and videos never match. An empty query matches every
// post; that is the default/reset state.
func Matches(p *narrative.Post, query string) bool {
	if query == "" {
		return true
	}
	q := strings.ToLower(query)

	if p.Title != nil && strings.Contains(strings.ToLower(*p.Title), q) {
		return true
	}
	if strings.Contains(strings.ToLower(p.URL), q) {
		return true
	}
	return matchesNarrative(p.Narrative, q)
}

// matchesNarrative scans every paragraph and element for a lowercase
// substring match on text and link content.
func matchesNarrative(paragraphs []narrative.Paragraph, q string) bool {
	for _, paragraph := range paragraphs {
		for _, el := range paragraph {
			switch el.Kind {
			case narrative.KindText, narrative.KindLink:
				if el.Content != "" && strings.Contains(strings.ToLower(el.Content), q) {
					return true
				}
			}
		}
	}
	return false
}

// Filter returns the posts matching the query. The result is a stable
// subsequence: relative order equals load order, no ranking.
func Filter(posts []narrative.Post, query string) []narrative.Post {
	filtered := make([]narrative.Post, 0, len(posts))
	for i := range posts {
		if Matches(&posts[i], query) {
			filtered = append(filtered, posts[i])
		}
	}
	return filtered
}

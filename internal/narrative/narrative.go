package narrative

import (
	"encoding/json"
	"strings"
	"unicode/utf8"
)

// Kind identifies the type of an inline narrative element.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
	KindVideo Kind = "video"
	KindLink  Kind = "link"
)

// LocalVideoPrefix marks video URLs that point at scraped local assets
// rather than remote embeds.
const LocalVideoPrefix = "videos/"

// Element is one inline piece of a post's narrative: a text run, an image,
// a video, or a link. It is a tagged variant over Kind; unrecognized kinds
// are preserved as-is and render as nothing.
type Element struct {
	Kind    Kind
	Content string // text runs and link labels
	URL     string // images, videos, links
}

// elementWire is the JSON shape produced by the scrape pipeline.
type elementWire struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	URL     string `json:"url,omitempty"`
}

// UnmarshalJSON decodes the scraper's {type, content?, url?} shape.
func (e *Element) UnmarshalJSON(data []byte) error {
	var w elementWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	e.Kind = Kind(w.Type)
	e.Content = w.Content
	e.URL = w.URL
	return nil
}

// MarshalJSON encodes back to the scraper's wire shape.
func (e Element) MarshalJSON() ([]byte, error) {
	return json.Marshal(elementWire{
		Type:    string(e.Kind),
		Content: e.Content,
		URL:     e.URL,
	})
}

// Known reports whether the element kind is one the renderer understands.
func (e Element) Known() bool {
	switch e.Kind {
	case KindText, KindImage, KindVideo, KindLink:
		return true
	}
	return false
}

// LocalVideo reports whether a video element points at a scraped local
// asset. Remote videos render via an embed frame instead. This is a
// rendering-time classification, not stored state.
func (e Element) LocalVideo() bool {
	return e.Kind == KindVideo && strings.HasPrefix(e.URL, LocalVideoPrefix)
}

// LinkLabel returns the display label for a link element, falling back to
// the URL itself.
func (e Element) LinkLabel() string {
	if e.Content != "" {
		return e.Content
	}
	return e.URL
}

// Paragraph is an ordered run of inline elements. Order is reading order
// and is preserved through filtering and rendering.
type Paragraph []Element

// Post is one scraped post. Posts are immutable once loaded; URL is the
// identity key. All derived state (expansion, visibility, playback) lives
// in separate stores keyed by URL.
type Post struct {
	// URL uniquely identifies the post
	URL string `json:"url"`

	// Title is an optional human-readable title
	Title *string `json:"title,omitempty"`

	// Narrative is the ordered paragraphs of the post body
	Narrative []Paragraph `json:"narrative"`
}

// DisplayTitle returns the post title, or a placeholder for untitled posts.
func (p *Post) DisplayTitle() string {
	if p.Title != nil && *p.Title != "" {
		return *p.Title
	}
	return "Untitled Post"
}

// FlattenText returns the concatenation of every text element's content in
// paragraph-then-element order, joined by single spaces, with non-text
// elements skipped. This is the search fallback and the speech input.
func FlattenText(narrative []Paragraph) string {
	var parts []string
	for _, paragraph := range narrative {
		for _, el := range paragraph {
			if el.Kind == KindText {
				parts = append(parts, el.Content)
			}
		}
	}
	return strings.Join(parts, " ")
}

// TotalTextLength returns the character length of the flattened text.
func TotalTextLength(narrative []Paragraph) int {
	return utf8.RuneCountInString(FlattenText(narrative))
}

// FlattenText returns the post's flattened text content.
func (p *Post) FlattenText() string {
	return FlattenText(p.Narrative)
}

// TotalTextLength returns the character length of the post's flattened text.
func (p *Post) TotalTextLength() int {
	return TotalTextLength(p.Narrative)
}

// ParagraphCount returns the number of paragraphs in the post body.
func (p *Post) ParagraphCount() int {
	return len(p.Narrative)
}

// Summary represents a post's metadata without the narrative body.
// Used for browse operations (list, search results) to reduce data transfer.
type Summary struct {
	// URL uniquely identifies the post
	URL string `json:"url"`

	// Title is the optional human-readable title
	Title *string `json:"title,omitempty"`

	// Paragraphs is the number of paragraphs in the narrative
	Paragraphs int `json:"paragraphs"`

	// TextChars is the character count of the flattened text (runes, not bytes)
	TextChars int `json:"text_chars"`
}

// ToSummary converts a Post to a Summary by stripping the narrative body.
func (p *Post) ToSummary() Summary {
	return Summary{
		URL:        p.URL,
		Title:      p.Title,
		Paragraphs: p.ParagraphCount(),
		TextChars:  p.TotalTextLength(),
	}
}

package web

import (
	"html/template"
	"net/http"
	"net/url"
	"strings"

	"github.com/hpungsan/echofeed/internal/config"
	"github.com/hpungsan/echofeed/internal/errors"
	"github.com/hpungsan/echofeed/internal/feed"
	"github.com/hpungsan/echofeed/internal/narrative"
	"github.com/hpungsan/echofeed/internal/speech"
)

// Handlers contains HTTP route handlers for the feed UI.
type Handlers struct {
	session  *feed.Session
	orch     *speech.Orchestrator
	cfg      *config.Config
	renderer *Renderer
}

// HandleFeed handles GET /feed — the searchable, paginated post feed.
// A changed q parameter resets the visible window before re-filtering.
func (h *Handlers) HandleFeed(w http.ResponseWriter, r *http.Request) {
	h.session.SetQuery(r.URL.Query().Get("q"))

	data := h.feedData(nil)

	// Fragment swap of the results region only
	if r.Header.Get("HX-Target") == "feed" {
		h.renderer.renderBlock(w, http.StatusOK, "feed", "feed-results", data)
		return
	}

	h.renderer.renderPage(w, r, "feed", data)
}

// HandleLoadMore handles POST /feed/more — grow the visible window by one
// page. Only callable while more filtered posts remain.
func (h *Handlers) HandleLoadMore(w http.ResponseWriter, r *http.Request) {
	if h.session.View().HasMore {
		h.session.GrowWindow()
	}

	if r.Header.Get("HX-Request") == "true" {
		h.renderer.renderBlock(w, http.StatusOK, "feed", "feed-results", h.feedData(nil))
		return
	}

	http.Redirect(w, r, feedPath(h.session.Query()), http.StatusSeeOther)
}

// HandleExpand handles POST /posts/expand — toggle a post's Read More state.
func (h *Handlers) HandleExpand(w http.ResponseWriter, r *http.Request) {
	post, err := h.formPost(r)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.session.ToggleExpanded(post.URL)

	if r.Header.Get("HX-Request") == "true" {
		h.renderer.renderBlock(w, http.StatusOK, "feed", "post-card", h.buildCard(post))
		return
	}

	http.Redirect(w, r, feedPath(h.session.Query()), http.StatusSeeOther)
}

// HandleSpeak handles POST /posts/speak — run a speech playback session
// for a post. Starting it cancels whichever session currently holds the
// shared audio element.
func (h *Handlers) HandleSpeak(w http.ResponseWriter, r *http.Request) {
	post, err := h.formPost(r)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	clip, err := h.orch.Start(r.Context(), post)
	if err != nil {
		// A superseded session just goes quiet; the newer session owns
		// the page now.
		if errors.Is(err, errors.ErrSuperseded) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.renderer.renderError(w, r, err)
		return
	}

	player := &PlayerData{
		Token:       clip.Token,
		PostURL:     clip.PostURL,
		ContentType: clip.ContentType,
	}

	if r.Header.Get("HX-Request") == "true" {
		h.renderer.renderBlock(w, http.StatusOK, "feed", "player", player)
		return
	}

	h.renderer.renderPage(w, r, "feed", h.feedData(player))
}

// HandleAudio handles GET /audio/{token} — stream the live clip. Stale
// tokens are never served, so a superseded response can't reach the
// audio element through a leftover URL.
func (h *Handlers) HandleAudio(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")

	clip, err := h.orch.Clip(token)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", clip.ContentType)
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(clip.Audio)
}

// formPost resolves the posted url form value to a loaded post.
func (h *Handlers) formPost(r *http.Request) (*narrative.Post, error) {
	if err := r.ParseForm(); err != nil {
		return nil, errors.NewInvalidRequest("invalid form data")
	}
	postURL := r.FormValue("url")
	if postURL == "" {
		return nil, errors.NewInvalidRequest("url is required")
	}
	return h.session.Library().Get(postURL)
}

// feedData builds the feed page model from the session snapshot.
func (h *Handlers) feedData(player *PlayerData) FeedPageData {
	v := h.session.View()

	cards := make([]PostCard, 0, len(v.Posts))
	for i := range v.Posts {
		cards = append(cards, h.buildCard(&v.Posts[i]))
	}

	return FeedPageData{
		PageData: PageData{
			Title:   "Feed",
			Version: h.renderer.version,
		},
		Query:         v.Query,
		Cards:         cards,
		FilteredCount: v.FilteredCount,
		TotalCount:    v.TotalCount,
		HasMore:       v.HasMore,
		Remaining:     v.Remaining,
		Player:        player,
	}
}

// buildCard builds the render model for one post.
func (h *Handlers) buildCard(p *narrative.Post) PostCard {
	paragraphs, truncated := h.session.VisibleParagraphs(p)

	html := make([]template.HTML, 0, len(paragraphs))
	for _, paragraph := range paragraphs {
		html = append(html, renderParagraph(paragraph))
	}

	state := h.orch.State(p.URL)
	chars := p.TotalTextLength()

	return PostCard{
		URL:           p.URL,
		Title:         p.DisplayTitle(),
		PostPath:      postPath(p.URL),
		ParagraphHTML: html,
		Expanded:      h.session.IsExpanded(p.URL),
		Truncated:     truncated,
		ExpandCtl:     h.session.NeedsExpandControl(p),
		Speakable:     strings.TrimSpace(p.FlattenText()) != "",
		Requesting:    state == speech.StateRequesting,
		Playing:       state == speech.StatePlaying,
		Paragraphs:    p.ParagraphCount(),
		KiloChars:     (chars + 999) / 1000,
	}
}

// postPath returns the path portion of a post URL for display.
func postPath(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Path == "" {
		return raw
	}
	return u.Path
}

// feedPath builds the feed URL preserving the active query.
func feedPath(query string) string {
	if query == "" {
		return "/feed"
	}
	return "/feed?q=" + url.QueryEscape(query)
}

package speech

import (
	"context"
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/echofeed/internal/errors"
	"github.com/hpungsan/echofeed/internal/narrative"
)

// State is the lifecycle of one post's playback session.
type State string

const (
	StateIdle       State = "idle"
	StateRequesting State = "requesting"
	StatePlaying    State = "playing"
)

// Clip is the outcome of a successful synthesis: the audio binary the
// shared sink is bound to. At most one clip is live at a time; a new
// session replaces it and stale clip tokens are never served again.
type Clip struct {
	Token       string `json:"token"`
	PostURL     string `json:"post_url"`
	ContentType string `json:"content_type"`
	Audio       []byte `json:"-"`
}

// Orchestrator runs speech playback sessions against the single shared
// audio sink. One mutable active-post slot enforces the one-active-session
// invariant; per-post flags are never kept. A generation counter guards
// against a slow synthesis response arriving after a newer session has
// started: the stale response is discarded and never touches the sink.
type Orchestrator struct {
	mu    sync.Mutex
	sink  Sink
	synth Synthesizer

	active     string // URL of the post that is Requesting or Playing, "" when idle
	generation uint64
	clip       *Clip
}

// NewOrchestrator creates an Orchestrator around the shared sink.
func NewOrchestrator(sink Sink, synth Synthesizer) *Orchestrator {
	return &Orchestrator{sink: sink, synth: synth}
}

// Start runs a playback session for a post: cancel whatever session holds
// the sink, derive the speech text, synthesize, then bind and play. It
// blocks until the synthesis response arrives; if a newer session starts
// meanwhile, the response is discarded and ErrSuperseded is returned.
func (o *Orchestrator) Start(ctx context.Context, post *narrative.Post) (*Clip, error) {
	o.mu.Lock()
	// Stop sequence before anything else, on every path: stop, reset
	// position, clear source. Prior audio must never overlap the new
	// session.
	o.sink.Stop()
	o.sink.Rewind()
	o.sink.Clear()
	o.clip = nil

	o.generation++
	gen := o.generation
	o.active = post.URL
	o.mu.Unlock()

	text := post.FlattenText()
	if strings.TrimSpace(text) == "" {
		o.fail(gen)
		return nil, errors.NewEmptySpeech(post.URL)
	}

	audio, contentType, err := o.synth.Synthesize(ctx, text)

	o.mu.Lock()
	defer o.mu.Unlock()

	if gen != o.generation {
		// A newer session owns the sink now; this response is stale.
		return nil, errors.NewSuperseded(post.URL)
	}

	if err != nil {
		o.active = ""
		return nil, errors.NewSynthesisFailed(err)
	}

	clip := &Clip{
		Token:       newToken(),
		PostURL:     post.URL,
		ContentType: contentType,
		Audio:       audio,
	}
	o.clip = clip
	o.sink.Bind(clip.Token)
	o.sink.Play()

	return clip, nil
}

// fail clears the active slot for a session that errored, unless a newer
// session has taken the slot already.
func (o *Orchestrator) fail(gen uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if gen == o.generation {
		o.active = ""
	}
}

// Active returns the URL of the post currently holding the sink, or empty.
func (o *Orchestrator) Active() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active
}

// State returns a post's session state. Posts that do not hold the
// active slot are Idle.
func (o *Orchestrator) State(url string) State {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active != url {
		return StateIdle
	}
	if o.clip == nil {
		return StateRequesting
	}
	return StatePlaying
}

// Clip returns the live clip for a token. Stale tokens report not found;
// a superseded clip must never reach the sink via a leftover token.
func (o *Orchestrator) Clip(token string) (*Clip, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.clip == nil || o.clip.Token != token {
		return nil, errors.NewNotFound(token)
	}
	return o.clip, nil
}

// newToken mints a ULID clip token.
func newToken() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

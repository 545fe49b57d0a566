package speech

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hpungsan/echofeed/internal/errors"
	"github.com/hpungsan/echofeed/internal/narrative"
)

// synthFunc adapts a function to the Synthesizer interface.
type synthFunc func(ctx context.Context, text string) ([]byte, string, error)

func (f synthFunc) Synthesize(ctx context.Context, text string) ([]byte, string, error) {
	return f(ctx, text)
}

func okSynth(ctx context.Context, text string) ([]byte, string, error) {
	return []byte("audio:" + text), "audio/mpeg", nil
}

// recordingSink records every operation in call order.
type recordingSink struct {
	mu  sync.Mutex
	ops []string
}

func (r *recordingSink) record(op string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, op)
}

func (r *recordingSink) Stop()             { r.record("stop") }
func (r *recordingSink) Rewind()           { r.record("rewind") }
func (r *recordingSink) Clear()            { r.record("clear") }
func (r *recordingSink) Bind(source string) { r.record("bind:" + source) }
func (r *recordingSink) Play()             { r.record("play") }

func (r *recordingSink) Ops() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.ops))
	copy(out, r.ops)
	return out
}

func spokenPost(url, text string) *narrative.Post {
	return &narrative.Post{
		URL: url,
		Narrative: []narrative.Paragraph{
			{{Kind: narrative.KindText, Content: text}},
		},
	}
}

func TestStart_Success(t *testing.T) {
	sink := &recordingSink{}
	o := NewOrchestrator(sink, synthFunc(okSynth))
	post := spokenPost("https://example.com/p/1", "hello there")

	clip, err := o.Start(context.Background(), post)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if string(clip.Audio) != "audio:hello there" {
		t.Errorf("Audio = %q", clip.Audio)
	}
	if clip.Token == "" {
		t.Error("clip token missing")
	}

	// Stop sequence first, then bind and play
	want := []string{"stop", "rewind", "clear", "bind:" + clip.Token, "play"}
	ops := sink.Ops()
	if len(ops) != len(want) {
		t.Fatalf("sink ops = %v, want %v", ops, want)
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Fatalf("sink ops = %v, want %v", ops, want)
		}
	}

	if o.Active() != post.URL {
		t.Errorf("Active = %q, want %q", o.Active(), post.URL)
	}
	if o.State(post.URL) != StatePlaying {
		t.Errorf("State = %q, want playing", o.State(post.URL))
	}

	got, err := o.Clip(clip.Token)
	if err != nil || got != clip {
		t.Errorf("Clip(token) = %v, %v", got, err)
	}
	if _, err := o.Clip("bogus"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("stale token should be not found, got %v", err)
	}
}

func TestStart_EmptyText(t *testing.T) {
	sink := &recordingSink{}
	o := NewOrchestrator(sink, synthFunc(okSynth))
	post := &narrative.Post{
		URL: "https://example.com/p/1",
		Narrative: []narrative.Paragraph{
			{{Kind: narrative.KindImage, URL: "images/a.jpg"}},
		},
	}

	_, err := o.Start(context.Background(), post)
	if !errors.Is(err, errors.ErrEmptySpeech) {
		t.Fatalf("err = %v, want EMPTY_SPEECH", err)
	}

	// Error resets the post to Idle and frees the slot
	if o.Active() != "" {
		t.Errorf("Active = %q, want cleared", o.Active())
	}
	if o.State(post.URL) != StateIdle {
		t.Errorf("State = %q, want idle", o.State(post.URL))
	}

	// The sink ran the stop sequence but was never rebound
	for _, op := range sink.Ops() {
		if op == "play" || len(op) > 4 && op[:4] == "bind" {
			t.Fatalf("sink touched after failed session: %v", sink.Ops())
		}
	}
}

func TestStart_SynthesisFailure(t *testing.T) {
	sink := &recordingSink{}
	o := NewOrchestrator(sink, synthFunc(func(ctx context.Context, text string) ([]byte, string, error) {
		return nil, "", fmt.Errorf("status 503")
	}))
	post := spokenPost("https://example.com/p/1", "hello")

	_, err := o.Start(context.Background(), post)
	if !errors.Is(err, errors.ErrSynthesisFailed) {
		t.Fatalf("err = %v, want SYNTHESIS_FAILED", err)
	}
	if o.Active() != "" {
		t.Errorf("Active = %q, want cleared after failure", o.Active())
	}
}

func TestStart_SupersededResponseDiscarded(t *testing.T) {
	aStarted := make(chan struct{})
	aRelease := make(chan struct{})

	sink := &recordingSink{}
	o := NewOrchestrator(sink, synthFunc(func(ctx context.Context, text string) ([]byte, string, error) {
		if text == "slow post" {
			close(aStarted)
			<-aRelease
		}
		return []byte("audio:" + text), "audio/mpeg", nil
	}))

	postA := spokenPost("https://example.com/a", "slow post")
	postB := spokenPost("https://example.com/b", "fast post")

	errCh := make(chan error, 1)
	go func() {
		_, err := o.Start(context.Background(), postA)
		errCh <- err
	}()

	// A is in Requesting and its control would be disabled
	<-aStarted
	if o.State(postA.URL) != StateRequesting {
		t.Fatalf("State(A) = %q, want requesting", o.State(postA.URL))
	}

	// B supersedes A while A's request is in flight
	clipB, err := o.Start(context.Background(), postB)
	if err != nil {
		t.Fatalf("Start(B): %v", err)
	}

	// A's response arrives late and must be discarded
	close(aRelease)
	select {
	case err := <-errCh:
		if !errors.Is(err, errors.ErrSuperseded) {
			t.Fatalf("Start(A) err = %v, want SUPERSEDED", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start(A) did not return")
	}

	// B's session proceeds normally; A never binds the sink
	if o.Active() != postB.URL {
		t.Errorf("Active = %q, want %q", o.Active(), postB.URL)
	}
	if o.State(postB.URL) != StatePlaying {
		t.Errorf("State(B) = %q, want playing", o.State(postB.URL))
	}
	for _, op := range sink.Ops() {
		if op == "bind:"+"audio:slow post" {
			t.Fatal("stale session bound the sink")
		}
	}
	binds := 0
	for _, op := range sink.Ops() {
		if len(op) > 5 && op[:5] == "bind:" {
			binds++
			if op != "bind:"+clipB.Token {
				t.Errorf("unexpected bind %q", op)
			}
		}
	}
	if binds != 1 {
		t.Errorf("binds = %d, want exactly 1 (B only)", binds)
	}
}

func TestStart_StopSequencePrecedesNewRequest(t *testing.T) {
	sink := &recordingSink{}
	o := NewOrchestrator(sink, synthFunc(okSynth))

	first, err := o.Start(context.Background(), spokenPost("https://example.com/a", "one"))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	second, err := o.Start(context.Background(), spokenPost("https://example.com/b", "two"))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	want := []string{
		"stop", "rewind", "clear", "bind:" + first.Token, "play",
		"stop", "rewind", "clear", "bind:" + second.Token, "play",
	}
	ops := sink.Ops()
	if len(ops) != len(want) {
		t.Fatalf("sink ops = %v, want %v", ops, want)
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Fatalf("sink ops = %v, want %v", ops, want)
		}
	}

	// The first clip's token is stale now
	if _, err := o.Clip(first.Token); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("stale clip served: %v", err)
	}
}

func TestStateSink(t *testing.T) {
	s := NewStateSink()

	s.Bind("tok-1")
	s.Play()
	if s.Source() != "tok-1" || !s.Playing() {
		t.Fatalf("sink = %q playing=%v", s.Source(), s.Playing())
	}

	s.Stop()
	s.Rewind()
	s.Clear()
	if s.Source() != "" || s.Playing() {
		t.Fatalf("after stop sequence: source=%q playing=%v", s.Source(), s.Playing())
	}
}

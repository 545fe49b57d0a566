package feed

import (
	"encoding/json"
	"io"
	"os"

	"github.com/hpungsan/echofeed/internal/errors"
	"github.com/hpungsan/echofeed/internal/narrative"
)

// Library holds the bulk-loaded post set. Posts are immutable and keep
// their load order; the library is replaced wholesale on reload, never
// mutated in place.
type Library struct {
	posts []narrative.Post
	byURL map[string]*narrative.Post
}

// New creates a Library from already-decoded posts. Load order is preserved.
func New(posts []narrative.Post) *Library {
	lib := &Library{
		posts: posts,
		byURL: make(map[string]*narrative.Post, len(posts)),
	}
	for i := range posts {
		lib.byURL[posts[i].URL] = &posts[i]
	}
	return lib
}

// LoadFile loads a posts.json file into a Library.
func LoadFile(path string) (*Library, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer f.Close()
	return LoadReader(f)
}

// LoadReader decodes a JSON array of post records.
func LoadReader(r io.Reader) (*Library, error) {
	var posts []narrative.Post
	if err := json.NewDecoder(r).Decode(&posts); err != nil {
		return nil, errors.NewInternal(err)
	}
	return New(posts), nil
}

// Posts returns all posts in load order. Callers must not mutate the slice.
func (l *Library) Posts() []narrative.Post {
	return l.posts
}

// Get returns the post with the given URL.
func (l *Library) Get(url string) (*narrative.Post, error) {
	if p, ok := l.byURL[url]; ok {
		return p, nil
	}
	return nil, errors.NewNotFound(url)
}

// Len returns the number of loaded posts.
func (l *Library) Len() int {
	return len(l.posts)
}

package store

import (
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/echofeed/internal/errors"
	"github.com/hpungsan/echofeed/internal/narrative"
)

// ImportResult describes one archive import.
type ImportResult struct {
	BatchID  string `json:"batch_id"`
	Imported int    `json:"imported"`
}

// ImportPosts upserts a bulk-loaded post set into the archive under a
// fresh batch ULID. Re-importing the same URL replaces the stored record
// in place, keeping its original archive position.
func ImportPosts(db *sql.DB, posts []narrative.Post) (*ImportResult, error) {
	batchID := newBatchID()
	now := time.Now().Unix()

	tx, err := db.Begin()
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO posts (url, title, narrative_json, paragraphs, text_chars, batch_id, imported_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			title = excluded.title,
			narrative_json = excluded.narrative_json,
			paragraphs = excluded.paragraphs,
			text_chars = excluded.text_chars,
			batch_id = excluded.batch_id,
			imported_at = excluded.imported_at
	`)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer stmt.Close()

	for i := range posts {
		p := &posts[i]
		narrativeJSON, err := json.Marshal(p.Narrative)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		title := toNullString(p.Title)
		if _, err := stmt.Exec(p.URL, title, string(narrativeJSON), p.ParagraphCount(), p.TotalTextLength(), batchID, now); err != nil {
			return nil, errors.NewInternal(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.NewInternal(err)
	}

	return &ImportResult{BatchID: batchID, Imported: len(posts)}, nil
}

// GetByURL retrieves one archived post.
func GetByURL(db *sql.DB, url string) (*narrative.Post, error) {
	row := db.QueryRow(`
		SELECT url, title, narrative_json
		FROM posts
		WHERE url = ?
	`, url)

	p, err := scanPost(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(url)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return p, nil
}

// LoadPosts returns every archived post in archive order (rowid), which
// matches first-import order since upserts keep their row.
func LoadPosts(db *sql.DB) ([]narrative.Post, error) {
	rows, err := db.Query(`
		SELECT url, title, narrative_json
		FROM posts
		ORDER BY rowid
	`)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var posts []narrative.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		posts = append(posts, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return posts, nil
}

// ListSummaries returns archived post summaries in archive order with
// limit/offset paging, plus the total archive size.
func ListSummaries(db *sql.DB, limit, offset int) ([]narrative.Summary, int, error) {
	var total int
	if err := db.QueryRow(`SELECT COUNT(*) FROM posts`).Scan(&total); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	rows, err := db.Query(`
		SELECT url, title, paragraphs, text_chars
		FROM posts
		ORDER BY rowid
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	defer rows.Close()

	summaries := []narrative.Summary{}
	for rows.Next() {
		var s narrative.Summary
		var title sql.NullString
		if err := rows.Scan(&s.URL, &title, &s.Paragraphs, &s.TextChars); err != nil {
			return nil, 0, errors.NewInternal(err)
		}
		if title.Valid {
			s.Title = &title.String
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	return summaries, total, nil
}

// Count returns the number of archived posts.
func Count(db *sql.DB) (int, error) {
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM posts`).Scan(&n); err != nil {
		return 0, errors.NewInternal(err)
	}
	return n, nil
}

// scanner abstracts sql.Row and sql.Rows for scanPost.
type scanner interface {
	Scan(dest ...any) error
}

// scanPost decodes one post row including its narrative body.
func scanPost(row scanner) (*narrative.Post, error) {
	var p narrative.Post
	var title sql.NullString
	var narrativeJSON string

	if err := row.Scan(&p.URL, &title, &narrativeJSON); err != nil {
		return nil, err
	}
	if title.Valid {
		p.Title = &title.String
	}
	if err := json.Unmarshal([]byte(narrativeJSON), &p.Narrative); err != nil {
		return nil, err
	}
	return &p, nil
}

// toNullString converts an optional string to sql.NullString.
func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// newBatchID mints a ULID for an import batch.
func newBatchID() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

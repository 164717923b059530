// Package pagination implements keyset cursors for newest-first listings.
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"
)

// ErrInvalidCursor is returned for cursors this package did not produce.
var ErrInvalidCursor = errors.New("invalid cursor")

// Cursor marks the last row of a page ordered by (UploadedAt DESC, ID DESC).
type Cursor struct {
	ID         string    `json:"id"`
	UploadedAt time.Time `json:"at"`
}

// Encode returns the opaque, URL-safe form of c.
func (c Cursor) Encode() string {
	if c.ID == "" {
		return ""
	}
	raw, _ := json.Marshal(Cursor{ID: c.ID, UploadedAt: c.UploadedAt.UTC()})
	return base64.RawURLEncoding.EncodeToString(raw)
}

// Decode parses an encoded cursor. An empty string means the first page and
// yields a nil cursor.
func Decode(s string) (*Cursor, error) {
	if s == "" {
		return nil, nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, ErrInvalidCursor
	}

	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil || c.ID == "" || c.UploadedAt.IsZero() {
		return nil, ErrInvalidCursor
	}
	return &c, nil
}

// Trim cuts a result fetched with limit+1 rows down to limit and reports
// whether another page exists.
func Trim[T any](items []T, limit int) ([]T, bool) {
	if limit <= 0 || len(items) <= limit {
		return items, false
	}
	return items[:limit], true
}

// Package pagination implements opaque page-token pagination for list
// endpoints. Tokens encode the next window so clients never assemble
// offsets by hand.
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 250
)

var ErrInvalidPageToken = errors.New("invalid_page_token")

// Pagination binds the page query parameters of a list request.
type Pagination struct {
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size"`
}

type cursor struct {
	Offset int `json:"offset"`
}

// PageInfo is returned alongside every page of results.
type PageInfo struct {
	NextPageToken string `json:"next_page_token,omitempty"`
	HasMore       bool   `json:"has_more"`
}

// Window resolves the request to a limit and offset. The page size is
// clamped to MaxPageSize; a malformed token is a validation error.
func (p Pagination) Window() (limit, offset int, err error) {
	limit = p.PageSize
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if p.PageToken != "" {
		cur, err := decodeToken(p.PageToken)
		if err != nil {
			return 0, 0, err
		}
		offset = cur.Offset
	}
	return limit, offset, nil
}

// Page trims an over-fetched result set (limit+1 rows requested) back to
// the page and reports whether another page follows.
func Page[T any](items []T, limit, offset int) ([]T, PageInfo) {
	if len(items) <= limit {
		return items, PageInfo{}
	}
	return items[:limit], PageInfo{
		HasMore:       true,
		NextPageToken: encodeToken(cursor{Offset: offset + limit}),
	}
}

func encodeToken(c cursor) string {
	b, _ := json.Marshal(c)
	return base64.StdEncoding.EncodeToString(b)
}

func decodeToken(token string) (cursor, error) {
	b, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return cursor{}, ErrInvalidPageToken
	}
	var c cursor
	if err := json.Unmarshal(b, &c); err != nil {
		return cursor{}, ErrInvalidPageToken
	}
	if c.Offset < 0 {
		return cursor{}, ErrInvalidPageToken
	}
	return c, nil
}

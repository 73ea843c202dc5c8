package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindowDefaultsAndClamping(t *testing.T) {
	limit, offset, err := Pagination{}.Window()
	require.NoError(t, err)
	assert.Equal(t, DefaultPageSize, limit)
	assert.Zero(t, offset)

	limit, _, err = Pagination{PageSize: 10_000}.Window()
	require.NoError(t, err)
	assert.Equal(t, MaxPageSize, limit)
}

func TestPageTokenRoundTrip(t *testing.T) {
	items := []int{1, 2, 3, 4}

	// Over-fetched by one: a next page exists.
	page, info := Page(items, 3, 0)
	assert.Equal(t, []int{1, 2, 3}, page)
	require.True(t, info.HasMore)
	require.NotEmpty(t, info.NextPageToken)

	_, offset, err := Pagination{PageToken: info.NextPageToken, PageSize: 3}.Window()
	require.NoError(t, err)
	assert.Equal(t, 3, offset)

	// Exactly a full page: no further page advertised.
	page, info = Page([]int{4, 5, 6}, 3, 3)
	assert.Equal(t, []int{4, 5, 6}, page)
	assert.False(t, info.HasMore)
	assert.Empty(t, info.NextPageToken)
}

func TestWindowRejectsMalformedTokens(t *testing.T) {
	_, _, err := Pagination{PageToken: "not-base64!!"}.Window()
	assert.ErrorIs(t, err, ErrInvalidPageToken)

	_, _, err = Pagination{PageToken: "bm90IGpzb24="}.Window()
	assert.ErrorIs(t, err, ErrInvalidPageToken)
}

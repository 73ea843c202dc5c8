package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/crownlands/tenure/pkg/db/pagination"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageWindowDefaults(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/api/proposals", nil)

	limit, offset, ok := pageWindow(c)
	require.True(t, ok)
	assert.Equal(t, pagination.DefaultPageSize, limit)
	assert.Zero(t, offset)
}

func TestPageWindowHonoursPageSize(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/api/proposals?page_size=25", nil)

	limit, offset, ok := pageWindow(c)
	require.True(t, ok)
	assert.Equal(t, 25, limit)
	assert.Zero(t, offset)
}

func TestPageWindowRejectsMalformedToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorHandlingMiddleware())
	r.GET("/things", func(c *gin.Context) {
		if _, _, ok := pageWindow(c); !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/things?page_token=%21%21", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var body errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "validation_error", body.Error.Type)
	require.Len(t, body.Error.Errors, 1)
	assert.Equal(t, "page_token", body.Error.Errors[0].Field)
}

func TestPageWindowResumesFromToken(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// A full page plus one over-fetched row advertises the next window.
	_, info := pagination.Page([]int{1, 2, 3}, 2, 0)
	require.True(t, info.HasMore)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/things?page_size=2&page_token="+info.NextPageToken, nil)

	limit, offset, ok := pageWindow(c)
	require.True(t, ok)
	assert.Equal(t, 2, limit)
	assert.Equal(t, 2, offset)
}

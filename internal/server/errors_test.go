package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	compliancedomain "github.com/crownlands/tenure/internal/compliance/domain"
	competitivedomain "github.com/crownlands/tenure/internal/competitiveprocess/domain"
	invoicingdomain "github.com/crownlands/tenure/internal/invoicing/domain"
	organizationdomain "github.com/crownlands/tenure/internal/organization/domain"
	proposaldomain "github.com/crownlands/tenure/internal/proposal/domain"
	"github.com/crownlands/tenure/internal/providers/ledger"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapErrorStatusCodes(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		status   int
		typeName string
	}{
		{"validation", organizationdomain.ErrInvalidABN, http.StatusBadRequest, "validation_error"},
		{"validation wrapped", proposaldomain.ErrInvalidApplicant, http.StatusBadRequest, "validation_error"},
		{"conflict transition", proposaldomain.ErrInvalidTransition, http.StatusConflict, "state_conflict"},
		{"conflict not switchable", proposaldomain.ErrNotSwitchable, http.StatusConflict, "state_conflict"},
		{"conflict generated approved", competitivedomain.ErrGeneratedApproved, http.StatusConflict, "state_conflict"},
		{"conflict invoice", invoicingdomain.ErrInvalidTransition, http.StatusConflict, "state_conflict"},
		{"not found", compliancedomain.ErrNotFound, http.StatusNotFound, "not_found"},
		{"not found party", competitivedomain.ErrPartyNotFound, http.StatusNotFound, "not_found"},
		{"upstream", ledger.ErrUnavailable, http.StatusBadGateway, "upstream_error"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
		{"nil", nil, http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, payload := mapError(tc.err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.typeName, payload.Type)
		})
	}
}

func TestMapErrorValidationPayloadCarriesField(t *testing.T) {
	status, payload := mapError(invoicingdomain.ErrInvalidAmount)
	assert.Equal(t, http.StatusBadRequest, status)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "amount", payload.Errors[0].Field)
}

func TestMapErrorWrappedSentinel(t *testing.T) {
	wrapped := errors.Join(errors.New("context"), competitivedomain.ErrNotInProgress)
	status, payload := mapError(wrapped)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "state_conflict", payload.Type)
}

func TestErrorHandlingMiddlewareRendersLastError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorHandlingMiddleware())
	r.GET("/boom", func(c *gin.Context) {
		AbortWithError(c, proposaldomain.ErrNotFound)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	var body errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "not_found", body.Error.Type)
	assert.Equal(t, proposaldomain.ErrNotFound.Error(), body.Error.Message)
}

func TestErrorHandlingMiddlewareLeavesWrittenResponses(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorHandlingMiddleware())
	r.GET("/ok", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestValidationErrorsRenderPerFieldPayload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorHandlingMiddleware())
	r.POST("/things", func(c *gin.Context) {
		AbortWithError(c, newValidationError("name", "required", "name is required"))
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/things", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var body errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "validation_error", body.Error.Type)
	require.Len(t, body.Error.Errors, 1)
	assert.Equal(t, "name", body.Error.Errors[0].Field)
	assert.Equal(t, "required", body.Error.Errors[0].Code)
}

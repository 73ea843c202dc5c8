package server

import (
	"net/http"
	"strconv"
	"strings"

	organizationdomain "github.com/crownlands/tenure/internal/organization/domain"
	"github.com/gin-gonic/gin"
)

func (s *Server) CreateOrganisation(c *gin.Context) {
	var req organizationdomain.CreateOrganisationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	org, err := s.organizationSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, org)
}

func (s *Server) SearchOrganisations(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	items, err := s.organizationSvc.Search(c.Request.Context(), query)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (s *Server) GetOrganisation(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	org, err := s.organizationSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, org)
}

type addDelegateRequest struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
}

func (s *Server) AddDelegate(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req addDelegateRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID == 0 {
		AbortWithError(c, newValidationError("user_id", "required", "user id is required"))
		return
	}
	role := organizationdomain.DelegateRole(strings.TrimSpace(req.Role))
	if err := s.organizationSvc.AddDelegate(c.Request.Context(), id, req.UserID, role); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "ok"})
}

func (s *Server) RemoveDelegate(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	userID, err := strconv.ParseInt(strings.TrimSpace(c.Param("userId")), 10, 64)
	if err != nil {
		AbortWithError(c, newValidationError("userId", "invalid_id", "malformed identifier"))
		return
	}
	if err := s.organizationSvc.RemoveDelegate(c.Request.Context(), id, userID); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

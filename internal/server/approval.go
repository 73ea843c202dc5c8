package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

func (s *Server) GetApproval(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	approval, err := s.approvalSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, approval)
}

// ListApprovals filters by holder; at least one of holder_org_id or
// holder_ind_id is required.
func (s *Server) ListApprovals(c *gin.Context) {
	var orgRaw, indRaw *string
	if raw := strings.TrimSpace(c.Query("holder_org_id")); raw != "" {
		orgRaw = &raw
	}
	if raw := strings.TrimSpace(c.Query("holder_ind_id")); raw != "" {
		indRaw = &raw
	}
	if orgRaw == nil && indRaw == nil {
		AbortWithError(c, newValidationError("holder", "required", "a holder filter is required"))
		return
	}
	orgID, ok := parseOptionalID(c, "holder_org_id", orgRaw)
	if !ok {
		return
	}
	indID, ok := parseOptionalID(c, "holder_ind_id", indRaw)
	if !ok {
		return
	}

	items, err := s.approvalSvc.ListByHolder(c.Request.Context(), orgID, indID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (s *Server) ListApprovalRequirements(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	items, err := s.approvalSvc.ListRequirements(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (s *Server) SurrenderApproval(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := s.approvalSvc.Surrender(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) CancelApproval(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := s.approvalSvc.Cancel(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

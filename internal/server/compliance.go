package server

import (
	"net/http"
	"strings"

	compliancedomain "github.com/crownlands/tenure/internal/compliance/domain"
	"github.com/crownlands/tenure/pkg/db/pagination"
	"github.com/gin-gonic/gin"
)

func (s *Server) GetCompliance(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	compliance, err := s.complianceSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, compliance)
}

func (s *Server) ListCompliances(c *gin.Context) {
	limit, offset, ok := pageWindow(c)
	if !ok {
		return
	}
	req := compliancedomain.ListComplianceRequest{
		Limit:  limit + 1,
		Offset: offset,
	}
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status := compliancedomain.ProcessingStatus(raw)
		req.Status = &status
	}
	if raw := strings.TrimSpace(c.Query("approval_id")); raw != "" {
		id, ok := parseRequiredID(c, "approval_id", raw)
		if !ok {
			return
		}
		req.ApprovalID = &id
	}
	items, err := s.complianceSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	items, page := pagination.Page(items, limit, offset)
	c.JSON(http.StatusOK, gin.H{"data": items, "page_info": page})
}

type submitComplianceRequest struct {
	Text string `json:"text"`
}

func (s *Server) SubmitCompliance(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req submitComplianceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if err := s.complianceSvc.Submit(c.Request.Context(), id, strings.TrimSpace(req.Text)); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) AcceptCompliance(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := s.complianceSvc.Accept(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) RequestComplianceAmendment(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req amendmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if err := s.complianceSvc.RequestAmendment(c.Request.Context(), id, strings.TrimSpace(req.Message)); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) DiscardCompliance(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := s.complianceSvc.Discard(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) SendComplianceReferral(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req sendReferralRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID == 0 {
		AbortWithError(c, newValidationError("user_id", "required", "referral user id is required"))
		return
	}
	if err := s.complianceSvc.SendReferral(c.Request.Context(), id, req.UserID); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "ok"})
}

func (s *Server) RemindComplianceReferral(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := s.complianceSvc.RemindReferral(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) RecallComplianceReferral(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := s.complianceSvc.RecallReferral(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) CompleteComplianceReferral(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req completeReferralRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if err := s.complianceSvc.CompleteReferral(c.Request.Context(), id, strings.TrimSpace(req.Comments)); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

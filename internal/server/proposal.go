package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	approvaldomain "github.com/crownlands/tenure/internal/approval/domain"
	proposaldomain "github.com/crownlands/tenure/internal/proposal/domain"
	"github.com/crownlands/tenure/pkg/db/pagination"
	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
)

type createProposalRequest struct {
	OrgApplicantID *string        `json:"org_applicant_id,omitempty"`
	IndApplicantID *string        `json:"ind_applicant_id,omitempty"`
	SubmitterID    int64          `json:"submitter_id"`
	Details        string         `json:"details"`
	Geometry       datatypes.JSON `json:"geometry,omitempty"`
}

func (s *Server) CreateProposal(c *gin.Context) {
	var req createProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	orgID, ok := parseOptionalID(c, "org_applicant_id", req.OrgApplicantID)
	if !ok {
		return
	}
	indID, ok := parseOptionalID(c, "ind_applicant_id", req.IndApplicantID)
	if !ok {
		return
	}

	proposal, err := s.proposalSvc.Create(c.Request.Context(), proposaldomain.CreateProposalRequest{
		OrgApplicantID: orgID,
		IndApplicantID: indID,
		SubmitterID:    req.SubmitterID,
		Details:        strings.TrimSpace(req.Details),
		Geometry:       req.Geometry,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, proposal)
}

func (s *Server) GetProposal(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	proposal, err := s.proposalSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, proposal)
}

func (s *Server) ListProposals(c *gin.Context) {
	limit, offset, ok := pageWindow(c)
	if !ok {
		return
	}
	req := proposaldomain.ListProposalRequest{
		Limit:  limit + 1,
		Offset: offset,
	}
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status := proposaldomain.ProcessingStatus(raw)
		req.Status = &status
	}
	items, err := s.proposalSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	items, page := pagination.Page(items, limit, offset)
	c.JSON(http.StatusOK, gin.H{"data": items, "page_info": page})
}

func (s *Server) SubmitProposal(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	proposal, err := s.proposalSvc.Submit(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, proposal)
}

type assignOfficerRequest struct {
	OfficerID int64 `json:"officer_id"`
}

func (s *Server) AssignOfficer(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req assignOfficerRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.OfficerID == 0 {
		AbortWithError(c, newValidationError("officer_id", "required", "officer id is required"))
		return
	}
	if err := s.proposalSvc.AssignOfficer(c.Request.Context(), id, req.OfficerID); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) UnassignOfficer(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := s.proposalSvc.UnassignOfficer(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type switchStatusRequest struct {
	Status string `json:"status"`
}

func (s *Server) SwitchProposalStatus(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req switchStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Status) == "" {
		AbortWithError(c, newValidationError("status", "required", "target status is required"))
		return
	}
	target := proposaldomain.ProcessingStatus(strings.TrimSpace(req.Status))
	if err := s.proposalSvc.SwitchStatus(c.Request.Context(), id, target); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type amendmentRequest struct {
	Message string `json:"message"`
}

func (s *Server) RequestProposalAmendment(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req amendmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if err := s.proposalSvc.RequestAmendment(c.Request.Context(), id, strings.TrimSpace(req.Message)); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) ResubmitProposal(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := s.proposalSvc.Resubmit(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type approveProposalRequest struct {
	StartDate    string                           `json:"start_date"`
	ExpiryDate   string                           `json:"expiry_date"`
	Requirements []approvaldomain.RequirementInput `json:"requirements,omitempty"`
}

func (s *Server) ApproveProposal(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req approveProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	start, err := time.Parse(time.DateOnly, req.StartDate)
	if err != nil {
		AbortWithError(c, newValidationError("start_date", "invalid_date", "expected YYYY-MM-DD"))
		return
	}
	expiry, err := time.Parse(time.DateOnly, req.ExpiryDate)
	if err != nil {
		AbortWithError(c, newValidationError("expiry_date", "invalid_date", "expected YYYY-MM-DD"))
		return
	}

	approval, err := s.proposalSvc.Approve(c.Request.Context(), id, proposaldomain.ApproveProposalRequest{
		StartDate:    start,
		ExpiryDate:   expiry,
		Requirements: req.Requirements,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, approval)
}

type declineRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) DeclineProposal(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req declineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if err := s.proposalSvc.Decline(c.Request.Context(), id, strings.TrimSpace(req.Reason)); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) BeginInvoicing(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := s.proposalSvc.BeginInvoicing(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) FinalizeInvoicing(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := s.proposalSvc.FinalizeInvoicing(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) DiscardProposal(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := s.proposalSvc.Discard(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type sendReferralRequest struct {
	UserID int64 `json:"user_id"`
}

func (s *Server) SendProposalReferral(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req sendReferralRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID == 0 {
		AbortWithError(c, newValidationError("user_id", "required", "referral user id is required"))
		return
	}
	if err := s.proposalSvc.SendReferral(c.Request.Context(), id, req.UserID); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "ok"})
}

func (s *Server) RemindProposalReferral(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := s.proposalSvc.RemindReferral(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) RecallProposalReferral(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := s.proposalSvc.RecallReferral(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type completeReferralRequest struct {
	Comments string `json:"comments"`
}

func (s *Server) CompleteProposalReferral(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req completeReferralRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if err := s.proposalSvc.CompleteReferral(c.Request.Context(), id, strings.TrimSpace(req.Comments)); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// parseOptionalID converts an optional string field to a snowflake pointer.
func parseOptionalID(c *gin.Context, field string, raw *string) (*snowflake.ID, bool) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, true
	}
	id, err := snowflake.ParseString(strings.TrimSpace(*raw))
	if err != nil {
		AbortWithError(c, newValidationError(field, "invalid_id", "malformed identifier"))
		return nil, false
	}
	return &id, true
}

// pageWindow binds the page query parameters and resolves them to a
// limit/offset window. Handlers fetch limit+1 rows and trim with
// pagination.Page so the response can advertise the next page token.
func pageWindow(c *gin.Context) (limit, offset int, ok bool) {
	var p pagination.Pagination
	if err := c.ShouldBindQuery(&p); err != nil {
		AbortWithError(c, invalidRequestError())
		return 0, 0, false
	}
	limit, offset, err := p.Window()
	if err != nil {
		AbortWithError(c, newValidationError("page_token", "invalid_page_token", "malformed page token"))
		return 0, 0, false
	}
	return limit, offset, true
}

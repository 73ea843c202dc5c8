package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	competitivedomain "github.com/crownlands/tenure/internal/competitiveprocess/domain"
	"github.com/crownlands/tenure/pkg/db/pagination"
	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
)

type createProcessRequest struct {
	DetailsText string         `json:"details_text"`
	Geometry    datatypes.JSON `json:"geometry,omitempty"`
}

func (s *Server) CreateCompetitiveProcess(c *gin.Context) {
	var req createProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	process, err := s.competitiveSvc.Create(c.Request.Context(), competitivedomain.CreateProcessRequest{
		DetailsText: strings.TrimSpace(req.DetailsText),
		Geometry:    req.Geometry,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, process)
}

func (s *Server) GetCompetitiveProcess(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	process, err := s.competitiveSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, process)
}

func (s *Server) ListCompetitiveProcesses(c *gin.Context) {
	limit, offset, ok := pageWindow(c)
	if !ok {
		return
	}
	var status *competitivedomain.Status
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		parsed := competitivedomain.Status(raw)
		status = &parsed
	}
	items, err := s.competitiveSvc.List(c.Request.Context(), status, limit+1, offset)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	items, page := pagination.Page(items, limit, offset)
	c.JSON(http.StatusOK, gin.H{"data": items, "page_info": page})
}

type addPartyRequest struct {
	PersonID *string `json:"person_id,omitempty"`
	OrgID    *string `json:"org_id,omitempty"`
}

func (s *Server) AddParty(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req addPartyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	personID, ok := parseOptionalID(c, "person_id", req.PersonID)
	if !ok {
		return
	}
	orgID, ok := parseOptionalID(c, "org_id", req.OrgID)
	if !ok {
		return
	}

	party, err := s.competitiveSvc.AddParty(c.Request.Context(), id, competitivedomain.AddPartyRequest{
		PersonID: personID,
		OrgID:    orgID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, party)
}

func (s *Server) ListParties(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	parties, err := s.competitiveSvc.ListParties(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": parties})
}

type setWinnerRequest struct {
	PartyID string `json:"party_id"`
}

func (s *Server) SetWinner(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req setWinnerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	partyID, ok := parseRequiredID(c, "party_id", req.PartyID)
	if !ok {
		return
	}
	if err := s.competitiveSvc.SetWinner(c.Request.Context(), id, partyID); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func parseRequiredID(c *gin.Context, field, raw string) (snowflake.ID, bool) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil {
		AbortWithError(c, newValidationError(field, "invalid_id", "malformed identifier"))
		return 0, false
	}
	return id, true
}

func (s *Server) CompleteCompetitiveProcess(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	process, err := s.competitiveSvc.Complete(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, process)
}

func (s *Server) DiscardCompetitiveProcess(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := s.competitiveSvc.Discard(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) UnlockCompetitiveProcess(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	process, err := s.competitiveSvc.Unlock(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, process)
}

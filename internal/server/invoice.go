package server

import (
	"net/http"
	"strings"

	invoicingdomain "github.com/crownlands/tenure/internal/invoicing/domain"
	"github.com/crownlands/tenure/pkg/db/pagination"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type createInvoiceRequest struct {
	ApprovalID  string  `json:"approval_id"`
	HolderOrgID *string `json:"holder_org_id,omitempty"`
	HolderIndID *string `json:"holder_ind_id,omitempty"`
	Amount      string  `json:"amount"`
	Description string  `json:"description"`
	OracleCode  string  `json:"oracle_code"`
}

func (s *Server) CreateInvoice(c *gin.Context) {
	var req createInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	approvalID, ok := parseRequiredID(c, "approval_id", req.ApprovalID)
	if !ok {
		return
	}
	orgID, ok := parseOptionalID(c, "holder_org_id", req.HolderOrgID)
	if !ok {
		return
	}
	indID, ok := parseOptionalID(c, "holder_ind_id", req.HolderIndID)
	if !ok {
		return
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil {
		AbortWithError(c, newValidationError("amount", "invalid_amount", "amount must be a decimal string"))
		return
	}

	invoice, err := s.invoiceSvc.Create(c.Request.Context(), invoicingdomain.CreateInvoiceRequest{
		ApprovalID:  approvalID,
		HolderOrgID: orgID,
		HolderIndID: indID,
		Amount:      amount,
		Description: strings.TrimSpace(req.Description),
		OracleCode:  strings.TrimSpace(req.OracleCode),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, invoice)
}

func (s *Server) GetInvoice(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	invoice, err := s.invoiceSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	balance, err := s.invoiceSvc.BalanceOf(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invoice": invoice, "balance": balance})
}

func (s *Server) ListInvoices(c *gin.Context) {
	limit, offset, ok := pageWindow(c)
	if !ok {
		return
	}
	req := invoicingdomain.ListInvoiceRequest{
		Limit:  limit + 1,
		Offset: offset,
	}
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status := invoicingdomain.InvoiceStatus(raw)
		req.Status = &status
	}
	if raw := strings.TrimSpace(c.Query("approval_id")); raw != "" {
		id, ok := parseRequiredID(c, "approval_id", raw)
		if !ok {
			return
		}
		req.ApprovalID = &id
	}
	items, err := s.invoiceSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	items, page := pagination.Page(items, limit, offset)
	c.JSON(http.StatusOK, gin.H{"data": items, "page_info": page})
}

func (s *Server) ListInvoiceTransactions(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	txs, err := s.invoiceSvc.ListTransactions(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": txs})
}

type uploadOracleInvoiceRequest struct {
	OracleInvoiceNumber string `json:"oracle_invoice_number"`
}

func (s *Server) UploadOracleInvoice(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req uploadOracleInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	invoice, err := s.invoiceSvc.UploadOracleInvoice(c.Request.Context(), id, strings.TrimSpace(req.OracleInvoiceNumber))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

type recordTransactionRequest struct {
	Debit  string `json:"debit"`
	Credit string `json:"credit"`
	Note   string `json:"note"`
}

func (s *Server) RecordInvoiceTransaction(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req recordTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	debit, ok := parseAmount(c, "debit", req.Debit)
	if !ok {
		return
	}
	credit, ok := parseAmount(c, "credit", req.Credit)
	if !ok {
		return
	}
	invoice, err := s.invoiceSvc.RecordTransaction(c.Request.Context(), id, debit, credit, strings.TrimSpace(req.Note))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

func (s *Server) RecalculateInvoiceCPI(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	invoice, err := s.invoiceSvc.RecalculateCPI(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

func (s *Server) VoidInvoice(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := s.invoiceSvc.Void(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) DiscardInvoice(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := s.invoiceSvc.Discard(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type paymentSessionRequest struct {
	ReturnURL string `json:"return_url"`
}

func (s *Server) CreatePaymentSession(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req paymentSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	url, err := s.invoiceSvc.PaymentSession(c.Request.Context(), id, strings.TrimSpace(req.ReturnURL))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payment_url": url})
}

// parseAmount treats a blank field as zero; money fields arrive as decimal
// strings, never floats.
func parseAmount(c *gin.Context, field, raw string) (decimal.Decimal, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, true
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		AbortWithError(c, newValidationError(field, "invalid_amount", "amount must be a decimal string"))
		return decimal.Decimal{}, false
	}
	return amount, true
}

package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	approvaldomain "github.com/crownlands/tenure/internal/approval/domain"
	compliancedomain "github.com/crownlands/tenure/internal/compliance/domain"
	competitivedomain "github.com/crownlands/tenure/internal/competitiveprocess/domain"
	"github.com/crownlands/tenure/internal/config"
	invoicingdomain "github.com/crownlands/tenure/internal/invoicing/domain"
	"github.com/crownlands/tenure/internal/observability"
	obslogger "github.com/crownlands/tenure/internal/observability/logger"
	"github.com/crownlands/tenure/internal/observability/metrics"
	obstracing "github.com/crownlands/tenure/internal/observability/tracing"
	organizationdomain "github.com/crownlands/tenure/internal/organization/domain"
	proposaldomain "github.com/crownlands/tenure/internal/proposal/domain"
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, m *metrics.Provider) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(m.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(m.Handler()))

	return r
}

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	genID           *snowflake.Node
	proposalSvc     proposaldomain.Service
	competitiveSvc  competitivedomain.Service
	approvalSvc     approvaldomain.Service
	complianceSvc   compliancedomain.Service
	invoiceSvc      invoicingdomain.Service
	organizationSvc organizationdomain.Service
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	GenID           *snowflake.Node
	ProposalSvc     proposaldomain.Service
	CompetitiveSvc  competitivedomain.Service
	ApprovalSvc     approvaldomain.Service
	ComplianceSvc   compliancedomain.Service
	InvoiceSvc      invoicingdomain.Service
	OrganizationSvc organizationdomain.Service
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		genID:           p.GenID,
		proposalSvc:     p.ProposalSvc,
		competitiveSvc:  p.CompetitiveSvc,
		approvalSvc:     p.ApprovalSvc,
		complianceSvc:   p.ComplianceSvc,
		invoiceSvc:      p.InvoiceSvc,
		organizationSvc: p.OrganizationSvc,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	api := s.engine.Group("/api")

	proposals := api.Group("/proposals")
	{
		proposals.POST("", s.CreateProposal)
		proposals.GET("", s.ListProposals)
		proposals.GET("/:id", s.GetProposal)
		proposals.POST("/:id/submit", s.SubmitProposal)
		proposals.POST("/:id/assign", s.AssignOfficer)
		proposals.POST("/:id/unassign", s.UnassignOfficer)
		proposals.POST("/:id/status", s.SwitchProposalStatus)
		proposals.POST("/:id/request-amendment", s.RequestProposalAmendment)
		proposals.POST("/:id/resubmit", s.ResubmitProposal)
		proposals.POST("/:id/approve", s.ApproveProposal)
		proposals.POST("/:id/decline", s.DeclineProposal)
		proposals.POST("/:id/begin-invoicing", s.BeginInvoicing)
		proposals.POST("/:id/finalize-invoicing", s.FinalizeInvoicing)
		proposals.POST("/:id/discard", s.DiscardProposal)
		proposals.POST("/:id/referrals", s.SendProposalReferral)
	}
	proposalReferrals := api.Group("/proposal-referrals")
	{
		proposalReferrals.POST("/:id/remind", s.RemindProposalReferral)
		proposalReferrals.POST("/:id/recall", s.RecallProposalReferral)
		proposalReferrals.POST("/:id/complete", s.CompleteProposalReferral)
	}

	processes := api.Group("/competitive-processes")
	{
		processes.POST("", s.CreateCompetitiveProcess)
		processes.GET("", s.ListCompetitiveProcesses)
		processes.GET("/:id", s.GetCompetitiveProcess)
		processes.POST("/:id/parties", s.AddParty)
		processes.GET("/:id/parties", s.ListParties)
		processes.POST("/:id/winner", s.SetWinner)
		processes.POST("/:id/complete", s.CompleteCompetitiveProcess)
		processes.POST("/:id/discard", s.DiscardCompetitiveProcess)
		processes.POST("/:id/unlock", s.UnlockCompetitiveProcess)
	}

	approvals := api.Group("/approvals")
	{
		approvals.GET("", s.ListApprovals)
		approvals.GET("/:id", s.GetApproval)
		approvals.GET("/:id/requirements", s.ListApprovalRequirements)
		approvals.POST("/:id/surrender", s.SurrenderApproval)
		approvals.POST("/:id/cancel", s.CancelApproval)
	}

	compliances := api.Group("/compliances")
	{
		compliances.GET("", s.ListCompliances)
		compliances.GET("/:id", s.GetCompliance)
		compliances.POST("/:id/submit", s.SubmitCompliance)
		compliances.POST("/:id/accept", s.AcceptCompliance)
		compliances.POST("/:id/request-amendment", s.RequestComplianceAmendment)
		compliances.POST("/:id/discard", s.DiscardCompliance)
		compliances.POST("/:id/referrals", s.SendComplianceReferral)
	}
	complianceReferrals := api.Group("/compliance-referrals")
	{
		complianceReferrals.POST("/:id/remind", s.RemindComplianceReferral)
		complianceReferrals.POST("/:id/recall", s.RecallComplianceReferral)
		complianceReferrals.POST("/:id/complete", s.CompleteComplianceReferral)
	}

	invoices := api.Group("/invoices")
	{
		invoices.POST("", s.CreateInvoice)
		invoices.GET("", s.ListInvoices)
		invoices.GET("/:id", s.GetInvoice)
		invoices.GET("/:id/transactions", s.ListInvoiceTransactions)
		invoices.POST("/:id/upload-oracle-invoice", s.UploadOracleInvoice)
		invoices.POST("/:id/transactions", s.RecordInvoiceTransaction)
		invoices.POST("/:id/recalculate-cpi", s.RecalculateInvoiceCPI)
		invoices.POST("/:id/void", s.VoidInvoice)
		invoices.POST("/:id/discard", s.DiscardInvoice)
		invoices.POST("/:id/payment-session", s.CreatePaymentSession)
	}

	orgs := api.Group("/organisations")
	{
		orgs.POST("", s.CreateOrganisation)
		orgs.GET("", s.SearchOrganisations)
		orgs.GET("/:id", s.GetOrganisation)
		orgs.POST("/:id/delegates", s.AddDelegate)
		orgs.DELETE("/:id/delegates/:userId", s.RemoveDelegate)
	}
}

// idParam parses a snowflake path parameter. A malformed id aborts with a
// validation error and returns false.
func idParam(c *gin.Context, name string) (snowflake.ID, bool) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param(name)))
	if err != nil {
		AbortWithError(c, newValidationError(name, "invalid_id", "malformed identifier"))
		return 0, false
	}
	return id, true
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

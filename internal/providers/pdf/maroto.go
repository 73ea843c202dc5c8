package pdf

import (
	"context"
	"fmt"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

type MarotoProvider struct{}

func New() Provider {
	return &MarotoProvider{}
}

func newDocument() core.Maroto {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()
	return maroto.New(cfg)
}

func (p *MarotoProvider) ApprovalLetter(ctx context.Context, data ApprovalLetterData) ([]byte, error) {
	m := newDocument()

	m.AddRow(12,
		text.NewCol(12, "Lease/Licence Approval", props.Text{
			Size:  18,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)

	m.AddRow(24,
		col.New(6).Add(
			text.New("Approval number: "+data.ApprovalNumber, props.Text{Top: 0}),
			text.New("Application: "+data.ProposalNumber, props.Text{Top: 4}),
			text.New("Issued: "+data.IssuedDate, props.Text{Top: 8}),
			text.New("Term: "+data.StartDate+" to "+data.ExpiryDate, props.Text{Top: 12}),
		),
		col.New(6).Add(
			text.New("Holder", props.Text{Style: fontstyle.Bold}),
			text.New(data.HolderName, props.Text{Top: 5}),
			text.New(data.HolderAddress, props.Text{Top: 9}),
		),
	)

	if len(data.Conditions) > 0 {
		m.AddRow(8,
			text.NewCol(12, "Conditions", props.Text{Style: fontstyle.Bold, Size: 11}),
		)
		for i, condition := range data.Conditions {
			m.AddRow(8,
				text.NewCol(12, fmt.Sprintf("%d. %s", i+1, condition), props.Text{Size: 9}),
			)
		}
	}

	m.AddRow(16,
		text.NewCol(12, "Issued by: "+data.IssuingOfficer, props.Text{Size: 9, Top: 6}),
	)

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate approval letter: %w", err)
	}
	return doc.GetBytes(), nil
}

func (p *MarotoProvider) InvoiceSummary(ctx context.Context, data InvoiceSummaryData) ([]byte, error) {
	m := newDocument()

	m.AddRow(12,
		text.NewCol(12, "Invoice", props.Text{
			Size:  18,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)

	m.AddRow(28,
		col.New(6).Add(
			text.New("Invoice number: "+data.InvoiceNumber, props.Text{Top: 0}),
			text.New("Oracle invoice: "+data.OracleNumber, props.Text{Top: 4}),
			text.New("Approval: "+data.ApprovalNumber, props.Text{Top: 8}),
			text.New("Issued: "+data.IssueDate, props.Text{Top: 12}),
			text.New("Due: "+data.DueDate, props.Text{Top: 16}),
		),
		col.New(6).Add(
			text.New("Holder", props.Text{Style: fontstyle.Bold}),
			text.New(data.HolderName, props.Text{Top: 5}),
		),
	)

	m.AddRow(10,
		text.NewCol(8, "Billing period: "+data.Period, props.Text{Size: 9}),
		text.NewCol(4, "Amount due: "+data.Amount, props.Text{Size: 12, Style: fontstyle.Bold, Align: align.Right}),
	)

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate invoice summary: %w", err)
	}
	return doc.GetBytes(), nil
}

func (p *MarotoProvider) ComplianceNotice(ctx context.Context, data ComplianceNoticeData) ([]byte, error) {
	m := newDocument()

	m.AddRow(12,
		text.NewCol(12, "Compliance Notice", props.Text{
			Size:  18,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)

	m.AddRow(24,
		col.New(6).Add(
			text.New("Compliance: "+data.ComplianceNumber, props.Text{Top: 0}),
			text.New("Approval: "+data.ApprovalNumber, props.Text{Top: 4}),
			text.New("Due: "+data.DueDate, props.Text{Top: 8}),
		),
		col.New(6).Add(
			text.New("Holder", props.Text{Style: fontstyle.Bold}),
			text.New(data.HolderName, props.Text{Top: 5}),
		),
	)

	m.AddRow(16,
		text.NewCol(12, data.Requirement, props.Text{Size: 9}),
	)

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate compliance notice: %w", err)
	}
	return doc.GetBytes(), nil
}

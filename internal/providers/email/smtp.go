package email

import (
	"bytes"
	"context"
	"embed"
	"encoding/base64"
	"fmt"
	"html/template"
	"mime"
	"net/smtp"
	"strings"
)

//go:embed templates/*.html
var templateFS embed.FS

// subjects maps each notification kind to its subject template. Subjects may
// reference context values with {{.field}} like the bodies do.
var subjects = map[Kind]string{
	KindProposalSubmitted:  "Proposal {{.lodgement_number}} submitted",
	KindProposalApproved:   "Proposal {{.lodgement_number}} approved",
	KindProposalDeclined:   "Proposal {{.lodgement_number}} declined",
	KindAmendmentRequested: "Amendment required for proposal {{.lodgement_number}}",
	KindReferralSent:       "Referral: {{.lodgement_number}} requires your review",
	KindReferralReminder:   "Reminder: referral for {{.lodgement_number}} is pending",
	KindReferralRecalled:   "Referral recalled for {{.lodgement_number}}",
	KindReferralsCompleted: "All referrals completed for proposal {{.lodgement_number}}",
	KindWinnerNotification: "Competitive process {{.process_number}}: your application has been created",
	KindComplianceReminder: "Compliance {{.lodgement_number}} is due on {{.due_date}}",
	KindComplianceOverdue:  "Compliance {{.lodgement_number}} is overdue",
	KindComplianceAccepted: "Compliance {{.lodgement_number}} accepted",
	KindInvoiceDueReminder: "Invoice {{.lodgement_number}} is due on {{.due_date}}",
	KindJobFailureSummary:  "Scheduled job failures: {{.count}} record(s) affected",
}

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPNotifier renders the template for a kind and delivers it over SMTP.
type SMTPNotifier struct {
	cfg       Config
	templates *template.Template
}

func NewSMTP(cfg Config) (*SMTPNotifier, error) {
	templates, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse notification templates: %w", err)
	}
	return &SMTPNotifier{cfg: cfg, templates: templates}, nil
}

func (n *SMTPNotifier) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return ErrNoRecipients
	}
	subjectTmpl, ok := subjects[msg.Kind]
	if !ok {
		return ErrUnknownKind
	}

	subject, err := renderString(subjectTmpl, msg.Context)
	if err != nil {
		return fmt.Errorf("render subject for %s: %w", msg.Kind, err)
	}

	var body bytes.Buffer
	if err := n.templates.ExecuteTemplate(&body, string(msg.Kind)+".html", msg.Context); err != nil {
		return fmt.Errorf("render body for %s: %w", msg.Kind, err)
	}

	payload := buildMIME(n.cfg.From, msg, subject, body.String())

	recipients := make([]string, 0, len(msg.To)+len(msg.Cc)+len(msg.Bcc))
	recipients = append(recipients, msg.To...)
	recipients = append(recipients, msg.Cc...)
	recipients = append(recipients, msg.Bcc...)

	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)
	var auth smtp.Auth
	if n.cfg.Username != "" {
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	}
	return smtp.SendMail(addr, auth, n.cfg.From, recipients, payload)
}

func renderString(tmpl string, data map[string]any) (string, error) {
	t, err := template.New("subject").Parse(tmpl)
	if err != nil {
		return "", err
	}
	var out bytes.Buffer
	if err := t.Execute(&out, data); err != nil {
		return "", err
	}
	return out.String(), nil
}

func buildMIME(from string, msg Message, subject, htmlBody string) []byte {
	const boundary = "tenure-mime-boundary"

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(msg.To, ", "))
	if len(msg.Cc) > 0 {
		fmt.Fprintf(&buf, "Cc: %s\r\n", strings.Join(msg.Cc, ", "))
	}
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	buf.WriteString("MIME-Version: 1.0\r\n")

	if len(msg.Attachments) == 0 {
		buf.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
		buf.WriteString(htmlBody)
		return buf.Bytes()
	}

	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", boundary)
	fmt.Fprintf(&buf, "--%s\r\n", boundary)
	buf.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	buf.WriteString(htmlBody)
	buf.WriteString("\r\n")

	for _, att := range msg.Attachments {
		contentType := att.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		fmt.Fprintf(&buf, "--%s\r\n", boundary)
		fmt.Fprintf(&buf, "Content-Type: %s\r\n", contentType)
		fmt.Fprintf(&buf, "Content-Disposition: attachment; filename=%q\r\n", att.Filename)
		buf.WriteString("Content-Transfer-Encoding: base64\r\n\r\n")
		buf.WriteString(base64.StdEncoding.EncodeToString(att.Data))
		buf.WriteString("\r\n")
	}
	fmt.Fprintf(&buf, "--%s--\r\n", boundary)
	return buf.Bytes()
}

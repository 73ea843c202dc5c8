package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
)

type Config struct {
	BaseURL           string
	APIKey            string
	SystemSenderEmail string
	Timeout           time.Duration
}

// HTTPClient is the production ledger client.
type HTTPClient struct {
	cfg  Config
	http *http.Client
	log  *zap.Logger
}

func NewHTTPClient(cfg Config, log *zap.Logger) *HTTPClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		cfg:  cfg,
		http: &http.Client{Timeout: timeout},
		log:  log.Named("ledger.client"),
	}
}

func (c *HTTPClient) RetrieveEmailUser(ctx context.Context, id int64) (EmailUser, error) {
	var user EmailUser
	err := c.get(ctx, "/api/identity/users/"+strconv.FormatInt(id, 10), &user)
	if err != nil {
		if isNotFound(err) {
			return EmailUser{}, ErrUserNotFound
		}
		return EmailUser{}, err
	}
	return user, nil
}

func (c *HTTPClient) RetrieveSystemSender(ctx context.Context) (EmailUser, error) {
	var user EmailUser
	err := c.get(ctx, "/api/identity/system-sender", &user)
	if err != nil {
		if isNotFound(err) && c.cfg.SystemSenderEmail != "" {
			// The configured fallback keeps outbound notifications working
			// when the ledger service has no default sender.
			return EmailUser{Email: c.cfg.SystemSenderEmail}, nil
		}
		return EmailUser{}, err
	}
	return user, nil
}

func (c *HTTPClient) CreateOrganisation(ctx context.Context, name, abn string) (Organisation, error) {
	var org Organisation
	payload := map[string]string{"name": name, "abn": abn}
	if err := c.post(ctx, "/api/organisations", payload, &org); err != nil {
		return Organisation{}, err
	}
	return org, nil
}

func (c *HTTPClient) SearchOrganisations(ctx context.Context, query string) ([]Organisation, error) {
	var out struct {
		Results []Organisation `json:"results"`
	}
	path := "/api/organisations?search=" + url.QueryEscape(query)
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

func (c *HTTPClient) RetrieveOrganisation(ctx context.Context, id int64) (Organisation, error) {
	var org Organisation
	err := c.get(ctx, "/api/organisations/"+strconv.FormatInt(id, 10), &org)
	if err != nil {
		if isNotFound(err) {
			return Organisation{}, ErrOrganisationNotFound
		}
		return Organisation{}, err
	}
	return org, nil
}

func (c *HTTPClient) GenerateInvoice(ctx context.Context, req InvoiceRequest) error {
	return c.post(ctx, "/api/invoices", req, nil)
}

func (c *HTTPClient) GeneratePaymentSession(ctx context.Context, invoiceNumber, returnURL string) (PaymentSession, error) {
	var session PaymentSession
	payload := map[string]string{"invoice_number": invoiceNumber, "return_url": returnURL}
	if err := c.post(ctx, "/api/payment-sessions", payload, &session); err != nil {
		return PaymentSession{}, err
	}
	return session, nil
}

type statusError struct {
	status int
}

func (e statusError) Error() string { return "ledger responded " + strconv.Itoa(e.status) }

func isNotFound(err error) bool {
	se, ok := err.(statusError)
	return ok && se.status == http.StatusNotFound
}

func (c *HTTPClient) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *HTTPClient) post(ctx context.Context, path string, payload, out any) error {
	return c.do(ctx, http.MethodPost, path, payload, out)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, payload, out any) error {
	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("ledger request failed", zap.String("path", path), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return statusError{status: resp.StatusCode}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Warn("ledger responded with error", zap.String("path", path), zap.Int("status", resp.StatusCode))
		return statusError{status: resp.StatusCode}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

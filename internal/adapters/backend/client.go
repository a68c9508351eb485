// Package backend talks to the business REST API that owns contracts, debts
// and payments.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"debtster_installments/internal/models"
	"debtster_installments/internal/ports"
)

const maxBody = 8 << 20

var ErrNotFound = ports.ErrNotFound

// StatusError is a non-2xx answer from the backend.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: http status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

func (e *StatusError) Unwrap() error {
	if e.Code == http.StatusNotFound {
		return ErrNotFound
	}
	return nil
}

type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Client is explicitly constructed with its token so tests and tools can
// point it at a fake server.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *log.Logger
}

var _ ports.DebtStore = (*Client)(nil)

func NewClient(cfg Config, httpClient *http.Client, logger *log.Logger) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("backend: bad base url %q", cfg.BaseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if cfg.Timeout > 0 {
		httpClient.Timeout = cfg.Timeout
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Client{baseURL: base, token: cfg.Token, http: httpClient, logger: logger}, nil
}

type createDebtBody struct {
	Amount  int64   `json:"amount"`
	DueDate *string `json:"due_date"`
	Title   *string `json:"title"`
}

func (c *Client) CreateDebt(ctx context.Context, contractID models.ID, in ports.DebtInput) (models.Debt, error) {
	body := createDebtBody{Amount: in.Amount, Title: in.Title}
	if in.DueDate != nil && !in.DueDate.IsZero() {
		s := in.DueDate.String()
		body.DueDate = &s
	}

	path := "/debt/" + url.PathEscape(contractID.String())
	raw, err := c.do(ctx, http.MethodPost, path, body, in.IdempotencyKey)
	if err != nil {
		return models.Debt{}, err
	}

	d, err := decodeCreated(raw)
	if err != nil {
		return models.Debt{}, fmt.Errorf("POST %s: %w", path, err)
	}
	if d.Amount == 0 {
		d.Amount = in.Amount
	}
	if d.ContractID == "" {
		d.ContractID = contractID
	}
	if d.DueDate == nil {
		d.DueDate = in.DueDate
	}
	if d.Title == nil {
		d.Title = in.Title
	}
	if d.Status == "" {
		d.Status = models.DebtStatusPending
	}
	return d, nil
}

// decodeCreated accepts the created record, a {"data": record} envelope, or a
// bare id.
func decodeCreated(raw []byte) (models.Debt, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '{' {
		d, err := DecodeOne[models.Debt](raw)
		if err != nil {
			return models.Debt{}, err
		}
		if d.ID == "" {
			return models.Debt{}, fmt.Errorf("%w: created debt without id", ErrUnexpectedShape)
		}
		return d, nil
	}

	var id models.ID
	if err := json.Unmarshal(raw, &id); err != nil || id == "" {
		return models.Debt{}, fmt.Errorf("%w: expected debt or id", ErrUnexpectedShape)
	}
	return models.Debt{ID: id}, nil
}

func (c *Client) GetDebt(ctx context.Context, id models.ID) (models.Debt, error) {
	path := "/debt/" + url.PathEscape(id.String())
	raw, err := c.do(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return models.Debt{}, err
	}
	d, err := DecodeOne[models.Debt](raw)
	if err != nil {
		return models.Debt{}, fmt.Errorf("GET %s: %w", path, err)
	}
	return d, nil
}

// ListDebts returns all debts, or only those of contractID when it is set.
func (c *Client) ListDebts(ctx context.Context, contractID models.ID) ([]models.Debt, error) {
	path := "/debt"
	if contractID != "" {
		path += "?contract_id=" + url.QueryEscape(contractID.String())
	}
	raw, err := c.do(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return nil, err
	}
	all, err := DecodeList[models.Debt](raw)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	if contractID == "" {
		return all, nil
	}

	// the backend may ignore the filter
	out := make([]models.Debt, 0, len(all))
	for _, d := range all {
		if d.ContractID == contractID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (c *Client) ListPayments(ctx context.Context, debtID models.ID) ([]models.Payment, error) {
	path := "/debt/" + url.PathEscape(debtID.String()) + "/payments"
	raw, err := c.do(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return nil, err
	}
	out, err := DecodeList[models.Payment](raw)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	for i := range out {
		if out[i].DebtID == "" {
			out[i].DebtID = debtID
		}
	}
	return out, nil
}

func (c *Client) GetContract(ctx context.Context, id models.ID) (models.Contract, error) {
	path := "/contract/" + url.PathEscape(id.String())
	raw, err := c.do(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return models.Contract{}, err
	}
	ct, err := DecodeOne[models.Contract](raw)
	if err != nil {
		return models.Contract{}, fmt.Errorf("GET %s: %w", path, err)
	}
	return ct, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, idemKey string) ([]byte, error) {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		c.logger.Printf("[BACKEND][ERR] build request %s %s: %v", method, path, err)
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if idemKey != "" {
		req.Header.Set("Idempotency-Key", idemKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Printf("[BACKEND][ERR] %s %s: %v", method, path, err)
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("%s %s: read body: %w", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Printf("[BACKEND][ERR] %s %s status=%d took=%s", method, path, resp.StatusCode, time.Since(start))
		return nil, &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: truncate(string(raw), 512)}
	}
	c.logger.Printf("[BACKEND][OK] %s %s status=%d took=%s", method, path, resp.StatusCode, time.Since(start))
	return raw, nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Package transferegov reads execution plans of special transfers from the
// federal Transferegov.br API.
package transferegov

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/JadsonMattos/vigia-pix/internal/domain/amendments"
)

const DefaultBaseURL = "https://api.transferegov.gestao.gov.br"

// Config holds client configuration
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	RatePerSec float64
	Burst      int
	RetryCount int
	RetryDelay time.Duration
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		BaseURL:    DefaultBaseURL,
		Timeout:    10 * time.Second,
		RatePerSec: 5,
		Burst:      5,
		RetryCount: 1,
		RetryDelay: 200 * time.Millisecond,
	}
}

// Client implements amendments.PlanSource.
type Client struct {
	config  Config
	http    *http.Client
	limiter *rate.Limiter
}

func NewClient(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Burst <= 0 {
		config.Burst = 1
	}
	limit := rate.Inf
	if config.RatePerSec > 0 {
		limit = rate.Limit(config.RatePerSec)
	}
	return &Client{
		config:  config,
		http:    &http.Client{Timeout: config.Timeout},
		limiter: rate.NewLimiter(limit, config.Burst),
	}
}

type planRecord struct {
	Status      string   `json:"situacao_plano_acao"`
	Beneficiary string   `json:"nome_beneficiario"`
	Description string   `json:"descricao_programacao_orcamentaria_plano_acao"`
	Code        string   `json:"codigo_emenda_parlamentar_formatado_plano_acao"`
	TotalValue  *float64 `json:"valor_total_plano_acao"`
	ApprovedAt  string   `json:"data_aprovacao_plano_acao"`
	CancelledAt string   `json:"data_cancelamento_plano_acao"`
}

// statusError carries a non-200 answer; 4xx ones are not retried.
type statusError struct{ code int }

func (e *statusError) Error() string { return fmt.Sprintf("transferegov returned status %d", e.code) }

// FetchPlanStatus returns nil, nil when the portal has no plan for code.
func (c *Client) FetchPlanStatus(ctx context.Context, code string) (*amendments.PlanStatus, error) {
	if strings.TrimSpace(code) == "" {
		return nil, fmt.Errorf("%w: empty amendment code", amendments.ErrInvalidInput)
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.RetryCount; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", amendments.ErrEnrichmentUnavailable, ctx.Err())
			case <-time.After(c.config.RetryDelay):
			}
		}
		plan, err := c.fetch(ctx, code)
		if err == nil {
			return plan, nil
		}
		lastErr = err
		var se *statusError
		if errors.As(err, &se) && se.code < 500 {
			break
		}
	}
	return nil, fmt.Errorf("%w: plan %s: %v", amendments.ErrEnrichmentUnavailable, code, lastErr)
}

func (c *Client) fetch(ctx context.Context, code string) (*amendments.PlanStatus, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	params := url.Values{}
	params.Add("codigo_emenda_parlamentar_formatado_plano_acao", code)
	fullURL := strings.TrimSuffix(c.config.BaseURL, "/") + "/plano_acao_especial?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return parsePlan(body)
}

// parsePlan accepts either a single object or a list, taking the first.
func parsePlan(body []byte) (*amendments.PlanStatus, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, nil
	}

	var raw json.RawMessage
	if trimmed[0] == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("decode plan list: %w", err)
		}
		if len(list) == 0 {
			return nil, nil
		}
		raw = list[0]
	} else {
		raw = trimmed
	}

	var rec planRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}
	plan := &amendments.PlanStatus{
		Status:      strings.TrimSpace(rec.Status),
		Beneficiary: rec.Beneficiary,
		Description: rec.Description,
		ApprovedAt:  parseDate(rec.ApprovedAt),
		CancelledAt: parseDate(rec.CancelledAt),
		Raw:         append([]byte(nil), raw...),
	}
	if rec.TotalValue != nil {
		plan.TotalValue = *rec.TotalValue
	}
	return plan, nil
}

func parseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

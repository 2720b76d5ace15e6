// Package ceis checks recipients against the CEIS register (Cadastro de
// Empresas Inidôneas e Suspensas) of the Portal da Transparência API.
package ceis

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/JadsonMattos/vigia-pix/internal/domain/amendments"
)

const DefaultBaseURL = "https://api.portaldatransparencia.gov.br/api-de-dados"

type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	RatePerSec float64
}

// Client implements amendments.SanctionsSource.
type Client struct {
	config  Config
	http    *http.Client
	limiter *rate.Limiter
	now     func() time.Time
}

func NewClient(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	limit := rate.Inf
	if config.RatePerSec > 0 {
		limit = rate.Limit(config.RatePerSec)
	}
	return &Client{
		config:  config,
		http:    &http.Client{Timeout: config.Timeout},
		limiter: rate.NewLimiter(limit, 1),
		now:     time.Now,
	}
}

type record struct {
	StartDate string `json:"dataInicioSancao"`
	EndDate   string `json:"dataFimSancao"`
	Type      struct {
		Summary string `json:"descricaoResumida"`
	} `json:"tipoSancao"`
	Authority struct {
		Name string `json:"nome"`
	} `json:"orgaoSancionador"`
	Sanctioned struct {
		Name string `json:"nome"`
	} `json:"sancionado"`
}

// Sanction returns the first sanction still in force for cnpj, or nil.
func (c *Client) Sanction(ctx context.Context, cnpj string) (*amendments.Sanction, error) {
	cnpj = amendments.NormalizeCNPJ(cnpj)
	if cnpj == "" {
		return nil, fmt.Errorf("%w: invalid cnpj", amendments.ErrInvalidInput)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %v", amendments.ErrEnrichmentUnavailable, err)
	}

	params := url.Values{}
	params.Set("codigoSancionado", cnpj)
	params.Set("pagina", "1")
	fullURL := strings.TrimSuffix(c.config.BaseURL, "/") + "/ceis?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("chave-api-dados", c.config.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: ceis request: %v", amendments.ErrEnrichmentUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: ceis returned status %d", amendments.ErrEnrichmentUnavailable, resp.StatusCode)
	}

	var records []record
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&records); err != nil {
		return nil, fmt.Errorf("%w: decode ceis: %v", amendments.ErrEnrichmentUnavailable, err)
	}
	now := c.now()
	for _, r := range records {
		end := parseDate(r.EndDate)
		if end != nil && end.Before(now) {
			continue
		}
		return &amendments.Sanction{
			CNPJ:      cnpj,
			Name:      r.Sanctioned.Name,
			Kind:      r.Type.Summary,
			Authority: r.Authority.Name,
			StartDate: parseDate(r.StartDate),
			EndDate:   end,
		}, nil
	}
	return nil, nil
}

// parseDate reads the portal's dd/mm/yyyy dates.
func parseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range []string{"02/01/2006", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

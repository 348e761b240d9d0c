// Package client is a typed Go client for the pricing engine HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/happydiving/pricing-engine/internal/httpclient"
	"github.com/happydiving/pricing-engine/internal/pricing"
	"github.com/happydiving/pricing-engine/internal/rate"
	"github.com/happydiving/pricing-engine/pkg/model"
	"github.com/happydiving/pricing-engine/pkg/money"
)

// APIError is a non-2xx response decoded from the service's error body.
type APIError struct {
	StatusCode int            `json:"-"`
	ErrorType  string         `json:"error_type"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.ErrorType, e.StatusCode, e.Message)
}

func decodeAPIError(status int, body []byte) error {
	apiErr := &APIError{StatusCode: status}
	if err := json.Unmarshal(body, apiErr); err != nil || apiErr.ErrorType == "" {
		apiErr.ErrorType = "http_error"
		apiErr.Message = strings.TrimSpace(string(body))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(status)
		}
	}
	return apiErr
}

// Client calls the pricing engine API.
type Client struct {
	baseURL *url.URL
	exec    *httpclient.Executor
}

type options struct {
	httpClient *http.Client
	logger     *zap.Logger
	retries    int
	limiter    *rate.Manager
}

type Option func(*options)

func WithHTTPClient(c *http.Client) Option { return func(o *options) { o.httpClient = c } }

func WithLogger(l *zap.Logger) Option { return func(o *options) { o.logger = l } }

// WithRetries sets how many times 5xx and transport failures are retried.
func WithRetries(n int) Option { return func(o *options) { o.retries = n } }

// WithRateLimit caps outgoing requests per second.
func WithRateLimit(rps float64, burst int) Option {
	return func(o *options) {
		o.limiter = rate.NewManager(rate.Config{RequestsPerSecond: rps, Burst: burst})
	}
}

// New creates a client for the service at baseURL, e.g. http://localhost:8080.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", baseURL)
	}

	o := options{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     zap.NewNop(),
		retries:    2,
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Client{
		baseURL: u,
		exec:    httpclient.New(o.logger, o.limiter, o.httpClient, o.retries, "pricing_client", decodeAPIError),
	}, nil
}

// BoatCostInput prices a boat charter. A zero AsOf means now.
type BoatCostInput struct {
	SiteID     string     `json:"site_id"`
	DiverCount int        `json:"diver_count"`
	AsOf       *time.Time `json:"as_of,omitempty"`
}

// GasFillsInput prices tank fills.
type GasFillsInput struct {
	ShopID         string           `json:"shop_id"`
	GasType        string           `json:"gas_type"`
	FillsCount     int              `json:"fills_count"`
	ChargeOverride *decimal.Decimal `json:"charge_override,omitempty"`
	AsOf           *time.Time       `json:"as_of,omitempty"`
}

// ResolveInput resolves a catalog item price by id or display name.
type ResolveInput struct {
	CatalogItemID   *uuid.UUID `json:"catalog_item_id,omitempty"`
	CatalogItemName string     `json:"catalog_item_name,omitempty"`
	OrganizationID  *uuid.UUID `json:"organization_id,omitempty"`
	PartyID         *uuid.UUID `json:"party_id,omitempty"`
	AgreementID     *uuid.UUID `json:"agreement_id,omitempty"`
	AsOf            *time.Time `json:"as_of,omitempty"`
}

// AllocateInput splits a shared total.
type AllocateInput struct {
	SharedTotal      decimal.Decimal `json:"shared_total"`
	ParticipantCount int             `json:"participant_count"`
	Currency         string          `json:"currency,omitempty"`
}

// TotalsLine is one cost/charge line.
type TotalsLine struct {
	Key        string          `json:"key"`
	Allocation string          `json:"allocation"`
	Cost       decimal.Decimal `json:"cost"`
	Charge     decimal.Decimal `json:"charge"`
}

// TotalsRental is a per-diver equipment rental.
type TotalsRental struct {
	UnitCost   decimal.Decimal `json:"unit_cost"`
	UnitCharge decimal.Decimal `json:"unit_charge"`
	Quantity   int64           `json:"quantity"`
}

// TotalsInput aggregates lines into the per-diver breakdown.
type TotalsInput struct {
	Lines            []TotalsLine   `json:"lines"`
	ParticipantCount int            `json:"participant_count"`
	Currency         string         `json:"currency,omitempty"`
	EquipmentRentals []TotalsRental `json:"equipment_rentals,omitempty"`
}

// Health is the /health response.
type Health struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func (c *Client) BoatCost(ctx context.Context, in BoatCostInput) (*pricing.BoatCost, error) {
	var out pricing.BoatCost
	return &out, c.post(ctx, "/api/pricing/boat-cost", in, &out)
}

func (c *Client) GasFills(ctx context.Context, in GasFillsInput) (*pricing.GasFills, error) {
	var out pricing.GasFills
	return &out, c.post(ctx, "/api/pricing/gas-fills", in, &out)
}

func (c *Client) Resolve(ctx context.Context, in ResolveInput) (*pricing.ComponentPrice, error) {
	var out pricing.ComponentPrice
	return &out, c.post(ctx, "/api/pricing/resolve", in, &out)
}

func (c *Client) Allocate(ctx context.Context, in AllocateInput) (*money.Allocation, error) {
	var out money.Allocation
	return &out, c.post(ctx, "/api/pricing/allocate", in, &out)
}

func (c *Client) Totals(ctx context.Context, in TotalsInput) (*money.Totals, error) {
	var out money.Totals
	return &out, c.post(ctx, "/api/pricing/totals", in, &out)
}

func (c *Client) CacheStats(ctx context.Context) (*model.CacheStats, error) {
	var out model.CacheStats
	return &out, c.get(ctx, "/api/pricing/cache/stats", &out)
}

// Invalidate drops cache entries; empty fields widen the scope.
func (c *Client) Invalidate(ctx context.Context, namespace, key string) error {
	return c.post(ctx, "/api/pricing/cache/invalidate", model.InvalidationRequest{Namespace: namespace, Key: key}, nil)
}

// LastWarmup returns the most recent cache warm-up report.
func (c *Client) LastWarmup(ctx context.Context) (*model.WarmupReport, error) {
	var out model.WarmupReport
	return &out, c.get(ctx, "/api/pricing/cache/warmup", &out)
}

// Warmup runs a warm-up now and returns its report.
func (c *Client) Warmup(ctx context.Context) (*model.WarmupReport, error) {
	var out model.WarmupReport
	return &out, c.post(ctx, "/api/pricing/cache/warmup", nil, &out)
}

func (c *Client) Health(ctx context.Context) (*Health, error) {
	var out Health
	return &out, c.get(ctx, "/health", &out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path), nil)
	if err != nil {
		return err
	}
	return c.exec.DoJSON(ctx, req, c.baseURL.Host, out)
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.exec.DoJSON(ctx, req, c.baseURL.Host, out)
}

func (c *Client) endpoint(path string) string {
	return c.baseURL.String() + path
}

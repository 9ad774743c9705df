package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/yourorg/staking-analytics-api/internal/model"
	"github.com/yourorg/staking-analytics-api/internal/otel"
)

// KilnConfig configures a KilnClient
type KilnConfig struct {
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
	RetryMax int
}

// KilnClient implements a client for the Kiln staking API
type KilnClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewKilnClient creates a new Kiln API client
func NewKilnClient(cfg KilnConfig) *KilnClient {
	if cfg.APIKey == "" {
		logrus.Warn("KILN_API_KEY not set, Kiln requests will be unauthenticated")
	}
	return &KilnClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: newRetryClient(cfg.RetryMax, cfg.Timeout),
	}
}

// Pagination is the paging block Kiln attaches to list responses
type Pagination struct {
	CurrentPage int `json:"current_page"`
	PageSize    int `json:"page_size"`
	TotalPages  int `json:"total_pages,omitempty"`
	NextPage    int `json:"next_page,omitempty"`
}

// HasNext reports whether another page follows
func (p Pagination) HasNext() bool {
	return p.NextPage > p.CurrentPage || (p.TotalPages > 0 && p.CurrentPage < p.TotalPages)
}

// StakesQuery selects stakes by account or validator
type StakesQuery struct {
	AccountIDs []string
	Validators []string
	PageSize   int
	Page       int
}

// StakesPage is one page of stakes
type StakesPage struct {
	Stakes     []model.Stake
	Pagination Pagination
}

// ListAccounts returns every account visible to the API key
func (c *KilnClient) ListAccounts(ctx context.Context) ([]model.Account, error) {
	var resp struct {
		Data []model.Account `json:"data"`
	}
	if err := c.get(ctx, "kiln.ListAccounts", "/v1/accounts", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// ListStakes returns one page of ETH stakes
func (c *KilnClient) ListStakes(ctx context.Context, q StakesQuery) (StakesPage, error) {
	params := url.Values{}
	if len(q.AccountIDs) > 0 {
		params.Set("accounts", strings.Join(q.AccountIDs, ","))
	}
	if len(q.Validators) > 0 {
		params.Set("validators", strings.Join(q.Validators, ","))
	}
	if q.PageSize > 0 {
		params.Set("page_size", strconv.Itoa(q.PageSize))
	}
	if q.Page > 0 {
		params.Set("current_page", strconv.Itoa(q.Page))
	}

	var resp struct {
		Data       []model.Stake `json:"data"`
		Pagination Pagination    `json:"pagination"`
	}
	if err := c.get(ctx, "kiln.ListStakes", "/v1/eth/stakes", params, &resp); err != nil {
		return StakesPage{}, err
	}
	return StakesPage{Stakes: resp.Data, Pagination: resp.Pagination}, nil
}

// ListRewards returns daily ETH rewards for an account between start and end (inclusive)
func (c *KilnClient) ListRewards(ctx context.Context, accountID string, start, end time.Time) ([]model.RewardRecord, error) {
	params := url.Values{}
	params.Set("accounts", accountID)
	params.Set("start_date", start.Format("2006-01-02"))
	params.Set("end_date", end.Format("2006-01-02"))

	var resp struct {
		Data []model.RewardRecord `json:"data"`
	}
	if err := c.get(ctx, "kiln.ListRewards", "/v1/eth/rewards", params, &resp); err != nil {
		return nil, err
	}
	for i := range resp.Data {
		if resp.Data[i].AccountID == "" {
			resp.Data[i].AccountID = accountID
		}
	}
	return resp.Data, nil
}

// NetworkStats returns network statistics for "eth" or "sol"
func (c *KilnClient) NetworkStats(ctx context.Context, slug string) (model.NetworkStats, error) {
	var resp struct {
		Data model.NetworkStats `json:"data"`
	}
	if err := c.get(ctx, "kiln.NetworkStats", "/v1/"+url.PathEscape(slug)+"/network-stats", nil, &resp); err != nil {
		return model.NetworkStats{}, err
	}
	resp.Data.Network = slug
	return resp.Data, nil
}

// OrganizationPortfolio returns an organization's portfolio as upstream shapes it
func (c *KilnClient) OrganizationPortfolio(ctx context.Context, orgID string) (model.Portfolio, error) {
	var resp struct {
		Data model.Portfolio `json:"data"`
	}
	path := "/v1/organizations/" + url.PathEscape(orgID) + "/portfolio"
	if err := c.get(ctx, "kiln.OrganizationPortfolio", path, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		resp.Data = model.Portfolio{}
	}
	return resp.Data, nil
}

// get performs an authenticated GET and decodes the JSON body into out
func (c *KilnClient) get(ctx context.Context, op, path string, params url.Values, out any) error {
	ctx, span := otel.Tracer().Start(ctx, op, trace.WithAttributes(attribute.String("http.path", path)))
	defer span.End()

	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	logrus.Debugf("Fetching from Kiln: %s", endpoint)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		otel.RecordError(ctx, err)
		return fmt.Errorf("error fetching data from Kiln: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		otel.RecordError(ctx, err)
		return fmt.Errorf("error reading Kiln response: %w", err)
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := newStatusError("Kiln", resp.StatusCode, body)
		otel.RecordError(ctx, statusErr)
		return statusErr
	}

	if err := json.Unmarshal(body, out); err != nil {
		otel.RecordError(ctx, err)
		return fmt.Errorf("error decoding Kiln response: %w", err)
	}
	return nil
}

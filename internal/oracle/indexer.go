package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// IndexerConfig configures an IndexerQuery.
type IndexerConfig struct {
	// BaseURL is the full endpoint, e.g. https://indexer.example/v2/getNFTs.
	BaseURL string

	// HTTPClient is optional; a client with Timeout is built when nil.
	HTTPClient *http.Client

	// Timeout bounds each request, defaults to 10s.
	Timeout time.Duration
}

// IndexerQuery asks a third-party asset indexer which assets an owner holds.
type IndexerQuery struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	logger     *zap.Logger
}

type indexerResponse struct {
	OwnedNfts  *[]json.RawMessage `json:"ownedNfts"`
	TotalCount int                `json:"totalCount"`
}

// NewIndexerQuery builds an IndexerQuery.
func NewIndexerQuery(cfg IndexerConfig, logger *zap.Logger) (*IndexerQuery, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("indexer url is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("parse indexer url: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &IndexerQuery{
		baseURL:    cfg.BaseURL,
		httpClient: httpClient,
		timeout:    timeout,
		logger:     logger,
	}, nil
}

// CheckOwnership implements Oracle. A non-2xx status or an unreadable body is
// ErrUnavailable; an empty asset list is a definitive false.
func (q *IndexerQuery) CheckOwnership(ctx context.Context, req Request) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()

	endpoint, err := url.Parse(q.baseURL)
	if err != nil {
		return false, fmt.Errorf("parse indexer url: %w", err)
	}
	params := endpoint.Query()
	params.Set("owner", req.Owner.Hex())
	params.Set("contractAddress", req.Contract.Hex())
	endpoint.RawQuery = params.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return false, fmt.Errorf("create indexer request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.IndexerKey != "" {
		httpReq.Header.Set("X-API-Key", req.IndexerKey)
	}

	resp, err := q.httpClient.Do(httpReq)
	if err != nil {
		q.logger.Warn("indexer request failed", zap.String("owner", req.Owner.Hex()), zap.Error(err))
		return false, unavailable("indexer request: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return false, unavailable("read indexer body: %v", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		q.logger.Warn("indexer returned error status",
			zap.Int("status", resp.StatusCode),
			zap.String("owner", req.Owner.Hex()),
		)
		return false, unavailable("indexer status %d", resp.StatusCode)
	}

	var decoded indexerResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return false, unavailable("decode indexer body: %v", err)
	}
	if decoded.OwnedNfts == nil {
		return false, unavailable("indexer body missing ownedNfts")
	}

	return len(*decoded.OwnedNfts) > 0, nil
}

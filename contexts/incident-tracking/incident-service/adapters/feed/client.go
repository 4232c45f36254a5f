package feedadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"reefwatch/contexts/incident-tracking/incident-service/ports"
)

const defaultTimeout = 10 * time.Second

// Client fetches incident records from the open-data feed. Any failure,
// transport, status, or decode, yields an empty slice: the feed is an
// optional enrichment source and the import flow keeps going without it.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type feedResponse struct {
	Results []ports.FeedRecord `json:"results"`
}

func (c *Client) Fetch(ctx context.Context, limit int, where string) ([]ports.FeedRecord, error) {
	records, err := c.fetch(ctx, limit, where)
	if err != nil {
		c.logger.Warn("incident feed unavailable",
			"event", "feed_fetch_failed",
			"module", "incident-tracking/incident-service",
			"layer", "adapter",
			"error", err.Error(),
		)
		return []ports.FeedRecord{}, nil
	}
	return records, nil
}

func (c *Client) fetch(ctx context.Context, limit int, where string) ([]ports.FeedRecord, error) {
	endpoint, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse feed url: %w", err)
	}
	query := endpoint.Query()
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if where != "" {
		query.Set("where", where)
	}
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build feed request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed responded with status %d", resp.StatusCode)
	}

	var payload feedResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode feed payload: %w", err)
	}
	if payload.Results == nil {
		return []ports.FeedRecord{}, nil
	}
	return payload.Results, nil
}

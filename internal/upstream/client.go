package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"
)

// AllLocationsID is the upstream pseudo-region aggregating every location in
// the country. It carries no real listings and must never reach the
// hierarchy tables; summing it alongside real regions double-counts the
// entire dataset.
const AllLocationsID int64 = 102

// Counts are optional at every level of the payload; an absent count means
// zero listings, never an error. Child arrays may likewise be absent.

type SuburbNode struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Count *int64 `json:"count"`
}

type DistrictNode struct {
	ID      int64        `json:"id"`
	Name    string       `json:"name"`
	Count   *int64       `json:"count"`
	Suburbs []SuburbNode `json:"suburbs"`
}

type RegionNode struct {
	ID        int64          `json:"id"`
	Name      string         `json:"name"`
	Count     *int64         `json:"count"`
	Districts []DistrictNode `json:"districts"`
}

func (n SuburbNode) ListingCount() int64 {
	if n.Count == nil {
		return 0
	}
	return *n.Count
}

func (n DistrictNode) ListingCount() int64 {
	if n.Count == nil {
		return 0
	}
	return *n.Count
}

// Client fetches the listing-count hierarchy document for one category.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *logrus.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *logrus.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// FetchHierarchy returns the full region → district → suburb tree for a
// category. Any non-2xx response or decode failure is an error; the caller
// treats it as a hard failure for the whole collection cycle.
func (c *Client) FetchHierarchy(ctx context.Context, categoryCode string) ([]RegionNode, error) {
	requestURL := fmt.Sprintf("%s/locations?category=%s", c.baseURL, url.QueryEscape(categoryCode))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build hierarchy request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("hierarchy fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("hierarchy fetch returned status %d", resp.StatusCode)
	}

	var regions []RegionNode
	if err := json.NewDecoder(resp.Body).Decode(&regions); err != nil {
		return nil, fmt.Errorf("failed to decode hierarchy payload: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"category": categoryCode,
		"regions":  len(regions),
	}).Debug("Fetched upstream hierarchy")

	return regions, nil
}

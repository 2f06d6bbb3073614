// Package directory reads the asset, room and user listings of the remote
// inventory service. Every read tolerates failure: network, HTTP and decoding
// errors are logged and produce an empty result.
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const maxResponseBytes = 10 * 1024 * 1024

// Endpoints are the listing URLs of the directory service
type Endpoints struct {
	Places    string
	Equipment string // pre-filtered to computer-class equipment
	Users     string
}

// Client queries the directory service
type Client struct {
	httpClient *http.Client
	endpoints  Endpoints
	timeout    time.Duration
	logger     *zap.Logger
}

// NewClient creates a directory client. timeout bounds each request.
func NewClient(httpClient *http.Client, endpoints Endpoints, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		httpClient: httpClient,
		endpoints:  endpoints,
		timeout:    timeout,
		logger:     logger,
	}
}

// FetchAssets lists asset ids from the equipment configurations
func (c *Client) FetchAssets(ctx context.Context) []Item {
	results, err := c.getResults(ctx, c.endpoints.Equipment)
	if err != nil {
		c.logger.Warn("Failed to fetch assets", zap.Error(err))
		return []Item{}
	}

	items := make([]Item, 0, len(results))
	for _, r := range results {
		item, ok := r.(map[string]any)
		if !ok {
			continue
		}
		if id, ok := assetID(item); ok {
			items = append(items, Item{Label: id, ID: id})
		}
	}

	items = dedupe(items)
	sortByLabel(items)
	c.logger.Debug("Fetched assets", zap.Int("count", len(items)))
	return items
}

// FetchRooms lists rooms labelled "<number> - <description>"
func (c *Client) FetchRooms(ctx context.Context) []Item {
	results, err := c.getResults(ctx, c.endpoints.Places)
	if err != nil {
		c.logger.Warn("Failed to fetch rooms", zap.Error(err))
		return []Item{}
	}

	items := make([]Item, 0, len(results))
	for _, r := range results {
		room, ok := r.(map[string]any)
		if !ok {
			continue
		}
		data, _ := room["data"].(map[string]any)

		var parts []string
		for _, key := range []string{"number", "desc"} {
			if part := strings.TrimSpace(scalarString(data[key])); part != "" {
				parts = append(parts, part)
			}
		}
		label := strings.Join(parts, " - ")
		id := scalarString(room["id"])

		if label == "" || id == "" {
			continue
		}
		items = append(items, Item{Label: label, ID: id})
	}

	items = dedupe(items)
	sortByLabel(items)
	c.logger.Debug("Fetched rooms", zap.Int("count", len(items)))
	return items
}

// FetchUsers lists users by display name
func (c *Client) FetchUsers(ctx context.Context) []Item {
	results, err := c.getResults(ctx, c.endpoints.Users)
	if err != nil {
		c.logger.Warn("Failed to fetch users", zap.Error(err))
		return []Item{}
	}

	items := make([]Item, 0, len(results))
	for _, r := range results {
		user, ok := r.(map[string]any)
		if !ok {
			continue
		}
		label := strings.TrimSpace(scalarString(user["display_name"]))
		id := scalarString(user["ID"])
		if label == "" || id == "" {
			continue
		}
		items = append(items, Item{Label: label, ID: id})
	}

	items = dedupe(items)
	sortByLabel(items)
	c.logger.Debug("Fetched users", zap.Int("count", len(items)))
	return items
}

// FetchAssignment looks up the responsible person and room last recorded for
// an asset. The equipment listing is scanned in full; it is small.
func (c *Client) FetchAssignment(ctx context.Context, asset string) Assignment {
	if asset == "" {
		return Assignment{}
	}

	results, err := c.getResults(ctx, c.endpoints.Equipment)
	if err != nil {
		c.logger.Warn("Failed to fetch asset assignment", zap.String("asset", asset), zap.Error(err))
		return Assignment{}
	}

	for _, r := range results {
		item, ok := r.(map[string]any)
		if !ok {
			continue
		}
		if id, _ := assetID(item); id != asset {
			continue
		}

		var a Assignment
		if rel, ok := item["relationships"].(map[string]any); ok {
			if applicant, ok := rel["applicant"].(map[string]any); ok {
				a.ResponsibleLabel = strings.TrimSpace(scalarString(applicant["display_name"]))
			}
			if place, ok := rel["place"].(map[string]any); ok {
				a.RoomID = scalarString(place["id"])
				if a.RoomID == "0" || a.RoomID == "false" {
					a.RoomID = ""
				}
			}
		}

		c.logger.Debug("Found asset assignment",
			zap.String("asset", asset),
			zap.String("responsible", a.ResponsibleLabel),
			zap.String("room_id", a.RoomID))
		return a
	}

	c.logger.Debug("No assignment recorded for asset",
		zap.String("asset", asset),
		zap.Int("scanned", len(results)))
	return Assignment{}
}

// getResults performs a GET and returns the "results" array of the body
func (c *Client) getResults(ctx context.Context, url string) ([]any, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("Fetching directory listing", zap.String("url", url))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("request timeout: %w", err)
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("request returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	dec := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes))
	dec.UseNumber()

	var body map[string]any
	if err := dec.Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	results, _ := body["results"].([]any)
	return results, nil
}

// assetID extracts the asset identifier of an equipment configuration, which
// may be stored as "asset" or "patrimonio", inside "data" or at the top level
func assetID(item map[string]any) (string, bool) {
	fields := item
	if data, ok := item["data"].(map[string]any); ok {
		fields = data
	}

	v, found := fields["asset"]
	if !found {
		v, found = fields["patrimonio"]
	}
	if !found || v == nil {
		return "", false
	}

	id := strings.TrimSpace(scalarString(v))
	return id, id != ""
}

// scalarString renders a decoded JSON scalar as text. Numbers keep their
// textual form as sent; objects, arrays and null yield "".
func scalarString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case json.Number:
		return s.String()
	case bool:
		if s {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}

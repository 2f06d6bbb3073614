// Package submission sends the inventory record and the user's selection to
// the inventory API.
package submission

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stone-age-io/hwinventory/internal/inventory"
	"github.com/stone-age-io/hwinventory/internal/store"
	"go.uber.org/zap"
)

// ObjectName is the object type the API files submissions under
const ObjectName = "equipament"

const maxDetailBytes = 500

// Payload is the request body of a submission. Data carries the merged
// fields encoded as a JSON string.
type Payload struct {
	ObjectName string `json:"object_name"`
	Data       string `json:"data"`
}

// Result is the outcome of one submission attempt
type Result struct {
	OK         bool
	StatusCode int    // zero when no response was received
	Detail     string // response excerpt or transport error
}

// MarkerWriter records the date of a successful submission
type MarkerWriter interface {
	WriteMarker(t time.Time) error
}

// Client posts submissions
type Client struct {
	httpClient *http.Client
	url        string
	timeout    time.Duration
	marker     MarkerWriter
	logger     *zap.Logger
	now        func() time.Time
}

// NewClient creates a submission client. timeout bounds the POST.
func NewClient(httpClient *http.Client, url string, timeout time.Duration, marker MarkerWriter, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		httpClient: httpClient,
		url:        url,
		timeout:    timeout,
		marker:     marker,
		logger:     logger,
		now:        time.Now,
	}
}

// BuildPayload merges the selection with the record. Record fields win on
// key collisions.
func BuildPayload(sel store.Selection, rec inventory.Record) (Payload, error) {
	merged := sel.Fields()
	maps.Copy(merged, rec.Fields())

	data, err := json.Marshal(merged)
	if err != nil {
		return Payload{}, fmt.Errorf("failed to encode submission data: %w", err)
	}
	return Payload{ObjectName: ObjectName, Data: string(data)}, nil
}

// Submit sends one submission. It never returns an error: every failure is
// described in the Result. The marker is updated only on 200 or 201.
func (c *Client) Submit(ctx context.Context, sel store.Selection, rec inventory.Record) Result {
	id := uuid.NewString()
	logger := c.logger.With(zap.String("submission_id", id), zap.String("asset", sel.Asset))

	payload, err := BuildPayload(sel, rec)
	if err != nil {
		logger.Error("Failed to build submission", zap.Error(err))
		return Result{Detail: err.Error()}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		logger.Error("Failed to encode submission", zap.Error(err))
		return Result{Detail: err.Error()}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		logger.Error("Failed to create submission request", zap.Error(err))
		return Result{Detail: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	logger.Info("Sending submission", zap.String("url", c.url))
	logger.Debug("Submission payload", zap.ByteString("body", body))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Error("Submission request failed", zap.Error(err))
		return Result{Detail: err.Error()}
	}
	defer resp.Body.Close()

	excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxDetailBytes))
	detail := strings.TrimSpace(strings.ToValidUTF8(string(excerpt), ""))

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		logger.Error("Submission rejected",
			zap.Int("status_code", resp.StatusCode),
			zap.String("response", detail))
		return Result{StatusCode: resp.StatusCode, Detail: detail}
	}

	if c.marker != nil {
		if err := c.marker.WriteMarker(c.now()); err != nil {
			logger.Warn("Submission sent but marker could not be written", zap.Error(err))
		}
	}

	logger.Info("Submission accepted", zap.Int("status_code", resp.StatusCode))
	return Result{OK: true, StatusCode: resp.StatusCode, Detail: detail}
}

// String describes the result for logs and messages
func (r Result) String() string {
	switch {
	case r.OK:
		return fmt.Sprintf("accepted (%d)", r.StatusCode)
	case r.StatusCode != 0:
		return fmt.Sprintf("status %d: %s", r.StatusCode, r.Detail)
	default:
		return r.Detail
	}
}

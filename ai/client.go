// Package ai calls the issue analysis service that predicts category,
// priority and duplicates for a freshly reported issue.
package ai

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"
)

type Location struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
	Address     string    `json:"address"`
}

type AnalyzeRequest struct {
	IssueID     string   `json:"issueId,omitempty"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Location    Location `json:"location"`
}

type Analysis struct {
	PredictedCategory       string   `json:"predictedCategory"`
	Confidence              float64  `json:"confidence"`
	Tags                    []string `json:"tags"`
	IsDuplicate             bool     `json:"isDuplicate"`
	DuplicateOf             *string  `json:"duplicateOf"`
	Similarity              float64  `json:"similarity"`
	Priority                string   `json:"priority"`
	PriorityScore           float64  `json:"priorityScore"`
	EstimatedResolutionTime int      `json:"estimatedResolutionTime"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	retries    uint64
}

// NewClient returns nil when baseURL is empty, which disables enrichment.
func NewClient(baseURL string, timeout time.Duration) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		retries:    1,
	}
}

func (c *Client) Analyze(ctx context.Context, req AnalyzeRequest) (*Analysis, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal analyze request: %w", err)
	}

	var out Analysis
	op := func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/ai/analyze-issue", bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode >= 500 {
			return fmt.Errorf("analysis service status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("analysis service status %d: %s", resp.StatusCode, string(respBody)))
		}
		if err := json.Unmarshal(respBody, &out); err != nil {
			return backoff.Permanent(fmt.Errorf("decode analysis: %w", err))
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	if err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, c.retries), ctx)); err != nil {
		return nil, err
	}
	return &out, nil
}

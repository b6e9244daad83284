// Package remote wraps the hosted research backend: the writing-program
// discovery and content-analysis functions the pipeline fans out over.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mostafaosama999/Marketing-agent-sub004/internal/model"
)

// ErrCircuitOpen is returned when the backend breaker is open and the call
// was never attempted
var ErrCircuitOpen = errors.New("research backend circuit breaker is open")

// costPath locates the usage figure inside the free-form analysis document
const costPath = "$.costInfo.totalCost"

// Client calls the research backend over HTTP
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	breaker    *CircuitBreaker
}

// NewClient creates a research backend client with connection pooling
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		baseURL: baseURL,
		apiKey:  apiKey,
		breaker: NewCircuitBreaker(5, 60*time.Second),
	}
}

// BreakerState exposes the breaker state for health reporting
func (c *Client) BreakerState() string {
	return c.breaker.State()
}

type discoverRequest struct {
	Website string `json:"website"`
}

// DiscoverPrograms asks the backend for writing-program URL candidates for a
// company website
func (c *Client) DiscoverPrograms(ctx context.Context, website string) (model.DiscoveryResult, error) {
	var result model.DiscoveryResult

	body, err := c.post(ctx, "/api/v1/programs/discover", discoverRequest{Website: website})
	if err != nil {
		return result, err
	}

	if err := json.Unmarshal(body, &result); err != nil {
		return result, fmt.Errorf("failed to decode discovery response: %w", err)
	}

	slog.Debug("Program discovery completed",
		"website", website,
		"candidates", len(result.Candidates),
		"ai_suggestions", len(result.Suggestions),
	)

	return result, nil
}

type analyzeRequest struct {
	CompanyID string `json:"company_id"`
	URL       string `json:"url"`
}

// AnalyzeProgram asks the backend to analyze a selected program URL. The
// response shape is owned by the backend; only the cost figure is extracted
// here.
func (c *Client) AnalyzeProgram(ctx context.Context, companyID, url string) (*model.Analysis, error) {
	body, err := c.post(ctx, "/api/v1/programs/analyze", analyzeRequest{CompanyID: companyID, URL: url})
	if err != nil {
		return nil, err
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode analysis response: %w", err)
	}

	analysis := &model.Analysis{Payload: payload}
	if cost, ok := LookupNumber(payload, costPath); ok {
		analysis.Cost = cost
	}

	slog.Debug("Program analysis completed",
		"company_id", companyID,
		"url", url,
		"cost", analysis.Cost,
	)

	return analysis, nil
}

// post performs one backend call through the circuit breaker
func (c *Client) post(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	if !c.breaker.Allow() {
		return nil, ErrCircuitOpen
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.breaker.RecordFailure()
		return nil, fmt.Errorf("backend request failed: %w", err)
	}
	defer resp.Body.Close()

	// Limit to 4MB; analysis documents can be large but not unbounded
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
	if err != nil {
		c.breaker.RecordFailure()
		return nil, fmt.Errorf("failed to read backend response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.breaker.RecordFailure()
		return nil, fmt.Errorf("backend returned status %d for %s", resp.StatusCode, path)
	}

	c.breaker.RecordSuccess()
	return body, nil
}

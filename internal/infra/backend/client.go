// File: internal/infra/backend/client.go
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"market-chat-gateway/internal/domain"
	"market-chat-gateway/internal/domain/model"
	"market-chat-gateway/internal/domain/ports/adapter"
)

var _ adapter.AnalysisBackend = (*Client)(nil)

// Client implements adapter.AnalysisBackend against the analysis
// service's REST boundary. Requests are never retried here; the
// conversational path surfaces failures to the user and realtime
// polling retries on its own fixed cadence.
type Client struct {
	baseURL     string
	intradayURL string
	client      *http.Client
}

func NewClient(baseURL, intradayBaseURL string, timeout time.Duration) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("backend base url empty")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid backend base url: %w", err)
	}
	if intradayBaseURL == "" {
		intradayBaseURL = baseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		intradayURL: strings.TrimRight(intradayBaseURL, "/"),
		client:      &http.Client{Timeout: timeout},
	}, nil
}

// chartEnvelope is the reply shape shared by the conversational and
// the direct projection endpoints: the projection endpoint wraps its
// payload in the same chart_data envelope.
type chartEnvelope struct {
	Answer    string              `json:"answer"`
	ChartData *model.ChartPayload `json:"chart_data"`
}

// Query sends a free-text question to the conversational agent,
// carrying the session id so the backend can keep per-session memory.
func (c *Client) Query(ctx context.Context, question, sessionID string) (*adapter.QueryResult, error) {
	payload := map[string]string{
		"question":   question,
		"session_id": sessionID,
	}
	b, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/query", bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var out chartEnvelope
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	if out.Answer == "" && out.ChartData == nil {
		return nil, domain.ErrMalformedResponse
	}
	return &adapter.QueryResult{Answer: out.Answer, Chart: out.ChartData}, nil
}

// VolatilityCone fetches a projection directly, bypassing the agent.
func (c *Client) VolatilityCone(ctx context.Context, ticker string) (*model.ChartPayload, error) {
	u := c.baseURL + "/api/v1/volatility-cone/" + url.PathEscape(strings.ToUpper(ticker))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	var out chartEnvelope
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	if out.ChartData == nil {
		return nil, domain.ErrMalformedResponse
	}
	return out.ChartData, nil
}

// Intraday fetches the current minute-scale series for a ticker.
func (c *Client) Intraday(ctx context.Context, ticker string) (*model.IntradaySeries, error) {
	u := c.intradayURL + "/api/v1/intraday/" + url.PathEscape(strings.ToUpper(ticker))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	var out model.IntradaySeries
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apiError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// apiError prefers the structured detail field error bodies carry;
// when absent it falls back to the transport-level status description.
func apiError(resp *http.Response) error {
	var body struct {
		Detail string `json:"detail"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Detail != "" {
		return errors.New(body.Detail)
	}
	return errors.New(resp.Status)
}

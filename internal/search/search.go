// Package search performs web lookups against the Serper API.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Result is one organic search hit.
type Result struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// Searcher runs a web query.
type Searcher interface {
	Search(ctx context.Context, query string) ([]Result, error)
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("search api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Client is a Serper search client.
type Client struct {
	Endpoint   string
	APIKey     string
	MaxResults int
	HTTPClient *http.Client
}

// New creates a client with the given request timeout.
func New(endpoint, apiKey string, maxResults int, timeout time.Duration) *Client {
	return &Client{
		Endpoint:   endpoint,
		APIKey:     apiKey,
		MaxResults: maxResults,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

type request struct {
	Q   string `json:"q"`
	Num int    `json:"num,omitempty"`
}

type response struct {
	Organic []Result `json:"organic"`
}

func (c *Client) Search(ctx context.Context, query string) ([]Result, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(request{Q: query, Num: c.MaxResults}); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	if c.MaxResults > 0 && len(out.Organic) > c.MaxResults {
		out.Organic = out.Organic[:c.MaxResults]
	}
	return out.Organic, nil
}

// Format renders results as a numbered reference list.
func Format(results []Result) string {
	if len(results) == 0 {
		return "No web results."
	}

	var sb strings.Builder
	for i, r := range results {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "%d. %s (%s)", i+1, r.Title, r.Link)
		if r.Snippet != "" {
			fmt.Fprintf(&sb, "\n   %s", r.Snippet)
		}
	}
	return sb.String()
}

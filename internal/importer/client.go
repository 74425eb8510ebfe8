package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultURL    = "http://localhost:3100"
	DefaultDomain = "weread.qq.com"
)

// Client reads annotations captured by the local web-highlighter service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Highlight is one captured annotation. Title has the form
// "book - chapter - author - site".
type Highlight struct {
	Title     string          `json:"title"`
	Text      string          `json:"text"`
	Note      string          `json:"note,omitempty"`
	Timestamp json.RawMessage `json:"timestamp,omitempty"`
	Type      string          `json:"type,omitempty"`
}

// Highlights lists every annotation stored for domain.
func (c *Client) Highlights(ctx context.Context, domain string) ([]Highlight, error) {
	if domain == "" {
		domain = DefaultDomain
	}
	u := c.baseURL + "/api/highlights?" + url.Values{"domain": {domain}}.Encode()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("highlighter: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("highlighter status %d: %s", resp.StatusCode, string(respBody))
	}

	var out []Highlight
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode highlights: %w", err)
	}
	return out, nil
}

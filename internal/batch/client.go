package batch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

const (
	// DefaultAPIURL is the deployed recommendation endpoint
	DefaultAPIURL = "https://rec-engine.onrender.com/recommend"
	// DefaultTimeout bounds each request
	DefaultTimeout = 60 * time.Second
	// DefaultConcurrency is the number of requests in flight
	DefaultConcurrency = 5

	maxResponseBody = 4 << 20
)

var textURLPattern = regexp.MustCompile(`https?://[^\s"'<>]+`)

// StatusError is returned for any non-200 response
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.StatusCode)
}

// Client posts queries to a recommendation endpoint
type Client struct {
	apiURL     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a client for apiURL. A zero timeout selects DefaultTimeout.
func NewClient(apiURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		apiURL: apiURL,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: http.DefaultTransport.(*http.Transport).Clone(),
		},
		logger: logger,
	}
}

// Fetch returns the assessment URLs recommended for query. A non-200
// response yields *StatusError.
func (c *Client) Fetch(ctx context.Context, query string) ([]string, error) {
	body, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBody))
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	urls := ParseResponse(data)
	c.logger.Debug("fetched recommendations", zap.Int("urls", len(urls)))
	return urls, nil
}

// Close releases idle connections
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

// ParseResponse extracts assessment URLs from a response body.
//   - An object with recommended_assessments yields each record's url.
//   - A JSON string is scanned for URLs.
//   - A body that is not JSON is scanned as plain text.
//
// Any other JSON value yields nothing. Slashes are trimmed from both ends
// of record URLs.
func ParseResponse(body []byte) []string {
	var payload interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ExtractURLs(string(body))
	}

	switch v := payload.(type) {
	case map[string]interface{}:
		records, ok := v["recommended_assessments"].([]interface{})
		if !ok {
			return []string{}
		}
		urls := make([]string, 0, len(records))
		for _, rec := range records {
			fields, ok := rec.(map[string]interface{})
			if !ok {
				continue
			}
			if u, ok := fields["url"].(string); ok {
				urls = append(urls, strings.Trim(u, "/"))
			}
		}
		return urls
	case string:
		return ExtractURLs(v)
	default:
		return []string{}
	}
}

// ExtractURLs returns every http(s) URL in text, in order
func ExtractURLs(text string) []string {
	return lo.Map(textURLPattern.FindAllString(text, -1), func(u string, _ int) string {
		return strings.TrimRight(u, "/")
	})
}

package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

const (
	DefaultTimeout  = 30 * time.Second
	DefaultMaxBody  = 2 << 20
	DefaultMaxChars = 8000

	userAgent = "Mozilla/5.0 (compatible; assessment-recommender/1.0)"
)

var (
	// ErrUnsupportedScheme is returned for URLs that are not http or https
	ErrUnsupportedScheme = errors.New("unsupported URL scheme")
	// ErrCircuitOpen is returned while the breaker rejects requests
	ErrCircuitOpen = errors.New("scraper circuit open")
)

// StatusError reports a non-200 response
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d fetching %s", e.StatusCode, e.URL)
}

// Config configures an HTTPScraper
type Config struct {
	Timeout  time.Duration
	MaxBody  int64 // Bytes read from a response body
	MaxChars int   // Runes kept from the extracted text
	// FailureThreshold is the number of consecutive failures that opens the breaker
	FailureThreshold uint32
	// OpenTimeout is how long the breaker stays open before probing again
	OpenTimeout time.Duration
}

// HTTPScraper fetches pages and reduces them to readable text.
// All requests share one circuit breaker so a dead target stops costing a
// full timeout per URL.
type HTTPScraper struct {
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker[string]
	maxBody  int64
	maxChars int
	logger   *zap.Logger
}

// New creates a scraper
func New(cfg Config, logger *zap.Logger) *HTTPScraper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxBody <= 0 {
		cfg.MaxBody = DefaultMaxBody
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = DefaultMaxChars
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "scraper",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &HTTPScraper{
		client:   &http.Client{Timeout: cfg.Timeout},
		breaker:  breaker,
		maxBody:  cfg.MaxBody,
		maxChars: cfg.MaxChars,
		logger:   logger,
	}
}

// Scrape fetches rawURL and returns its visible text
func (s *HTTPScraper) Scrape(ctx context.Context, rawURL string) (string, error) {
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedScheme, rawURL)
	}

	text, err := s.breaker.Execute(func() (string, error) {
		return s.fetch(ctx, rawURL)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", fmt.Errorf("%w: %w", ErrCircuitOpen, err)
	}
	if err != nil {
		return "", err
	}
	return text, nil
}

// State returns the breaker state name
func (s *HTTPScraper) State() string {
	return s.breaker.State().String()
}

func (s *HTTPScraper) fetch(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.8")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBody))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	var text string
	if strings.Contains(contentType, "text/plain") || strings.Contains(contentType, "text/markdown") {
		text = collapseBlankLines(string(body))
	} else {
		text, err = ExtractText(string(body))
		if err != nil {
			return "", fmt.Errorf("parse html: %w", err)
		}
	}

	return truncateRunes(text, s.maxChars), nil
}

// ExtractText returns the visible text of an HTML document with one line
// per block element
func ExtractText(document string) (string, error) {
	doc, err := html.Parse(strings.NewReader(document))
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	walk(doc, &sb, 0)
	return collapseBlankLines(sb.String()), nil
}

func walk(n *html.Node, sb *strings.Builder, depth int) {
	if depth > 100 {
		return
	}

	switch n.Type {
	case html.TextNode:
		if text := strings.Join(strings.Fields(n.Data), " "); text != "" {
			sb.WriteString(text)
			sb.WriteString(" ")
		}
		return
	case html.CommentNode:
		return
	case html.ElementNode:
		switch n.Data {
		case "script", "style", "noscript", "iframe", "svg", "nav", "footer", "header", "head":
			return
		}
	}

	block := n.Type == html.ElementNode && isBlock(n.Data)
	if block {
		sb.WriteString("\n")
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, sb, depth+1)
	}
	if block {
		sb.WriteString("\n")
	}
}

func isBlock(tag string) bool {
	switch tag {
	case "p", "div", "section", "article", "main", "br", "li", "ul", "ol", "table", "tr",
		"h1", "h2", "h3", "h4", "h5", "h6", "pre", "blockquote", "dd", "dt":
		return true
	}
	return false
}

// collapseBlankLines trims every line and drops empty ones
func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

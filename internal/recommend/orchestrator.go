package recommend

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/dshills/assessment-recommender/internal/render"
	"github.com/dshills/assessment-recommender/pkg/types"
)

// DefaultTopK is the number of catalog passages placed in the prompt
const DefaultTopK = 10

var (
	// ErrKnowledgeBaseNotLoaded means the index is missing or empty
	ErrKnowledgeBaseNotLoaded = errors.New("knowledge base not loaded")
	// ErrEmptyQuery is returned for blank queries
	ErrEmptyQuery = errors.New("query cannot be empty")
)

var queryURLPattern = regexp.MustCompile(`https?://\S+`)

// AnalysisError reports a failed retrieval or generation call
type AnalysisError struct {
	Stage string // "retrieve" or "generate"
	Err   error
}

func (e *AnalysisError) Error() string {
	return "analysis error: " + e.Err.Error()
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}

// Retriever returns the k catalog passages most relevant to a query
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]types.SearchResult, error)
}

// Generator completes a prompt with a language model
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Scraper fetches the readable text of a web page
type Scraper interface {
	Scrape(ctx context.Context, url string) (string, error)
}

// Options tune an Orchestrator
type Options struct {
	SystemPrompt string
	TopK         int
	Logger       *zap.Logger
}

// Orchestrator runs the query pipeline: scrape linked pages, retrieve
// catalog passages, prompt the model and parse its answer
type Orchestrator struct {
	retriever    Retriever
	generator    Generator
	scraper      Scraper
	systemPrompt string
	topK         int
	logger       *zap.Logger
}

// NewOrchestrator wires the pipeline. A nil retriever means no index is
// available; a nil scraper disables page fetching.
func NewOrchestrator(retriever Retriever, generator Generator, scraper Scraper, opts Options) *Orchestrator {
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Orchestrator{
		retriever:    retriever,
		generator:    generator,
		scraper:      scraper,
		systemPrompt: opts.SystemPrompt,
		topK:         opts.TopK,
		logger:       opts.Logger,
	}
}

// Result is the full outcome of one query
type Result struct {
	Raw             string
	Recommendations types.RecommendationSet
	Sections        []render.Section
	ScrapedURLs     []string
	ScrapeFailures  int
	Retrieved       int
}

// Answer returns the model's raw response to query
func (o *Orchestrator) Answer(ctx context.Context, query string) (string, error) {
	res, err := o.run(ctx, query)
	if err != nil {
		return "", err
	}
	return res.Raw, nil
}

// Recommend answers query and parses the response
func (o *Orchestrator) Recommend(ctx context.Context, query string) (*Result, error) {
	res, err := o.run(ctx, query)
	if err != nil {
		return nil, err
	}
	res.Recommendations = Parse(res.Raw)
	res.Sections = render.SplitSections(res.Raw)
	return res, nil
}

func (o *Orchestrator) run(ctx context.Context, query string) (*Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if o.retriever == nil {
		return nil, ErrKnowledgeBaseNotLoaded
	}

	res := &Result{}
	combined := o.expandQuery(ctx, query, res)

	passages, err := o.retriever.Retrieve(ctx, combined, o.topK)
	if errors.Is(err, types.ErrIndexNotLoaded) {
		return nil, ErrKnowledgeBaseNotLoaded
	}
	if err != nil {
		return nil, &AnalysisError{Stage: "retrieve", Err: err}
	}
	res.Retrieved = len(passages)

	if o.generator == nil {
		return nil, &AnalysisError{Stage: "generate", Err: errors.New("no generator configured")}
	}
	raw, err := o.generator.Generate(ctx, BuildPrompt(o.systemPrompt, passages, combined))
	if err != nil {
		return nil, &AnalysisError{Stage: "generate", Err: err}
	}
	res.Raw = raw

	o.logger.Debug("query answered",
		zap.Int("retrieved", res.Retrieved),
		zap.Int("scraped", len(res.ScrapedURLs)),
		zap.Int("response_bytes", len(raw)))
	return res, nil
}

// expandQuery appends the text of every URL in query, in order. A page that
// cannot be fetched contributes empty text.
func (o *Orchestrator) expandQuery(ctx context.Context, query string, res *Result) string {
	urls := ExtractURLs(query)
	if len(urls) == 0 {
		return query
	}

	var sb strings.Builder
	sb.WriteString(query)
	for _, url := range urls {
		text := ""
		if o.scraper != nil {
			scraped, err := o.scraper.Scrape(ctx, url)
			if err != nil {
				res.ScrapeFailures++
				o.logger.Warn("scrape failed", zap.String("url", url), zap.Error(err))
			} else {
				text = scraped
			}
		}
		res.ScrapedURLs = append(res.ScrapedURLs, url)
		fmt.Fprintf(&sb, "\n\nScraped content from %s:\n%s", url, text)
	}
	return sb.String()
}

// ExtractURLs returns every http(s) URL in text, in order of appearance
func ExtractURLs(text string) []string {
	return queryURLPattern.FindAllString(text, -1)
}

// BuildPrompt lays out the system prompt, retrieved passages and query
func BuildPrompt(systemPrompt string, passages []types.SearchResult, query string) string {
	texts := make([]string, len(passages))
	for i := range passages {
		texts[i] = passages[i].Passage()
	}
	return fmt.Sprintf("%s\n\nContext:\n%s\n\nQuery:\n%s\n\nResponse:",
		systemPrompt, strings.Join(texts, "\n\n"), query)
}

// UserMessage is the text shown to a user when a query fails
func UserMessage(err error) string {
	var analysisErr *AnalysisError
	switch {
	case errors.Is(err, ErrKnowledgeBaseNotLoaded):
		return "Error: Knowledge base not loaded"
	case errors.Is(err, ErrEmptyQuery):
		return "Please enter your assessment requirements"
	case errors.As(err, &analysisErr):
		return "Analysis error: " + analysisErr.Err.Error()
	default:
		return err.Error()
	}
}

package batch

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Header is the first row of every output file
var Header = []string{"Query", "Assessment_url"}

// queryPreview is how much of a query failure messages show
const queryPreview = 60

// Summary reports the outcome of a run
type Summary struct {
	Queries   int
	Succeeded int
	Failed    int
	Rows      int
}

// Runner fans queries out to a Client and appends the results to a CSV
type Runner struct {
	client      *Client
	concurrency int
	messages    io.Writer
	logger      *zap.Logger
}

// RunnerOptions configure a Runner
type RunnerOptions struct {
	Concurrency int
	Messages    io.Writer // Receives per-query failure lines (default: stderr)
	Logger      *zap.Logger
}

// NewRunner creates a runner around client
func NewRunner(client *Client, opts RunnerOptions) *Runner {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Messages == nil {
		opts.Messages = os.Stderr
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Runner{
		client:      client,
		concurrency: opts.Concurrency,
		messages:    opts.Messages,
		logger:      opts.Logger,
	}
}

// Run writes the header, then one row per recommended URL as each query
// completes. A failed query produces no rows and never stops the batch;
// only an output write error or cancellation does.
func (r *Runner) Run(ctx context.Context, queries []string, out io.Writer) (*Summary, error) {
	w := csv.NewWriter(out)
	if err := w.Write(Header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	summary := &Summary{Queries: len(queries)}
	var mu sync.Mutex

	g := new(errgroup.Group)
	g.SetLimit(r.concurrency)

	for _, query := range queries {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			urls, err := r.client.Fetch(ctx, query)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				summary.Failed++
				r.reportFailure(query, err)
				return nil
			}

			summary.Succeeded++
			for _, u := range urls {
				if err := w.Write([]string{query, u}); err != nil {
					return fmt.Errorf("write row: %w", err)
				}
			}
			w.Flush()
			if err := w.Error(); err != nil {
				return fmt.Errorf("write row: %w", err)
			}
			summary.Rows += len(urls)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return summary, err
	}
	if err := ctx.Err(); err != nil {
		return summary, err
	}

	r.logger.Info("batch complete",
		zap.Int("queries", summary.Queries),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Int("rows", summary.Rows))
	return summary, nil
}

func (r *Runner) reportFailure(query string, err error) {
	preview := truncate(query, queryPreview)

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		_, _ = fmt.Fprintf(r.messages, "[ERROR] %d for query: %s\n", statusErr.StatusCode, preview)
	} else {
		_, _ = fmt.Fprintf(r.messages, "[EXCEPTION] Failed for query: %s -> %v\n", preview, err)
	}
	r.logger.Debug("query failed", zap.String("query", preview), zap.Error(err))
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// ReadQueries reads queries from a CSV with a Query column (matched
// case-insensitively) or, failing that, one query per line. Blank and
// repeated queries are dropped, keeping first-seen order.
func ReadQueries(r io.Reader) ([]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	text := strings.TrimPrefix(string(data), "\ufeff")

	queries, ok := readCSVColumn(text)
	if !ok {
		queries = strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	}

	queries = lo.Map(queries, func(q string, _ int) string { return strings.TrimSpace(q) })
	queries = lo.Filter(queries, func(q string, _ int) bool { return q != "" })
	return lo.Uniq(queries), nil
}

// ReadQueriesFile reads queries from path
func ReadQueriesFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return ReadQueries(f)
}

// readCSVColumn returns the Query column when the header declares one
func readCSVColumn(text string) ([]string, bool) {
	cr := csv.NewReader(strings.NewReader(text))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		return nil, false
	}
	col := -1
	for i, cell := range header {
		if strings.EqualFold(strings.TrimSpace(cell), "query") {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, false
	}

	var queries []string
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, false
		}
		if col < len(record) {
			queries = append(queries, record[col])
		}
	}
	return queries, true
}

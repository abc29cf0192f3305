package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/assessment-recommender/internal/recommend"
	"github.com/dshills/assessment-recommender/pkg/types"
)

const modelOutput = `<analysis>Java role, remote hiring.</analysis>
<result>{"recommended_assessments":[{"url":"https://www.shl.com/products/java-8-new/","name":"Java 8 (New)","adaptive_support":"No","description":"Java class design","duration":18,"remote_support":"Yes","test_type":["Knowledge & Skills"]}]}</result>`

type fakeRetriever struct {
	err error
}

func (f *fakeRetriever) Retrieve(ctx context.Context, query string, k int) ([]types.SearchResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []types.SearchResult{{
		ChunkID:        1,
		Rank:           1,
		RelevanceScore: 0.9,
		Headings:       []string{"Individual Test Solutions", "Java 8 (New)"},
		Content:        "Multi-choice test that measures the knowledge of Java class design.",
	}}, nil
}

type fakeGenerator struct {
	out string
	err error
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return f.out, f.err
}

func newTestServer(t *testing.T, retriever recommend.Retriever, generator recommend.Generator, opts Options) http.Handler {
	t.Helper()
	orch := recommend.NewOrchestrator(retriever, generator, nil, recommend.Options{SystemPrompt: "system"})
	return New(orch, opts).Handler()
}

func postJSON(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/recommend", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) APIError {
	t.Helper()
	var env errorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env.Error
}

func TestRecommend_Success(t *testing.T) {
	h := newTestServer(t, &fakeRetriever{}, &fakeGenerator{out: modelOutput}, Options{})

	rec := postJSON(t, h, `{"query":"Java developers who collaborate"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body struct {
		RecommendedAssessments []map[string]interface{} `json:"recommended_assessments"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.RecommendedAssessments, 1)
	assert.Equal(t, "Java 8 (New)", body.RecommendedAssessments[0]["name"])
	assert.Equal(t, "https://www.shl.com/products/java-8-new/", body.RecommendedAssessments[0]["url"])
}

func TestRecommend_MalformedModelOutputIsEmptySet(t *testing.T) {
	h := newTestServer(t, &fakeRetriever{}, &fakeGenerator{out: "I could not decide."}, Options{})

	rec := postJSON(t, h, `{"query":"sales roles"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"recommended_assessments":[]}`, rec.Body.String())
}

func TestRecommend_Errors(t *testing.T) {
	tests := []struct {
		name      string
		retriever recommend.Retriever
		generator recommend.Generator
		body      string
		status    int
		code      string
		message   string
	}{
		{
			name:      "invalid json",
			retriever: &fakeRetriever{},
			generator: &fakeGenerator{out: modelOutput},
			body:      `{"query":`,
			status:    http.StatusBadRequest,
			code:      "invalid_request",
		},
		{
			name:      "empty query",
			retriever: &fakeRetriever{},
			generator: &fakeGenerator{out: modelOutput},
			body:      `{"query":"   "}`,
			status:    http.StatusBadRequest,
			code:      "empty_query",
		},
		{
			name:      "index not loaded",
			retriever: &fakeRetriever{err: types.ErrIndexNotLoaded},
			generator: &fakeGenerator{out: modelOutput},
			body:      `{"query":"java"}`,
			status:    http.StatusServiceUnavailable,
			code:      "knowledge_base_not_loaded",
			message:   "Error: Knowledge base not loaded",
		},
		{
			name:      "no retriever",
			retriever: nil,
			generator: &fakeGenerator{out: modelOutput},
			body:      `{"query":"java"}`,
			status:    http.StatusServiceUnavailable,
			code:      "knowledge_base_not_loaded",
		},
		{
			name:      "generation failed",
			retriever: &fakeRetriever{},
			generator: &fakeGenerator{err: errors.New("quota exceeded")},
			body:      `{"query":"java"}`,
			status:    http.StatusBadGateway,
			code:      "analysis_error",
			message:   "Analysis error: quota exceeded",
		},
		{
			name:      "retrieval failed",
			retriever: &fakeRetriever{err: errors.New("disk I/O error")},
			generator: &fakeGenerator{out: modelOutput},
			body:      `{"query":"java"}`,
			status:    http.StatusBadGateway,
			code:      "analysis_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(t, tt.retriever, tt.generator, Options{})

			rec := postJSON(t, h, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			apiErr := decodeError(t, rec)
			assert.Equal(t, tt.code, apiErr.Code)
			if tt.message != "" {
				assert.Equal(t, tt.message, apiErr.Message)
			}
		})
	}
}

func TestPage_Get(t *testing.T) {
	h := newTestServer(t, &fakeRetriever{}, &fakeGenerator{out: modelOutput}, Options{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	body := rec.Body.String()
	assert.Contains(t, body, "SHL Assessment Recommendation System")
	assert.Contains(t, body, "Generate Recommendations")
	assert.NotContains(t, body, "View raw LLM response")
}

func submitForm(t *testing.T, h http.Handler, query string) string {
	t.Helper()
	form := url.Values{"query": {query}}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestPage_SubmitShowsResultTabFirst(t *testing.T) {
	h := newTestServer(t, &fakeRetriever{}, &fakeGenerator{out: modelOutput}, Options{})

	body := submitForm(t, h, "Java developers")

	resultLabel := strings.Index(body, `<label for="tab-0">Result</label>`)
	analysisLabel := strings.Index(body, `<label for="tab-1">Analysis</label>`)
	require.NotEqual(t, -1, resultLabel)
	require.NotEqual(t, -1, analysisLabel)
	assert.Less(t, resultLabel, analysisLabel)
	assert.Contains(t, body, "View raw LLM response")
	assert.Contains(t, body, "Java developers")
}

func TestPage_EmptyQueryWarns(t *testing.T) {
	h := newTestServer(t, &fakeRetriever{}, &fakeGenerator{out: modelOutput}, Options{})

	body := submitForm(t, h, "  ")
	assert.Contains(t, body, "Please enter your assessment requirements")
}

func TestPage_ErrorBanner(t *testing.T) {
	h := newTestServer(t, &fakeRetriever{err: types.ErrIndexNotLoaded}, &fakeGenerator{out: modelOutput}, Options{})

	body := submitForm(t, h, "java")
	assert.Contains(t, body, "Error: Knowledge base not loaded")
}

func TestHealth(t *testing.T) {
	h := newTestServer(t, &fakeRetriever{}, &fakeGenerator{}, Options{
		Backend:     "sqlite",
		IndexLoaded: func(context.Context) bool { return true },
	})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","index_loaded":true,"backend":"sqlite"}`, rec.Body.String())
}

func TestRequestID(t *testing.T) {
	h := newTestServer(t, &fakeRetriever{}, &fakeGenerator{}, Options{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Len(t, rec.Header().Get(RequestIDHeader), 36)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestServer(t, &fakeRetriever{}, &fakeGenerator{out: modelOutput}, Options{})

	postJSON(t, h, `{"query":"java"}`)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "recommender_http_requests_total")
	assert.Contains(t, string(body), `route="/recommend"`)
	assert.Contains(t, string(body), "recommender_recommendations_returned")
}

func TestRateLimit(t *testing.T) {
	h := newTestServer(t, &fakeRetriever{}, &fakeGenerator{out: modelOutput}, Options{RateLimit: 1})

	first := postJSON(t, h, `{"query":"java"}`)
	assert.Equal(t, http.StatusOK, first.Code)

	second := postJSON(t, h, `{"query":"java"}`)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "rate_limited", decodeError(t, second).Code)
}

func TestErrorStatus(t *testing.T) {
	status, code := errorStatus(context.DeadlineExceeded)
	assert.Equal(t, http.StatusGatewayTimeout, status)
	assert.Equal(t, "timeout", code)

	status, code = errorStatus(&recommend.AnalysisError{Stage: "generate", Err: context.DeadlineExceeded})
	assert.Equal(t, http.StatusGatewayTimeout, status)
	assert.Equal(t, "timeout", code)

	status, code = errorStatus(&recommend.AnalysisError{Stage: "retrieve", Err: errors.New("embed failed")})
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, "analysis_error", code)

	status, _ = errorStatus(errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, status)
}

package llm

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSystemPrompt(t *testing.T) {
	dir := t.TempDir()

	custom := filepath.Join(dir, "sys.md")
	require.NoError(t, os.WriteFile(custom, []byte("Be brief."), 0644))
	blank := filepath.Join(dir, "blank.md")
	require.NoError(t, os.WriteFile(blank, []byte(" \n\t"), 0644))

	tests := []struct {
		name string
		path string
		want string
	}{
		{"Custom", custom, "Be brief."},
		{"Blank", blank, DefaultSystemPrompt()},
		{"Missing", filepath.Join(dir, "nope.md"), DefaultSystemPrompt()},
		{"EmptyPath", "", DefaultSystemPrompt()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LoadSystemPrompt(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := LoadSystemPrompt(dir)
	assert.Error(t, err, "a directory is not a prompt file")
}

func TestDefaultSystemPrompt_AsksForResultBlock(t *testing.T) {
	p := DefaultSystemPrompt()
	assert.Contains(t, p, "<result>")
	assert.Contains(t, p, "</result>")
	assert.Contains(t, p, "recommended_assessments")
}

func TestNewGeminiGenerator_RequiresKey(t *testing.T) {
	_, err := NewGeminiGenerator(context.Background(), Config{})
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func geminiServer(t *testing.T, status int, body string, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		payload, _ := io.ReadAll(r.Body)
		assert.True(t, strings.HasSuffix(r.URL.Path, ":generateContent"), r.URL.Path)
		assert.Contains(t, string(payload), "Query:")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGeminiGenerator_Generate(t *testing.T) {
	var calls atomic.Int32
	srv := geminiServer(t, http.StatusOK,
		`{"candidates":[{"content":{"role":"model","parts":[{"text":"<result>{\"recommended_assessments\":[]}</result>"}]}}]}`,
		&calls)

	gen, err := NewGeminiGenerator(context.Background(), Config{APIKey: "k", BaseURL: srv.URL, Temperature: 0.2})
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, gen.Model())

	text, err := gen.Generate(context.Background(), "Context:\nx\n\nQuery:\njava")
	require.NoError(t, err)
	assert.Equal(t, `<result>{"recommended_assessments":[]}</result>`, text)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGeminiGenerator_ServerError(t *testing.T) {
	var calls atomic.Int32
	srv := geminiServer(t, http.StatusInternalServerError,
		`{"error":{"code":500,"message":"boom","status":"INTERNAL"}}`, &calls)

	gen, err := NewGeminiGenerator(context.Background(), Config{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = gen.Generate(context.Background(), "Query: java")
	assert.Error(t, err)
	assert.GreaterOrEqual(t, calls.Load(), int32(1))
}

func TestGeminiGenerator_EmptyPrompt(t *testing.T) {
	gen, err := NewGeminiGenerator(context.Background(), Config{APIKey: "k", BaseURL: "http://127.0.0.1:1"})
	require.NoError(t, err)

	_, err = gen.Generate(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrEmptyPrompt)
}

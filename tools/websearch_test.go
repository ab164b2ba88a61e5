package tools

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const resultsPage = `<html><body>
<div class="result results_links web-result">
  <h2 class="result__title">
    <a rel="nofollow" class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.com%2Fsky&amp;rut=x">Why is the <b>sky</b> blue?</a>
  </h2>
  <a class="result__snippet" href="#">Rayleigh   scattering explains it.</a>
</div>
<div class="result results_links web-result">
  <h2 class="result__title">
    <a rel="nofollow" class="result__a" href="https://example.org/water">Water facts</a>
  </h2>
</div>
<div class="result">
  <a class="result__a" href="/relative">Dropped</a>
</div>
</body></html>`

func newSearchServer(t *testing.T, handler http.HandlerFunc) *WebSearchTool {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	tool, err := NewWebSearchTool(
		WithSearchURL(srv.URL+"/html/"),
		WithSearchClient(srv.Client()),
		WithSearchRateLimit(0, 0),
	)
	require.NoError(t, err)
	return tool
}

func TestWebSearchTool_ParsesResults(t *testing.T) {
	var gotQuery string
	tool := newSearchServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		fmt.Fprint(w, resultsPage)
	})

	result, err := tool.Invoke(context.Background(), "why is the sky blue", Context{})
	require.NoError(t, err)
	assert.Equal(t, "why is the sky blue", gotQuery)
	assert.Equal(t, WebSearchID, result.ToolID)
	assert.Contains(t, result.Content, "[web:1] Why is the sky blue?\nhttps://example.com/sky\nRayleigh scattering explains it.")
	assert.Contains(t, result.Content, "[web:2] Water facts\nhttps://example.org/water")
	assert.NotContains(t, result.Content, "Dropped")
}

func TestWebSearchTool_LimitsResults(t *testing.T) {
	tool := newSearchServer(t, func(w http.ResponseWriter, r *http.Request) {
		var sb strings.Builder
		sb.WriteString("<html><body>")
		for i := range 12 {
			fmt.Fprintf(&sb, `<a class="result__a" href="https://example.com/%d">Result %d</a>`, i, i)
		}
		sb.WriteString("</body></html>")
		fmt.Fprint(w, sb.String())
	})

	result, err := tool.Invoke(context.Background(), "many", Context{})
	require.NoError(t, err)
	assert.Contains(t, result.Content, fmt.Sprintf("[web:%d]", MaxSearchResults))
	assert.NotContains(t, result.Content, fmt.Sprintf("[web:%d]", MaxSearchResults+1))
}

func TestWebSearchTool_FailureReportedInBand(t *testing.T) {
	tool := newSearchServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "blocked", http.StatusForbidden)
	})

	result, err := tool.Invoke(context.Background(), "sky", Context{})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.Content, "Web search unavailable"), result.Content)
}

func TestWebSearchTool_NoResults(t *testing.T) {
	tool := newSearchServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>nothing here</body></html>")
	})

	result, err := tool.Invoke(context.Background(), "obscure", Context{})
	require.NoError(t, err)
	assert.Contains(t, result.Content, "no results")
}

func TestWebSearchTool_CancelledContext(t *testing.T) {
	tool := newSearchServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, resultsPage)
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := tool.Invoke(ctx, "sky", Context{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResolveResultURL(t *testing.T) {
	assert.Equal(t, "https://a.example/x", resolveResultURL("//duckduckgo.com/l/?uddg=https%3A%2F%2Fa.example%2Fx"))
	assert.Equal(t, "http://b.example", resolveResultURL("http://b.example"))
	assert.Empty(t, resolveResultURL("/local"))
}

func TestDeepThinkTool(t *testing.T) {
	tool := DeepThinkTool{}
	result, err := tool.Invoke(context.Background(), " compare the two reports ", Context{})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.Content, "Goal:\n- compare the two reports\n"))

	result, err = tool.Invoke(context.Background(), "  ", Context{})
	require.NoError(t, err)
	assert.Contains(t, result.Content, "Task is empty")
}

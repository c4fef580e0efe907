package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		var req ollamaGenerateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3.1", req.Model)
		assert.False(t, req.Stream)
		fmt.Fprint(w, `{"response":"  a summary \n","done":true}`)
	}))
	defer srv.Close()

	text, err := NewOllamaClient(srv.URL, "llama3.1").Complete(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "a summary", text)
}

func TestOllamaStreamReadsNDJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaGenerateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)
		fmt.Fprintln(w, `{"response":"The ","done":false}`)
		fmt.Fprintln(w, `{"response":"answer","done":false}`)
		fmt.Fprintln(w, `{"response":"","done":true}`)
	}))
	defer srv.Close()

	deltas, err := collect(NewOllamaClient(srv.URL, "llama3.1").Stream(context.Background(), "q"))
	require.NoError(t, err)
	assert.Equal(t, []string{"The ", "answer"}, deltas)
}

func TestOllamaStreamSurfacesInlineError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"response":"par","done":false}`)
		fmt.Fprintln(w, `{"error":"model unloaded"}`)
	}))
	defer srv.Close()

	deltas, err := collect(NewOllamaClient(srv.URL, "llama3.1").Stream(context.Background(), "q"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model unloaded")
	assert.Equal(t, []string{"par"}, deltas)
}

func TestOllamaRateLimitIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewOllamaClient(srv.URL, "llama3.1").Complete(context.Background(), "hi")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.True(t, IsRetryable(err))
}

func TestOllamaEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embeddings", r.URL.Path)
		var req ollamaEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req.Model)
		assert.Equal(t, "hello", req.Prompt)
		fmt.Fprint(w, `{"embedding":[0.5,0.25,1]}`)
	}))
	defer srv.Close()

	emb := NewOllamaEmbedder(srv.URL, "", 3)
	vec, err := emb.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.25, 1}, vec)
	assert.Equal(t, 3, emb.Dimensions())
}

func TestNewClientValidatesProvider(t *testing.T) {
	_, err := NewClient(Config{Provider: ProviderGemini})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key")

	c, err := NewClient(Config{Provider: ProviderOllama})
	require.NoError(t, err)
	assert.IsType(t, &OllamaClient{}, c)

	_, err = NewClient(Config{Provider: "mystery", Model: "x"})
	require.Error(t, err)

	e, err := NewEmbedder(Config{Provider: ProviderOllama})
	require.NoError(t, err)
	assert.Equal(t, 768, e.Dimensions())
}

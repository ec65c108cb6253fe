package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func planServer(t *testing.T, status int, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		require.NotNil(t, req.ResponseFormat)
		assert.Equal(t, "json_schema", req.ResponseFormat.Type)

		w.WriteHeader(status)
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestPlanPatches(t *testing.T) {
	plan := `{"files":[{"path":"app.py","ops":[{"type":"append","text":"# hi"}]}]}`
	srv := planServer(t, http.StatusOK, plan)
	defer srv.Close()

	c := NewClient("test-key")
	c.BaseURL = srv.URL

	got, err := c.PlanPatches(context.Background(), "gpt-4o-mini", "add a comment", "CONTEXT")
	require.NoError(t, err)
	require.Len(t, got.Files, 1)
	assert.Equal(t, "app.py", got.Files[0].Path)
}

func TestPlanPatchesStripsFence(t *testing.T) {
	fenced := "```json\n{\"files\":[]}\n```"
	srv := planServer(t, http.StatusOK, fenced)
	defer srv.Close()

	c := NewClient("test-key")
	c.BaseURL = srv.URL

	got, err := c.PlanPatches(context.Background(), "gpt-4o-mini", "noop", "CONTEXT")
	require.NoError(t, err)
	assert.Empty(t, got.Files)
}

func TestPlanPatchesMissingKey(t *testing.T) {
	c := NewClient("")
	_, err := c.PlanPatches(context.Background(), "gpt-4o-mini", "goal", "ctx")
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestPlanPatchesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"rate limited"}}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient("test-key")
	c.BaseURL = srv.URL

	_, err := c.PlanPatches(context.Background(), "gpt-4o-mini", "goal", "ctx")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{"data": []modelEntry{{ID: "gpt-4o-mini"}}})
	}))
	defer srv.Close()

	c := NewClient("test-key")
	c.BaseURL = srv.URL
	assert.NoError(t, c.Ping(context.Background()))
}

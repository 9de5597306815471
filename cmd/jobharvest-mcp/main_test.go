package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/jobharvest/models"
)

func callTool(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{Params: mcp.CallToolParams{Name: "harvest_jobs", Arguments: args}}
}

func textOf(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestHandleHarvestJobs(t *testing.T) {
	var got harvestRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/harvest", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(models.HarvestResponse{
			Success: true,
			Report: &models.RunReport{
				Keyword: "golang",
				Cards:   1,
				Records: []models.Record{{
					Title:    "Go Engineer",
					Company:  "Acme",
					Location: "Jakarta Selatan, DKI Jakarta",
					Tags:     []string{"Full-time", "Remote"},
					Link:     "https://glints.com/id/opportunities/jobs/go-engineer/1",
				}},
			},
		})
	}))
	defer srv.Close()

	res, err := handleHarvestJobs(srv.URL, "secret")(context.Background(), callTool(map[string]any{
		"keyword":     "golang",
		"country":     "sg",
		"max_scrolls": float64(5),
		"ai":          true,
	}))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	assert.Equal(t, harvestRequest{Keyword: "golang", Country: "SG", MaxScrolls: 5, AI: true}, got)

	text := textOf(t, res)
	assert.Contains(t, text, `Keyword "golang": 1 jobs`)
	assert.Contains(t, text, "Company: Acme")
	assert.Contains(t, text, "Tags: Full-time, Remote")
	assert.Contains(t, text, "Link: https://glints.com/id/opportunities/jobs/go-engineer/1")
}

func TestHandleHarvestJobs_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(models.HarvestResponse{
			Error: &models.ErrorDetail{Code: models.ErrCodeContainerNotFound, Message: "no card list"},
		})
	}))
	defer srv.Close()

	res, err := handleHarvestJobs(srv.URL, "secret")(context.Background(), callTool(map[string]any{"keyword": "zzz"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Equal(t, "[CONTAINER_NOT_FOUND] no card list", textOf(t, res))
}

func TestHandleHarvestJobs_MissingKeyword(t *testing.T) {
	res, err := handleHarvestJobs("http://127.0.0.1:0", "secret")(context.Background(), callTool(map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestFormatReport_Exhausted(t *testing.T) {
	text := formatReport(&models.RunReport{Keyword: "admin", Exhausted: true})
	assert.Contains(t, text, "scroll budget ran out")
	assert.Equal(t, "No report returned.", formatReport(nil))
}

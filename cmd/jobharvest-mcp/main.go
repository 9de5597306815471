package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/use-agent/jobharvest/models"
)

// harvestRequest mirrors the jobharvest API request model.
type harvestRequest struct {
	Keyword        string `json:"keyword"`
	Country        string `json:"country,omitempty"`
	MaxScrolls     int    `json:"max_scrolls,omitempty"`
	ContainerXPath string `json:"container_xpath,omitempty"`
	AI             bool   `json:"ai,omitempty"`
	MaxAge         int    `json:"max_age,omitempty"`
}

func main() {
	apiURL := os.Getenv("JOBHARVEST_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("JOBHARVEST_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "JOBHARVEST_API_KEY is required")
		os.Exit(1)
	}

	s := server.NewMCPServer(
		"jobharvest",
		"0.2.0",
		server.WithToolCapabilities(false),
	)

	harvestJobsTool := mcp.NewTool("harvest_jobs",
		mcp.WithDescription("Search Glints for a keyword, scroll the job list until it stops growing and return every listing (title, company, locations, salary, tags, link). Runs take tens of seconds."),
		mcp.WithString("keyword",
			mcp.Required(),
			mcp.Description("Search keyword, e.g. 'social media' or 'golang'"),
		),
		mcp.WithString("country",
			mcp.Description("Two-letter country code (default: ID)"),
		),
		mcp.WithNumber("max_scrolls",
			mcp.Description("Scroll-round budget for the job list (default: 30, max: 200)"),
		),
		mcp.WithString("container_xpath",
			mcp.Description("XPath of the job list container when the default one no longer matches"),
		),
		mcp.WithBoolean("ai",
			mcp.Description("Cluster each listing into a job family with work mode, seniority and languages"),
		),
		mcp.WithNumber("max_age",
			mcp.Description("Accept a cached result younger than this many milliseconds (default: 0, no cache)"),
		),
	)
	s.AddTool(harvestJobsTool, handleHarvestJobs(apiURL, apiKey))

	statusTool := mcp.NewTool("harvester_status",
		mcp.WithDescription("Report whether the harvester is idle or busy and how many runs it has served."),
	)
	s.AddTool(statusTool, handleStatus(apiURL))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// apiPost sends a POST request to the jobharvest API and returns the response body.
func apiPost(ctx context.Context, client *http.Client, apiURL, apiKey, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

func handleHarvestJobs(apiURL, apiKey string) server.ToolHandlerFunc {
	// A run waits behind any harvest already in progress.
	client := &http.Client{Timeout: 15 * time.Minute}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		keyword, err := request.RequireString("keyword")
		if err != nil || strings.TrimSpace(keyword) == "" {
			return mcp.NewToolResultError("keyword is required"), nil
		}

		payload := harvestRequest{
			Keyword:        keyword,
			Country:        strings.ToUpper(request.GetString("country", "")),
			MaxScrolls:     request.GetInt("max_scrolls", 0),
			ContainerXPath: request.GetString("container_xpath", ""),
			AI:             request.GetBool("ai", false),
			MaxAge:         request.GetInt("max_age", 0),
		}

		respBody, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/harvest", payload)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("harvest request failed: %v", err)), nil
		}

		var resp models.HarvestResponse
		if err := json.Unmarshal(respBody, &resp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}

		if !resp.Success {
			errMsg := "harvest failed"
			if resp.Error != nil {
				errMsg = fmt.Sprintf("[%s] %s", resp.Error.Code, resp.Error.Message)
			}
			return mcp.NewToolResultError(errMsg), nil
		}

		return mcp.NewToolResultText(formatReport(resp.Report)), nil
	}
}

func handleStatus(apiURL string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 10 * time.Second}

	return func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL+"/api/v1/health", nil)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to create request: %v", err)), nil
		}
		resp, err := client.Do(req)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("API request failed: %v", err)), nil
		}
		defer resp.Body.Close()

		var health models.HealthResponse
		if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}

		text := fmt.Sprintf("Status: %s\nRuns: %d\nUptime: %s\nVersion: %s",
			health.Status, health.Session.Runs, health.Uptime, health.Version)
		if health.Session.LastKeyword != "" {
			text += "\nLast keyword: " + health.Session.LastKeyword
		}
		return mcp.NewToolResultText(text), nil
	}
}

// formatReport renders one listing per block, followed by the run counters.
func formatReport(rep *models.RunReport) string {
	if rep == nil {
		return "No report returned."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Keyword %q: %d jobs (%d cards, %d skipped)\n\n", rep.Keyword, len(rep.Records), rep.Cards, rep.Skipped)

	for i, r := range rep.Records {
		fmt.Fprintf(&sb, "--- [%d] %s ---\n", i+1, r.Title)
		if r.Company != "" {
			fmt.Fprintf(&sb, "Company: %s\n", r.Company)
		}
		if r.Location != "" {
			fmt.Fprintf(&sb, "Location: %s\n", r.Location)
		}
		if r.Salary != "" {
			fmt.Fprintf(&sb, "Salary: %s\n", r.Salary)
		}
		if len(r.Tags) > 0 {
			fmt.Fprintf(&sb, "Tags: %s\n", strings.Join(r.Tags, ", "))
		}
		if r.Enrichment != nil {
			fmt.Fprintf(&sb, "Cluster: %s (%s, %s)\n", r.Cluster, r.WorkMode, r.Seniority)
		}
		fmt.Fprintf(&sb, "Link: %s\n\n", r.Link)
	}

	if rep.Exhausted {
		sb.WriteString("Note: scroll budget ran out before the list stopped growing; more jobs may exist.\n")
	}
	return sb.String()
}

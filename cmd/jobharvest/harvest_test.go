package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/jobharvest/models"
	"github.com/use-agent/jobharvest/runner"
)

func TestResolveKeywords(t *testing.T) {
	tests := []struct {
		name     string
		keyword  string
		keywords string
		want     []string
	}{
		{"keyword wins", "admin, social media", "ignored", []string{"admin", "social media"}},
		{"keywords list", "", "golang\ndata,golang", []string{"golang", "data"}},
		{"none", "", " , ", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resolveKeywords(tt.keyword, tt.keywords))
		})
	}
}

func TestWriteOutcome(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "out", "jobs")
	out := &runner.Outcome{Report: &models.RunReport{
		Keyword: "Social Media",
		Records: []models.Record{
			{Title: "Social Media Specialist", Link: "https://glints.com/id/opportunities/jobs/a"},
			{Title: "Content Creator", Link: "https://glints.com/id/opportunities/jobs/b"},
		},
	}}

	var buf bytes.Buffer
	n, err := writeOutcome(&buf, prefix, out)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.FileExists(t, prefix+"_social-media.csv")
	data, err := os.ReadFile(prefix + "_social-media.jsonl")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "\n"))

	assert.Contains(t, buf.String(), "[DONE]")
	assert.Contains(t, buf.String(), "Total jobs: 2")
	assert.Contains(t, buf.String(), "  - Unknown: 2")
}

func TestWriteOutcome_SkipsEmpty(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "jobs")
	out := &runner.Outcome{Report: &models.RunReport{
		Keyword: "rust",
		Records: []models.Record{},
		Error:   &models.ErrorDetail{Code: models.ErrCodeContainerNotFound, Message: "no card list"},
	}}

	var buf bytes.Buffer
	n, err := writeOutcome(&buf, prefix, out)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoFileExists(t, prefix+"_rust.csv")
	assert.Equal(t, "[SKIP] rust (CONTAINER_NOT_FOUND: no card list)\n", buf.String())
}

func TestPrintTotals(t *testing.T) {
	var buf bytes.Buffer
	printTotals(&buf, []keywordTotal{{"admin", 3}})
	assert.Empty(t, buf.String(), "a single keyword prints no total")

	printTotals(&buf, []keywordTotal{{"admin", 3}, {"data", 4}})
	assert.Contains(t, buf.String(), `  - "data": 4 items`)
	assert.Contains(t, buf.String(), "TOTAL: 7 items")
}

func TestHarvestCommand_ReplaysSavedPage(t *testing.T) {
	dir := t.TempDir()
	page := filepath.Join(dir, "page.html")
	var b strings.Builder
	b.WriteString(`<html><body><div id="feed">`)
	for i, title := range []string{"Go Engineer", "Data Analyst", "Go Engineer"} {
		fmt.Fprintf(&b, `<div data-gtm-job-id="j%d"><h3><a href="/id/opportunities/jobs/%d">%s</a></h3></div>`, i, i%2, title)
	}
	b.WriteString(`</div></body></html>`)
	require.NoError(t, os.WriteFile(page, []byte(b.String()), 0o644))

	t.Setenv("JOBHARVEST_CONFIG", "")
	t.Setenv("JOBHARVEST_LOG_LEVEL", "error")
	t.Setenv("JOBHARVEST_LOCATOR_TIMEOUT", "5ms")
	t.Setenv("JOBHARVEST_CARD_WAIT_TIMEOUT", "20ms")
	t.Setenv("JOBHARVEST_ROUND_TIMEOUT", "5ms")
	t.Setenv("JOBHARVEST_POLL_INTERVAL", "1ms")

	prefix := filepath.Join(dir, "jobs")
	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetArgs([]string{
		"harvest",
		"-k", "golang, data",
		"--html", page,
		"--container-xpath", "/html/body/div[1]",
		"-o", prefix,
	})
	require.NoError(t, rootCmd.Execute())

	assert.FileExists(t, prefix+"_golang.csv")
	assert.FileExists(t, prefix+"_data.jsonl")
	assert.Contains(t, stdout.String(), "Total jobs: 2")
	assert.Contains(t, stdout.String(), "TOTAL: 4 items")
}

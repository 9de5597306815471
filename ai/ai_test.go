package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/jobharvest/config"
	"github.com/use-agent/jobharvest/models"
)

type scripted struct {
	replies []string
	errs    []error
	calls   int
	prompts []string
}

func (s *scripted) Classify(_ context.Context, _, prompt string) (string, error) {
	i := s.calls
	s.calls++
	s.prompts = append(s.prompts, prompt)
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	if err != nil {
		return "", err
	}
	if i < len(s.replies) {
		return s.replies[i], nil
	}
	return "", errors.New("no reply")
}

func (s *scripted) Close() error { return nil }

func fastConfig() config.AIConfig {
	return config.AIConfig{Retries: 3}
}

func TestParseEnrichment(t *testing.T) {
	tests := []struct {
		name string
		text string
		want *models.Enrichment
	}{
		{
			name: "fenced with defaults",
			text: "```json\n{\"cluster\":\"Data\",\"work_mode\":\"WFH\"}\n```",
			want: &models.Enrichment{Cluster: "Data", Category: Unknown, Seniority: Unknown,
				WorkMode: models.WorkModeRemote, Languages: []string{}, Confidence: 0.5},
		},
		{
			name: "scalar language and clamped confidence",
			text: `{"cluster":"Sales","category":"Business","seniority":"Junior","work_mode":"office",` +
				`"languages":"Indonesian","confidence":1.7}`,
			want: &models.Enrichment{Cluster: "Sales", Category: "Business", Seniority: "Junior",
				WorkMode: models.WorkModeOnsite, Languages: []string{"Indonesian"}, Confidence: 1},
		},
		{
			name: "string confidence and unknown mode",
			text: `{"cluster":"Content","work_mode":"flexible","languages":["English", ""],"confidence":"-0.2"}`,
			want: &models.Enrichment{Cluster: "Content", Category: Unknown, Seniority: Unknown,
				WorkMode: models.WorkModeUnknown, Languages: []string{"English"}, Confidence: 0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseEnrichment(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseEnrichment("sorry, I cannot help")
	assert.Error(t, err)
}

func TestEnrich_RetriesThenSucceeds(t *testing.T) {
	c := &scripted{
		errs:    []error{errors.New("503"), nil},
		replies: []string{"", `{"cluster":"Engineering","confidence":0.9}`},
	}
	e := NewEnricher(c, fastConfig())

	out, err := e.Enrich(context.Background(), []models.Record{{Title: "Backend Engineer", Tags: []string{"Go"}}})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "Engineering", out[0].Cluster)
	assert.Equal(t, 0.9, out[0].Confidence)
	assert.Equal(t, 2, c.calls)
	assert.Contains(t, c.prompts[0], "TITLE: Backend Engineer\nCOMPANY: -")
	assert.Contains(t, c.prompts[0], "TAGS: Go")
}

func TestEnrich_FallsBackToUnknown(t *testing.T) {
	c := &scripted{replies: []string{"no", "still no", "nope"}}
	e := NewEnricher(c, fastConfig())

	in := []models.Record{{Title: "A"}}
	out, err := e.Enrich(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 3, c.calls)
	assert.Equal(t, UnknownEnrichment(), out[0].Enrichment)
	assert.Nil(t, in[0].Enrichment, "input records are not mutated")
}

func TestEnrich_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := &scripted{errs: []error{context.Canceled}}
	_, err := NewEnricher(c, fastConfig()).Enrich(ctx, []models.Record{{Title: "A"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpenAIClient(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"cluster\":\"Data\"}"}}]}`))
	}))
	defer srv.Close()

	c, err := NewOpenAIClient(srv.Client(), "sk-test", "gpt-4o-mini", srv.URL+"/v1/")
	require.NoError(t, err)
	text, err := c.Classify(context.Background(), "sys", "user")
	require.NoError(t, err)
	assert.Equal(t, `{"cluster":"Data"}`, text)
	assert.Equal(t, "gpt-4o-mini", got.Model)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
}

func TestOpenAIClient_Errors(t *testing.T) {
	tests := []struct {
		status int
		code   string
	}{
		{http.StatusUnauthorized, models.ErrCodeLLMAuthFailure},
		{http.StatusTooManyRequests, models.ErrCodeLLMRateLimited},
		{http.StatusInternalServerError, models.ErrCodeLLMFailure},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			_, _ = w.Write([]byte(`{"error":{"message":"nope"}}`))
		}))
		c, err := NewOpenAIClient(srv.Client(), "k", "m", srv.URL)
		require.NoError(t, err)
		_, err = c.Classify(context.Background(), "s", "p")
		assert.True(t, models.IsCode(err, tt.code), "status %d: %v", tt.status, err)
		srv.Close()
	}

	_, err := NewOpenAIClient(nil, "", "m", "")
	assert.True(t, models.IsCode(err, models.ErrCodeLLMAuthFailure))
}

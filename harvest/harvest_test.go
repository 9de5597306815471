package harvest

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/jobharvest/config"
	"github.com/use-agent/jobharvest/dom"
	"github.com/use-agent/jobharvest/extract"
	"github.com/use-agent/jobharvest/models"
	"github.com/use-agent/jobharvest/snapshot"
)

const feedXPath = "/html/body/div[3]"

func testConfig() config.HarvestConfig {
	cfg := config.Default().Harvest
	cfg.ContainerXPath = ""
	cfg.LocatorTimeout = 10 * time.Millisecond
	cfg.CardWaitTimeout = 30 * time.Millisecond
	cfg.RoundTimeout = 15 * time.Millisecond
	cfg.PollInterval = 2 * time.Millisecond
	cfg.RetryBackoff = time.Millisecond
	return cfg
}

func card(i int) string {
	return fmt.Sprintf(`<div class="card" data-gtm-job-id="id-%d">`+
		`<h3><a href="/id/opportunities/jobs/role-%d">Role %d</a></h3>`+
		`<div data-cy="company_name_job_card"><a href="/id/companies/c%d">PT %d</a></div>`+
		`<div data-testid="location"><span>Jakarta</span><span>Bandung</span><span>Jakarta</span></div>`+
		`<span data-testid="salary">Rp 5 - 7 jt</span></div>`, i, i, i, i, i)
}

func page(feed ...string) string {
	return `<html><body>` +
		`<div id="nav"><a href="/">Home</a><a href="/id/companies">Companies</a></div>` +
		`<div id="recommended">` + card(900) + card(901) + `</div>` +
		`<div id="feed" style="overflow-y: auto; height: 800px">` + strings.Join(feed, "") + `</div>` +
		`</body></html>`
}

func cards(from, to int) []string {
	var out []string
	for i := from; i < to; i++ {
		out = append(out, card(i))
	}
	return out
}

// growBy appends steps[round-1] cards to the feed on each scroll.
func growBy(steps ...int) snapshot.ScrollHook {
	return func(doc *goquery.Document, round int) {
		if round > len(steps) {
			return
		}
		feed := doc.Find("#feed")
		for i := 0; i < steps[round-1]; i++ {
			feed.AppendHtml(card(feed.Find("[data-gtm-job-id]").Length()))
		}
	}
}

func newSession(t *testing.T, html string, opts ...snapshot.Option) *snapshot.Session {
	t.Helper()
	s, err := snapshot.FromString(html, opts...)
	require.NoError(t, err)
	return s
}

func id(t *testing.T, n dom.Node) string {
	t.Helper()
	v, _, err := n.Attr(context.Background(), "id")
	require.NoError(t, err)
	return v
}

func TestScrollableAncestor(t *testing.T) {
	ctx := context.Background()
	s := newSession(t, page(cards(0, 3)...))
	root, err := s.Root(ctx)
	require.NoError(t, err)

	feedCards, err := dom.First(ctx, root, "#feed [data-gtm-job-id] a")
	require.NoError(t, err)
	got, err := ScrollableAncestor(ctx, s, feedCards, 8)
	require.NoError(t, err)
	assert.Equal(t, "feed", id(t, got))

	nav, err := dom.First(ctx, root, "#nav a")
	require.NoError(t, err)
	got, err = ScrollableAncestor(ctx, s, nav, 8)
	require.NoError(t, err)
	html, err := got.HTML(ctx)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(html, "<html"), "falls back to the scrolling element")

	got, err = ScrollableAncestor(ctx, s, nil, 8)
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestResolveContainer(t *testing.T) {
	ctx := context.Background()

	t.Run("heuristic picks the largest similar group", func(t *testing.T) {
		s := newSession(t, page(cards(0, 5)...))
		c, err := ResolveContainer(ctx, s, testConfig())
		require.NoError(t, err)
		assert.Equal(t, "feed", id(t, c.Node))
		assert.False(t, c.Located)
		assert.False(t, c.Fallback)
	})

	t.Run("tie goes to the first group in document order", func(t *testing.T) {
		s := newSession(t, page(cards(0, 2)...))
		c, err := ResolveContainer(ctx, s, testConfig())
		require.NoError(t, err)
		assert.Equal(t, "recommended", id(t, c.Node))
	})

	t.Run("explicit locator", func(t *testing.T) {
		cfg := testConfig()
		cfg.ContainerXPath = feedXPath
		s := newSession(t, page(cards(0, 1)...))
		c, err := ResolveContainer(ctx, s, cfg)
		require.NoError(t, err)
		assert.Equal(t, "feed", id(t, c.Node))
		assert.True(t, c.Located)
	})

	t.Run("broken locator falls back to the scan", func(t *testing.T) {
		cfg := testConfig()
		cfg.ContainerXPath = "/html/body/div[7]/div[2]"
		s := newSession(t, page(cards(0, 4)...))
		c, err := ResolveContainer(ctx, s, cfg)
		require.NoError(t, err)
		assert.Equal(t, "feed", id(t, c.Node))
		assert.True(t, c.Fallback)
	})

	t.Run("locator without cards falls back to the scan", func(t *testing.T) {
		cfg := testConfig()
		cfg.ContainerXPath = "/html/body/div[1]"
		s := newSession(t, page(cards(0, 4)...))
		c, err := ResolveContainer(ctx, s, cfg)
		require.NoError(t, err)
		assert.Equal(t, "feed", id(t, c.Node))
		assert.True(t, c.Fallback)
	})

	t.Run("single card is not a list", func(t *testing.T) {
		s := newSession(t, `<html><body><div>`+card(1)+`</div></body></html>`)
		_, err := ResolveContainer(ctx, s, testConfig())
		assert.True(t, models.IsCode(err, models.ErrCodeContainerNotFound), "got %v", err)
	})

	t.Run("no cards rendered", func(t *testing.T) {
		s := newSession(t, `<html><body><p>Tidak ada lowongan</p></body></html>`)
		_, err := ResolveContainer(ctx, s, testConfig())
		assert.True(t, models.IsCode(err, models.ErrCodeContainerNotFound), "got %v", err)
	})

	t.Run("wrapped cards group under the list element", func(t *testing.T) {
		s := newSession(t, `<html><body><ul id="list">`+
			`<li>`+card(1)+`</li><li>`+card(2)+`</li><li>`+card(3)+`</li></ul></body></html>`)
		c, err := ResolveContainer(ctx, s, testConfig())
		require.NoError(t, err)
		assert.Equal(t, "list", id(t, c.Node))
	})
}

func TestConverge_StopsAtNoGrowthThreshold(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	s := newSession(t, page(cards(0, 5)...), snapshot.WithScrollHook(growBy(3, 2)))

	c, err := ResolveContainer(ctx, s, cfg)
	require.NoError(t, err)
	state, exhausted, err := Converge(ctx, s, c, cfg)
	require.NoError(t, err)

	assert.False(t, exhausted)
	assert.Equal(t, models.ScrollState{
		ConsecutiveNoGrowthRounds: 2,
		RoundsElapsed:             4,
		LastCardCount:             10,
	}, state)
	assert.Equal(t, 4, s.Scrolls(), "no scroll after the threshold round")
}

func TestConverge_Termination(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(7))

	for trial := 0; trial < 20; trial++ {
		cfg := testConfig()
		cfg.MaxScrollRounds = 1 + rng.Intn(8)
		cfg.NoGrowthThreshold = 1 + rng.Intn(3)
		steps := make([]int, 12)
		for i := range steps {
			steps[i] = rng.Intn(3)
		}

		s := newSession(t, page(cards(0, 3)...), snapshot.WithScrollHook(growBy(steps...)))
		c, err := ResolveContainer(ctx, s, cfg)
		require.NoError(t, err)
		state, exhausted, err := Converge(ctx, s, c, cfg)
		require.NoError(t, err)

		assert.LessOrEqual(t, state.RoundsElapsed, cfg.MaxScrollRounds, "steps %v", steps)
		if exhausted {
			assert.Equal(t, cfg.MaxScrollRounds, state.RoundsElapsed)
		} else {
			assert.Equal(t, cfg.NoGrowthThreshold, state.ConsecutiveNoGrowthRounds)
		}
	}
}

func TestConverge_BudgetExhaustion(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.MaxScrollRounds = 3
	s := newSession(t, page(cards(0, 3)...), snapshot.WithScrollHook(growBy(1, 1, 1, 1, 1)))

	c, err := ResolveContainer(ctx, s, cfg)
	require.NoError(t, err)
	state, exhausted, err := Converge(ctx, s, c, cfg)
	require.NoError(t, err)
	assert.True(t, exhausted)
	assert.Equal(t, 3, state.RoundsElapsed)
	assert.Equal(t, 6, state.LastCardCount)
}

func TestConverge_ContainerReRendered(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.ContainerXPath = feedXPath

	rerender := func(doc *goquery.Document, round int) {
		if round > 2 {
			return
		}
		n := doc.Find("#feed [data-gtm-job-id]").Length()
		doc.Find("#feed").ReplaceWithHtml(`<div id="feed" style="overflow-y:auto">` +
			strings.Join(cards(0, n+2), "") + `</div>`)
	}
	s := newSession(t, page(cards(0, 2)...), snapshot.WithScrollHook(rerender))

	c, err := ResolveContainer(ctx, s, cfg)
	require.NoError(t, err)
	held := c.Node

	state, _, err := Converge(ctx, s, c, cfg)
	require.NoError(t, err)
	assert.Equal(t, 6, state.LastCardCount)
	assert.False(t, held.Attached(ctx))
	assert.True(t, c.Node.Attached(ctx), "container re-located through the locator")
}

// xpathCounter counts locator lookups made through the session.
type xpathCounter struct {
	*snapshot.Session
	calls int
}

func (s *xpathCounter) FindXPath(ctx context.Context, expr string, timeout time.Duration) (dom.Node, error) {
	s.calls++
	return s.Session.FindXPath(ctx, expr, timeout)
}

func TestConverge_LocatorLostFallsBackOnce(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.ContainerXPath = feedXPath

	// Round 1 re-renders the feed one level deeper, so the locator no
	// longer matches anything.
	moved := func(doc *goquery.Document, round int) {
		if round != 1 {
			return
		}
		n := doc.Find("#feed [data-gtm-job-id]").Length()
		doc.Find("#feed").ReplaceWithHtml(`<section><div id="feed" style="overflow-y:auto">` +
			strings.Join(cards(0, n+3), "") + `</div></section>`)
	}
	s := &xpathCounter{Session: newSession(t, page(cards(0, 3)...), snapshot.WithScrollHook(moved))}

	c, err := ResolveContainer(ctx, s, cfg)
	require.NoError(t, err)
	require.True(t, c.Located)
	require.Equal(t, 1, s.calls)

	state, exhausted, err := Converge(ctx, s, c, cfg)
	require.NoError(t, err)
	assert.False(t, exhausted)
	assert.Equal(t, 2, s.calls, "a failed re-find is not repeated")
	assert.False(t, c.Located)
	assert.Equal(t, 8, state.LastCardCount, "feed and recommended cards counted from the document")
}

func TestConverge_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := newSession(t, page(cards(0, 3)...))
	c, err := ResolveContainer(ctx, s, testConfig())
	require.NoError(t, err)

	cancel()
	_, _, err = Converge(ctx, s, c, testConfig())
	assert.ErrorIs(t, err, context.Canceled)
}

func jobID(t *testing.T, n dom.Node) string {
	t.Helper()
	v, _, err := n.Attr(context.Background(), "data-gtm-job-id")
	require.NoError(t, err)
	return v
}

func TestAccessor_ReLocatesDetachedCard(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	s := newSession(t, page(cards(0, 5)...))
	c, err := ResolveContainer(ctx, s, cfg)
	require.NoError(t, err)

	acc := NewAccessor(c, cfg)
	total, err := acc.Discover(ctx)
	require.NoError(t, err)
	require.Equal(t, 5, total)

	held := acc.handles[2]
	s.Document().Find(`#feed [data-gtm-job-id="id-2"]`).ReplaceWithHtml(card(2))
	require.False(t, held.Attached(ctx))

	got, err := acc.Card(ctx, 2)
	require.NoError(t, err)
	assert.True(t, got.Attached(ctx))
	assert.Equal(t, "id-2", jobID(t, got))
}

func TestAccessor_ContainerDetached(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.ContainerXPath = feedXPath
	s := newSession(t, page(cards(0, 3)...))
	c, err := ResolveContainer(ctx, s, cfg)
	require.NoError(t, err)

	acc := NewAccessor(c, cfg)
	_, err = acc.Discover(ctx)
	require.NoError(t, err)

	s.Document().Find("#feed").ReplaceWithHtml(`<div id="feed">` + strings.Join(cards(0, 3), "") + `</div>`)

	got, err := acc.Card(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "id-1", jobID(t, got))
}

func TestAccessor_StaleDuringRead(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	s := newSession(t, page(cards(0, 3)...))
	c, err := ResolveContainer(ctx, s, cfg)
	require.NoError(t, err)
	acc := NewAccessor(c, cfg)
	_, err = acc.Discover(ctx)
	require.NoError(t, err)

	calls := 0
	var title string
	err = acc.Do(ctx, 1, func(n dom.Node) error {
		calls++
		if calls == 1 {
			s.Document().Find(`#feed [data-gtm-job-id="id-1"]`).ReplaceWithHtml(card(1))
		}
		a, err := dom.First(ctx, n, "h3 a")
		if err != nil {
			return err
		}
		title, err = a.Text(ctx)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, "Role 1", title)
}

func TestAccessor_Unavailable(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	s := newSession(t, page(cards(0, 3)...))
	c, err := ResolveContainer(ctx, s, cfg)
	require.NoError(t, err)
	acc := NewAccessor(c, cfg)
	_, err = acc.Discover(ctx)
	require.NoError(t, err)

	s.Document().Find(`#feed [data-gtm-job-id="id-2"]`).Remove()

	calls := 0
	err = acc.Do(ctx, 2, func(dom.Node) error { calls++; return nil })
	assert.True(t, models.IsCode(err, models.ErrCodeCardUnavailable), "got %v", err)
	assert.Zero(t, calls)

	boom := errors.New("boom")
	err = acc.Do(ctx, 0, func(dom.Node) error { return boom })
	assert.ErrorIs(t, err, boom, "non-stale errors are not retried")
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	orphan := `<div class="card" data-gtm-job-id="id-x" data-gtm-job-role="Orphan"><h3>Orphan</h3></div>`
	feed := []string{card(0), card(1), card(1), orphan}
	s := newSession(t, page(feed...),
		snapshot.WithURL("https://glints.example/search"),
		snapshot.WithScrollHook(func(doc *goquery.Document, round int) {
			if round == 1 {
				doc.Find("#feed").AppendHtml(card(4) + card(5))
			}
		}))

	h := New(testConfig(), extract.New(extract.GlintsSchema()))
	report, err := h.Run(ctx, s, Job{RunID: "r1", Keyword: "golang", Source: "glints"})
	require.NoError(t, err)

	assert.Equal(t, 6, report.Cards)
	assert.Equal(t, 3, report.Scroll.RoundsElapsed)
	assert.False(t, report.Exhausted)
	assert.Equal(t, 1, report.Duplicates)
	assert.Equal(t, []models.Drop{{Index: 3, Reason: "missing link"}}, report.Dropped)
	assert.Zero(t, report.Skipped)
	assert.Contains(t, report.Notes, models.NoteNormalizationDropped)
	assert.Contains(t, report.Notes, models.NoteExtractionIncomplete)
	assert.Nil(t, report.Error)

	require.Len(t, report.Records, 4)
	var titles []string
	for _, r := range report.Records {
		titles = append(titles, r.Title)
	}
	assert.Equal(t, []string{"Role 0", "Role 1", "Role 4", "Role 5"}, titles)

	first := report.Records[0]
	assert.Equal(t, "https://glints.example/id/opportunities/jobs/role-0", first.Link)
	assert.Equal(t, "PT 0", first.Company)
	assert.Equal(t, "Jakarta, Bandung", first.Location)
	assert.Equal(t, "Rp 5.000.000 - 7.000.000", first.Salary)
	assert.Equal(t, "golang", first.Keyword)
	assert.Equal(t, "glints", first.Source)
	assert.Equal(t, "id-0", first.JobID)
}

func TestRun_ContainerNotFound(t *testing.T) {
	s := newSession(t, `<html><body><p>kosong</p></body></html>`)
	h := New(testConfig(), extract.New(extract.GlintsSchema()))

	report, err := h.Run(context.Background(), s, Job{Keyword: "x", BaseURL: "https://glints.com"})
	require.Error(t, err)
	require.NotNil(t, report.Error)
	assert.Equal(t, models.ErrCodeContainerNotFound, report.Error.Code)
	assert.Equal(t, "https://glints.com", report.URL)
	assert.Empty(t, report.Records)
}

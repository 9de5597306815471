package extract

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/jobharvest/dom"
	"github.com/use-agent/jobharvest/models"
	"github.com/use-agent/jobharvest/snapshot"
)

func firstCard(t *testing.T, body string) dom.Node {
	t.Helper()
	ctx := context.Background()
	s, err := snapshot.FromString("<html><body>" + body + "</body></html>")
	require.NoError(t, err)
	root, err := s.Root(ctx)
	require.NoError(t, err)
	card, err := dom.First(ctx, root, "[data-gtm-job-id]")
	require.NoError(t, err)
	return card
}

func TestGlintsSchema_FullCard(t *testing.T) {
	card := firstCard(t, `
<div data-gtm-job-id="j-1" data-gtm-job-role="Backend Engineer">
  <img alt="PT Maju" src="/logos/maju.png">
  <h3><a href="/id/opportunities/jobs/backend-engineer/j-1">Backend Engineer</a></h3>
  <div data-cy="company_name_job_card"><a href="/id/companies/maju">PT Maju Jaya</a></div>
  <div class="CardJobLocation__LocationWrapper-sc-v7ofa9-0">
    <span class="CardJobLocation__LocationSpan-sc-v7ofa9-1">Kebayoran Baru</span>
    <span class="CardJobLocation__LocationSpan-sc-v7ofa9-1">Jakarta Selatan</span>
  </div>
  <span data-testid="salary">IDR 8.000.000 - 12.000.000</span>
  <div class="CompactOpportunityCardsc__TagsWrapper-sc-dkg8my-37">
    <div class="TagStyle__TagContentWrapper-sc-r1wv7a-1">Full-time</div>
    <div class="TagStyle__TagContentWrapper-sc-r1wv7a-1">Go</div>
  </div>
  <span data-testid="updated-at">Diperbarui 2 hari lalu</span>
</div>`)

	raw, err := New(GlintsSchema()).Extract(context.Background(), card)
	require.NoError(t, err)

	assert.Equal(t, "j-1", raw[models.FieldJobID])
	assert.Equal(t, "Backend Engineer", raw[models.FieldTitle])
	assert.Equal(t, "/id/opportunities/jobs/backend-engineer/j-1", raw[models.FieldLink])
	assert.Equal(t, "PT Maju Jaya", raw[models.FieldCompany])
	assert.Equal(t, "Kebayoran Baru\nJakarta Selatan", raw[models.FieldLocations])
	assert.Equal(t, "IDR 8.000.000 - 12.000.000", raw[models.FieldSalary])
	assert.Equal(t, "Full-time\nGo", raw[models.FieldTags])
	assert.Equal(t, "Diperbarui 2 hari lalu", raw[models.FieldUpdatedAt])
	assert.Equal(t, "/logos/maju.png", raw[models.FieldCompanyLogo])
}

func TestGlintsSchema_SalaryFallbackOrder(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "secondary markup when primary is missing",
			body: `<div class="CompactOpportunityCardsc__SalaryWrapper-sc-dkg8my-32">Rp 5.000.000 - 7.000.000</div>`,
			want: "Rp 5.000.000 - 7.000.000",
		},
		{
			name: "primary undisclosed falls through to the undisclosed message",
			body: `<span data-testid="salary">Gaji tidak ditampilkan</span>
<span class="CompactOpportunityCardsc__NotDisclosedMessage-sc-dkg8my-27">Gaji Tidak Ditampilkan</span>`,
			want: "Gaji Tidak Ditampilkan",
		},
		{
			name: "text pattern heuristic",
			body: `<p>Kontrak · USD 1,500 - 2,000 · Remote</p>`,
			want: "USD 1,500 - 2,000",
		},
		{
			name: "primary wins over secondary",
			body: `<span data-testid="salary">Rp 9 jt</span><div class="SalaryWrapper">Rp 1 jt</div>`,
			want: "Rp 9 jt",
		},
	}

	ex := New(GlintsSchema())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			card := firstCard(t, `<div data-gtm-job-id="x"><a href="/id/opportunities/jobs/x">T</a>`+tt.body+`</div>`)
			raw, err := ex.Extract(context.Background(), card)
			require.NoError(t, err)
			got, ok := raw.Get(models.FieldSalary)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGlintsSchema_MissingFieldsAreAbsent(t *testing.T) {
	card := firstCard(t, `<div data-gtm-job-id="j-2" data-gtm-job-role="Data Analyst"><p>  </p></div>`)

	raw, err := New(GlintsSchema()).Extract(context.Background(), card)
	require.NoError(t, err)

	assert.Equal(t, "Data Analyst", raw[models.FieldTitle], "title falls back to the card attribute")
	assert.ElementsMatch(t,
		[]models.Field{models.FieldLink, models.FieldCompany, models.FieldSalary, models.FieldTags},
		raw.Missing(models.FieldLink, models.FieldCompany, models.FieldSalary, models.FieldTags))
	_, ok := raw[models.FieldLink]
	assert.False(t, ok, "absent, not empty string")
}

type staleNode struct{ dom.Node }

func (staleNode) Text(context.Context) (string, error) { return "", dom.ErrStale }

func TestExtract_StaleAborts(t *testing.T) {
	ex := New(Schema{{Field: models.FieldTitle, Strategies: []Strategy{Text("")}}})
	_, err := ex.Extract(context.Background(), staleNode{})
	assert.ErrorIs(t, err, dom.ErrStale)
}

func TestExtract_FailingStrategyFallsThrough(t *testing.T) {
	broken := Strategy{Name: "broken", Read: func(context.Context, dom.Node) (string, error) {
		return "", errors.New("boom")
	}}
	card := firstCard(t, `<div data-gtm-job-id="7">x</div>`)
	ex := New(Schema{{Field: models.FieldJobID, Strategies: []Strategy{broken, Text("div["), Attr("", "data-gtm-job-id")}}})

	raw, err := ex.Extract(context.Background(), card)
	require.NoError(t, err)
	assert.Equal(t, "7", raw[models.FieldJobID])
}

func TestMatchAndReject(t *testing.T) {
	card := firstCard(t, `<div data-gtm-job-id="1"><b>Aktif merekrut</b> Rp 4 jt</div>`)
	ctx := context.Background()

	v, err := Match(regexp.MustCompile(`(?i)aktif merekrut`)).Read(ctx, card)
	require.NoError(t, err)
	assert.Equal(t, "Aktif merekrut", v)

	v, err = Match(regexp.MustCompile(`Rp (\d+) jt`)).Read(ctx, card)
	require.NoError(t, err)
	assert.Equal(t, "4", v)

	v, err = Reject(Text("b"), regexp.MustCompile(`(?i)aktif`)).Read(ctx, card)
	require.NoError(t, err)
	assert.Empty(t, v)
}

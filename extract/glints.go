package extract

import (
	"regexp"

	"github.com/use-agent/jobharvest/models"
)

const (
	jobAnchor     = "a[href*='/opportunities/jobs/']"
	locationWrap  = "[data-testid='location'], [class*='LocationWrapper']"
	locationParts = "[class*='LocationSpan'], span, a"
)

var (
	undisclosedRe = regexp.MustCompile(`(?i)tidak\s+ditampilkan|not\s+disclosed`)

	// salaryTextRe finds a currency amount or range anywhere in the card text.
	salaryTextRe = regexp.MustCompile(
		`(?i)((?:Rp\.?|IDR|USD|SGD|\$)\s?\d[\d.,]*(?:\s*(?:jt|juta|rb|ribu|k))?` +
			`(?:\s*(?:-|–|to|s/d)\s*(?:Rp\.?|IDR|USD|SGD|\$)?\s?\d[\d.,]*(?:\s*(?:jt|juta|rb|ribu|k))?)?\+?)`)
)

// GlintsSchema returns the extraction rules for Glints opportunity cards.
func GlintsSchema() Schema {
	return Schema{
		{Field: models.FieldJobID, Strategies: []Strategy{
			Attr("", "data-gtm-job-id"),
		}},
		{Field: models.FieldTitle, Strategies: []Strategy{
			Text(jobAnchor),
			Attr(jobAnchor, "aria-label"),
			Attr("", "data-gtm-job-role"),
			Attr("", "data-gtm-job-title"),
		}},
		{Field: models.FieldLink, Strategies: []Strategy{
			Attr(jobAnchor, "href"),
			Attr("", "data-href"),
			Attr("", "data-url"),
		}},
		{Field: models.FieldCompany, Strategies: []Strategy{
			Text("[data-cy='company_name_job_card'] a, [data-testid='company-name'] a"),
			Text("a[href*='/companies/']"),
			Attr("", "data-gtm-job-company-name"),
		}},
		{Field: models.FieldLocations, Strategies: []Strategy{
			TextAllWithin(locationWrap, locationParts),
			Text(locationWrap),
		}},
		{Field: models.FieldSalary, Strategies: []Strategy{
			Reject(Text("[data-testid='salary']"), undisclosedRe),
			Reject(Text("[class*='SalaryWrapper']"), undisclosedRe),
			Reject(Text("[class*='Salary']"), undisclosedRe),
			Text("[class*='NotDisclosed']"),
			Match(salaryTextRe),
		}},
		{Field: models.FieldTags, Strategies: []Strategy{
			TextAll("[class*='TagsWrapper'] [class*='TagContentWrapper'], [data-testid='job-tag']"),
		}},
		{Field: models.FieldUpdatedAt, Strategies: []Strategy{
			Text("[class*='UpdatedAtMessage'], [data-testid='updated-at']"),
		}},
		{Field: models.FieldCompanyLogo, Strategies: []Strategy{
			Attr("img[alt]", "src"),
			Attr("img", "data-src"),
		}},
	}
}

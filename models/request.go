package models

// HarvestRequest is the payload for POST /api/v1/harvest.
type HarvestRequest struct {
	// Keyword is the search term for the listing page. Required.
	Keyword string `json:"keyword" binding:"required,min=1,max=200"`

	// Country is the site country code (e.g. "ID").
	// Default: the configured site country.
	Country string `json:"country,omitempty" binding:"omitempty,len=2,alpha"`

	// MaxScrolls overrides the scroll-round budget for this run.
	// Default: the configured budget. Max: 200.
	MaxScrolls int `json:"max_scrolls,omitempty" binding:"omitempty,min=1,max=200"`

	// ContainerXPath overrides the explicit container locator.
	// An empty value keeps the configured locator.
	ContainerXPath string `json:"container_xpath,omitempty"`

	// AI enables the clustering post-processing step.
	AI bool `json:"ai,omitempty"`

	// MaxAge allows a cached report younger than this many milliseconds.
	// 0 disables caching for the request.
	MaxAge int `json:"max_age,omitempty" binding:"omitempty,min=0"`
}

// Defaults applies default values to unset fields.
func (r *HarvestRequest) Defaults(country string, maxScrolls int) {
	if r.Country == "" {
		r.Country = country
	}
	if r.MaxScrolls == 0 {
		r.MaxScrolls = maxScrolls
	}
}

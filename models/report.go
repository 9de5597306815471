package models

import "time"

// RunNote tags a non-fatal condition observed during a keyword run.
type RunNote string

const (
	NoteConvergenceExhausted RunNote = "convergence_exhausted"
	NoteExtractionIncomplete RunNote = "extraction_incomplete"
	NoteNormalizationDropped RunNote = "normalization_dropped"
	NoteCardUnavailable      RunNote = "card_unavailable"
	NoteContainerFallback    RunNote = "container_fallback"
)

// ScrollState tracks the render-convergence loop. It belongs to exactly one
// keyword run and is never shared.
type ScrollState struct {
	ConsecutiveNoGrowthRounds int `json:"consecutive_no_growth_rounds"`
	RoundsElapsed             int `json:"rounds_elapsed"`
	LastCardCount             int `json:"last_card_count"`
}

// Drop records why a card produced no record.
type Drop struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// RunReport is the outcome of one keyword run.
type RunReport struct {
	RunID      string        `json:"run_id"`
	Keyword    string        `json:"keyword"`
	URL        string        `json:"url"`
	Records    []Record      `json:"records"`
	Cards      int           `json:"cards"`
	Scroll     ScrollState   `json:"scroll"`
	Exhausted  bool          `json:"exhausted"`
	Skipped    int           `json:"skipped"`
	Incomplete int           `json:"incomplete"`
	Duplicates int           `json:"duplicates"`
	Dropped    []Drop        `json:"dropped,omitempty"`
	Notes      []RunNote     `json:"notes,omitempty"`
	Duration   time.Duration `json:"duration_ns"`
	Error      *ErrorDetail  `json:"error,omitempty"`
}

// Note appends n once.
func (r *RunReport) Note(n RunNote) {
	for _, existing := range r.Notes {
		if existing == n {
			return
		}
	}
	r.Notes = append(r.Notes, n)
}

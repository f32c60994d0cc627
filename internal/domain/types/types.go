// Package types contains the read shapes returned by the API.
package types

import "time"

// Band is the presentation bucket for a normalized score.
type Band string

const (
	BandStrong     Band = "strong"
	BandBorderline Band = "borderline"
	BandWeak       Band = "weak"
	BandUnreviewed Band = "unreviewed"
)

// Entry represents a leaderboard row.
type Entry struct {
	Rank         int     `json:"rank"`
	SubmissionID string  `json:"submissionId"`
	Title        string  `json:"title,omitempty"`
	TotalScore   float64 `json:"totalScore"`
	ReviewCount  int     `json:"reviewCount"`
	// NormalizedScore is TotalScore divided by the weight sum, on the [0,5]
	// review scale. Band is derived from it, ranking is not.
	NormalizedScore float64   `json:"normalizedScore"`
	Band            Band      `json:"band"`
	LLMSuspected    bool      `json:"llmSuspected"`
	CreatedAt       time.Time `json:"createdAt"`
}

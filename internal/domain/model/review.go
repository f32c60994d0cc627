package model

import (
	"time"

	"github.com/okian/cfpboard/internal/domain/criteria"
)

// Review score bounds, inclusive.
const (
	MinScore = 0
	MaxScore = 5
)

// Review is one reviewer's per-criterion score for one submission. The pair
// (SubmissionID, ReviewerID) is unique.
type Review struct {
	SubmissionID     string    `json:"submissionId"`
	ReviewerID       string    `json:"reviewerId"`
	ScoreRelevance   int       `json:"scoreRelevance"`
	ScoreOriginality int       `json:"scoreOriginality"`
	ScoreDepth       int       `json:"scoreDepth"`
	ScoreClarity     int       `json:"scoreClarity"`
	ScoreTakeaways   int       `json:"scoreTakeaways"`
	ScoreEngagement  int       `json:"scoreEngagement"`
	Notes            string    `json:"notes"`
	IsLLMSuspected   bool      `json:"isLlmSuspected"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// Scores returns the review in canonical criterion order.
func (r Review) Scores() criteria.Scores {
	return criteria.Scores{r.ScoreRelevance, r.ScoreOriginality, r.ScoreDepth, r.ScoreClarity, r.ScoreTakeaways, r.ScoreEngagement}
}

// ReviewKey identifies a review.
type ReviewKey struct {
	SubmissionID string
	ReviewerID   string
}

// Key returns the uniqueness key of r.
func (r Review) Key() ReviewKey {
	return ReviewKey{SubmissionID: r.SubmissionID, ReviewerID: r.ReviewerID}
}

// ReviewInput is the write shape for a review. ReviewerID is honoured only
// for admins; everyone else writes under their own identity.
type ReviewInput struct {
	SubmissionID     string `json:"submissionId" validate:"required,max=64"`
	ReviewerID       string `json:"reviewerId" validate:"max=64"`
	ScoreRelevance   *int   `json:"scoreRelevance" validate:"required,min=0,max=5"`
	ScoreOriginality *int   `json:"scoreOriginality" validate:"required,min=0,max=5"`
	ScoreDepth       *int   `json:"scoreDepth" validate:"required,min=0,max=5"`
	ScoreClarity     *int   `json:"scoreClarity" validate:"required,min=0,max=5"`
	ScoreTakeaways   *int   `json:"scoreTakeaways" validate:"required,min=0,max=5"`
	ScoreEngagement  *int   `json:"scoreEngagement" validate:"required,min=0,max=5"`
	Notes            string `json:"notes" validate:"max=10000"`
	IsLLMSuspected   bool   `json:"isLlmSuspected"`
}

// Review builds the record for reviewerID. Call only after validation.
func (in ReviewInput) Review(reviewerID string) Review {
	return Review{
		SubmissionID:     in.SubmissionID,
		ReviewerID:       reviewerID,
		ScoreRelevance:   deref(in.ScoreRelevance),
		ScoreOriginality: deref(in.ScoreOriginality),
		ScoreDepth:       deref(in.ScoreDepth),
		ScoreClarity:     deref(in.ScoreClarity),
		ScoreTakeaways:   deref(in.ScoreTakeaways),
		ScoreEngagement:  deref(in.ScoreEngagement),
		Notes:            in.Notes,
		IsLLMSuspected:   in.IsLLMSuspected,
	}
}

// ReviewInputFromScores fills the six score pointers from s.
func ReviewInputFromScores(submissionID string, s criteria.Scores) ReviewInput {
	return ReviewInput{
		SubmissionID:     submissionID,
		ScoreRelevance:   ptr(s[criteria.Relevance]),
		ScoreOriginality: ptr(s[criteria.Originality]),
		ScoreDepth:       ptr(s[criteria.Depth]),
		ScoreClarity:     ptr(s[criteria.Clarity]),
		ScoreTakeaways:   ptr(s[criteria.Takeaways]),
		ScoreEngagement:  ptr(s[criteria.Engagement]),
	}
}

// ReviewFilter narrows ListReviews. Empty fields match everything.
type ReviewFilter struct {
	SubmissionID string
	ReviewerID   string
}

// Matches reports whether r passes the filter.
func (f ReviewFilter) Matches(r Review) bool {
	if f.SubmissionID != "" && f.SubmissionID != r.SubmissionID {
		return false
	}
	if f.ReviewerID != "" && f.ReviewerID != r.ReviewerID {
		return false
	}
	return true
}

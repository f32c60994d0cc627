// Package model contains the typed records passed between layers.
package model

import (
	"time"

	"github.com/okian/cfpboard/internal/domain/criteria"
)

// Weight vote bounds, inclusive.
const (
	MinWeight = 1
	MaxWeight = 6
)

// WeightVote is one committee member's opinion of how much each criterion
// should count. A member holds at most one vote.
type WeightVote struct {
	MemberID    string    `json:"memberId"`
	Relevance   int       `json:"relevance"`
	Originality int       `json:"originality"`
	Depth       int       `json:"depth"`
	Clarity     int       `json:"clarity"`
	Takeaways   int       `json:"takeaways"`
	Engagement  int       `json:"engagement"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Scores returns the vote in canonical criterion order.
func (v WeightVote) Scores() criteria.Scores {
	return criteria.Scores{v.Relevance, v.Originality, v.Depth, v.Clarity, v.Takeaways, v.Engagement}
}

// WeightVoteInput is the write shape for a vote. Pointers distinguish a
// missing field from an out-of-range one.
type WeightVoteInput struct {
	Relevance   *int `json:"relevance" validate:"required,min=1,max=6"`
	Originality *int `json:"originality" validate:"required,min=1,max=6"`
	Depth       *int `json:"depth" validate:"required,min=1,max=6"`
	Clarity     *int `json:"clarity" validate:"required,min=1,max=6"`
	Takeaways   *int `json:"takeaways" validate:"required,min=1,max=6"`
	Engagement  *int `json:"engagement" validate:"required,min=1,max=6"`
}

// Vote builds the record for memberID. Call only after validation; nil
// fields become zero.
func (in WeightVoteInput) Vote(memberID string) WeightVote {
	return WeightVote{
		MemberID:    memberID,
		Relevance:   deref(in.Relevance),
		Originality: deref(in.Originality),
		Depth:       deref(in.Depth),
		Clarity:     deref(in.Clarity),
		Takeaways:   deref(in.Takeaways),
		Engagement:  deref(in.Engagement),
	}
}

// VoteInputFromScores is the inverse of WeightVote.Scores for callers that
// hold plain ints, such as the seeding tool.
func VoteInputFromScores(s criteria.Scores) WeightVoteInput {
	return WeightVoteInput{
		Relevance:   ptr(s[criteria.Relevance]),
		Originality: ptr(s[criteria.Originality]),
		Depth:       ptr(s[criteria.Depth]),
		Clarity:     ptr(s[criteria.Clarity]),
		Takeaways:   ptr(s[criteria.Takeaways]),
		Engagement:  ptr(s[criteria.Engagement]),
	}
}

func deref(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func ptr(v int) *int { return &v }

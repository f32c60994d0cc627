// Package repository defines the persistence contract for votes, reviews,
// submissions and users, plus an in-memory implementation.
package repository

import (
	"context"

	"github.com/okian/cfpboard/internal/domain/model"
	"github.com/okian/cfpboard/internal/domain/user"
)

// VoteStore keeps one weight vote per member.
type VoteStore interface {
	// UpsertVote replaces the member's vote and returns the stored record.
	// CreatedAt of an existing vote is kept.
	UpsertVote(ctx context.Context, v model.WeightVote) (model.WeightVote, error)
	GetVote(ctx context.Context, memberID string) (model.WeightVote, error)
	// ListVotes returns every vote ordered by member id.
	ListVotes(ctx context.Context) ([]model.WeightVote, error)
	DeleteVote(ctx context.Context, memberID string) error
}

// ReviewStore keeps one review per (submission, reviewer).
type ReviewStore interface {
	// UpsertReview replaces the review and returns the stored record.
	// CreatedAt of an existing review is kept.
	UpsertReview(ctx context.Context, r model.Review) (model.Review, error)
	GetReview(ctx context.Context, key model.ReviewKey) (model.Review, error)
	// ListReviews returns matching reviews ordered by submission then reviewer.
	ListReviews(ctx context.Context, f model.ReviewFilter) ([]model.Review, error)
}

// SubmissionStore keeps talk proposals.
type SubmissionStore interface {
	// CreateSubmission returns ErrConflict when the id exists.
	CreateSubmission(ctx context.Context, s model.Submission) error
	GetSubmission(ctx context.Context, id string) (model.Submission, error)
	// ListSubmissions returns every submission ordered by creation time then id.
	ListSubmissions(ctx context.Context) ([]model.Submission, error)
	SetScreening(ctx context.Context, id string, s model.Screening) error
	// UpdateSubmission overwrites the content fields, status, revision and
	// UpdatedAt. Owner, CreatedAt and the screening verdict are kept.
	UpdateSubmission(ctx context.Context, s model.Submission) error
}

// UserStore keeps accounts. Emails are unique and stored normalized.
type UserStore interface {
	// CreateUser returns ErrConflict when the id or email exists.
	CreateUser(ctx context.Context, u user.User) error
	GetUser(ctx context.Context, id string) (user.User, error)
	GetUserByEmail(ctx context.Context, email string) (user.User, error)
	// ListUsers returns every user ordered by creation time then id.
	ListUsers(ctx context.Context) ([]user.User, error)
	// UpdateUser overwrites name, role, active, password hash and UpdatedAt.
	UpdateUser(ctx context.Context, u user.User) error
}

// Store is the full persistence surface.
type Store interface {
	VoteStore
	ReviewStore
	SubmissionStore
	UserStore
	Close() error
}

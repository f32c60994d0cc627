package model

import "time"

// Status of a submission.
type Status string

const (
	StatusSubmitted Status = "submitted"
	StatusWithdrawn Status = "withdrawn"
)

// Submission is a talk proposal. Revision increases on every change that
// should trigger a new screening.
type Submission struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Abstract  string     `json:"abstract"`
	Takeaways string     `json:"takeaways"`
	Level     string     `json:"level"`
	Format    string     `json:"format"`
	SpeakerID string     `json:"speakerId,omitempty"`
	Status    Status     `json:"status"`
	Revision  int        `json:"revision"`
	Screening *Screening `json:"screening,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// Anonymized strips the speaker identity and reduces the screening verdict to
// a hint, which is all reviewers may see.
func (s Submission) Anonymized() Submission {
	s.SpeakerID = ""
	if s.Screening != nil {
		s.Screening = &Screening{Suspected: s.Screening.Suspected, Duplicates: s.Screening.Duplicates, CheckedAt: s.Screening.CheckedAt}
	}
	return s
}

// SubmissionInput is the write shape for a new submission.
type SubmissionInput struct {
	Title     string `json:"title" validate:"required,max=200"`
	Abstract  string `json:"abstract" validate:"required,max=5000"`
	Takeaways string `json:"takeaways" validate:"required,max=2000"`
	Level     string `json:"level" validate:"required,oneof=beginner intermediate advanced"`
	Format    string `json:"format" validate:"required,oneof=talk workshop lightning"`
}

// Screening is the advisory verdict of the automated checks on a submission.
type Screening struct {
	Suspected  bool      `json:"suspected"`
	Confidence float64   `json:"confidence,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	Duplicates []string  `json:"duplicates,omitempty"`
	Provider   string    `json:"provider,omitempty"`
	Revision   int       `json:"revision,omitempty"`
	CheckedAt  time.Time `json:"checkedAt"`
}

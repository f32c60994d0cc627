package dynamo

import (
	"time"

	"github.com/okian/cfpboard/internal/domain/model"
	"github.com/okian/cfpboard/internal/domain/user"
)

// Item kinds in the users table, which also holds email reservations.
const (
	kindUser  = "user"
	kindEmail = "email"
)

func emailKey(email string) string { return "EMAIL#" + email }

type voteRecord struct {
	MemberID    string    `dynamodbav:"PK"`
	Relevance   int       `dynamodbav:"Relevance"`
	Originality int       `dynamodbav:"Originality"`
	Depth       int       `dynamodbav:"Depth"`
	Clarity     int       `dynamodbav:"Clarity"`
	Takeaways   int       `dynamodbav:"Takeaways"`
	Engagement  int       `dynamodbav:"Engagement"`
	CreatedAt   time.Time `dynamodbav:"CreatedAt"`
	UpdatedAt   time.Time `dynamodbav:"UpdatedAt"`
}

func voteToRecord(v model.WeightVote) voteRecord {
	return voteRecord(v)
}

func (r voteRecord) model() model.WeightVote {
	return model.WeightVote(r)
}

type reviewRecord struct {
	SubmissionID     string    `dynamodbav:"PK"`
	ReviewerID       string    `dynamodbav:"SK"`
	ScoreRelevance   int       `dynamodbav:"ScoreRelevance"`
	ScoreOriginality int       `dynamodbav:"ScoreOriginality"`
	ScoreDepth       int       `dynamodbav:"ScoreDepth"`
	ScoreClarity     int       `dynamodbav:"ScoreClarity"`
	ScoreTakeaways   int       `dynamodbav:"ScoreTakeaways"`
	ScoreEngagement  int       `dynamodbav:"ScoreEngagement"`
	Notes            string    `dynamodbav:"Notes"`
	IsLLMSuspected   bool      `dynamodbav:"IsLLMSuspected"`
	CreatedAt        time.Time `dynamodbav:"CreatedAt"`
	UpdatedAt        time.Time `dynamodbav:"UpdatedAt"`
}

func reviewToRecord(r model.Review) reviewRecord {
	return reviewRecord(r)
}

func (r reviewRecord) model() model.Review {
	return model.Review(r)
}

type screeningRecord struct {
	Suspected  bool      `dynamodbav:"Suspected"`
	Confidence float64   `dynamodbav:"Confidence"`
	Reason     string    `dynamodbav:"Reason,omitempty"`
	Duplicates []string  `dynamodbav:"Duplicates,omitempty,stringset"`
	Provider   string    `dynamodbav:"Provider,omitempty"`
	Revision   int       `dynamodbav:"Revision"`
	CheckedAt  time.Time `dynamodbav:"CheckedAt"`
}

type submissionRecord struct {
	ID        string           `dynamodbav:"PK"`
	Title     string           `dynamodbav:"Title"`
	Abstract  string           `dynamodbav:"Abstract"`
	Takeaways string           `dynamodbav:"Takeaways"`
	Level     string           `dynamodbav:"Level"`
	Format    string           `dynamodbav:"Format"`
	SpeakerID string           `dynamodbav:"SpeakerID,omitempty"`
	Status    string           `dynamodbav:"Status"`
	Revision  int              `dynamodbav:"Revision"`
	Screening *screeningRecord `dynamodbav:"Screening,omitempty"`
	CreatedAt time.Time        `dynamodbav:"CreatedAt"`
	UpdatedAt time.Time        `dynamodbav:"UpdatedAt"`
}

func submissionToRecord(s model.Submission) submissionRecord {
	r := submissionRecord{
		ID: s.ID, Title: s.Title, Abstract: s.Abstract, Takeaways: s.Takeaways, Level: s.Level,
		Format: s.Format, SpeakerID: s.SpeakerID, Status: string(s.Status), Revision: s.Revision,
		CreatedAt: s.CreatedAt, UpdatedAt: s.UpdatedAt,
	}
	if s.Screening != nil {
		sc := screeningRecord(*s.Screening)
		r.Screening = &sc
	}
	return r
}

func (r submissionRecord) model() model.Submission {
	s := model.Submission{
		ID: r.ID, Title: r.Title, Abstract: r.Abstract, Takeaways: r.Takeaways, Level: r.Level,
		Format: r.Format, SpeakerID: r.SpeakerID, Status: model.Status(r.Status), Revision: r.Revision,
		CreatedAt: r.CreatedAt.UTC(), UpdatedAt: r.UpdatedAt.UTC(),
	}
	if r.Screening != nil {
		sc := model.Screening(*r.Screening)
		s.Screening = &sc
	}
	return s
}

type userRecord struct {
	ID           string    `dynamodbav:"PK"`
	Kind         string    `dynamodbav:"Kind"`
	Email        string    `dynamodbav:"Email"`
	Name         string    `dynamodbav:"Name"`
	Role         string    `dynamodbav:"Role"`
	Active       bool      `dynamodbav:"Active"`
	PasswordHash []byte    `dynamodbav:"PasswordHash"`
	CreatedAt    time.Time `dynamodbav:"CreatedAt"`
	UpdatedAt    time.Time `dynamodbav:"UpdatedAt"`
}

func userToRecord(u user.User) userRecord {
	return userRecord{
		ID: u.ID, Kind: kindUser, Email: user.NormalizeEmail(u.Email), Name: u.Name, Role: string(u.Role),
		Active: u.Active, PasswordHash: u.PasswordHash, CreatedAt: u.CreatedAt, UpdatedAt: u.UpdatedAt,
	}
}

func (r userRecord) model() user.User {
	return user.User{
		ID: r.ID, Email: r.Email, Name: r.Name, Role: user.Role(r.Role), Active: r.Active,
		PasswordHash: r.PasswordHash, CreatedAt: r.CreatedAt.UTC(), UpdatedAt: r.UpdatedAt.UTC(),
	}
}

// emailRecord reserves an address for one user id.
type emailRecord struct {
	Key    string `dynamodbav:"PK"`
	Kind   string `dynamodbav:"Kind"`
	UserID string `dynamodbav:"UserID"`
}

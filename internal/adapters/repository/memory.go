package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/okian/cfpboard/internal/domain/model"
	"github.com/okian/cfpboard/internal/domain/user"
	"github.com/okian/cfpboard/pkg/metrics"
)

const memoryLabel = "memory"

// MemoryStore implements Store with maps guarded by one RWMutex. Records are
// copied in and out so callers never share slices with the store.
type MemoryStore struct {
	mu          sync.RWMutex
	votes       map[string]model.WeightVote
	reviews     map[model.ReviewKey]model.Review
	submissions map[string]model.Submission
	users       map[string]user.User
	emails      map[string]string // normalized email -> user id
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		votes:       make(map[string]model.WeightVote),
		reviews:     make(map[model.ReviewKey]model.Review),
		submissions: make(map[string]model.Submission),
		users:       make(map[string]user.User),
		emails:      make(map[string]string),
	}
}

func observe(op string, start time.Time, err error) {
	metrics.ObserveStoreOperation(memoryLabel, op, start, err)
}

func (s *MemoryStore) UpsertVote(_ context.Context, v model.WeightVote) (model.WeightVote, error) {
	defer observe("upsert_vote", time.Now(), nil)
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.votes[v.MemberID]; ok {
		v.CreatedAt = old.CreatedAt
	}
	s.votes[v.MemberID] = v
	metrics.UpdateWeightVotes(len(s.votes))
	return v, nil
}

func (s *MemoryStore) GetVote(_ context.Context, memberID string) (model.WeightVote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.votes[memberID]
	if !ok {
		return model.WeightVote{}, ErrNotFound
	}
	return v, nil
}

func (s *MemoryStore) ListVotes(_ context.Context) ([]model.WeightVote, error) {
	defer observe("list_votes", time.Now(), nil)
	s.mu.RLock()
	out := make([]model.WeightVote, 0, len(s.votes))
	for _, v := range s.votes {
		out = append(out, v)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].MemberID < out[j].MemberID })
	return out, nil
}

func (s *MemoryStore) DeleteVote(_ context.Context, memberID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.votes[memberID]; !ok {
		return ErrNotFound
	}
	delete(s.votes, memberID)
	metrics.UpdateWeightVotes(len(s.votes))
	return nil
}

func (s *MemoryStore) UpsertReview(_ context.Context, r model.Review) (model.Review, error) {
	defer observe("upsert_review", time.Now(), nil)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.submissions[r.SubmissionID]; !ok {
		return model.Review{}, ErrNotFound
	}
	if old, ok := s.reviews[r.Key()]; ok {
		r.CreatedAt = old.CreatedAt
	}
	s.reviews[r.Key()] = r
	return r, nil
}

func (s *MemoryStore) GetReview(_ context.Context, key model.ReviewKey) (model.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reviews[key]
	if !ok {
		return model.Review{}, ErrNotFound
	}
	return r, nil
}

func (s *MemoryStore) ListReviews(_ context.Context, f model.ReviewFilter) ([]model.Review, error) {
	defer observe("list_reviews", time.Now(), nil)
	s.mu.RLock()
	out := make([]model.Review, 0, len(s.reviews))
	for _, r := range s.reviews {
		if f.Matches(r) {
			out = append(out, r)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].SubmissionID != out[j].SubmissionID {
			return out[i].SubmissionID < out[j].SubmissionID
		}
		return out[i].ReviewerID < out[j].ReviewerID
	})
	return out, nil
}

func (s *MemoryStore) CreateSubmission(_ context.Context, sub model.Submission) error {
	defer observe("create_submission", time.Now(), nil)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.submissions[sub.ID]; ok {
		return ErrConflict
	}
	s.submissions[sub.ID] = cloneSubmission(sub)
	return nil
}

func (s *MemoryStore) GetSubmission(_ context.Context, id string) (model.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.submissions[id]
	if !ok {
		return model.Submission{}, ErrNotFound
	}
	return cloneSubmission(sub), nil
}

func (s *MemoryStore) ListSubmissions(_ context.Context) ([]model.Submission, error) {
	defer observe("list_submissions", time.Now(), nil)
	s.mu.RLock()
	out := make([]model.Submission, 0, len(s.submissions))
	for _, sub := range s.submissions {
		out = append(out, cloneSubmission(sub))
	}
	s.mu.RUnlock()
	sortSubmissions(out)
	return out, nil
}

func (s *MemoryStore) SetScreening(_ context.Context, id string, sc model.Screening) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.submissions[id]
	if !ok {
		return ErrNotFound
	}
	sc.Duplicates = append([]string(nil), sc.Duplicates...)
	sub.Screening = &sc
	s.submissions[id] = sub
	return nil
}

func (s *MemoryStore) UpdateSubmission(_ context.Context, sub model.Submission) error {
	defer observe("update_submission", time.Now(), nil)
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.submissions[sub.ID]
	if !ok {
		return ErrNotFound
	}
	cur.Title, cur.Abstract, cur.Takeaways = sub.Title, sub.Abstract, sub.Takeaways
	cur.Level, cur.Format = sub.Level, sub.Format
	cur.Status, cur.Revision, cur.UpdatedAt = sub.Status, sub.Revision, sub.UpdatedAt
	s.submissions[sub.ID] = cur
	return nil
}

func (s *MemoryStore) CreateUser(_ context.Context, u user.User) error {
	defer observe("create_user", time.Now(), nil)
	s.mu.Lock()
	defer s.mu.Unlock()
	email := user.NormalizeEmail(u.Email)
	if _, ok := s.users[u.ID]; ok {
		return ErrConflict
	}
	if _, ok := s.emails[email]; ok {
		return ErrConflict
	}
	u.Email = email
	s.users[u.ID] = u
	s.emails[email] = u.ID
	return nil
}

func (s *MemoryStore) GetUser(_ context.Context, id string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return user.User{}, ErrNotFound
	}
	return u, nil
}

func (s *MemoryStore) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.emails[user.NormalizeEmail(email)]
	if !ok {
		return user.User{}, ErrNotFound
	}
	return s.users[id], nil
}

func (s *MemoryStore) ListUsers(_ context.Context) ([]user.User, error) {
	s.mu.RLock()
	out := make([]user.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) UpdateUser(_ context.Context, u user.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.users[u.ID]
	if !ok {
		return ErrNotFound
	}
	old.Name = u.Name
	old.Role = u.Role
	old.Active = u.Active
	if len(u.PasswordHash) > 0 {
		old.PasswordHash = u.PasswordHash
	}
	old.UpdatedAt = u.UpdatedAt
	s.users[u.ID] = old
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

func cloneSubmission(s model.Submission) model.Submission {
	if s.Screening != nil {
		sc := *s.Screening
		sc.Duplicates = append([]string(nil), sc.Duplicates...)
		s.Screening = &sc
	}
	return s
}

func sortSubmissions(subs []model.Submission) {
	sort.Slice(subs, func(i, j int) bool {
		if !subs[i].CreatedAt.Equal(subs[j].CreatedAt) {
			return subs[i].CreatedAt.Before(subs[j].CreatedAt)
		}
		return subs[i].ID < subs[j].ID
	})
}

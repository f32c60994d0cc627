package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/okian/cfpboard/internal/adapters/repository"
	"github.com/okian/cfpboard/internal/domain/model"
	"github.com/okian/cfpboard/internal/domain/user"
	"github.com/okian/cfpboard/pkg/metrics"
)

const storeLabel = "postgres"

// Postgres error codes mapped to repository sentinels.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// Store implements repository.Store.
type Store struct {
	db *sqlx.DB
}

var _ repository.Store = (*Store)(nil)

// New wraps an open, migrated database.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error { return s.db.Close() }

func observe(op string, start time.Time, err *error) {
	metrics.ObserveStoreOperation(storeLabel, op, start, *err)
}

// mapErr turns driver errors into repository sentinels.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case codeUniqueViolation:
			return errors.Wrap(repository.ErrConflict, pqErr.Message)
		case codeForeignKeyViolation:
			return errors.Wrap(repository.ErrNotFound, pqErr.Message)
		}
	}
	return err
}

type voteRow struct {
	MemberID    string    `db:"member_id"`
	Relevance   int       `db:"relevance"`
	Originality int       `db:"originality"`
	Depth       int       `db:"depth"`
	Clarity     int       `db:"clarity"`
	Takeaways   int       `db:"takeaways"`
	Engagement  int       `db:"engagement"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r voteRow) model() model.WeightVote {
	return model.WeightVote{
		MemberID: r.MemberID, Relevance: r.Relevance, Originality: r.Originality, Depth: r.Depth,
		Clarity: r.Clarity, Takeaways: r.Takeaways, Engagement: r.Engagement,
		CreatedAt: r.CreatedAt.UTC(), UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func toVoteRow(v model.WeightVote) voteRow {
	return voteRow{
		MemberID: v.MemberID, Relevance: v.Relevance, Originality: v.Originality, Depth: v.Depth,
		Clarity: v.Clarity, Takeaways: v.Takeaways, Engagement: v.Engagement,
		CreatedAt: v.CreatedAt, UpdatedAt: v.UpdatedAt,
	}
}

const upsertVoteSQL = `
INSERT INTO weight_votes (member_id, relevance, originality, depth, clarity, takeaways, engagement, created_at, updated_at)
VALUES (:member_id, :relevance, :originality, :depth, :clarity, :takeaways, :engagement, :created_at, :updated_at)
ON CONFLICT (member_id) DO UPDATE SET
    relevance = EXCLUDED.relevance,
    originality = EXCLUDED.originality,
    depth = EXCLUDED.depth,
    clarity = EXCLUDED.clarity,
    takeaways = EXCLUDED.takeaways,
    engagement = EXCLUDED.engagement,
    updated_at = EXCLUDED.updated_at
RETURNING created_at`

func (s *Store) UpsertVote(ctx context.Context, v model.WeightVote) (_ model.WeightVote, err error) {
	defer observe("upsert_vote", time.Now(), &err)
	created, err := s.namedReturningTime(ctx, upsertVoteSQL, toVoteRow(v))
	if err != nil {
		return model.WeightVote{}, errors.Wrap(mapErr(err), "upserting vote")
	}
	v.CreatedAt = created.UTC()
	return v, nil
}

func (s *Store) GetVote(ctx context.Context, memberID string) (model.WeightVote, error) {
	var row voteRow
	if err := s.db.GetContext(ctx, &row, `SELECT * FROM weight_votes WHERE member_id = $1`, memberID); err != nil {
		return model.WeightVote{}, mapErr(err)
	}
	return row.model(), nil
}

func (s *Store) ListVotes(ctx context.Context) (_ []model.WeightVote, err error) {
	defer observe("list_votes", time.Now(), &err)
	var rows []voteRow
	if err = s.db.SelectContext(ctx, &rows, `SELECT * FROM weight_votes ORDER BY member_id`); err != nil {
		return nil, errors.Wrap(err, "listing votes")
	}
	out := make([]model.WeightVote, len(rows))
	for i, r := range rows {
		out[i] = r.model()
	}
	return out, nil
}

func (s *Store) DeleteVote(ctx context.Context, memberID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM weight_votes WHERE member_id = $1`, memberID)
	if err != nil {
		return errors.Wrap(err, "deleting vote")
	}
	return requireAffected(res)
}

type reviewRow struct {
	SubmissionID     string    `db:"submission_id"`
	ReviewerID       string    `db:"reviewer_id"`
	ScoreRelevance   int       `db:"score_relevance"`
	ScoreOriginality int       `db:"score_originality"`
	ScoreDepth       int       `db:"score_depth"`
	ScoreClarity     int       `db:"score_clarity"`
	ScoreTakeaways   int       `db:"score_takeaways"`
	ScoreEngagement  int       `db:"score_engagement"`
	Notes            string    `db:"notes"`
	IsLLMSuspected   bool      `db:"is_llm_suspected"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

func (r reviewRow) model() model.Review {
	return model.Review{
		SubmissionID: r.SubmissionID, ReviewerID: r.ReviewerID,
		ScoreRelevance: r.ScoreRelevance, ScoreOriginality: r.ScoreOriginality, ScoreDepth: r.ScoreDepth,
		ScoreClarity: r.ScoreClarity, ScoreTakeaways: r.ScoreTakeaways, ScoreEngagement: r.ScoreEngagement,
		Notes: r.Notes, IsLLMSuspected: r.IsLLMSuspected,
		CreatedAt: r.CreatedAt.UTC(), UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func toReviewRow(r model.Review) reviewRow {
	return reviewRow{
		SubmissionID: r.SubmissionID, ReviewerID: r.ReviewerID,
		ScoreRelevance: r.ScoreRelevance, ScoreOriginality: r.ScoreOriginality, ScoreDepth: r.ScoreDepth,
		ScoreClarity: r.ScoreClarity, ScoreTakeaways: r.ScoreTakeaways, ScoreEngagement: r.ScoreEngagement,
		Notes: r.Notes, IsLLMSuspected: r.IsLLMSuspected,
		CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
}

const upsertReviewSQL = `
INSERT INTO reviews (submission_id, reviewer_id, score_relevance, score_originality, score_depth, score_clarity,
    score_takeaways, score_engagement, notes, is_llm_suspected, created_at, updated_at)
VALUES (:submission_id, :reviewer_id, :score_relevance, :score_originality, :score_depth, :score_clarity,
    :score_takeaways, :score_engagement, :notes, :is_llm_suspected, :created_at, :updated_at)
ON CONFLICT (submission_id, reviewer_id) DO UPDATE SET
    score_relevance = EXCLUDED.score_relevance,
    score_originality = EXCLUDED.score_originality,
    score_depth = EXCLUDED.score_depth,
    score_clarity = EXCLUDED.score_clarity,
    score_takeaways = EXCLUDED.score_takeaways,
    score_engagement = EXCLUDED.score_engagement,
    notes = EXCLUDED.notes,
    is_llm_suspected = EXCLUDED.is_llm_suspected,
    updated_at = EXCLUDED.updated_at
RETURNING created_at`

func (s *Store) UpsertReview(ctx context.Context, r model.Review) (_ model.Review, err error) {
	defer observe("upsert_review", time.Now(), &err)
	created, err := s.namedReturningTime(ctx, upsertReviewSQL, toReviewRow(r))
	if err != nil {
		return model.Review{}, errors.Wrap(mapErr(err), "upserting review")
	}
	r.CreatedAt = created.UTC()
	return r, nil
}

func (s *Store) GetReview(ctx context.Context, key model.ReviewKey) (model.Review, error) {
	var row reviewRow
	err := s.db.GetContext(ctx, &row,
		`SELECT * FROM reviews WHERE submission_id = $1 AND reviewer_id = $2`, key.SubmissionID, key.ReviewerID)
	if err != nil {
		return model.Review{}, mapErr(err)
	}
	return row.model(), nil
}

func (s *Store) ListReviews(ctx context.Context, f model.ReviewFilter) (_ []model.Review, err error) {
	defer observe("list_reviews", time.Now(), &err)
	query, args := reviewListQuery(f)
	var rows []reviewRow
	if err = s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "listing reviews")
	}
	out := make([]model.Review, len(rows))
	for i, r := range rows {
		out[i] = r.model()
	}
	return out, nil
}

// reviewListQuery builds the filtered select with positional args.
func reviewListQuery(f model.ReviewFilter) (string, []any) {
	query := `SELECT * FROM reviews`
	var (
		where []string
		args  []any
	)
	if f.SubmissionID != "" {
		args = append(args, f.SubmissionID)
		where = append(where, "submission_id = $1")
	}
	if f.ReviewerID != "" {
		args = append(args, f.ReviewerID)
		where = append(where, "reviewer_id = $"+strconv.Itoa(len(args)))
	}
	for i, w := range where {
		if i == 0 {
			query += " WHERE " + w
		} else {
			query += " AND " + w
		}
	}
	return query + " ORDER BY submission_id, reviewer_id", args
}

type submissionRow struct {
	ID        string         `db:"id"`
	Title     string         `db:"title"`
	Abstract  string         `db:"abstract"`
	Takeaways string         `db:"takeaways"`
	Level     string         `db:"level"`
	Format    string         `db:"format"`
	SpeakerID string         `db:"speaker_id"`
	Status    string         `db:"status"`
	Revision  int            `db:"revision"`
	Screening sql.NullString `db:"screening"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

func (r submissionRow) model() (model.Submission, error) {
	s := model.Submission{
		ID: r.ID, Title: r.Title, Abstract: r.Abstract, Takeaways: r.Takeaways, Level: r.Level,
		Format: r.Format, SpeakerID: r.SpeakerID, Status: model.Status(r.Status), Revision: r.Revision,
		CreatedAt: r.CreatedAt.UTC(), UpdatedAt: r.UpdatedAt.UTC(),
	}
	if r.Screening.Valid && r.Screening.String != "" {
		var sc model.Screening
		if err := json.Unmarshal([]byte(r.Screening.String), &sc); err != nil {
			return model.Submission{}, errors.Wrapf(err, "decoding screening of %s", r.ID)
		}
		s.Screening = &sc
	}
	return s, nil
}

func (s *Store) CreateSubmission(ctx context.Context, sub model.Submission) (err error) {
	defer observe("create_submission", time.Now(), &err)
	row := submissionRow{
		ID: sub.ID, Title: sub.Title, Abstract: sub.Abstract, Takeaways: sub.Takeaways, Level: sub.Level,
		Format: sub.Format, SpeakerID: sub.SpeakerID, Status: string(sub.Status), Revision: sub.Revision,
		CreatedAt: sub.CreatedAt, UpdatedAt: sub.UpdatedAt,
	}
	if sub.Screening != nil {
		b, err := json.Marshal(sub.Screening)
		if err != nil {
			return errors.Wrap(err, "encoding screening")
		}
		row.Screening = sql.NullString{String: string(b), Valid: true}
	}
	_, err = s.db.NamedExecContext(ctx, `
INSERT INTO submissions (id, title, abstract, takeaways, level, format, speaker_id, status, revision, screening, created_at, updated_at)
VALUES (:id, :title, :abstract, :takeaways, :level, :format, :speaker_id, :status, :revision, :screening, :created_at, :updated_at)`, row)
	return mapErr(err)
}

func (s *Store) GetSubmission(ctx context.Context, id string) (model.Submission, error) {
	var row submissionRow
	if err := s.db.GetContext(ctx, &row, `SELECT * FROM submissions WHERE id = $1`, id); err != nil {
		return model.Submission{}, mapErr(err)
	}
	return row.model()
}

func (s *Store) ListSubmissions(ctx context.Context) (_ []model.Submission, err error) {
	defer observe("list_submissions", time.Now(), &err)
	var rows []submissionRow
	if err = s.db.SelectContext(ctx, &rows, `SELECT * FROM submissions ORDER BY created_at, id`); err != nil {
		return nil, errors.Wrap(err, "listing submissions")
	}
	out := make([]model.Submission, len(rows))
	for i, r := range rows {
		if out[i], err = r.model(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Store) SetScreening(ctx context.Context, id string, sc model.Screening) error {
	b, err := json.Marshal(sc)
	if err != nil {
		return errors.Wrap(err, "encoding screening")
	}
	res, err := s.db.ExecContext(ctx, `UPDATE submissions SET screening = $2 WHERE id = $1`, id, string(b))
	if err != nil {
		return errors.Wrap(err, "storing screening")
	}
	return requireAffected(res)
}

func (s *Store) UpdateSubmission(ctx context.Context, sub model.Submission) (err error) {
	defer observe("update_submission", time.Now(), &err)
	row := submissionRow{
		ID: sub.ID, Title: sub.Title, Abstract: sub.Abstract, Takeaways: sub.Takeaways, Level: sub.Level,
		Format: sub.Format, Status: string(sub.Status), Revision: sub.Revision, UpdatedAt: sub.UpdatedAt,
	}
	res, err := s.db.NamedExecContext(ctx, `
UPDATE submissions
SET title = :title, abstract = :abstract, takeaways = :takeaways, level = :level, format = :format,
    status = :status, revision = :revision, updated_at = :updated_at
WHERE id = :id`, row)
	if err != nil {
		return errors.Wrap(err, "updating submission")
	}
	return requireAffected(res)
}

type userRow struct {
	ID           string    `db:"id"`
	Email        string    `db:"email"`
	Name         string    `db:"name"`
	Role         string    `db:"role"`
	Active       bool      `db:"active"`
	PasswordHash []byte    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r userRow) model() user.User {
	return user.User{
		ID: r.ID, Email: r.Email, Name: r.Name, Role: user.Role(r.Role), Active: r.Active,
		PasswordHash: r.PasswordHash, CreatedAt: r.CreatedAt.UTC(), UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func toUserRow(u user.User) userRow {
	return userRow{
		ID: u.ID, Email: user.NormalizeEmail(u.Email), Name: u.Name, Role: string(u.Role), Active: u.Active,
		PasswordHash: u.PasswordHash, CreatedAt: u.CreatedAt, UpdatedAt: u.UpdatedAt,
	}
}

func (s *Store) CreateUser(ctx context.Context, u user.User) (err error) {
	defer observe("create_user", time.Now(), &err)
	_, err = s.db.NamedExecContext(ctx, `
INSERT INTO users (id, email, name, role, active, password_hash, created_at, updated_at)
VALUES (:id, :email, :name, :role, :active, :password_hash, :created_at, :updated_at)`, toUserRow(u))
	return mapErr(err)
}

func (s *Store) GetUser(ctx context.Context, id string) (user.User, error) {
	var row userRow
	if err := s.db.GetContext(ctx, &row, `SELECT * FROM users WHERE id = $1`, id); err != nil {
		return user.User{}, mapErr(err)
	}
	return row.model(), nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	var row userRow
	if err := s.db.GetContext(ctx, &row, `SELECT * FROM users WHERE email = $1`, user.NormalizeEmail(email)); err != nil {
		return user.User{}, mapErr(err)
	}
	return row.model(), nil
}

func (s *Store) ListUsers(ctx context.Context) ([]user.User, error) {
	var rows []userRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM users ORDER BY created_at, id`); err != nil {
		return nil, errors.Wrap(err, "listing users")
	}
	out := make([]user.User, len(rows))
	for i, r := range rows {
		out[i] = r.model()
	}
	return out, nil
}

func (s *Store) UpdateUser(ctx context.Context, u user.User) error {
	query := `UPDATE users SET name = :name, role = :role, active = :active, updated_at = :updated_at WHERE id = :id`
	if len(u.PasswordHash) > 0 {
		query = `UPDATE users SET name = :name, role = :role, active = :active, password_hash = :password_hash,
    updated_at = :updated_at WHERE id = :id`
	}
	res, err := s.db.NamedExecContext(ctx, query, toUserRow(u))
	if err != nil {
		return errors.Wrap(err, "updating user")
	}
	return requireAffected(res)
}

// namedReturningTime runs a named statement ending in RETURNING created_at.
func (s *Store) namedReturningTime(ctx context.Context, query string, arg any) (time.Time, error) {
	rows, err := sqlx.NamedQueryContext(ctx, s.db, query, arg)
	if err != nil {
		return time.Time{}, err
	}
	defer func() { _ = rows.Close() }()
	var created time.Time
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return time.Time{}, err
		}
		return time.Time{}, sql.ErrNoRows
	}
	if err := rows.Scan(&created); err != nil {
		return time.Time{}, err
	}
	return created, rows.Err()
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Package dynamo implements the repository on Amazon DynamoDB, one table per
// entity.
package dynamo

import (
	"context"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/pkg/errors"

	"github.com/okian/cfpboard/internal/adapters/repository"
	"github.com/okian/cfpboard/internal/domain/model"
	"github.com/okian/cfpboard/internal/domain/user"
	"github.com/okian/cfpboard/pkg/metrics"
)

const storeLabel = "dynamodb"

// API is the subset of *dynamodb.Client the store calls.
type API interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, opts ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, opts ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Config selects region, endpoint and table names.
type Config struct {
	Region      string
	Endpoint    string // local DynamoDB or LocalStack
	TablePrefix string
}

// Tables holds the table names for each entity.
type Tables struct {
	Votes       string
	Reviews     string
	Submissions string
	Users       string
}

// TablesFor derives table names from a prefix.
func TablesFor(prefix string) Tables {
	return Tables{
		Votes:       prefix + "votes",
		Reviews:     prefix + "reviews",
		Submissions: prefix + "submissions",
		Users:       prefix + "users",
	}
}

// Store implements repository.Store.
type Store struct {
	client API
	tables Tables
}

var _ repository.Store = (*Store)(nil)

// Open loads the default AWS config chain and returns a store.
func Open(ctx context.Context, c Config) (*Store, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if c.Region != "" {
		opts = append(opts, awsconfig.WithRegion(c.Region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "load aws config")
	}
	client := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if c.Endpoint != "" {
			o.BaseEndpoint = aws.String(c.Endpoint)
		}
	})
	return New(client, TablesFor(c.TablePrefix)), nil
}

// New wraps an existing client.
func New(client API, tables Tables) *Store {
	return &Store{client: client, tables: tables}
}

// Close is a no-op; the SDK client holds no connections to release.
func (s *Store) Close() error { return nil }

func observe(op string, start time.Time, err *error) {
	metrics.ObserveStoreOperation(storeLabel, op, start, *err)
}

func key(pk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"PK": &types.AttributeValueMemberS{Value: pk}}
}

func compositeKey(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return true
	}
	var tce *types.TransactionCanceledException
	return errors.As(err, &tce)
}

// getItem loads one item into out, returning ErrNotFound when absent.
func (s *Store) getItem(ctx context.Context, table string, k map[string]types.AttributeValue, out any) error {
	res, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{TableName: aws.String(table), Key: k, ConsistentRead: aws.Bool(true)})
	if err != nil {
		return err
	}
	if res.Item == nil {
		return repository.ErrNotFound
	}
	return attributevalue.UnmarshalMap(res.Item, out)
}

// scanAll pages through a table.
func (s *Store) scanAll(ctx context.Context, in *dynamodb.ScanInput) ([]map[string]types.AttributeValue, error) {
	var items []map[string]types.AttributeValue
	for {
		out, err := s.client.Scan(ctx, in)
		if err != nil {
			return nil, err
		}
		items = append(items, out.Items...)
		if len(out.LastEvaluatedKey) == 0 {
			return items, nil
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

func (s *Store) UpsertVote(ctx context.Context, v model.WeightVote) (_ model.WeightVote, err error) {
	defer observe("upsert_vote", time.Now(), &err)
	var old voteRecord
	switch err = s.getItem(ctx, s.tables.Votes, key(v.MemberID), &old); {
	case err == nil:
		v.CreatedAt = old.CreatedAt
	case !errors.Is(err, repository.ErrNotFound):
		return model.WeightVote{}, errors.Wrap(err, "read vote")
	}
	item, err := attributevalue.MarshalMap(voteToRecord(v))
	if err != nil {
		return model.WeightVote{}, errors.Wrap(err, "marshal vote")
	}
	if _, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{TableName: aws.String(s.tables.Votes), Item: item}); err != nil {
		return model.WeightVote{}, errors.Wrap(err, "put vote")
	}
	return v, nil
}

func (s *Store) GetVote(ctx context.Context, memberID string) (model.WeightVote, error) {
	var r voteRecord
	if err := s.getItem(ctx, s.tables.Votes, key(memberID), &r); err != nil {
		return model.WeightVote{}, err
	}
	return r.model(), nil
}

func (s *Store) ListVotes(ctx context.Context) (_ []model.WeightVote, err error) {
	defer observe("list_votes", time.Now(), &err)
	items, err := s.scanAll(ctx, &dynamodb.ScanInput{TableName: aws.String(s.tables.Votes), ConsistentRead: aws.Bool(true)})
	if err != nil {
		return nil, errors.Wrap(err, "scan votes")
	}
	var recs []voteRecord
	if err = attributevalue.UnmarshalListOfMaps(items, &recs); err != nil {
		return nil, errors.Wrap(err, "unmarshal votes")
	}
	out := make([]model.WeightVote, len(recs))
	for i, r := range recs {
		out[i] = r.model()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MemberID < out[j].MemberID })
	return out, nil
}

func (s *Store) DeleteVote(ctx context.Context, memberID string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(s.tables.Votes),
		Key:                 key(memberID),
		ConditionExpression: aws.String("attribute_exists(PK)"),
	})
	if isConditionFailed(err) {
		return repository.ErrNotFound
	}
	return err
}

func (s *Store) UpsertReview(ctx context.Context, r model.Review) (_ model.Review, err error) {
	defer observe("upsert_review", time.Now(), &err)
	var sub submissionRecord
	if err = s.getItem(ctx, s.tables.Submissions, key(r.SubmissionID), &sub); err != nil {
		return model.Review{}, err
	}
	var old reviewRecord
	switch err = s.getItem(ctx, s.tables.Reviews, compositeKey(r.SubmissionID, r.ReviewerID), &old); {
	case err == nil:
		r.CreatedAt = old.CreatedAt
	case !errors.Is(err, repository.ErrNotFound):
		return model.Review{}, errors.Wrap(err, "read review")
	}
	item, err := attributevalue.MarshalMap(reviewToRecord(r))
	if err != nil {
		return model.Review{}, errors.Wrap(err, "marshal review")
	}
	if _, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{TableName: aws.String(s.tables.Reviews), Item: item}); err != nil {
		return model.Review{}, errors.Wrap(err, "put review")
	}
	return r, nil
}

func (s *Store) GetReview(ctx context.Context, k model.ReviewKey) (model.Review, error) {
	var r reviewRecord
	if err := s.getItem(ctx, s.tables.Reviews, compositeKey(k.SubmissionID, k.ReviewerID), &r); err != nil {
		return model.Review{}, err
	}
	return r.model(), nil
}

// ListReviews queries by partition when the submission is known and scans
// otherwise.
func (s *Store) ListReviews(ctx context.Context, f model.ReviewFilter) (_ []model.Review, err error) {
	defer observe("list_reviews", time.Now(), &err)
	var items []map[string]types.AttributeValue
	if f.SubmissionID != "" {
		items, err = s.queryReviews(ctx, f.SubmissionID)
	} else {
		items, err = s.scanAll(ctx, &dynamodb.ScanInput{TableName: aws.String(s.tables.Reviews), ConsistentRead: aws.Bool(true)})
	}
	if err != nil {
		return nil, errors.Wrap(err, "read reviews")
	}
	var recs []reviewRecord
	if err = attributevalue.UnmarshalListOfMaps(items, &recs); err != nil {
		return nil, errors.Wrap(err, "unmarshal reviews")
	}
	out := make([]model.Review, 0, len(recs))
	for _, r := range recs {
		if m := r.model(); f.Matches(m) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SubmissionID != out[j].SubmissionID {
			return out[i].SubmissionID < out[j].SubmissionID
		}
		return out[i].ReviewerID < out[j].ReviewerID
	})
	return out, nil
}

func (s *Store) queryReviews(ctx context.Context, submissionID string) ([]map[string]types.AttributeValue, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(s.tables.Reviews),
		KeyConditionExpression: aws.String("PK = :sub"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":sub": &types.AttributeValueMemberS{Value: submissionID},
		},
		ConsistentRead: aws.Bool(true),
	}
	var items []map[string]types.AttributeValue
	for {
		out, err := s.client.Query(ctx, in)
		if err != nil {
			return nil, err
		}
		items = append(items, out.Items...)
		if len(out.LastEvaluatedKey) == 0 {
			return items, nil
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

func (s *Store) CreateSubmission(ctx context.Context, sub model.Submission) (err error) {
	defer observe("create_submission", time.Now(), &err)
	item, err := attributevalue.MarshalMap(submissionToRecord(sub))
	if err != nil {
		return errors.Wrap(err, "marshal submission")
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tables.Submissions),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if isConditionFailed(err) {
		return repository.ErrConflict
	}
	return err
}

func (s *Store) GetSubmission(ctx context.Context, id string) (model.Submission, error) {
	var r submissionRecord
	if err := s.getItem(ctx, s.tables.Submissions, key(id), &r); err != nil {
		return model.Submission{}, err
	}
	return r.model(), nil
}

func (s *Store) ListSubmissions(ctx context.Context) (_ []model.Submission, err error) {
	defer observe("list_submissions", time.Now(), &err)
	items, err := s.scanAll(ctx, &dynamodb.ScanInput{TableName: aws.String(s.tables.Submissions), ConsistentRead: aws.Bool(true)})
	if err != nil {
		return nil, errors.Wrap(err, "scan submissions")
	}
	var recs []submissionRecord
	if err = attributevalue.UnmarshalListOfMaps(items, &recs); err != nil {
		return nil, errors.Wrap(err, "unmarshal submissions")
	}
	out := make([]model.Submission, len(recs))
	for i, r := range recs {
		out[i] = r.model()
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) SetScreening(ctx context.Context, id string, sc model.Screening) error {
	av, err := attributevalue.Marshal(screeningRecord(sc))
	if err != nil {
		return errors.Wrap(err, "marshal screening")
	}
	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tables.Submissions),
		Key:                       key(id),
		UpdateExpression:          aws.String("SET Screening = :s"),
		ConditionExpression:       aws.String("attribute_exists(PK)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":s": av},
	})
	if isConditionFailed(err) {
		return repository.ErrNotFound
	}
	return err
}

func (s *Store) UpdateSubmission(ctx context.Context, sub model.Submission) (err error) {
	defer observe("update_submission", time.Now(), &err)
	values, err := attributevalue.MarshalMap(map[string]any{
		":t": sub.Title, ":a": sub.Abstract, ":k": sub.Takeaways, ":l": sub.Level,
		":f": sub.Format, ":s": string(sub.Status), ":r": sub.Revision, ":u": sub.UpdatedAt,
	})
	if err != nil {
		return errors.Wrap(err, "marshal submission update")
	}
	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.tables.Submissions),
		Key:                 key(sub.ID),
		UpdateExpression:    aws.String("SET #t = :t, #a = :a, #k = :k, #l = :l, #f = :f, #s = :s, #r = :r, #u = :u"),
		ConditionExpression: aws.String("attribute_exists(PK)"),
		ExpressionAttributeNames: map[string]string{
			"#t": "Title", "#a": "Abstract", "#k": "Takeaways", "#l": "Level",
			"#f": "Format", "#s": "Status", "#r": "Revision", "#u": "UpdatedAt",
		},
		ExpressionAttributeValues: values,
	})
	if isConditionFailed(err) {
		return repository.ErrNotFound
	}
	return errors.Wrap(err, "update submission")
}

// CreateUser writes the user and its email reservation in one transaction.
func (s *Store) CreateUser(ctx context.Context, u user.User) (err error) {
	defer observe("create_user", time.Now(), &err)
	rec := userToRecord(u)
	userItem, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return errors.Wrap(err, "marshal user")
	}
	emailItem, err := attributevalue.MarshalMap(emailRecord{Key: emailKey(rec.Email), Kind: kindEmail, UserID: rec.ID})
	if err != nil {
		return errors.Wrap(err, "marshal email")
	}
	_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{TableName: aws.String(s.tables.Users), Item: userItem, ConditionExpression: aws.String("attribute_not_exists(PK)")}},
			{Put: &types.Put{TableName: aws.String(s.tables.Users), Item: emailItem, ConditionExpression: aws.String("attribute_not_exists(PK)")}},
		},
	})
	if isConditionFailed(err) {
		return repository.ErrConflict
	}
	return err
}

func (s *Store) GetUser(ctx context.Context, id string) (user.User, error) {
	var r userRecord
	if err := s.getItem(ctx, s.tables.Users, key(id), &r); err != nil {
		return user.User{}, err
	}
	if r.Kind != kindUser {
		return user.User{}, repository.ErrNotFound
	}
	return r.model(), nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	var e emailRecord
	if err := s.getItem(ctx, s.tables.Users, key(emailKey(user.NormalizeEmail(email))), &e); err != nil {
		return user.User{}, err
	}
	return s.GetUser(ctx, e.UserID)
}

func (s *Store) ListUsers(ctx context.Context) ([]user.User, error) {
	items, err := s.scanAll(ctx, &dynamodb.ScanInput{
		TableName:                 aws.String(s.tables.Users),
		FilterExpression:          aws.String("#k = :k"),
		ExpressionAttributeNames:  map[string]string{"#k": "Kind"},
		ExpressionAttributeValues: map[string]types.AttributeValue{":k": &types.AttributeValueMemberS{Value: kindUser}},
		ConsistentRead:            aws.Bool(true),
	})
	if err != nil {
		return nil, errors.Wrap(err, "scan users")
	}
	var recs []userRecord
	if err := attributevalue.UnmarshalListOfMaps(items, &recs); err != nil {
		return nil, errors.Wrap(err, "unmarshal users")
	}
	out := make([]user.User, len(recs))
	for i, r := range recs {
		out[i] = r.model()
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) UpdateUser(ctx context.Context, u user.User) error {
	values := map[string]types.AttributeValue{
		":n": &types.AttributeValueMemberS{Value: u.Name},
		":r": &types.AttributeValueMemberS{Value: string(u.Role)},
		":a": &types.AttributeValueMemberBOOL{Value: u.Active},
	}
	updated, err := attributevalue.Marshal(u.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, "marshal time")
	}
	values[":u"] = updated
	expr := "SET #n = :n, #r = :r, Active = :a, UpdatedAt = :u"
	if len(u.PasswordHash) > 0 {
		values[":p"] = &types.AttributeValueMemberB{Value: u.PasswordHash}
		expr += ", PasswordHash = :p"
	}
	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tables.Users),
		Key:                       key(u.ID),
		UpdateExpression:          aws.String(expr),
		ConditionExpression:       aws.String("attribute_exists(PK)"),
		ExpressionAttributeNames:  map[string]string{"#n": "Name", "#r": "Role"},
		ExpressionAttributeValues: values,
	})
	if isConditionFailed(err) {
		return repository.ErrNotFound
	}
	return err
}

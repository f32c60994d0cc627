// Package seed loads a committee scenario into a running service over HTTP
// and checks the leaderboard it computes against a local recomputation.
package seed

import (
	"fmt"
	"io"
	"math/rand"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/okian/cfpboard/internal/domain/criteria"
	"github.com/okian/cfpboard/internal/domain/ranking"
	"github.com/okian/cfpboard/internal/domain/user"
)

// DefaultPassword is used for scenario accounts that do not set one.
const DefaultPassword = "seed-password-1"

// ErrScenario marks an invalid scenario file.
var ErrScenario = errors.New("invalid scenario")

// Scenario is the YAML input. Scores and votes list the six criteria in
// order: relevance, originality, depth, clarity, takeaways, engagement.
type Scenario struct {
	// Admin must already exist, see cfpadmin createuser.
	Admin       Account      `yaml:"admin"`
	Reviewers   []Reviewer   `yaml:"reviewers"`
	Speakers    []Account    `yaml:"speakers"`
	Submissions []Submission `yaml:"submissions"`
	Reviews     []Review     `yaml:"reviews"`
	Random      *Random      `yaml:"random,omitempty"`
	Bands       *Bands       `yaml:"bands,omitempty"`
}

// Account is a login.
type Account struct {
	Email    string `yaml:"email"`
	Name     string `yaml:"name"`
	Password string `yaml:"password"`
}

// Reviewer is a committee member and their optional weight vote.
type Reviewer struct {
	Account `yaml:",inline"`
	Vote    []int `yaml:"vote,omitempty"`
}

// Submission is a proposal. Key names it within the scenario.
type Submission struct {
	Key       string `yaml:"key"`
	Speaker   string `yaml:"speaker"`
	Title     string `yaml:"title"`
	Abstract  string `yaml:"abstract"`
	Takeaways string `yaml:"takeaways"`
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
}

// Review scores a submission. A later review of the same pair replaces the
// earlier one, as the service does.
type Review struct {
	Reviewer   string `yaml:"reviewer"`
	Submission string `yaml:"submission"`
	Scores     []int  `yaml:"scores"`
	Notes      string `yaml:"notes,omitempty"`
}

// Random asks for generated accounts, proposals and reviews in addition to
// the listed ones.
type Random struct {
	Reviewers   int     `yaml:"reviewers"`
	Speakers    int     `yaml:"speakers"`
	Submissions int     `yaml:"submissions"`
	Coverage    float64 `yaml:"coverage"` // share of pairs reviewed, default 0.8
	Seed        int64   `yaml:"seed"`
}

// Bands must match the server's band_strong and band_borderline.
type Bands struct {
	Strong     float64 `yaml:"strong"`
	Borderline float64 `yaml:"borderline"`
}

// Parse decodes a scenario, expands its random section and validates it.
func Parse(r io.Reader) (*Scenario, error) {
	var sc Scenario
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil {
		return nil, errors.Wrapf(ErrScenario, "decoding: %v", err)
	}
	sc.Expand()
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Ranker returns a ranker with the scenario's bands.
func (sc *Scenario) Ranker() *ranking.Ranker {
	if sc.Bands == nil {
		return ranking.New()
	}
	return ranking.New(ranking.WithBands(sc.Bands.Strong, sc.Bands.Borderline))
}

// Expand appends the generated part of the scenario and fills in default
// passwords. Generation is deterministic for a given seed.
func (sc *Scenario) Expand() {
	if r := sc.Random; r != nil {
		rng := rand.New(rand.NewSource(r.Seed))
		coverage := r.Coverage
		if coverage <= 0 || coverage > 1 {
			coverage = 0.8
		}
		first := len(sc.Reviewers)
		for i := 0; i < r.Reviewers; i++ {
			vote := make([]int, criteria.Count)
			for c := range vote {
				vote[c] = 1 + rng.Intn(6)
			}
			sc.Reviewers = append(sc.Reviewers, Reviewer{
				Account: Account{Email: fmt.Sprintf("reviewer-%d-%d@seed.test", r.Seed, i), Name: fmt.Sprintf("Reviewer %d", i)},
				Vote:    vote,
			})
		}
		speakers := make([]string, 0, r.Speakers)
		for i := 0; i < r.Speakers; i++ {
			a := Account{Email: fmt.Sprintf("speaker-%d-%d@seed.test", r.Seed, i), Name: fmt.Sprintf("Speaker %d", i)}
			sc.Speakers = append(sc.Speakers, a)
			speakers = append(speakers, a.Email)
		}
		if len(speakers) == 0 && len(sc.Speakers) > 0 {
			speakers = append(speakers, sc.Speakers[0].Email)
		}
		levels := []string{"beginner", "intermediate", "advanced"}
		formats := []string{"talk", "workshop", "lightning"}
		for i := 0; i < r.Submissions && len(speakers) > 0; i++ {
			key := fmt.Sprintf("random-%d", i)
			sc.Submissions = append(sc.Submissions, Submission{
				Key:       key,
				Speaker:   speakers[i%len(speakers)],
				Title:     fmt.Sprintf("%s %s number %d", pick(rng, topics), pick(rng, angles), i),
				Abstract:  "A generated proposal used to exercise the committee workflow.",
				Takeaways: "Generated takeaways.",
				Level:     levels[rng.Intn(len(levels))],
				Format:    formats[rng.Intn(len(formats))],
			})
			for _, rev := range sc.Reviewers[first:] {
				if rng.Float64() >= coverage {
					continue
				}
				scores := make([]int, criteria.Count)
				for c := range scores {
					scores[c] = rng.Intn(6)
				}
				sc.Reviews = append(sc.Reviews, Review{Reviewer: rev.Email, Submission: key, Scores: scores})
			}
		}
	}
	for i := range sc.Reviewers {
		defaultPassword(&sc.Reviewers[i].Account)
	}
	for i := range sc.Speakers {
		defaultPassword(&sc.Speakers[i])
	}
}

var (
	topics = []string{"Go", "Postgres", "Kubernetes", "Observability", "Testing", "Queues", "Caching"}
	angles = []string{"at scale", "in practice", "without tears", "from scratch", "under load"}
)

func pick(rng *rand.Rand, from []string) string { return from[rng.Intn(len(from))] }

func defaultPassword(a *Account) {
	if a.Password == "" {
		a.Password = DefaultPassword
	}
	if a.Name == "" {
		a.Name, _, _ = strings.Cut(a.Email, "@")
	}
}

// Validate checks references and score ranges so failures surface before
// any request is sent.
func (sc *Scenario) Validate() error {
	var problems []string
	add := func(format string, args ...any) { problems = append(problems, fmt.Sprintf(format, args...)) }

	if sc.Admin.Email == "" || sc.Admin.Password == "" {
		add("admin email and password are required")
	}
	reviewers := map[string]bool{}
	for i, r := range sc.Reviewers {
		if r.Email == "" {
			add("reviewers[%d]: email is required", i)
		}
		reviewers[user.NormalizeEmail(r.Email)] = true
		if r.Vote != nil && !inRange(r.Vote, 1, 6) {
			add("reviewers[%d]: vote needs %d values in 1..6", i, criteria.Count)
		}
	}
	speakers := map[string]bool{}
	for _, s := range sc.Speakers {
		speakers[user.NormalizeEmail(s.Email)] = true
	}
	subs := map[string]bool{}
	for i, s := range sc.Submissions {
		switch {
		case s.Key == "":
			add("submissions[%d]: key is required", i)
		case subs[s.Key]:
			add("submissions[%d]: duplicate key %q", i, s.Key)
		}
		subs[s.Key] = true
		if !speakers[user.NormalizeEmail(s.Speaker)] {
			add("submissions[%d]: unknown speaker %q", i, s.Speaker)
		}
	}
	for i, r := range sc.Reviews {
		if !reviewers[user.NormalizeEmail(r.Reviewer)] {
			add("reviews[%d]: unknown reviewer %q", i, r.Reviewer)
		}
		if !subs[r.Submission] {
			add("reviews[%d]: unknown submission %q", i, r.Submission)
		}
		if !inRange(r.Scores, 0, 5) {
			add("reviews[%d]: scores need %d values in 0..5", i, criteria.Count)
		}
	}
	if b := sc.Bands; b != nil && b.Strong <= b.Borderline {
		add("bands: strong must exceed borderline")
	}
	if len(problems) > 0 {
		return errors.Wrap(ErrScenario, strings.Join(problems, "; "))
	}
	return nil
}

func inRange(vals []int, lo, hi int) bool {
	if len(vals) != criteria.Count {
		return false
	}
	for _, v := range vals {
		if v < lo || v > hi {
			return false
		}
	}
	return true
}

func toScores(vals []int) criteria.Scores {
	var s criteria.Scores
	copy(s[:], vals)
	return s
}

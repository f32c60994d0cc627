// Package screening runs advisory checks on submissions: machine-written
// abstracts and near-duplicate titles. Verdicts never change scores.
package screening

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/okian/cfpboard/internal/domain/model"
)

// ErrUnparseableVerdict is returned when a model answer holds no JSON object.
var ErrUnparseableVerdict = errors.New("screening: unparseable verdict")

// Target is the submission under check plus the corpus it is compared with.
type Target struct {
	Submission model.Submission
	Corpus     []model.Submission
}

// Detector produces a verdict for one target.
type Detector interface {
	Name() string
	Screen(ctx context.Context, t Target) (model.Screening, error)
}

// Verdict is the answer a chat model is asked to give.
type Verdict struct {
	Suspected  bool    `json:"suspected"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// ParseVerdict extracts the first JSON object from raw, tolerating code
// fences and surrounding prose. Confidence is clamped to [0,1].
func ParseVerdict(raw string) (Verdict, error) {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end <= start {
		return Verdict{}, ErrUnparseableVerdict
	}
	var v Verdict
	if err := json.Unmarshal([]byte(raw[start:end+1]), &v); err != nil {
		return Verdict{}, fmt.Errorf("%w: %v", ErrUnparseableVerdict, err)
	}
	switch {
	case v.Confidence < 0:
		v.Confidence = 0
	case v.Confidence > 1:
		v.Confidence = 1
	}
	v.Reason = strings.TrimSpace(v.Reason)
	return v, nil
}

type chain struct {
	detectors []Detector
	now       func() time.Time
}

// Chain runs every detector and merges their verdicts. It fails only when
// all detectors fail; partial failures are noted in the reason.
func Chain(detectors ...Detector) Detector {
	return &chain{detectors: detectors, now: time.Now}
}

func (c *chain) Name() string {
	names := make([]string, len(c.detectors))
	for i, d := range c.detectors {
		names[i] = d.Name()
	}
	return strings.Join(names, "+")
}

func (c *chain) Screen(ctx context.Context, t Target) (model.Screening, error) {
	out := model.Screening{Revision: t.Submission.Revision}
	var (
		errs      []error
		reasons   []string
		providers []string
		dups      = map[string]struct{}{}
	)
	for _, d := range c.detectors {
		if err := ctx.Err(); err != nil {
			return model.Screening{}, err
		}
		s, err := d.Screen(ctx, t)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", d.Name(), err))
			reasons = append(reasons, d.Name()+" failed")
			continue
		}
		out.Suspected = out.Suspected || s.Suspected
		if s.Confidence > out.Confidence {
			out.Confidence = s.Confidence
		}
		if s.Reason != "" {
			reasons = append(reasons, s.Reason)
		}
		if s.Provider != "" {
			providers = append(providers, s.Provider)
		}
		for _, id := range s.Duplicates {
			dups[id] = struct{}{}
		}
	}
	if len(c.detectors) > 0 && len(errs) == len(c.detectors) {
		return model.Screening{}, errors.Join(errs...)
	}
	for id := range dups {
		out.Duplicates = append(out.Duplicates, id)
	}
	sort.Strings(out.Duplicates)
	out.Reason = strings.Join(reasons, "; ")
	out.Provider = strings.Join(providers, "+")
	out.CheckedAt = c.now().UTC()
	return out, nil
}

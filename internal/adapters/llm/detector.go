package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/okian/cfpboard/internal/domain/model"
	"github.com/okian/cfpboard/internal/domain/screening"
)

const detectorSystem = `You review conference talk proposals. Decide whether the proposal text
reads as machine-generated rather than written by the speaker. Answer with a
single JSON object and nothing else:
{"suspected": true|false, "confidence": 0.0-1.0, "reason": "<one sentence>"}`

// Detector asks a chat model whether a submission reads as machine-written.
type Detector struct {
	client Client
}

// NewDetector returns a screening detector backed by c.
func NewDetector(c Client) *Detector {
	return &Detector{client: c}
}

func (d *Detector) Name() string { return "llm" }

func (d *Detector) Screen(ctx context.Context, t screening.Target) (model.Screening, error) {
	raw, err := d.client.Complete(ctx, Request{System: detectorSystem, Prompt: prompt(t.Submission)})
	if err != nil {
		return model.Screening{}, err
	}
	v, err := screening.ParseVerdict(raw)
	if err != nil {
		return model.Screening{}, err
	}
	return model.Screening{
		Suspected:  v.Suspected,
		Confidence: v.Confidence,
		Reason:     v.Reason,
		Provider:   d.client.Provider() + "/" + d.client.Model(),
	}, nil
}

func prompt(s model.Submission) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", s.Title)
	fmt.Fprintf(&b, "Level: %s\nFormat: %s\n\n", s.Level, s.Format)
	fmt.Fprintf(&b, "Abstract:\n%s\n\n", s.Abstract)
	fmt.Fprintf(&b, "Takeaways:\n%s\n", s.Takeaways)
	return b.String()
}

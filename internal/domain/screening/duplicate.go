package screening

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"

	"github.com/okian/cfpboard/internal/domain/model"
)

// DefaultDuplicateThreshold is the title similarity at which two submissions
// are reported as duplicates.
const DefaultDuplicateThreshold = 0.85

// DuplicateDetector flags submissions whose titles are near-identical to
// another submission's.
type DuplicateDetector struct {
	threshold float64
}

// NewDuplicateDetector returns a detector using threshold, or the default
// when threshold is outside (0,1].
func NewDuplicateDetector(threshold float64) *DuplicateDetector {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultDuplicateThreshold
	}
	return &DuplicateDetector{threshold: threshold}
}

func (d *DuplicateDetector) Name() string { return "duplicate" }

func (d *DuplicateDetector) Screen(ctx context.Context, t Target) (model.Screening, error) {
	title := d.normalize(t.Submission.Title)
	var out model.Screening
	if title == "" {
		return out, nil
	}
	for _, other := range t.Corpus {
		if other.ID == t.Submission.ID || other.Status == model.StatusWithdrawn {
			continue
		}
		if err := ctx.Err(); err != nil {
			return model.Screening{}, err
		}
		if Similarity(title, d.normalize(other.Title)) >= d.threshold {
			out.Duplicates = append(out.Duplicates, other.ID)
		}
	}
	if len(out.Duplicates) > 0 {
		out.Reason = "title matches another submission"
	}
	return out, nil
}

// normalize folds case and collapses whitespace. A Caser holds state, so
// each call gets its own.
func (d *DuplicateDetector) normalize(s string) string {
	return strings.Join(strings.Fields(cases.Fold().String(s)), " ")
}

// Similarity is 1 minus the Levenshtein distance over the longer length,
// counted in runes. Two empty strings are not similar.
func Similarity(a, b string) float64 {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	longest := max(la, lb)
	if longest == 0 {
		return 0
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

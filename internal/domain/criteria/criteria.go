// Package criteria names the six fixed evaluation dimensions and the weight
// vector applied over them.
package criteria

// Criterion is one evaluation dimension.
type Criterion int

const (
	Relevance Criterion = iota
	Originality
	Depth
	Clarity
	Takeaways
	Engagement
)

// Count is the number of criteria.
const Count = 6

// All lists every criterion in canonical order.
var All = [Count]Criterion{Relevance, Originality, Depth, Clarity, Takeaways, Engagement}

var names = [Count]string{"relevance", "originality", "depth", "clarity", "takeaways", "engagement"}

func (c Criterion) String() string {
	if c < 0 || int(c) >= Count {
		return "unknown"
	}
	return names[c]
}

// Parse maps a lowercase criterion name back to its value.
func Parse(name string) (Criterion, bool) {
	for i, n := range names {
		if n == name {
			return Criterion(i), true
		}
	}
	return 0, false
}

// DefaultWeight applies to each criterion when no committee votes exist.
const DefaultWeight = 1.0

// Weights holds one float per criterion.
type Weights struct {
	Relevance   float64 `json:"relevance"`
	Originality float64 `json:"originality"`
	Depth       float64 `json:"depth"`
	Clarity     float64 `json:"clarity"`
	Takeaways   float64 `json:"takeaways"`
	Engagement  float64 `json:"engagement"`
}

// Default returns DefaultWeight for every criterion.
func Default() Weights {
	return FromArray([Count]float64{DefaultWeight, DefaultWeight, DefaultWeight, DefaultWeight, DefaultWeight, DefaultWeight})
}

// FromArray builds Weights in canonical criterion order.
func FromArray(v [Count]float64) Weights {
	return Weights{
		Relevance:   v[Relevance],
		Originality: v[Originality],
		Depth:       v[Depth],
		Clarity:     v[Clarity],
		Takeaways:   v[Takeaways],
		Engagement:  v[Engagement],
	}
}

// Array returns the weights in canonical criterion order.
func (w Weights) Array() [Count]float64 {
	return [Count]float64{w.Relevance, w.Originality, w.Depth, w.Clarity, w.Takeaways, w.Engagement}
}

// Value returns the weight for c.
func (w Weights) Value(c Criterion) float64 {
	if c < 0 || int(c) >= Count {
		return 0
	}
	return w.Array()[c]
}

// Sum adds all six weights.
func (w Weights) Sum() float64 {
	var s float64
	for _, v := range w.Array() {
		s += v
	}
	return s
}

// Scores is an integer value per criterion, used by both votes and reviews.
type Scores [Count]int

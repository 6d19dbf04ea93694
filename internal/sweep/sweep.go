// Package sweep describes the parameter grid walked by cosweep: two
// inclusive integer ranges, the trials they produce, and the positional
// arguments handed to the co-simulation program for each trial.
package sweep

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Range is an inclusive integer range.
type Range struct {
	From int `mapstructure:"from" yaml:"from" json:"from"`
	To   int `mapstructure:"to" yaml:"to" json:"to"`
}

// NewRange returns the range [from, to]. It fails when from > to.
func NewRange(from, to int) (Range, error) {
	r := Range{From: from, To: to}
	if err := r.Validate(); err != nil {
		return Range{}, err
	}
	return r, nil
}

func (r Range) Validate() error {
	if r.From > r.To {
		return fmt.Errorf("range [%d, %d] is empty: from must be <= to", r.From, r.To)
	}
	return nil
}

// Len returns the number of integers in the range.
func (r Range) Len() int {
	if r.From > r.To {
		return 0
	}
	return r.To - r.From + 1
}

func (r Range) String() string {
	return fmt.Sprintf("[%d..%d]", r.From, r.To)
}

// Trial is one (outer, inner) combination of the sweep.
type Trial struct {
	Seq   int // 0-based position in the plan
	Outer int
	Inner int
}

func (t Trial) String() string {
	return fmt.Sprintf("outer=%d inner=%d", t.Outer, t.Inner)
}

// Plan is the nested grid: every inner value for each outer value.
type Plan struct {
	Outer Range
	Inner Range
}

// Len returns the number of trials in the plan.
func (p Plan) Len() int {
	return p.Outer.Len() * p.Inner.Len()
}

// Trials lists the plan in execution order: outer ascending, and inner
// ascending within each outer step.
func (p Plan) Trials() []Trial {
	trials := make([]Trial, 0, p.Len())
	seq := 0
	for i := p.Outer.From; i <= p.Outer.To; i++ {
		for trail := p.Inner.From; trail <= p.Inner.To; trail++ {
			trials = append(trials, Trial{Seq: seq, Outer: i, Inner: trail})
			seq++
		}
	}
	return trials
}

// Params are the literals shared by every invocation.
type Params struct {
	OutputDir string
	Lower     float64
	Upper     float64
}

// Args returns the five positional arguments for a trial:
// output directory, inner index, lower bound, upper bound, outer index.
func (p Params) Args(t Trial) []string {
	return []string{
		p.OutputDir,
		strconv.Itoa(t.Inner),
		FormatBound(p.Lower),
		FormatBound(p.Upper),
		strconv.Itoa(t.Outer),
	}
}

// FormatBound renders a bound as a decimal literal that always keeps a
// fractional part, so 0 becomes "0.0" and 1000 becomes "1000.0".
func FormatBound(v float64) string {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

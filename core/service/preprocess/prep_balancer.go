package preprocess

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"prep_server/core/domain"
	"prep_server/pkg/apperr"
)

type sampleKind int

const (
	sampleByCount sampleKind = iota + 1
	sampleByFraction
)

// SampleSpec says how many rows of a class to drop: a fixed count or a fraction.
// The zero value is invalid; build one with ByCount, ByFraction or NewSampleSpec.
type SampleSpec struct {
	kind sampleKind
	n    int
	frac float64
}

// ByCount drops n rows (or every row when the class has fewer).
func ByCount(n int) SampleSpec {
	return SampleSpec{kind: sampleByCount, n: n}
}

// ByFraction drops floor(frac * count) rows.
func ByFraction(frac float64) SampleSpec {
	return SampleSpec{kind: sampleByFraction, frac: frac}
}

// NewSampleSpec builds a spec from optional arguments. Exactly one must be set.
func NewSampleSpec(n *int, frac *float64) (SampleSpec, error) {
	switch {
	case n != nil && frac != nil:
		return SampleSpec{}, apperr.InvalidArgument("n/frac", "n and frac are mutually exclusive")
	case n != nil:
		spec := ByCount(*n)
		return spec, spec.Validate()
	case frac != nil:
		spec := ByFraction(*frac)
		return spec, spec.Validate()
	default:
		return SampleSpec{}, apperr.InvalidArgument("n/frac", "one of n or frac is required")
	}
}

// Validate rejects negative counts and fractions outside [0, 1].
func (s SampleSpec) Validate() error {
	switch s.kind {
	case sampleByCount:
		if s.n < 0 {
			return apperr.InvalidArgument("n", fmt.Sprintf("must be >= 0, got %d", s.n))
		}
	case sampleByFraction:
		if math.IsNaN(s.frac) || s.frac < 0 || s.frac > 1 {
			return apperr.InvalidArgument("frac", fmt.Sprintf("must be within [0, 1], got %v", s.frac))
		}
	default:
		return apperr.InvalidArgument("sample", "empty sample spec")
	}
	return nil
}

// Count returns how many of total rows the spec drops.
func (s SampleSpec) Count(total int) int {
	switch s.kind {
	case sampleByCount:
		return min(s.n, total)
	case sampleByFraction:
		return int(math.Floor(s.frac * float64(total)))
	}
	return 0
}

func (s SampleSpec) String() string {
	switch s.kind {
	case sampleByCount:
		return fmt.Sprintf("n=%d", s.n)
	case sampleByFraction:
		return fmt.Sprintf("frac=%g", s.frac)
	}
	return "none"
}

// Undersample drops rows of className chosen uniformly without replacement.
// Remaining rows keep their relative order. A nil seed draws a random one.
// On error the input table is returned untouched.
func Undersample(table domain.RecordTable, className string, spec SampleSpec, seed *int64) (domain.RecordTable, error) {
	if err := spec.Validate(); err != nil {
		return table, err
	}

	label, ok := domain.ParseClassLabel(className)
	if !ok {
		return table, apperr.InvalidArgument("class_name", fmt.Sprintf("unknown class %q", className))
	}

	var classRows []int
	for i, l := range table.Labels() {
		if l == label {
			classRows = append(classRows, i)
		}
	}
	if len(classRows) == 0 {
		return table, apperr.InvalidArgument("class_name", fmt.Sprintf("class %q not present in table", className))
	}

	s := time.Now().UnixNano()
	if seed != nil {
		s = *seed
	}
	rng := rand.New(rand.NewSource(s))

	k := spec.Count(len(classRows))
	drop := make(map[int]struct{}, k)
	for _, p := range rng.Perm(len(classRows))[:k] {
		drop[classRows[p]] = struct{}{}
	}

	return table.Filter(func(i int, _ domain.Record) bool {
		_, dropped := drop[i]
		return !dropped
	}), nil
}

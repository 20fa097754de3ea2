package domain

// ClassLabel is a score bucket. Labels are ordered; Index gives the position.
type ClassLabel string

const (
	Label0To5   ClassLabel = "0-5"
	Label5To25  ClassLabel = "5-25"
	Label25To50 ClassLabel = "25-50"
	Label50Plus ClassLabel = "50+"
)

// ClassLabels lists every label in class-index order.
var ClassLabels = []ClassLabel{Label0To5, Label5To25, Label25To50, Label50Plus}

// NumClasses is the number of score buckets.
var NumClasses = len(ClassLabels)

// ParseClassLabel returns the label for s, if it names one.
func ParseClassLabel(s string) (ClassLabel, bool) {
	l := ClassLabel(s)
	return l, l.Valid()
}

// Valid reports whether l is one of the known labels.
func (l ClassLabel) Valid() bool {
	return l.Index() >= 0
}

// Index returns the class index, or -1 for an unknown label.
func (l ClassLabel) Index() int {
	for i, c := range ClassLabels {
		if c == l {
			return i
		}
	}
	return -1
}

// OneHot encodes the label as a probability vector over ClassLabels.
// Consumers turn it back into an index with argmax.
func (l ClassLabel) OneHot() []float32 {
	vec := make([]float32, NumClasses)
	if idx := l.Index(); idx >= 0 {
		vec[idx] = 1
	}
	return vec
}

// LabelAt returns the label for a class index.
func LabelAt(idx int) (ClassLabel, bool) {
	if idx < 0 || idx >= NumClasses {
		return "", false
	}
	return ClassLabels[idx], true
}

func (l ClassLabel) String() string {
	return string(l)
}

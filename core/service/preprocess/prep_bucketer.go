package preprocess

import "prep_server/core/domain"

// Upper bounds (inclusive) of the score buckets. Scores above the last bound are "50+".
const (
	bound0To5   = 5
	bound5To25  = 25
	bound25To50 = 50
)

// Bucket maps a score to its class label. Negative scores fall into the lowest bucket.
func Bucket(score int) domain.ClassLabel {
	switch {
	case score <= bound0To5:
		return domain.Label0To5
	case score <= bound5To25:
		return domain.Label5To25
	case score <= bound25To50:
		return domain.Label25To50
	default:
		return domain.Label50Plus
	}
}

// BucketTable returns a copy of table with every row's label set from its score.
func BucketTable(table domain.RecordTable) domain.RecordTable {
	return table.Map(func(r domain.Record) domain.Record {
		r.Label = Bucket(r.Score)
		return r
	})
}

// Distribution counts rows per label. Every known label is present, possibly with 0.
func Distribution(table domain.RecordTable) map[domain.ClassLabel]int {
	dist := make(map[domain.ClassLabel]int, domain.NumClasses)
	for _, l := range domain.ClassLabels {
		dist[l] = 0
	}
	for _, l := range table.Labels() {
		if l.Valid() {
			dist[l]++
		}
	}
	return dist
}

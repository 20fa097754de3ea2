package domain

import "time"

// PreparationReport summarizes one dataset build.
type PreparationReport struct {
	ID               string             `json:"id"`
	Split            string             `json:"split"`
	FeatureKey       FeatureKey         `json:"feature_key"`
	CacheHit         bool               `json:"cache_hit"`
	RowsLoaded       int                `json:"rows_loaded"`
	RowsEncoded      int                `json:"rows_encoded"`
	Before           map[ClassLabel]int `json:"before"`
	After            map[ClassLabel]int `json:"after"`
	Undersample      string             `json:"undersample,omitempty"`
	Seed             *int64             `json:"seed,omitempty"`
	EncodeLatencyMap map[string]any     `json:"encode_latency,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
}

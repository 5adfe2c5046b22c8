package reporting

import "time"

// TimeRange filters by call start. A zero bound is open.
type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// SummaryRequest narrows the summary. The zero value summarizes everything indexed.
type SummaryRequest struct {
	Range  TimeRange `json:"range"`
	Region string    `json:"region,omitempty"`
}

type Summary struct {
	Region string `json:"region,omitempty"`

	TotalRecords  int `json:"total_records"`
	VoiceCalls    int `json:"voice_calls"`
	VideoCalls    int `json:"video_calls"`
	DistinctCalls int `json:"distinct_calls"`

	TotalDurationSeconds   float64 `json:"total_duration_seconds"`
	AverageDurationSeconds float64 `json:"average_duration_seconds"`

	TotalEstimatedCost float64 `json:"total_estimated_cost"`
	// Records persisted without an originating lookup result, so without cost.
	MissingCost int `json:"missing_cost"`
	Degraded    int `json:"degraded"`

	ByOriginCountry map[string]int `json:"by_origin_country"`
}

// UnknownCountry buckets records whose originating lookup failed.
const UnknownCountry = "unresolved"

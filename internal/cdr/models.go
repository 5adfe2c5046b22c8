package cdr

import "time"

// CallRecord is one validated row of an ingested CDR batch.
//
// It only exists while its batch is being processed; the raw form is never persisted.
// CallStartTime/CallEndTime keep the text exactly as received, StartedAt/EndedAt carry the
// parsed instants used for derivations.
type CallRecord struct {
	ID            string   `json:"id"`
	CallStartTime string   `json:"callStartTime"`
	CallEndTime   string   `json:"callEndTime"`
	FromNumber    string   `json:"fromNumber"`
	ToNumber      string   `json:"toNumber"`
	CallType      CallType `json:"callType"`
	Region        string   `json:"region"`

	StartedAt time.Time `json:"-"`
	EndedAt   time.Time `json:"-"`
}

type CallType string

const (
	CallTypeVoice CallType = "voice"
	CallTypeVideo CallType = "video"
)

func (t CallType) Valid() bool {
	switch t {
	case CallTypeVoice, CallTypeVideo:
		return true
	default:
		return false
	}
}

// EnrichedCallRecord is a CallRecord plus derived and looked-up fields.
//
// Invariants:
// - Optional fields are nil when the corresponding lookup failed; never zero-valued sentinels.
// - EstimatedCost is set iff the originating lookup succeeded (originator pays).
// - Persisted by upsert keyed on ID in the primary store, appended as-is to the search index.
type EnrichedCallRecord struct {
	CallRecord

	// Duration is (end - start) in seconds, fractional allowed.
	Duration float64 `json:"duration"`

	FromOperator  *string  `json:"fromOperator,omitempty"`
	ToOperator    *string  `json:"toOperator,omitempty"`
	FromCountry   *string  `json:"fromCountry,omitempty"`
	ToCountry     *string  `json:"toCountry,omitempty"`
	EstimatedCost *float64 `json:"estimatedCost,omitempty"`
}

// Degraded reports whether at least one lookup failed for this record.
func (r EnrichedCallRecord) Degraded() bool {
	return r.FromOperator == nil || r.ToOperator == nil
}

// RestoreInstants re-derives StartedAt/EndedAt from the textual timestamps, e.g. after
// decoding a record that was serialized without them.
func (r *CallRecord) RestoreInstants() {
	if t, ok := ParseTimestamp(r.CallStartTime); ok {
		r.StartedAt = t
	}
	if t, ok := ParseTimestamp(r.CallEndTime); ok {
		r.EndedAt = t
	}
}

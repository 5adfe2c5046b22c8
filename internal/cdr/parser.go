package cdr

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

// Header is the exact first line every batch must start with.
const Header = "id,callStartTime,callEndTime,fromNumber,toNumber,callType,region"

const fieldCount = 7

// Parse errors. The messages are part of the ingest acknowledgment contract; keep them stable.
var (
	ErrEmptyPayload   = errors.New("Empty payload")
	ErrInvalidHeader  = errors.New("Invalid CSV header")
	ErrNoValidRecords = errors.New("No valid records found")
)

// '+', a leading digit 1-9, 7-15 digits in total.
var e164 = regexp.MustCompile(`^\+[1-9]\d{6,14}$`)

// Accepted timestamp layouts, tried in order after normalization. Zone-less forms are read
// as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04Z0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseBatch turns a raw CSV payload into validated call records.
//
// Whole-batch failures: empty payload, header mismatch, or no surviving rows.
// Individual rows that fail validation are dropped silently; survivors keep their relative order.
func ParseBatch(payload string) ([]CallRecord, error) {
	trimmed := strings.TrimSpace(payload)
	if trimmed == "" {
		return nil, ErrEmptyPayload
	}

	lines := strings.Split(trimmed, "\n")
	if strings.TrimSpace(lines[0]) != Header {
		return nil, ErrInvalidHeader
	}

	records := make([]CallRecord, 0, len(lines)-1)
	for _, line := range lines[1:] {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) != fieldCount {
			continue
		}
		if rec, ok := validateRow(fields); ok {
			records = append(records, rec)
		}
	}

	if len(records) == 0 {
		return nil, ErrNoValidRecords
	}
	return records, nil
}

func validateRow(fields []string) (CallRecord, bool) {
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	rec := CallRecord{
		ID:            fields[0],
		CallStartTime: fields[1],
		CallEndTime:   fields[2],
		FromNumber:    fields[3],
		ToNumber:      fields[4],
		CallType:      CallType(fields[5]),
		Region:        fields[6],
	}

	if rec.ID == "" {
		return CallRecord{}, false
	}

	start, ok := ParseTimestamp(rec.CallStartTime)
	if !ok {
		return CallRecord{}, false
	}
	end, ok := ParseTimestamp(rec.CallEndTime)
	if !ok {
		return CallRecord{}, false
	}
	if !end.After(start) {
		return CallRecord{}, false
	}
	rec.StartedAt, rec.EndedAt = start, end

	if !IsE164(rec.FromNumber) || !IsE164(rec.ToNumber) {
		return CallRecord{}, false
	}
	if !rec.CallType.Valid() {
		return CallRecord{}, false
	}
	if rec.Region == "" {
		return CallRecord{}, false
	}
	return rec, true
}

// IsE164 reports whether number is an E.164 formatted phone number.
func IsE164(number string) bool {
	return e164.MatchString(number)
}

// ParseTimestamp parses an ISO 8601 timestamp in one of the accepted layouts.
func ParseTimestamp(v string) (time.Time, bool) {
	if v == "" {
		return time.Time{}, false
	}
	// "2026-01-21 14:30:00z" reads as "2026-01-21T14:30:00Z".
	if len(v) > 10 && v[10] == ' ' {
		v = v[:10] + "T" + v[11:]
	}
	if strings.HasSuffix(v, "z") {
		v = v[:len(v)-1] + "Z"
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

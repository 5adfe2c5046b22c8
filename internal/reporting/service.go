package reporting

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"

	"cdr-enrichment/internal/cdr"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Source is the read side of the search index. Entries are append-only, so the same call
// may appear more than once.
type Source interface {
	ListAll(ctx context.Context) ([]cdr.EnrichedCallRecord, error)
}

type Service struct {
	src Source
}

func NewService(src Source) *Service { return &Service{src: src} }

func (s *Service) Summary(ctx context.Context, req SummaryRequest) (Summary, error) {
	r := req.Range
	if !r.From.IsZero() && !r.To.IsZero() && !r.To.After(r.From) {
		return Summary{}, ErrInvalidRequest
	}
	if s.src == nil {
		return Summary{}, errors.New("reporting: source not configured")
	}

	rows, err := s.src.ListAll(ctx)
	if err != nil {
		return Summary{}, eris.Wrap(err, "reporting: list index")
	}

	out := Summary{Region: req.Region, ByOriginCountry: map[string]int{}}
	seen := make(map[string]struct{}, len(rows))
	for _, rec := range rows {
		if req.Region != "" && rec.Region != req.Region {
			continue
		}
		if !r.From.IsZero() && rec.StartedAt.Before(r.From) {
			continue
		}
		if !r.To.IsZero() && !rec.StartedAt.Before(r.To) {
			continue
		}

		out.TotalRecords++
		seen[rec.ID] = struct{}{}
		out.TotalDurationSeconds += rec.Duration
		switch rec.CallType {
		case cdr.CallTypeVoice:
			out.VoiceCalls++
		case cdr.CallTypeVideo:
			out.VideoCalls++
		}
		if rec.EstimatedCost != nil {
			out.TotalEstimatedCost += *rec.EstimatedCost
		} else {
			out.MissingCost++
		}
		if rec.Degraded() {
			out.Degraded++
		}
		country := UnknownCountry
		if rec.FromCountry != nil {
			country = *rec.FromCountry
		}
		out.ByOriginCountry[country]++
	}
	out.DistinctCalls = len(seen)
	if out.TotalRecords > 0 {
		out.AverageDurationSeconds = out.TotalDurationSeconds / float64(out.TotalRecords)
	}
	return out, nil
}

package usecase

import (
	"context"
	"errors"
	"math"

	"support-agent/internal/domain"
)

type UsageCounter interface {
	CountUsage(ctx context.Context, segments int) (domain.UsageCounts, error)
}

type StatsService struct {
	counter  UsageCounter
	segments int
}

func NewStatsService(counter UsageCounter, segments int) (*StatsService, error) {
	if counter == nil {
		return nil, errors.New("usecase: usage counter must not be nil")
	}
	return &StatsService{counter: counter, segments: segments}, nil
}

// ComputeStats is read-only. On a storage failure it returns zero stats
// together with an ErrorStorage error.
func (s *StatsService) ComputeStats(ctx context.Context) (domain.Stats, error) {
	counts, err := s.counter.CountUsage(ctx, s.segments)
	if err != nil {
		return domain.Stats{}, newError(ErrorStorage, "stats_read_error", err)
	}
	return domain.Stats{
		TotalMessages:    counts.Turns,
		TotalSessions:    counts.Sessions,
		HelpfulCount:     counts.Helpful,
		NotHelpfulCount:  counts.NotHelpful,
		SatisfactionRate: SatisfactionRate(counts.Helpful, counts.NotHelpful),
	}, nil
}

// SatisfactionRate is helpful/(helpful+notHelpful) as a percentage with one
// decimal. The denominator is floored at 1, so no feedback yields 0.0.
func SatisfactionRate(helpful, notHelpful int) float64 {
	total := max(helpful+notHelpful, 1)
	pct := float64(helpful) / float64(total) * 100
	return math.Round(pct*10) / 10
}

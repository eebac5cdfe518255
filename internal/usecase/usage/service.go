package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/semdex/internal/domain"
)

// Period selects the reporting window.
type Period string

const (
	// PeriodDay reports the current UTC day.
	PeriodDay Period = "day"
	// PeriodMonth reports the current UTC month.
	PeriodMonth Period = "month"
)

// ParsePeriod maps the query parameter to a Period. Empty means day.
func ParsePeriod(s string) (Period, error) {
	switch s {
	case "", "day":
		return PeriodDay, nil
	case "month":
		return PeriodMonth, nil
	default:
		return "", fmt.Errorf("%w: unknown period %q", domain.ErrInvalidRequest, s)
	}
}

// Report is a token usage snapshot for one budget window. Limit 0 means
// unlimited.
type Report struct {
	Period    Period
	StartMs   int64
	EndMs     int64
	Limit     int64
	Used      int64
	Remaining int64
	Exhausted bool
}

// Service handles usage reporting.
type Service struct {
	br BudgetReader
}

// New creates a Service. br can be nil (unlimited mode).
func New(br BudgetReader) *Service {
	return &Service{br: br}
}

// GetReport builds a usage report for the given period.
func (s *Service) GetReport(_ context.Context, period Period) Report {
	now := time.Now().UTC()
	r := Report{Period: period}

	switch period {
	case PeriodMonth:
		monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		r.StartMs = monthStart.UnixMilli()
		r.EndMs = monthStart.AddDate(0, 1, 0).UnixMilli()
		if s.br != nil {
			r.Limit = s.br.MonthlyLimit()
			r.Used = s.br.MonthlyUsed()
			r.Remaining = s.br.RemainingMonthly()
		}
	default:
		dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		r.StartMs = dayStart.UnixMilli()
		r.EndMs = dayStart.Add(24 * time.Hour).UnixMilli()
		if s.br != nil {
			r.Limit = s.br.DailyLimit()
			r.Used = s.br.DailyUsed()
			r.Remaining = s.br.RemainingDaily()
		}
	}

	r.Exhausted = r.Limit > 0 && r.Remaining <= 0
	return r
}

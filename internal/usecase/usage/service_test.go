package usage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/semdex/internal/domain"
)

// --- Mock ---

type mockBudgetReader struct {
	dailyLimit       int64
	monthlyLimit     int64
	dailyUsed        int64
	monthlyUsed      int64
	remainingDaily   int64
	remainingMonthly int64
}

func (m *mockBudgetReader) DailyLimit() int64       { return m.dailyLimit }
func (m *mockBudgetReader) MonthlyLimit() int64     { return m.monthlyLimit }
func (m *mockBudgetReader) DailyUsed() int64        { return m.dailyUsed }
func (m *mockBudgetReader) MonthlyUsed() int64      { return m.monthlyUsed }
func (m *mockBudgetReader) RemainingDaily() int64   { return m.remainingDaily }
func (m *mockBudgetReader) RemainingMonthly() int64 { return m.remainingMonthly }

// --- Tests ---

func TestGetReport_DailyPeriod(t *testing.T) {
	br := &mockBudgetReader{
		dailyLimit:       10000,
		dailyUsed:        3000,
		remainingDaily:   7000,
		monthlyLimit:     100000,
		monthlyUsed:      50000,
		remainingMonthly: 50000,
	}
	svc := New(br)
	r := svc.GetReport(context.Background(), PeriodDay)

	if r.Period != PeriodDay {
		t.Errorf("expected period %q, got %q", PeriodDay, r.Period)
	}

	now := time.Now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if r.StartMs != dayStart.UnixMilli() {
		t.Errorf("expected period start %d, got %d", dayStart.UnixMilli(), r.StartMs)
	}

	dayEnd := dayStart.Add(24 * time.Hour)
	if r.EndMs != dayEnd.UnixMilli() {
		t.Errorf("expected period end %d, got %d", dayEnd.UnixMilli(), r.EndMs)
	}

	if r.Limit != 10000 {
		t.Errorf("expected limit 10000, got %d", r.Limit)
	}
	if r.Used != 3000 {
		t.Errorf("expected used 3000, got %d", r.Used)
	}
	if r.Remaining != 7000 {
		t.Errorf("expected remaining 7000, got %d", r.Remaining)
	}
	if r.Exhausted {
		t.Error("budget should not be exhausted")
	}
}

func TestGetReport_MonthlyPeriod(t *testing.T) {
	br := &mockBudgetReader{
		monthlyLimit:     100000,
		monthlyUsed:      80000,
		remainingMonthly: 20000,
	}
	svc := New(br)
	r := svc.GetReport(context.Background(), PeriodMonth)

	if r.Period != PeriodMonth {
		t.Errorf("expected period %q, got %q", PeriodMonth, r.Period)
	}

	now := time.Now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	if r.StartMs != monthStart.UnixMilli() {
		t.Errorf("expected period start %d, got %d", monthStart.UnixMilli(), r.StartMs)
	}

	monthEnd := monthStart.AddDate(0, 1, 0)
	if r.EndMs != monthEnd.UnixMilli() {
		t.Errorf("expected period end %d, got %d", monthEnd.UnixMilli(), r.EndMs)
	}

	if r.Limit != 100000 {
		t.Errorf("expected limit 100000, got %d", r.Limit)
	}
	if r.Used != 80000 {
		t.Errorf("expected used 80000, got %d", r.Used)
	}
}

func TestGetReport_NilBudgetReader(t *testing.T) {
	svc := New(nil)
	r := svc.GetReport(context.Background(), PeriodDay)

	if r.Limit != 0 {
		t.Errorf("expected limit 0, got %d", r.Limit)
	}
	if r.Remaining != 0 {
		t.Errorf("expected remaining 0, got %d", r.Remaining)
	}
	if r.Exhausted {
		t.Error("nil budget reader should not be exhausted")
	}
}

func TestGetReport_Exhausted(t *testing.T) {
	br := &mockBudgetReader{
		dailyLimit:     5000,
		dailyUsed:      5000,
		remainingDaily: 0,
	}
	svc := New(br)
	r := svc.GetReport(context.Background(), PeriodDay)

	if !r.Exhausted {
		t.Error("budget should be exhausted when remaining is 0")
	}
}

func TestGetReport_UnlimitedNotExhausted(t *testing.T) {
	br := &mockBudgetReader{
		remainingDaily:   -1,
		remainingMonthly: -1,
	}
	svc := New(br)
	r := svc.GetReport(context.Background(), PeriodDay)

	if r.Exhausted {
		t.Error("unlimited budget should never be exhausted")
	}
	if r.Remaining != -1 {
		t.Errorf("expected remaining -1, got %d", r.Remaining)
	}
}

func TestParsePeriod(t *testing.T) {
	tests := []struct {
		in   string
		want Period
	}{
		{"", PeriodDay},
		{"day", PeriodDay},
		{"month", PeriodMonth},
	}
	for _, tt := range tests {
		got, err := ParsePeriod(tt.in)
		if err != nil {
			t.Fatalf("ParsePeriod(%q): unexpected error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParsePeriod(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParsePeriod_Unknown(t *testing.T) {
	_, err := ParsePeriod("week")
	if !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("expected domain.ErrInvalidRequest, got %v", err)
	}
}

package usage

// BudgetReader exposes the embedding token budget counters without giving
// the reporting layer a way to spend them.
type BudgetReader interface {
	DailyLimit() int64
	MonthlyLimit() int64
	DailyUsed() int64
	MonthlyUsed() int64
	RemainingDaily() int64
	RemainingMonthly() int64
}

package health

import "context"

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// RecordCounter reports how many listings the index currently holds.
type RecordCounter interface {
	Count(ctx context.Context) (int, error)
}

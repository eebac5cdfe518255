package semdex

import (
	"context"
	"fmt"
	"time"
)

// indexerGateway is the slice of Client the Indexer needs.
type indexerGateway interface {
	Index(ctx context.Context, rec Record) error
	Remove(ctx context.Context, id string) error
	Rebuild(ctx context.Context, records []Record) (int, error)
}

// Indexer mirrors listing lifecycle events into the gateway index. The
// authoritative write has already happened when these methods run, so
// callers treat errors as best-effort: log them, never roll back.
type Indexer struct {
	gateway indexerGateway
	source  ListingSource
	obs     *observer
}

// Sync indexes the current state of a listing after a create, edit or
// status change.
func (ix *Indexer) Sync(ctx context.Context, l Listing) error {
	if !l.Kind.Valid() {
		return fmt.Errorf("semdex: unknown listing kind %q", l.Kind)
	}
	if err := ix.gateway.Index(ctx, RecordFromListing(l)); err != nil {
		return fmt.Errorf("sync listing %s: %w", l.ID(), err)
	}
	return nil
}

// Remove drops a deleted listing from the index.
func (ix *Indexer) Remove(ctx context.Context, l Listing) error {
	if err := ix.gateway.Remove(ctx, l.ID()); err != nil {
		return fmt.Errorf("remove listing %s: %w", l.ID(), err)
	}
	return nil
}

// Rebuild reloads every eligible listing from the authoritative store
// and replaces the index wholesale. Returns the indexed count. This is
// the corrective action for index drift.
func (ix *Indexer) Rebuild(ctx context.Context) (int, error) {
	start := time.Now()

	listings, err := ix.source.AllEligible(ctx)
	if err != nil {
		return 0, fmt.Errorf("load eligible listings: %w", err)
	}
	records := make([]Record, 0, len(listings))
	for _, l := range listings {
		records = append(records, RecordFromListing(l))
	}

	count, err := ix.gateway.Rebuild(ctx, records)
	if err != nil {
		return 0, fmt.Errorf("rebuild index: %w", err)
	}
	ix.obs.debug("index rebuilt",
		"listings", count,
		"took", time.Since(start),
	)
	return count, nil
}

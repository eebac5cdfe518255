// Package semdex is the Go client for the semdex semantic discovery
// gateway: embedding-based listing search with an adaptive relevance
// cutoff, plus the client-side reconciliation that turns raw vector hits
// into a trustworthy result set with a lexical fallback.
//
// The gateway listens on a Unix domain socket and never opens a TCP
// port; the client dials that socket and speaks plain HTTP over it.
//
// # Gateway client
//
//	client, _ := semdex.New(
//	    semdex.WithSocketPath("/tmp/semdex.sock"),
//	    semdex.WithServiceToken(os.Getenv("SEMDEX_SERVICE_TOKEN")),
//	)
//	res, _ := client.Search(ctx, semdex.SearchQuery{
//	    QueryText: "copper cathode 99.99",
//	    Filter:    semdex.Eq(semdex.FieldListingType, "supply_lot"),
//	})
//
// # Marketplace discovery
//
// Discovery resolves gateway hits against the authoritative listing
// store and degrades to keyword search when the semantic path yields
// nothing:
//
//	recon := client.Reconciler(source) // source reads the listing store
//	found, _ := recon.Discover(ctx, semdex.DiscoverQuery{
//	    CallerID:    7,
//	    Counterpart: semdex.KindSupplyLot,
//	    QueryText:   "copper cathode",
//	})
//
// Indexing mirrors listing lifecycle events into the gateway:
//
//	ix := client.Indexer(source)
//	_ = ix.Sync(ctx, listing)   // after create / edit / status change
//	_ = ix.Remove(ctx, listing) // after delete
package semdex

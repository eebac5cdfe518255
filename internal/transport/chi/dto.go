package chi

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kailas-cloud/semdex/internal/domain"
	"github.com/kailas-cloud/semdex/internal/domain/filter"
	searchuc "github.com/kailas-cloud/semdex/internal/usecase/search"
	usageuc "github.com/kailas-cloud/semdex/internal/usecase/usage"
)

// Wire types of the gateway API. Field names are the contract; metadata
// fields reuse the hash field names so callers see one vocabulary.

type metadataDTO struct {
	PK          int64    `json:"pk"`
	ListingType string   `json:"listing_type"`
	Status      string   `json:"status"`
	Category    string   `json:"category,omitempty"`
	Country     string   `json:"location_country,omitempty"`
	CreatedByID int64    `json:"created_by_id"`
	Lat         *float64 `json:"location_lat,omitempty"`
	Lng         *float64 `json:"location_lng,omitempty"`
}

type recordDTO struct {
	ID       string      `json:"id"`
	Text     string      `json:"text"`
	Metadata metadataDTO `json:"metadata"`
}

type removeRequest struct {
	ID string `json:"id"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

// filterNode is one node of the wire filter tree. Leaves carry op eq|ne
// with field and value; branches carry op and|or with exprs.
type filterNode struct {
	Op    string          `json:"op"`
	Field string          `json:"field,omitempty"`
	Value json.RawMessage `json:"value,omitempty"`
	Exprs []filterNode    `json:"exprs,omitempty"`
}

type searchRequest struct {
	QueryText    string      `json:"query_text"`
	Filter       *filterNode `json:"filter,omitempty"`
	Limit        int         `json:"limit,omitempty"`
	IncludeDebug bool        `json:"include_debug,omitempty"`
	BypassCutoff bool        `json:"bypass_cutoff,omitempty"`
}

type searchResultItem struct {
	ID       string  `json:"id"`
	Distance float64 `json:"distance"`
}

type searchDebug struct {
	BypassCutoff bool               `json:"bypass_cutoff"`
	RawCount     int                `json:"raw_count"`
	RawResults   []searchResultItem `json:"raw_results"`
	KeepCount    int                `json:"keep_count"`
}

type searchResponse struct {
	Results []searchResultItem `json:"results"`
	Debug   *searchDebug       `json:"debug,omitempty"`
}

type rebuildRequest struct {
	Records []recordDTO `json:"records"`
}

type rebuildResponse struct {
	OK    bool `json:"ok"`
	Count int  `json:"count"`
}

type healthResponse struct {
	Status      string `json:"status"`
	Ready       bool   `json:"ready"`
	ModelLoaded bool   `json:"model_loaded"`
	RecordCount int    `json:"record_count"`
}

type usageResponse struct {
	Period          string `json:"period"`
	PeriodStartMs   int64  `json:"period_start_ms"`
	PeriodEndMs     int64  `json:"period_end_ms"`
	TokensLimit     int64  `json:"tokens_limit"`
	TokensUsed      int64  `json:"tokens_used"`
	TokensRemaining int64  `json:"tokens_remaining"`
	Exhausted       bool   `json:"exhausted"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// --- Conversions ---

func recordFromWire(r recordDTO) domain.Record {
	return domain.Record{
		ID:   r.ID,
		Text: r.Text,
		Metadata: domain.Metadata{
			PK:          r.Metadata.PK,
			ListingType: r.Metadata.ListingType,
			Status:      r.Metadata.Status,
			Category:    r.Metadata.Category,
			Country:     r.Metadata.Country,
			CreatedByID: r.Metadata.CreatedByID,
			Lat:         r.Metadata.Lat,
			Lng:         r.Metadata.Lng,
		},
	}
}

func filterFromWire(n *filterNode) (filter.Expr, error) {
	if n == nil {
		return filter.Expr{}, nil
	}

	switch n.Op {
	case "eq", "ne":
		v, err := filterValueFromWire(n.Value)
		if err != nil {
			return filter.Expr{}, fmt.Errorf("filter field %q: %w", n.Field, err)
		}
		if n.Op == "eq" {
			return filter.Eq(n.Field, v), nil
		}
		return filter.Ne(n.Field, v), nil
	case "and", "or":
		children := make([]filter.Expr, 0, len(n.Exprs))
		for i := range n.Exprs {
			child, err := filterFromWire(&n.Exprs[i])
			if err != nil {
				return filter.Expr{}, err
			}
			children = append(children, child)
		}
		if n.Op == "and" {
			return filter.And(children...), nil
		}
		return filter.Or(children...), nil
	case "":
		return filter.Expr{}, errors.New("filter node missing op")
	default:
		return filter.Expr{}, fmt.Errorf("unknown filter op %q", n.Op)
	}
}

// filterValueFromWire accepts a JSON string or number operand.
func filterValueFromWire(raw json.RawMessage) (filter.Value, error) {
	if len(raw) == 0 {
		return filter.Value{}, errors.New("missing value")
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return filter.String(s), nil
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return filter.Number(f), nil
	}

	return filter.Value{}, errors.New("value must be a string or a number")
}

func resultsFromHits(hits []domain.Hit) []searchResultItem {
	items := make([]searchResultItem, len(hits))
	for i, h := range hits {
		items[i] = searchResultItem{ID: h.ID, Distance: h.Distance}
	}
	return items
}

func searchResponseFromDomain(resp searchuc.Response) searchResponse {
	out := searchResponse{Results: resultsFromHits(resp.Hits)}
	if resp.Debug != nil {
		out.Debug = &searchDebug{
			BypassCutoff: resp.Debug.BypassCutoff,
			RawCount:     resp.Debug.RawCount,
			RawResults:   resultsFromHits(resp.Debug.RawHits),
			KeepCount:    resp.Debug.KeepCount,
		}
	}
	return out
}

func usageResponseFromReport(r usageuc.Report) usageResponse {
	return usageResponse{
		Period:          string(r.Period),
		PeriodStartMs:   r.StartMs,
		PeriodEndMs:     r.EndMs,
		TokensLimit:     r.Limit,
		TokensUsed:      r.Used,
		TokensRemaining: r.Remaining,
		Exhausted:       r.Exhausted,
	}
}

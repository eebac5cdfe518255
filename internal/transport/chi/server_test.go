package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/semdex/internal/domain"
	"github.com/kailas-cloud/semdex/internal/domain/cutoff"
	"github.com/kailas-cloud/semdex/internal/domain/filter"
	healthuc "github.com/kailas-cloud/semdex/internal/usecase/health"
	indexinguc "github.com/kailas-cloud/semdex/internal/usecase/indexing"
	searchuc "github.com/kailas-cloud/semdex/internal/usecase/search"
	usageuc "github.com/kailas-cloud/semdex/internal/usecase/usage"
)

// --- Stubs ---

type stubIndex struct {
	count    int
	countErr error
	hits     []domain.Hit
	queryErr error

	upserted []domain.Record
	batched  []domain.Record
	removed  []string
	fetchFn  func(id string) (domain.StoredRecord, bool, error)

	dropCalled   bool
	clearCalled  bool
	ensureCalled bool
}

func (s *stubIndex) Count(_ context.Context) (int, error) { return s.count, s.countErr }

func (s *stubIndex) Query(_ context.Context, _ []float32, _ filter.Expr, _ int) ([]domain.Hit, error) {
	return s.hits, s.queryErr
}

func (s *stubIndex) EnsureIndex(_ context.Context) error { s.ensureCalled = true; return nil }

func (s *stubIndex) DropIndex(_ context.Context) error { s.dropCalled = true; return nil }

func (s *stubIndex) Upsert(_ context.Context, rec domain.Record, _ []float32) error {
	s.upserted = append(s.upserted, rec)
	return nil
}

func (s *stubIndex) UpsertBatch(_ context.Context, recs []domain.Record, _ [][]float32) error {
	s.batched = append(s.batched, recs...)
	return nil
}

func (s *stubIndex) Remove(_ context.Context, id string) error {
	s.removed = append(s.removed, id)
	return nil
}

func (s *stubIndex) Fetch(_ context.Context, id string) (domain.StoredRecord, bool, error) {
	if s.fetchFn != nil {
		return s.fetchFn(id)
	}
	return domain.StoredRecord{}, false, nil
}

func (s *stubIndex) Clear(_ context.Context) (int, error) {
	s.clearCalled = true
	return 0, nil
}

type stubEmbedder struct {
	dim    int
	tokens int
	err    error
}

func (s *stubEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	if s.err != nil {
		return domain.EmbeddingResult{}, s.err
	}
	return domain.EmbeddingResult{
		Embedding:   make([]float32, s.dim),
		TotalTokens: s.tokens,
	}, nil
}

func (s *stubEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if s.err != nil {
		return domain.BatchEmbeddingResult{}, s.err
	}
	out := domain.BatchEmbeddingResult{TotalTokens: s.tokens * len(texts)}
	for range texts {
		out.Embeddings = append(out.Embeddings, make([]float32, s.dim))
	}
	return out, nil
}

type stubPinger struct{ err error }

func (s *stubPinger) Ping(_ context.Context) error { return s.err }

// --- Harness ---

type testGateway struct {
	index  *stubIndex
	embed  *stubEmbedder
	health *healthuc.Service
	router *chi.Mux
}

// newColdGateway wires the full router with the model not yet warmed up.
func newColdGateway(t *testing.T) *testGateway {
	t.Helper()

	index := &stubIndex{}
	embed := &stubEmbedder{dim: 4, tokens: 3}
	health := healthuc.New(&stubPinger{}, index)

	srv := NewServer(
		indexinguc.New(index, embed, embed.dim, zap.NewNop()),
		searchuc.New(index, embed, cutoff.DefaultThresholds(), zap.NewNop()),
		usageuc.New(nil),
		health,
		zap.NewNop(),
	)

	router := chi.NewRouter()
	srv.Routes(router)

	return &testGateway{index: index, embed: embed, health: health, router: router}
}

func newTestGateway(t *testing.T) *testGateway {
	t.Helper()
	g := newColdGateway(t)
	g.health.SetModelLoaded()
	return g
}

func (g *testGateway) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var rd io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		rd = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, rd)
	rr := httptest.NewRecorder()
	g.router.ServeHTTP(rr, req)
	return rr
}

func (g *testGateway) doRaw(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rr := httptest.NewRecorder()
	g.router.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var e errorResponse
	if err := json.NewDecoder(rr.Body).Decode(&e); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return e
}

func validRecord(id string) recordDTO {
	return recordDTO{
		ID:   id,
		Text: "Cold-rolled steel sheet 2mm, 120t monthly",
		Metadata: metadataDTO{
			PK:          42,
			ListingType: "supply_lot",
			Status:      "active",
			Category:    "metals",
			Country:     "RU",
			CreatedByID: 7,
		},
	}
}

// --- Index ---

func TestIndexEndpoint(t *testing.T) {
	g := newTestGateway(t)

	rr := g.do(t, http.MethodPost, "/api/v1/index", validRecord("supply_lot_42"))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	var resp okResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.OK {
		t.Error("expected ok=true")
	}
	if len(g.index.upserted) != 1 || g.index.upserted[0].ID != "supply_lot_42" {
		t.Errorf("unexpected upserts: %+v", g.index.upserted)
	}
	if got := g.index.upserted[0].Metadata.Category; got != "metals" {
		t.Errorf("category = %q, want %q", got, "metals")
	}
	if got := rr.Header().Get("X-Embedding-Tokens"); got != "3" {
		t.Errorf("X-Embedding-Tokens = %q, want %q", got, "3")
	}
}

func TestIndexEndpoint_InvalidBody(t *testing.T) {
	g := newTestGateway(t)

	rr := g.doRaw(t, http.MethodPost, "/api/v1/index", "{not json")

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
	if e := decodeError(t, rr); e.Code != codeBadRequest {
		t.Errorf("code = %q, want %q", e.Code, codeBadRequest)
	}
}

func TestIndexEndpoint_ValidationError(t *testing.T) {
	g := newTestGateway(t)
	rec := validRecord("supply_lot_42")
	rec.Text = "   "

	rr := g.do(t, http.MethodPost, "/api/v1/index", rec)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
	if e := decodeError(t, rr); e.Code != codeBadRequest {
		t.Errorf("code = %q, want %q", e.Code, codeBadRequest)
	}
	if len(g.index.upserted) != 0 {
		t.Error("nothing should be written for an invalid record")
	}
}

func TestIndexEndpoint_ProviderDimensionMismatch(t *testing.T) {
	g := newTestGateway(t)
	// Модель вернула не ту размерность.
	g.embed.dim = 2

	rr := g.do(t, http.MethodPost, "/api/v1/index", validRecord("supply_lot_42"))

	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadGateway)
	}
	if e := decodeError(t, rr); e.Code != codeProviderError {
		t.Errorf("code = %q, want %q", e.Code, codeProviderError)
	}
}

// --- Remove ---

func TestRemoveEndpoint(t *testing.T) {
	g := newTestGateway(t)

	rr := g.do(t, http.MethodPost, "/api/v1/remove", removeRequest{ID: "supply_lot_9"})

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	if len(g.index.removed) != 1 || g.index.removed[0] != "supply_lot_9" {
		t.Errorf("unexpected removals: %v", g.index.removed)
	}
}

func TestRemoveEndpoint_EmptyID(t *testing.T) {
	g := newTestGateway(t)

	rr := g.do(t, http.MethodPost, "/api/v1/remove", removeRequest{})

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestRemoveEndpoint_WorksBeforeWarmup(t *testing.T) {
	g := newColdGateway(t)

	rr := g.do(t, http.MethodPost, "/api/v1/remove", removeRequest{ID: "demand_post_3"})

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body %s", rr.Code, http.StatusOK, rr.Body.String())
	}
}

// --- Search ---

func TestSearchEndpoint(t *testing.T) {
	g := newTestGateway(t)
	g.index.count = 3
	g.index.hits = []domain.Hit{
		{ID: "supply_lot_1", Distance: 0.1},
		{ID: "supply_lot_2", Distance: 0.15},
		{ID: "supply_lot_3", Distance: 0.8},
	}

	rr := g.do(t, http.MethodPost, "/api/v1/search", searchRequest{QueryText: "стальной лист оптом"})

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	var resp searchResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("results = %d, want 2 (tail trimmed)", len(resp.Results))
	}
	if resp.Results[0].ID != "supply_lot_1" || resp.Results[0].Distance != 0.1 {
		t.Errorf("unexpected first result: %+v", resp.Results[0])
	}
	if resp.Debug != nil {
		t.Error("debug must be absent unless requested")
	}
	if got := rr.Header().Get("X-Embedding-Tokens"); got != "3" {
		t.Errorf("X-Embedding-Tokens = %q, want %q", got, "3")
	}
}

func TestSearchEndpoint_FilterAndDebug(t *testing.T) {
	g := newTestGateway(t)
	g.index.count = 3
	g.index.hits = []domain.Hit{
		{ID: "supply_lot_1", Distance: 0.1},
		{ID: "supply_lot_2", Distance: 0.12},
		{ID: "supply_lot_3", Distance: 0.5},
	}

	rr := g.do(t, http.MethodPost, "/api/v1/search", searchRequest{
		QueryText: "арматура",
		Filter: &filterNode{Op: "and", Exprs: []filterNode{
			{Op: "eq", Field: "listing_type", Value: json.RawMessage(`"supply_lot"`)},
			{Op: "ne", Field: "created_by_id", Value: json.RawMessage(`7`)},
		}},
		IncludeDebug: true,
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	var resp searchResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Debug == nil {
		t.Fatal("expected debug block")
	}
	if resp.Debug.RawCount != 3 || resp.Debug.KeepCount != 2 {
		t.Errorf("debug = %+v, want raw 3 keep 2", resp.Debug)
	}
	if len(resp.Debug.RawResults) != 3 {
		t.Errorf("raw results = %d, want 3", len(resp.Debug.RawResults))
	}
}

func TestSearchEndpoint_BypassCutoff(t *testing.T) {
	g := newTestGateway(t)
	g.index.count = 3
	g.index.hits = []domain.Hit{
		{ID: "a", Distance: 0.1},
		{ID: "b", Distance: 0.15},
		{ID: "c", Distance: 0.8},
	}

	rr := g.do(t, http.MethodPost, "/api/v1/search", searchRequest{
		QueryText:    "cement",
		BypassCutoff: true,
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	var resp searchResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Results) != 3 {
		t.Fatalf("results = %d, want all 3 with cutoff bypassed", len(resp.Results))
	}
}

func TestSearchEndpoint_EmptyQuery(t *testing.T) {
	g := newTestGateway(t)

	rr := g.do(t, http.MethodPost, "/api/v1/search", searchRequest{QueryText: "   "})

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestSearchEndpoint_BadFilterOp(t *testing.T) {
	g := newTestGateway(t)

	rr := g.do(t, http.MethodPost, "/api/v1/search", searchRequest{
		QueryText: "steel",
		Filter:    &filterNode{Op: "gt", Field: "pk", Value: json.RawMessage(`5`)},
	})

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
	if e := decodeError(t, rr); !strings.Contains(e.Message, "unknown filter op") {
		t.Errorf("message = %q, want mention of unknown filter op", e.Message)
	}
}

func TestSearchEndpoint_UnknownFilterField(t *testing.T) {
	g := newTestGateway(t)

	rr := g.do(t, http.MethodPost, "/api/v1/search", searchRequest{
		QueryText: "steel",
		Filter:    &filterNode{Op: "eq", Field: "price", Value: json.RawMessage(`100`)},
	})

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
	if e := decodeError(t, rr); !strings.Contains(e.Message, "unknown filter field") {
		t.Errorf("message = %q, want mention of unknown filter field", e.Message)
	}
}

func TestSearchEndpoint_QuotaExceeded(t *testing.T) {
	g := newTestGateway(t)
	g.index.count = 1
	g.embed.err = domain.ErrEmbeddingQuotaExceeded

	rr := g.do(t, http.MethodPost, "/api/v1/search", searchRequest{QueryText: "steel"})

	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusTooManyRequests)
	}
	if e := decodeError(t, rr); e.Code != codeQuotaExceeded {
		t.Errorf("code = %q, want %q", e.Code, codeQuotaExceeded)
	}
}

// --- Rebuild ---

func TestRebuildEndpoint(t *testing.T) {
	g := newTestGateway(t)

	rr := g.do(t, http.MethodPost, "/api/v1/rebuild", rebuildRequest{
		Records: []recordDTO{validRecord("supply_lot_1"), validRecord("demand_post_2")},
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	var resp rebuildResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.OK || resp.Count != 2 {
		t.Errorf("response = %+v, want ok with count 2", resp)
	}
	if !g.index.dropCalled || !g.index.clearCalled || !g.index.ensureCalled {
		t.Error("rebuild must drop, clear and recreate the index")
	}
	if len(g.index.batched) != 2 {
		t.Errorf("batched records = %d, want 2", len(g.index.batched))
	}
	if got := rr.Header().Get("X-Embedding-Tokens"); got != "6" {
		t.Errorf("X-Embedding-Tokens = %q, want %q", got, "6")
	}
}

// --- Readiness gate ---

func TestNotReadyBeforeWarmup(t *testing.T) {
	g := newColdGateway(t)

	paths := []string{"/api/v1/index", "/api/v1/search", "/api/v1/rebuild"}
	for _, path := range paths {
		rr := g.doRaw(t, http.MethodPost, path, "{}")

		if rr.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: status = %d, want %d", path, rr.Code, http.StatusServiceUnavailable)
			continue
		}
		if e := decodeError(t, rr); e.Code != codeNotReady {
			t.Errorf("%s: code = %q, want %q", path, e.Code, codeNotReady)
		}
	}
}

// --- Health ---

func TestHealthEndpoint(t *testing.T) {
	g := newTestGateway(t)
	g.index.count = 17

	rr := g.do(t, http.MethodGet, "/health", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	var resp healthResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Ready || !resp.ModelLoaded {
		t.Errorf("response = %+v, want ready with model loaded", resp)
	}
	if resp.RecordCount != 17 {
		t.Errorf("record_count = %d, want 17", resp.RecordCount)
	}
	if resp.Status != string(healthuc.Healthy) {
		t.Errorf("status = %q, want %q", resp.Status, healthuc.Healthy)
	}
}

func TestHealthEndpoint_DuringWarmup(t *testing.T) {
	g := newColdGateway(t)

	rr := g.do(t, http.MethodGet, "/health", nil)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusServiceUnavailable)
	}
	var resp healthResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Ready || resp.ModelLoaded {
		t.Errorf("response = %+v, want not ready during warmup", resp)
	}
}

// --- Usage ---

func TestUsageEndpoint(t *testing.T) {
	g := newTestGateway(t)

	rr := g.do(t, http.MethodGet, "/api/v1/usage", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	var resp usageResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Period != "day" {
		t.Errorf("period = %q, want %q", resp.Period, "day")
	}
}

func TestUsageEndpoint_MonthPeriod(t *testing.T) {
	g := newTestGateway(t)

	rr := g.do(t, http.MethodGet, "/api/v1/usage?period=month", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	var resp usageResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Period != "month" {
		t.Errorf("period = %q, want %q", resp.Period, "month")
	}
}

func TestUsageEndpoint_UnknownPeriod(t *testing.T) {
	g := newTestGateway(t)

	rr := g.do(t, http.MethodGet, "/api/v1/usage?period=week", nil)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

// --- Metrics ---

func TestMetricsEndpoint(t *testing.T) {
	g := newTestGateway(t)

	rr := g.do(t, http.MethodGet, "/metrics", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
}

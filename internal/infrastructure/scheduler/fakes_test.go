package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/realty/backend/internal/domain/idx"
	"github.com/realty/backend/internal/domain/listing"
	"github.com/realty/backend/internal/domain/shared"
)

// ---------------------------------------------------------------------------
// Provider fake
// ---------------------------------------------------------------------------

// staticProvider serves fixed pages; errs[page] fails that page
type staticProvider struct {
	mu      sync.Mutex
	pages   [][]listing.RawExternalProperty
	errs    map[int]error
	hasMore func(page int) bool
	calls   []int
	block   chan struct{}
}

func newStaticProvider(pages ...[]listing.RawExternalProperty) *staticProvider {
	return &staticProvider{pages: pages, errs: map[int]error{}}
}

func (p *staticProvider) Name() string { return "static" }

func (p *staticProvider) FetchPage(ctx context.Context, req idx.PageRequest) (*idx.PageResponse, error) {
	p.mu.Lock()
	p.calls = append(p.calls, req.Page)
	block := p.block
	p.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", idx.ErrProviderUnavailable, ctx.Err())
		}
	}
	if err := p.errs[req.Page]; err != nil {
		return nil, err
	}
	if req.Page > len(p.pages) {
		return &idx.PageResponse{Total: -1, Body: []byte("[]")}, nil
	}
	records := p.pages[req.Page-1]
	body, _ := json.Marshal(records)
	more := req.Page < len(p.pages)
	if p.hasMore != nil {
		more = p.hasMore(req.Page)
	}
	return &idx.PageResponse{Records: records, HasMore: more, Total: -1, Body: body}, nil
}

func (p *staticProvider) CheckConnection(ctx context.Context) idx.ConnectionStatus {
	return idx.ConnectionStatus{Provider: "static", Reachable: true, LastCheckedAt: time.Now(), Message: "ok"}
}

func (p *staticProvider) fetched() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.calls...)
}

// ---------------------------------------------------------------------------
// Property store fake
// ---------------------------------------------------------------------------

// memPropertyRepo compares content hashes like the real store does for
// records without a modification timestamp
type memPropertyRepo struct {
	mu      sync.Mutex
	byKey   map[string]*listing.Property
	errs    map[string]error
	upserts int
}

func newMemPropertyRepo() *memPropertyRepo {
	return &memPropertyRepo{byKey: map[string]*listing.Property{}, errs: map[string]error{}}
}

func (r *memPropertyRepo) Upsert(ctx context.Context, p *listing.Property) (listing.UpsertResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upserts++
	if err := r.errs[p.NaturalKey()]; err != nil {
		return "", err
	}
	cur, ok := r.byKey[p.NaturalKey()]
	if !ok {
		cp := *p
		r.byKey[p.NaturalKey()] = &cp
		return listing.UpsertCreated, nil
	}
	if cur.ContentHash == p.ContentHash {
		if cur.Price.Equal(p.Price) && (cur.Featured != p.Featured || cur.Luxury != p.Luxury) {
			cur.Featured, cur.Luxury = p.Featured, p.Luxury
			return listing.UpsertReclassified, nil
		}
		return listing.UpsertUnchanged, nil
	}
	cp := *p
	cp.ID = cur.ID
	r.byKey[p.NaturalKey()] = &cp
	return listing.UpsertUpdated, nil
}

func (r *memPropertyRepo) UpdateProvenance(ctx context.Context, key string, agentKey, officeName *string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.errs[key]; err != nil {
		return false, err
	}
	cur, ok := r.byKey[key]
	if !ok {
		return false, nil
	}
	if eq(cur.ListingAgentKey, agentKey) && eq(cur.ListingOfficeName, officeName) {
		return false, nil
	}
	cur.ListingAgentKey, cur.ListingOfficeName = agentKey, officeName
	return true, nil
}

func eq(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (r *memPropertyRepo) FindByID(ctx context.Context, id uuid.UUID) (*listing.Property, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.byKey {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, listing.ErrPropertyNotFound
}

func (r *memPropertyRepo) FindByNaturalKey(ctx context.Context, key string) (*listing.Property, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.byKey[key]; ok {
		return p, nil
	}
	return nil, listing.ErrPropertyNotFound
}

func (r *memPropertyRepo) Query(ctx context.Context, f listing.SearchFilter, page shared.Pagination) (*shared.Paginated[listing.Property], error) {
	return shared.NewPaginated[listing.Property](nil, 0, page), nil
}

func (r *memPropertyRepo) Count(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.byKey)), nil
}

func (r *memPropertyRepo) Ping(ctx context.Context) error { return nil }

// ---------------------------------------------------------------------------
// Sync run store fake
// ---------------------------------------------------------------------------

type memRunRepo struct {
	mu       sync.Mutex
	runs     map[uuid.UUID]idx.SyncRun
	progress int
	finished chan uuid.UUID
}

func newMemRunRepo() *memRunRepo {
	return &memRunRepo{runs: map[uuid.UUID]idx.SyncRun{}, finished: make(chan uuid.UUID, 16)}
}

func (r *memRunRepo) Create(ctx context.Context, run *idx.SyncRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.runs {
		if existing.SyncType == run.SyncType && existing.Status == idx.SyncStatusInProgress {
			return idx.ErrSyncAlreadyRunning
		}
	}
	r.runs[run.ID] = *run
	return nil
}

func (r *memRunRepo) UpdateProgress(ctx context.Context, run *idx.SyncRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress++
	r.runs[run.ID] = *run
	return nil
}

func (r *memRunRepo) Finish(ctx context.Context, run *idx.SyncRun) error {
	r.mu.Lock()
	if cur, ok := r.runs[run.ID]; ok && cur.Status.IsTerminal() {
		r.mu.Unlock()
		return idx.ErrSyncRunAlreadyFinished
	}
	r.runs[run.ID] = *run
	r.mu.Unlock()
	r.finished <- run.ID
	return nil
}

func (r *memRunRepo) FindByID(ctx context.Context, id uuid.UUID) (*idx.SyncRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return nil, idx.ErrSyncRunNotFound
	}
	return &run, nil
}

func (r *memRunRepo) FindLatest(ctx context.Context) (*idx.SyncRun, error) { return nil, nil }

func (r *memRunRepo) FindRecent(ctx context.Context, limit int) ([]*idx.SyncRun, error) {
	return nil, nil
}

func (r *memRunRepo) FindActive(ctx context.Context, t idx.SyncType) (*idx.SyncRun, error) {
	return nil, nil
}

func (r *memRunRepo) MarkStale(ctx context.Context, before time.Time, msg string) (int64, error) {
	return 0, nil
}

func (r *memRunRepo) get(id uuid.UUID) idx.SyncRun {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs[id]
}

// ---------------------------------------------------------------------------
// Optional collaborators
// ---------------------------------------------------------------------------

type recordingArchive struct {
	mu    sync.Mutex
	pages []int
	err   error
}

func (a *recordingArchive) ArchivePage(ctx context.Context, runID uuid.UUID, page int, body []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pages = append(a.pages, page)
	return a.err
}

type countingCache struct {
	mu          sync.Mutex
	invalidated int
}

func (c *countingCache) Get(ctx context.Context, key string) (*shared.Paginated[listing.Property], bool) {
	return nil, false
}

func (c *countingCache) Set(ctx context.Context, key string, page *shared.Paginated[listing.Property]) {
}

func (c *countingCache) Invalidate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated++
	return nil
}

type recordingMetrics struct {
	mu   sync.Mutex
	runs []idx.SyncRun
}

func (m *recordingMetrics) RecordSyncRun(ctx context.Context, run *idx.SyncRun) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, *run)
}

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

func rawListing(id string, price int64) listing.RawExternalProperty {
	return listing.RawExternalProperty{
		MLSID:     listing.FlexString(id),
		Address:   id + " Dodge St, Omaha, NE 68102",
		ListPrice: listing.NewFlexDecimal(decimal.NewFromInt(price)),
		Beds:      listing.NewFlexDecimal(decimal.NewFromInt(3)),
	}
}

func rawListings(prefix string, n int, price int64) []listing.RawExternalProperty {
	out := make([]listing.RawExternalProperty, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, rawListing(fmt.Sprintf("%s-%03d", prefix, i), price))
	}
	return out
}

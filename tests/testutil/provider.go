package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
)

// Listing is one provider record in the feed's JSON shape
type Listing map[string]any

// NewListing builds a well-formed record. Fields can be overridden or
// removed (by setting nil) through With.
func NewListing(mlsID string, price int) Listing {
	return Listing{
		"mlsId":                 mlsID,
		"title":                 "Listing " + mlsID,
		"address":               "1200 Farnam St, Omaha, NE 68102",
		"propertyType":          "Single Family",
		"style":                 "Craftsman",
		"listPrice":             price,
		"status":                "Active",
		"beds":                  3,
		"baths":                 "2.5",
		"sqft":                  1850,
		"subdivision":           "Dundee",
		"schoolDistrict":        "Omaha Public Schools",
		"images":                []string{"https://photos.example.com/" + mlsID + "/1.jpg"},
		"modificationTimestamp": "2026-01-15T10:00:00Z",
	}
}

// With returns a copy with the given fields set; a nil value deletes the field
func (l Listing) With(kv ...any) Listing {
	out := make(Listing, len(l)+len(kv)/2)
	for k, v := range l {
		out[k] = v
	}
	for i := 0; i+1 < len(kv); i += 2 {
		key := fmt.Sprint(kv[i])
		if kv[i+1] == nil {
			delete(out, key)
			continue
		}
		out[key] = kv[i+1]
	}
	return out
}

// FakeProvider serves listings over HTTP with page/limit paging and a
// hasMore continuation flag
type FakeProvider struct {
	Server *httptest.Server

	mu       sync.Mutex
	listings []Listing
	status   int
	requests int
	auth     string
}

// NewFakeProvider starts a provider serving listings; it is closed when the
// test ends
func NewFakeProvider(t *testing.T, listings ...Listing) *FakeProvider {
	t.Helper()

	p := &FakeProvider{listings: listings}
	p.Server = httptest.NewServer(http.HandlerFunc(p.serve))
	t.Cleanup(p.Server.Close)
	return p
}

// URL is the provider base URL
func (p *FakeProvider) URL() string {
	return p.Server.URL
}

// SetListings replaces the served records
func (p *FakeProvider) SetListings(listings ...Listing) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listings = listings
}

// FailWith makes every request answer with status; 0 restores normal paging
func (p *FakeProvider) FailWith(status int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = status
}

// Requests counts requests received, probes included
func (p *FakeProvider) Requests() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requests
}

// LastAuthorization is the Authorization header of the latest request
func (p *FakeProvider) LastAuthorization() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.auth
}

func (p *FakeProvider) serve(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	p.requests++
	p.auth = r.Header.Get("Authorization")
	status := p.status
	listings := p.listings
	p.mu.Unlock()

	if status != 0 {
		http.Error(w, http.StatusText(status), status)
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 {
		limit = 50
	}

	start := (page - 1) * limit
	end := min(start+limit, len(listings))
	records := []Listing{}
	if start < len(listings) {
		records = listings[start:end]
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"properties": records,
		"hasMore":    end < len(listings),
		"total":      len(listings),
	})
}

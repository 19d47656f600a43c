// Package listing serves property search and lookup.
package listing

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/realty/backend/internal/domain/listing"
	"github.com/realty/backend/internal/domain/shared"
	"github.com/realty/backend/internal/infrastructure/telemetry"
)

// SearchService runs property searches, reading through the search cache
type SearchService struct {
	repo   listing.PropertyRepository
	cache  listing.SearchCache
	logger *zap.Logger
}

// NewSearchService creates a new SearchService. A nil cache disables caching.
func NewSearchService(repo listing.PropertyRepository, cache listing.SearchCache, logger *zap.Logger) *SearchService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SearchService{repo: repo, cache: cache, logger: logger}
}

// Search returns one page of properties matching the filter
func (s *SearchService) Search(ctx context.Context, filter listing.SearchFilter, page shared.Pagination) (*SearchResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "property", "search")
	defer span.End()

	if err := filter.Validate(); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	page = shared.NewPagination(page.Page, page.PageSize)

	key := SearchCacheKey(filter, page)
	if s.cache != nil {
		if cached, ok := s.cache.Get(ctx, key); ok {
			telemetry.SetAttributes(span,
				telemetry.SpanAttrCacheHit, true,
				telemetry.SpanAttrResultSize, len(cached.Items),
			)
			telemetry.SetOK(span)
			return toSearchResult(cached), nil
		}
	}

	result, err := s.repo.Query(ctx, filter, page)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if s.cache != nil {
		s.cache.Set(ctx, key, result)
	}

	telemetry.SetAttributes(span,
		telemetry.SpanAttrCacheHit, false,
		telemetry.SpanAttrResultSize, len(result.Items),
	)
	telemetry.SetOK(span)
	return toSearchResult(result), nil
}

// GetByID returns a single property
func (s *SearchService) GetByID(ctx context.Context, id uuid.UUID) (*PropertyResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "property", "get",
		telemetry.WithAttribute(telemetry.SpanAttrPropertyID, id.String()),
	)
	defer span.End()

	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetOK(span)
	r := ToPropertyResponse(p)
	return &r, nil
}

// SearchCacheKey is a canonical encoding of a search: equal filters and
// pages give equal keys regardless of how the request spelled them
func SearchCacheKey(filter listing.SearchFilter, page shared.Pagination) string {
	v := url.Values{}
	setString(v, "q", filter.Query)
	if filter.MinPrice != nil {
		v.Set("min", filter.MinPrice.String())
	}
	if filter.MaxPrice != nil {
		v.Set("max", filter.MaxPrice.String())
	}
	if filter.Beds != nil {
		v.Set("beds", strconv.Itoa(*filter.Beds))
	}
	if filter.Baths != nil {
		v.Set("baths", filter.Baths.String())
	}
	setString(v, "type", filter.PropertyType)
	setString(v, "city", filter.City)
	setString(v, "hood", filter.Neighborhood)
	setString(v, "school", filter.SchoolDistrict)
	setString(v, "style", filter.ArchitecturalStyle)
	if filter.RestrictLuxury() {
		v.Set("luxury", "1")
	}
	if filter.RestrictFeatured() {
		v.Set("featured", "1")
	}
	sort := filter.Sort
	if sort == "" {
		sort = listing.SortRecentlySynced
	}
	v.Set("sort", string(sort))
	v.Set("page", strconv.Itoa(page.Page))
	v.Set("size", strconv.Itoa(page.PageSize))
	// Encode sorts by key
	return v.Encode()
}

// text filters match case-insensitively, so the key folds case too
func setString(v url.Values, key string, s *string) {
	if s != nil && *s != "" {
		v.Set(key, strings.ToLower(*s))
	}
}

func toSearchResult(page *shared.Paginated[listing.Property]) *SearchResult {
	items := make([]PropertyResponse, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, ToPropertyResponse(&page.Items[i]))
	}
	return &SearchResult{
		Items:      items,
		Total:      page.Total,
		Page:       page.Page,
		PageSize:   page.PageSize,
		TotalPages: page.TotalPages,
		HasMore:    page.HasMore,
	}
}

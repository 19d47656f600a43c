package persistence

import (
	"strings"

	"github.com/realty/backend/internal/domain/listing"
	"gorm.io/gorm"
)

// textSearchColumns are matched by the free-text query
var textSearchColumns = []string{"title", "description", "address", "city", "neighborhood"}

// propertyOrderings maps each whitelisted sort to its ORDER BY. Every
// ordering ends on id so pages are stable.
var propertyOrderings = map[listing.SortOrder]string{
	listing.SortRecentlySynced: "idx_synced_at DESC, id ASC",
	listing.SortPriceAsc:       "price ASC, id ASC",
	listing.SortPriceDesc:      "price DESC, id ASC",
	listing.SortNewest:         "created_at DESC, id ASC",
	listing.SortBedsDesc:       "beds DESC, price ASC, id ASC",
}

// BuildPropertyQuery applies a search filter to db. Set fields combine
// with AND; nil fields leave the query unconstrained. The filter is
// expected to be validated.
func BuildPropertyQuery(db *gorm.DB, f listing.SearchFilter) *gorm.DB {
	q := db
	if f.Query != nil {
		if term := strings.TrimSpace(*f.Query); term != "" {
			pattern := "%" + escapeLikePattern(strings.ToLower(term)) + "%"
			clauses := make([]string, len(textSearchColumns))
			args := make([]any, len(textSearchColumns))
			for i, col := range textSearchColumns {
				clauses[i] = "LOWER(COALESCE(" + col + ", '')) LIKE ? ESCAPE '\\'"
				args[i] = pattern
			}
			q = q.Where("("+strings.Join(clauses, " OR ")+")", args...)
		}
	}

	if f.MinPrice != nil {
		q = q.Where("price >= ?", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		q = q.Where("price <= ?", *f.MaxPrice)
	}
	if f.Beds != nil {
		q = q.Where("beds >= ?", *f.Beds)
	}
	if f.Baths != nil {
		q = q.Where("baths >= ?", *f.Baths)
	}

	q = whereEqualFold(q, "property_type", f.PropertyType)
	q = whereEqualFold(q, "city", f.City)
	q = whereEqualFold(q, "neighborhood", f.Neighborhood)
	q = whereEqualFold(q, "school_district", f.SchoolDistrict)
	q = whereEqualFold(q, "architectural_style", f.ArchitecturalStyle)

	if f.RestrictLuxury() {
		q = q.Where("luxury = ?", true)
	}
	if f.RestrictFeatured() {
		q = q.Where("featured = ?", true)
	}
	return q
}

// PropertyOrder returns the ORDER BY for a sort, defaulting to most
// recently synced
func PropertyOrder(sort listing.SortOrder) string {
	if order, ok := propertyOrderings[sort]; ok {
		return order
	}
	return propertyOrderings[listing.SortRecentlySynced]
}

func whereEqualFold(q *gorm.DB, column string, value *string) *gorm.DB {
	if value == nil {
		return q
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return q
	}
	return q.Where("LOWER("+column+") = ?", strings.ToLower(v))
}

// escapeLikePattern escapes LIKE wildcards so user input matches literally
func escapeLikePattern(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

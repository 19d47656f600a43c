package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/realty/backend/internal/domain/listing"
	"github.com/realty/backend/internal/domain/shared"
	"github.com/realty/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormPropertyRepository implements listing.PropertyRepository using GORM
type GormPropertyRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormPropertyRepository creates a new GormPropertyRepository
func NewGormPropertyRepository(db *gorm.DB) *GormPropertyRepository {
	return &GormPropertyRepository{db: db, now: time.Now}
}

// Upsert writes a normalized property keyed by its natural key.
//
// The insert is ON CONFLICT DO NOTHING against the natural key unique
// index, so concurrent writers of one listing never create two rows. A
// conflicting insert falls through to a conditional UPDATE that only
// matches when the stored row is older than the incoming record.
func (r *GormPropertyRepository) Upsert(ctx context.Context, p *listing.Property) (listing.UpsertResult, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}

	now := r.now().UTC()
	var m models.PropertyModel
	m.FromDomain(p)
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	m.CreatedAt, m.UpdatedAt = now, now

	db := r.db.WithContext(ctx)
	res := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "natural_key"}},
		DoNothing: true,
	}).Create(&m)
	if res.Error != nil {
		return "", storageError(ctx, r.db, "insert property", res.Error)
	}
	if res.RowsAffected == 1 {
		p.BaseEntity = m.BaseModel.ToDomain()
		return listing.UpsertCreated, nil
	}

	update := db.Model(&models.PropertyModel{}).Where("natural_key = ?", m.NaturalKey)
	if m.ModificationTimestamp != nil {
		update = update.Where("(modification_timestamp IS NULL OR modification_timestamp < ?)", *m.ModificationTimestamp)
	} else {
		update = update.Where("content_hash <> ?", m.ContentHash)
	}
	res = update.Updates(m.ContentColumns())
	if res.Error != nil {
		return "", storageError(ctx, r.db, "update property", res.Error)
	}
	if res.RowsAffected > 0 {
		return listing.UpsertUpdated, nil
	}

	// Not newer: record the sync touch. The derived flags follow the
	// thresholds of this run only while the stored price is the incoming one.
	res = db.Model(&models.PropertyModel{}).
		Where("natural_key = ?", m.NaturalKey).
		UpdateColumn("idx_synced_at", m.IDXSyncedAt)
	if res.Error != nil {
		return "", storageError(ctx, r.db, "touch property", res.Error)
	}
	res = db.Model(&models.PropertyModel{}).
		Where("natural_key = ? AND price = ?", m.NaturalKey, m.Price).
		Where("(featured <> ? OR luxury <> ?)", m.Featured, m.Luxury).
		UpdateColumns(map[string]any{
			"featured": m.Featured,
			"luxury":   m.Luxury,
		})
	if res.Error != nil {
		return "", storageError(ctx, r.db, "reclassify property", res.Error)
	}
	if res.RowsAffected > 0 {
		return listing.UpsertReclassified, nil
	}
	return listing.UpsertUnchanged, nil
}

// UpdateProvenance refreshes the agent and office of a stored listing
func (r *GormPropertyRepository) UpdateProvenance(ctx context.Context, naturalKey string, agentKey, officeName *string) (bool, error) {
	var m models.PropertyModel
	err := r.db.WithContext(ctx).
		Select("id", "listing_agent_key", "listing_office_name").
		Where("natural_key = ?", naturalKey).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, storageError(ctx, r.db, "load provenance", err)
	}
	if equalPtr(m.ListingAgentKey, agentKey) && equalPtr(m.ListingOfficeName, officeName) {
		return false, nil
	}

	now := r.now().UTC()
	res := r.db.WithContext(ctx).Model(&models.PropertyModel{}).
		Where("id = ?", m.ID).
		UpdateColumns(map[string]any{
			"listing_agent_key":   agentKey,
			"listing_office_name": officeName,
			"idx_synced_at":       now,
			"updated_at":          now,
		})
	if res.Error != nil {
		return false, storageError(ctx, r.db, "update provenance", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// FindByID finds a property by its internal ID
func (r *GormPropertyRepository) FindByID(ctx context.Context, id uuid.UUID) (*listing.Property, error) {
	var m models.PropertyModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, listing.ErrPropertyNotFound
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// FindByNaturalKey finds a property by its provider identity
func (r *GormPropertyRepository) FindByNaturalKey(ctx context.Context, key string) (*listing.Property, error) {
	var m models.PropertyModel
	if err := r.db.WithContext(ctx).Where("natural_key = ?", key).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, listing.ErrPropertyNotFound
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// Query runs a filtered, paginated search. A page beyond the end yields
// no items and HasMore false.
func (r *GormPropertyRepository) Query(ctx context.Context, filter listing.SearchFilter, page shared.Pagination) (*shared.Paginated[listing.Property], error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	base := BuildPropertyQuery(r.db.WithContext(ctx).Model(&models.PropertyModel{}), filter)

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, err
	}

	items := make([]listing.Property, 0, page.PageSize)
	if int64(page.Offset()) < total {
		var rows []models.PropertyModel
		if err := base.Session(&gorm.Session{}).
			Order(PropertyOrder(filter.Sort)).
			Offset(page.Offset()).
			Limit(page.PageSize).
			Find(&rows).Error; err != nil {
			return nil, err
		}
		for i := range rows {
			items = append(items, *rows[i].ToDomain())
		}
	}

	return shared.NewPaginated(items, total, page), nil
}

// Count returns the number of stored properties
func (r *GormPropertyRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.PropertyModel{}).Count(&total).Error
	return total, err
}

// Ping checks store connectivity
func (r *GormPropertyRepository) Ping(ctx context.Context) error {
	return ping(ctx, r.db)
}

func equalPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

var _ listing.PropertyRepository = (*GormPropertyRepository)(nil)

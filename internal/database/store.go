package database

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"suburbtrends/server/internal/models"
)

// Write-side operations. Hierarchy rows are ensure-exists: the upstream ID is
// the identity and is never overwritten, but names (and parent links, should
// upstream re-parent a location) follow the latest payload. Snapshot rows are
// true upserts keyed by date.

func (d *Database) EnsureRegion(tx *gorm.DB, region *models.Region) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name"}),
	}).Create(region).Error
}

func (d *Database) EnsureDistrict(tx *gorm.DB, district *models.District) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "region_id"}),
	}).Create(district).Error
}

func (d *Database) EnsureSuburb(tx *gorm.DB, suburb *models.Suburb) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "district_id", "region_id"}),
	}).Create(suburb).Error
}

// UpsertSnapshot creates or reuses the snapshot row for the given date and
// marks it in_progress for the run that is about to write facts.
func (d *Database) UpsertSnapshot(date string) (*models.Snapshot, error) {
	upserted := models.Snapshot{
		SnapshotDate: date,
		CollectedAt:  time.Now().UTC(),
		Status:       models.SnapshotInProgress,
	}

	err := d.gorm.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "snapshot_date"}},
		DoUpdates: clause.AssignmentColumns([]string{"collected_at", "status"}),
	}).Create(&upserted).Error
	if err != nil {
		return nil, fmt.Errorf("failed to upsert snapshot: %w", err)
	}

	// sqlite does not report the existing rowid on the conflict path, so
	// fetch the row back by its date rather than trusting the backfilled id.
	var snapshot models.Snapshot
	if err := d.gorm.Where("snapshot_date = ?", date).First(&snapshot).Error; err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	return &snapshot, nil
}

// ReplaceFacts swaps the sparse fact rows for one (snapshot, category) in a
// single transaction, so re-runs on the same date never leave stale rows and
// readers never observe a half-written set.
func (d *Database) ReplaceFacts(snapshotID, categoryID int64, facts []models.SuburbListing) error {
	return d.gorm.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("snapshot_id = ? AND listing_type_id = ?", snapshotID, categoryID).
			Delete(&models.SuburbListing{}).Error
		if err != nil {
			return fmt.Errorf("failed to delete existing facts: %w", err)
		}

		if len(facts) == 0 {
			return nil
		}

		if err := tx.CreateInBatches(facts, 200).Error; err != nil {
			return fmt.Errorf("failed to insert facts: %w", err)
		}
		return nil
	})
}

func (d *Database) MarkSnapshotCompleted(snapshotID int64, duration time.Duration) error {
	ms := duration.Milliseconds()
	return d.gorm.Model(&models.Snapshot{}).
		Where("id = ?", snapshotID).
		Updates(map[string]interface{}{
			"status":             models.SnapshotCompleted,
			"processing_time_ms": ms,
		}).Error
}

// MarkStaleSnapshotsFailed flips in_progress snapshots from previous dates to
// failed. A run that died mid-cycle can never complete, and dashboards should
// not treat it as live.
func (d *Database) MarkStaleSnapshotsFailed(today string) (int64, error) {
	result := d.gorm.Model(&models.Snapshot{}).
		Where("status = ? AND snapshot_date < ?", models.SnapshotInProgress, today).
		Update("status", models.SnapshotFailed)
	return result.RowsAffected, result.Error
}

// GetListingCategoryByCode returns nil without error when the code is not
// seeded.
func (d *Database) GetListingCategoryByCode(code string) (*models.ListingCategory, error) {
	var category models.ListingCategory
	err := d.gorm.Where("code = ?", code).First(&category).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query listing category: %w", err)
	}
	return &category, nil
}

func (d *Database) GetListingCategories() ([]models.ListingCategory, error) {
	var categories []models.ListingCategory
	if err := d.gorm.Order("id").Find(&categories).Error; err != nil {
		return nil, fmt.Errorf("failed to query listing categories: %w", err)
	}
	return categories, nil
}

// SeedListingCategories inserts the residential buy/rent categories if they
// are not present yet.
func (d *Database) SeedListingCategories() error {
	categories := []models.ListingCategory{
		{Code: "HOUSES_TO_BUY", DisplayName: "Houses for sale", CategoryGroup: "residential"},
		{Code: "HOUSES_TO_RENT", DisplayName: "Houses for rent", CategoryGroup: "residential"},
	}

	return d.gorm.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoNothing: true,
	}).Create(&categories).Error
}

package models

import "time"

// Snapshot statuses. A run that dies mid-cycle leaves its snapshot
// in_progress; stale in_progress rows are flipped to failed at startup and a
// later run on the same date supersedes them via the snapshot upsert.
const (
	SnapshotInProgress = "in_progress"
	SnapshotCompleted  = "completed"
	SnapshotFailed     = "failed"
)

// Snapshot is one dated collection run. Exactly one row exists per calendar
// date; SnapshotDate is stored as YYYY-MM-DD.
type Snapshot struct {
	ID               int64     `gorm:"primaryKey" json:"id"`
	SnapshotDate     string    `gorm:"uniqueIndex;not null" json:"snapshot_date"`
	CollectedAt      time.Time `gorm:"not null" json:"collected_at"`
	Status           string    `gorm:"not null;default:in_progress" json:"status"`
	ProcessingTimeMS *int64    `gorm:"column:processing_time_ms" json:"processing_time_ms"`
}

// SuburbListing is a sparse fact row: one (snapshot, category, suburb) count.
// Only positive counts are stored; a missing row means zero listings for that
// date, not missing data. District and region totals are never persisted,
// only derived by summing these rows.
type SuburbListing struct {
	ID            int64 `gorm:"primaryKey" json:"id"`
	SnapshotID    int64 `gorm:"not null;uniqueIndex:idx_fact_identity" json:"snapshot_id"`
	ListingTypeID int64 `gorm:"not null;uniqueIndex:idx_fact_identity" json:"listing_type_id"`
	SuburbID      int64 `gorm:"not null;uniqueIndex:idx_fact_identity" json:"suburb_id"`
	ListingCount  int64 `gorm:"not null" json:"listing_count"`
}

func (SuburbListing) TableName() string {
	return "suburb_listings"
}

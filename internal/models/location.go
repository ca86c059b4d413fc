package models

import "time"

// Region, District and Suburb are the normalized reference tables for the
// upstream geographic hierarchy. Primary keys are the upstream-assigned IDs,
// never locally generated; rows are inserted on first sighting and never
// deleted.

type Region struct {
	ID        int64     `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type District struct {
	ID        int64     `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	RegionID  int64     `gorm:"not null" json:"region_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Suburb carries a denormalized RegionID alongside its DistrictID so that
// region-level rollups skip a join. The collector keeps it equal to the
// parent district's region.
type Suburb struct {
	ID         int64     `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Name       string    `gorm:"not null" json:"name"`
	DistrictID int64     `gorm:"not null" json:"district_id"`
	RegionID   int64     `gorm:"not null" json:"region_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// ListingCategory is static reference data, seeded at startup.
type ListingCategory struct {
	ID            int64  `gorm:"primaryKey" json:"id"`
	Code          string `gorm:"uniqueIndex;not null" json:"code"`
	DisplayName   string `gorm:"not null" json:"display_name"`
	CategoryGroup string `gorm:"not null" json:"category_group"`
}

func (ListingCategory) TableName() string {
	return "listing_categories"
}

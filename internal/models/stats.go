package models

import "time"

// Read-side result shapes. These are plain structs so the presentation layer
// never sees driver or ORM types.

type RegionTotal struct {
	RegionID    int64  `json:"region_id"`
	RegionName  string `json:"region_name"`
	Total       int64  `json:"total"`
	SuburbCount int64  `json:"suburb_count"`
}

type DistrictTotal struct {
	DistrictID   int64  `json:"district_id"`
	DistrictName string `json:"district_name"`
	RegionID     int64  `json:"region_id"`
	Total        int64  `json:"total"`
	SuburbCount  int64  `json:"suburb_count"`
}

type SuburbTotal struct {
	SuburbID   int64  `json:"suburb_id"`
	SuburbName string `json:"suburb_name"`
	DistrictID int64  `json:"district_id"`
	RegionID   int64  `json:"region_id"`
	Total      int64  `json:"total"`
}

// LocationTotal is the level-parameterized variant used by the presentation
// layer. Fields below the queried level are nil: a region row carries only
// the region fields, a district row adds district fields, a suburb row fills
// everything. SuburbCount is nil at suburb level where it is meaningless.
type LocationTotal struct {
	RegionID     *int64  `json:"region_id"`
	RegionName   *string `json:"region_name"`
	DistrictID   *int64  `json:"district_id"`
	DistrictName *string `json:"district_name"`
	SuburbID     *int64  `json:"suburb_id"`
	SuburbName   *string `json:"suburb_name"`
	Total        int64   `json:"total"`
	SuburbCount  *int64  `json:"suburb_count"`
}

type TotalsSummary struct {
	Total         int64      `json:"total"`
	RegionCount   int64      `json:"region_count"`
	DistrictCount int64      `json:"district_count"`
	SuburbCount   int64      `json:"suburb_count"`
	LastUpdated   *time.Time `json:"last_updated"`
}

// TrendPoint is one row of the four-granularity historical series. The three
// nullable ids identify the granularity: all nil = national, RegionID set =
// regional, DistrictID set = district, SuburbID set = suburb.
type TrendPoint struct {
	SnapshotDate string `json:"snapshot_date"`
	RegionID     *int64 `json:"region_id"`
	DistrictID   *int64 `json:"district_id"`
	SuburbID     *int64 `json:"suburb_id"`
	Total        int64  `json:"total"`
}

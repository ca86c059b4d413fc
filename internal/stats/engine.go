package stats

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"suburbtrends/server/internal/models"
)

var ErrInvalidLevel = errors.New("invalid hierarchy level")

// Engine is the read-only aggregation layer. Every total is computed by
// summing suburb fact rows joined through the hierarchy tables; nothing is
// ever read from a pre-aggregated column, so region, district and national
// totals cannot disagree with each other. "No data yet" returns empty
// results, never an error.
type Engine struct {
	db     *sql.DB
	logger *logrus.Logger
}

func NewEngine(db *sql.DB, logger *logrus.Logger) *Engine {
	return &Engine{db: db, logger: logger}
}

// latestSnapshot resolves the most recent snapshot that has fact rows for
// the category. found is false when no such snapshot exists yet.
func (e *Engine) latestSnapshot(categoryCode string) (snapshotID int64, collectedAt time.Time, found bool, err error) {
	query := `
        SELECT s.id, s.collected_at
        FROM snapshots s
        JOIN suburb_listings sl ON sl.snapshot_id = s.id
        JOIN listing_categories lc ON lc.id = sl.listing_type_id
        WHERE lc.code = ?
        ORDER BY s.snapshot_date DESC
        LIMIT 1
    `
	err = e.db.QueryRow(query, categoryCode).Scan(&snapshotID, &collectedAt)
	if err == sql.ErrNoRows {
		return 0, time.Time{}, false, nil
	}
	if err != nil {
		return 0, time.Time{}, false, fmt.Errorf("failed to resolve latest snapshot: %w", err)
	}
	return snapshotID, collectedAt, true, nil
}

// RegionTotals sums the latest snapshot's fact rows per region, ordered by
// total descending with region id as the tie-break.
func (e *Engine) RegionTotals(categoryCode string, limit int) ([]models.RegionTotal, error) {
	snapshotID, _, found, err := e.latestSnapshot(categoryCode)
	if err != nil {
		return nil, err
	}
	if !found {
		return []models.RegionTotal{}, nil
	}

	query := `
        SELECT r.id, r.name,
               SUM(sl.listing_count) AS total,
               COUNT(DISTINCT sl.suburb_id) AS suburb_count
        FROM suburb_listings sl
        JOIN suburbs su ON su.id = sl.suburb_id
        JOIN regions r ON r.id = su.region_id
        JOIN listing_categories lc ON lc.id = sl.listing_type_id
        WHERE sl.snapshot_id = ? AND lc.code = ?
        GROUP BY r.id, r.name
        ORDER BY total DESC, r.id ASC
        LIMIT ?
    `
	rows, err := e.db.Query(query, snapshotID, categoryCode, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query region totals: %w", err)
	}
	defer rows.Close()

	totals := []models.RegionTotal{}
	for rows.Next() {
		var t models.RegionTotal
		if err := rows.Scan(&t.RegionID, &t.RegionName, &t.Total, &t.SuburbCount); err != nil {
			return nil, fmt.Errorf("failed to scan region total: %w", err)
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

// DistrictTotals sums the latest snapshot's fact rows per district within one
// region.
func (e *Engine) DistrictTotals(categoryCode string, regionID int64, limit int) ([]models.DistrictTotal, error) {
	snapshotID, _, found, err := e.latestSnapshot(categoryCode)
	if err != nil {
		return nil, err
	}
	if !found {
		return []models.DistrictTotal{}, nil
	}

	query := `
        SELECT d.id, d.name, d.region_id,
               SUM(sl.listing_count) AS total,
               COUNT(DISTINCT sl.suburb_id) AS suburb_count
        FROM suburb_listings sl
        JOIN suburbs su ON su.id = sl.suburb_id
        JOIN districts d ON d.id = su.district_id
        JOIN listing_categories lc ON lc.id = sl.listing_type_id
        WHERE sl.snapshot_id = ? AND lc.code = ? AND d.region_id = ?
        GROUP BY d.id, d.name, d.region_id
        ORDER BY total DESC, d.id ASC
        LIMIT ?
    `
	rows, err := e.db.Query(query, snapshotID, categoryCode, regionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query district totals: %w", err)
	}
	defer rows.Close()

	totals := []models.DistrictTotal{}
	for rows.Next() {
		var t models.DistrictTotal
		if err := rows.Scan(&t.DistrictID, &t.DistrictName, &t.RegionID, &t.Total, &t.SuburbCount); err != nil {
			return nil, fmt.Errorf("failed to scan district total: %w", err)
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

// SuburbTotals returns the latest snapshot's raw fact rows for one district's
// suburbs. No grouping is needed: the fact table holds at most one row per
// suburb per snapshot per category.
func (e *Engine) SuburbTotals(categoryCode string, districtID int64, limit int) ([]models.SuburbTotal, error) {
	snapshotID, _, found, err := e.latestSnapshot(categoryCode)
	if err != nil {
		return nil, err
	}
	if !found {
		return []models.SuburbTotal{}, nil
	}

	query := `
        SELECT su.id, su.name, su.district_id, su.region_id, sl.listing_count
        FROM suburb_listings sl
        JOIN suburbs su ON su.id = sl.suburb_id
        JOIN listing_categories lc ON lc.id = sl.listing_type_id
        WHERE sl.snapshot_id = ? AND lc.code = ? AND su.district_id = ?
        ORDER BY sl.listing_count DESC, su.id ASC
        LIMIT ?
    `
	rows, err := e.db.Query(query, snapshotID, categoryCode, districtID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query suburb totals: %w", err)
	}
	defer rows.Close()

	totals := []models.SuburbTotal{}
	for rows.Next() {
		var t models.SuburbTotal
		if err := rows.Scan(&t.SuburbID, &t.SuburbName, &t.DistrictID, &t.RegionID, &t.Total); err != nil {
			return nil, fmt.Errorf("failed to scan suburb total: %w", err)
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

// LocationsWithFilters is the level-parameterized variant used by the
// presentation layer: the same top-N rollup at region, district or suburb
// granularity in one field-compatible row shape. Ancestor fields are filled
// in for drill-down; fields below the queried level stay nil.
func (e *Engine) LocationsWithFilters(categoryCode, level string, limit int) ([]models.LocationTotal, error) {
	snapshotID, _, found, err := e.latestSnapshot(categoryCode)
	if err != nil {
		return nil, err
	}
	if !found {
		return []models.LocationTotal{}, nil
	}

	var query string
	switch level {
	case "region":
		query = `
            SELECT r.id, r.name, NULL, NULL, NULL, NULL,
                   SUM(sl.listing_count) AS total,
                   COUNT(DISTINCT sl.suburb_id)
            FROM suburb_listings sl
            JOIN suburbs su ON su.id = sl.suburb_id
            JOIN regions r ON r.id = su.region_id
            JOIN listing_categories lc ON lc.id = sl.listing_type_id
            WHERE sl.snapshot_id = ? AND lc.code = ?
            GROUP BY r.id, r.name
            ORDER BY total DESC, r.id ASC
            LIMIT ?
        `
	case "district":
		query = `
            SELECT r.id, r.name, d.id, d.name, NULL, NULL,
                   SUM(sl.listing_count) AS total,
                   COUNT(DISTINCT sl.suburb_id)
            FROM suburb_listings sl
            JOIN suburbs su ON su.id = sl.suburb_id
            JOIN districts d ON d.id = su.district_id
            JOIN regions r ON r.id = d.region_id
            JOIN listing_categories lc ON lc.id = sl.listing_type_id
            WHERE sl.snapshot_id = ? AND lc.code = ?
            GROUP BY d.id, d.name, r.id, r.name
            ORDER BY total DESC, d.id ASC
            LIMIT ?
        `
	case "suburb":
		query = `
            SELECT r.id, r.name, d.id, d.name, su.id, su.name,
                   sl.listing_count AS total,
                   NULL
            FROM suburb_listings sl
            JOIN suburbs su ON su.id = sl.suburb_id
            JOIN districts d ON d.id = su.district_id
            JOIN regions r ON r.id = su.region_id
            JOIN listing_categories lc ON lc.id = sl.listing_type_id
            WHERE sl.snapshot_id = ? AND lc.code = ?
            ORDER BY total DESC, su.id ASC
            LIMIT ?
        `
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidLevel, level)
	}

	rows, err := e.db.Query(query, snapshotID, categoryCode, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s totals: %w", level, err)
	}
	defer rows.Close()

	totals := []models.LocationTotal{}
	for rows.Next() {
		var t models.LocationTotal
		err := rows.Scan(
			&t.RegionID, &t.RegionName,
			&t.DistrictID, &t.DistrictName,
			&t.SuburbID, &t.SuburbName,
			&t.Total, &t.SuburbCount,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan location total: %w", err)
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

// TotalsSummary derives all four counts independently from the fact table
// via distinct-count joins; nothing comes from a cached total.
func (e *Engine) TotalsSummary(categoryCode string) (models.TotalsSummary, error) {
	snapshotID, collectedAt, found, err := e.latestSnapshot(categoryCode)
	if err != nil {
		return models.TotalsSummary{}, err
	}
	if !found {
		return models.TotalsSummary{}, nil
	}

	query := `
        SELECT COALESCE(SUM(sl.listing_count), 0),
               COUNT(DISTINCT su.region_id),
               COUNT(DISTINCT su.district_id),
               COUNT(DISTINCT sl.suburb_id)
        FROM suburb_listings sl
        JOIN suburbs su ON su.id = sl.suburb_id
        JOIN listing_categories lc ON lc.id = sl.listing_type_id
        WHERE sl.snapshot_id = ? AND lc.code = ?
    `
	var summary models.TotalsSummary
	err = e.db.QueryRow(query, snapshotID, categoryCode).Scan(
		&summary.Total,
		&summary.RegionCount,
		&summary.DistrictCount,
		&summary.SuburbCount,
	)
	if err != nil {
		return models.TotalsSummary{}, fmt.Errorf("failed to query totals summary: %w", err)
	}

	summary.LastUpdated = &collectedAt
	return summary, nil
}

// HistoricalSeries reconstructs the trend series as a union of four
// granularities: national (all ids null), regional, district and raw
// per-suburb rows, ordered by snapshot date ascending. One query serves
// whatever level the caller has drilled into. A positive limit restricts the
// series to the most recent N snapshots.
func (e *Engine) HistoricalSeries(categoryCode string, limit int) ([]models.TrendPoint, error) {
	dateFilter := ""
	legArgs := []interface{}{categoryCode}
	if limit > 0 {
		// Resolve the cutoff date of the Nth most recent snapshot; fewer
		// snapshots than the limit means no cutoff at all.
		var cutoff string
		err := e.db.QueryRow(
			`SELECT snapshot_date FROM snapshots ORDER BY snapshot_date DESC LIMIT 1 OFFSET ?`,
			limit-1,
		).Scan(&cutoff)
		if err != nil && err != sql.ErrNoRows {
			return nil, fmt.Errorf("failed to resolve series cutoff: %w", err)
		}
		if err == nil {
			dateFilter = " AND s.snapshot_date >= ?"
			legArgs = append(legArgs, cutoff)
		}
	}

	base := `
        FROM suburb_listings sl
        JOIN snapshots s ON s.id = sl.snapshot_id
        JOIN suburbs su ON su.id = sl.suburb_id
        JOIN listing_categories lc ON lc.id = sl.listing_type_id
        WHERE lc.code = ?` + dateFilter

	query := `
        SELECT snapshot_date, region_id, district_id, suburb_id, total FROM (
            SELECT s.snapshot_date, NULL AS region_id, NULL AS district_id, NULL AS suburb_id,
                   SUM(sl.listing_count) AS total ` + base + `
            GROUP BY s.snapshot_date
            UNION ALL
            SELECT s.snapshot_date, su.region_id, NULL, NULL,
                   SUM(sl.listing_count) ` + base + `
            GROUP BY s.snapshot_date, su.region_id
            UNION ALL
            SELECT s.snapshot_date, NULL, su.district_id, NULL,
                   SUM(sl.listing_count) ` + base + `
            GROUP BY s.snapshot_date, su.district_id
            UNION ALL
            SELECT s.snapshot_date, NULL, NULL, sl.suburb_id,
                   sl.listing_count ` + base + `
        )
        ORDER BY snapshot_date ASC,
                 COALESCE(region_id, 0), COALESCE(district_id, 0), COALESCE(suburb_id, 0)
    `

	var args []interface{}
	for i := 0; i < 4; i++ {
		args = append(args, legArgs...)
	}

	rows, err := e.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query historical series: %w", err)
	}
	defer rows.Close()

	points := []models.TrendPoint{}
	for rows.Next() {
		var p models.TrendPoint
		if err := rows.Scan(&p.SnapshotDate, &p.RegionID, &p.DistrictID, &p.SuburbID, &p.Total); err != nil {
			return nil, fmt.Errorf("failed to scan trend point: %w", err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"suburbtrends/server/internal/cache"
	"suburbtrends/server/internal/database"
	"suburbtrends/server/internal/models"
	"suburbtrends/server/internal/upstream"
)

// Result is the structured outcome of one collection cycle. The collector
// never lets an error escape its boundary; the scheduler reads this and
// decides nothing beyond logging, retrying only at the next trigger.
type Result struct {
	Success       bool   `json:"success"`
	FactRows      int    `json:"fact_rows"`
	TotalListings int64  `json:"total_listings"`
	Error         string `json:"error,omitempty"`
}

// Collector runs the ingestion and reconciliation cycle for one listing
// category at a time. Upstream reports counts at every hierarchy level but
// they disagree with each other; only suburb counts have been observed to be
// internally consistent, so they are the single authoritative level and all
// higher totals are derived later by summation.
type Collector struct {
	db     *database.Database
	client *upstream.Client
	cache  *cache.ResultCache
	logger *logrus.Logger
}

func New(db *database.Database, client *upstream.Client, resultCache *cache.ResultCache, logger *logrus.Logger) *Collector {
	return &Collector{
		db:     db,
		client: client,
		cache:  resultCache,
		logger: logger,
	}
}

// Collect performs one complete collection cycle for a category: fetch the
// hierarchy, upsert reference rows for every location seen, then replace the
// day's sparse fact rows in a single transaction. Re-running on the same
// calendar date is safe and converges to the same end state.
func (c *Collector) Collect(ctx context.Context, categoryCode string) Result {
	started := time.Now()

	category, err := c.db.GetListingCategoryByCode(categoryCode)
	if err != nil {
		return c.fail(categoryCode, err)
	}
	if category == nil {
		return c.fail(categoryCode, fmt.Errorf("listing category %q is not seeded", categoryCode))
	}

	regions, err := c.client.FetchHierarchy(ctx, categoryCode)
	if err != nil {
		return c.fail(categoryCode, err)
	}

	facts, totalListings, err := c.ingestHierarchy(regions, category)
	if err != nil {
		return c.fail(categoryCode, err)
	}

	snapshot, err := c.db.UpsertSnapshot(time.Now().UTC().Format("2006-01-02"))
	if err != nil {
		return c.fail(categoryCode, err)
	}

	for i := range facts {
		facts[i].SnapshotID = snapshot.ID
	}
	if err := c.db.ReplaceFacts(snapshot.ID, category.ID, facts); err != nil {
		return c.fail(categoryCode, err)
	}

	if err := c.db.MarkSnapshotCompleted(snapshot.ID, time.Since(started)); err != nil {
		return c.fail(categoryCode, err)
	}

	c.cache.InvalidateCategory(categoryCode)

	c.logger.WithFields(logrus.Fields{
		"category":       categoryCode,
		"snapshot_date":  snapshot.SnapshotDate,
		"fact_rows":      len(facts),
		"total_listings": totalListings,
		"duration_ms":    time.Since(started).Milliseconds(),
	}).Info("Collection cycle completed")

	return Result{
		Success:       true,
		FactRows:      len(facts),
		TotalListings: totalListings,
	}
}

// ingestHierarchy walks the upstream tree, ensures a reference row for every
// region, district and suburb regardless of count, and returns the sparse
// fact candidates (suburbs with a strictly positive count). The fact rows
// come back without a snapshot id; the caller fills it in once the snapshot
// exists.
func (c *Collector) ingestHierarchy(regions []upstream.RegionNode, category *models.ListingCategory) ([]models.SuburbListing, int64, error) {
	tx := c.db.GetGorm()

	var facts []models.SuburbListing
	var totalListings int64

	for _, regionNode := range regions {
		if regionNode.ID == upstream.AllLocationsID {
			c.logger.WithField("region", regionNode.Name).
				Debug("Skipping all-locations pseudo-region")
			continue
		}

		region := models.Region{ID: regionNode.ID, Name: regionNode.Name}
		if err := c.db.EnsureRegion(tx, &region); err != nil {
			return nil, 0, fmt.Errorf("failed to upsert region %d: %w", regionNode.ID, err)
		}

		for _, districtNode := range regionNode.Districts {
			district := models.District{
				ID:       districtNode.ID,
				Name:     districtNode.Name,
				RegionID: regionNode.ID,
			}
			if err := c.db.EnsureDistrict(tx, &district); err != nil {
				return nil, 0, fmt.Errorf("failed to upsert district %d: %w", districtNode.ID, err)
			}

			var districtSum int64
			for _, suburbNode := range districtNode.Suburbs {
				suburb := models.Suburb{
					ID:         suburbNode.ID,
					Name:       suburbNode.Name,
					DistrictID: districtNode.ID,
					RegionID:   regionNode.ID,
				}
				if err := c.db.EnsureSuburb(tx, &suburb); err != nil {
					return nil, 0, fmt.Errorf("failed to upsert suburb %d: %w", suburbNode.ID, err)
				}

				count := suburbNode.ListingCount()
				if count <= 0 {
					continue
				}

				districtSum += count
				totalListings += count
				facts = append(facts, models.SuburbListing{
					ListingTypeID: category.ID,
					SuburbID:      suburbNode.ID,
					ListingCount:  count,
				})
			}

			// The district's own count field is never persisted, but a
			// divergence from its suburb sum is worth knowing about.
			if districtNode.Count != nil && districtNode.ListingCount() != districtSum {
				c.logger.WithFields(logrus.Fields{
					"district":       districtNode.Name,
					"district_id":    districtNode.ID,
					"reported_count": districtNode.ListingCount(),
					"suburb_sum":     districtSum,
				}).Warn("Upstream district count disagrees with suburb sum")
			}
		}
	}

	return facts, totalListings, nil
}

func (c *Collector) fail(categoryCode string, err error) Result {
	c.logger.WithError(err).WithField("category", categoryCode).
		Error("Collection cycle failed")
	return Result{Success: false, Error: err.Error()}
}

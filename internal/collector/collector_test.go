package collector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"suburbtrends/server/internal/cache"
	"suburbtrends/server/internal/database"
	"suburbtrends/server/internal/models"
	"suburbtrends/server/internal/stats"
	"suburbtrends/server/internal/upstream"
)

// northlandPayload is the reference hierarchy: one region with one district
// whose two suburbs sum to the district's own reported count.
const northlandPayload = `[
	{
		"id": 9, "name": "Northland", "count": 400,
		"districts": [
			{
				"id": 1, "name": "Far North", "count": 400,
				"suburbs": [
					{"id": 1736, "name": "Kerikeri", "count": 354},
					{"id": 1737, "name": "Paihia", "count": 46}
				]
			}
		]
	}
]`

type testEnv struct {
	db        *database.Database
	collector *Collector
	stats     *stats.Engine
	server    *httptest.Server
	payload   string
	status    int
}

func newTestEnv(t *testing.T, payload string) *testEnv {
	env := &testEnv{payload: payload, status: http.StatusOK}

	env.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if env.status != http.StatusOK {
			w.WriteHeader(env.status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(env.payload))
	}))
	t.Cleanup(env.server.Close)

	db, err := database.NewDatabase(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.RunMigrations())
	require.NoError(t, db.SeedListingCategories())
	env.db = db

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	client := upstream.NewClient(env.server.URL, 5*time.Second, logger)
	env.collector = New(db, client, cache.New(time.Minute), logger)
	env.stats = stats.NewEngine(db.GetDB(), logger)

	return env
}

func TestCollectEndToEnd(t *testing.T) {
	env := newTestEnv(t, northlandPayload)

	result := env.collector.Collect(context.Background(), "HOUSES_TO_BUY")
	require.True(t, result.Success, result.Error)
	assert.Equal(t, 2, result.FactRows)
	assert.Equal(t, int64(400), result.TotalListings)

	gormDB := env.db.GetGorm()

	var region models.Region
	require.NoError(t, gormDB.First(&region, 9).Error)
	assert.Equal(t, "Northland", region.Name)

	var district models.District
	require.NoError(t, gormDB.First(&district, 1).Error)
	assert.Equal(t, "Far North", district.Name)
	assert.Equal(t, int64(9), district.RegionID)

	var suburbs []models.Suburb
	require.NoError(t, gormDB.Order("id").Find(&suburbs).Error)
	require.Len(t, suburbs, 2)
	assert.Equal(t, "Kerikeri", suburbs[0].Name)
	assert.Equal(t, "Paihia", suburbs[1].Name)
	for _, suburb := range suburbs {
		assert.Equal(t, int64(1), suburb.DistrictID)
		assert.Equal(t, int64(9), suburb.RegionID)
	}

	var facts []models.SuburbListing
	require.NoError(t, gormDB.Order("suburb_id").Find(&facts).Error)
	require.Len(t, facts, 2)
	assert.Equal(t, int64(354), facts[0].ListingCount)
	assert.Equal(t, int64(46), facts[1].ListingCount)

	var snapshot models.Snapshot
	require.NoError(t, gormDB.First(&snapshot).Error)
	assert.Equal(t, models.SnapshotCompleted, snapshot.Status)
	require.NotNil(t, snapshot.ProcessingTimeMS)

	regionTotals, err := env.stats.RegionTotals("HOUSES_TO_BUY", 10)
	require.NoError(t, err)
	require.Len(t, regionTotals, 1)
	assert.Equal(t, int64(400), regionTotals[0].Total)
	assert.Equal(t, int64(2), regionTotals[0].SuburbCount)

	districtTotals, err := env.stats.DistrictTotals("HOUSES_TO_BUY", 9, 10)
	require.NoError(t, err)
	require.Len(t, districtTotals, 1)
	assert.Equal(t, int64(400), districtTotals[0].Total)
}

func TestCollectIgnoresDistrictCount(t *testing.T) {
	// The district's own reported count disagrees with its suburbs; the
	// suburb sum wins because district and region counts are never read as
	// totals.
	payload := `[
		{
			"id": 9, "name": "Northland",
			"districts": [
				{
					"id": 1, "name": "Far North", "count": 999,
					"suburbs": [
						{"id": 1736, "name": "Kerikeri", "count": 354},
						{"id": 1737, "name": "Paihia", "count": 46}
					]
				}
			]
		}
	]`
	env := newTestEnv(t, payload)

	result := env.collector.Collect(context.Background(), "HOUSES_TO_BUY")
	require.True(t, result.Success, result.Error)
	assert.Equal(t, int64(400), result.TotalListings)

	regionTotals, err := env.stats.RegionTotals("HOUSES_TO_BUY", 10)
	require.NoError(t, err)
	require.Len(t, regionTotals, 1)
	assert.Equal(t, int64(400), regionTotals[0].Total)

	districtTotals, err := env.stats.DistrictTotals("HOUSES_TO_BUY", 9, 10)
	require.NoError(t, err)
	require.Len(t, districtTotals, 1)
	assert.Equal(t, int64(400), districtTotals[0].Total)
}

func TestCollectSkipsAllLocationsSentinel(t *testing.T) {
	payload := `[
		{
			"id": 102, "name": "All Locations", "count": 123456,
			"districts": [
				{
					"id": 500, "name": "Everywhere",
					"suburbs": [{"id": 9000, "name": "Anywhere", "count": 123456}]
				}
			]
		},
		{
			"id": 9, "name": "Northland",
			"districts": [
				{
					"id": 1, "name": "Far North",
					"suburbs": [{"id": 1736, "name": "Kerikeri", "count": 354}]
				}
			]
		}
	]`
	env := newTestEnv(t, payload)

	result := env.collector.Collect(context.Background(), "HOUSES_TO_BUY")
	require.True(t, result.Success, result.Error)
	assert.Equal(t, int64(354), result.TotalListings)

	var regionIDs []int64
	require.NoError(t, env.db.GetGorm().Model(&models.Region{}).Pluck("id", &regionIDs).Error)
	assert.Equal(t, []int64{9}, regionIDs)

	summary, err := env.stats.TotalsSummary("HOUSES_TO_BUY")
	require.NoError(t, err)
	assert.Equal(t, int64(354), summary.Total)
}

func TestCollectSparseInvariant(t *testing.T) {
	// Zero and absent counts produce no fact rows, but the suburbs still
	// enter the hierarchy for navigation.
	payload := `[
		{
			"id": 9, "name": "Northland",
			"districts": [
				{
					"id": 1, "name": "Far North",
					"suburbs": [
						{"id": 1736, "name": "Kerikeri", "count": 354},
						{"id": 1737, "name": "Paihia", "count": 0},
						{"id": 1738, "name": "Moerewa"}
					]
				}
			]
		}
	]`
	env := newTestEnv(t, payload)

	result := env.collector.Collect(context.Background(), "HOUSES_TO_BUY")
	require.True(t, result.Success, result.Error)
	assert.Equal(t, 1, result.FactRows)

	var suburbCount int64
	require.NoError(t, env.db.GetGorm().Model(&models.Suburb{}).Count(&suburbCount).Error)
	assert.Equal(t, int64(3), suburbCount)

	var facts []models.SuburbListing
	require.NoError(t, env.db.GetGorm().Find(&facts).Error)
	require.Len(t, facts, 1)
	assert.Equal(t, int64(1736), facts[0].SuburbID)
	assert.Greater(t, facts[0].ListingCount, int64(0))
}

func TestCollectIdempotentRerun(t *testing.T) {
	env := newTestEnv(t, northlandPayload)

	result := env.collector.Collect(context.Background(), "HOUSES_TO_BUY")
	require.True(t, result.Success, result.Error)

	// The upstream changes within the same day: Paihia drops to zero and
	// Kerikeri moves. A re-run must converge on the new payload with no
	// stale rows and no duplicate snapshot.
	env.payload = `[
		{
			"id": 9, "name": "Northland",
			"districts": [
				{
					"id": 1, "name": "Far North",
					"suburbs": [
						{"id": 1736, "name": "Kerikeri", "count": 360},
						{"id": 1737, "name": "Paihia", "count": 0}
					]
				}
			]
		}
	]`

	result = env.collector.Collect(context.Background(), "HOUSES_TO_BUY")
	require.True(t, result.Success, result.Error)
	assert.Equal(t, 1, result.FactRows)
	assert.Equal(t, int64(360), result.TotalListings)

	var snapshotCount int64
	require.NoError(t, env.db.GetGorm().Model(&models.Snapshot{}).Count(&snapshotCount).Error)
	assert.Equal(t, int64(1), snapshotCount)

	var facts []models.SuburbListing
	require.NoError(t, env.db.GetGorm().Find(&facts).Error)
	require.Len(t, facts, 1)
	assert.Equal(t, int64(1736), facts[0].SuburbID)
	assert.Equal(t, int64(360), facts[0].ListingCount)

	// Paihia keeps its hierarchy row even though its fact row is gone.
	var paihia models.Suburb
	require.NoError(t, env.db.GetGorm().First(&paihia, 1737).Error)
}

func TestCollectFetchFailure(t *testing.T) {
	env := newTestEnv(t, northlandPayload)
	env.status = http.StatusInternalServerError

	result := env.collector.Collect(context.Background(), "HOUSES_TO_BUY")
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "status 500")

	// A failed fetch leaves no snapshot and no facts behind.
	var snapshotCount, factCount int64
	require.NoError(t, env.db.GetGorm().Model(&models.Snapshot{}).Count(&snapshotCount).Error)
	require.NoError(t, env.db.GetGorm().Model(&models.SuburbListing{}).Count(&factCount).Error)
	assert.Zero(t, snapshotCount)
	assert.Zero(t, factCount)
}

func TestCollectUnknownCategory(t *testing.T) {
	env := newTestEnv(t, northlandPayload)

	result := env.collector.Collect(context.Background(), "OFFICES_TO_LEASE")
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "not seeded")
}

func TestCollectMalformedPayload(t *testing.T) {
	env := newTestEnv(t, `{"not": "an array"}`)

	result := env.collector.Collect(context.Background(), "HOUSES_TO_BUY")
	assert.False(t, result.Success)

	var factCount int64
	require.NoError(t, env.db.GetGorm().Model(&models.SuburbListing{}).Count(&factCount).Error)
	assert.Zero(t, factCount)
}

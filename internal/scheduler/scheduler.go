package scheduler

import (
	"context"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"suburbtrends/server/internal/collector"
	"suburbtrends/server/internal/database"
)

// Scheduler triggers one collection cycle per seeded listing category on a
// cron interval. Categories run sequentially under the job mutex; a failed
// cycle is logged and simply waits for the next trigger, there is no
// internal retry.
type Scheduler struct {
	db         *database.Database
	collector  *collector.Collector
	logger     *logrus.Logger
	cron       *cron.Cron
	jobMutex   sync.Mutex
	runOnStart bool
}

func New(db *database.Database, c *collector.Collector, logger *logrus.Logger, runOnStart bool) *Scheduler {
	return &Scheduler{
		db:         db,
		collector:  c,
		logger:     logger,
		cron:       cron.New(),
		runOnStart: runOnStart,
	}
}

func (s *Scheduler) Start(cronExpr string) error {
	if _, err := s.cron.AddFunc(cronExpr, s.RunAll); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.WithField("cron", cronExpr).Info("Collection schedule started")

	if s.runOnStart {
		go func() {
			s.logger.Info("Running startup collection pass")
			s.RunAll()
		}()
	}

	return nil
}

// RunAll collects every seeded category once, sequentially.
func (s *Scheduler) RunAll() {
	s.jobMutex.Lock()
	defer s.jobMutex.Unlock()

	categories, err := s.db.GetListingCategories()
	if err != nil {
		s.logger.WithError(err).Error("Failed to load listing categories")
		return
	}

	for _, category := range categories {
		result := s.collector.Collect(context.Background(), category.Code)
		fields := logrus.Fields{
			"category":       category.Code,
			"success":        result.Success,
			"fact_rows":      result.FactRows,
			"total_listings": result.TotalListings,
		}
		if result.Success {
			s.logger.WithFields(fields).Info("Collection job completed")
		} else {
			fields["error"] = result.Error
			s.logger.WithFields(fields).Error("Collection job failed")
		}
	}
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

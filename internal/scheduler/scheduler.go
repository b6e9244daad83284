// Package scheduler launches periodic program re-analysis runs for companies
// that have a refresh schedule, using distributed locks so only one instance
// refreshes a given company.
package scheduler

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mostafaosama999/Marketing-agent-sub004/internal/config"
	"github.com/mostafaosama999/Marketing-agent-sub004/internal/database"
	"github.com/mostafaosama999/Marketing-agent-sub004/internal/model"
	"github.com/mostafaosama999/Marketing-agent-sub004/internal/service"
)

// Scheduler drives scheduled refresh runs
type Scheduler struct {
	cfg         *config.Config
	runService  *service.RunService
	lockRepo    *database.LockRepository
	companyRepo *database.CompanyRepository
	instanceID  string
	ticker      *time.Ticker
	stopChan    chan struct{}
	wg          sync.WaitGroup
	semaphore   chan struct{} // Limits concurrent refresh runs
}

// NewScheduler creates a new scheduler instance
func NewScheduler(
	cfg *config.Config,
	runService *service.RunService,
	lockRepo *database.LockRepository,
	companyRepo *database.CompanyRepository,
) *Scheduler {
	// Instance identifier (hostname in Kubernetes)
	instanceID, err := os.Hostname()
	if err != nil {
		instanceID = uuid.New().String()
		slog.Warn("Failed to get hostname, using UUID as instance ID", "instance_id", instanceID)
	}

	return &Scheduler{
		cfg:         cfg,
		runService:  runService,
		lockRepo:    lockRepo,
		companyRepo: companyRepo,
		instanceID:  instanceID,
		stopChan:    make(chan struct{}),
		semaphore:   make(chan struct{}, cfg.SchedulerConcurrency),
	}
}

// Start begins the scheduler tick loop
func (s *Scheduler) Start(ctx context.Context) {
	if !s.cfg.SchedulerEnabled {
		slog.Info("Refresh scheduler is disabled by configuration")
		return
	}

	slog.Info("Starting refresh scheduler",
		"instance_id", s.instanceID,
		"tick_interval", s.cfg.SchedulerTickInterval,
		"lock_ttl", s.cfg.SchedulerLockTTL,
		"concurrency", s.cfg.SchedulerConcurrency,
	)

	s.ticker = time.NewTicker(s.cfg.SchedulerTickInterval)
	s.wg.Add(1)

	go s.run(ctx)
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop(ctx context.Context) {
	if !s.cfg.SchedulerEnabled {
		return
	}

	slog.Info("Stopping refresh scheduler", "instance_id", s.instanceID)

	close(s.stopChan)

	if s.ticker != nil {
		s.ticker.Stop()
	}

	// Wait for in-flight refresh runs with timeout
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("All scheduled refresh runs completed")
	case <-ctx.Done():
		slog.Warn("Timeout waiting for scheduled refresh runs to complete")
	}

	if err := s.lockRepo.ReleaseAllLocks(context.Background(), s.instanceID); err != nil {
		slog.Error("Failed to release locks during shutdown", "error", err)
	}

	slog.Info("Refresh scheduler stopped", "instance_id", s.instanceID)
}

// run is the main scheduler loop
func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	// Run immediately on start
	s.tick(ctx)

	for {
		select {
		case <-s.ticker.C:
			s.tick(ctx)
		case <-s.stopChan:
			return
		case <-ctx.Done():
			slog.Info("Scheduler context done", "instance_id", s.instanceID)
			return
		}
	}
}

// tick processes one scheduler tick
func (s *Scheduler) tick(ctx context.Context) {
	now := time.Now().UTC()

	if cleaned, err := s.lockRepo.CleanExpiredLocks(ctx); err != nil {
		slog.Error("Failed to clean expired locks", "error", err)
	} else if cleaned > 0 {
		slog.Info("Cleaned expired locks", "count", cleaned)
	}

	companies, err := s.companyRepo.FindDueRefresh(ctx, now)
	if err != nil {
		slog.Error("Failed to find due refreshes", "error", err)
		return
	}

	if len(companies) == 0 {
		return
	}

	slog.Info("Found companies due for refresh",
		"instance_id", s.instanceID,
		"count", len(companies),
	)

	for _, company := range companies {
		acquired, err := s.lockRepo.AcquireLock(ctx, company.ID, s.instanceID, s.cfg.SchedulerLockTTL)
		if err != nil {
			slog.Error("Failed to acquire lock",
				"company_id", company.ID.Hex(),
				"company_name", company.Name,
				"error", err,
			)
			continue
		}

		if !acquired {
			slog.Debug("Lock already held by another instance",
				"company_id", company.ID.Hex(),
				"company_name", company.Name,
			)
			continue
		}

		s.wg.Add(1)
		go s.refreshCompany(ctx, company)
	}
}

// refreshCompany executes one company's refresh run under its lock
func (s *Scheduler) refreshCompany(ctx context.Context, company model.Company) {
	defer s.wg.Done()

	// Acquire semaphore slot (limit concurrent refresh runs)
	select {
	case s.semaphore <- struct{}{}:
		defer func() { <-s.semaphore }()
	case <-s.stopChan:
		s.releaseLock(ctx, company.ID)
		return
	case <-ctx.Done():
		s.releaseLock(ctx, company.ID)
		return
	}

	slog.Info("Executing scheduled refresh",
		"company_id", company.ID.Hex(),
		"company_name", company.Name,
		"instance_id", s.instanceID,
	)

	start := time.Now()

	err := s.runService.RunRefresh(ctx, company)

	duration := time.Since(start)

	if err != nil {
		slog.Error("Scheduled refresh failed",
			"company_id", company.ID.Hex(),
			"company_name", company.Name,
			"duration_ms", duration.Milliseconds(),
			"error", err,
		)
	} else {
		slog.Info("Scheduled refresh completed",
			"company_id", company.ID.Hex(),
			"company_name", company.Name,
			"duration_ms", duration.Milliseconds(),
		)
	}

	if err := s.updateNextRefreshRun(ctx, company); err != nil {
		slog.Error("Failed to update next refresh run",
			"company_id", company.ID.Hex(),
			"error", err,
		)
	}

	s.releaseLock(ctx, company.ID)
}

// updateNextRefreshRun computes and stores the company's next refresh time
func (s *Scheduler) updateNextRefreshRun(ctx context.Context, company model.Company) error {
	now := time.Now().UTC()

	schedule, err := model.CronParser.Parse(company.RefreshSchedule)
	if err != nil {
		return err
	}

	return s.companyRepo.UpdateRefreshRun(ctx, company.ID, now, schedule.Next(now))
}

// releaseLock releases the refresh lock for a company
func (s *Scheduler) releaseLock(ctx context.Context, companyID primitive.ObjectID) {
	if err := s.lockRepo.ReleaseLock(ctx, companyID, s.instanceID); err != nil {
		slog.Error("Failed to release lock",
			"company_id", companyID.Hex(),
			"instance_id", s.instanceID,
			"error", err,
		)
	}
}

package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mostafaosama999/Marketing-agent-sub004/internal/batch"
	"github.com/mostafaosama999/Marketing-agent-sub004/internal/config"
	"github.com/mostafaosama999/Marketing-agent-sub004/internal/database"
	"github.com/mostafaosama999/Marketing-agent-sub004/internal/model"
	"github.com/mostafaosama999/Marketing-agent-sub004/internal/pipeline"
	"github.com/mostafaosama999/Marketing-agent-sub004/internal/remote"
)

// RunService orchestrates pipeline runs: building items from companies,
// driving the sequencer phases, and persisting results
type RunService struct {
	cfg         *config.Config
	companyRepo *database.CompanyRepository
	runRepo     *database.RunRepository
	client      *remote.Client
	statusStore *model.RunStatusStore
}

// NewRunService creates a new run service
func NewRunService(
	cfg *config.Config,
	companyRepo *database.CompanyRepository,
	runRepo *database.RunRepository,
	client *remote.Client,
) *RunService {
	return &RunService{
		cfg:         cfg,
		companyRepo: companyRepo,
		runRepo:     runRepo,
		client:      client,
		statusStore: model.NewRunStatusStore(),
	}
}

// StartDiscovery creates a pipeline run over the given companies and launches
// the discovery phase in the background. Returns the run ID for polling.
func (s *RunService) StartDiscovery(ctx context.Context, companyIDs []string, triggeredBy string) (string, error) {
	if len(companyIDs) == 0 {
		return "", fmt.Errorf("at least one company is required")
	}

	run, err := s.buildRun(ctx, companyIDs, triggeredBy)
	if err != nil {
		return "", err
	}

	if err := s.runRepo.Create(ctx, run); err != nil {
		return "", err
	}
	s.statusStore.Set(run.RunID, statusSnapshot(run))

	slog.Info("Pipeline run created",
		"run_id", run.RunID,
		"companies", len(run.Items),
		"triggered_by", triggeredBy,
	)

	go s.executeDiscovery(context.Background(), run)

	return run.RunID, nil
}

// RunRefresh executes a full scheduled refresh for one company synchronously:
// discovery, auto-selection, analysis. Called from the scheduler, which
// bounds concurrency and holds the refresh lock.
func (s *RunService) RunRefresh(ctx context.Context, company model.Company) error {
	run, err := s.buildRun(ctx, []string{company.ID.Hex()}, "scheduler")
	if err != nil {
		return err
	}

	if err := s.runRepo.Create(ctx, run); err != nil {
		return err
	}
	s.statusStore.Set(run.RunID, statusSnapshot(run))

	s.executeDiscovery(ctx, run)
	return nil
}

// StartAnalysis applies the submitted selections to a run awaiting them and
// launches the analysis phase in the background. Discovered items without a
// selection are recorded as skipped.
func (s *RunService) StartAnalysis(ctx context.Context, runID string, selections map[string]string) error {
	run, err := s.runRepo.GetByRunID(ctx, runID)
	if err != nil {
		return err
	}

	if run.Status != model.RunStatusAwaitingSelection {
		return fmt.Errorf("run %s is not awaiting selection (status %s)", runID, run.Status)
	}

	seq := s.sequencerFor(run.RunID)
	if err := seq.ApplySelections(run, selections); err != nil {
		return err
	}

	run.Phase = model.PhaseAnalysis
	run.Status = model.RunStatusRunning
	if err := s.runRepo.Update(ctx, run); err != nil {
		return err
	}
	s.statusStore.UpdateRun(run.RunID, run.Status, run.Phase)

	slog.Info("Analysis phase queued",
		"run_id", run.RunID,
		"selections", len(selections),
	)

	go s.executeAnalysis(context.Background(), run)

	return nil
}

// GetRun retrieves the persisted run document
func (s *RunService) GetRun(ctx context.Context, runID string) (*model.PipelineRun, error) {
	return s.runRepo.GetByRunID(ctx, runID)
}

// GetStatus retrieves the live status for an in-flight run
func (s *RunService) GetStatus(runID string) (*model.RunStatus, bool) {
	return s.statusStore.Get(runID)
}

// ListRuns retrieves run summaries, newest first
func (s *RunService) ListRuns(ctx context.Context, status string, page, limit int) ([]model.RunListItem, int64, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}

	runs, total, err := s.runRepo.List(ctx, filter, page, limit)
	if err != nil {
		return nil, 0, err
	}

	items := make([]model.RunListItem, len(runs))
	for i := range runs {
		items[i] = runs[i].ToListItem()
	}

	return items, total, nil
}

// buildRun loads the companies and assembles the run document. Companies
// whose custom fields already carry a program URL (per the configured field
// mapping) enter the run pre-selected and skip discovery entirely.
func (s *RunService) buildRun(ctx context.Context, companyIDs []string, triggeredBy string) (*model.PipelineRun, error) {
	objIDs := make([]primitive.ObjectID, 0, len(companyIDs))
	for _, id := range companyIDs {
		objID, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			return nil, fmt.Errorf("invalid company ID %q: %w", id, err)
		}
		objIDs = append(objIDs, objID)
	}

	companies, err := s.companyRepo.GetByIDs(ctx, objIDs)
	if err != nil {
		return nil, err
	}

	found := make(map[string]model.Company, len(companies))
	for _, company := range companies {
		found[company.ID.Hex()] = company
	}

	items := make([]model.RunItem, 0, len(companyIDs))
	for _, id := range companyIDs {
		company, ok := found[id]
		if !ok {
			return nil, fmt.Errorf("company %s not found", id)
		}

		item := model.RunItem{
			CompanyID:   company.ID,
			CompanyName: company.Name,
			Website:     company.Website,
			State:       model.ItemNotStarted,
		}

		if s.cfg.ProgramURLField != "" {
			if url, ok := remote.LookupString(company.CustomFields, s.cfg.ProgramURLField); ok {
				item.State = model.ItemSelected
				item.SelectedURL = url
			}
		}

		items = append(items, item)
	}

	return &model.PipelineRun{
		RunID:       uuid.New().String(),
		TriggeredBy: triggeredBy,
		Phase:       model.PhaseDiscovery,
		Status:      model.RunStatusRunning,
		Items:       items,
		StartedAt:   time.Now().UTC(),
	}, nil
}

// executeDiscovery runs the discovery phase. API-triggered runs then wait for
// human selection; scheduler-triggered runs auto-select and continue straight
// into analysis.
func (s *RunService) executeDiscovery(ctx context.Context, run *model.PipelineRun) {
	seq := s.sequencerFor(run.RunID)

	slog.Info("Starting pipeline run",
		"run_id", run.RunID,
		"phase", run.Phase,
		"companies", len(run.Items),
	)

	if err := seq.RunDiscovery(ctx, run); err != nil {
		s.finishRun(run, model.RunStatusCanceled)
		return
	}

	if run.TriggeredBy == "scheduler" {
		seq.AutoSelect(run)
		run.Phase = model.PhaseAnalysis
		s.persist(run)
		s.executeAnalysis(ctx, run)
		return
	}

	run.Status = model.RunStatusAwaitingSelection
	s.persist(run)
	s.statusStore.UpdateRun(run.RunID, run.Status, run.Phase)

	slog.Info("Discovery complete, awaiting selection", "run_id", run.RunID)
}

// executeAnalysis runs the analysis phase and finalizes the run
func (s *RunService) executeAnalysis(ctx context.Context, run *model.PipelineRun) {
	seq := s.sequencerFor(run.RunID)

	if err := seq.RunAnalysis(ctx, run); err != nil {
		s.finishRun(run, model.RunStatusCanceled)
		return
	}

	s.finishRun(run, model.RunStatusCompleted)
}

// finishRun stamps the terminal status and persists the final document
func (s *RunService) finishRun(run *model.PipelineRun, status string) {
	run.Status = status
	run.CompletedAt = time.Now().UTC()
	run.Summarize()
	s.persist(run)
	s.statusStore.UpdateRun(run.RunID, run.Status, run.Phase)

	slog.Info("Pipeline run finished",
		"run_id", run.RunID,
		"status", run.Status,
		"analyzed", run.Summary.Analyzed,
		"skipped", run.Summary.Skipped,
		"failed", run.Summary.Failed,
		"total_cost", run.Summary.TotalCost,
	)
}

// persist saves the run document; persistence failures are logged, never
// allowed to break an in-flight run
func (s *RunService) persist(run *model.PipelineRun) {
	if err := s.runRepo.Update(context.Background(), run); err != nil {
		slog.Error("Failed to persist pipeline run",
			"run_id", run.RunID,
			"error", err.Error(),
		)
	}
}

// sequencerFor builds a sequencer whose progress events feed the live status
// store for this run
func (s *RunService) sequencerFor(runID string) *pipeline.Sequencer {
	cfg := pipeline.Config{
		BatchSize:  s.cfg.BatchSize,
		BatchPause: s.cfg.BatchPause,
		Retry: batch.RetryPolicy{
			MaxRetries: s.cfg.MaxRetries,
			BaseDelay:  s.cfg.RetryDelay,
			MaxDelay:   s.cfg.MaxRetryDelay,
		},
	}

	onProgress := func(companyID string, state model.ItemState, phase, message string) {
		s.statusStore.UpdateItem(runID, companyID, state, phase, message)
	}

	return pipeline.NewSequencer(s.client, s.client, cfg, onProgress)
}

// statusSnapshot builds the initial live status from a freshly created run
func statusSnapshot(run *model.PipelineRun) *model.RunStatus {
	items := make(map[string]model.ItemProgress, len(run.Items))
	for _, item := range run.Items {
		items[item.CompanyID.Hex()] = model.ItemProgress{State: item.State}
	}

	return &model.RunStatus{
		RunID:  run.RunID,
		Status: run.Status,
		Phase:  run.Phase,
		Items:  items,
	}
}

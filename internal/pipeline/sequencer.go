// Package pipeline sequences the two-phase program research flow: fan-out
// discovery over companies, an external selection step, then fan-out analysis
// over only the confirmed selections.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mostafaosama999/Marketing-agent-sub004/internal/batch"
	"github.com/mostafaosama999/Marketing-agent-sub004/internal/model"
)

// Progress callback phase names, as consumed by the UI
const (
	PhaseFinding   = "finding"
	PhaseAnalyzing = "analyzing"
)

// Discoverer proposes candidate program URLs for a company website
type Discoverer interface {
	DiscoverPrograms(ctx context.Context, website string) (model.DiscoveryResult, error)
}

// Analyzer produces an analysis document for a selected program URL
type Analyzer interface {
	AnalyzeProgram(ctx context.Context, companyID, url string) (*model.Analysis, error)
}

// ProgressFunc receives per-item state transitions as a run executes
type ProgressFunc func(companyID string, state model.ItemState, phase, message string)

// Config controls batching and retries for both phases
type Config struct {
	BatchSize  int
	BatchPause time.Duration
	Retry      batch.RetryPolicy
}

// Sequencer drives a pipeline run through its phases. It mutates the run
// document in place; persistence is the caller's concern.
type Sequencer struct {
	discoverer Discoverer
	analyzer   Analyzer
	cfg        Config
	onProgress ProgressFunc
}

// NewSequencer creates a sequencer for one run
func NewSequencer(discoverer Discoverer, analyzer Analyzer, cfg Config, onProgress ProgressFunc) *Sequencer {
	return &Sequencer{
		discoverer: discoverer,
		analyzer:   analyzer,
		cfg:        cfg,
		onProgress: onProgress,
	}
}

// RunDiscovery executes the discovery phase over every item that still needs
// it. Companies without a website fail immediately without consuming any
// retry budget. A non-nil error is only returned on cancellation; per-item
// failures are recorded on the items themselves.
func (s *Sequencer) RunDiscovery(ctx context.Context, run *model.PipelineRun) error {
	var workItems []batch.Item[string]

	for i := range run.Items {
		item := &run.Items[i]
		if item.State != model.ItemNotStarted {
			// Pre-selected via a known program URL, or already processed
			continue
		}

		if item.Website == "" {
			item.State = model.ItemDiscoveryFailed
			item.Error = "company has no website"
			s.emit(item.CompanyID.Hex(), model.ItemDiscoveryFailed, PhaseFinding, item.Error)
			continue
		}

		item.State = model.ItemDiscovering
		workItems = append(workItems, batch.Item[string]{ID: item.CompanyID.Hex(), Input: item.Website})
	}

	if len(workItems) == 0 {
		return nil
	}

	slog.Info("Starting discovery phase",
		"run_id", run.RunID,
		"companies", len(workItems),
		"batch_size", s.cfg.BatchSize,
	)

	op := func(ctx context.Context, item batch.Item[string]) (model.DiscoveryResult, error) {
		return s.discoverer.DiscoverPrograms(ctx, item.Input)
	}

	results, runErr := batch.Run(ctx, workItems, op, batch.Options{
		Phase:      PhaseFinding,
		BatchSize:  s.cfg.BatchSize,
		BatchPause: s.cfg.BatchPause,
		Retry:      s.cfg.Retry,
		OnProgress: s.forwardDiscoveryEvents,
	})

	for i := range run.Items {
		item := &run.Items[i]
		result, ok := results[item.CompanyID.Hex()]
		if !ok {
			continue
		}

		item.Attempts = result.Attempts
		if result.Failed() {
			item.State = model.ItemDiscoveryFailed
			item.Error = result.Err.Error()
		} else {
			item.State = model.ItemDiscovered
			item.Discovery = result.Value
			item.Error = ""
		}
	}

	slog.Info("Discovery phase completed",
		"run_id", run.RunID,
		"companies", len(workItems),
	)

	return runErr
}

// ApplySelections records the externally chosen URL per company. Discovered
// items without a selection become skipped, not errors: nothing was chosen,
// so phase two owes them nothing.
func (s *Sequencer) ApplySelections(run *model.PipelineRun, selections map[string]string) error {
	for companyID, url := range selections {
		item := run.Item(companyID)
		if item == nil {
			return fmt.Errorf("selection references unknown company %s", companyID)
		}
		if item.State != model.ItemDiscovered {
			return fmt.Errorf("company %s is not awaiting selection (state %s)", companyID, item.State)
		}
		if !item.Discovery.Contains(url) {
			return fmt.Errorf("selected URL %q was not discovered for company %s", url, companyID)
		}

		item.State = model.ItemSelected
		item.SelectedURL = url
	}

	for i := range run.Items {
		item := &run.Items[i]
		if item.State == model.ItemDiscovered {
			item.State = model.ItemSkipped
			s.emit(item.CompanyID.Hex(), model.ItemSkipped, PhaseFinding, "")
		}
	}

	return nil
}

// AutoSelect picks at most one discovered URL per item without human input:
// a candidate confirmed to exist, else a verified high-confidence suggestion,
// else any verified suggestion. Used by scheduled refresh runs, where no one
// is around to choose.
func (s *Sequencer) AutoSelect(run *model.PipelineRun) {
	for i := range run.Items {
		item := &run.Items[i]
		if item.State != model.ItemDiscovered {
			continue
		}

		if url, ok := pickURL(item.Discovery); ok {
			item.State = model.ItemSelected
			item.SelectedURL = url
		} else {
			item.State = model.ItemSkipped
			s.emit(item.CompanyID.Hex(), model.ItemSkipped, PhaseFinding, "")
		}
	}
}

func pickURL(d model.DiscoveryResult) (string, bool) {
	for _, c := range d.Candidates {
		if c.Exists {
			return c.URL, true
		}
	}
	for _, sg := range d.Suggestions {
		if sg.Verified && sg.Confidence == "high" {
			return sg.URL, true
		}
	}
	for _, sg := range d.Suggestions {
		if sg.Verified {
			return sg.URL, true
		}
	}
	return "", false
}

// RunAnalysis executes the analysis phase over selected items only and then
// recomputes the run summary
func (s *Sequencer) RunAnalysis(ctx context.Context, run *model.PipelineRun) error {
	var workItems []batch.Item[string]

	for i := range run.Items {
		item := &run.Items[i]
		if item.State == model.ItemSelected {
			item.State = model.ItemAnalyzing
			workItems = append(workItems, batch.Item[string]{ID: item.CompanyID.Hex(), Input: item.SelectedURL})
		}
	}

	if len(workItems) == 0 {
		run.Summarize()
		return nil
	}

	slog.Info("Starting analysis phase",
		"run_id", run.RunID,
		"companies", len(workItems),
		"batch_size", s.cfg.BatchSize,
	)

	op := func(ctx context.Context, item batch.Item[string]) (*model.Analysis, error) {
		return s.analyzer.AnalyzeProgram(ctx, item.ID, item.Input)
	}

	results, runErr := batch.Run(ctx, workItems, op, batch.Options{
		Phase:      PhaseAnalyzing,
		BatchSize:  s.cfg.BatchSize,
		BatchPause: s.cfg.BatchPause,
		Retry:      s.cfg.Retry,
		OnProgress: s.forwardAnalysisEvents,
	})

	for i := range run.Items {
		item := &run.Items[i]
		result, ok := results[item.CompanyID.Hex()]
		if !ok {
			continue
		}

		item.Attempts = result.Attempts
		if result.Failed() {
			item.State = model.ItemAnalysisFailed
			item.Error = result.Err.Error()
		} else {
			item.State = model.ItemAnalyzed
			item.Analysis = result.Value
			item.Error = ""
		}
	}

	run.Summarize()

	slog.Info("Analysis phase completed",
		"run_id", run.RunID,
		"analyzed", run.Summary.Analyzed,
		"skipped", run.Summary.Skipped,
		"failed", run.Summary.Failed,
		"total_cost", run.Summary.TotalCost,
	)

	return runErr
}

// forwardDiscoveryEvents maps runner events onto discovery item states
func (s *Sequencer) forwardDiscoveryEvents(e batch.Event) {
	switch e.Status {
	case batch.StatusPending:
		s.emit(e.ItemID, model.ItemDiscovering, e.Phase, e.Message)
	case batch.StatusSuccess:
		s.emit(e.ItemID, model.ItemDiscovered, e.Phase, e.Message)
	case batch.StatusError:
		s.emit(e.ItemID, model.ItemDiscoveryFailed, e.Phase, e.Message)
	}
}

// forwardAnalysisEvents maps runner events onto analysis item states
func (s *Sequencer) forwardAnalysisEvents(e batch.Event) {
	switch e.Status {
	case batch.StatusPending:
		s.emit(e.ItemID, model.ItemAnalyzing, e.Phase, e.Message)
	case batch.StatusSuccess:
		s.emit(e.ItemID, model.ItemAnalyzed, e.Phase, e.Message)
	case batch.StatusError:
		s.emit(e.ItemID, model.ItemAnalysisFailed, e.Phase, e.Message)
	}
}

func (s *Sequencer) emit(companyID string, state model.ItemState, phase, message string) {
	if s.onProgress != nil {
		s.onProgress(companyID, state, phase, message)
	}
}

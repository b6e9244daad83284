package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ItemState tracks one company through the full pipeline:
// not_started -> discovering -> {discovered | discovery_failed}
// -> (selection) -> {selected -> analyzing -> {analyzed | analysis_failed} | skipped}
type ItemState string

const (
	ItemNotStarted      ItemState = "not_started"
	ItemDiscovering     ItemState = "discovering"
	ItemDiscovered      ItemState = "discovered"
	ItemDiscoveryFailed ItemState = "discovery_failed"
	ItemSelected        ItemState = "selected"
	ItemSkipped         ItemState = "skipped"
	ItemAnalyzing       ItemState = "analyzing"
	ItemAnalyzed        ItemState = "analyzed"
	ItemAnalysisFailed  ItemState = "analysis_failed"
)

// Terminal reports whether an item can make no further progress
func (s ItemState) Terminal() bool {
	switch s {
	case ItemDiscoveryFailed, ItemSkipped, ItemAnalyzed, ItemAnalysisFailed:
		return true
	}
	return false
}

// Run phases and statuses
const (
	PhaseDiscovery = "discovery"
	PhaseAnalysis  = "analysis"

	RunStatusRunning           = "running"
	RunStatusAwaitingSelection = "awaiting_selection"
	RunStatusCompleted         = "completed"
	RunStatusFailed            = "failed"
	RunStatusCanceled          = "canceled"
)

// Candidate is a pattern-matched program URL proposed by discovery
type Candidate struct {
	URL    string `json:"url" bson:"url"`
	Exists bool   `json:"exists" bson:"exists"`
	Status int    `json:"status,omitempty" bson:"status,omitempty"`
}

// Suggestion is an AI-proposed program URL with supporting reasoning
type Suggestion struct {
	URL        string `json:"url" bson:"url"`
	Confidence string `json:"confidence" bson:"confidence"` // "high" | "medium" | "low"
	Reasoning  string `json:"reasoning,omitempty" bson:"reasoning,omitempty"`
	Verified   bool   `json:"verified" bson:"verified"`
}

// DiscoveryResult is everything discovery proposes for one company
type DiscoveryResult struct {
	Candidates  []Candidate  `json:"candidates" bson:"candidates"`
	Suggestions []Suggestion `json:"ai_suggestions" bson:"ai_suggestions"`
}

// Empty reports whether discovery found nothing to choose from
func (d DiscoveryResult) Empty() bool {
	return len(d.Candidates) == 0 && len(d.Suggestions) == 0
}

// Contains reports whether the given URL is among the proposed results
func (d DiscoveryResult) Contains(url string) bool {
	for _, c := range d.Candidates {
		if c.URL == url {
			return true
		}
	}
	for _, s := range d.Suggestions {
		if s.URL == url {
			return true
		}
	}
	return false
}

// Analysis is the free-form analysis document returned for a selected URL.
// Its shape is owned by the research backend; only the cost figure is
// extracted service-side.
type Analysis struct {
	Payload map[string]interface{} `json:"payload" bson:"payload"`
	Cost    float64                `json:"cost" bson:"cost"`
}

// RunItem carries one company through a pipeline run
type RunItem struct {
	CompanyID   primitive.ObjectID `json:"company_id" bson:"company_id"`
	CompanyName string             `json:"company_name" bson:"company_name"`
	Website     string             `json:"website,omitempty" bson:"website,omitempty"`
	State       ItemState          `json:"state" bson:"state"`
	Discovery   DiscoveryResult    `json:"discovery,omitempty" bson:"discovery,omitempty"`
	SelectedURL string             `json:"selected_url,omitempty" bson:"selected_url,omitempty"`
	Analysis    *Analysis          `json:"analysis,omitempty" bson:"analysis,omitempty"`
	Attempts    int                `json:"attempts,omitempty" bson:"attempts,omitempty"`
	Error       string             `json:"error,omitempty" bson:"error,omitempty"`
}

// RunSummary aggregates terminal item states after a run
type RunSummary struct {
	Total     int     `json:"total" bson:"total"`
	Analyzed  int     `json:"analyzed" bson:"analyzed"`
	Skipped   int     `json:"skipped" bson:"skipped"`
	Failed    int     `json:"failed" bson:"failed"`
	TotalCost float64 `json:"total_cost" bson:"total_cost"`
}

// PipelineRun represents a complete pipeline run document
type PipelineRun struct {
	ID          primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	RunID       string             `json:"run_id" bson:"run_id"`
	TriggeredBy string             `json:"triggered_by" bson:"triggered_by"` // "api" | "scheduler"
	Phase       string             `json:"phase" bson:"phase"`
	Status      string             `json:"status" bson:"status"`
	Items       []RunItem          `json:"items" bson:"items"`
	Summary     RunSummary         `json:"summary" bson:"summary"`
	StartedAt   time.Time          `json:"started_at" bson:"started_at"`
	CompletedAt time.Time          `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
}

// Item returns the run item for a company ID, or nil if absent
func (r *PipelineRun) Item(companyID string) *RunItem {
	for i := range r.Items {
		if r.Items[i].CompanyID.Hex() == companyID {
			return &r.Items[i]
		}
	}
	return nil
}

// Summarize recomputes the run summary from item states
func (r *PipelineRun) Summarize() {
	summary := RunSummary{Total: len(r.Items)}
	for _, item := range r.Items {
		switch item.State {
		case ItemAnalyzed:
			summary.Analyzed++
			if item.Analysis != nil {
				summary.TotalCost += item.Analysis.Cost
			}
		case ItemSkipped:
			summary.Skipped++
		case ItemDiscoveryFailed, ItemAnalysisFailed:
			summary.Failed++
		}
	}
	r.Summary = summary
}

// RunListItem represents a summary of a run for list responses
type RunListItem struct {
	RunID       string     `json:"run_id"`
	TriggeredBy string     `json:"triggered_by"`
	Phase       string     `json:"phase"`
	Status      string     `json:"status"`
	Companies   int        `json:"companies"`
	Summary     RunSummary `json:"summary"`
	StartedAt   string     `json:"started_at"`
	CompletedAt string     `json:"completed_at,omitempty"`
}

// ToListItem converts PipelineRun to RunListItem
func (r *PipelineRun) ToListItem() RunListItem {
	var startedAt, completedAt string
	if !r.StartedAt.IsZero() {
		startedAt = r.StartedAt.Format(time.RFC3339)
	}
	if !r.CompletedAt.IsZero() {
		completedAt = r.CompletedAt.Format(time.RFC3339)
	}

	return RunListItem{
		RunID:       r.RunID,
		TriggeredBy: r.TriggeredBy,
		Phase:       r.Phase,
		Status:      r.Status,
		Companies:   len(r.Items),
		Summary:     r.Summary,
		StartedAt:   startedAt,
		CompletedAt: completedAt,
	}
}

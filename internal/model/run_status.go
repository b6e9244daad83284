package model

import (
	"sync"
	"time"
)

// ItemProgress is the live view of one item while a run executes
type ItemProgress struct {
	State   ItemState `json:"state"`
	Phase   string    `json:"phase,omitempty"`
	Message string    `json:"message,omitempty"`
}

// RunStatus is the live status of an in-flight pipeline run. It is what the
// UI polls while phases execute; the persisted PipelineRun document becomes
// authoritative once a phase completes.
type RunStatus struct {
	RunID     string                  `json:"run_id"`
	Status    string                  `json:"status"`
	Phase     string                  `json:"phase"`
	Items     map[string]ItemProgress `json:"items"`
	UpdatedAt time.Time               `json:"updated_at"`
}

// RunStatusStore is an in-memory store for live run statuses
type RunStatusStore struct {
	mu   sync.RWMutex
	runs map[string]*RunStatus
}

// NewRunStatusStore creates a new run status store
func NewRunStatusStore() *RunStatusStore {
	return &RunStatusStore{
		runs: make(map[string]*RunStatus),
	}
}

// Set stores a run status snapshot
func (s *RunStatusStore) Set(runID string, status *RunStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	status.UpdatedAt = time.Now().UTC()
	s.runs[runID] = status
}

// Get retrieves a copy of a run status
func (s *RunStatusStore) Get(runID string) (*RunStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status, exists := s.runs[runID]
	if !exists {
		return nil, false
	}

	snapshot := &RunStatus{
		RunID:     status.RunID,
		Status:    status.Status,
		Phase:     status.Phase,
		Items:     make(map[string]ItemProgress, len(status.Items)),
		UpdatedAt: status.UpdatedAt,
	}
	for id, item := range status.Items {
		snapshot.Items[id] = item
	}

	return snapshot, true
}

// UpdateRun updates the run-level status and phase
func (s *RunStatusStore) UpdateRun(runID, status, phase string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rs, exists := s.runs[runID]
	if !exists {
		return
	}
	rs.Status = status
	rs.Phase = phase
	rs.UpdatedAt = time.Now().UTC()
}

// UpdateItem merges a progress update for one item. This is the subscriber
// side of the runner's progress events: all state merging happens here, under
// the store's lock, never inside the runner.
func (s *RunStatusStore) UpdateItem(runID, companyID string, state ItemState, phase, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rs, exists := s.runs[runID]
	if !exists {
		return
	}
	rs.Items[companyID] = ItemProgress{State: state, Phase: phase, Message: message}
	rs.UpdatedAt = time.Now().UTC()
}

// Delete removes a run status
func (s *RunStatusStore) Delete(runID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.runs, runID)
}

package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mostafaosama999/Marketing-agent-sub004/internal/batch"
	"github.com/mostafaosama999/Marketing-agent-sub004/internal/model"
)

// fakeBackend implements Discoverer and Analyzer with canned per-website
// responses
type fakeBackend struct {
	mu        sync.Mutex
	discovery map[string]model.DiscoveryResult // keyed by website
	discErr   map[string]error
	analysis  map[string]*model.Analysis // keyed by URL
	analErr   map[string]error

	discoverCalls map[string]int
	analyzeCalls  map[string]int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		discovery:     make(map[string]model.DiscoveryResult),
		discErr:       make(map[string]error),
		analysis:      make(map[string]*model.Analysis),
		analErr:       make(map[string]error),
		discoverCalls: make(map[string]int),
		analyzeCalls:  make(map[string]int),
	}
}

func (f *fakeBackend) DiscoverPrograms(ctx context.Context, website string) (model.DiscoveryResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.discoverCalls[website]++
	if err := f.discErr[website]; err != nil {
		return model.DiscoveryResult{}, err
	}
	return f.discovery[website], nil
}

func (f *fakeBackend) AnalyzeProgram(ctx context.Context, companyID, url string) (*model.Analysis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.analyzeCalls[url]++
	if err := f.analErr[url]; err != nil {
		return nil, err
	}
	return f.analysis[url], nil
}

func fastConfig() Config {
	return Config{
		BatchSize:  2,
		BatchPause: 1 * time.Millisecond,
		Retry: batch.RetryPolicy{
			MaxRetries: 1,
			BaseDelay:  1 * time.Millisecond,
			MaxDelay:   5 * time.Millisecond,
		},
	}
}

func newTestRun(websites ...string) *model.PipelineRun {
	run := &model.PipelineRun{
		RunID:     "test-run",
		Phase:     model.PhaseDiscovery,
		Status:    model.RunStatusRunning,
		StartedAt: time.Now(),
	}
	for i, website := range websites {
		run.Items = append(run.Items, model.RunItem{
			CompanyID:   primitive.NewObjectID(),
			CompanyName: "Company " + string(rune('A'+i)),
			Website:     website,
			State:       model.ItemNotStarted,
		})
	}
	return run
}

func candidates(urls ...string) model.DiscoveryResult {
	var result model.DiscoveryResult
	for _, url := range urls {
		result.Candidates = append(result.Candidates, model.Candidate{URL: url, Exists: true, Status: 200})
	}
	return result
}

func TestRunDiscovery_StateTransitions(t *testing.T) {
	backend := newFakeBackend()
	backend.discovery["https://alpha.com"] = candidates("https://alpha.com/write-for-us")
	backend.discErr["https://beta.com"] = errors.New("backend unavailable")

	run := newTestRun("https://alpha.com", "https://beta.com")
	seq := NewSequencer(backend, backend, fastConfig(), nil)

	err := seq.RunDiscovery(context.Background(), run)
	require.NoError(t, err)

	assert.Equal(t, model.ItemDiscovered, run.Items[0].State)
	assert.Equal(t, "https://alpha.com/write-for-us", run.Items[0].Discovery.Candidates[0].URL)
	assert.Empty(t, run.Items[0].Error)

	assert.Equal(t, model.ItemDiscoveryFailed, run.Items[1].State)
	assert.Equal(t, "backend unavailable", run.Items[1].Error)
	assert.Equal(t, 2, run.Items[1].Attempts, "failed item consumed its full retry budget")
}

func TestRunDiscovery_MissingWebsiteFailsImmediately(t *testing.T) {
	backend := newFakeBackend()

	run := newTestRun("")
	seq := NewSequencer(backend, backend, fastConfig(), nil)

	err := seq.RunDiscovery(context.Background(), run)
	require.NoError(t, err)

	assert.Equal(t, model.ItemDiscoveryFailed, run.Items[0].State)
	assert.Equal(t, "company has no website", run.Items[0].Error)
	assert.Empty(t, backend.discoverCalls, "discovery must not be invoked without a website")
}

func TestRunDiscovery_SkipsPreSelectedItems(t *testing.T) {
	backend := newFakeBackend()

	run := newTestRun("https://alpha.com")
	run.Items[0].State = model.ItemSelected
	run.Items[0].SelectedURL = "https://alpha.com/guest-posts"

	seq := NewSequencer(backend, backend, fastConfig(), nil)
	err := seq.RunDiscovery(context.Background(), run)
	require.NoError(t, err)

	assert.Equal(t, model.ItemSelected, run.Items[0].State)
	assert.Empty(t, backend.discoverCalls)
}

func TestApplySelections(t *testing.T) {
	run := newTestRun("https://alpha.com", "https://beta.com")
	run.Items[0].State = model.ItemDiscovered
	run.Items[0].Discovery = candidates("https://alpha.com/write-for-us", "https://alpha.com/contribute")
	run.Items[1].State = model.ItemDiscovered
	run.Items[1].Discovery = candidates("https://beta.com/write-for-us")

	seq := NewSequencer(nil, nil, fastConfig(), nil)

	err := seq.ApplySelections(run, map[string]string{
		run.Items[0].CompanyID.Hex(): "https://alpha.com/contribute",
	})
	require.NoError(t, err)

	assert.Equal(t, model.ItemSelected, run.Items[0].State)
	assert.Equal(t, "https://alpha.com/contribute", run.Items[0].SelectedURL)
	assert.Equal(t, model.ItemSkipped, run.Items[1].State, "unselected discovered items are skipped")
}

func TestApplySelections_Validation(t *testing.T) {
	run := newTestRun("https://alpha.com")
	run.Items[0].State = model.ItemDiscovered
	run.Items[0].Discovery = candidates("https://alpha.com/write-for-us")

	seq := NewSequencer(nil, nil, fastConfig(), nil)

	tests := []struct {
		name       string
		selections map[string]string
		wantErr    string
	}{
		{
			name:       "unknown company",
			selections: map[string]string{primitive.NewObjectID().Hex(): "https://x.com"},
			wantErr:    "unknown company",
		},
		{
			name:       "URL not discovered",
			selections: map[string]string{run.Items[0].CompanyID.Hex(): "https://alpha.com/careers"},
			wantErr:    "was not discovered",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := seq.ApplySelections(run, tt.selections)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Equal(t, model.ItemDiscovered, run.Items[0].State, "failed selection must not mutate items")
		})
	}
}

func TestApplySelections_RejectsWrongState(t *testing.T) {
	run := newTestRun("https://alpha.com")
	run.Items[0].State = model.ItemDiscoveryFailed

	seq := NewSequencer(nil, nil, fastConfig(), nil)
	err := seq.ApplySelections(run, map[string]string{run.Items[0].CompanyID.Hex(): "https://x.com"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not awaiting selection")
}

func TestAutoSelect(t *testing.T) {
	tests := []struct {
		name      string
		discovery model.DiscoveryResult
		wantState model.ItemState
		wantURL   string
	}{
		{
			name: "existing candidate wins",
			discovery: model.DiscoveryResult{
				Candidates: []model.Candidate{
					{URL: "https://a.com/jobs", Exists: false},
					{URL: "https://a.com/write-for-us", Exists: true, Status: 200},
				},
				Suggestions: []model.Suggestion{
					{URL: "https://a.com/blog", Confidence: "high", Verified: true},
				},
			},
			wantState: model.ItemSelected,
			wantURL:   "https://a.com/write-for-us",
		},
		{
			name: "verified high-confidence suggestion next",
			discovery: model.DiscoveryResult{
				Candidates: []model.Candidate{{URL: "https://a.com/jobs", Exists: false}},
				Suggestions: []model.Suggestion{
					{URL: "https://a.com/low", Confidence: "low", Verified: true},
					{URL: "https://a.com/high", Confidence: "high", Verified: true},
				},
			},
			wantState: model.ItemSelected,
			wantURL:   "https://a.com/high",
		},
		{
			name: "any verified suggestion as fallback",
			discovery: model.DiscoveryResult{
				Suggestions: []model.Suggestion{
					{URL: "https://a.com/unverified", Confidence: "high", Verified: false},
					{URL: "https://a.com/verified", Confidence: "low", Verified: true},
				},
			},
			wantState: model.ItemSelected,
			wantURL:   "https://a.com/verified",
		},
		{
			name:      "nothing usable means skipped",
			discovery: model.DiscoveryResult{},
			wantState: model.ItemSkipped,
		},
		{
			name: "only unverified suggestions means skipped",
			discovery: model.DiscoveryResult{
				Suggestions: []model.Suggestion{
					{URL: "https://a.com/guess", Confidence: "high", Verified: false},
				},
			},
			wantState: model.ItemSkipped,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := newTestRun("https://a.com")
			run.Items[0].State = model.ItemDiscovered
			run.Items[0].Discovery = tt.discovery

			seq := NewSequencer(nil, nil, fastConfig(), nil)
			seq.AutoSelect(run)

			assert.Equal(t, tt.wantState, run.Items[0].State)
			assert.Equal(t, tt.wantURL, run.Items[0].SelectedURL)
		})
	}
}

func TestRunAnalysis(t *testing.T) {
	backend := newFakeBackend()
	backend.analysis["https://alpha.com/write-for-us"] = &model.Analysis{
		Payload: map[string]interface{}{"quality": "good"},
		Cost:    0.42,
	}
	backend.analErr["https://beta.com/write-for-us"] = errors.New("analysis timed out")

	run := newTestRun("https://alpha.com", "https://beta.com", "https://gamma.com")
	run.Items[0].State = model.ItemSelected
	run.Items[0].SelectedURL = "https://alpha.com/write-for-us"
	run.Items[1].State = model.ItemSelected
	run.Items[1].SelectedURL = "https://beta.com/write-for-us"
	run.Items[2].State = model.ItemSkipped

	seq := NewSequencer(backend, backend, fastConfig(), nil)
	err := seq.RunAnalysis(context.Background(), run)
	require.NoError(t, err)

	assert.Equal(t, model.ItemAnalyzed, run.Items[0].State)
	require.NotNil(t, run.Items[0].Analysis)
	assert.Equal(t, 0.42, run.Items[0].Analysis.Cost)

	assert.Equal(t, model.ItemAnalysisFailed, run.Items[1].State)
	assert.Equal(t, "analysis timed out", run.Items[1].Error)

	assert.Equal(t, model.ItemSkipped, run.Items[2].State, "skipped items must not be analyzed")
	assert.Empty(t, backend.analyzeCalls["https://gamma.com"])

	assert.Equal(t, 3, run.Summary.Total)
	assert.Equal(t, 1, run.Summary.Analyzed)
	assert.Equal(t, 1, run.Summary.Skipped)
	assert.Equal(t, 1, run.Summary.Failed)
	assert.Equal(t, 0.42, run.Summary.TotalCost)
}

func TestRunAnalysis_NoSelectionsStillSummarizes(t *testing.T) {
	run := newTestRun("https://alpha.com")
	run.Items[0].State = model.ItemSkipped

	seq := NewSequencer(nil, nil, fastConfig(), nil)
	err := seq.RunAnalysis(context.Background(), run)
	require.NoError(t, err)

	assert.Equal(t, 1, run.Summary.Total)
	assert.Equal(t, 1, run.Summary.Skipped)
}

// Full two-phase walk: three companies where one analyzes cleanly, one has
// nothing selectable, and one fails discovery outright.
func TestSequencer_FullPipeline(t *testing.T) {
	backend := newFakeBackend()
	backend.discovery["https://alpha.com"] = candidates("https://alpha.com/write-for-us")
	backend.discovery["https://beta.com"] = model.DiscoveryResult{} // nothing found
	backend.discErr["https://gamma.com"] = errors.New("DNS lookup failed")
	backend.analysis["https://alpha.com/write-for-us"] = &model.Analysis{
		Payload: map[string]interface{}{"summary": "accepts guest posts"},
		Cost:    1.25,
	}

	var mu sync.Mutex
	var transitions []model.ItemState
	onProgress := func(companyID string, state model.ItemState, phase, message string) {
		mu.Lock()
		transitions = append(transitions, state)
		mu.Unlock()
	}

	run := newTestRun("https://alpha.com", "https://beta.com", "https://gamma.com")
	seq := NewSequencer(backend, backend, fastConfig(), onProgress)

	require.NoError(t, seq.RunDiscovery(context.Background(), run))
	seq.AutoSelect(run)
	require.NoError(t, seq.RunAnalysis(context.Background(), run))

	assert.Equal(t, model.ItemAnalyzed, run.Items[0].State)
	assert.Equal(t, model.ItemSkipped, run.Items[1].State)
	assert.Equal(t, model.ItemDiscoveryFailed, run.Items[2].State)

	for _, item := range run.Items {
		assert.True(t, item.State.Terminal(), "item %s left in non-terminal state %s", item.CompanyName, item.State)
	}

	assert.Equal(t, 3, run.Summary.Total)
	assert.Equal(t, 1, run.Summary.Analyzed)
	assert.Equal(t, 1, run.Summary.Skipped)
	assert.Equal(t, 1, run.Summary.Failed)
	assert.Equal(t, 1.25, run.Summary.TotalCost)

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, transitions, model.ItemDiscovering)
	assert.Contains(t, transitions, model.ItemSkipped)
	assert.Contains(t, transitions, model.ItemAnalyzed)
}

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestItemState_Terminal(t *testing.T) {
	terminal := []ItemState{ItemDiscoveryFailed, ItemSkipped, ItemAnalyzed, ItemAnalysisFailed}
	for _, state := range terminal {
		assert.True(t, state.Terminal(), "%s should be terminal", state)
	}

	nonTerminal := []ItemState{ItemNotStarted, ItemDiscovering, ItemDiscovered, ItemSelected, ItemAnalyzing}
	for _, state := range nonTerminal {
		assert.False(t, state.Terminal(), "%s should not be terminal", state)
	}
}

func TestDiscoveryResult_Contains(t *testing.T) {
	result := DiscoveryResult{
		Candidates:  []Candidate{{URL: "https://a.com/write-for-us"}},
		Suggestions: []Suggestion{{URL: "https://a.com/contribute"}},
	}

	assert.True(t, result.Contains("https://a.com/write-for-us"))
	assert.True(t, result.Contains("https://a.com/contribute"))
	assert.False(t, result.Contains("https://a.com/careers"))
}

func TestDiscoveryResult_Empty(t *testing.T) {
	assert.True(t, DiscoveryResult{}.Empty())
	assert.False(t, DiscoveryResult{Candidates: []Candidate{{URL: "x"}}}.Empty())
	assert.False(t, DiscoveryResult{Suggestions: []Suggestion{{URL: "x"}}}.Empty())
}

func TestPipelineRun_Summarize(t *testing.T) {
	run := PipelineRun{
		Items: []RunItem{
			{State: ItemAnalyzed, Analysis: &Analysis{Cost: 1.5}},
			{State: ItemAnalyzed, Analysis: &Analysis{Cost: 0.25}},
			{State: ItemSkipped},
			{State: ItemDiscoveryFailed},
			{State: ItemAnalysisFailed},
		},
	}

	run.Summarize()

	assert.Equal(t, 5, run.Summary.Total)
	assert.Equal(t, 2, run.Summary.Analyzed)
	assert.Equal(t, 1, run.Summary.Skipped)
	assert.Equal(t, 2, run.Summary.Failed)
	assert.Equal(t, 1.75, run.Summary.TotalCost)
}

func TestPipelineRun_Summarize_NilAnalysis(t *testing.T) {
	run := PipelineRun{Items: []RunItem{{State: ItemAnalyzed}}}

	run.Summarize()

	assert.Equal(t, 1, run.Summary.Analyzed)
	assert.Equal(t, 0.0, run.Summary.TotalCost)
}

func TestPipelineRun_Item(t *testing.T) {
	id := primitive.NewObjectID()
	run := PipelineRun{Items: []RunItem{{CompanyID: id, CompanyName: "Acme"}}}

	item := run.Item(id.Hex())
	assert.NotNil(t, item)
	assert.Equal(t, "Acme", item.CompanyName)

	// Returned pointer aliases the run's slice
	item.State = ItemSelected
	assert.Equal(t, ItemSelected, run.Items[0].State)

	assert.Nil(t, run.Item(primitive.NewObjectID().Hex()))
}

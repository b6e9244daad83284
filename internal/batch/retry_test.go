package batch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryPolicy_Delay(t *testing.T) {
	policy := RetryPolicy{
		MaxRetries: 5,
		BaseDelay:  1 * time.Second,
		MaxDelay:   3 * time.Second,
	}

	tests := []struct {
		name     string
		n        int
		expected time.Duration
	}{
		{"first retry", 1, 1 * time.Second},
		{"second retry", 2, 2 * time.Second},
		{"third retry hits cap", 3, 3 * time.Second},
		{"fourth retry capped", 4, 3 * time.Second},
		{"zero", 0, 0},
		{"negative", -1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, policy.Delay(tt.n))
		})
	}
}

func TestRetryPolicy_SetDefaults(t *testing.T) {
	policy := RetryPolicy{}
	policy.SetDefaults()

	assert.Equal(t, 0, policy.MaxRetries)
	assert.Equal(t, 1*time.Second, policy.BaseDelay)
	assert.Equal(t, 30*time.Second, policy.MaxDelay)
}

func TestRetryPolicy_SetDefaults_NegativeRetries(t *testing.T) {
	policy := RetryPolicy{MaxRetries: -3}
	policy.SetDefaults()

	assert.Equal(t, 0, policy.MaxRetries)
	assert.Equal(t, 1, policy.MaxAttempts())
}

func TestRetryPolicy_MaxAttempts(t *testing.T) {
	assert.Equal(t, 1, RetryPolicy{MaxRetries: 0}.MaxAttempts())
	assert.Equal(t, 3, RetryPolicy{MaxRetries: 2}.MaxAttempts())
}

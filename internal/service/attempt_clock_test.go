package service

import (
	"testing"
	"time"

	"hackathon_backend/internal/model"

	"github.com/stretchr/testify/assert"
)

func TestComputeEndTime(t *testing.T) {
	start := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, start.Add(30*time.Minute), ComputeEndTime(start, 30))
	assert.Equal(t, start.Add(time.Minute), ComputeEndTime(start, 1))
}

func TestIsAttemptExceeded(t *testing.T) {
	end := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
	attempt := &model.StepAttempt{EndTimeAt: end}

	assert.False(t, IsAttemptExceeded(attempt, end.Add(-time.Second)))
	// 截止时刻本身不算超时
	assert.False(t, IsAttemptExceeded(attempt, end))
	assert.True(t, IsAttemptExceeded(attempt, end.Add(time.Second)))
}

func TestInferRemainingMinutes(t *testing.T) {
	end := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)

	submittedAt := func(before time.Duration) *time.Time {
		ts := end.Add(-before)
		return &ts
	}

	tests := []struct {
		name     string
		attempt  *model.StepAttempt
		expected int
	}{
		{"twenty minutes left", &model.StepAttempt{EndTimeAt: end, SubmittedAt: submittedAt(20 * time.Minute)}, 20},
		{"ninety seconds rounds up", &model.StepAttempt{EndTimeAt: end, SubmittedAt: submittedAt(90 * time.Second)}, 2},
		{"twenty seconds floors to one", &model.StepAttempt{EndTimeAt: end, SubmittedAt: submittedAt(20 * time.Second)}, 1},
		{"submitted past deadline floors to one", &model.StepAttempt{EndTimeAt: end, SubmittedAt: submittedAt(-5 * time.Minute)}, 1},
		{"no submission time", &model.StepAttempt{EndTimeAt: end}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, InferRemainingMinutes(tt.attempt))
		})
	}
}

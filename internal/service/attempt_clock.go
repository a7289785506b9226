package service

import (
	"math"
	"time"

	"hackathon_backend/internal/model"
)

// Clock 提供当前时间，注入后测试可以确定性地模拟超时
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now().UTC()
}

// ComputeEndTime 由开始时间和计时分钟数推算截止时间
func ComputeEndTime(startedAt time.Time, timerMinutes int) time.Time {
	return startedAt.Add(time.Duration(timerMinutes) * time.Minute)
}

// IsAttemptExceeded 严格大于截止时间才算超时，且只在提交时判定一次
func IsAttemptExceeded(attempt *model.StepAttempt, now time.Time) bool {
	return now.After(attempt.EndTimeAt)
}

// InferRemainingMinutes 驳回未超时的提交且未给新计时值时，
// 把尝试中未用完的时间折算成分钟带入重试
// 四舍五入（远离零），下限1分钟
func InferRemainingMinutes(attempt *model.StepAttempt) int {
	if attempt.SubmittedAt == nil {
		return 1
	}
	delta := attempt.EndTimeAt.Sub(*attempt.SubmittedAt)
	minutes := int(math.Round(delta.Seconds() / 60.0))
	if minutes < 1 {
		return 1
	}
	return minutes
}

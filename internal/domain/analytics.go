package domain

import "time"

// PeriodKey formats the daily analytics period for a point in time.
func PeriodKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// AnalyticsBucket accumulates per-user voice usage statistics for one
// period (a UTC day). Buckets are updated exactly once per finalized
// command and never revised retroactively.
type AnalyticsBucket struct {
	UserID string
	Period string

	TotalCommands      int
	SuccessfulCommands int
	FailedCommands     int

	AvgConfidence     float64
	AvgProcessingTime float64 // seconds
	AvgResponseTime   float64 // seconds

	IntentCounts   map[string]int
	LanguageCounts map[string]int

	UpdatedAt time.Time
}

// NewAnalyticsBucket creates an empty bucket for a user and period.
func NewAnalyticsBucket(userID, period string) *AnalyticsBucket {
	return &AnalyticsBucket{
		UserID:         userID,
		Period:         period,
		IntentCounts:   map[string]int{},
		LanguageCounts: map[string]int{},
	}
}

// Record folds one finalized command into the bucket. Cancelled commands
// must not reach here; callers record only Success and Failed outcomes,
// which keeps total = success + failed an invariant.
func (b *AnalyticsBucket) Record(cmd *Command) {
	b.TotalCommands++
	if cmd.Status == CommandStatusSuccess {
		b.SuccessfulCommands++
	} else {
		b.FailedCommands++
	}

	n := float64(b.TotalCommands)
	b.AvgConfidence += (cmd.Confidence - b.AvgConfidence) / n
	b.AvgProcessingTime += (cmd.ProcessingTime.Seconds() - b.AvgProcessingTime) / n
	b.AvgResponseTime += (cmd.ResponseTime.Seconds() - b.AvgResponseTime) / n

	intent := string(cmd.Intent)
	if intent == "" {
		intent = string(IntentUnknown)
	}
	b.IntentCounts[intent]++
	if cmd.Language != "" {
		b.LanguageCounts[cmd.Language]++
	}
	b.UpdatedAt = time.Now()
}

// SuccessRate returns the fraction of successful commands in [0,1].
func (b *AnalyticsBucket) SuccessRate() float64 {
	if b.TotalCommands == 0 {
		return 0
	}
	return float64(b.SuccessfulCommands) / float64(b.TotalCommands)
}

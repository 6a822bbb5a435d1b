package analytics

import "time"

// Run is one finished generation job.
type Run struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	JobID      string    `gorm:"type:varchar(36);uniqueIndex;not null" json:"job_id"`
	Status     string    `gorm:"type:varchar(16);index;not null" json:"status"`
	Error      *string   `gorm:"type:text" json:"error,omitempty"`
	DurationMS int64     `gorm:"not null" json:"duration_ms"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `gorm:"index" json:"finished_at"`
	CreatedAt  time.Time `json:"created_at"`
}

func (Run) TableName() string { return "generation_runs" }

const statusCompleted = "completed"

// Summary aggregates finished runs. Times are seconds and cover completed
// runs only; SuccessRate is a percentage.
type Summary struct {
	TotalGenerations int64   `json:"total_generations"`
	AverageTime      float64 `json:"average_time"`
	FastestTime      float64 `json:"fastest_time"`
	SlowestTime      float64 `json:"slowest_time"`
	SuccessRate      float64 `json:"success_rate"`
	Errors           int64   `json:"errors"`
}

func successRate(total, errs int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(total-errs) / float64(total) * 100
}

func msToSeconds(ms float64) float64 {
	return ms / 1000
}

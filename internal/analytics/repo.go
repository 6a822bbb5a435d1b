package analytics

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repo is the gorm-backed ledger. Recording the same job twice is a no-op.
type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Migrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&Run{})
}

func (r *Repo) Record(ctx context.Context, run Run) error {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "job_id"}}, DoNothing: true}).
		Create(&run).Error
}

type countsRow struct {
	Total  int64
	Errors int64
}

type durationsRow struct {
	AvgMS float64
	MinMS float64
	MaxMS float64
	N     int64
}

func (r *Repo) Summary(ctx context.Context) (Summary, error) {
	var counts countsRow
	if err := r.db.WithContext(ctx).Model(&Run{}).
		Select("COUNT(*) AS total, COALESCE(SUM(CASE WHEN status <> ? THEN 1 ELSE 0 END), 0) AS errors", statusCompleted).
		Scan(&counts).Error; err != nil {
		return Summary{}, err
	}

	var d durationsRow
	if err := r.db.WithContext(ctx).Model(&Run{}).
		Select("COALESCE(AVG(duration_ms), 0) AS avg_ms, COALESCE(MIN(duration_ms), 0) AS min_ms, COALESCE(MAX(duration_ms), 0) AS max_ms, COUNT(*) AS n").
		Where("status = ?", statusCompleted).
		Scan(&d).Error; err != nil {
		return Summary{}, err
	}

	s := Summary{
		TotalGenerations: counts.Total,
		Errors:           counts.Errors,
		SuccessRate:      successRate(counts.Total, counts.Errors),
	}
	if d.N > 0 {
		s.AverageTime = msToSeconds(d.AvgMS)
		s.FastestTime = msToSeconds(d.MinMS)
		s.SlowestTime = msToSeconds(d.MaxMS)
	}
	return s, nil
}

var _ Ledger = (*Repo)(nil)

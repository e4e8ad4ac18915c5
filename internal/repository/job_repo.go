package repository

import (
	"context"
	"errors"

	"github.com/timmy/stockcast/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrJobNotFound is returned when no job row exists for an id.
var ErrJobNotFound = errors.New("job not found")

// JobRepository keeps the history of bulk forecast jobs.
type JobRepository struct {
	db *gorm.DB
}

// NewJobRepository creates a new JobRepository.
func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Save inserts the job or overwrites the stored row with the same id.
func (r *JobRepository) Save(ctx context.Context, job *domain.ForecastJob) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(job).Error
}

// Get returns the job with the given id.
func (r *JobRepository) Get(ctx context.Context, id string) (*domain.ForecastJob, error) {
	var job domain.ForecastJob
	if err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return &job, nil
}

// ListByScope returns the most recent jobs for scope, newest first.
// A non-positive limit defaults to 20.
func (r *JobRepository) ListByScope(ctx context.Context, scope string, limit int) ([]domain.ForecastJob, error) {
	if limit <= 0 {
		limit = 20
	}
	var jobs []domain.ForecastJob
	err := r.db.WithContext(ctx).
		Where("scope = ?", scope).
		Order("created_at DESC").
		Limit(limit).
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

// MarkInterrupted fails every job still pending or running. Used at startup:
// a job that was mid-flight when the process died has no worker left.
func (r *JobRepository) MarkInterrupted(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Model(&domain.ForecastJob{}).
		Where("status IN ?", []domain.JobStatus{domain.JobStatusPending, domain.JobStatusRunning}).
		Updates(map[string]interface{}{
			"status":    domain.JobStatusFailed,
			"error_log": "interrupted by restart",
		})
	return res.RowsAffected, res.Error
}

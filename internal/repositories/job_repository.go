package repositories

import (
	"context"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"mentis/internal/models/db_models"
)

type IJobRepository interface {
	CreateJob(ctx context.Context, job *db_models.ScheduledJob) error
	ClaimDueJobs(ctx context.Context, nowUnix int64, limit int) ([]db_models.ScheduledJob, error)
	MarkDone(ctx context.Context, jobID string) error
}

type JobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) IJobRepository {
	return &JobRepository{db: db}
}

func (j JobRepository) CreateJob(ctx context.Context, job *db_models.ScheduledJob) error {
	return j.db.WithContext(ctx).Create(job).Error
}

// ClaimDueJobs fetches jobs past their run time, marking them done in the
// same transaction so a second scheduler instance cannot pick them up.
func (j JobRepository) ClaimDueJobs(ctx context.Context, nowUnix int64, limit int) ([]db_models.ScheduledJob, error) {

	var claimed []db_models.ScheduledJob

	err := j.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("done = FALSE AND run_at <= ?", nowUnix).
			Order("run_at ASC").
			Limit(limit).
			Find(&claimed).Error; err != nil {
			return err
		}
		if len(claimed) == 0 {
			return nil
		}

		ids := make([]interface{}, 0, len(claimed))
		for _, job := range claimed {
			ids = append(ids, job.ID)
		}
		return tx.Model(&db_models.ScheduledJob{}).
			Where("id IN ?", ids).
			Update("done", true).Error
	})

	if err != nil {
		return nil, err
	}

	return claimed, nil
}

func (j JobRepository) MarkDone(ctx context.Context, jobID string) error {
	return j.db.WithContext(ctx).
		Model(&db_models.ScheduledJob{}).
		Where("id = ?", jobID).
		Update("done", true).Error
}

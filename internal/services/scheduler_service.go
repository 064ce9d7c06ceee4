package services

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"mentis/internal/models/db_models"
	"mentis/internal/repositories"
	"mentis/pkg/utils"
)

const claimBatchSize = 50

// JobHandler processes one claimed job.
type JobHandler func(ctx context.Context, job db_models.ScheduledJob) error

type SchedulerServiceInterface interface {
	Register(kind db_models.JobKind, handler JobHandler)
	Start() error
	Stop(ctx context.Context) error
	RunDueJobs(ctx context.Context) error
}

func NewSchedulerService(jobRepo repositories.IJobRepository, billing BillingServiceInterface) SchedulerServiceInterface {
	s := &SchedulerService{
		jobRepo:  jobRepo,
		billing:  billing,
		handlers: make(map[db_models.JobKind]JobHandler),
		cron:     cron.New(),
	}

	s.Register(db_models.JobKindSubscriptionExpiration, func(ctx context.Context, job db_models.ScheduledJob) error {
		return billing.ExpireSubscription(ctx, job.TargetID.String())
	})
	s.Register(db_models.JobKindBookingExpiration, func(ctx context.Context, job db_models.ScheduledJob) error {
		return billing.ExpireBookingWindow(ctx, job.TargetID.String())
	})

	return s
}

type SchedulerService struct {
	jobRepo  repositories.IJobRepository
	billing  BillingServiceInterface
	cron     *cron.Cron
	handlers map[db_models.JobKind]JobHandler
	mu       sync.RWMutex
}

func (s *SchedulerService) Register(kind db_models.JobKind, handler JobHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[kind] = handler
}

func (s *SchedulerService) Start() error {

	if _, err := s.cron.AddFunc("@every 1m", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 55*time.Second)
		defer cancel()

		if err := s.RunDueJobs(ctx); err != nil {
			log.Printf("scheduler: job sweep failed: %v", err)
		}
		if err := s.billing.ExpireDueSubscriptions(ctx, time.Now()); err != nil {
			log.Printf("scheduler: expiration sweep failed: %v", err)
		}
	}); err != nil {
		return err
	}

	// Renewal notices once a day, early morning billing time.
	if _, err := s.cron.AddFunc("CRON_TZ=America/Sao_Paulo 0 8 * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		if err := s.billing.SendRenewalNotices(ctx, time.Now().In(utils.BillingLocation())); err != nil {
			log.Printf("scheduler: renewal notices failed: %v", err)
		}
	}); err != nil {
		return err
	}

	s.cron.Start()
	log.Println("scheduler started")
	return nil
}

func (s *SchedulerService) Stop(ctx context.Context) error {
	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	log.Println("scheduler stopped")
	return nil
}

// RunDueJobs claims persisted jobs past their run time and dispatches
// them to their registered handlers.
func (s *SchedulerService) RunDueJobs(ctx context.Context) error {

	jobs, err := s.jobRepo.ClaimDueJobs(ctx, time.Now().Unix(), claimBatchSize)
	if err != nil {
		return err
	}

	for _, job := range jobs {
		s.mu.RLock()
		handler, ok := s.handlers[job.Kind]
		s.mu.RUnlock()

		if !ok {
			log.Printf("scheduler: no handler for job kind %s (job %s)", job.Kind, job.ID)
			continue
		}
		if err := handler(ctx, job); err != nil {
			log.Printf("scheduler: job %s (%s) failed: %v", job.ID, job.Kind, err)
		}
	}

	return nil
}

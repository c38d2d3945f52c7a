package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/omnidesk/ingest-server-go/internal/repository"
)

// CleanupJob cancels satisfaction surveys the customer never answered.
// An unanswered request past the expiry window stops blocking new surveys
// for the same conversation.
type CleanupJob struct {
	csatRequests repository.CSATRequestRepository
	csatExpiry   time.Duration
	interval     time.Duration
	done         chan struct{}
}

func NewCleanupJob(
	csatRequests repository.CSATRequestRepository,
	csatExpiry time.Duration,
	interval time.Duration,
) *CleanupJob {
	return &CleanupJob{
		csatRequests: csatRequests,
		csatExpiry:   csatExpiry,
		interval:     interval,
		done:         make(chan struct{}),
	}
}

func (j *CleanupJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("cleanup job started")
}

func (j *CleanupJob) Stop() {
	close(j.done)
	log.Info().Msg("cleanup job stopped")
}

func (j *CleanupJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.cleanup()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.cleanup()
		}
	}
}

func (j *CleanupJob) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cancelled, err := j.csatRequests.CancelStale(ctx, time.Now().Add(-j.csatExpiry))
	if err != nil {
		log.Error().Err(err).Msg("failed to cancel stale csat requests")
		return
	}
	if cancelled > 0 {
		log.Info().Int64("count", cancelled).Msg("cancelled stale csat requests")
	}
}

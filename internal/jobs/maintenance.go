package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/neirobot/bot-server-go/internal/repository"
)

// MaintenanceJob periodically applies the same transitions the lazy
// per-request path applies: expiring due premiums and zeroing stale free
// counters. Accounts that go quiet for days still read correctly when an
// operator inspects them, and both paths share the repository guards so
// running them together is safe.
type MaintenanceJob struct {
	userRepo repository.UserRepository
	interval time.Duration
	done     chan struct{}
}

func NewMaintenanceJob(userRepo repository.UserRepository, interval time.Duration) *MaintenanceJob {
	return &MaintenanceJob{
		userRepo: userRepo,
		interval: interval,
		done:     make(chan struct{}),
	}
}

func (j *MaintenanceJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("maintenance job started")
}

func (j *MaintenanceJob) Stop() {
	close(j.done)
	log.Info().Msg("maintenance job stopped")
}

func (j *MaintenanceJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.sweep()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.sweep()
		}
	}
}

func (j *MaintenanceJob) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	now := time.Now().UTC()

	expired, err := j.userRepo.ExpireDuePremiums(ctx, now)
	if err != nil {
		log.Error().Err(err).Msg("failed to expire due premiums")
	} else if expired > 0 {
		log.Info().Int64("count", expired).Msg("expired due premiums")
	}

	reset, err := j.userRepo.ResetDueCounters(ctx, now)
	if err != nil {
		log.Error().Err(err).Msg("failed to reset due counters")
	} else if reset > 0 {
		log.Info().Int64("count", reset).Msg("reset stale free counters")
	}
}

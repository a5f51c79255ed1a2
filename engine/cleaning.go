package engine

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/GoCodeAlone/cecontainer"
	"github.com/GoCodeAlone/cecontainer/cluster"
)

// CleaningScheduler periodically puts back in the queue the tasks held by
// workers that no longer exist anywhere in the cluster. Only the holder of
// the clean job lock runs a cleaning.
type CleaningScheduler struct {
	schedule string
	queue    *Queue
	info     cluster.DistributedInformation
	logger   cecontainer.Logger

	cron *cron.Cron
}

// CleanNow runs one cleaning. It returns false when another node holds the
// clean job lock.
func (s *CleaningScheduler) CleanNow() (reset int, ran bool) {
	lock := s.info.AcquireCleanJobLock()
	if !lock.TryLock() {
		s.logger.Debug("Clean job lock is held elsewhere, skipping cleaning")
		return 0, false
	}
	defer lock.Unlock()

	reset = s.queue.ResetTasksWithUnknownWorker(s.info.WorkerUUIDs())
	if reset > 0 {
		s.logger.Info("Reset tasks of unknown workers", "tasks", reset)
	}
	return reset, true
}

// Start schedules the cleaning job.
func (s *CleaningScheduler) Start(context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(s.schedule, func() { s.CleanNow() }); err != nil {
		return fmt.Errorf("%w: cleaning schedule %q: %w", ErrInvalidConfiguration, s.schedule, err)
	}
	c.Start()
	s.cron = c
	s.logger.Info("Cleaning scheduled", "schedule", s.schedule)
	return nil
}

// Stop waits for a running cleaning to finish.
func (s *CleaningScheduler) Stop(ctx context.Context) error {
	if s.cron == nil {
		return nil
	}
	done := s.cron.Stop()
	s.cron = nil
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func cleaningModule() cecontainer.Module {
	return cecontainer.NewModule("cleaning", cecontainer.LevelTasks,
		cecontainer.Provide(KeyCleaningScheduler, func(r cecontainer.Resolver) (any, error) {
			cfg, err := cecontainer.Get[*Configuration](r, KeyConfiguration)
			if err != nil {
				return nil, err
			}
			queue, err := cecontainer.Get[*Queue](r, KeyQueue)
			if err != nil {
				return nil, err
			}
			info, err := cecontainer.Get[cluster.DistributedInformation](r, KeyDistributedInformation)
			if err != nil {
				return nil, err
			}
			logger, err := cecontainer.Get[cecontainer.Logger](r, KeyLogger)
			if err != nil {
				return nil, err
			}
			return &CleaningScheduler{
				schedule: cfg.CleaningSchedule,
				queue:    queue,
				info:     info,
				logger:   cecontainer.WithFields(logger, "component", KeyCleaningScheduler.String()),
			}, nil
		}, KeyConfiguration, KeyQueue, KeyDistributedInformation, KeyLogger),
	)
}

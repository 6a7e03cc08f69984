package scheduler

import (
	"context"
	"errors"
	"fmt"

	"leadfunnel_backend/platform/config"
	"leadfunnel_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// DefaultNurtureCronSpec runs the dispatcher every quarter hour.
const DefaultNurtureCronSpec = "*/15 * * * *"

// NurtureCron enqueues a dispatch task on a cron schedule.
type NurtureCron struct {
	scheduler *asynq.Scheduler
	spec      string
	log       *logger.Logger
}

func NewNurtureCron(cfg config.SchedulerConfig, log *logger.Logger) (*NurtureCron, error) {
	opt, err := schedulerRedisOpt(cfg)
	if err != nil {
		return nil, err
	}

	spec := cfg.GetNurtureCronSpec()
	if spec == "" {
		spec = DefaultNurtureCronSpec
	}

	task, err := NewNurtureDispatchTask(NurtureDispatchPayload{Trigger: TriggerCron})
	if err != nil {
		return nil, err
	}

	s := asynq.NewScheduler(opt, &asynq.SchedulerOpts{
		PostEnqueueFunc: func(info *asynq.TaskInfo, err error) {
			if err != nil && !errors.Is(err, asynq.ErrDuplicateTask) {
				log.Warn("nurture dispatch enqueue failed", "error", err)
			}
		},
	})
	if _, err := s.Register(spec, task, asynq.Queue(queueName(cfg)), asynq.Unique(dispatchUniqueTTL), asynq.MaxRetry(0)); err != nil {
		return nil, fmt.Errorf("register nurture cron %q: %w", spec, err)
	}

	return &NurtureCron{scheduler: s, spec: spec, log: log}, nil
}

// Run blocks until ctx is cancelled.
func (c *NurtureCron) Run(ctx context.Context) {
	if c == nil || c.scheduler == nil {
		return
	}

	if err := c.scheduler.Start(); err != nil {
		c.log.Error("nurture cron failed to start", "error", err)
		return
	}
	c.log.Info("nurture cron started", "spec", c.spec)

	<-ctx.Done()
	c.scheduler.Shutdown()
}

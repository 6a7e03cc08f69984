package scheduler

import (
	"context"
	"fmt"

	nurturesvc "leadfunnel_backend/internal/nurture/service"
	"leadfunnel_backend/platform/config"
	"leadfunnel_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// NurtureRunner executes one dispatcher pass.
type NurtureRunner interface {
	RunDueJobs(ctx context.Context) (nurturesvc.RunResult, error)
}

type Worker struct {
	server  *asynq.Server
	mux     *asynq.ServeMux
	nurture NurtureRunner
	log     *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, nurture NurtureRunner, log *logger.Logger) (*Worker, error) {
	opt, err := schedulerRedisOpt(cfg)
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:  server,
		mux:     mux,
		nurture: nurture,
		log:     log,
	}

	mux.HandleFunc(TaskNurtureDispatch, w.handleNurtureDispatch)

	return w, nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleNurtureDispatch(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseNurtureDispatchPayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	result, err := w.nurture.RunDueJobs(ctx)
	if err != nil {
		return err
	}

	w.log.Info("nurture dispatch task done",
		"trigger", payload.Trigger,
		"processed", result.Processed,
		"sent", result.Sent,
		"failed", result.Failed,
		"skipped", result.Skipped,
	)
	return nil
}

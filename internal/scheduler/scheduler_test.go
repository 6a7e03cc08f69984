package scheduler

import (
	"context"
	"errors"
	"testing"

	nurturesvc "leadfunnel_backend/internal/nurture/service"
	"leadfunnel_backend/platform/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRunner struct {
	calls int
	err   error
}

func (s *stubRunner) RunDueJobs(context.Context) (nurturesvc.RunResult, error) {
	s.calls++
	return nurturesvc.RunResult{Processed: 1, Sent: 1}, s.err
}

func TestNurtureDispatchTaskPayload(t *testing.T) {
	task, err := NewNurtureDispatchTask(NurtureDispatchPayload{Trigger: TriggerCron})
	require.NoError(t, err)
	assert.Equal(t, TaskNurtureDispatch, task.Type())

	payload, err := ParseNurtureDispatchPayload(task)
	require.NoError(t, err)
	assert.Equal(t, TriggerCron, payload.Trigger)
}

func TestHandleNurtureDispatchRunsDispatcher(t *testing.T) {
	runner := &stubRunner{}
	w := &Worker{nurture: runner, log: logger.Discard()}

	task, err := NewNurtureDispatchTask(NurtureDispatchPayload{Trigger: TriggerStartup})
	require.NoError(t, err)

	require.NoError(t, w.handleNurtureDispatch(context.Background(), task))
	assert.Equal(t, 1, runner.calls)
}

func TestHandleNurtureDispatchSurfacesRunError(t *testing.T) {
	runner := &stubRunner{err: nurturesvc.ErrMailUnavailable}
	w := &Worker{nurture: runner, log: logger.Discard()}

	task, _ := NewNurtureDispatchTask(NurtureDispatchPayload{Trigger: TriggerCron})
	assert.ErrorIs(t, w.handleNurtureDispatch(context.Background(), task), nurturesvc.ErrMailUnavailable)
}

func TestHandleNurtureDispatchSkipsRetryOnBadPayload(t *testing.T) {
	runner := &stubRunner{}
	w := &Worker{nurture: runner, log: logger.Discard()}

	err := w.handleNurtureDispatch(context.Background(), asynq.NewTask(TaskNurtureDispatch, []byte("{")))
	assert.True(t, errors.Is(err, asynq.SkipRetry))
	assert.Zero(t, runner.calls)
}

func TestRedisClientOpt(t *testing.T) {
	opt, err := redisClientOpt("redis://:pw@localhost:6380/2", false)
	require.NoError(t, err)
	assert.Equal(t, "localhost:6380", opt.Addr)
	assert.Equal(t, "pw", opt.Password)
	assert.Equal(t, 2, opt.DB)
	assert.Nil(t, opt.TLSConfig)

	opt, err = redisClientOpt("rediss://localhost:6379", true)
	require.NoError(t, err)
	require.NotNil(t, opt.TLSConfig)
	assert.True(t, opt.TLSConfig.InsecureSkipVerify)

	_, err = redisClientOpt("not a url", false)
	assert.Error(t, err)
}

type testSchedulerConfig struct {
	redisURL string
}

func (c testSchedulerConfig) GetRedisURL() string        { return c.redisURL }
func (c testSchedulerConfig) GetRedisTLSInsecure() bool  { return false }
func (c testSchedulerConfig) GetAsynqQueueName() string  { return "" }
func (c testSchedulerConfig) GetAsynqConcurrency() int   { return 0 }
func (c testSchedulerConfig) GetNurtureCronSpec() string { return "" }

func TestNewRedisClientConnects(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedisClient(testSchedulerConfig{redisURL: "redis://" + mr.Addr()})
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)

	_, err = NewRedisClient(testSchedulerConfig{})
	assert.Error(t, err)
}

func TestQueueNameDefaults(t *testing.T) {
	assert.Equal(t, "default", queueName(testSchedulerConfig{}))
}

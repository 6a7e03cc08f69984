package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskNurtureDispatch = "nurture.dispatch"

// Dispatch triggers recorded on the task payload.
const (
	TriggerCron    = "cron"
	TriggerStartup = "startup"
)

type NurtureDispatchPayload struct {
	Trigger string `json:"trigger"`
}

func NewNurtureDispatchTask(payload NurtureDispatchPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNurtureDispatch, data), nil
}

func ParseNurtureDispatchPayload(task *asynq.Task) (NurtureDispatchPayload, error) {
	var payload NurtureDispatchPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return NurtureDispatchPayload{}, err
	}
	return payload, nil
}

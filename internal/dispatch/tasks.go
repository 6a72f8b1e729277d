// Package dispatch moves turns and meeting requests through asynq.
package dispatch

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	"github.com/Chative-lead-agent/server/internal/agent/model"
)

const TaskTurn = "lead.turn"

const TaskMeetingRequested = model.EventMeetingRequested

func NewTurnTask(payload model.InboundMessage) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTurn, data), nil
}

func ParseTurnPayload(task *asynq.Task) (model.InboundMessage, error) {
	var payload model.InboundMessage
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return model.InboundMessage{}, err
	}
	return payload, nil
}

func NewMeetingRequestedTask(payload model.MeetingRequested) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskMeetingRequested, data), nil
}

func ParseMeetingRequestedPayload(task *asynq.Task) (model.MeetingRequested, error) {
	var payload model.MeetingRequested
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return model.MeetingRequested{}, err
	}
	return payload, nil
}

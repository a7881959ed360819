package queue

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
)

func (q *Queue) HandlePublishTask(ctx context.Context, task *asynq.Task) error {
	var payload PublishPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}

	if err := q.processor.ProcessTask(payload.TaskID); err != nil {
		// ProcessTask records its own outcome; surfacing the error here would
		// make asynq retry a task the scheduler already rescheduled.
		slog.Info(err.Error())
	}

	return nil
}

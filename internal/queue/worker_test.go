package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

type fakeProcessor struct {
	processed []string
	err       error
}

func (f *fakeProcessor) ProcessTask(taskID string) error {
	f.processed = append(f.processed, taskID)
	return f.err
}

func TestHandlePublishTask(t *testing.T) {
	proc := &fakeProcessor{}
	q := NewQueue(proc)

	payload, err := json.Marshal(PublishPayload{TaskID: "task_1"})
	require.NoError(t, err)

	err = q.HandlePublishTask(context.Background(), asynq.NewTask(TaskTypePublish, payload))
	require.NoError(t, err)
	require.Equal(t, []string{"task_1"}, proc.processed)
}

func TestHandlePublishTaskSwallowsProcessorError(t *testing.T) {
	proc := &fakeProcessor{err: errors.New("boom")}
	q := NewQueue(proc)

	payload, err := json.Marshal(PublishPayload{TaskID: "task_1"})
	require.NoError(t, err)

	// The scheduler owns retry decisions; asynq must not see the error and
	// retry on its own.
	require.NoError(t, q.HandlePublishTask(context.Background(), asynq.NewTask(TaskTypePublish, payload)))
}

func TestHandlePublishTaskRejectsMalformedPayload(t *testing.T) {
	q := NewQueue(&fakeProcessor{})

	err := q.HandlePublishTask(context.Background(), asynq.NewTask(TaskTypePublish, []byte("{broken")))
	require.Error(t, err)
}

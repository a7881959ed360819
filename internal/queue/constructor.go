package queue

// Processor runs a claimed publish task to completion. The posting scheduler
// implements it; the indirection keeps the queue package free of scheduler
// internals.
type Processor interface {
	ProcessTask(taskID string) error
}

type Queue struct {
	processor Processor
}

func NewQueue(processor Processor) *Queue {
	return &Queue{processor: processor}
}

const TaskTypePublish = "publish:post"

type PublishPayload struct {
	TaskID string `json:"task_id"`
}

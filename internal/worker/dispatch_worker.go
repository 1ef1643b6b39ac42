package worker

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/WEBSTUDIOCSE/AUTOGRAM-sub001/internal/model"
)

const (
	TaskTypeDispatchTick = "dispatch:tick"
	QueueDispatch        = "dispatch"
)

// Ticker runs one dispatch tick; *dispatcher.Dispatcher satisfies it
type Ticker interface {
	Run(ctx context.Context) *model.PipelineRun
}

// DispatchWorker processes scheduled dispatch ticks
type DispatchWorker struct {
	dispatcher Ticker
	log        zerolog.Logger
}

func NewDispatchWorker(d Ticker, log zerolog.Logger) *DispatchWorker {
	return &DispatchWorker{dispatcher: d, log: log}
}

// ProcessTask runs one tick. Item failures are part of the run summary, so
// the task itself only fails when the tick never started.
func (w *DispatchWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("dispatch tick cancelled before start: %w", err)
	}
	taskID, _ := asynq.GetTaskID(ctx)
	w.log.Debug().Str("task_id", taskID).Str("type", t.Type()).Msg("dispatch tick received")

	run := w.dispatcher.Run(ctx)
	w.log.Debug().Str("task_id", taskID).Str("run_id", run.RunID).Msg("dispatch tick finished")
	return nil
}

// NewDispatchTask builds the task enqueued by the periodic scheduler
func NewDispatchTask() *asynq.Task {
	return asynq.NewTask(TaskTypeDispatchTick, nil)
}

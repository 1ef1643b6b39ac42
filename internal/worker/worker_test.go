package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WEBSTUDIOCSE/AUTOGRAM-sub001/internal/model"
)

type countingTicker struct{ runs int32 }

func (c *countingTicker) Run(context.Context) *model.PipelineRun {
	atomic.AddInt32(&c.runs, 1)
	return &model.PipelineRun{RunID: "r"}
}

func TestDispatchWorker_ProcessTask(t *testing.T) {
	ticker := &countingTicker{}
	w := NewDispatchWorker(ticker, zerolog.Nop())

	require.NoError(t, w.ProcessTask(context.Background(), NewDispatchTask()))
	assert.EqualValues(t, 1, atomic.LoadInt32(&ticker.runs))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, w.ProcessTask(ctx, asynq.NewTask(TaskTypeDispatchTick, nil)))
	assert.EqualValues(t, 1, atomic.LoadInt32(&ticker.runs))
}

func TestCronTrigger_Fires(t *testing.T) {
	ticker := &countingTicker{}
	trig, err := NewCronTrigger("@every 1s", time.UTC, ticker, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, trig.Start())
	defer trig.Stop()

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&ticker.runs) >= 1 }, 5*time.Second, 50*time.Millisecond)
}

func TestCronTrigger_RejectsBadSpec(t *testing.T) {
	_, err := NewCronTrigger("every minute", time.UTC, &countingTicker{}, zerolog.Nop())
	assert.Error(t, err)
}

func TestAsynqLevel(t *testing.T) {
	assert.Equal(t, asynq.DebugLevel, asynqLevel(zerolog.DebugLevel))
	assert.Equal(t, asynq.InfoLevel, asynqLevel(zerolog.InfoLevel))
	assert.Equal(t, asynq.WarnLevel, asynqLevel(zerolog.WarnLevel))
	assert.Equal(t, asynq.ErrorLevel, asynqLevel(zerolog.ErrorLevel))
}

func TestServerConfig_AllowsOverlappingTicks(t *testing.T) {
	alog := asynqLogger{log: zerolog.Nop()}

	assert.Equal(t, 2, serverConfig(AsynqConfig{}, alog).Concurrency)
	assert.Equal(t, 2, serverConfig(AsynqConfig{Concurrency: 1}, alog).Concurrency)
	assert.Equal(t, 5, serverConfig(AsynqConfig{Concurrency: 5}, alog).Concurrency)
	assert.Equal(t, map[string]int{QueueDispatch: 1}, serverConfig(AsynqConfig{}, alog).Queues)
}

// overlapTicker blocks each tick until release is closed
type overlapTicker struct {
	running int32
	peak    int32
	release chan struct{}
}

func (o *overlapTicker) Run(context.Context) *model.PipelineRun {
	n := atomic.AddInt32(&o.running, 1)
	defer atomic.AddInt32(&o.running, -1)
	for {
		p := atomic.LoadInt32(&o.peak)
		if n <= p || atomic.CompareAndSwapInt32(&o.peak, p, n) {
			break
		}
	}
	<-o.release
	return &model.PipelineRun{}
}

func TestCronTrigger_TicksOverlap(t *testing.T) {
	ticker := &overlapTicker{release: make(chan struct{})}
	trig, err := NewCronTrigger("@every 1s", time.UTC, ticker, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, trig.Start())

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&ticker.peak) >= 2 }, 5*time.Second, 50*time.Millisecond)
	close(ticker.release)
	trig.Stop()
}

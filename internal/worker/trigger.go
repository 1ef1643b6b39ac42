package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Trigger fires dispatch ticks on a schedule
type Trigger interface {
	Start() error
	Stop()
}

// CronParser accepts standard five-field specs and descriptors such as @every
var CronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// AsynqTrigger registers a periodic task in Redis and consumes it with an
// asynq server, so several replicas share one schedule.
type AsynqTrigger struct {
	scheduler *asynq.Scheduler
	server    *asynq.Server
	mux       *asynq.ServeMux
	spec      string
	timeout   time.Duration
	log       zerolog.Logger
}

type AsynqConfig struct {
	Redis    asynq.RedisClientOpt
	Spec     string
	Location *time.Location
	// RunTimeout is the tick ceiling; the task timeout adds a margin on top
	RunTimeout time.Duration
	// Concurrency is the number of ticks that may run at once, minimum 2
	Concurrency int
	LogLevel    zerolog.Level
}

const minTickConcurrency = 2

// serverConfig leaves room for overlapping ticks: a tick that outlives the
// interval must not hold the next one in the queue past its minute.
func serverConfig(cfg AsynqConfig, alog asynqLogger) asynq.Config {
	n := cfg.Concurrency
	if n < minTickConcurrency {
		n = minTickConcurrency
	}
	return asynq.Config{
		Concurrency: n,
		Queues:      map[string]int{QueueDispatch: 1},
		Logger:      alog,
		LogLevel:    asynqLevel(cfg.LogLevel),
	}
}

func NewAsynqTrigger(cfg AsynqConfig, w *DispatchWorker, log zerolog.Logger) *AsynqTrigger {
	alog := asynqLogger{log: log}
	level := asynqLevel(cfg.LogLevel)

	scheduler := asynq.NewScheduler(cfg.Redis, &asynq.SchedulerOpts{
		Location: cfg.Location,
		Logger:   alog,
		LogLevel: level,
	})
	server := asynq.NewServer(cfg.Redis, serverConfig(cfg, alog))

	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskTypeDispatchTick, w.ProcessTask)

	return &AsynqTrigger{
		scheduler: scheduler,
		server:    server,
		mux:       mux,
		spec:      cfg.Spec,
		timeout:   cfg.RunTimeout + time.Minute,
		log:       log,
	}
}

func (t *AsynqTrigger) Start() error {
	// No asynq.Unique: overlapping ticks are allowed to run
	entryID, err := t.scheduler.Register(t.spec, NewDispatchTask(),
		asynq.Queue(QueueDispatch),
		asynq.MaxRetry(0),
		asynq.Timeout(t.timeout),
	)
	if err != nil {
		return fmt.Errorf("failed to register dispatch schedule: %w", err)
	}
	if err := t.scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start asynq scheduler: %w", err)
	}
	if err := t.server.Start(t.mux); err != nil {
		t.scheduler.Shutdown()
		return fmt.Errorf("failed to start asynq server: %w", err)
	}
	t.log.Info().Str("entry_id", entryID).Str("spec", t.spec).Msg("asynq dispatch schedule registered")
	return nil
}

func (t *AsynqTrigger) Stop() {
	t.scheduler.Shutdown()
	t.server.Shutdown()
}

// CronTrigger runs ticks in process; used for single-instance deployments
type CronTrigger struct {
	c      *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	log    zerolog.Logger
}

func NewCronTrigger(spec string, loc *time.Location, d Ticker, log zerolog.Logger) (*CronTrigger, error) {
	ctx, cancel := context.WithCancel(context.Background())
	t := &CronTrigger{
		c:      cron.New(cron.WithParser(CronParser), cron.WithLocation(loc)),
		ctx:    ctx,
		cancel: cancel,
		log:    log,
	}
	_, err := t.c.AddFunc(spec, func() {
		d.Run(t.ctx)
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}
	return t, nil
}

func (t *CronTrigger) Start() error {
	t.c.Start()
	t.log.Info().Int("entries", len(t.c.Entries())).Msg("local cron dispatch started")
	return nil
}

// Stop cancels in-flight ticks and waits for them to return
func (t *CronTrigger) Stop() {
	t.cancel()
	<-t.c.Stop().Done()
}

type asynqLogger struct{ log zerolog.Logger }

func (l asynqLogger) Debug(args ...interface{}) { l.log.Debug().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Info(args ...interface{})  { l.log.Info().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Warn(args ...interface{})  { l.log.Warn().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Error(args ...interface{}) { l.log.Error().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Fatal(args ...interface{}) { l.log.Fatal().Msg(fmt.Sprint(args...)) }

func asynqLevel(level zerolog.Level) asynq.LogLevel {
	switch {
	case level <= zerolog.DebugLevel:
		return asynq.DebugLevel
	case level == zerolog.WarnLevel:
		return asynq.WarnLevel
	case level >= zerolog.ErrorLevel:
		return asynq.ErrorLevel
	default:
		return asynq.InfoLevel
	}
}

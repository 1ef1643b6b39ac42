// Package dispatcher turns a tick into pipeline runs for every due item and
// aggregates their outcomes into one run summary.
package dispatcher

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/WEBSTUDIOCSE/AUTOGRAM-sub001/internal/model"
	"github.com/WEBSTUDIOCSE/AUTOGRAM-sub001/internal/pipeline"
	"github.com/WEBSTUDIOCSE/AUTOGRAM-sub001/internal/registry"
)

const bucketLayout = "15:04"

// Runner executes one item; *pipeline.Executor satisfies it
type Runner interface {
	Execute(ctx context.Context, job pipeline.Job) model.ItemResult
}

// SummarySink receives the aggregate of every completed tick
type SummarySink interface {
	RunCompleted(run *model.PipelineRun)
}

type Options struct {
	Registry       *registry.Registry
	Runner         Runner
	Location       *time.Location
	MaxConcurrency int
	// RunTimeout bounds how long a tick waits for its items; 0 waits forever
	RunTimeout time.Duration
	Sinks      []SummarySink
	Logger     zerolog.Logger
	// Now overrides the clock used for buckets
	Now func() time.Time
}

type Dispatcher struct {
	registry       *registry.Registry
	runner         Runner
	loc            *time.Location
	maxConcurrency int
	runTimeout     time.Duration
	sinks          []SummarySink
	log            zerolog.Logger
	now            func() time.Time
}

func New(opts Options) *Dispatcher {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.MaxConcurrency < 1 {
		opts.MaxConcurrency = 1
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Dispatcher{
		registry:       opts.Registry,
		runner:         opts.Runner,
		loc:            opts.Location,
		maxConcurrency: opts.MaxConcurrency,
		runTimeout:     opts.RunTimeout,
		sinks:          opts.Sinks,
		log:            opts.Logger,
		now:            opts.Now,
	}
}

// TimeBucket formats t as zero-padded HH:mm in loc
func TimeBucket(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(bucketLayout)
}

// Run performs one tick. Module query failures are isolated and recorded on
// the returned run; item failures only affect the counters.
func (d *Dispatcher) Run(ctx context.Context) *model.PipelineRun {
	run := &model.PipelineRun{
		RunID:     uuid.NewString(),
		StartTime: d.now(),
	}
	run.Bucket = TimeBucket(run.StartTime, d.loc)
	log := d.log.With().Str("run_id", run.RunID).Str("bucket", run.Bucket).Logger()

	jobs := d.collect(ctx, log, run)
	run.TotalScheduled = len(jobs)

	results := d.fanOut(ctx, log, jobs)
	for _, r := range results {
		if r.Succeeded() {
			run.TotalSuccessful++
		} else {
			run.TotalFailed++
		}
	}
	run.TotalAbandoned = run.TotalScheduled - run.TotalSuccessful - run.TotalFailed
	run.EndTime = d.now()

	log.Info().
		Int("scheduled", run.TotalScheduled).
		Int("successful", run.TotalSuccessful).
		Int("failed", run.TotalFailed).
		Int("abandoned", run.TotalAbandoned).
		Int("module_errors", len(run.ModuleErrors)).
		Float64("success_rate", run.SuccessRate()).
		Dur("took", run.EndTime.Sub(run.StartTime)).
		Msg("dispatch run complete")

	for _, s := range d.sinks {
		s.RunCompleted(run)
	}
	return run
}

// collect queries modules in registration order. At most one job per
// (module, item) is produced per tick.
func (d *Dispatcher) collect(ctx context.Context, log zerolog.Logger, run *model.PipelineRun) []pipeline.Job {
	var jobs []pipeline.Job
	seen := make(map[string]struct{})

	for _, m := range d.registry.List() {
		items, err := m.FindDueItems(ctx, run.Bucket)
		if err != nil {
			qerr := &ModuleQueryError{ModuleID: m.ID(), Err: err}
			log.Error().Err(qerr).Str("module", m.ID()).Msg("module query failed, continuing")
			run.ModuleErrors = append(run.ModuleErrors, model.ModuleError{ModuleID: m.ID(), Error: err.Error()})
			continue
		}
		for _, item := range items {
			if _, dup := seen[item.Key()]; dup {
				log.Warn().Str("item", item.Key()).Msg("duplicate due item ignored")
				continue
			}
			seen[item.Key()] = struct{}{}
			jobs = append(jobs, pipeline.Job{RunID: run.RunID, Item: item, Target: m.PublishTarget()})
		}
	}
	return jobs
}

// fanOut runs jobs concurrently and waits for all of them, or until the run
// timeout elapses. The timeout only stops scheduling and waiting: items run
// detached from it, bounded by their stage timeouts, so an item still running
// at the deadline finishes on its own and is left out of the result.
func (d *Dispatcher) fanOut(ctx context.Context, log zerolog.Logger, jobs []pipeline.Job) []model.ItemResult {
	if len(jobs) == 0 {
		return nil
	}

	runCtx, cancel := ctx, context.CancelFunc(func() {})
	if d.runTimeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, d.runTimeout)
	}
	defer cancel()
	execCtx := context.WithoutCancel(ctx)

	var (
		mu      sync.Mutex
		closed  bool
		results = make([]model.ItemResult, 0, len(jobs))
		done    = make(chan struct{})
	)

	go func() {
		defer close(done)
		var g errgroup.Group
		g.SetLimit(d.maxConcurrency)
		for _, job := range jobs {
			if runCtx.Err() != nil {
				break
			}
			g.Go(func() error {
				if runCtx.Err() != nil {
					return nil
				}
				res := d.runner.Execute(execCtx, job)
				mu.Lock()
				if !closed {
					results = append(results, res)
				}
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()
	}()

	select {
	case <-done:
	case <-runCtx.Done():
		log.Warn().Err(runCtx.Err()).Msg("run deadline reached, abandoning unfinished items")
	}

	mu.Lock()
	defer mu.Unlock()
	closed = true
	return append([]model.ItemResult(nil), results...)
}

// TriggerOne executes the first item of moduleID due now that belongs to userID
func (d *Dispatcher) TriggerOne(ctx context.Context, moduleID, userID string) (*model.ItemResult, error) {
	m, ok := d.registry.Get(moduleID)
	if !ok {
		return nil, ErrModuleNotFound
	}

	bucket := TimeBucket(d.now(), d.loc)
	items, err := m.FindDueItems(ctx, bucket)
	if err != nil {
		return nil, &ModuleQueryError{ModuleID: moduleID, Err: err}
	}

	for _, item := range items {
		if item.UserID != userID {
			continue
		}
		d.log.Info().Str("module", moduleID).Str("user", userID).Str("item", item.ItemID).Str("bucket", bucket).Msg("manual trigger")
		res := d.runner.Execute(ctx, pipeline.Job{
			RunID:  "manual-" + uuid.NewString(),
			Item:   item,
			Target: m.PublishTarget(),
		})
		return &res, nil
	}
	return nil, ErrNoDueItem
}

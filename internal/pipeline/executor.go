// Package pipeline runs one scheduled item through
// generate → dedup → render → upload → publish and records every transition.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/WEBSTUDIOCSE/AUTOGRAM-sub001/internal/client"
	"github.com/WEBSTUDIOCSE/AUTOGRAM-sub001/internal/dedup"
	"github.com/WEBSTUDIOCSE/AUTOGRAM-sub001/internal/model"
)

const (
	defaultStageTimeout = 3 * time.Minute
	finalSaveTimeout    = 10 * time.Second
)

// RunLog persists entries and serves recent texts for generation exclusions
type RunLog interface {
	Save(ctx context.Context, e *model.RunLogEntry) error
	RecentTexts(ctx context.Context, scope model.Scope, limit int) ([]string, error)
}

// Notifier receives a snapshot of the entry after every transition
type Notifier interface {
	NotifyStage(runID string, entry model.RunLogEntry)
}

// Observer records stage latencies and terminal item statuses
type Observer interface {
	ObserveStage(moduleID string, stage model.Stage, took time.Duration, err error)
	ObserveItem(moduleID string, status model.RunStatus)
}

// Job is one item execution request
type Job struct {
	RunID  string
	Item   model.ScheduledItem
	Target string
}

// Options configures an Executor. Generator through Log are required.
type Options struct {
	Generator  client.Generator
	Renderer   client.Renderer
	MediaStore client.MediaStore
	Publisher  client.Publisher
	Dedup      *dedup.Engine
	Log        RunLog

	StageTimeout      time.Duration
	HistoryExclusions int
	Breakers          BreakerConfig

	Notifier Notifier
	Observer Observer
	Logger   zerolog.Logger
}

// Executor is safe for concurrent use; each Execute owns its entry
type Executor struct {
	gen      client.Generator
	renderer client.Renderer
	store    client.MediaStore
	pub      client.Publisher
	dedup    *dedup.Engine
	runLog   RunLog

	stageTimeout time.Duration
	exclusions   int

	renderBreaker  *breaker
	publishBreaker *breaker

	notifier Notifier
	observer Observer
	log      zerolog.Logger
	now      func() time.Time
}

func NewExecutor(opts Options) *Executor {
	if opts.StageTimeout <= 0 {
		opts.StageTimeout = defaultStageTimeout
	}
	return &Executor{
		gen:            opts.Generator,
		renderer:       opts.Renderer,
		store:          opts.MediaStore,
		pub:            opts.Publisher,
		dedup:          opts.Dedup,
		runLog:         opts.Log,
		stageTimeout:   opts.StageTimeout,
		exclusions:     opts.HistoryExclusions,
		renderBreaker:  newBreaker("render", opts.Breakers, opts.Logger),
		publishBreaker: newBreaker("publish", opts.Breakers, opts.Logger),
		notifier:       opts.Notifier,
		observer:       opts.Observer,
		log:            opts.Logger,
		now:            time.Now,
	}
}

// Execute runs the item to PUBLISHED or FAILED. It never returns an error;
// the failure, if any, is carried by the result's entry.
func (x *Executor) Execute(ctx context.Context, job Job) model.ItemResult {
	start := x.now()
	item := job.Item
	entry := &model.RunLogEntry{
		ID:          uuid.NewString(),
		RunID:       job.RunID,
		ModuleID:    item.ModuleID,
		ItemID:      item.ItemID,
		UserID:      item.UserID,
		AccountRef:  item.AccountRef,
		DisplayName: item.DisplayName,
		Status:      model.RunStatusPending,
		CreatedAt:   start,
	}
	log := x.log.With().
		Str("run_id", job.RunID).
		Str("module", item.ModuleID).
		Str("item", item.ItemID).
		Str("entry_id", entry.ID).
		Logger()

	x.record(ctx, entry)

	if err := x.run(ctx, log, job, entry); err != nil {
		entry.Status = model.RunStatusFailed
		entry.Error = err.Error()
		if stage, ok := FailedStage(err); ok {
			entry.FailedStage = stage
		}
		log.Warn().Err(err).Str("status", string(entry.Status)).Msg("item failed")
	} else {
		log.Info().Str("publish_id", entry.PublishID).Bool("regenerated", entry.Regenerated).Msg("item published")
	}

	// The terminal write must land even if the tick deadline has passed
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalSaveTimeout)
	x.record(saveCtx, entry)
	cancel()

	if x.observer != nil {
		x.observer.ObserveItem(item.ModuleID, entry.Status)
	}
	return model.ItemResult{
		ModuleID: item.ModuleID,
		ItemID:   item.ItemID,
		UserID:   item.UserID,
		Status:   entry.Status,
		Entry:    entry,
		Duration: x.now().Sub(start),
	}
}

// run advances entry stage by stage; artifact fields are only ever set
func (x *Executor) run(ctx context.Context, log zerolog.Logger, job Job, entry *model.RunLogEntry) error {
	item := job.Item
	scope := item.Scope()

	exclusions := x.recentExclusions(ctx, log, scope)

	content, err := stage(ctx, x, item.ModuleID, model.StageGenerate, func(ctx context.Context) (*model.GeneratedContent, error) {
		return x.gen.Generate(ctx, x.generateRequest(item, exclusions, false))
	})
	if err != nil {
		return err
	}
	// Not persisted until dedup resolves, so the candidate never matches itself
	entry.GeneratedText = content.Text
	entry.VisualPrompt = content.VisualPrompt
	entry.Status = model.RunStatusContentGenerated

	res, err := stage(ctx, x, item.ModuleID, model.StageDedup, func(ctx context.Context) (*dedup.Resolution, error) {
		return x.dedup.Resolve(ctx, scope, content, func(ctx context.Context, extra []string, forceUnique bool) (*model.GeneratedContent, error) {
			req := x.generateRequest(item, append(append([]string{}, exclusions...), extra...), forceUnique)
			return x.gen.Generate(ctx, req)
		})
	})
	if err != nil {
		return err
	}
	if res.Regenerated {
		content = res.Content
		entry.Regenerated = true
		entry.GeneratedText = content.Text
		entry.VisualPrompt = content.VisualPrompt
	}
	x.record(ctx, entry)

	media, err := stage(ctx, x, item.ModuleID, model.StageRender, func(ctx context.Context) (*client.Media, error) {
		out, err := x.renderBreaker.call(func() (any, error) {
			return x.renderer.Render(ctx, content.VisualPrompt, item.ContentType)
		})
		if err != nil {
			return nil, err
		}
		m, _ := out.(*client.Media)
		if m == nil {
			return nil, errors.New("renderer returned no media")
		}
		return m, nil
	})
	if err != nil {
		return err
	}

	mediaURL, err := stage(ctx, x, item.ModuleID, model.StageUpload, func(ctx context.Context) (string, error) {
		return x.store.Store(ctx, media, path.Join(item.ModuleID, item.UserID, item.AccountRef))
	})
	if err != nil {
		return err
	}
	entry.MediaURL = mediaURL
	entry.Status = model.RunStatusMediaUploaded
	x.record(ctx, entry)

	postID, err := stage(ctx, x, item.ModuleID, model.StagePublish, func(ctx context.Context) (string, error) {
		out, err := x.publishBreaker.call(func() (any, error) {
			return x.pub.Publish(ctx, job.Target, &client.PublishRequest{
				Payload:    item.Payload,
				UserID:     item.UserID,
				AccountRef: item.AccountRef,
				MediaURL:   mediaURL,
				Caption:    Caption(content.Text, item.Payload["hashtags"]),
				IsVideo:    item.ContentType.IsVideo(),
			})
		})
		if err != nil {
			return "", err
		}
		return out.(string), nil
	})
	if err != nil {
		return err
	}
	entry.PublishID = postID
	entry.Status = model.RunStatusPublished
	return nil
}

// stage runs fn under the stage timeout and wraps any failure in a StageError
func stage[T any](ctx context.Context, x *Executor, moduleID string, name model.Stage, fn func(ctx context.Context) (T, error)) (T, error) {
	sctx, cancel := context.WithTimeout(ctx, x.stageTimeout)
	defer cancel()

	start := x.now()
	out, err := fn(sctx)
	if err != nil && errors.Is(sctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		err = fmt.Errorf("%w after %v: %v", ErrStageTimeout, x.stageTimeout, err)
	}
	if x.observer != nil {
		x.observer.ObserveStage(moduleID, name, x.now().Sub(start), err)
	}
	if err != nil {
		var zero T
		return zero, &StageError{Stage: name, Err: err}
	}
	return out, nil
}

func (x *Executor) recentExclusions(ctx context.Context, log zerolog.Logger, scope model.Scope) []string {
	if x.exclusions <= 0 {
		return nil
	}
	texts, err := x.runLog.RecentTexts(ctx, scope, x.exclusions)
	if err != nil {
		log.Warn().Err(err).Msg("failed to load recent texts for exclusions")
		return nil
	}
	return texts
}

func (x *Executor) generateRequest(item model.ScheduledItem, exclusions []string, forceUnique bool) *client.GenerateRequest {
	req := &client.GenerateRequest{
		ModuleID:    item.ModuleID,
		ContentType: item.ContentType,
		Payload:     item.Payload,
		Exclusions:  exclusions,
		ForceUnique: forceUnique,
	}
	if forceUnique {
		req.Nonce = uuid.NewString()
	}
	return req
}

// record persists and broadcasts a snapshot; persist errors do not fail the item
func (x *Executor) record(ctx context.Context, entry *model.RunLogEntry) {
	_ = x.runLog.Save(ctx, entry)
	if x.notifier != nil {
		x.notifier.NotifyStage(entry.RunID, *entry)
	}
}

// Caption joins the generated text and the item's hashtags
func Caption(text, hashtags string) string {
	text = strings.TrimSpace(text)
	hashtags = strings.TrimSpace(hashtags)
	if hashtags == "" {
		return text
	}
	return text + "\n\n" + hashtags
}

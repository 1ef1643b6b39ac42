package dispatcher

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WEBSTUDIOCSE/AUTOGRAM-sub001/internal/client"
	"github.com/WEBSTUDIOCSE/AUTOGRAM-sub001/internal/dedup"
	"github.com/WEBSTUDIOCSE/AUTOGRAM-sub001/internal/model"
	"github.com/WEBSTUDIOCSE/AUTOGRAM-sub001/internal/outcome"
	"github.com/WEBSTUDIOCSE/AUTOGRAM-sub001/internal/pipeline"
	"github.com/WEBSTUDIOCSE/AUTOGRAM-sub001/internal/registry"
)

type uniqueGenerator struct{ n atomic.Int32 }

func (g *uniqueGenerator) Generate(_ context.Context, req *client.GenerateRequest) (*model.GeneratedContent, error) {
	n := g.n.Add(1)
	text := fmt.Sprintf("entry %d for %s alpha%d beta%d", n, req.ModuleID, n, n)
	return &model.GeneratedContent{Text: text, VisualPrompt: "visual " + text}, nil
}

type slowRenderer struct{ delay time.Duration }

func (r slowRenderer) Render(ctx context.Context, _ string, ct model.ContentType) (*client.Media, error) {
	select {
	case <-time.After(r.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &client.Media{URL: "https://render/x.png", MimeType: "image/png", Kind: ct}, nil
}

// failingPublisher rejects every publish for the given account refs
type failingPublisher struct{ fail map[string]bool }

func (p failingPublisher) Publish(_ context.Context, _ string, req *client.PublishRequest) (string, error) {
	if p.fail[req.AccountRef] {
		return "", fmt.Errorf("publish endpoint error (status 500)")
	}
	return "post-" + req.AccountRef, nil
}

func newPipelineDispatcher(t *testing.T, renderDelay time.Duration, pub client.Publisher, mods ...registry.ContentModule) (*Dispatcher, *outcome.MemoryStore) {
	t.Helper()
	store := outcome.NewMemoryStore()
	runLog := outcome.NewLogger(store, zerolog.Nop())
	exec := pipeline.NewExecutor(pipeline.Options{
		Generator:    &uniqueGenerator{},
		Renderer:     slowRenderer{delay: renderDelay},
		MediaStore:   client.PassthroughStore{},
		Publisher:    pub,
		Dedup:        dedup.NewEngine(runLog, 50, 0.7, zerolog.Nop()),
		Log:          runLog,
		StageTimeout: 2 * time.Second,
		Logger:       zerolog.Nop(),
	})
	d, _ := newDispatcher(t, exec, mods...)
	return d, store
}

func accountItems(moduleID string, n int) []model.ScheduledItem {
	out := items(moduleID, n)
	for i := range out {
		out[i].AccountRef = fmt.Sprintf("acct-%d", i)
		out[i].ContentType = model.ContentTypeImage
	}
	return out
}

func TestRun_WithExecutor_OneEntryPerItem(t *testing.T) {
	const n = 8
	pub := failingPublisher{fail: map[string]bool{"acct-2": true, "acct-5": true}}
	d, store := newPipelineDispatcher(t, 0, pub, &stubModule{id: "q", items: accountItems("q", n)})

	run := d.Run(context.Background())

	assert.Equal(t, n, run.TotalScheduled)
	assert.Equal(t, n-2, run.TotalSuccessful)
	assert.Equal(t, 2, run.TotalFailed)
	assert.Zero(t, run.TotalAbandoned)
	assert.Equal(t, n, store.Len())

	entries, err := store.Between(context.Background(), run.StartTime.Add(-time.Minute), time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, entries, n)
	var published, failed int
	for _, e := range entries {
		assert.Equal(t, run.RunID, e.RunID)
		switch e.Status {
		case model.RunStatusPublished:
			published++
		case model.RunStatusFailed:
			failed++
			assert.Equal(t, model.StagePublish, e.FailedStage)
			assert.NotEmpty(t, e.MediaURL)
		}
	}
	assert.Equal(t, run.TotalSuccessful, published)
	assert.Equal(t, run.TotalFailed, failed)
}

func TestRun_WithExecutor_DeadlineDoesNotCancelItems(t *testing.T) {
	d, store := newPipelineDispatcher(t, 300*time.Millisecond, failingPublisher{}, &stubModule{id: "q", items: accountItems("q", 1)})
	d.runTimeout = 50 * time.Millisecond

	run := d.Run(context.Background())

	assert.Equal(t, 1, run.TotalScheduled)
	assert.Equal(t, 1, run.TotalAbandoned)
	assert.Zero(t, run.TotalFailed)

	// the abandoned item completes after the tick returns
	var entry model.RunLogEntry
	require.Eventually(t, func() bool {
		entries, err := store.Between(context.Background(), run.StartTime.Add(-time.Minute), time.Now().Add(time.Minute))
		if err != nil || len(entries) != 1 || !entries[0].Status.IsTerminal() {
			return false
		}
		entry = entries[0]
		return true
	}, 3*time.Second, 20*time.Millisecond)
	assert.Equal(t, model.RunStatusPublished, entry.Status)
	assert.Empty(t, entry.FailedStage)
}

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/WEBSTUDIOCSE/AUTOGRAM-sub001/internal/model"
)

func TestMetrics_Record(t *testing.T) {
	m := New()

	m.ObserveStage("quotes", model.StageRender, time.Second, nil)
	m.ObserveStage("quotes", model.StagePublish, time.Second, errors.New("down"))
	m.ObserveItem("quotes", model.RunStatusFailed)
	m.ObserveItem("quotes", model.RunStatusPublished)
	m.ObserveItem("quotes", model.RunStatusPublished)

	start := time.Now()
	m.RunCompleted(&model.PipelineRun{
		StartTime: start, EndTime: start.Add(3 * time.Second),
		TotalScheduled: 4, TotalSuccessful: 3, TotalFailed: 0, TotalAbandoned: 1,
		ModuleErrors: []model.ModuleError{{ModuleID: "reels", Error: "x"}},
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.stageFailures.WithLabelValues("quotes", "publish")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.items.WithLabelValues("quotes", "PUBLISHED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.abandoned))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.moduleErrors.WithLabelValues("reels")))
	assert.Equal(t, 0.75, testutil.ToFloat64(m.lastRunSuccess))
}

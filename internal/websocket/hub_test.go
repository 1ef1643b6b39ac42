package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WEBSTUDIOCSE/AUTOGRAM-sub001/internal/model"
)

func recv(t *testing.T, ch <-chan []byte) map[string]interface{} {
	t.Helper()
	select {
	case data := <-ch:
		var out map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &out))
		return out
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
		return nil
	}
}

func TestHub_RoutesByRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := NewHub(zerolog.Nop())
	go h.Run(ctx)

	all := &Client{RunID: AllRuns, Send: make(chan []byte, 8)}
	one := &Client{RunID: "run-1", Send: make(chan []byte, 8)}
	other := &Client{RunID: "run-2", Send: make(chan []byte, 8)}
	h.Register(all)
	h.Register(one)
	h.Register(other)

	h.NotifyStage("run-1", model.RunLogEntry{ID: "e1", Status: model.RunStatusMediaUploaded})

	msg := recv(t, one.Send)
	assert.Equal(t, model.WSMessageTypeStage, msg["type"])
	assert.Equal(t, "run-1", msg["runId"])
	assert.Equal(t, "MEDIA_UPLOADED", msg["entry"].(map[string]interface{})["status"])
	assert.Equal(t, "run-1", recv(t, all.Send)["runId"])

	h.RunCompleted(&model.PipelineRun{RunID: "run-2", TotalScheduled: 2, TotalSuccessful: 1})
	summary := recv(t, other.Send)
	assert.Equal(t, model.WSMessageTypeSummary, summary["type"])
	assert.Equal(t, 0.5, summary["successRate"])

	select {
	case <-one.Send:
		t.Fatal("run-1 subscriber received run-2 message")
	default:
	}
}

func TestHub_PingAfterClientDropped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := NewHub(zerolog.Nop())
	go h.Run(ctx)

	slow := &Client{RunID: "run-1", Send: make(chan []byte, 1)}
	h.Register(slow)

	// the second message overflows the queue and the hub drops the client
	h.NotifyStage("run-1", model.RunLogEntry{ID: "e1"})
	h.NotifyStage("run-1", model.RunLogEntry{ID: "e2"})
	require.Eventually(t, func() bool {
		h.mu.RLock()
		defer h.mu.RUnlock()
		return len(h.clients["run-1"]) == 0
	}, 2*time.Second, 10*time.Millisecond)

	assert.NotPanics(t, func() {
		h.handleMessage(slow, []byte(`{"type":"ping"}`))
	})
	assert.NotPanics(t, func() { h.Unregister(slow) })
}

func TestHub_PingAnsweredWithPong(t *testing.T) {
	h := NewHub(zerolog.Nop())
	c := &Client{RunID: AllRuns, Send: make(chan []byte, 1)}

	h.handleMessage(c, []byte(`{"type":"ping"}`))
	assert.Equal(t, model.WSMessageTypePong, recv(t, c.Send)["type"])

	h.handleMessage(c, []byte(`not json`))
	assert.Empty(t, c.Send)
}

func TestHub_RegistrationAfterStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := NewHub(zerolog.Nop())
	stopped := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(stopped)
	}()

	live := &Client{RunID: "run-1", Send: make(chan []byte, 1)}
	h.Register(live)
	cancel()
	<-stopped

	returned := make(chan struct{})
	go func() {
		h.Unregister(live)
		h.Register(&Client{RunID: "run-2", Send: make(chan []byte, 1)})
		close(returned)
	}()
	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("registration blocked after the hub stopped")
	}

	// the stopping hub closed the live client's queue
	_, ok := <-live.Send
	assert.False(t, ok)
}

package outcome

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WEBSTUDIOCSE/AUTOGRAM-sub001/internal/model"
)

// TestRedisStore needs a local Redis; it is skipped otherwise
func TestRedisStore(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 15})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not reachable: %v", err)
	}
	defer client.Close()

	// isolate the run on a fresh DB index
	if err := client.FlushDB(context.Background()).Err(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	t.Cleanup(func() { client.FlushDB(context.Background()) })

	exerciseStore(t, NewRedisStore(client))

	t.Run("update indexes an entry whose first write was not", func(t *testing.T) {
		ctx := context.Background()
		store := NewRedisStore(client)
		scope := model.Scope{UserID: "u9", AccountRef: "acct-orphan"}
		at := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
		e := entry("orphan", "run-9", scope, model.RunStatusPending, "", at)

		// the entry body exists but neither index knows it
		data, err := json.Marshal(e)
		require.NoError(t, err)
		require.NoError(t, client.Set(ctx, entryKey(e.ID), data, 0).Err())

		e.Status = model.RunStatusPublished
		e.GeneratedText = "orphan text"
		require.NoError(t, store.Save(ctx, e))
		require.NoError(t, store.Save(ctx, e))

		recent, err := store.Recent(ctx, scope, 10)
		require.NoError(t, err)
		require.Len(t, recent, 1)
		assert.Equal(t, model.RunStatusPublished, recent[0].Status)

		between, err := store.Between(ctx, at.Add(-time.Minute), at.Add(time.Minute))
		require.NoError(t, err)
		require.Len(t, between, 1)
		assert.Equal(t, "orphan", between[0].ID)
	})
}

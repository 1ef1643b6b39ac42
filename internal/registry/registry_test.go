package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WEBSTUDIOCSE/AUTOGRAM-sub001/internal/model"
)

type stubModule struct{ id string }

func (s stubModule) ID() string            { return s.id }
func (s stubModule) Name() string          { return "stub " + s.id }
func (s stubModule) PublishTarget() string { return "http://publish/" + s.id }
func (s stubModule) FindDueItems(context.Context, string) ([]model.ScheduledItem, error) {
	return nil, nil
}

func TestRegistry_OrderAndLookup(t *testing.T) {
	r, err := New(stubModule{"quotes"}, stubModule{"reels"})
	require.NoError(t, err)
	require.NoError(t, r.Register(stubModule{"characters"}))

	var ids []string
	for _, m := range r.List() {
		ids = append(ids, m.ID())
	}
	assert.Equal(t, []string{"quotes", "reels", "characters"}, ids)

	m, ok := r.Get("reels")
	require.True(t, ok)
	assert.Equal(t, "http://publish/reels", m.PublishTarget())

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestRegistry_RejectsDuplicateID(t *testing.T) {
	r, err := New(stubModule{"quotes"})
	require.NoError(t, err)
	assert.ErrorIs(t, r.Register(stubModule{"quotes"}), ErrDuplicateModule)
	assert.Len(t, r.List(), 1)
}

func TestRegistry_ListIsACopy(t *testing.T) {
	r, _ := New(stubModule{"a"})
	list := r.List()
	list[0] = stubModule{"tampered"}
	assert.Equal(t, "a", r.List()[0].ID())
}

package generator

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanshika/purchasewatch/backend/internal/domain"
	"github.com/vanshika/purchasewatch/backend/internal/events"
)

func smallConfig() Config {
	return Config{
		NumUsers:        20,
		NumBatchEvents:  400,
		NumStreamEvents: 100,
		Degree:          2,
		Window:          10,
		FriendshipShare: 0.4,
		UnfriendChance:  0.3,
		SpikeChance:     0.05,
		Seed:            7,
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	first, err := New(smallConfig()).Generate(context.Background())
	require.NoError(t, err)
	second, err := New(smallConfig()).Generate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first.Batch, 401)
	assert.Len(t, first.Stream, 100)
}

func TestGenerate_LinesDecode(t *testing.T) {
	ds, err := New(smallConfig()).Generate(context.Background())
	require.NoError(t, err)

	cfg, err := events.Decode([]byte(ds.Batch[0]))
	require.NoError(t, err)
	assert.Equal(t, domain.EventConfig, cfg.Kind)
	assert.Equal(t, 2, cfg.Degree)
	assert.Equal(t, 10, cfg.Window)

	friends := make(map[domain.Friendship]bool)
	kinds := make(map[domain.EventKind]int)
	for _, line := range append(ds.Batch[1:], ds.Stream...) {
		ev, err := events.Decode([]byte(line))
		require.NoError(t, err, line)
		kinds[ev.Kind]++

		switch ev.Kind {
		case domain.EventPurchase:
			assert.Positive(t, ev.Amount)
			assert.LessOrEqual(t, uint64(ev.UserID), uint64(20))
		case domain.EventBefriend:
			assert.NotEqual(t, ev.UserID, ev.OtherID)
			friends[domain.NewFriendship(ev.UserID, ev.OtherID)] = true
		case domain.EventUnfriend:
			edge := domain.NewFriendship(ev.UserID, ev.OtherID)
			assert.True(t, friends[edge], "unfriend of unknown edge %v", edge)
			delete(friends, edge)
		default:
			t.Fatalf("unexpected event kind %v in %s", ev.Kind, line)
		}
	}
	assert.Positive(t, kinds[domain.EventPurchase])
	assert.Positive(t, kinds[domain.EventBefriend])
	assert.Positive(t, kinds[domain.EventUnfriend])
}

func TestGenerate_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(smallConfig()).Generate(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestNew_AppliesDefaults(t *testing.T) {
	cfg := New(Config{Seed: 1}).Config()
	def := DefaultConfig()
	assert.Equal(t, def.NumUsers, cfg.NumUsers)
	assert.Equal(t, def.Degree, cfg.Degree)
	assert.Equal(t, def.Window, cfg.Window)
	assert.Equal(t, int64(1), cfg.Seed)
}

func TestWriteFeeds(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "feeds")
	ds := Dataset{
		Batch:  []string{`{"D":"1","T":"2"}`, `{"event_type":"befriend","id1":"1","id2":"2"}`},
		Stream: []string{`{"event_type":"purchase","id":"1","amount":"3.00"}`},
	}
	require.NoError(t, WriteFeeds(ds, dir))

	batch, err := os.ReadFile(filepath.Join(dir, BatchFile))
	require.NoError(t, err)
	assert.Equal(t, strings.Join(ds.Batch, "\n")+"\n", string(batch))

	stream, err := os.ReadFile(filepath.Join(dir, StreamFile))
	require.NoError(t, err)
	assert.Equal(t, ds.Stream[0]+"\n", string(stream))
}

package services

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/companion/domain"
	"github.com/fastygo/companion/internal/infrastructure/boltdb"
	"github.com/fastygo/companion/internal/infrastructure/buffer"
)

type fakeHealth struct {
	online atomic.Bool
}

func (f *fakeHealth) IsOnline() bool { return f.online.Load() }

func newProcessor(t *testing.T, health ConnectionHealth, cfg ProcessorConfig) (*BufferProcessor, *buffer.Store) {
	t.Helper()
	db, err := boltdb.Open(filepath.Join(t.TempDir(), "outbox.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := buffer.New(db, "")
	require.NoError(t, err)
	return NewBufferProcessor(store, health, nil, cfg), store
}

func TestBufferBridge_Defer(t *testing.T) {
	bp, store := newProcessor(t, nil, ProcessorConfig{})
	bridge := NewBufferBridge(bp)

	require.NoError(t, bridge.Defer(context.Background(), "assessment", "u-1", json.RawMessage(`{"answers":{"q1":2}}`)))
	assert.ErrorIs(t, bridge.Defer(context.Background(), "", "u-1", json.RawMessage(`{}`)), domain.ErrInvalidPayload)
	assert.ErrorIs(t, bridge.Defer(context.Background(), "assessment", "u-1", nil), domain.ErrInvalidPayload)

	items, err := store.GetBatch(10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "u-1", items[0].UserID)
	assert.Equal(t, "assessment", items[0].Operation)
}

func TestDrain_SkipsWhileOffline(t *testing.T) {
	health := &fakeHealth{}
	bp, store := newProcessor(t, health, ProcessorConfig{})
	var calls atomic.Int32
	bp.Handle("assessment", func(context.Context, json.RawMessage) error {
		calls.Add(1)
		return nil
	})
	require.NoError(t, store.Enqueue(buffer.Item{Operation: "assessment", Data: json.RawMessage(`{}`)}))

	require.NoError(t, bp.Drain(context.Background()))
	assert.Zero(t, calls.Load())

	health.online.Store(true)
	require.NoError(t, bp.Drain(context.Background()))
	assert.Equal(t, int32(1), calls.Load())

	size, err := bp.Size()
	require.NoError(t, err)
	assert.Zero(t, size)
}

func TestDrain_RetryPolicy(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKept bool
	}{
		{name: "no response is retried", err: domain.NoResponseError(errors.New("timeout")), wantKept: true},
		{name: "5xx is retried", err: domain.ServerError(503, ""), wantKept: true},
		{name: "429 is retried", err: domain.ServerError(429, "slow down"), wantKept: true},
		{name: "4xx is dropped", err: domain.ServerError(400, "bad answers"), wantKept: false},
		{name: "plain error is dropped", err: errors.New("decode"), wantKept: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bp, store := newProcessor(t, nil, ProcessorConfig{MaxRetries: 3})
			bp.Handle("assessment", func(context.Context, json.RawMessage) error { return tt.err })
			require.NoError(t, store.Enqueue(buffer.Item{Operation: "assessment", Data: json.RawMessage(`{}`)}))

			require.NoError(t, bp.Drain(context.Background()))

			items, err := store.GetBatch(10)
			require.NoError(t, err)
			if !tt.wantKept {
				assert.Empty(t, items)
				return
			}
			require.Len(t, items, 1)
			assert.Equal(t, 1, items[0].Retries)
		})
	}
}

func TestDrain_DropsAfterMaxRetries(t *testing.T) {
	bp, store := newProcessor(t, nil, ProcessorConfig{MaxRetries: 2})
	bp.Handle("assessment", func(context.Context, json.RawMessage) error {
		return domain.NoResponseError(errors.New("offline"))
	})
	require.NoError(t, store.Enqueue(buffer.Item{Operation: "assessment", Data: json.RawMessage(`{}`)}))

	require.NoError(t, bp.Drain(context.Background()))
	size, _ := store.Size()
	assert.Equal(t, 1, size)

	require.NoError(t, bp.Drain(context.Background()))
	size, _ = store.Size()
	assert.Zero(t, size)
}

func TestDrain_UnknownOperationIsDropped(t *testing.T) {
	bp, store := newProcessor(t, nil, ProcessorConfig{})
	require.NoError(t, store.Enqueue(buffer.Item{Operation: "mystery", Data: json.RawMessage(`{}`)}))

	require.NoError(t, bp.Drain(context.Background()))
	size, _ := store.Size()
	assert.Zero(t, size)
}

func TestDrain_DiscardsExpiredItems(t *testing.T) {
	bp, store := newProcessor(t, nil, ProcessorConfig{Retention: time.Hour})
	var calls atomic.Int32
	bp.Handle("assessment", func(context.Context, json.RawMessage) error {
		calls.Add(1)
		return nil
	})
	require.NoError(t, store.Enqueue(buffer.Item{
		Operation: "assessment",
		Data:      json.RawMessage(`{}`),
		Timestamp: time.Now().Add(-2 * time.Hour),
	}))

	require.NoError(t, bp.Drain(context.Background()))
	assert.Zero(t, calls.Load())
	size, _ := store.Size()
	assert.Zero(t, size)
}

func TestProcessor_StartStop(t *testing.T) {
	bp, _ := newProcessor(t, nil, ProcessorConfig{Interval: time.Second})
	bp.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	bp.Stop(ctx)
}

func TestDrain_HoldsItemsForAbsentOwner(t *testing.T) {
	bp, store := newProcessor(t, nil, ProcessorConfig{MaxRetries: 1})
	var calls atomic.Int32
	bp.Handle("assessment", func(context.Context, json.RawMessage) error {
		calls.Add(1)
		return domain.ErrOwnerNotSignedIn
	})
	require.NoError(t, store.Enqueue(buffer.Item{UserID: "user-A", Operation: "assessment", Data: json.RawMessage(`{}`)}))

	for i := 0; i < 3; i++ {
		require.NoError(t, bp.Drain(context.Background()))
	}
	assert.Equal(t, int32(3), calls.Load())

	items, err := store.GetBatch(10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Zero(t, items[0].Retries, "holding does not spend retries")
	assert.Equal(t, "user-A", items[0].UserID)
}

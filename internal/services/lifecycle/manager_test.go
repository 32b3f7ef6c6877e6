package lifecycle

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestManager_ShutdownReverseOrder(t *testing.T) {
	m := New(0, nil)
	var order []string
	m.Register("db", func(context.Context) error {
		order = append(order, "db")
		return nil
	})
	m.RegisterCloser("redis", closerFunc(func() error {
		order = append(order, "redis")
		return nil
	}))
	m.Register("processor", func(context.Context) error {
		order = append(order, "processor")
		return nil
	})

	require.NoError(t, m.Shutdown(context.Background()))
	assert.Equal(t, []string{"processor", "redis", "db"}, order)

	require.NoError(t, m.Shutdown(context.Background()))
	assert.Len(t, order, 3, "hooks run once")
}

func TestManager_ShutdownJoinsErrors(t *testing.T) {
	m := New(0, nil)
	errA := errors.New("a")
	errB := errors.New("b")
	ran := false
	m.Register("a", func(context.Context) error { return errA })
	m.Register("ok", func(context.Context) error {
		ran = true
		return nil
	})
	m.Register("b", func(context.Context) error { return errB })

	err := m.Shutdown(context.Background())
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
	assert.True(t, ran)
}

func TestManager_ShutdownHasDeadline(t *testing.T) {
	m := New(0, nil)
	m.Register("check", func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		assert.True(t, ok)
		return nil
	})
	require.NoError(t, m.Shutdown(context.Background()))
}

func TestManager_SignalContextFollowsParent(t *testing.T) {
	m := New(0, nil)
	parent, cancel := context.WithCancel(context.Background())
	ctx, stop := m.SignalContext(parent)
	defer stop()

	cancel()
	<-ctx.Done()
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}

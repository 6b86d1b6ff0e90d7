package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/fulfillment-backend/pkg/logger"
)

type stubConsumer struct {
	runFn func(context.Context) error
	calls int
}

func (s *stubConsumer) Run(ctx context.Context) error {
	s.calls++
	return s.runFn(ctx)
}

func ok(context.Context) error { return nil }

func TestNewServiceValidation(t *testing.T) {
	logg := logger.New(logger.Options{Output: &bytes.Buffer{}})

	_, err := NewService(ServiceParams{Consumer: &stubConsumer{}})
	assert.Error(t, err)
	_, err = NewService(ServiceParams{Logger: logg})
	assert.Error(t, err)
	_, err = NewService(ServiceParams{Logger: logg, Consumer: &stubConsumer{}, Dependencies: []dependency{{name: "redis"}}})
	assert.EqualError(t, err, "redis client is required")
}

func TestRunStopsAtFirstUnreachableDependency(t *testing.T) {
	buf := &bytes.Buffer{}
	down := errors.New("connection refused")
	var pinged []string
	ping := func(name string, err error) dependency {
		return dependency{name: name, ping: func(context.Context) error {
			pinged = append(pinged, name)
			return err
		}}
	}
	cons := &stubConsumer{runFn: ok}

	svc, err := NewService(ServiceParams{
		Logger:       logger.New(logger.Options{Output: buf}),
		Dependencies: []dependency{ping("database", nil), ping("redis", down), ping("pubsub", nil)},
		Consumer:     cons,
	})
	require.NoError(t, err)

	err = svc.Run(context.Background())
	require.ErrorIs(t, err, down)
	assert.Equal(t, []string{"database", "redis"}, pinged)
	assert.Zero(t, cons.calls)
	assert.Contains(t, buf.String(), `"dependency":"redis"`)
}

func TestRunReturnsConsumerResult(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cons := &stubConsumer{runFn: func(ctx context.Context) error {
		cancel()
		<-ctx.Done()
		return ctx.Err()
	}}
	svc, err := NewService(ServiceParams{
		Logger:       logger.New(logger.Options{Output: &bytes.Buffer{}}),
		Dependencies: []dependency{{name: "database", ping: ok}},
		Consumer:     cons,
	})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Run(ctx), context.Canceled)
	assert.Equal(t, 1, cons.calls)
}

package besteffort

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/fulfillment-backend/pkg/logger"
)

func TestRunReturnsError(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Output: &buf})

	res := Run(context.Background(), logg, "picklist.render", func(context.Context) error {
		return errors.New("render failed")
	})
	require.False(t, res.OK())
	require.False(t, res.Recovered)
	require.EqualError(t, res.Err, "render failed")
	require.Contains(t, buf.String(), "picklist.render.failed")
}

func TestRunRecoversPanic(t *testing.T) {
	res := Run(context.Background(), nil, "notify", func(context.Context) error {
		panic("boom")
	})
	require.True(t, res.Recovered)
	require.EqualError(t, res.Err, "panic: boom")
}

func TestRunSuccess(t *testing.T) {
	called := false
	res := Run(context.Background(), nil, "noop", func(context.Context) error {
		called = true
		return nil
	})
	require.True(t, called)
	require.True(t, res.OK())
	require.Equal(t, "noop", res.Name)

	require.True(t, Run(context.Background(), nil, "nil", nil).OK())
}

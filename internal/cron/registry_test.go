package cron

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type namedJob struct {
	name string
	err  error
	runs int
}

func (j *namedJob) Name() string { return j.name }

func (j *namedJob) Run(context.Context) error {
	j.runs++
	return j.err
}

func TestRegistryKeepsOrderAndSkipsNil(t *testing.T) {
	first := &namedJob{name: "outbox-retention"}
	second := &namedJob{name: "stale-picklist-reminder"}
	registry, err := NewRegistry(first, nil)
	require.NoError(t, err)
	require.NoError(t, registry.Register(nil))
	require.NoError(t, registry.Register(second))

	jobs := registry.Jobs()
	require.Equal(t, []Job{first, second}, jobs)

	jobs[0] = nil
	require.Equal(t, first, registry.Jobs()[0])
}

func TestRegistryRejectsDuplicateAndBlankNames(t *testing.T) {
	_, err := NewRegistry(&namedJob{name: "a"}, &namedJob{name: "a"})
	require.ErrorContains(t, err, `"a" registered twice`)

	_, err = NewRegistry(&namedJob{name: "  "})
	require.Error(t, err)
}

func TestRegistryOnly(t *testing.T) {
	a, b, c := &namedJob{name: "a"}, &namedJob{name: "b"}, &namedJob{name: "c"}
	registry, err := NewRegistry(a, b, c)
	require.NoError(t, err)

	all, err := registry.Only()
	require.NoError(t, err)
	require.Len(t, all.Jobs(), 3)

	some, err := registry.Only("c", " a ")
	require.NoError(t, err)
	require.Equal(t, []Job{a, c}, some.Jobs())

	_, err = registry.Only("a", "nope")
	require.ErrorContains(t, err, `unknown cron job "nope"`)
}

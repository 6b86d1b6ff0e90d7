package cron

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

// Job is one unit of periodic work. Name doubles as the metric label and the
// key used to enable jobs from config, so it must be unique.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type Registry struct {
	jobs []Job
}

// NewRegistry registers jobs in order. Nil jobs are ignored.
func NewRegistry(jobs ...Job) (*Registry, error) {
	r := &Registry{}
	for _, job := range jobs {
		if err := r.Register(job); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Register(job Job) error {
	if job == nil {
		return nil
	}
	name := strings.TrimSpace(job.Name())
	if name == "" {
		return fmt.Errorf("cron job %T has no name", job)
	}
	if r.lookup(name) != nil {
		return fmt.Errorf("cron job %q registered twice", name)
	}
	r.jobs = append(r.jobs, job)
	return nil
}

// Jobs returns a copy in registration order.
func (r *Registry) Jobs() []Job {
	return slices.Clone(r.jobs)
}

// Only narrows the registry to the named jobs, keeping registration order.
// No names means every job. Unknown names are an error so a typo in config
// does not silently disable a job.
func (r *Registry) Only(names ...string) (*Registry, error) {
	if len(names) == 0 {
		return r, nil
	}
	keep := make(map[string]bool, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if r.lookup(name) == nil {
			return nil, fmt.Errorf("unknown cron job %q", name)
		}
		keep[name] = true
	}
	out := &Registry{}
	for _, job := range r.jobs {
		if keep[job.Name()] {
			out.jobs = append(out.jobs, job)
		}
	}
	return out, nil
}

func (r *Registry) lookup(name string) Job {
	for _, job := range r.jobs {
		if job.Name() == name {
			return job
		}
	}
	return nil
}

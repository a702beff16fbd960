package cron

import "context"

// Job is a task the cron worker runs on every cycle.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry tracks registered cron jobs in registration order.
type Registry struct {
	jobs []Job
	seen map[string]struct{}
}

func NewRegistry(jobs ...Job) *Registry {
	registry := &Registry{seen: map[string]struct{}{}}
	for _, job := range jobs {
		registry.Register(job)
	}
	return registry
}

// Register adds a job. Nil jobs and repeated names are ignored, since a name is also the lock key.
func (r *Registry) Register(job Job) {
	if job == nil {
		return
	}
	if r.seen == nil {
		r.seen = map[string]struct{}{}
	}
	if _, dup := r.seen[job.Name()]; dup {
		return
	}
	r.seen[job.Name()] = struct{}{}
	r.jobs = append(r.jobs, job)
}

// Jobs returns a copy of the registered jobs.
func (r *Registry) Jobs() []Job {
	jobs := make([]Job, len(r.jobs))
	copy(jobs, r.jobs)
	return jobs
}

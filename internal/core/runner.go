package core

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"gateci/internal/cache"
	"gateci/internal/event"
	"gateci/internal/storage"
)

// RunConfig is everything a job invocation needs, passed in explicitly.
// The backtrace setting in particular is configuration, not ambient
// process state.
type RunConfig struct {
	Tool               string   // check tool binary
	DefaultToolchain   string   // used when a job names no toolchain
	ToolchainEnv       string   // env var that selects the toolchain
	ToolchainInstaller []string // command prefix, toolchain name appended; empty skips install
	BacktraceEnv       string   // env var for backtrace verbosity
	Backtrace          string   // its value, visible to every job
	Workdir            string   // source snapshot directory
	LockFile           string   // dependency lock file, relative to Workdir
	CacheScope         string   // cache key prefix
	CacheTarget        string   // directory under Workdir covered by the cache
	Environments       []string // environment matrix
}

// DefaultRunConfig returns the stock single-environment configuration.
func DefaultRunConfig(workdir string) RunConfig {
	return RunConfig{
		Tool:             "cargo",
		DefaultToolchain: "stable",
		ToolchainEnv:     "RUSTUP_TOOLCHAIN",
		BacktraceEnv:     "RUST_BACKTRACE",
		Backtrace:        "full",
		Workdir:          workdir,
		LockFile:         "Cargo.lock",
		CacheScope:       "deps",
		CacheTarget:      "target",
		Environments:     []string{"ubuntu-latest"},
	}
}

// Runner fans out the job set for one execution. Jobs run in parallel
// and are never aborted by a sibling's failure: the execution result is
// the AND of all job results.
type Runner struct {
	cfg      RunConfig
	jobs     []Job
	executor *Executor
	cache    *cache.Cache
	logs     *storage.LogStorage
}

func NewRunner(cfg RunConfig, jobs []Job, c *cache.Cache, logs *storage.LogStorage) *Runner {
	return &Runner{
		cfg:      cfg,
		jobs:     jobs,
		executor: NewExecutor(cfg.Workdir),
		cache:    c,
		logs:     logs,
	}
}

// Run executes every job of the set against every environment of the
// matrix and returns the aggregate summary. It returns an error only
// when the execution as a whole could not run (cancellation); job
// failures are reported through the summary instead.
func (r *Runner) Run(ctx context.Context, executionID string, ev *event.Event) (*Summary, error) {
	envs := r.cfg.Environments
	if len(envs) == 0 {
		envs = []string{"default"}
	}

	key, hit := r.restoreCache()
	fmt.Printf("Execution %s: running %d jobs for %s\n", executionID, len(envs)*len(r.jobs), ev.Source())

	results := make([]JobResult, len(envs)*len(r.jobs))
	g, gctx := errgroup.WithContext(ctx)
	i := 0
	for _, environment := range envs {
		for _, job := range r.jobs {
			idx, environment, job := i, environment, job
			// job funcs always return nil so a failed check
			// never cancels its siblings
			g.Go(func() error {
				results[idx] = r.runJob(gctx, executionID, environment, job, hit)
				return nil
			})
			i++
		}
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		// superseded: partial results are discarded
		return nil, ctx.Err()
	}

	summary := &Summary{Results: results}
	if key != "" {
		r.saveCache(key)
	}
	return summary, nil
}

// restoreCache is read-through: any failure degrades to a cold run.
func (r *Runner) restoreCache() (key string, hit bool) {
	if r.cache == nil || r.cfg.LockFile == "" {
		return "", false
	}
	key, err := r.cache.Key(r.cfg.CacheScope, filepath.Join(r.cfg.Workdir, r.cfg.LockFile))
	if err != nil {
		fmt.Printf("WARN: cannot derive cache key: %v\n", err)
		return "", false
	}
	err = r.cache.Restore(key, filepath.Join(r.cfg.Workdir, r.cfg.CacheTarget))
	switch {
	case err == cache.ErrMiss:
		return key, false
	case err != nil:
		fmt.Printf("WARN: cache restore failed, running cold: %v\n", err)
		return key, false
	}
	return key, true
}

func (r *Runner) saveCache(key string) {
	target := filepath.Join(r.cfg.Workdir, r.cfg.CacheTarget)
	if err := r.cache.Save(key, target); err != nil {
		fmt.Printf("WARN: cache save failed: %v\n", err)
	}
}

func (r *Runner) runJob(ctx context.Context, executionID, environment string, job Job, cacheHit bool) JobResult {
	start := time.Now()
	res := JobResult{
		Job:         job.Name,
		Environment: environment,
		CacheHit:    cacheHit,
	}

	toolchain := job.Toolchain
	if toolchain == "" {
		toolchain = r.cfg.DefaultToolchain
	}

	// toolchain install failure is fatal for this job only
	if len(r.cfg.ToolchainInstaller) > 0 {
		name := r.cfg.ToolchainInstaller[0]
		args := append(append([]string{}, r.cfg.ToolchainInstaller[1:]...), toolchain)
		output, err := r.executor.RunCommand(ctx, nil, name, args...)
		if err != nil {
			fmt.Printf("Job %s: toolchain install failed: %v\n", job.Name, err)
			res.Status = JobFailed
			res.Failure = FailureToolchain
			res.LogPath = r.saveLog(executionID, job.Name, output)
			res.DurationMS = time.Since(start).Milliseconds()
			return res
		}
	}

	env := []string{
		r.cfg.BacktraceEnv + "=" + r.cfg.Backtrace,
		r.cfg.ToolchainEnv + "=" + toolchain,
	}
	args := append([]string{job.Command}, job.Args...)
	output, err := r.executor.RunCommand(ctx, env, r.cfg.Tool, args...)

	res.LogPath = r.saveLog(executionID, job.Name, output)
	res.DurationMS = time.Since(start).Milliseconds()

	if err != nil {
		res.Status = JobFailed
		res.Failure = FailureCheck
		fmt.Printf("Job %s failed: %v\n", job.Name, err)
	} else {
		res.Status = JobSucceeded
	}
	return res
}

// saveLog is best effort; a missing log never fails a job.
func (r *Runner) saveLog(executionID, job, output string) string {
	if r.logs == nil {
		return ""
	}
	path, err := r.logs.SaveJobLog(executionID, job, output)
	if err != nil {
		fmt.Printf("WARN: cannot save log for %s: %v\n", job, err)
		return ""
	}
	return path
}

package core

// Job is one independent check inside an execution. Jobs share the
// source snapshot and the dependency cache and nothing else.
type Job struct {
	Name      string   `yaml:"name"`                // e.g. "clippy-check"
	Command   string   `yaml:"command"`             // tool subcommand, e.g. "clippy"
	Args      []string `yaml:"args"`                // subcommand arguments
	Toolchain string   `yaml:"toolchain,omitempty"` // empty means the default toolchain
	Profile   string   `yaml:"profile,omitempty"`
}

// DefaultJobs is the stock check set: lint, format check, unit tests.
func DefaultJobs() []Job {
	return []Job{
		{
			Name:    "clippy-check",
			Command: "clippy",
			Args:    []string{"--all-features", "--tests", "--", "-D", "warnings"},
		},
		{
			Name:      "format-check",
			Command:   "fmt",
			Args:      []string{"--", "--check"},
			Toolchain: "stable",
			Profile:   "default",
		},
		{
			Name:    "unit-test",
			Command: "test",
			Args:    []string{"--all-features"},
		},
	}
}

// JobStatus is the terminal status of one job run.
type JobStatus string

const (
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// Failure kinds for failed jobs. A check failure means the code is
// broken; a toolchain failure means the job never got to run its check.
const (
	FailureToolchain = "toolchain_install"
	FailureCheck     = "check_command"
)

// JobResult is the outcome of one job in one environment.
type JobResult struct {
	Job         string
	Environment string
	Status      JobStatus
	Failure     string // empty unless Status == JobFailed
	LogPath     string
	CacheHit    bool
	DurationMS  int64
}

// Summary aggregates all job results of one execution.
type Summary struct {
	Results []JobResult
}

// Failed reports whether any job failed. The execution result is the
// logical AND of its job results.
func (s *Summary) Failed() bool {
	for _, r := range s.Results {
		if r.Status != JobSucceeded {
			return true
		}
	}
	return false
}

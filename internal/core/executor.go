package core

import (
	"bytes"
	"context"
	"os"
	"os/exec"
)

// Executor runs check commands in the source snapshot directory.
type Executor struct {
	Dir string
}

func NewExecutor(dir string) *Executor {
	return &Executor{Dir: dir}
}

// RunCommand executes a single command and returns its combined
// output and error. The context cancels the process (cooperative
// cancellation: partial output is returned but the caller discards it).
func (e *Executor) RunCommand(ctx context.Context, env []string, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = e.Dir
	cmd.Env = append(os.Environ(), env...)

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	return out.String(), err
}

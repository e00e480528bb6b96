package installer

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
)

// CommandRunner abstracts host command execution.
type CommandRunner interface {
	// Run executes the command and returns an error on non-zero exit.
	Run(ctx context.Context, name string, args ...string) error
	// Output executes the command and returns its combined output.
	Output(ctx context.Context, name string, args ...string) (string, error)
}

// ExecRunner executes commands on the host via os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (ExecRunner) Output(ctx context.Context, name string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return string(out), nil
}

// DryRunner records commands instead of executing them. Every command
// succeeds with empty output.
type DryRunner struct {
	mu       sync.Mutex
	Commands []string
}

func (r *DryRunner) record(name string, args []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Commands = append(r.Commands, strings.Join(append([]string{name}, args...), " "))
}

func (r *DryRunner) Run(ctx context.Context, name string, args ...string) error {
	r.record(name, args)
	return nil
}

func (r *DryRunner) Output(ctx context.Context, name string, args ...string) (string, error) {
	r.record(name, args)
	return "", nil
}

// Recorded returns a copy of the commands seen so far.
func (r *DryRunner) Recorded() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.Commands...)
}

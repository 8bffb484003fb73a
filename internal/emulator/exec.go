package emulator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
)

// Executor runs external commands. The emulator never touches the kernel directly
// except through it, which lets tests record the command sequence.
type Executor interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
	Start(ctx context.Context, name string, args ...string) (Process, error)
}

// Process is a background command started by an Executor.
type Process interface {
	Kill() error
}

// CommandError carries the output of a failed command.
type CommandError struct {
	Cmd    string
	Output string
	Err    error
}

func (e *CommandError) Error() string {
	out := strings.TrimSpace(e.Output)
	if out == "" {
		return fmt.Sprintf("%s: %v", e.Cmd, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Cmd, e.Err, out)
}

func (e *CommandError) Unwrap() error { return e.Err }

// OSExecutor runs commands with os/exec.
type OSExecutor struct{}

// Run executes the command and returns its combined output.
func (OSExecutor) Run(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), &CommandError{Cmd: joinCmd(name, args), Output: string(out), Err: err}
	}
	return string(out), nil
}

// Start launches the command without waiting for it.
func (OSExecutor) Start(ctx context.Context, name string, args ...string) (Process, error) {
	cmd := exec.Command(name, args...)
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	if err := cmd.Start(); err != nil {
		return nil, &CommandError{Cmd: joinCmd(name, args), Err: err}
	}
	p := &osProcess{cmd: cmd, done: make(chan struct{})}
	go func() {
		p.err = cmd.Wait()
		close(p.done)
	}()
	return p, nil
}

type osProcess struct {
	cmd  *exec.Cmd
	done chan struct{}
	err  error
	once sync.Once
}

// Kill terminates the process and reaps it. Killing an exited process is not an error.
func (p *osProcess) Kill() error {
	var err error
	p.once.Do(func() {
		select {
		case <-p.done:
			return
		default:
		}
		if e := p.cmd.Process.Kill(); e != nil && !errors.Is(e, os.ErrProcessDone) {
			err = e
		}
		<-p.done
	})
	return err
}

func joinCmd(name string, args []string) string {
	return strings.Join(append([]string{name}, args...), " ")
}

// Package script implements the "script" JobTypeExecutor: a thin wrapper
// over os/exec.
package script

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/RezaEskandarii/jobcore/executor"
)

// Payload is the {command, args, cwd, env} bag a script job carries.
type Payload struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Cwd     string            `json:"cwd,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

type result struct {
	ExitCode int    `json:"exitCode"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
}

// Executor runs script jobs as a subprocess of the worker.
type Executor struct{}

func New() *Executor {
	return &Executor{}
}

func (e *Executor) Execute(ctx context.Context, raw json.RawMessage, deadline time.Time) (executor.Result, error) {
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return executor.Result{}, &executor.Error{Message: fmt.Sprintf("invalid script payload: %v", err)}
	}
	if p.Command == "" {
		return executor.Result{}, &executor.Error{Message: "script payload requires command"}
	}

	cmd := exec.CommandContext(ctx, p.Command, p.Args...)
	cmd.Dir = p.Cwd
	if len(p.Env) > 0 {
		env := cmd.Environ()
		for k, v := range p.Env {
			env = append(env, fmt.Sprintf("%s=%s", k, v))
		}
		cmd.Env = env
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	exitCode := 0
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return executor.Result{}, &executor.Error{Message: fmt.Sprintf("run command: %v", runErr)}
		}
	}

	r := result{
		ExitCode: exitCode,
		Stdout:   strings.TrimSpace(stdout.String()),
		Stderr:   strings.TrimSpace(stderr.String()),
	}
	data, err := json.Marshal(r)
	if err != nil {
		return executor.Result{}, &executor.Error{Message: fmt.Sprintf("marshal result: %v", err)}
	}

	if exitCode != 0 {
		return executor.Result{}, &executor.Error{Message: fmt.Sprintf("command exited with code %d", exitCode), Stack: r.Stderr}
	}
	return executor.Result{Data: data}, nil
}

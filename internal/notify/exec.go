package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// DefaultHookTimeout bounds one hook run.
const DefaultHookTimeout = 10 * time.Second

// MaxHookRuns caps how many hook commands run at once. Messages published
// while every slot is busy are dropped and logged.
const MaxHookRuns = 4

// HookResult holds the outcome of one hook run.
type HookResult struct {
	Command  string   `json:"command"`
	Args     []string `json:"args"`
	ExitCode int      `json:"exit_code"`
	Stdout   string   `json:"stdout"`
	Stderr   string   `json:"stderr"`
}

// Exec runs a local command for every message, writing the message JSON to
// its stdin. Kinds, when set, limits the hook to those entity kinds.
type Exec struct {
	command string
	args    []string
	kinds   map[string]bool
	timeout time.Duration

	slots chan struct{}
	wg    sync.WaitGroup
}

// NewExec creates a hook notifier. A zero timeout means DefaultHookTimeout.
func NewExec(command string, args []string, kinds []string, timeout time.Duration) *Exec {
	if timeout <= 0 {
		timeout = DefaultHookTimeout
	}
	e := &Exec{
		command: command,
		args:    args,
		timeout: timeout,
		slots:   make(chan struct{}, MaxHookRuns),
	}
	if len(kinds) > 0 {
		e.kinds = make(map[string]bool, len(kinds))
		for _, k := range kinds {
			e.kinds[k] = true
		}
	}
	return e
}

// Wants reports whether the hook runs for msg.
func (e *Exec) Wants(msg Message) bool {
	return e.kinds == nil || e.kinds[string(msg.Kind)]
}

// Publish implements Notifier. It snapshots msg and returns without waiting
// for the command; failures and non-zero exits are logged.
func (e *Exec) Publish(_ context.Context, msg Message) {
	if !e.Wants(msg) {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("notify: encode %s %s: %v", msg.Kind, msg.Action, err)
		return
	}

	select {
	case e.slots <- struct{}{}:
	default:
		log.Printf("notify: hook %s busy, dropped %s %s", e.command, msg.Kind, msg.Action)
		return
	}

	kind, action := string(msg.Kind), msg.Action
	e.wg.Add(1)
	go func() {
		defer func() {
			<-e.slots
			e.wg.Done()
		}()
		// The request that published may already be finished.
		res, err := e.run(context.Background(), data, kind, action)
		if err != nil {
			log.Printf("notify: hook %s for %s %s: %v", e.command, kind, action, err)
			return
		}
		if res.ExitCode != 0 {
			log.Printf("notify: hook %s for %s %s exited %d: %s",
				e.command, kind, action, res.ExitCode, strings.TrimSpace(res.Stderr))
		}
	}()
}

// Wait blocks until every hook started by Publish has finished.
func (e *Exec) Wait() {
	e.wg.Wait()
}

// Run executes the hook once for msg and waits for its result.
func (e *Exec) Run(ctx context.Context, msg Message) (*HookResult, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return e.run(ctx, data, string(msg.Kind), msg.Action)
}

func (e *Exec) run(ctx context.Context, data []byte, kind, action string) (*HookResult, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.command, e.args...)
	cmd.Stdin = bytes.NewReader(data)
	cmd.Env = append(cmd.Environ(),
		"NANDY_KIND="+kind,
		"NANDY_ACTION="+action,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	exitCode := 0
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("exec error: %w", err)
		}
		exitCode = exitErr.ExitCode()
	}

	return &HookResult{
		Command:  e.command,
		Args:     e.args,
		ExitCode: exitCode,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}, nil
}

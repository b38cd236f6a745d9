package virsh

import (
	"context"
	"io/fs"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// forkExhaustionMarker is the diagnostic virsh emits when the remote side
// temporarily cannot spawn processes. It is the only failure signature worth
// retrying; everything else (bad arguments, missing domain) is deterministic.
const forkExhaustionMarker = "cannot fork child process"

// minAcquireWait floors the semaphore admission window so short invocation
// timeouts do not translate into instant queue-saturation failures.
const minAcquireWait = 5 * time.Second

// Runner invokes the external hypervisor CLI against host endpoints. It
// bounds in-flight invocations per host with a counting semaphore and applies
// the endpoint's timeout and narrow retry policy to every call.
//
// A single Runner is safe for concurrent use and is meant to be shared
// process-wide; semaphores are scoped per host so load against one host
// cannot starve another.
type Runner struct {
	tool string

	mu    sync.Mutex
	slots map[string]chan struct{}
}

// NewRunner returns a Runner that invokes "virsh" from PATH.
func NewRunner() *Runner {
	return &Runner{
		tool:  "virsh",
		slots: make(map[string]chan struct{}),
	}
}

// SetTool overrides the executable used for every invocation. Tests point
// this at scripted stand-ins.
func (r *Runner) SetTool(path string) {
	r.tool = path
}

// Run executes `<tool> -c <uri> <args...>` and returns trimmed combined
// output. Failures are one of ErrToolNotInstalled, ErrTimeout,
// ErrQueueSaturated or *ProcessError.
func (r *Runner) Run(ctx context.Context, ep Endpoint, args ...string) (string, error) {
	ep = ep.WithDefaults()
	logger := zerolog.Ctx(ctx)

	sem := r.semaphore(ep)
	if err := acquire(ctx, sem, acquireWait(ep)); err != nil {
		return "", err
	}
	defer func() { <-sem }()

	attempts := ep.RetryCount + 1
	var out string
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		out, err = r.invoke(ctx, ep, args)
		if err == nil {
			return out, nil
		}
		var perr *ProcessError
		if errors.As(err, &perr) && strings.Contains(perr.Output, forkExhaustionMarker) && attempt < attempts-1 {
			logger.Warn().
				Str("host", ep.HostID).
				Int("attempt", attempt+1).
				Msg("fork exhaustion reported by tool, retrying")
			time.Sleep(ep.RetrySleep)
			continue
		}
		return "", err
	}
	return "", err
}

func (r *Runner) invoke(ctx context.Context, ep Endpoint, args []string) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, ep.Timeout)
	defer cancel()

	argv := append([]string{"-c", ep.URI}, args...)
	start := time.Now()
	cmd := exec.CommandContext(cctx, r.tool, argv...)
	out, err := cmd.CombinedOutput()
	text := strings.TrimSpace(string(out))

	zerolog.Ctx(ctx).Debug().
		Str("host", ep.HostID).
		Strs("args", args).
		Dur("took", time.Since(start)).
		Err(err).
		Msg("tool invocation finished")

	if err == nil {
		return text, nil
	}
	if errors.Is(cctx.Err(), context.DeadlineExceeded) {
		return "", errors.Errorf("%w after %s: %s", ErrTimeout, ep.Timeout, strings.Join(args, " "))
	}
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		return "", errors.Errorf("%w: %s", ErrToolNotInstalled, r.tool)
	}
	if text == "" {
		text = err.Error()
	}
	return "", &ProcessError{Output: text}
}

// semaphore returns the per-host admission semaphore, creating it lazily.
// The first endpoint seen for a host fixes the slot count.
func (r *Runner) semaphore(ep Endpoint) chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	sem, ok := r.slots[ep.HostID]
	if !ok {
		sem = make(chan struct{}, ep.MaxConcurrency)
		r.slots[ep.HostID] = sem
	}
	return sem
}

func acquireWait(ep Endpoint) time.Duration {
	wait := ep.Timeout + time.Second
	if wait < minAcquireWait {
		wait = minAcquireWait
	}
	return wait
}

func acquire(ctx context.Context, sem chan struct{}, wait time.Duration) error {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case sem <- struct{}{}:
		return nil
	case <-timer.C:
		return errors.Errorf("%w; try again", ErrQueueSaturated)
	case <-ctx.Done():
		return errors.Errorf("waiting for invocation slot: %w", ctx.Err())
	}
}

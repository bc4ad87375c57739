package engine

import (
	"errors"
	"fmt"
	"time"
)

// EvalTimeout is the default limit for a single evaluation.
const EvalTimeout = 5 * time.Second

var (
	// ErrSuperseded is returned to an Evaluate call overtaken by a newer one.
	ErrSuperseded = errors.New("engine: evaluation superseded by newer request")
	// ErrTimeout is returned when a script runs past the engine's timeout.
	ErrTimeout = errors.New("engine: evaluation timed out")
)

type evalResult struct {
	script *Script
	errors []EvalError
	err    error
}

func (e *Engine) current() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.generation
}

// wait returns the result of generation gen from ch. The evaluating
// goroutine is not stopped on timeout; ch is buffered so its late send
// never blocks.
func (e *Engine) wait(ch <-chan evalResult, gen uint64, timeout time.Duration) (*Script, []EvalError, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		if gen != e.current() {
			return nil, nil, ErrSuperseded
		}
		return res.script, res.errors, res.err
	case <-timer.C:
		return nil, nil, fmt.Errorf("%w after %s", ErrTimeout, timeout)
	}
}

// Package engine runs world scripts: a small Lisp, evaluated by zygomys in
// a sandbox, whose builtins describe shapes and the edits to make with them.
//
//	(add (sphere :center (vec3 128 128 128) :radius 50) :resource "rock")
//	(subtract (translate (box :min (vec3 0 0 0) :max (vec3 40 40 40)) :by (vec3 100 100 100))
//	          :resource "rock")
//	(subtract-all (sphere :center (vec3 0 0 0) :radius 10))
//
// Evaluation only records edits. Script.Apply performs them on a world.
package engine

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	zygo "github.com/glycerine/zygomys/zygo"
)

// EvalError is a parse or runtime error in a script.
type EvalError struct {
	Line    int
	Col     int
	Message string
}

func (e EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// Engine evaluates scripts. It is safe for concurrent use; each Evaluate
// runs in a fresh sandbox, and only the newest evaluation returns a script.
type Engine struct {
	// Timeout bounds one evaluation. Zero means EvalTimeout.
	Timeout time.Duration

	mu         sync.Mutex
	generation uint64
}

func NewEngine() *Engine {
	return &Engine{}
}

// Evaluate runs source and returns the edits it recorded.
//
//   - On success: script, nil, nil.
//   - On a parse or runtime error in source: nil, eval errors, nil.
//   - On timeout, panic or a superseded request: nil, nil, error.
func (e *Engine) Evaluate(source string) (*Script, []EvalError, error) {
	e.mu.Lock()
	e.generation++
	gen := e.generation
	timeout := e.Timeout
	e.mu.Unlock()
	if timeout <= 0 {
		timeout = EvalTimeout
	}

	ch := make(chan evalResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- evalResult{err: fmt.Errorf("engine: panic during evaluation: %v", r)}
			}
		}()
		s, evalErrs, err := evaluate(source)
		ch <- evalResult{script: s, errors: evalErrs, err: err}
	}()

	s, evalErrs, err := e.wait(ch, gen, timeout)
	if s != nil {
		s.Generation = gen
	}
	return s, evalErrs, err
}

func evaluate(source string) (*Script, []EvalError, error) {
	s := &Script{}
	if strings.TrimSpace(source) == "" {
		return s, nil, nil
	}

	// The sandbox has no filesystem or syscall builtins.
	env := zygo.NewZlispSandbox()
	defer env.Stop()
	registerBuiltins(env, s)

	if err := env.LoadString(preprocessSource(source)); err != nil {
		return nil, parseZygomysError(err), nil
	}
	if _, err := env.Run(); err != nil {
		return nil, parseZygomysError(err), nil
	}
	return s, nil, nil
}

var (
	linePattern      = regexp.MustCompile(`(?is)(?:error )?on line (\d+):\s*(.*)`)
	linePatternShort = regexp.MustCompile(`(?is)^line (\d+):\s*(.*)`)
)

// parseZygomysError extracts the line number zygomys puts in its messages.
func parseZygomysError(err error) []EvalError {
	msg := err.Error()
	for _, p := range []*regexp.Regexp{linePattern, linePatternShort} {
		if m := p.FindStringSubmatch(msg); m != nil {
			line, _ := strconv.Atoi(m[1])
			return []EvalError{{Line: line, Message: strings.TrimSpace(m[2])}}
		}
	}
	return []EvalError{{Message: strings.TrimSpace(msg)}}
}

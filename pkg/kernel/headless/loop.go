// Package headless implements kernel.Host in memory. A Loop plays the role of
// the host's main thread and the stores record every call made to the
// objects they hand out, counting calls made from any other goroutine.
package headless

import (
	"bytes"
	"context"
	"errors"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/chazu/sdfworld/pkg/kernel"
)

// ErrClosed is returned by Do after Close.
var ErrClosed = errors.New("headless: loop closed")

var _ kernel.Dispatcher = (*Loop)(nil)

type task struct {
	fn   func() error
	done chan error
}

// Loop runs submitted functions one at a time on a dedicated goroutine.
type Loop struct {
	tasks  chan task
	quit   chan struct{}
	exited chan struct{}
	id     atomic.Uint64
	once   sync.Once
}

// NewLoop starts a loop. Close stops it.
func NewLoop() *Loop {
	l := &Loop{
		tasks:  make(chan task),
		quit:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	started := make(chan struct{})
	go l.run(started)
	<-started
	return l
}

func (l *Loop) run(started chan<- struct{}) {
	defer close(l.exited)
	l.id.Store(goid())
	close(started)
	for {
		select {
		case t := <-l.tasks:
			t.done <- t.fn()
		case <-l.quit:
			return
		}
	}
}

// Do runs fn on the loop and waits for its result. Calls made on the loop
// run inline.
func (l *Loop) Do(ctx context.Context, fn func() error) error {
	if l.IsMainThread() {
		return fn()
	}
	t := task{fn: fn, done: make(chan error, 1)}
	select {
	case l.tasks <- t:
	case <-ctx.Done():
		return ctx.Err()
	case <-l.quit:
		return ErrClosed
	}
	select {
	case err := <-t.done:
		return err
	case <-l.exited:
		return ErrClosed
	}
}

func (l *Loop) IsMainThread() bool {
	return goid() == l.id.Load()
}

// Close stops the loop after the task in progress.
func (l *Loop) Close() {
	l.once.Do(func() { close(l.quit) })
	<-l.exited
}

// goid parses the current goroutine id from its stack header,
// "goroutine 42 [running]:".
func goid() uint64 {
	var buf [64]byte
	b := buf[:runtime.Stack(buf[:], false)]
	b = bytes.TrimPrefix(b, []byte("goroutine "))
	if i := bytes.IndexByte(b, ' '); i >= 0 {
		b = b[:i]
	}
	id, _ := strconv.ParseUint(string(b), 10, 64)
	return id
}

package dispatch

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
)

// TerminationSignals are the signals that stop a running session.
var TerminationSignals = []os.Signal{os.Interrupt, syscall.SIGTERM, syscall.SIGHUP}

// SignalState records the first termination signal delivered to the process.
// The only mutation is Observe; the dispatcher polls it.
type SignalState struct {
	sig  atomic.Pointer[os.Signal]
	wake chan struct{}
}

// NewSignalState returns an empty SignalState.
func NewSignalState() *SignalState {
	return &SignalState{wake: make(chan struct{}, 1)}
}

// Observe records sig if no signal was recorded yet, and wakes the dispatcher.
func (s *SignalState) Observe(sig os.Signal) {
	s.sig.CompareAndSwap(nil, &sig)
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Observed returns the recorded signal.
func (s *SignalState) Observed() (os.Signal, bool) {
	p := s.sig.Load()
	if p == nil {
		return nil, false
	}
	return *p, true
}

// Wake is readable after a signal has been observed.
func (s *SignalState) Wake() <-chan struct{} {
	return s.wake
}

// Watch routes the given signals (TerminationSignals when none are given)
// into s until ctx is done. The handler goroutine does nothing but Observe.
func (s *SignalState) Watch(ctx context.Context, sigs ...os.Signal) {
	if len(sigs) == 0 {
		sigs = TerminationSignals
	}
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sigs...)
	go func() {
		defer signal.Stop(ch)
		for {
			select {
			case sig := <-ch:
				s.Observe(sig)
			case <-ctx.Done():
				return
			}
		}
	}()
}

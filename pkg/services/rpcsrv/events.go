package rpcsrv

import (
	"errors"
	"fmt"
	"time"

	"github.com/nspcc-dev/eventbridge/pkg/neorpc"
	"github.com/nspcc-dev/eventbridge/pkg/neorpc/result"
	"github.com/nspcc-dev/eventbridge/pkg/services/notifier"
	"github.com/nspcc-dev/eventbridge/pkg/services/rpcsrv/params"
	"go.uber.org/atomic"
)

type (
	// waitHandle is a suspended waitevents call. It's completed either by the
	// session or by the request deadline, whichever comes first.
	waitHandle struct {
		done atomic.Bool
		ch   chan waitResult
	}

	waitResult struct {
		events []notifier.PendingEvent
		err    error
	}
)

func newWaitHandle() *waitHandle {
	return &waitHandle{ch: make(chan waitResult, 1)}
}

// Complete implements the notifier.WaitHandle interface.
func (h *waitHandle) Complete(events []notifier.PendingEvent, err error) bool {
	if !h.done.CompareAndSwap(false, true) {
		return false
	}
	h.ch <- waitResult{events: events, err: err}
	return true
}

// Live implements the notifier.WaitHandle interface.
func (h *waitHandle) Live() bool {
	return !h.done.Load()
}

// expire marks the handle as completed by the deadline, it returns false if
// the session was faster.
func (h *waitHandle) expire() bool {
	return h.done.CompareAndSwap(false, true)
}

// tokensFromParam parses an optional list of event tokens.
func tokensFromParam(p *params.Param) ([]string, *neorpc.Error) {
	if p == nil || p.IsNull() {
		return nil, nil
	}
	tokens, err := p.GetStrings()
	if err != nil {
		return nil, neorpc.WrapErrorWithData(neorpc.ErrInvalidParams, fmt.Sprintf("event list expected: %s", err))
	}
	return tokens, nil
}

// subscribe handles subscription requests from the caller address.
func (s *Server) subscribe(c *caller, reqParams params.Params) (any, *neorpc.Error) {
	tokens, respErr := tokensFromParam(reqParams.Value(0))
	if respErr != nil {
		return nil, respErr
	}
	var opts neorpc.SubscribeOptions
	if p := reqParams.Value(1); p != nil && !p.IsNull() {
		if err := p.GetObject(&opts); err != nil {
			return nil, neorpc.WrapErrorWithData(neorpc.ErrInvalidParams, fmt.Sprintf("bad subscription options: %s", err))
		}
	}
	err := s.notifier.Subscribe(c.address, tokens, notifier.Mode{Add: opts.Add, Replace: opts.Replace})
	if err != nil {
		return nil, notifierError(err)
	}
	return true, nil
}

// unsubscribe drops subscriptions of the caller address.
func (s *Server) unsubscribe(c *caller, reqParams params.Params) (any, *neorpc.Error) {
	tokens, respErr := tokensFromParam(reqParams.Value(0))
	if respErr != nil {
		return nil, respErr
	}
	if err := s.notifier.Unsubscribe(c.address, tokens); err != nil {
		return nil, notifierError(err)
	}
	return true, nil
}

// waitEvents returns events queued for the caller address, suspending the
// request until there are any or the timeout expires.
func (s *Server) waitEvents(c *caller, reqParams params.Params) (any, *neorpc.Error) {
	start := time.Now()
	timeout := s.notifier.DefaultWaitTimeout()
	if p := reqParams.Value(0); p != nil && !p.IsNull() {
		seconds, err := p.GetInt()
		if err != nil {
			return nil, neorpc.WrapErrorWithData(neorpc.ErrInvalidParams, fmt.Sprintf("bad timeout: %s", err))
		}
		timeout = s.notifier.WaitTimeout(seconds)
	}

	h := newWaitHandle()
	events, parked, err := s.notifier.Wait(c.address, h)
	if err != nil {
		return nil, notifierError(err)
	}
	if parked {
		events, err = s.await(c, h, timeout)
		if err != nil {
			return nil, notifierError(err)
		}
	}

	res := result.Events{
		Events: make([]result.Event, len(events)),
	}
	for i, e := range events {
		res.Events[i] = result.Event{Name: e.Name, IDs: e.IDs}
	}
	res.RequestProcessingTime = time.Since(start).Milliseconds()
	return res, nil
}

// await blocks until h is completed or expires. Expired handles are dropped
// from the session.
func (s *Server) await(c *caller, h *waitHandle, timeout time.Duration) ([]notifier.PendingEvent, error) {
	t := time.NewTimer(timeout)
	defer t.Stop()

	var cause error
	select {
	case r := <-h.ch:
		return r.events, r.err
	case <-t.C:
	case <-c.ctx.Done():
	case <-s.shutdown:
		cause = notifier.ErrShuttingDown
	}
	if !h.expire() {
		// Completed concurrently, the result is already there.
		r := <-h.ch
		return r.events, r.err
	}
	s.notifier.Forget(c.address, h)
	return nil, cause
}

// notifierError converts event delivery errors into JSON-RPC ones.
func notifierError(err error) *neorpc.Error {
	switch {
	case errors.Is(err, notifier.ErrSessionDeactivated):
		return neorpc.ErrSessionDeactivated
	case errors.Is(err, notifier.ErrTooManySessions):
		return neorpc.ErrTooManySessions
	case errors.Is(err, notifier.ErrNoSessionRegistered):
		return neorpc.ErrNoSessionRegistered
	case errors.Is(err, notifier.ErrShuttingDown):
		return neorpc.ErrShuttingDown
	case errors.Is(err, notifier.ErrMalformedEventToken),
		errors.Is(err, notifier.ErrUnknownEvent),
		errors.Is(err, notifier.ErrMutuallyExclusiveParameters):
		return neorpc.WrapErrorWithData(neorpc.ErrInvalidParams, err.Error())
	default:
		return neorpc.NewInternalServerError(err.Error())
	}
}

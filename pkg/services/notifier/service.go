/*
Package notifier implements long-poll event delivery. Clients subscribe to
events of the node (peers, blocks, transactions, ledger entries) and then
repeatedly wait for them. Every client address gets a Session holding its
subscriptions and the queue of events not yet delivered, a wait either takes
what's queued at once or is suspended until something arrives, a newer wait
supersedes it, the session is torn down or the transport deadline fires.

Events produced inside a storage transaction become visible only after the
transaction commits and are dropped if it rolls back.
*/
package notifier

import (
	"errors"
	"time"

	"github.com/nspcc-dev/eventbridge/pkg/config"
	"go.uber.org/zap"
)

// Mode selects how Subscribe treats an existing session.
type Mode struct {
	// Add extends the existing session.
	Add bool
	// Replace creates a new session superseding the existing one, it's the
	// default.
	Replace bool
}

// Service is the subscribe/unsubscribe/wait surface over a Registry.
type Service struct {
	reg *Registry
	cfg config.Notifier
	log *zap.Logger
}

// NewService creates a Service over the registry.
func NewService(reg *Registry, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		reg: reg,
		cfg: reg.cfg,
		log: log,
	}
}

// Registry returns the underlying session registry.
func (s *Service) Registry() *Registry {
	return s.reg
}

// Subscribe registers the address for the events named by tokens, an empty
// list means all events.
func (s *Service) Subscribe(addr string, tokens []string, mode Mode) error {
	if mode.Add && mode.Replace {
		return ErrMutuallyExclusiveParameters
	}
	regs, err := ParseRegistrations(tokens)
	if err != nil {
		return err
	}
	if !mode.Add {
		sess, err := s.reg.Replace(addr)
		if err != nil {
			return err
		}
		return sess.subscribe(regs)
	}
	// The session may be deactivated concurrently between the lookup and
	// subscription, GetOrCreate replaces deactivated sessions.
	for range 2 {
		sess, err := s.reg.GetOrCreate(addr)
		if err != nil {
			return err
		}
		err = sess.subscribe(regs)
		if !errors.Is(err, ErrSessionDeactivated) {
			return err
		}
	}
	return ErrSessionDeactivated
}

// Unsubscribe drops registrations named by tokens, an empty list drops all of
// them. A session left without subscriptions is deactivated.
func (s *Service) Unsubscribe(addr string, tokens []string) error {
	regs, err := ParseRegistrations(tokens)
	if err != nil {
		return err
	}
	sess, ok := s.reg.Get(addr)
	if !ok {
		return ErrNoSessionRegistered
	}
	return sess.unsubscribe(regs)
}

// Wait returns queued events of the address session at once if there are any.
// Otherwise h is parked (parked is true) and will be completed later by the
// session, the caller owns the deadline and calls Forget when it expires.
func (s *Service) Wait(addr string, h WaitHandle) (events []PendingEvent, parked bool, err error) {
	sess, ok := s.reg.Get(addr)
	if !ok {
		return nil, false, ErrNoSessionRegistered
	}
	return sess.wait(h)
}

// Forget drops the expired handle from the address session.
func (s *Service) Forget(addr string, h WaitHandle) {
	if sess, ok := s.reg.Get(addr); ok {
		sess.forget(h)
	}
}

// WaitTimeout converts the requested timeout in seconds into the wait
// deadline clamped to [0, MaxWaitTimeout].
func (s *Service) WaitTimeout(seconds int) time.Duration {
	if seconds <= 0 {
		return 0
	}
	d := time.Duration(seconds) * time.Second
	if d > s.cfg.MaxWaitTimeout || d/time.Second != time.Duration(seconds) {
		return s.cfg.MaxWaitTimeout
	}
	return d
}

// DefaultWaitTimeout is the wait deadline for requests that don't specify
// any timeout.
func (s *Service) DefaultWaitTimeout() time.Duration {
	return s.cfg.DefaultWaitTimeout
}

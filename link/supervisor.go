// Package link supervises a hardware transport connection (the EnOcean
// modem) with exponential backoff reconnect, the way this process's
// single-threaded cooperative main loop must never block on a dead serial
// link: transport disconnects are swallowed at the lowest layer and
// self-resync, never propagated as hard failures.
//
// Each Run call is its own reconnect loop; earlier runs are not tracked
// or cancelled by a later one. enocean.Reader runs its modem link through
// it; dali.SerialBus reopens its port itself and does not use it.
package link

import (
	"context"
	"io"
	"time"
)

// Dialer opens a fresh connection to the link. Returning an error is
// expected and routine (modem unplugged, bridge rebooting); the
// Supervisor retries with backoff rather than propagating it.
type Dialer func(ctx context.Context) (io.ReadWriteCloser, error)

// State is reported to an optional observer on every transition.
type State string

const (
	StateDialing  State = "dialing"
	StateUp       State = "up"
	StateDegraded State = "degraded"
)

// Supervisor owns the reconnect loop for one link. The handle func passed
// to Run is invoked with a fresh connection each time Dial succeeds; it should block for the
// lifetime of that connection and return when the link drops.
type Supervisor struct {
	Dial       Dialer
	MinBackoff time.Duration
	MaxBackoff time.Duration

	// OnState, if set, is called on every state change (for logging).
	OnState func(State, error)
}

func NewSupervisor(dial Dialer, minBackoff, maxBackoff time.Duration) *Supervisor {
	if minBackoff <= 0 {
		minBackoff = 250 * time.Millisecond
	}
	if maxBackoff < minBackoff {
		maxBackoff = 5 * time.Second
	}
	return &Supervisor{Dial: dial, MinBackoff: minBackoff, MaxBackoff: maxBackoff}
}

func (s *Supervisor) report(st State, err error) {
	if s.OnState != nil {
		s.OnState(st, err)
	}
}

// Run blocks until ctx is cancelled, dialing and redialing the link and
// invoking handle for each successful connection.
func (s *Supervisor) Run(ctx context.Context, handle func(ctx context.Context, rwc io.ReadWriteCloser) error) {
	backoff := s.MinBackoff
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		s.report(StateDialing, nil)
		rwc, err := s.Dial(ctx)
		if err != nil {
			s.report(StateDegraded, err)
			if !sleep(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff, s.MaxBackoff)
			continue
		}

		s.report(StateUp, nil)
		backoff = s.MinBackoff
		err = handle(ctx, rwc)
		_ = rwc.Close()
		if err == nil {
			// Clean shutdown (ctx cancelled mid-handle): stop, don't redial.
			return
		}
		s.report(StateDegraded, err)
		if !sleep(ctx, backoff) {
			return
		}
		backoff = nextBackoff(backoff, s.MaxBackoff)
	}
}

func nextBackoff(cur, max time.Duration) time.Duration {
	cur *= 2
	if cur > max {
		cur = max
	}
	return cur
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

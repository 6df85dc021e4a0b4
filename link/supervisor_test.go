package link

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"
)

type fakeConn struct{ closed int32 }

func (f *fakeConn) Read(p []byte) (int, error)  { return 0, io.EOF }
func (f *fakeConn) Write(p []byte) (int, error) { return len(p), nil }
func (f *fakeConn) Close() error                { atomic.AddInt32(&f.closed, 1); return nil }

func TestSupervisor_RetriesOnDialFailure(t *testing.T) {
	var attempts int32
	s := NewSupervisor(func(ctx context.Context) (io.ReadWriteCloser, error) {
		n := atomic.AddInt32(&attempts, 1)
		if n < 3 {
			return nil, errors.New("dial failed")
		}
		return &fakeConn{}, nil
	}, time.Millisecond, 4*time.Millisecond)

	var states []State
	s.OnState = func(st State, err error) { states = append(states, st) }

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		s.Run(ctx, func(ctx context.Context, rwc io.ReadWriteCloser) error {
			cancel()
			return nil
		})
		close(done)
	}()
	<-done

	if atomic.LoadInt32(&attempts) < 3 {
		t.Fatalf("expected at least 3 dial attempts, got %d", attempts)
	}
	sawUp := false
	for _, st := range states {
		if st == StateUp {
			sawUp = true
		}
	}
	if !sawUp {
		t.Fatalf("expected StateUp among %v", states)
	}
}

func TestSupervisor_RedialsAfterHandleError(t *testing.T) {
	var dials int32
	s := NewSupervisor(func(ctx context.Context) (io.ReadWriteCloser, error) {
		atomic.AddInt32(&dials, 1)
		return &fakeConn{}, nil
	}, time.Millisecond, 2*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	calls := 0
	s.Run(ctx, func(ctx context.Context, rwc io.ReadWriteCloser) error {
		calls++
		if calls >= 2 {
			cancel()
			return nil
		}
		return errors.New("link dropped")
	})

	if dials < 2 {
		t.Fatalf("expected at least 2 dials after a handle error, got %d", dials)
	}
}

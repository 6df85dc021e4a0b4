package enocean

import (
	"context"
	"io"
	"time"

	"github.com/tarm/serial"

	"vdchost/link"
)

// Reader drives an ESP3 Scanner off a real serial port, emitting
// assembled packets on a bounded channel. Modeled on the accumulate-
// bytes-in-a-goroutine shape used elsewhere in this codebase for UART
// ingestion, adapted here to feed a deterministic Scanner instead of
// handling framing inline. The modem link is supervised by
// link.Supervisor, redialing with backoff whenever the port is lost;
// transport disconnects are swallowed and self-resynced, never surfaced
// as a hard failure.
type Reader struct {
	outQ chan *Packet
	sup  *link.Supervisor

	// OnLinkState, if set, observes modem link up/down transitions.
	OnLinkState func(link.State, error)
}

func NewReader(outBuf int) *Reader {
	if outBuf <= 0 {
		outBuf = 32
	}
	return &Reader{outQ: make(chan *Packet, outBuf)}
}

func (r *Reader) Packets() <-chan *Packet { return r.outQ }

// Open starts a supervised reader goroutine against the given device path
// at ESP3's fixed 57600 8N1. Returns a cancel func that stops the
// goroutine and closes the current port (if any).
func (r *Reader) Open(ctx context.Context, devicePath string) (func(), error) {
	dial := func(ctx context.Context) (io.ReadWriteCloser, error) {
		cfg := &serial.Config{Name: devicePath, Baud: 57600, ReadTimeout: 250 * time.Millisecond}
		return serial.OpenPort(cfg)
	}
	r.sup = link.NewSupervisor(dial, 250*time.Millisecond, 10*time.Second)
	r.sup.OnState = r.OnLinkState

	cctx, cancel := context.WithCancel(ctx)
	go r.sup.Run(cctx, r.handleLink)
	return cancel, nil
}

func (r *Reader) handleLink(ctx context.Context, rwc io.ReadWriteCloser) error {
	scanner := NewScanner()
	buf := make([]byte, 64)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		n, err := rwc.Read(buf)
		if err != nil {
			if err == io.EOF {
				return err
			}
			// Read-timeout-with-no-data and similar transient errors are
			// swallowed here: the scanner self-resyncs on the next
			// successful read rather than tearing down the link.
			continue
		}
		for i := 0; i < n; i++ {
			if pkt, ok := scanner.Feed(buf[i]); ok {
				select {
				case r.outQ <- pkt:
				default:
					// drop if consumer is slow
				}
			}
		}
	}
}

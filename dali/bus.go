package dali

import (
	"context"
	"errors"
	"time"

	"github.com/tarm/serial"
)

// Command is one of the DALI commands this build issues.
type Command int

const (
	CmdQueryControlGear Command = iota
	CmdQueryActualLevel
	CmdQueryMinLevel
	CmdStoreDTRAsFadeTime
	CmdDirectArcPower
)

// ErrMissingData is returned by Bus.ReadInfo when a device-info block
// can't be read in full; the caller degrades to address-only identity
// rather than treating this as fatal.
var ErrMissingData = errors.New("dali: missing device-info data")

// DeviceInfo is a DALI ballast's device-info block.
type DeviceInfo struct {
	GTIN      uint64
	Serial    uint64
	Version   byte
	OEMGTIN   uint64
	OEMSerial uint64
}

// Bus abstracts the DALI command/query transport so the collector and
// device logic can be tested without real bus hardware.
type Bus interface {
	Scan(ctx context.Context, full bool) ([]int, error)
	ReadInfo(ctx context.Context, addr int) (DeviceInfo, error)
	Query(ctx context.Context, addr int, cmd Command) (response byte, gotResponse bool, err error)
	SetDTR(ctx context.Context, value byte) error
	SendArcPower(ctx context.Context, addr int, arc byte) error
}

// SerialBus is a Bus driven over a real serial bridge at the DALI
// bridge's pseudo-baudrate of 9600; real bus timing is in the bridge.
//
// The bridge link is opened on the first command. It is not closed while
// idle: when IdleTimeout has elapsed since the last command, the next
// command closes the stale port and opens a fresh one.
type SerialBus struct {
	path        string
	IdleTimeout time.Duration

	port     *serial.Port
	lastUsed time.Time
}

// DefaultIdleTimeout is used when IdleTimeout is left zero.
const DefaultIdleTimeout = 30 * time.Second

func OpenSerialBus(path string) (*SerialBus, error) {
	return &SerialBus{path: path, IdleTimeout: DefaultIdleTimeout}, nil
}

// ensureOpen (re)dials the bridge port if it's closed or has been idle
// past IdleTimeout, and stamps lastUsed for the caller's command.
func (b *SerialBus) ensureOpen() error {
	timeout := b.IdleTimeout
	if timeout <= 0 {
		timeout = DefaultIdleTimeout
	}
	if b.port != nil && time.Since(b.lastUsed) > timeout {
		_ = b.port.Close()
		b.port = nil
	}
	if b.port == nil {
		port, err := serial.OpenPort(&serial.Config{Name: b.path, Baud: 9600, ReadTimeout: time.Second})
		if err != nil {
			return err
		}
		b.port = port
	}
	b.lastUsed = time.Now()
	return nil
}

func (b *SerialBus) Close() error {
	if b.port == nil {
		return nil
	}
	err := b.port.Close()
	b.port = nil
	return err
}

// Scan, ReadInfo, Query, SetDTR, and SendArcPower are left as thin
// framing stubs here: the bridge's actual wire protocol for these
// commands is bridge-specific and out of this package's scope; bus
// timing lives in the bridge, not in this process.
func (b *SerialBus) Scan(ctx context.Context, full bool) ([]int, error) {
	if err := b.ensureOpen(); err != nil {
		return nil, err
	}
	return nil, errors.New("dali: SerialBus.Scan requires a bridge-specific wire implementation")
}

func (b *SerialBus) ReadInfo(ctx context.Context, addr int) (DeviceInfo, error) {
	if err := b.ensureOpen(); err != nil {
		return DeviceInfo{}, err
	}
	return DeviceInfo{}, ErrMissingData
}

func (b *SerialBus) Query(ctx context.Context, addr int, cmd Command) (byte, bool, error) {
	if err := b.ensureOpen(); err != nil {
		return 0, false, err
	}
	return 0, false, errors.New("dali: SerialBus.Query requires a bridge-specific wire implementation")
}

func (b *SerialBus) SetDTR(ctx context.Context, value byte) error {
	if err := b.ensureOpen(); err != nil {
		return err
	}
	return errors.New("dali: SerialBus.SetDTR requires a bridge-specific wire implementation")
}

func (b *SerialBus) SendArcPower(ctx context.Context, addr int, arc byte) error {
	if err := b.ensureOpen(); err != nil {
		return err
	}
	return errors.New("dali: SerialBus.SendArcPower requires a bridge-specific wire implementation")
}

// Package vdchost implements the process-wide root: the upstream session
// state machine, the announce loop, and the periodic save loop, all as
// pure functions of an explicit "now" so they're deterministic to test
// without a real clock.
package vdchost

import (
	"time"

	"github.com/rs/zerolog"

	"vdchost/device"
	"vdchost/ident"
	"vdchost/pstore"
	"vdchost/vdc"
)

const (
	ActivityTimeout   = 3 * time.Minute
	AnnounceRetry     = 15 * time.Second
	AnnounceReattempt = 300 * time.Second
	SaveInterval      = 5 * time.Second
)

// Code is the upstream API's numeric error-code space; it
// extends proptree's property-access codes with the session-layer ones.
type Code int

const (
	CodeBadAPIVersion Code = 505
	CodeWrongPeer     Code = 503
	CodeNoSession     Code = 401
)

// Error is a session-layer failure carrying its numeric code.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string { return e.Message }

type SessionState int

const (
	Idle SessionState = iota
	Connected
	TimingOut
)

type session struct {
	state        SessionState
	peer         ident.Ident
	lastActivity time.Time
}

// VdcHost is the process root: every owned Vdc, the shared param store,
// the own identity, and the single active upstream session (at most one
// connection is ever "the session").
type VdcHost struct {
	OwnID        ident.Ident
	ExpectedPeer ident.Ident
	Store        *pstore.Store

	vdcs []*vdc.Vdc

	sess session
	log  zerolog.Logger
}

func New(own, expectedPeer ident.Ident, store *pstore.Store) *VdcHost {
	return &VdcHost{OwnID: own, ExpectedPeer: expectedPeer, Store: store, log: zerolog.Nop()}
}

// SetLogger installs the host's logger; the zero-value host logs nowhere.
func (h *VdcHost) SetLogger(log zerolog.Logger) { h.log = log }

func (h *VdcHost) AddVdc(v *vdc.Vdc) { h.vdcs = append(h.vdcs, v) }

func (h *VdcHost) Vdcs() []*vdc.Vdc { return h.vdcs }

// AllDevices flattens every owned Vdc's device list.
func (h *VdcHost) AllDevices() []*device.Device {
	var out []*device.Device
	for _, v := range h.vdcs {
		out = append(out, v.Devices()...)
	}
	return out
}

func (h *VdcHost) SessionState() SessionState { return h.sess.state }

func (h *VdcHost) SessionActive() bool { return h.sess.state == Connected }

// Hello handles the upstream "hello" method: checks the
// literal API version, accepts hello only from the configured peer,
// records the session, and replies with the host's own identity. The
// announce loop starts as a side effect of the session becoming active —
// callers drive that by polling NextToAnnounce once SessionActive is true.
func (h *VdcHost) Hello(now time.Time, apiVersion string, peer ident.Ident) (ownID ident.Ident, allowDisconnect bool, err error) {
	if apiVersion != "1.0" {
		return ident.Ident{}, false, &Error{CodeBadAPIVersion, "unsupported API version"}
	}
	if h.ExpectedPeer.IsValid() && !peer.Equal(h.ExpectedPeer) {
		return ident.Ident{}, false, &Error{CodeWrongPeer, "hello from unexpected peer"}
	}
	h.sess = session{state: Connected, peer: peer, lastActivity: now}
	h.log.Info().Str("peer", peer.String()).Msg("session opened")
	return h.OwnID, false, nil
}

// Bye handles the upstream "bye" method: always acknowledged, even when
// there was no active session.
func (h *VdcHost) Bye(now time.Time) {
	if h.sess.state == Connected {
		h.log.Info().Msg("session closed by peer")
	}
	h.endSession()
}

// Touch records upstream activity, resetting the inactivity timeout.
func (h *VdcHost) Touch(now time.Time) {
	if h.sess.state == Connected {
		h.sess.lastActivity = now
	}
}

// CheckTimeout ends the session if no activity has been recorded for
// ActivityTimeout, resetting every device's announced/announcing state to
// Never. Returns true if it just timed the session out.
func (h *VdcHost) CheckTimeout(now time.Time) bool {
	if h.sess.state != Connected {
		return false
	}
	if now.Sub(h.sess.lastActivity) < ActivityTimeout {
		return false
	}
	h.log.Info().Msg("session timed out")
	h.endSession()
	return true
}

func (h *VdcHost) endSession() {
	h.sess = session{}
	for _, d := range h.AllDevices() {
		d.Announced = 0
		d.Announcing = 0
	}
}

// RequireSession is consulted by the upstream API dispatcher:
// every method but hello/bye requires an active session.
func (h *VdcHost) RequireSession() error {
	if h.sess.state != Connected {
		return &Error{CodeNoSession, "no session"}
	}
	return nil
}

// NextToAnnounce returns the next device eligible for an announce
// attempt: public, never announced, and either never attempted or
// last attempted more than AnnounceReattempt ago. Returns nil if none is
// eligible right now — the caller should wait and poll again (the 15s
// per-attempt retry window is handled by the caller's timer, not here:
// a device whose attempt is still within that window isn't "failed" yet,
// it just hasn't been marked announcing long enough to retry).
func (h *VdcHost) NextToAnnounce(now time.Time) *device.Device {
	if !h.SessionActive() {
		return nil
	}
	for _, d := range h.AllDevices() {
		if !d.IsPublicDS || d.Announced != 0 {
			continue
		}
		if d.Announcing != 0 && now.Unix() <= d.Announcing+int64(AnnounceReattempt/time.Second) {
			continue
		}
		return d
	}
	return nil
}

// BeginAnnounce marks a device as having an announce attempt in flight.
func (h *VdcHost) BeginAnnounce(d *device.Device, now time.Time) { d.Announcing = now.Unix() }

// AnnounceAcked records a successful announce reply.
func (h *VdcHost) AnnounceAcked(d *device.Device, now time.Time) {
	d.Announced = now.Unix()
	d.Announcing = 0
}

// SaveAll runs the periodic save loop body: walk every device
// and flush it if dirty. Clean devices cost nothing beyond the dirty-flag
// check.
func (h *VdcHost) SaveAll() error {
	for _, d := range h.AllDevices() {
		if err := d.Persist(h.Store); err != nil {
			h.log.Error().Err(err).Str("device", d.Ident.String()).Msg("persist failed")
			return err
		}
	}
	return nil
}

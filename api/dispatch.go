package api

import (
	"context"
	"time"

	"vdchost/device"
	"vdchost/ident"
	"vdchost/proptree"
	"vdchost/vdc"
	"vdchost/vdchost"
)

// Notification is an outbound, reply-less message the dispatcher asks
// the transport layer to emit (announce/vanish/Pong).
type Notification struct {
	Method string
	DSID   ident.Ident
}

// Dispatcher routes upstream vdSM methods/notifications to a VdcHost.
// It carries no wire framing of its own (see package doc).
type Dispatcher struct {
	Host *vdchost.VdcHost
}

func New(host *vdchost.VdcHost) *Dispatcher { return &Dispatcher{Host: host} }

func (d *Dispatcher) resolveDevice(dsid string) (*device.Device, *vdc.Vdc, error) {
	id, err := ident.FromString(dsid)
	if err != nil {
		return nil, nil, &Error{C: CodeInvalidParams, Op: "resolve", Msg: "malformed dSID"}
	}
	for _, v := range d.Host.Vdcs() {
		if dev, ok := v.Lookup(id); ok {
			return dev, v, nil
		}
	}
	return nil, nil, &Error{C: CodeUnknownDSID, Op: "resolve", Msg: "unknown dSID"}
}

// Hello handles the session-establishing method.
func (d *Dispatcher) Hello(now time.Time, apiVersion, ownDsid string) (ident.Ident, bool, error) {
	peer, err := ident.FromString(ownDsid)
	if err != nil {
		return ident.Ident{}, false, &Error{C: CodeInvalidParams, Op: "hello", Msg: "malformed dSID"}
	}
	id, disc, err := d.Host.Hello(now, apiVersion, peer)
	if err != nil {
		return ident.Ident{}, false, translateSessionErr("hello", err)
	}
	return id, disc, nil
}

// Bye handles the session-ending notification; always succeeds.
func (d *Dispatcher) Bye(now time.Time) { d.Host.Bye(now) }

// requireSession: every method/notification but hello/bye
// needs an active session.
func (d *Dispatcher) requireSession() error {
	if err := d.Host.RequireSession(); err != nil {
		return translateSessionErr("require-session", err)
	}
	return nil
}

// HandleNotification serves the fire-and-forget methods: callScene,
// saveScene, Ping carry no reply, and errors here are logged by the
// caller, never surfaced to the peer — notifications never carry errors.
func (d *Dispatcher) HandleNotification(ctx context.Context, method, dsid string, scene int) (*Notification, error) {
	if err := d.requireSession(); err != nil {
		return nil, err
	}
	switch method {
	case "callScene":
		dev, _, err := d.resolveDevice(dsid)
		if err != nil {
			return nil, err
		}
		dev.CallScene(scene, false)
		return nil, nil
	case "saveScene":
		dev, _, err := d.resolveDevice(dsid)
		if err != nil {
			return nil, err
		}
		dev.SaveScene(scene)
		return nil, nil
	case "Ping":
		id, err := ident.FromString(dsid)
		if err != nil {
			return nil, &Error{C: CodeInvalidParams, Op: "Ping", Msg: "malformed dSID"}
		}
		return &Notification{Method: "Pong", DSID: id}, nil
	default:
		return nil, &Error{C: CodeUnknownMethod, Op: method, Msg: "unknown notification"}
	}
}

// MethodParams carries the union of fields device-level methods need;
// callers populate only the fields their method uses.
type MethodParams struct {
	Scene        int
	Force        bool
	ControlName  string
	ControlValue float64
	Forget       bool
}

// HandleMethod serves the request/reply device methods (undoScene,
// setLocalPriority, callSceneMin, setControlValue, identify, remove).
func (d *Dispatcher) HandleMethod(ctx context.Context, method, dsid string, p MethodParams) (any, error) {
	if err := d.requireSession(); err != nil {
		return nil, err
	}
	dev, owner, err := d.resolveDevice(dsid)
	if err != nil {
		return nil, err
	}
	switch method {
	case "undoScene":
		dev.UndoScene(p.Scene)
		return struct{}{}, nil
	case "setLocalPriority":
		dev.SetLocalPriority(p.Scene)
		return struct{}{}, nil
	case "callSceneMin":
		dev.CallSceneMin(p.Scene)
		return struct{}{}, nil
	case "setControlValue":
		if err := setControlValue(dev, p.ControlName, p.ControlValue); err != nil {
			return nil, err
		}
		return struct{}{}, nil
	case "identify":
		dev.Identify(ctx)
		return struct{}{}, nil
	case "remove":
		present, _ := dev.CheckPresence(ctx)
		if present {
			return nil, &Error{C: CodeForbidden, Op: "remove", Msg: "device still present"}
		}
		if err := owner.RemoveDevice(dev, p.Forget); err != nil {
			return nil, &Error{C: CodeForbidden, Op: "remove", Msg: err.Error()}
		}
		return struct{}{}, nil
	default:
		return nil, &Error{C: CodeUnknownMethod, Op: method, Msg: "unknown method"}
	}
}

// setControlValue finds the single channel matching name across the
// device's output behaviours and sets it instantly. Multi-channel named
// control targets beyond this are out of scope; the upstream API doesn't
// define the naming scheme beyond "name:string".
func setControlValue(dev *device.Device, name string, value float64) error {
	for _, out := range dev.Outputs {
		if out.Name != name {
			continue
		}
		if len(out.Channels) == 0 {
			return &Error{C: CodeInvalidParams, Op: "setControlValue", Msg: "no channel on target output"}
		}
		out.Channels[0].SetChannelValue(value, 0, true)
		return nil
	}
	return &Error{C: CodeInvalidParams, Op: "setControlValue", Msg: "unknown control name"}
}

// GetProperty/SetProperty bridge the upstream property-tree access
// methods directly onto proptree.Access.
func (d *Dispatcher) GetProperty(dsid, name string, index, count int) (any, error) {
	if err := d.requireSession(); err != nil {
		return nil, err
	}
	dev, _, err := d.resolveDevice(dsid)
	if err != nil {
		return nil, err
	}
	v, err := proptree.Access(dev, false, nil, name, index, count)
	if err != nil {
		return nil, translatePropErr("getProperty", err)
	}
	return v, nil
}

func (d *Dispatcher) SetProperty(dsid, name string, value any, index int) error {
	if err := d.requireSession(); err != nil {
		return err
	}
	dev, _, err := d.resolveDevice(dsid)
	if err != nil {
		return err
	}
	_, err = proptree.Access(dev, true, value, name, index, 0)
	if err != nil {
		return translatePropErr("setProperty", err)
	}
	return nil
}

func translatePropErr(op string, err error) error {
	pe, ok := err.(*proptree.Error)
	if !ok {
		return &Error{C: CodeUnknownMethod, Op: op, Msg: err.Error()}
	}
	return &Error{C: Code(pe.Code), Op: op, Msg: pe.Msg}
}

func translateSessionErr(op string, err error) error {
	se, ok := err.(*vdchost.Error)
	if !ok {
		return &Error{C: CodeUnknownMethod, Op: op, Msg: err.Error()}
	}
	return &Error{C: Code(se.Code), Op: op, Msg: se.Message}
}

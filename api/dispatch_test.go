package api

import (
	"context"
	"testing"
	"time"

	"vdchost/behaviour"
	"vdchost/device"
	"vdchost/ident"
	"vdchost/pstore"
	"vdchost/vdc"
	"vdchost/vdchost"
)

var t0 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

type fakeDiscoverer struct{ devs []*device.Device }

func (f *fakeDiscoverer) Discover(ctx context.Context, exhaustive bool) ([]vdc.Discovered, error) {
	out := make([]vdc.Discovered, len(f.devs))
	for i, d := range f.devs {
		d := d
		out[i] = vdc.Discovered{Ident: d.Ident, Build: func() *device.Device { return d }}
	}
	return out, nil
}

func (f *fakeDiscoverer) Rebuild(row pstore.Row) (vdc.Discovered, error) {
	return vdc.Discovered{}, nil
}

func newDeviceWithOutput(serial uint64) *device.Device {
	d := device.New(ident.SetClassic(0, serial))
	ch := behaviour.NewChannel(0, 100, 1, false)
	out := behaviour.NewOutputBehaviour(0, ch)
	out.Name = "brightness"
	d.Outputs = []*behaviour.OutputBehaviour{out}
	return d
}

func newDispatcherWithDevice(d *device.Device) (*Dispatcher, ident.Ident) {
	h := vdchost.New(ident.SetClassic(0, 1), ident.Ident{}, nil)
	v := vdc.New("test", ident.SetClassic(0, 0), &fakeDiscoverer{devs: []*device.Device{d}}, nil, nil)
	v.CollectDevices(context.Background(), false, false, false)
	h.AddVdc(v)
	disp := New(h)
	disp.Hello(t0, "1.0", ident.SetClassic(0, 1).String())
	return disp, d.Ident
}

func TestHelloRejectsBadVersion(t *testing.T) {
	h := vdchost.New(ident.SetClassic(0, 1), ident.Ident{}, nil)
	disp := New(h)
	_, _, err := disp.Hello(t0, "9.9", ident.SetClassic(0, 2).String())
	if err == nil || Of(err) != CodeBadAPIVersion {
		t.Fatalf("expected CodeBadAPIVersion, got %v", err)
	}
}

func TestMethodRequiresSession(t *testing.T) {
	h := vdchost.New(ident.SetClassic(0, 1), ident.Ident{}, nil)
	disp := New(h)
	_, err := disp.HandleMethod(context.Background(), "identify", ident.SetClassic(0, 2).String(), MethodParams{})
	if err == nil || Of(err) != CodeNoSession {
		t.Fatalf("expected CodeNoSession, got %v", err)
	}
}

func TestCallSceneNotificationAppliesScene(t *testing.T) {
	d := newDeviceWithOutput(9)
	disp, id := newDispatcherWithDevice(d)

	_, err := disp.HandleNotification(context.Background(), "callScene", id.String(), 5)
	if err != nil {
		t.Fatal(err)
	}
	if got := d.Outputs[0].Channels[0].GetChannelValue(); got == 0 {
		t.Fatalf("expected scene 5 to move the channel off zero, got %v", got)
	}
}

func TestUnknownDSIDReturns404(t *testing.T) {
	d := newDeviceWithOutput(9)
	disp, _ := newDispatcherWithDevice(d)

	_, err := disp.HandleMethod(context.Background(), "identify", ident.SetClassic(0, 999).String(), MethodParams{})
	if err == nil || Of(err) != CodeUnknownDSID {
		t.Fatalf("expected CodeUnknownDSID, got %v", err)
	}
}

func TestSetControlValueSetsNamedChannel(t *testing.T) {
	d := newDeviceWithOutput(9)
	disp, id := newDispatcherWithDevice(d)

	_, err := disp.HandleMethod(context.Background(), "setControlValue", id.String(), MethodParams{ControlName: "brightness", ControlValue: 42})
	if err != nil {
		t.Fatal(err)
	}
	d.Outputs[0].Channels[0].ChannelValueApplied(true)
	if got := d.Outputs[0].Channels[0].GetChannelValue(); got != 42 {
		t.Fatalf("expected channel set to 42, got %v", got)
	}
}

func TestGetPropertyReadsDeviceName(t *testing.T) {
	d := newDeviceWithOutput(9)
	d.Name = "lamp"
	disp, id := newDispatcherWithDevice(d)

	v, err := disp.GetProperty(id.String(), "name", 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if v != "lamp" {
		t.Fatalf("expected lamp, got %v", v)
	}
}

func TestSetPropertyUnknownNameReturns501(t *testing.T) {
	d := newDeviceWithOutput(9)
	disp, id := newDispatcherWithDevice(d)

	err := disp.SetProperty(id.String(), "doesNotExist", "x", 0)
	if err == nil || Of(err) != CodeUnknownMethod {
		t.Fatalf("expected CodeUnknownMethod, got %v", err)
	}
}

func TestRemoveRefusedWhilePresent(t *testing.T) {
	d := newDeviceWithOutput(9)
	d.Presence = func(ctx context.Context) (bool, error) { return true, nil }
	disp, id := newDispatcherWithDevice(d)

	_, err := disp.HandleMethod(context.Background(), "remove", id.String(), MethodParams{})
	if err == nil || Of(err) != CodeForbidden {
		t.Fatalf("expected CodeForbidden, got %v", err)
	}
}

func TestPingRepliesWithPong(t *testing.T) {
	d := newDeviceWithOutput(9)
	disp, id := newDispatcherWithDevice(d)

	n, err := disp.HandleNotification(context.Background(), "Ping", id.String(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if n == nil || n.Method != "Pong" || !n.DSID.Equal(id) {
		t.Fatalf("expected Pong reply for %v, got %+v", id, n)
	}
}

// Package device implements the scene-call pipeline every vDC device
// runs: callScene/saveScene/undoScene/setLocalPriority/callSceneMin, area
// membership, local-priority gating, and the asynchronous
// capture-before-apply ordering scene invocation requires.
package device

import (
	"context"
	"time"

	"vdchost/behaviour"
	"vdchost/ident"
	"vdchost/paramset"
	"vdchost/scene"
)

// PresenceChecker probes whether the device is actually reachable on its
// technology's bus; it is technology-specific (DALI presence check,
// EnOcean hasn't-timed-out, …) and supplied by the owning Vdc.
type PresenceChecker func(ctx context.Context) (bool, error)

// Device is one addressable end-device: its identity, its behaviours, its
// scene table, and the scene-call state machine tying them together.
type Device struct {
	paramset.Base

	Ident  ident.Ident
	Name   string
	ZoneID int

	PrimaryGroup int
	GroupMask    uint64 // area/group membership bits beyond PrimaryGroup

	IsPublicDS bool
	Announced  int64 // unix seconds, 0 == Never
	Announcing int64

	LocalPriority bool
	ProgMode      bool // suppress hardware apply, keep scene bookkeeping

	Outputs      []*behaviour.OutputBehaviour
	Buttons      []*behaviour.ButtonBehaviour
	BinaryInputs []*behaviour.BinaryInputBehaviour
	Sensors      []*behaviour.SensorBehaviour

	Scenes *scene.Table

	Presence PresenceChecker

	lastDimSceneNo int
	undoSceneNo    int
	undoValues     [][]float64
}

func New(id ident.Ident) *Device {
	d := &Device{Ident: id}
	d.Table = "devices"
	d.Scenes = scene.NewTable(func() { d.MarkDirty() })
	return d
}

func areaOnSceneNo(area int) int { return 5 + area }

// IsInArea reports whether this device belongs to area (1..4), per the
// area-on-scene dontCare test the scene-call pipeline itself uses, with
// GroupMask as an additional per-area membership bit.
func (d *Device) IsInArea(area int) bool {
	if area == 0 {
		return true
	}
	if d.Scenes.GetScene(areaOnSceneNo(area)).DontCare {
		return false
	}
	if d.GroupMask != 0 && d.GroupMask&(1<<uint(area)) == 0 {
		return false
	}
	return true
}

func (d *Device) captureAll(done func()) {
	if len(d.Outputs) == 0 {
		d.undoValues = nil
		done()
		return
	}
	captured := make([][]float64, len(d.Outputs))
	remaining := len(d.Outputs)
	for i, out := range d.Outputs {
		i, out := i, out
		out.CaptureScene(func(values []float64, err error) {
			captured[i] = values
			remaining--
			if remaining == 0 {
				d.undoValues = captured
				done()
			}
		})
	}
}

// transitionFor maps a scene's effect onto the transition time its value
// changes ride on.
func transitionFor(e scene.Effect) time.Duration {
	switch e {
	case scene.EffectInstant:
		return 0
	case scene.EffectSlow:
		return 60 * time.Second
	case scene.EffectCustom:
		return 5 * time.Second
	default:
		return 100 * time.Millisecond
	}
}

func (d *Device) applyToOutputs(sc *scene.Scene) {
	if d.ProgMode {
		return
	}
	tt := transitionFor(sc.Effect)
	for i, out := range d.Outputs {
		if sc.ChannelDontCare != nil && sc.ChannelDontCare[i] {
			continue
		}
		values := make([]float64, len(out.Channels))
		for ci := range out.Channels {
			if v, ok := sc.ChannelValues[i*16+ci]; ok {
				values[ci] = v
			} else {
				values[ci] = sc.Value
			}
		}
		out.ApplyScene(values, tt)
	}
}

func (d *Device) performSceneActions(sc *scene.Scene) {
	for _, out := range d.Outputs {
		out.PerformSceneActions(behaviour.Effect(sc.Effect))
	}
}

// CallScene runs the full scene-call pipeline.
func (d *Device) CallScene(n int, force bool) {
	if n == scene.AreaContinue {
		if d.lastDimSceneNo == 0 {
			return
		}
		n = d.lastDimSceneNo
	}

	dimCmd, isDim := scene.Normalize(n)
	var dimScene int
	if isDim {
		dimScene, _ = scene.CanonicalDimScene(dimCmd)
	}
	d.lastDimSceneNo = 0

	row := d.Scenes.GetScene(n)
	area := row.Area
	if area != 0 {
		onScene := d.Scenes.GetScene(areaOnSceneNo(area))
		if onScene.DontCare {
			return
		}
		if row.Cmd == scene.CmdOff {
			d.LocalPriority = false
		}
	}

	var sc *scene.Scene
	if isDim {
		sc = d.Scenes.GetScene(dimScene)
	} else {
		sc = row
	}
	if area != 0 && isDim {
		d.lastDimSceneNo = n
	}

	if sc.DontCare {
		d.performSceneActions(sc)
		return
	}

	if area == 0 && d.LocalPriority && !sc.IgnoreLocalPriority && !force {
		return
	}

	apply := func() {
		d.applyToOutputs(sc)
		d.performSceneActions(sc)
	}

	if !isDim {
		d.captureAll(func() {
			d.undoSceneNo = n
			apply()
		})
	} else {
		apply()
	}
}

// SaveScene captures every output's current state into scene n.
func (d *Device) SaveScene(n int) {
	sc := d.Scenes.GetScene(n)
	d.captureAll(func() {
		for i, vals := range d.undoValues {
			for ci, v := range vals {
				if sc.ChannelValues == nil {
					sc.ChannelValues = make(map[int]float64)
				}
				sc.ChannelValues[i*16+ci] = v
			}
		}
		d.Scenes.UpdateScene(sc)
	})
}

// UndoScene re-applies the last captured undo state if it was captured
// for scene n.
func (d *Device) UndoScene(n int) {
	if d.undoSceneNo != n || d.undoValues == nil {
		return
	}
	for i, out := range d.Outputs {
		if i < len(d.undoValues) {
			out.ApplyScene(d.undoValues[i], 0)
		}
	}
}

// SetLocalPriority sets LocalPriority true iff scene n isn't dontCare.
func (d *Device) SetLocalPriority(n int) {
	if !d.Scenes.GetScene(n).DontCare {
		d.LocalPriority = true
	}
}

// CallSceneMin switches every (non-per-scene-dontCare) output on at its
// minimum brightness.
func (d *Device) CallSceneMin(n int) {
	sc := d.Scenes.GetScene(n)
	if sc.DontCare {
		return
	}
	for i, out := range d.Outputs {
		if sc.ChannelDontCare != nil && sc.ChannelDontCare[i] {
			continue
		}
		out.OnAtMinBrightness()
	}
}

// SetProgMode toggles programming mode: while set, scene
// application skips hardware but capture/undo bookkeeping still runs.
func (d *Device) SetProgMode(on bool) { d.ProgMode = on }

// Identify asks every output with an identify hook to visually single
// itself out.
func (d *Device) Identify(ctx context.Context) {
	for _, out := range d.Outputs {
		if out.IdentifyFlash != nil {
			out.IdentifyFlash()
		}
	}
}

// CheckPresence delegates to the technology-specific presence hook, or
// reports present if none is installed.
func (d *Device) CheckPresence(ctx context.Context) (bool, error) {
	if d.Presence == nil {
		return true, nil
	}
	return d.Presence(ctx)
}

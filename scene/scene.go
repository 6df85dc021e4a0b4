// Package scene implements the sparse per-device scene table: an 80-row
// hardcoded default table, a map from sceneNo to the persisted Scene
// overriding it, and a four-level file-based CSV overlay applied after
// load.
package scene

// Cmd is the scene command discriminator, covering lighting/shading
// scene invocation and area dimming. Audio/heating-specific commands
// belong to device classes this system does not model.
type Cmd string

const (
	CmdNone          Cmd = "none"
	CmdInvoke        Cmd = "invoke"
	CmdOff           Cmd = "off"
	CmdMin           Cmd = "min"
	CmdMax           Cmd = "max"
	CmdIncrement     Cmd = "increment"
	CmdDecrement     Cmd = "decrement"
	CmdAreaContinue  Cmd = "area_continue"
	CmdStop          Cmd = "stop"
	CmdSlowOff       Cmd = "slow_off"
)

// Effect selects the scene's transition style.
type Effect string

const (
	EffectInstant Effect = "instant"
	EffectSmooth  Effect = "smooth"
	EffectSlow    Effect = "slow"
	EffectCustom  Effect = "custom"
)

const NumDefaultScenes = 79 // valid indices 0..79 inclusive (80 rows)
const AreaContinue = -1    // sentinel scene number meaning "continue last area dim"

// Scene is one sparse row of a device's scene table.
type Scene struct {
	SceneNo int
	RowID   int64 // 0 until first persisted

	Value               float64
	Effect              Effect
	IgnoreLocalPriority bool
	DontCare            bool
	Cmd                 Cmd
	Area                int

	// ChannelValues/ChannelDontCare hold per-channel overrides beyond the
	// single default-scene value; index is the output channel index. Up
	// to 16 channels' dontCare bits fit in the scene's packed flag word;
	// kept as a plain map here since nothing marshals the flag word onto
	// the wire directly (DB columns store flags already decomposed).
	ChannelValues   map[int]float64
	ChannelDontCare map[int]bool

	dirty bool
}

func (s *Scene) MarkDirty()   { s.dirty = true }
func (s *Scene) IsDirty() bool { return s.dirty }
func (s *Scene) ClearDirty()  { s.dirty = false }

// Row flattens the scene's scalar fields into column values for
// persistence; per-channel overrides are out of this cut's persisted
// columns (they round-trip through CSV overlays, not the settings DB).
func (s *Scene) Row() map[string]any {
	return map[string]any{
		"sceneNo":             s.SceneNo,
		"value":               s.Value,
		"effect":              string(s.Effect),
		"ignoreLocalPriority": s.IgnoreLocalPriority,
		"dontCare":            s.DontCare,
		"cmd":                 string(s.Cmd),
		"area":                s.Area,
	}
}

type defaultRow struct {
	value               float64
	effect              Effect
	ignoreLocalPriority bool
	dontCare            bool
	cmd                 Cmd
	area                int
}

// defaultScenes is the reference 80-row table (scenes 0..79); indices
// beyond 79 fall back to the trailing catch-all row.
var defaultScenes = [NumDefaultScenes + 1]defaultRow{
	{0, EffectSmooth, false, false, CmdOff, 0},       // 0  Preset 0 (T0_S0)
	{0, EffectSmooth, true, false, CmdOff, 1},        // 1  Area 1 Off (T1_S0)
	{0, EffectSmooth, true, false, CmdOff, 2},        // 2  Area 2 Off (T2_S0)
	{0, EffectSmooth, true, false, CmdOff, 3},        // 3  Area 3 Off (T3_S0)
	{0, EffectSmooth, true, false, CmdOff, 4},        // 4  Area 4 Off (T4_S0)
	{100, EffectSmooth, false, false, CmdInvoke, 0},  // 5  Preset 1 (T0_S1)
	{100, EffectSmooth, true, false, CmdInvoke, 1},   // 6  Area 1 On (T1_S1)
	{100, EffectSmooth, true, false, CmdInvoke, 2},   // 7  Area 2 On (T2_S1)
	{100, EffectSmooth, true, false, CmdInvoke, 3},   // 8  Area 3 On (T3_S1)
	{100, EffectSmooth, true, false, CmdInvoke, 4},   // 9  Area 4 On (T4_S1)
	{0, EffectSmooth, true, false, CmdAreaContinue, 0}, // 10 Area stepping continue
	{0, EffectSmooth, false, false, CmdDecrement, 0}, // 11 Decrement
	{0, EffectSmooth, false, false, CmdIncrement, 0}, // 12 Increment
	{0, EffectSmooth, true, false, CmdMin, 0},        // 13 Minimum
	{100, EffectSmooth, true, false, CmdMax, 0},      // 14 Maximum
	{0, EffectSmooth, true, false, CmdStop, 0},       // 15 Stop
	{0, EffectSmooth, false, true, CmdNone, 0},       // 16 Reserved
	{75, EffectSmooth, false, false, CmdInvoke, 0},   // 17 Preset 2 (T0_S2)
	{50, EffectSmooth, false, false, CmdInvoke, 0},   // 18 Preset 3 (T0_S3)
	{25, EffectSmooth, false, false, CmdInvoke, 0},   // 19 Preset 4 (T0_S4)
	{75, EffectSmooth, false, false, CmdInvoke, 0},   // 20 Preset 12 (T1_S2)
	{50, EffectSmooth, false, false, CmdInvoke, 0},   // 21 Preset 13 (T1_S3)
	{25, EffectSmooth, false, false, CmdInvoke, 0},   // 22 Preset 14 (T1_S4)
	{75, EffectSmooth, false, false, CmdInvoke, 0},   // 23 Preset 22 (T2_S2)
	{65, EffectSmooth, false, false, CmdInvoke, 0},   // 24 Preset 23 (T2_S3)
	{64, EffectSmooth, false, false, CmdInvoke, 0},   // 25 Preset 24 (T2_S4)
	{75, EffectSmooth, false, false, CmdInvoke, 0},   // 26 Preset 32 (T3_S2)
	{65, EffectSmooth, false, false, CmdInvoke, 0},   // 27 Preset 33 (T3_S3)
	{25, EffectSmooth, false, false, CmdInvoke, 0},   // 28 Preset 34 (T3_S4)
	{75, EffectSmooth, false, false, CmdInvoke, 0},   // 29 Preset 42 (T4_S2)
	{65, EffectSmooth, false, false, CmdInvoke, 0},   // 30 Preset 43 (T4_S3)
	{25, EffectSmooth, false, false, CmdInvoke, 0},   // 31 Preset 44 (T4_S4)
	{0, EffectSmooth, false, false, CmdOff, 0},       // 32 Preset 10 (T1E_S0)
	{100, EffectSmooth, false, false, CmdInvoke, 0},  // 33 Preset 11 (T1E_S1)
	{0, EffectSmooth, false, false, CmdOff, 0},       // 34 Preset 20 (T2E_S0)
	{100, EffectSmooth, false, false, CmdInvoke, 0},  // 35 Preset 21 (T2E_S1)
	{0, EffectSmooth, false, false, CmdOff, 0},       // 36 Preset 30 (T3E_S0)
	{100, EffectSmooth, false, false, CmdInvoke, 0},  // 37 Preset 31 (T3E_S1)
	{0, EffectSmooth, false, false, CmdOff, 0},       // 38 Preset 40 (T4E_S0)
	{100, EffectSmooth, false, false, CmdInvoke, 0},  // 39 Preset 41 (T4E_S1)
	{0, EffectSmooth, false, false, CmdSlowOff, 0},   // 40 Auto off (fade down 1min)
	{0, EffectSmooth, false, true, CmdNone, 0},       // 41 Reserved
	{0, EffectSmooth, true, false, CmdDecrement, 1},  // 42 Area 1 Decrement
	{0, EffectSmooth, true, false, CmdIncrement, 1},  // 43 Area 1 Increment
	{0, EffectSmooth, true, false, CmdDecrement, 2},  // 44 Area 2 Decrement
	{0, EffectSmooth, true, false, CmdIncrement, 2},  // 45 Area 2 Increment
	{0, EffectSmooth, true, false, CmdDecrement, 3},  // 46 Area 3 Decrement
	{0, EffectSmooth, true, false, CmdIncrement, 3},  // 47 Area 3 Increment
	{0, EffectSmooth, true, false, CmdDecrement, 4},  // 48 Area 4 Decrement
	{0, EffectSmooth, true, false, CmdIncrement, 4},  // 49 Area 4 Increment
	{0, EffectSmooth, true, false, CmdOff, 0},        // 50 Local button off
	{100, EffectSmooth, true, false, CmdInvoke, 0},   // 51 Local button on
	{0, EffectSmooth, true, false, CmdStop, 1},       // 52 Area 1 Stop
	{0, EffectSmooth, true, false, CmdStop, 2},       // 53 Area 2 Stop
	{0, EffectSmooth, true, false, CmdStop, 3},       // 54 Area 3 Stop
	{0, EffectSmooth, true, false, CmdStop, 4},       // 55 Area 4 Stop
	{0, EffectSmooth, false, true, CmdNone, 0},       // 56 Reserved
	{0, EffectSmooth, false, true, CmdNone, 0},       // 57 Reserved
	{0, EffectSmooth, false, true, CmdNone, 0},       // 58 Reserved
	{0, EffectSmooth, false, true, CmdNone, 0},       // 59 Reserved
	{0, EffectSmooth, false, true, CmdNone, 0},       // 60 Reserved
	{0, EffectSmooth, false, true, CmdNone, 0},       // 61 Reserved
	{0, EffectSmooth, false, true, CmdNone, 0},       // 62 Reserved
	{0, EffectSmooth, false, true, CmdNone, 0},       // 63 Reserved
	{0, EffectSlow, true, false, CmdInvoke, 0},       // 64 Auto standby
	{100, EffectInstant, true, false, CmdInvoke, 0}, // 65 Panic
	{0, EffectSmooth, false, true, CmdInvoke, 0},     // 66 Reserved (energy overload)
	{0, EffectSmooth, true, false, CmdInvoke, 0},     // 67 Standby
	{0, EffectSmooth, true, false, CmdInvoke, 0},     // 68 Deep off
	{0, EffectSmooth, true, false, CmdInvoke, 0},     // 69 Sleeping
	{100, EffectSmooth, true, true, CmdInvoke, 0},    // 70 Wakeup
	{100, EffectSmooth, true, true, CmdInvoke, 0},    // 71 Present
	{0, EffectSmooth, true, false, CmdInvoke, 0},     // 72 Absent
	{0, EffectSmooth, true, true, CmdInvoke, 0},      // 73 Door bell
	{100, EffectSmooth, false, true, CmdInvoke, 0},   // 74 Alarm 1
	{100, EffectSmooth, false, true, CmdInvoke, 0},   // 75 Zone active
	{100, EffectInstant, true, false, CmdInvoke, 0}, // 76 Fire
	{100, EffectInstant, false, true, CmdInvoke, 0}, // 77 Smoke
	{100, EffectInstant, false, true, CmdInvoke, 0}, // 78 Water
	{100, EffectInstant, false, true, CmdInvoke, 0}, // 79 Gas (also the >79 catch-all row)
}

// NewDefaultScene constructs the hardcoded default row for sceneNo,
// clamping anything above NumDefaultScenes to the trailing catch-all row.
func NewDefaultScene(sceneNo int) *Scene {
	idx := sceneNo
	if idx > NumDefaultScenes || idx < 0 {
		idx = NumDefaultScenes
	}
	r := defaultScenes[idx]
	return &Scene{
		SceneNo:             sceneNo,
		Value:               r.value,
		Effect:              r.effect,
		IgnoreLocalPriority: r.ignoreLocalPriority,
		DontCare:            r.dontCare,
		Cmd:                 r.cmd,
		Area:                r.area,
	}
}

// Normalize classifies a scene number as an area dim command
// (inc/dec/stop), reporting (CmdNone, false) if it isn't one — used by the
// device scene-call pipeline to detect "this call is dimming, not a
// value scene" before fetching the row.
func Normalize(sceneNo int) (dimCmd Cmd, isDim bool) {
	switch sceneNo {
	case 11, 42, 44, 46, 48:
		return CmdDecrement, true
	case 12, 43, 45, 47, 49:
		return CmdIncrement, true
	case 15, 52, 53, 54, 55:
		return CmdStop, true
	}
	return CmdNone, false
}

// CanonicalDimScene maps a dim classification back to the area-independent
// scene number (11/12/15) that carries the shared dim/stop row, so the same
// dimming behaviour applies regardless of which area's button triggered it.
func CanonicalDimScene(cmd Cmd) (sceneNo int, ok bool) {
	switch cmd {
	case CmdDecrement:
		return 11, true
	case CmdIncrement:
		return 12, true
	case CmdStop:
		return 15, true
	}
	return 0, false
}

// Table is a device's sparse sceneNo -> Scene map, backed by persisted
// rows and merged with file-based CSV overlays.
type Table struct {
	scenes map[int]*Scene
	onDirty func() // called when updateScene causes the table itself to need a rowid
}

func NewTable(onDirty func()) *Table {
	return &Table{scenes: make(map[int]*Scene), onDirty: onDirty}
}

// GetScene returns the persisted scene if present, else a fresh default.
func (t *Table) GetScene(sceneNo int) *Scene {
	if s, ok := t.scenes[sceneNo]; ok {
		return s
	}
	return NewDefaultScene(sceneNo)
}

// UpdateScene inserts s into the sparse map and marks it dirty. If this is
// the table's first row, the owning device-settings row is notified so it
// gets a rowid for the scene to parent against.
func (t *Table) UpdateScene(s *Scene) {
	s.MarkDirty()
	wasEmpty := len(t.scenes) == 0
	t.scenes[s.SceneNo] = s
	if wasEmpty && t.onDirty != nil {
		t.onDirty()
	}
}

// ResetScene deletes the persisted row for sceneNo, reverting future
// GetScene calls to the default.
func (t *Table) ResetScene(sceneNo int) {
	delete(t.scenes, sceneNo)
}

// All returns every persisted (non-default) scene, for saving.
func (t *Table) All() map[int]*Scene { return t.scenes }

package enocean

import "testing"

func buildFrame(pktType byte, data, opt []byte) []byte {
	dataLen := len(data)
	header := []byte{byte(dataLen >> 8), byte(dataLen), byte(len(opt)), pktType}
	hcrc := crc8(header)
	payload := append(append(append([]byte{}, data...), opt...))
	pcrc := crc8(payload)
	frame := []byte{syncByte}
	frame = append(frame, header...)
	frame = append(frame, hcrc)
	frame = append(frame, payload...)
	frame = append(frame, pcrc)
	return frame
}

func feedAll(s *Scanner, bs []byte) (*Packet, bool) {
	var pkt *Packet
	var ok bool
	for _, b := range bs {
		if p, got := s.Feed(b); got {
			pkt, ok = p, got
		}
	}
	return pkt, ok
}

func TestScannerRoundTripsAWellFormedFrame(t *testing.T) {
	data := []byte{0xF6, 0x00, 0x00, 0x00, 0x01, 0x30}
	frame := buildFrame(byte(PTRadio), data, nil)
	s := NewScanner()
	pkt, ok := feedAll(s, frame)
	if !ok {
		t.Fatal("expected a decoded packet")
	}
	if pkt.Type != PTRadio {
		t.Fatalf("unexpected packet type %v", pkt.Type)
	}
	if string(pkt.Data) != string(data) {
		t.Fatalf("unexpected data %v", pkt.Data)
	}
}

func TestScannerCorruptedByteCausesResyncNotSilentMisparse(t *testing.T) {
	data := []byte{0xF6, 0x00, 0x00, 0x00, 0x01, 0x30}
	frame := buildFrame(byte(PTRadio), data, nil)
	frame[2] ^= 0xFF // corrupt a header byte

	s := NewScanner()
	_, ok := feedAll(s, frame)
	if ok {
		t.Fatal("expected no packet decoded from a corrupted frame")
	}
}

// TestHeaderResyncRecoversOnDoubleSyncByte: a stray
// 0x55 immediately before the real sync byte must be discarded, with the
// real header parsed normally afterward.
func TestHeaderResyncRecoversOnDoubleSyncByte(t *testing.T) {
	data := make([]byte, 7)
	opt := make([]byte, 7)
	real := buildFrame(byte(PTRadio), data, opt) // starts with 0x55 ...
	stream := append([]byte{syncByte}, real...)  // inject a stray leading sync

	s := NewScanner()
	pkt, ok := feedAll(s, stream)
	if !ok {
		t.Fatal("expected scanner to resync onto the second sync byte and decode the frame")
	}
	if pkt.Type != PTRadio || len(pkt.Data) != 7 || len(pkt.Opt) != 7 {
		t.Fatalf("unexpected packet after resync: %+v", pkt)
	}
}

func TestClassifyRPSTruthTable(t *testing.T) {
	cases := []struct {
		status, data0 byte
		wantFunc      byte
	}{
		{statusT21, 0x80, 0x10}, // window handle
		{statusT21, 0x00, 0x02}, // 2-rocker
		{0x00, 0x00, 0x03},      // 4-rocker (T21=0)
	}
	for _, c := range cases {
		eep, ok := ClassifyRPS(c.status, c.data0)
		if !ok || eep.Func != c.wantFunc {
			t.Fatalf("status=%#x data0=%#x: got %+v ok=%v, want func=%#x", c.status, c.data0, eep, ok, c.wantFunc)
		}
	}
}

func TestDecodeRPSRockerNMessage(t *testing.T) {
	// d[6:4] = 011: rocker1 (bits[2:1] of the field), down (bit0=1), and
	// the shared bit4 reads as pressed=true; d[0]=0 so no second action.
	data0 := byte(0b0011_0000)
	actions := DecodeRPSRocker(data0, true)
	if len(actions) != 1 {
		t.Fatalf("expected one action, got %+v", actions)
	}
	if actions[0].Rocker != 1 || actions[0].Up || !actions[0].Pressed {
		t.Fatalf("unexpected decode: %+v", actions[0])
	}
}

func TestDecodeRPSRockerUMessageReleaseClearsAll(t *testing.T) {
	actions := DecodeRPSRocker(0x00, false)
	if len(actions) != 8 {
		t.Fatalf("expected all eight halves (four rockers) released, got %+v", actions)
	}
	for _, a := range actions {
		if a.Pressed {
			t.Fatalf("expected release-only on U-message, got %+v", a)
		}
	}
}

func TestDecodeRPSRockerUMessagePressIsAmbiguousAndIgnored(t *testing.T) {
	if got := DecodeRPSRocker(0x10, false); got != nil {
		t.Fatalf("expected nil (ignored) on U-message press, got %+v", got)
	}
}

func TestRockerStateSuppressesDuplicateEdges(t *testing.T) {
	var st RockerState
	a := RockerAction{Rocker: 0, Up: true, Pressed: true}
	if !st.Apply(a) {
		t.Fatal("expected first press to be a genuine edge")
	}
	if st.Apply(a) {
		t.Fatal("expected repeated identical press to be suppressed")
	}
}

// TestFourBSTemperatureDecode decodes a data (non-teach-in) 4BS
// temperature reading into its engineering value.
func TestFourBSTemperatureDecode(t *testing.T) {
	userData := [4]byte{0x00, 0x00, 0x80, 0x08}
	if Is4BSTeachIn(userData) {
		t.Fatal("expected a data telegram, not teach-in")
	}
	desc, ok := LookupSensor(DefaultSensorTable, EEP{Func: 0x02, Type: 0x01})
	if !ok {
		t.Fatal("expected temperature descriptor to be registered")
	}
	got := desc.Decode(userData)
	want := -20.08
	if got < want-0.01 || got > want+0.01 {
		t.Fatalf("expected ~%v, got %v", want, got)
	}
}

type fakeSensorTarget struct{ last float64 }

func (f *fakeSensorTarget) UpdateSensorValue(v float64) { f.last = v }

func TestChannelHandlerDispatchesDecodedValue(t *testing.T) {
	desc, _ := LookupSensor(DefaultSensorTable, EEP{Func: 0x02, Type: 0x01})
	target := &fakeSensorTarget{}
	h := ChannelHandler{Descriptor: desc, Target: target}
	h.HandleRadio([4]byte{0x00, 0x00, 0x80, 0x08})
	if target.last < -20.1 || target.last > -20.0 {
		t.Fatalf("unexpected dispatched value %v", target.last)
	}
}

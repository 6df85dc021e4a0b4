// Command vdchostd is the virtual device controller daemon: it wires the
// technology vdcs behind one VdcHost, drives the cooperative main loop
// (button ticks, pending applies, session timeout, periodic save, the
// announce scan) and bridges lifecycle events onto the internal bus.
//
// Usage: vdchostd [configfile]
//
// The vdSM wire transport is a pluggable adapter sitting in front of the
// api.Dispatcher; this daemon runs the device side and exposes the
// dispatcher to whatever adapter is linked in.
package main

import (
	"bufio"
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"vdchost/api"
	"vdchost/bus"
	"vdchost/consolevdc"
	"vdchost/dali"
	"vdchost/dmxvdc"
	"vdchost/enocean"
	"vdchost/enoceanvdc"
	"vdchost/gpiovdc"
	"vdchost/ident"
	"vdchost/link"
	"vdchost/pstore"
	"vdchost/vdc"
	"vdchost/vdchost"
	"vdchost/x/strconvx"
	"vdchost/x/strx"
	"vdchost/x/timex"

	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

const tickInterval = 250 * time.Millisecond

func main() {
	os.Exit(run())
}

func run() int {
	cfgPath := "vdchost.json"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}
	cfg, err := vdchost.LoadConfig(cfgPath)
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Error().Err(err).Str("path", cfgPath).Msg("cannot load config")
		return 1
	}

	lvl, err := zerolog.ParseLevel(strx.Coalesce(cfg.LogLevel, "info"))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stderr).With().Timestamp().Logger().Level(lvl)
	startMs := timex.NowMs()

	dataDir := strx.Coalesce(cfg.DataDir, ".")
	store, err := pstore.Open(filepath.Join(dataDir, "DsParams.sqlite3"))
	if err != nil {
		log.Error().Err(err).Msg("cannot open param store")
		return 1
	}
	defer store.Close()

	hostname, _ := os.Hostname()
	own := ident.SetClassicMAC(ident.HashSerial48(strx.Coalesce(hostname, "vdchost")), 0)
	h := vdchost.New(own, ident.Ident{}, store)
	h.SetLogger(log.With().Str("cmp", "host").Logger())

	evbus := bus.NewBus(8)
	conn := evbus.NewConnection("vdchostd")
	cfg.PublishRetained(conn)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		consoleColl *consolevdc.Collector
		enoColl     *enoceanvdc.Collector
		appliers    []func(context.Context)
	)

	addVdc := func(name string, disc vdc.Discoverer, cols []pstore.Column) *vdc.Vdc {
		classID := ident.SetNameInNamespace(name, own)
		v := vdc.New(name, classID, disc, store, cols)
		v.SetLogger(log.With().Str("vdc", name).Logger())
		h.AddVdc(v)
		return v
	}

	if cfg.Dali != nil {
		dbus, err := dali.OpenSerialBus(cfg.Dali.Transport)
		if err != nil {
			log.Error().Err(err).Msg("dali bridge unavailable")
		} else {
			classID := ident.SetNameInNamespace("dali_1", own)
			addVdc("dali_1", dali.NewCollector(dbus, classID), dali.KnownDeviceColumns())
		}
	}

	if cfg.Enocean != nil {
		reader := enocean.NewReader(64)
		reader.OnLinkState = func(st link.State, err error) {
			log.Warn().Err(err).Str("state", string(st)).Msg("enocean modem link state")
		}
		if _, err := reader.Open(ctx, cfg.Enocean.Transport); err != nil {
			log.Error().Err(err).Msg("enocean modem unavailable")
		} else {
			classID := ident.SetNameInNamespace("enocean_1", own)
			enoColl = enoceanvdc.NewCollector(classID)
			addVdc("enocean_1", enoColl, enoceanvdc.KnownDeviceColumns())
			go func() {
				for {
					select {
					case <-ctx.Done():
						return
					case pkt := <-reader.Packets():
						enoColl.HandlePacket(pkt, time.Now())
					}
				}
			}()
		}
	}

	if len(cfg.DigitalIO) > 0 {
		if _, err := host.Init(); err != nil {
			log.Error().Err(err).Msg("gpio host init failed")
		} else {
			classID := ident.SetNameInNamespace("gpio_1", own)
			coll := gpiovdc.NewCollector(classID)
			for _, pc := range cfg.DigitalIO {
				pin := gpioreg.ByName(pc.Pin)
				if pin == nil {
					log.Warn().Str("pin", pc.Pin).Msg("unknown gpio pin")
					continue
				}
				dir := gpiovdc.DirOut
				if pc.Direction == "in" {
					dir = gpiovdc.DirIn
				}
				coll.AddPin(gpiovdc.PinConfig{Key: pc.Pin, Pin: pin, Direction: dir})
			}
			addVdc("gpio_1", coll, gpiovdc.KnownDeviceColumns())
			appliers = append(appliers, coll.ApplyPending)
		}
	}

	if len(cfg.ConsoleIO) > 0 {
		classID := ident.SetNameInNamespace("console_1", own)
		consoleColl = consolevdc.NewCollector(os.Stdout, classID)
		for _, kc := range cfg.ConsoleIO {
			consoleColl.AddKey(consolevdc.KeyConfig{Key: kc.Key, Mode: consolevdc.Mode(kc.Mode)})
		}
		addVdc("console_1", consoleColl, consolevdc.KnownDeviceColumns())
		appliers = append(appliers, consoleColl.ApplyPending)
		go feedConsole(ctx, consoleColl, log)
	}

	if cfg.Dmx != nil {
		classID := ident.SetNameInNamespace("dmx_1", own)
		coll := dmxvdc.NewCollector(frameLogger{log}, cfg.Dmx.Universe, classID)
		for _, fx := range cfg.Dmx.Fixtures {
			coll.AddFixture(dmxvdc.FixtureConfig{FirstChannel: fx.FirstChannel, Kind: dmxvdc.FixtureKind(fx.Kind)})
		}
		addVdc("dmx_1", coll, dmxvdc.KnownDeviceColumns())
		appliers = append(appliers, coll.ApplyPending)
	}

	if cfg.Hue != nil {
		// The bridge HTTP client is a pluggable external; without one
		// linked in there is nothing to drive.
		log.Warn().Str("bridge", cfg.Hue.BridgeAddr).Msg("hue configured but no bridge client linked in")
	}

	for _, v := range h.Vdcs() {
		if _, err := v.CollectDevices(ctx, false, true, false); err != nil {
			log.Error().Err(err).Str("vdc", v.InstanceID).Msg("collect failed")
		}
	}
	log.Info().Int("devices", len(h.AllDevices())).Int64("startup_ms", timex.NowMs()-startMs).Msg("collected")

	dispatcher := api.New(h)
	go serveBusCalls(ctx, conn, dispatcher)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	lastSave := time.Now()

	for {
		select {
		case <-ctx.Done():
			if err := h.SaveAll(); err != nil {
				log.Error().Err(err).Msg("final save failed")
			}
			log.Info().Msg("shutting down")
			return 0

		case now := <-ticker.C:
			if consoleColl != nil {
				consoleColl.Tick(now)
			}
			if enoColl != nil {
				enoColl.Tick(now)
			}
			for _, apply := range appliers {
				apply(ctx)
			}
			if h.CheckTimeout(now) {
				conn.Publish(conn.NewMessage(bus.T("session", "closed"), nil, false))
			}
			if d := h.NextToAnnounce(now); d != nil {
				h.BeginAnnounce(d, now)
				conn.Publish(conn.NewMessage(bus.T("vdsm", "announce"), d.Ident.String(), false))
			}
			if now.Sub(lastSave) >= vdchost.SaveInterval {
				lastSave = now
				if err := h.SaveAll(); err != nil {
					log.Error().Err(err).Msg("periodic save failed")
				}
			}
		}
	}
}

// busCall is the payload a transport adapter publishes on {"vdsm","call"}
// to invoke an upstream method in-process; the reply carries the method
// result or the api error.
type busCall struct {
	Method string
	DSID   string
	Params api.MethodParams
}

// serveBusCalls bridges bus request/reply traffic onto the api
// dispatcher, so wire transport adapters stay decoupled from the host's
// internals: they speak their framing on one side and busCall messages on
// the other.
func serveBusCalls(ctx context.Context, conn *bus.Connection, d *api.Dispatcher) {
	sub := conn.Subscribe(bus.T("vdsm", "call"))
	defer sub.Unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-sub.Channel():
			call, ok := msg.Payload.(busCall)
			if !ok {
				continue
			}
			result, err := d.HandleMethod(ctx, call.Method, call.DSID, call.Params)
			if err != nil {
				conn.Reply(msg, err, false)
				continue
			}
			conn.Reply(msg, result, false)
		}
	}
}

// feedConsole turns stdin lines into simulated key presses: "a" is a
// short press of key a, "a:600" holds it for 600ms.
func feedConsole(ctx context.Context, coll *consolevdc.Collector, log zerolog.Logger) {
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		key := line
		holdMs := 150
		if i := strings.IndexByte(line, ':'); i >= 0 {
			key = line[:i]
			if ms, err := strconvx.Atoi(line[i+1:]); err == nil && ms > 0 {
				holdMs = ms
			}
		}
		now := time.Now()
		coll.FeedKey(key, true, now)
		coll.FeedKey(key, false, now.Add(time.Duration(holdMs)*time.Millisecond))
		log.Debug().Str("key", key).Int("hold_ms", holdMs).Msg("console key")
	}
}

// frameLogger satisfies dmxvdc.UniverseWriter when no OLA client is
// linked in: frames land in the debug log instead of on the wire.
type frameLogger struct {
	log zerolog.Logger
}

func (f frameLogger) SendDMX(universe int, frame []byte) error {
	nonZero := 0
	for _, b := range frame {
		if b != 0 {
			nonZero++
		}
	}
	f.log.Debug().Int("universe", universe).Int("non_zero_slots", nonZero).Msg("dmx frame")
	return nil
}

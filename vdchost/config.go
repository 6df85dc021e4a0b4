package vdchost

import (
	"encoding/json"
	"os"

	"vdchost/bus"
)

// Config is the small JSON document that configures a VdcHost process:
// the data directory, the upstream vdSM listen address, and one entry
// per enabled device technology with its transport path or patch list.
// Technologies with no entry stay disabled.
type Config struct {
	DataDir    string          `json:"data_dir"`
	VdsmListen string          `json:"vdsm_listen"`
	LogLevel   string          `json:"log_level"`
	Dali       *DaliConfig     `json:"dali,omitempty"`
	Enocean    *EnoceanConfig  `json:"enocean,omitempty"`
	Hue        *HueConfig      `json:"huelights,omitempty"`
	Dmx        *DMXConfig      `json:"dmx,omitempty"`
	DigitalIO  []GPIOConfig    `json:"digitalio,omitempty"`
	ConsoleIO  []ConsoleConfig `json:"consoleio,omitempty"`
}

type DaliConfig struct {
	Transport string `json:"transport"` // path or host[:port]
}

type EnoceanConfig struct {
	Transport string `json:"transport"`
}

type HueConfig struct {
	BridgeAddr string `json:"bridge_addr"`
}

type DMXConfig struct {
	Universe int          `json:"universe"`
	Fixtures []DMXFixture `json:"fixtures"`
}

type DMXFixture struct {
	FirstChannel int    `json:"first_channel"`
	Kind         string `json:"kind"` // "dimmer" | "rgb"
}

type GPIOConfig struct {
	Pin       string `json:"pin"`
	Direction string `json:"direction"` // "in" | "out"
}

type ConsoleConfig struct {
	Key  string `json:"key"`
	Mode string `json:"mode"` // "in" | "out" | "io"
}

// LoadConfig reads and decodes a Config document from path.
func LoadConfig(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// PublishRetained publishes each top-level config key as a retained bus
// message under {"config", key}, so any subscriber (a Vdc
// enabling/disabling itself, a log-level listener) gets the current
// value immediately on subscribe.
func (c Config) PublishRetained(conn *bus.Connection) {
	fields := map[string]any{
		"data_dir":    c.DataDir,
		"vdsm_listen": c.VdsmListen,
		"log_level":   c.LogLevel,
	}
	if c.Dali != nil {
		fields["dali"] = c.Dali
	}
	if c.Enocean != nil {
		fields["enocean"] = c.Enocean
	}
	if c.Hue != nil {
		fields["huelights"] = c.Hue
	}
	if c.Dmx != nil {
		fields["dmx"] = c.Dmx
	}
	if len(c.DigitalIO) > 0 {
		fields["digitalio"] = c.DigitalIO
	}
	if len(c.ConsoleIO) > 0 {
		fields["consoleio"] = c.ConsoleIO
	}
	for k, v := range fields {
		conn.Publish(conn.NewMessage(bus.T("config", k), v, true))
	}
}

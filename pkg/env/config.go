// Package env provides configuration shared by the commands: defaults,
// environment variables, command line flags and an optional YAML file.
package env

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/golang/glog"
	"gopkg.in/yaml.v3"

	"github.com/robotalks/softuart/pkg/bitclock"
	"github.com/robotalks/softuart/pkg/softuart"
)

// Config configures a link and the services around it.
type Config struct {
	// ID names the link in topics; Load defaults it to the machine ID.
	ID           string         `yaml:"id"`
	Speed        bitclock.Speed `yaml:"speed"`
	CPUFrequency uint32         `yaml:"cpu_hz"`
	RxBufferSize int            `yaml:"rx_buffer"`
	TxBufferSize int            `yaml:"tx_buffer"`

	// MQTTBrokerURL specifies the MQTT broker to use.
	// e.g. mqtt://host:port/topic-prefix/
	MQTTBrokerURL string `yaml:"mqtt_url"`
	// ListenAddr serves WebSocket clients when not empty.
	ListenAddr     string        `yaml:"listen"`
	StatusInterval time.Duration `yaml:"status_interval"`
	LoopInterval   time.Duration `yaml:"loop_interval"`
	// SimPace slows the simulated board down, 0 runs it flat out.
	SimPace time.Duration `yaml:"sim_pace"`

	// ConfigFile is the YAML file applied by Load.
	ConfigFile string `yaml:"-"`
}

// Environment variables read by ApplyEnv.
const (
	EnvID      = "SOFTUART_ID"
	EnvSpeed   = "SOFTUART_SPEED"
	EnvCPUHz   = "SOFTUART_CPU_HZ"
	EnvMQTTURL = "SOFTUART_MQTT_URL"
	EnvListen  = "SOFTUART_LISTEN"
	EnvConfig  = "SOFTUART_CONFIG"
)

var defaultConfig = Config{
	Speed:          bitclock.Speed9600,
	CPUFrequency:   16000000,
	RxBufferSize:   softuart.DefaultBufferSize,
	TxBufferSize:   softuart.DefaultBufferSize,
	MQTTBrokerURL:  "mqtt://localhost:1883/softuart/",
	StatusInterval: time.Second,
	LoopInterval:   10 * time.Millisecond,
	SimPace:        time.Millisecond,
}

// Default gets the default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// SetupFlags sets command line flags on the default config.
func SetupFlags() {
	defaultConfig.SetupFlags(flag.CommandLine)
}

// ApplyEnv overrides settings from environment variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if val, ok := lookup(EnvID); ok && val != "" {
		c.ID = val
	}
	if val, ok := lookup(EnvSpeed); ok && val != "" {
		speed, err := bitclock.ParseSpeed(val)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvSpeed, err)
		}
		c.Speed = speed
	}
	if val, ok := lookup(EnvCPUHz); ok && val != "" {
		hz, err := strconv.ParseUint(val, 10, 32)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvCPUHz, err)
		}
		c.CPUFrequency = uint32(hz)
	}
	if val, ok := lookup(EnvMQTTURL); ok {
		c.MQTTBrokerURL = val
	}
	if val, ok := lookup(EnvListen); ok {
		c.ListenAddr = val
	}
	if val, ok := lookup(EnvConfig); ok {
		c.ConfigFile = val
	}
	return nil
}

// SetupFlags registers flags bound to c.
func (c *Config) SetupFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.ID, "id", c.ID, "Link ID")
	fs.TextVar(&c.Speed, "speed", c.Speed, "Bits per second")
	fs.Var((*hertz)(&c.CPUFrequency), "cpu-hz", "CPU clock in Hz")
	fs.IntVar(&c.RxBufferSize, "rx-buffer", c.RxBufferSize, "Receive buffer size")
	fs.IntVar(&c.TxBufferSize, "tx-buffer", c.TxBufferSize, "Transmit buffer size")
	fs.StringVar(&c.MQTTBrokerURL, "mqtt", c.MQTTBrokerURL, "MQTT broker URL, empty to disable")
	fs.StringVar(&c.ListenAddr, "listen", c.ListenAddr, "WebSocket listen address, empty to disable")
	fs.DurationVar(&c.StatusInterval, "status-interval", c.StatusInterval, "Status publish interval")
	fs.DurationVar(&c.LoopInterval, "loop-interval", c.LoopInterval, "Bridge loop interval")
	fs.DurationVar(&c.SimPace, "sim-pace", c.SimPace, "Simulated board pacing per batch")
	fs.StringVar(&c.ConfigFile, "config", c.ConfigFile, "YAML config file")
}

// LoadFile overlays settings from a YAML file. Unknown keys are errors.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// Load completes c after fs has been parsed. Settings apply in the order
// defaults, config file, environment, command line flags. An empty ID
// falls back to the machine ID.
func (c *Config) Load(fs *flag.FlagSet) error {
	return c.LoadWith(fs, os.LookupEnv)
}

// LoadWith is Load reading environment variables through lookup.
func (c *Config) LoadWith(fs *flag.FlagSet, lookup func(string) (string, bool)) error {
	explicit := make(map[string]string)
	fs.Visit(func(f *flag.Flag) {
		explicit[f.Name] = f.Value.String()
	})
	if _, ok := explicit["config"]; !ok {
		if val, ok := lookup(EnvConfig); ok {
			c.ConfigFile = val
		}
	}
	if c.ConfigFile != "" {
		if err := c.LoadFile(c.ConfigFile); err != nil {
			return err
		}
	}
	if err := c.ApplyEnv(lookup); err != nil {
		glog.Warningf("ignoring environment: %v", err)
	}
	for name, val := range explicit {
		if err := fs.Set(name, val); err != nil {
			return err
		}
	}
	if c.ID == "" {
		c.ID = MachineID()
	}
	return c.Validate()
}

// Validate checks the link can be set up with these settings.
func (c *Config) Validate() error {
	if c.ID == "" {
		return errors.New("link ID must be specified")
	}
	if _, err := c.LinkConfig().Timing(); err != nil {
		return err
	}
	return nil
}

// LinkConfig returns the settings of the link itself.
func (c *Config) LinkConfig() softuart.Config {
	return softuart.Config{
		Speed:        c.Speed,
		CPUFrequency: c.CPUFrequency,
		RxBufferSize: c.RxBufferSize,
		TxBufferSize: c.TxBufferSize,
	}
}

type hertz uint32

func (h *hertz) String() string {
	return strconv.FormatUint(uint64(*h), 10)
}

func (h *hertz) Set(val string) error {
	hz, err := strconv.ParseUint(val, 10, 32)
	if err != nil {
		return err
	}
	*h = hertz(hz)
	return nil
}

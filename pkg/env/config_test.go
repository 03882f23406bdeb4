package env

import (
	"errors"
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/softuart/pkg/bitclock"
)

func lookupMap(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		val, ok := vars[key]
		return val, ok
	}
}

func writeFile(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "softuart.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func noEnv(string) (string, bool) { return "", false }

func TestDefaults(t *testing.T) {
	conf := NewConfig()
	require.NotSame(t, Default(), conf)
	require.Empty(t, conf.ID)
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	conf.SetupFlags(fs)
	require.NoError(t, fs.Parse(nil))
	require.NoError(t, conf.LoadWith(fs, noEnv))
	require.Equal(t, MachineID(), conf.ID)
}

func TestApplyEnv(t *testing.T) {
	conf := NewConfig()
	require.NoError(t, conf.ApplyEnv(lookupMap(map[string]string{
		EnvID:      "dev7",
		EnvSpeed:   "115200",
		EnvCPUHz:   "8000000",
		EnvMQTTURL: "",
		EnvListen:  ":8080",
	})))
	require.Equal(t, "dev7", conf.ID)
	require.Equal(t, bitclock.Speed115200, conf.Speed)
	require.Equal(t, uint32(8000000), conf.CPUFrequency)
	require.Empty(t, conf.MQTTBrokerURL)
	require.Equal(t, ":8080", conf.ListenAddr)

	err := conf.ApplyEnv(lookupMap(map[string]string{EnvSpeed: "300"}))
	require.True(t, errors.Is(err, bitclock.ErrUnknownSpeed))
	require.Error(t, conf.ApplyEnv(lookupMap(map[string]string{EnvCPUHz: "fast"})))
}

func TestLoadFile(t *testing.T) {
	conf := NewConfig()
	path := writeFile(t, `
id: bench
speed: 57600
cpu_hz: 8000000
rx_buffer: 128
status_interval: 250ms
`)
	require.NoError(t, conf.LoadFile(path))
	require.Equal(t, "bench", conf.ID)
	require.Equal(t, bitclock.Speed57600, conf.Speed)
	require.Equal(t, uint32(8000000), conf.CPUFrequency)
	require.Equal(t, 128, conf.RxBufferSize)
	require.Equal(t, 250*time.Millisecond, conf.StatusInterval)
	require.Equal(t, Default().TxBufferSize, conf.TxBufferSize)

	require.NoError(t, conf.LoadFile(writeFile(t, "")))
	require.Error(t, conf.LoadFile(writeFile(t, "baud: 9600\n")))
	require.Error(t, conf.LoadFile(writeFile(t, "speed: 300\n")))
	require.Error(t, conf.LoadFile(filepath.Join(t.TempDir(), "missing.yaml")))
}

func TestLoadKeepsExplicitFlags(t *testing.T) {
	conf := NewConfig()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	conf.SetupFlags(fs)
	path := writeFile(t, "id: from-file\nspeed: 19200\ncpu_hz: 8000000\n")
	require.NoError(t, fs.Parse([]string{"-config", path, "-speed", "38400"}))
	require.NoError(t, conf.LoadWith(fs, noEnv))
	require.Equal(t, "from-file", conf.ID)
	require.Equal(t, bitclock.Speed38400, conf.Speed)
	require.Equal(t, uint32(8000000), conf.CPUFrequency)
}

func TestLoadPrecedence(t *testing.T) {
	conf := NewConfig()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	conf.SetupFlags(fs)
	path := writeFile(t, "id: from-file\nspeed: 19200\ncpu_hz: 8000000\nlisten: \":9000\"\n")
	require.NoError(t, fs.Parse([]string{"-listen", ":7000"}))
	require.NoError(t, conf.LoadWith(fs, lookupMap(map[string]string{
		EnvConfig: path,
		EnvSpeed:  "57600",
		EnvListen: ":8000",
	})))
	require.Equal(t, path, conf.ConfigFile)
	require.Equal(t, "from-file", conf.ID)
	require.Equal(t, uint32(8000000), conf.CPUFrequency)
	// environment over file, flags over environment.
	require.Equal(t, bitclock.Speed57600, conf.Speed)
	require.Equal(t, ":7000", conf.ListenAddr)

	conf = NewConfig()
	fs = flag.NewFlagSet("test", flag.ContinueOnError)
	conf.SetupFlags(fs)
	require.NoError(t, fs.Parse(nil))
	require.NoError(t, conf.LoadWith(fs, lookupMap(map[string]string{EnvSpeed: "300", EnvID: "dev9"})))
	require.Equal(t, Default().Speed, conf.Speed)
	require.Equal(t, "dev9", conf.ID)
}

func TestFlags(t *testing.T) {
	conf := NewConfig()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	conf.SetupFlags(fs)
	require.NoError(t, fs.Parse([]string{"-id", "x", "-cpu-hz", "20000000", "-tx-buffer", "8", "-mqtt", ""}))
	require.NoError(t, conf.LoadWith(fs, noEnv))
	require.Equal(t, "x", conf.ID)
	require.Equal(t, uint32(20000000), conf.CPUFrequency)
	require.Empty(t, conf.MQTTBrokerURL)

	link := conf.LinkConfig()
	require.Equal(t, 8, link.TxBufferSize)
	timing, err := link.Timing()
	require.NoError(t, err)
	require.Equal(t, bitclock.Prescaler(8), timing.Prescaler)

	require.Error(t, fs.Parse([]string{"-cpu-hz", "fast"}))
}

func TestValidate(t *testing.T) {
	conf := NewConfig()
	require.Error(t, conf.Validate())
	conf.ID = "dev0"
	require.NoError(t, conf.Validate())
	conf.CPUFrequency = 1000000
	require.NoError(t, conf.Validate())
	conf.Speed = bitclock.Speed115200
	require.True(t, errors.Is(conf.Validate(), bitclock.ErrNoTiming))
}

func TestMachineID(t *testing.T) {
	id := MachineID()
	require.NotEmpty(t, id)
	require.Equal(t, id, MachineID())
}

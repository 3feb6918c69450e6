// Package env provides common options to set up a kernel and buffers
// from the environment and command line.
package env

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/denisbrodbeck/machineid"

	"github.com/robotalks/streambuf/pkg/kernel"
	"github.com/robotalks/streambuf/pkg/streambuf"
)

// Config provides common options.
type Config struct {
	// MQTTBrokerURL specifies the MQTT broker to use.
	// e.g. mqtt://host:port/topic-prefix
	MQTTBrokerURL string
	// NodeID names this node in topics.
	NodeID string

	Size             int
	TriggerLevel     int
	Mode             string
	LengthPrefixSize int
	HeapSize         int
}

var defaultConfig = Config{
	MQTTBrokerURL:    "mqtt://localhost:1883/sbuf/",
	Size:             1024,
	TriggerLevel:     1,
	Mode:             streambuf.ModeMessage.String(),
	LengthPrefixSize: streambuf.DefaultLengthPrefixSize,
	HeapSize:         kernel.DefaultHeapSize,
}

func init() {
	if val := os.Getenv("SBUF_MQTT_URL"); val != "" {
		defaultConfig.MQTTBrokerURL = val
	}
	if val := os.Getenv("SBUF_NODE_ID"); val != "" {
		defaultConfig.NodeID = val
	} else {
		defaultConfig.NodeID = MachineID()
	}
	if val := os.Getenv("SBUF_MODE"); val != "" {
		defaultConfig.Mode = val
	}
	envInt(&defaultConfig.Size, "SBUF_SIZE")
	envInt(&defaultConfig.TriggerLevel, "SBUF_TRIGGER")
	envInt(&defaultConfig.LengthPrefixSize, "SBUF_PREFIX")
	envInt(&defaultConfig.HeapSize, "SBUF_HEAP")
}

func envInt(v *int, name string) {
	if val := os.Getenv(name); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil {
			log.Fatalf("invalid %s=%q: %v", name, val, err)
		}
		*v = n
	}
}

// MachineID retrieves the unique ID identifying the machine, falling
// back to the host name.
func MachineID() string {
	id, err := machineid.ProtectedID("streambuf")
	if err == nil {
		return id[:12]
	}
	if host, err := os.Hostname(); err == nil {
		return host
	}
	return "node"
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.MQTTBrokerURL, "mqtt", defaultConfig.MQTTBrokerURL, "MQTT broker URL")
	flag.StringVar(&defaultConfig.NodeID, "node", defaultConfig.NodeID, "Node ID")
	flag.IntVar(&defaultConfig.Size, "size", defaultConfig.Size, "Buffer size in bytes")
	flag.IntVar(&defaultConfig.TriggerLevel, "trigger", defaultConfig.TriggerLevel, "Trigger level in bytes")
	flag.StringVar(&defaultConfig.Mode, "mode", defaultConfig.Mode, "Buffer mode: stream or message")
	flag.IntVar(&defaultConfig.LengthPrefixSize, "prefix", defaultConfig.LengthPrefixSize, "Message length prefix size: 1, 2, 4 or 8")
	flag.IntVar(&defaultConfig.HeapSize, "heap", defaultConfig.HeapSize, "Kernel heap size in bytes")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// NewKernel creates a kernel with the configured heap.
func (c *Config) NewKernel() (*kernel.Kernel, error) {
	if c.HeapSize <= 0 {
		return nil, fmt.Errorf("invalid heap size %d", c.HeapSize)
	}
	return kernel.New(c.HeapSize), nil
}

// MustNewKernel creates the kernel and fails on error.
func (c *Config) MustNewKernel() *kernel.Kernel {
	k, err := c.NewKernel()
	if err != nil {
		log.Fatalln(err)
	}
	return k
}

// BufferConfig creates the buffer configuration on kernel k.
func (c *Config) BufferConfig(k *kernel.Kernel) (*streambuf.Config, error) {
	mode, ok := streambuf.ParseMode(c.Mode)
	if !ok {
		return nil, fmt.Errorf("invalid buffer mode %q", c.Mode)
	}
	return &streambuf.Config{
		Size:             c.Size,
		TriggerLevel:     c.TriggerLevel,
		Mode:             mode,
		LengthPrefixSize: c.LengthPrefixSize,
		Scheduler:        k,
		Allocator:        k.Heap(),
	}, nil
}

package node

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/robotalks/meshota/pkg/area"
	"github.com/robotalks/meshota/pkg/flash"
	fx "github.com/robotalks/meshota/pkg/framework"
	"github.com/robotalks/meshota/pkg/mesh"
	"github.com/robotalks/meshota/pkg/otap"
)

// Config describes a simulated node.
type Config struct {
	// Address on the mesh. Defaults to an address derived from the
	// machine id.
	Address mesh.Address `yaml:"address"`
	// Role is sink, router or node.
	Role string `yaml:"role"`
	// Locked lists the features locked by the key, e.g.
	// "scratchpad-start,otap". Empty keeps the persisted locks.
	Locked string `yaml:"locked"`
	// Firmware is the version reported until a stack is installed.
	Firmware string `yaml:"firmware"`

	// DataDir keeps the flash contents in files. Empty keeps them in
	// memory.
	DataDir      string      `yaml:"data_dir"`
	InternalSize uint32      `yaml:"internal_size"`
	ExternalSize uint32      `yaml:"external_size"`
	Areas        []area.Area `yaml:"areas"`
	// FastFlash completes flash operations without their timing.
	FastFlash bool `yaml:"fast_flash"`

	// Listen is the TCP address serving the MSAP link.
	Listen string `yaml:"listen"`
	// Serial is a tty serving the MSAP link.
	Serial string `yaml:"serial"`
	Baud   int    `yaml:"baud"`

	// MeshURL connects to the mesh, e.g. tcp://hub:4800,
	// ws://hub:4801/mesh or mqtt://broker:1883/mesh/.
	MeshURL string `yaml:"mesh"`
	// RemoteTimeout bounds remote status and update requests.
	RemoteTimeout time.Duration `yaml:"remote_timeout"`

	// Clock drives the loop and flash timing, the system clock if nil.
	Clock fx.Clock `yaml:"-"`
}

var defaultConfig = Config{
	Role:          "node",
	Firmware:      "1.0.0.0",
	InternalSize:  area.DefaultInternalSize,
	ExternalSize:  area.DefaultExternalSize,
	Listen:        "localhost:4700",
	Baud:          115200,
	RemoteTimeout: mesh.DefaultRequestExpiration,
}

var configFile string

func init() {
	if val := os.Getenv("MESHOTA_ADDRESS"); val != "" {
		if addr, err := mesh.ParseAddress(val); err == nil {
			defaultConfig.Address = addr
		}
	} else if addr, err := MachineAddress(); err == nil {
		defaultConfig.Address = addr
	}
	if val := os.Getenv("MESHOTA_MESH_URL"); val != "" {
		defaultConfig.MeshURL = val
	}
	if val := os.Getenv("MESHOTA_LISTEN"); val != "" {
		defaultConfig.Listen = val
	}
	if val := os.Getenv("MESHOTA_DATA_DIR"); val != "" {
		defaultConfig.DataDir = val
	}
	if val := os.Getenv("MESHOTA_CONFIG"); val != "" {
		configFile = val
	}
}

type addressValue struct {
	addr *mesh.Address
}

func (v addressValue) String() string {
	if v.addr == nil {
		return ""
	}
	return v.addr.String()
}

func (v addressValue) Set(s string) error {
	addr, err := mesh.ParseAddress(s)
	if err != nil {
		return err
	}
	*v.addr = addr
	return nil
}

// flagFields copies the value bound to a flag from defaultConfig, so
// flags given on the command line win over the config file.
var flagFields = map[string]func(c *Config){
	"address":  func(c *Config) { c.Address = defaultConfig.Address },
	"role":     func(c *Config) { c.Role = defaultConfig.Role },
	"locked":   func(c *Config) { c.Locked = defaultConfig.Locked },
	"firmware": func(c *Config) { c.Firmware = defaultConfig.Firmware },
	"data":     func(c *Config) { c.DataDir = defaultConfig.DataDir },
	"fast":     func(c *Config) { c.FastFlash = defaultConfig.FastFlash },
	"listen":   func(c *Config) { c.Listen = defaultConfig.Listen },
	"serial":   func(c *Config) { c.Serial = defaultConfig.Serial },
	"baud":     func(c *Config) { c.Baud = defaultConfig.Baud },
	"mesh":     func(c *Config) { c.MeshURL = defaultConfig.MeshURL },
	"remote-timeout": func(c *Config) {
		c.RemoteTimeout = defaultConfig.RemoteTimeout
	},
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&configFile, "config", configFile, "Node config file (YAML)")
	flag.Var(addressValue{&defaultConfig.Address}, "address", "Node address on the mesh")
	flag.StringVar(&defaultConfig.Role, "role", defaultConfig.Role, "Node role: sink, router or node")
	flag.StringVar(&defaultConfig.Locked, "locked", defaultConfig.Locked, "Features locked by the key, comma separated")
	flag.StringVar(&defaultConfig.Firmware, "firmware", defaultConfig.Firmware, "Firmware version before any update")
	flag.StringVar(&defaultConfig.DataDir, "data", defaultConfig.DataDir, "Directory keeping flash contents")
	flag.BoolVar(&defaultConfig.FastFlash, "fast", defaultConfig.FastFlash, "Complete flash operations immediately")
	flag.StringVar(&defaultConfig.Listen, "listen", defaultConfig.Listen, "TCP address serving the MSAP link")
	flag.StringVar(&defaultConfig.Serial, "serial", defaultConfig.Serial, "Serial device serving the MSAP link")
	flag.IntVar(&defaultConfig.Baud, "baud", defaultConfig.Baud, "Serial baud rate")
	flag.StringVar(&defaultConfig.MeshURL, "mesh", defaultConfig.MeshURL, "Mesh URL (tcp://, ws:// or mqtt://)")
	flag.DurationVar(&defaultConfig.RemoteTimeout, "remote-timeout", defaultConfig.RemoteTimeout, "Timeout of remote requests")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations and the
// config file, if one is given.
func NewConfig() (*Config, error) {
	conf := defaultConfig
	if configFile == "" {
		return &conf, nil
	}
	if err := conf.LoadFile(configFile); err != nil {
		return nil, err
	}
	flag.Visit(func(f *flag.Flag) {
		if apply, ok := flagFields[f.Name]; ok {
			apply(&conf)
		}
	})
	return &conf, nil
}

// LoadFile overrides the config with the values in a YAML file.
func (c *Config) LoadFile(fn string) error {
	f, err := os.Open(fn)
	if err != nil {
		return err
	}
	defer f.Close()
	if err = yaml.NewDecoder(f).Decode(c); err != nil {
		return fmt.Errorf("decode config %s: %v", fn, err)
	}
	return nil
}

// MustNewNode creates a Node and fails on error.
func (c *Config) MustNewNode() *Node {
	n, err := New(c)
	if err != nil {
		log.Fatalln(err)
	}
	return n
}

func (c *Config) areas() []area.Area {
	if len(c.Areas) > 0 {
		return c.Areas
	}
	return area.DefaultAreas()
}

func (c *Config) timings() (internal, external flash.Timing) {
	internal = flash.InternalProfile(c.InternalSize)
	external = flash.ExternalProfile(c.ExternalSize)
	if c.FastFlash {
		internal, external = internal.Instant(), external.Instant()
	}
	return
}

func (c *Config) locks() (otap.Locks, bool, error) {
	if c.Locked == "" {
		return otap.Unlocked(), false, nil
	}
	bits, err := otap.ParseLockedFeatures(c.Locked)
	if err != nil {
		return otap.Locks{}, false, err
	}
	return otap.Locks{Bits: bits, KeySet: true}, true, nil
}

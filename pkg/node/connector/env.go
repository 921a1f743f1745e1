// Package connector connects applications to the MSAP link of a node.
package connector

import (
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/url"
	"os"
	"strconv"

	"github.com/robotalks/meshota/pkg/link"
	"github.com/robotalks/meshota/pkg/msap"
)

// Config provides common options to connect to a node.
type Config struct {
	// LinkURL locates the MSAP link, e.g. tcp://localhost:4700 or
	// serial:///dev/ttyUSB0?baud=115200.
	LinkURL string
}

// DefaultBaud is used for serial links without a baud parameter.
const DefaultBaud = 115200

var defaultConfig = Config{
	LinkURL: "tcp://localhost:4700",
}

func init() {
	if val := os.Getenv("MESHOTA_LINK_URL"); val != "" {
		defaultConfig.LinkURL = val
	}
}

// SetupFlags sets up command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.LinkURL, "link", defaultConfig.LinkURL, "MSAP link URL (tcp:// or serial://)")
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

// Open opens the byte stream of the link.
func (c *Config) Open() (io.ReadWriteCloser, error) {
	u, err := url.Parse(c.LinkURL)
	if err != nil {
		return nil, fmt.Errorf("invalid link URL: %v", err)
	}
	switch u.Scheme {
	case "tcp":
		return net.Dial("tcp", u.Host)
	case "serial":
		baud := DefaultBaud
		if val := u.Query().Get("baud"); val != "" {
			if baud, err = strconv.Atoi(val); err != nil {
				return nil, fmt.Errorf("invalid baud rate %q", val)
			}
		}
		return link.OpenSerial(u.Path, baud)
	default:
		return nil, fmt.Errorf("unknown link URL scheme: %q", u.Scheme)
	}
}

// Connect opens the link and creates a client on it. The caller runs
// the client and closes its connection.
func (c *Config) Connect() (*msap.Client, error) {
	rw, err := c.Open()
	if err != nil {
		return nil, err
	}
	return msap.NewClient(link.NewClient(link.NewConn(rw))), nil
}

// MustConnect connects and fails on error.
func (c *Config) MustConnect() *msap.Client {
	client, err := c.Connect()
	if err != nil {
		log.Fatalln(err)
	}
	return client
}

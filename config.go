package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/pflag"
)

// Config holds the application configuration
type Config struct {
	// BindAddress is the address the HTTP API listens on (e.g. "0.0.0.0:8080")
	BindAddress string `toml:"bind_address"`
	// SerialPort is the path to the module's serial port (e.g. "/dev/ttyUSB0")
	SerialPort string `toml:"serial_port"`
	// BaudRate is the baud rate for serial communication with the module
	BaudRate int `toml:"baud_rate"`
	// ReadTimeout bounds a single read on the serial port
	ReadTimeout time.Duration `toml:"read_timeout"`
	// LogLevel sets the logging level (e.g. "debug", "info", "warn", "error")
	LogLevel string `toml:"log_level"`
	// LogFormat selects the log handler ("json" or "text")
	LogFormat string `toml:"log_format"`

	// ResetLine, WakeLine and EventLine name the serial handshake lines wired
	// to the module's RESET, WAKE and EVENT pins (DTR, RTS, CTS, DSR, RI or
	// DCD). Empty means not wired.
	ResetLine string `toml:"reset_line"`
	WakeLine  string `toml:"wake_line"`
	EventLine string `toml:"event_line"`
	// InvertLines is set when a level shifter inverts the handshake lines.
	InvertLines bool `toml:"invert_lines"`
}

// ConfigOption is a function that modifies a Config
type ConfigOption func(*Config) error

// LoadConfig creates a new config by applying the given options in order
func LoadConfig(opts ...ConfigOption) (*Config, error) {
	config := &Config{}

	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, err
		}
	}

	return config, nil
}

// WithDefaults applies default configuration values
func WithDefaults() ConfigOption {
	return func(c *Config) error {
		c.BindAddress = "0.0.0.0:8080"
		c.SerialPort = "/dev/ttyUSB0"
		c.BaudRate = 115200
		c.ReadTimeout = 100 * time.Millisecond
		c.LogLevel = "info"
		c.LogFormat = "json"
		return nil
	}
}

// WithFile overlays the keys defined in a TOML file. An empty path is
// ignored; unknown keys are rejected.
func WithFile(path string) ConfigOption {
	return func(c *Config) error {
		if path == "" {
			return nil
		}
		meta, err := toml.DecodeFile(path, c)
		if err != nil {
			return fmt.Errorf("load config %s: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return fmt.Errorf("load config %s: unknown keys: %s", path, strings.Join(keys, ", "))
		}
		return nil
	}
}

// WithEnv loads configuration from environment variables
func WithEnv() ConfigOption {
	return func(c *Config) error {
		if addr := os.Getenv("BIND_ADDRESS"); addr != "" {
			c.BindAddress = addr
		}

		if serial := os.Getenv("SERIAL_PORT"); serial != "" {
			c.SerialPort = serial
		}

		if baud := os.Getenv("BAUD_RATE"); baud != "" {
			if b, err := strconv.Atoi(baud); err == nil {
				c.BaudRate = b
			}
		}

		if timeout := os.Getenv("READ_TIMEOUT"); timeout != "" {
			if d, err := time.ParseDuration(timeout); err == nil {
				c.ReadTimeout = d
			}
		}

		if level := os.Getenv("LOG_LEVEL"); level != "" {
			c.LogLevel = level
		}

		if format := os.Getenv("LOG_FORMAT"); format != "" {
			c.LogFormat = format
		}

		if line := os.Getenv("RESET_LINE"); line != "" {
			c.ResetLine = line
		}
		if line := os.Getenv("WAKE_LINE"); line != "" {
			c.WakeLine = line
		}
		if line := os.Getenv("EVENT_LINE"); line != "" {
			c.EventLine = line
		}
		if invert := os.Getenv("INVERT_LINES"); invert != "" {
			if b, err := strconv.ParseBool(invert); err == nil {
				c.InvertLines = b
			}
		}

		return nil
	}
}

// WithFlags loads configuration from the command-line flags that were set
func WithFlags(fSet *pflag.FlagSet) ConfigOption {
	return func(c *Config) error {
		var err error
		fSet.Visit(func(f *pflag.Flag) {
			v := f.Value.String()
			switch f.Name {
			case "bind-address":
				c.BindAddress = v
			case "serial-port":
				c.SerialPort = v
			case "baud-rate":
				if b, perr := strconv.Atoi(v); perr == nil {
					c.BaudRate = b
				}
			case "read-timeout":
				if d, perr := time.ParseDuration(v); perr == nil {
					c.ReadTimeout = d
				}
			case "log-level":
				c.LogLevel = v
			case "log-format":
				c.LogFormat = v
			case "reset-line":
				c.ResetLine = v
			case "wake-line":
				c.WakeLine = v
			case "event-line":
				c.EventLine = v
			case "invert-lines":
				b, perr := strconv.ParseBool(v)
				if perr != nil {
					err = fmt.Errorf("invert-lines: %w", perr)
					return
				}
				c.InvertLines = b
			}
		})
		return err
	}
}

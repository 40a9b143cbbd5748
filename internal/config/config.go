// Package config assembles the panelrelay server configuration from defaults,
// an optional YAML file, the environment, and command-line flags, in that
// order of increasing precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ahamlinman/panelrelay/internal/device"
)

// Config represents the server configuration.
type Config struct {
	DeviceBase         string        `yaml:"device_base"`
	StaticZip          string        `yaml:"static_zip"`
	StaticDir          string        `yaml:"static_dir"`
	Port               int           `yaml:"port"`
	Host               string        `yaml:"host"`
	DeviceTimeout      time.Duration `yaml:"device_timeout"`
	StatusPollInterval time.Duration `yaml:"status_poll_interval"`
	MetricsAddr        string        `yaml:"metrics_addr"`
}

const (
	DefaultPort = 8080
	DefaultHost = "0.0.0.0"
)

// DefaultConfig returns the configuration used when nothing overrides it.
func DefaultConfig() *Config {
	return &Config{
		DeviceBase:    device.DefaultBaseURL,
		Port:          DefaultPort,
		Host:          DefaultHost,
		DeviceTimeout: device.DefaultTimeout,
	}
}

// Load builds and validates a Config. args are the command-line arguments
// without the program name. A --config flag or PANELRELAY_CONFIG names the
// YAML file to read, if any.
func Load(args []string, output io.Writer) (*Config, error) {
	fs, fv := newFlagSet(output)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	path := os.Getenv("PANELRELAY_CONFIG")
	if fv.configPath != "" {
		path = fv.configPath
	}

	cfg := DefaultConfig()
	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	fv.apply(fs, cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func applyEnvOverrides(cfg *Config) error {
	if base := os.Getenv("ESP32_BASE"); base != "" {
		cfg.DeviceBase = base
	}
	if zip := os.Getenv("STATIC_ZIP"); zip != "" {
		cfg.StaticZip = zip
	}
	if dir := os.Getenv("STATIC_DIR"); dir != "" {
		cfg.StaticDir = dir
	}
	if host := os.Getenv("PANELRELAY_HOST"); host != "" {
		cfg.Host = host
	}
	if addr := os.Getenv("PANELRELAY_METRICS_ADDR"); addr != "" {
		cfg.MetricsAddr = addr
	}

	if port := os.Getenv("PORT"); port != "" {
		val, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", port, err)
		}
		cfg.Port = val
	}

	if poll := os.Getenv("PANELRELAY_STATUS_POLL"); poll != "" {
		val, err := time.ParseDuration(poll)
		if err != nil {
			return fmt.Errorf("invalid PANELRELAY_STATUS_POLL %q: %w", poll, err)
		}
		cfg.StatusPollInterval = val
	}

	return nil
}

type flagValues struct {
	configPath  string
	zip         string
	dir         string
	port        int
	device      string
	host        string
	metricsAddr string
	statusPoll  time.Duration
}

func newFlagSet(output io.Writer) (*flag.FlagSet, *flagValues) {
	fv := &flagValues{}
	fs := flag.NewFlagSet("panelrelay-server", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&fv.configPath, "config", "", "Path to a YAML configuration file")
	fs.StringVar(&fv.zip, "zip", "", "Path to a ZIP archive holding the panel (index.html inside)")
	fs.StringVar(&fv.dir, "dir", "", "Path to a directory holding the panel (index.html inside)")
	fs.IntVar(&fv.port, "port", DefaultPort, "Port to listen on")
	fs.StringVar(&fv.device, "device", device.DefaultBaseURL, "Base URL of the ESP32 controller")
	fs.StringVar(&fv.host, "host", DefaultHost, "Address to listen on")
	fs.StringVar(&fv.metricsAddr, "metrics-addr", "", "Address for a separate Prometheus metrics listener")
	fs.DurationVar(&fv.statusPoll, "status-poll", 0, "Interval for polling device status, enabling the status socket")
	return fs, fv
}

// apply copies the flags that were explicitly set into cfg, leaving
// everything else as the file and environment left it.
func (fv *flagValues) apply(fs *flag.FlagSet, cfg *Config) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "zip":
			cfg.StaticZip = fv.zip
		case "dir":
			cfg.StaticDir = fv.dir
		case "port":
			cfg.Port = fv.port
		case "device":
			cfg.DeviceBase = fv.device
		case "host":
			cfg.Host = fv.host
		case "metrics-addr":
			cfg.MetricsAddr = fv.metricsAddr
		case "status-poll":
			cfg.StatusPollInterval = fv.statusPoll
		}
	})
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	u, err := url.Parse(c.DeviceBase)
	if err != nil {
		return fmt.Errorf("invalid device base URL: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("device base URL must be an http or https URL, got %q", c.DeviceBase)
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.DeviceTimeout < 0 {
		return errors.New("device timeout cannot be negative")
	}
	if c.StatusPollInterval < 0 {
		return errors.New("status poll interval cannot be negative")
	}
	return nil
}

// Addr returns the address the main HTTP server listens on.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// String returns a string representation of the configuration (for logging).
func (c *Config) String() string {
	return fmt.Sprintf("Config{Addr: %s, Device: %s, Zip: %q, Dir: %q, StatusPoll: %v, Metrics: %q}",
		c.Addr(), c.DeviceBase, c.StaticZip, c.StaticDir, c.StatusPollInterval, c.MetricsAddr)
}

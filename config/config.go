// Package config holds the tunables of the heartbeat initiator and the echo
// responder and loads them from TOML files.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/vinayprograms/echobeat/errors"
)

// DefaultPort is the TCP port both roles use unless configured otherwise.
const DefaultPort = 50007

// Config configures both protocol roles.
type Config struct {
	// Host is the responder host the initiator dials.
	// Default: 127.0.0.1
	Host string `toml:"host"`

	// Port is dialed by the initiator and bound by the responder.
	// Default: 50007
	Port int `toml:"port"`

	// BindAddress is the interface the responder binds. Empty binds all.
	BindAddress string `toml:"bind_address"`

	// Period is the pause between two heartbeats.
	// Default: 60 seconds
	Period Duration `toml:"period"`

	// RetryInterval is the pause between two failed connect attempts.
	// Default: 60 seconds
	RetryInterval Duration `toml:"retry_interval"`

	// MaxConnectAttempts bounds a single connect cycle. Zero retries forever.
	MaxConnectAttempts int `toml:"max_connect_attempts"`

	// SendWaitFactor and ReceiveWaitFactor are multiples of Period bounding
	// the initiator's readiness waits.
	// Default: 4
	SendWaitFactor    int `toml:"send_wait_factor"`
	ReceiveWaitFactor int `toml:"receive_wait_factor"`

	// ResponderWaitFactor is the multiple of Period after which an idle
	// responder connection is closed.
	// Default: 6
	ResponderWaitFactor int `toml:"responder_wait_factor"`

	// ChunkSize is the largest single read.
	// Default: 1024
	ChunkSize int `toml:"chunk_size"`

	// Backlog of pending connections at the responder. Go's listener leaves
	// the queue length to the OS; connections are still handled one at a time.
	// Default: 1
	Backlog int `toml:"backlog"`

	// LogDir is where the per-invocation log file is created.
	// Default: current directory
	LogDir string `toml:"log_dir"`

	// LogLevel is the minimum level written (DEBUG, INFO, WARN, ERROR).
	// Default: INFO
	LogLevel string `toml:"log_level"`

	// Console mirrors the log file to stdout.
	// Default: true
	Console bool `toml:"console"`
}

// DefaultConfig returns a one-minute heartbeat on port 50007.
func DefaultConfig() Config {
	return Config{
		Host:                "127.0.0.1",
		Port:                DefaultPort,
		Period:              Duration(60 * time.Second),
		RetryInterval:       Duration(60 * time.Second),
		SendWaitFactor:      4,
		ReceiveWaitFactor:   4,
		ResponderWaitFactor: 6,
		ChunkSize:           1024,
		Backlog:             1,
		LogDir:              ".",
		LogLevel:            "INFO",
		Console:             true,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.Host) == "" {
		problems = append(problems, "host must not be empty")
	}
	if c.Port <= 0 || c.Port > 65535 {
		problems = append(problems, fmt.Sprintf("port %d out of range", c.Port))
	}
	if c.Period <= 0 {
		problems = append(problems, "period must be positive")
	}
	if c.RetryInterval <= 0 {
		problems = append(problems, "retry_interval must be positive")
	}
	if c.MaxConnectAttempts < 0 {
		problems = append(problems, "max_connect_attempts must not be negative")
	}
	if c.SendWaitFactor <= 0 || c.ReceiveWaitFactor <= 0 || c.ResponderWaitFactor <= 0 {
		problems = append(problems, "wait factors must be positive")
	}
	if c.ChunkSize <= 0 {
		problems = append(problems, "chunk_size must be positive")
	}
	if c.Backlog <= 0 {
		problems = append(problems, "backlog must be positive")
	}
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		problems = append(problems, fmt.Sprintf("unknown log_level %q", c.LogLevel))
	}
	if c.BindAddress != "" && net.ParseIP(c.BindAddress) == nil && !isHostname(c.BindAddress) {
		problems = append(problems, fmt.Sprintf("invalid bind_address %q", c.BindAddress))
	}
	if len(problems) > 0 {
		return errors.InvalidInput(strings.Join(problems, "; "))
	}
	return nil
}

// Endpoint is the host:port the initiator dials.
func (c *Config) Endpoint() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// ListenAddress is the host:port the responder binds.
func (c *Config) ListenAddress() string {
	return net.JoinHostPort(c.BindAddress, strconv.Itoa(c.Port))
}

// SendWait bounds the initiator's wait for writability.
func (c *Config) SendWait() time.Duration {
	return time.Duration(c.SendWaitFactor) * c.Period.Std()
}

// ReceiveWait bounds the initiator's wait for the echoed reply.
func (c *Config) ReceiveWait() time.Duration {
	return time.Duration(c.ReceiveWaitFactor) * c.Period.Std()
}

// ResponderTimeout bounds the responder's wait for inbound data.
func (c *Config) ResponderTimeout() time.Duration {
	return time.Duration(c.ResponderWaitFactor) * c.Period.Std()
}

// LoadFile reads a TOML file on top of DefaultConfig and validates it.
func LoadFile(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.InvalidInput(fmt.Sprintf("read config %s", path), errors.WithCause(err))
	}
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return cfg, errors.InvalidInput(fmt.Sprintf("parse config %s", path), errors.WithCause(err))
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return cfg, errors.InvalidInput(fmt.Sprintf("unknown keys in %s: %s", path, strings.Join(keys, ", ")))
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Load returns DefaultConfig when path is empty and LoadFile otherwise.
func Load(path string) (Config, error) {
	if path == "" {
		cfg := DefaultConfig()
		return cfg, cfg.Validate()
	}
	return LoadFile(path)
}

func isHostname(s string) bool {
	if len(s) > 253 {
		return false
	}
	for _, label := range strings.Split(s, ".") {
		if label == "" || len(label) > 63 {
			return false
		}
		for _, r := range label {
			if !(r == '-' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
				return false
			}
		}
	}
	return true
}

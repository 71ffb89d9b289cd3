package environment

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// HostConfig is one judge-server entry of the hosts TOML file
type HostConfig struct {
	// Server is the base HTTP url; Conn is the control socket address
	Server string `toml:"server"`
	Conn   string `toml:"conn"`

	Uname    string `toml:"uname"`
	Password string `toml:"password"`

	// Optional capability overrides announced on the handshake
	Prio        *int     `toml:"prio"`
	Concurrency *int     `toml:"concurrency"`
	Langs       []string `toml:"langs"`

	DisableStatus bool `toml:"disable_status"`
}

type HostsConfig struct {
	Hosts map[string]HostConfig `toml:"hosts"`
}

// ReadHostsFile parses the hosts TOML file and validates that every
// entry can actually be connected to.
func ReadHostsFile(path string) (*HostsConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read hosts file: %w", err)
	}
	var cfg HostsConfig
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse hosts file: %w", err)
	}
	if len(cfg.Hosts) == 0 {
		return nil, fmt.Errorf("hosts file %s defines no hosts", path)
	}
	for name, h := range cfg.Hosts {
		if h.Server == "" {
			return nil, fmt.Errorf("host %s is missing the server url", name)
		}
		if h.Conn == "" {
			return nil, fmt.Errorf("host %s is missing the control socket address", name)
		}
		if h.Uname == "" || h.Password == "" {
			return nil, fmt.Errorf("host %s is missing credentials", name)
		}
	}
	return &cfg, nil
}

package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// TomlTarget represents one declarative target rule prior to expansion.
// Filepath and URL are templates; Vars holds target-scoped fixed and
// list-valued variables with the same shape as Defs.
type TomlTarget struct {
	Filepath string         `toml:"filepath"`
	URL      string         `toml:"url"`
	Vars     map[string]any `toml:"vars,omitempty"`
}

// TomlConfig represents the top-level configuration. Defs maps variable
// names to either a scalar or a list of scalars; scalars are fixed across
// all expansions while lists are expansion axes. The special keys
// "base" (substituted against the other defs before being exposed) and
// "archive_base_url" (used for post-link rewriting) live in Defs too.
type TomlConfig struct {
	Defs   map[string]any `toml:"defs"`
	Target []TomlTarget   `toml:"target"`
}

// ArchiveBaseURL returns the configured archive base URL, if any.
func (c *TomlConfig) ArchiveBaseURL() string {
	if v, ok := c.Defs["archive_base_url"].(string); ok {
		return v
	}
	return ""
}

func LoadConfig(path string) (*TomlConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config TomlConfig
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return &config, nil
}

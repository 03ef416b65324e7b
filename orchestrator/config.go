package orchestrator

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk YAML configuration of this module's own
// orchestrator (§4.I): where the external search binary lives, which file
// it receives as its `-c<config>` argument (search_config_path, §6), and
// the sampling, partitioning and storage parameters. The search binary
// never reads this file itself.
type FileConfig struct {
	SearchBinPath string  `yaml:"search_bin_path"`
	SearchConfig  string  `yaml:"search_config_path"`
	Epsilon       float64 `yaml:"equivalence_epsilon"`

	MinLength int `yaml:"min_length"`
	MaxLength int `yaml:"max_length"`
	NumMixes  int `yaml:"num_mixes"`

	CachePath string `yaml:"cache_path"`
	MySQLDSN  string `yaml:"mysql_dsn,omitempty"`
}

// LoadFileConfig reads and parses a FileConfig from path, applying the
// same defaults EvoAlgoWrapper's PartitioningInferrer.get_default_config
// hard-codes for equivalence_epsilon.
func LoadFileConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: reading config %q: %w", path, err)
	}
	cfg := &FileConfig{Epsilon: 0.1}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("orchestrator: parsing config %q: %w", path, err)
	}
	if cfg.SearchBinPath == "" {
		return nil, fmt.Errorf("orchestrator: config %q missing search_bin_path", path)
	}
	return cfg, nil
}

// ToSearchConfig builds the SubprocessSearchRunner configuration this file
// describes.
func (c *FileConfig) ToSearchConfig() SearchConfig {
	return SearchConfig{BinPath: c.SearchBinPath, ConfigPath: c.SearchConfig}
}

package bench

import (
	"encoding/json"
	"fmt"
	"os"
)

// Calibration holds the two machine-dependent loop parameters §4.D
// determines once per machine and persists (§4.D "Initial calibration").
type Calibration struct {
	NumTotalDynamicInsns int64 `json:"num_total_dynamic_insns"`
	NumInsnsPerIteration int   `json:"num_insns_per_iteration"`
}

// LoadCalibration reads a persisted calibration from path.
func LoadCalibration(path string) (*Calibration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("bench: reading calibration cache: %w", err)
	}
	var c Calibration
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("bench: parsing calibration cache: %w", err)
	}
	return &c, nil
}

// Save persists c to path as JSON, renaming any prior cache at path to
// "<path>.bak" first (§4.D "the prior cache is renamed .bak on
// re-calibration").
func (c *Calibration) Save(path string) error {
	if _, err := os.Stat(path); err == nil {
		if err := os.Rename(path, path+".bak"); err != nil {
			return fmt.Errorf("bench: backing up prior calibration cache: %w", err)
		}
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

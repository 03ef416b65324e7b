package bench

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/tebeka/atexit"
)

const sysfsCPUFreqDir = "/sys/devices/system/cpu/cpu%d/cpufreq"

func sysfsPath(core int, file string) string {
	return fmt.Sprintf(sysfsCPUFreqDir, core) + "/" + file
}

func readSysfs(core int, file string) (string, error) {
	data, err := os.ReadFile(sysfsPath(core, file))
	if err != nil {
		return "", fmt.Errorf("bench: reading %s: %w", file, err)
	}
	return strings.TrimSpace(string(data)), nil
}

func writeSysfs(core int, file, value string) error {
	if err := os.WriteFile(sysfsPath(core, file), []byte(value), 0o644); err != nil {
		return fmt.Errorf("bench: writing %s: %w", file, err)
	}
	return nil
}

// ReadScalingFreq reads the current scaling frequency (kHz) of core, the
// same value the generated benchmark reads from scaling_cur_freq
// immediately before timing (§4.D, §6).
func ReadScalingFreq(core int) (int64, error) {
	s, err := readSysfs(core, "scaling_cur_freq")
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(s, 10, 64)
}

// FreqPinning holds the prior scaling_governor/scaling_max_freq/
// scaling_min_freq of a core, so they can be restored on teardown.
type FreqPinning struct {
	core          int
	priorGovernor string
	priorMaxFreq  string
	priorMinFreq  string
}

// PinFrequency sets core's governor to "performance" and fixes its scaling
// max and min frequency to its present maximum, in that order — raising
// max first, then raising min to meet it, since the kernel refuses a min
// above the current max (§4.D "Frequency pinning"). It also registers the
// restore with tebeka/atexit; that hook runs only when the process exits
// through atexit.Exit.
func PinFrequency(core int) (*FreqPinning, error) {
	p := &FreqPinning{core: core}

	var err error
	if p.priorGovernor, err = readSysfs(core, "scaling_governor"); err != nil {
		return nil, err
	}
	if p.priorMaxFreq, err = readSysfs(core, "scaling_max_freq"); err != nil {
		return nil, err
	}
	if p.priorMinFreq, err = readSysfs(core, "scaling_min_freq"); err != nil {
		return nil, err
	}

	if err := writeSysfs(core, "scaling_governor", "performance"); err != nil {
		return nil, err
	}
	if err := writeSysfs(core, "scaling_max_freq", p.priorMaxFreq); err != nil {
		return nil, err
	}
	if err := writeSysfs(core, "scaling_min_freq", p.priorMaxFreq); err != nil {
		return nil, err
	}

	atexit.Register(func() { _ = p.restore() })

	return p, nil
}

// Release restores core's governor and scaling min/max to what they were
// before PinFrequency, in the reverse order (min first, then max, then
// governor) so the kernel never rejects an intermediate min > max state.
func (p *FreqPinning) Release() error {
	return p.restore()
}

func (p *FreqPinning) restore() error {
	if err := writeSysfs(p.core, "scaling_min_freq", p.priorMinFreq); err != nil {
		return err
	}
	if err := writeSysfs(p.core, "scaling_max_freq", p.priorMaxFreq); err != nil {
		return err
	}
	return writeSysfs(p.core, "scaling_governor", p.priorGovernor)
}

package bench

import (
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/tklauser/numcpus"
	"golang.org/x/sys/unix"
)

// ValidateCore checks that core names an online CPU, so a typo in
// --core fails fast instead of surfacing as a baffling taskset error deep
// inside the driver.
func ValidateCore(core int) error {
	online, err := numcpus.GetOnline()
	if err != nil {
		return fmt.Errorf("bench: reading online CPU count: %w", err)
	}
	if core < 0 || core >= online {
		return fmt.Errorf("bench: core %d is out of range (machine has %d online CPUs)", core, online)
	}
	return nil
}

// CPUModel reports the model name of the pinned core's CPU, for inclusion
// in calibration-cache metadata and service "get_description" responses
// (§4.H).
func CPUModel(core int) (string, error) {
	infos, err := cpu.Info()
	if err != nil {
		return "", fmt.Errorf("bench: reading CPU info: %w", err)
	}
	if len(infos) == 0 {
		return "", fmt.Errorf("bench: no CPU info reported")
	}
	idx := core
	if idx >= len(infos) {
		idx = 0
	}
	return infos[idx].ModelName, nil
}

// PinSelf locks the calling goroutine to its current OS thread and
// restricts that thread's scheduling affinity to core, so the driver
// itself never migrates off the core it is about to pin the benchmark
// subprocess to (§5 "exclusive access to core"). The caller must keep the
// goroutine alive (e.g. hold the returned unlock until the benchmark
// subprocess has exited) since runtime.UnlockOSThread before then would
// let the goroutine migrate to a fresh, unpinned thread.
func PinSelf(core int) (unlock func(), err error) {
	runtime.LockOSThread()

	var set unix.CPUSet
	set.Zero()
	set.Set(core)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		runtime.UnlockOSThread()
		return nil, fmt.Errorf("bench: pinning driver thread to core %d: %w", core, err)
	}

	return runtime.UnlockOSThread, nil
}

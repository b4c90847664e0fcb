package host

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v3/cpu"
	gohost "github.com/shirou/gopsutil/v3/host"
)

// Facts is what the templates need to know about the machine running the hypervisor.
type Facts struct {
	Arch     string
	VendorID string
	Flags    []string
}

// Prober gathers Facts.
type Prober interface {
	Probe(ctx context.Context) (Facts, error)
}

// SystemProber reads Facts from the local kernel and /proc/cpuinfo.
type SystemProber struct{}

func (SystemProber) Probe(ctx context.Context) (Facts, error) {
	arch, err := gohost.KernelArch()
	if err != nil {
		return Facts{}, fmt.Errorf("could not read machine architecture: %w", err)
	}

	facts := Facts{Arch: arch}

	infos, err := cpu.InfoWithContext(ctx)
	if err != nil {
		return Facts{}, fmt.Errorf("could not read cpu info: %w", err)
	}
	if len(infos) > 0 {
		facts.VendorID = infos[0].VendorID
		facts.Flags = infos[0].Flags
	}

	return facts, nil
}

// Package host derives architecture specific libvirt settings from host facts.
package host

import (
	"fmt"
	"slices"
	"strings"

	"github.com/terabiome/mkcloud/internal/infrastructure/device"
	"github.com/terabiome/mkcloud/templates"
)

// AcceleratedHypervisor is the libvirt domain type with paravirtualized devices.
const AcceleratedHypervisor = "kvm"

// DefaultFirmwareLoaderPath is the UEFI image booted by ARM64 guests.
const DefaultFirmwareLoaderPath = "/usr/share/qemu/aavmf-aarch64-code.bin"

// nestedPagingFlag marks hosts whose CPU already exposes what the override fragments add.
const nestedPagingFlag = "npt"

type ArchClass int

const (
	ArchOther ArchClass = iota
	ArchX86
	ArchARM64
	ArchS390X
)

func (c ArchClass) String() string {
	switch c {
	case ArchX86:
		return "x86"
	case ArchARM64:
		return "arm64"
	case ArchS390X:
		return "s390x"
	default:
		return "other"
	}
}

// Classify maps a raw machine architecture to its class.
func Classify(arch string) ArchClass {
	switch {
	case strings.Contains(arch, "aarch64"), arch == "arm64":
		return ArchARM64
	case strings.Contains(arch, "s390x"):
		return ArchS390X
	case arch == "x86_64", arch == "amd64", strings.HasSuffix(arch, "86"):
		return ArchX86
	default:
		return ArchOther
	}
}

// FragmentReader returns raw template fragments by file name.
type FragmentReader interface {
	Fragment(path string) (string, error)
}

// Profile answers the architecture questions for one host.
type Profile struct {
	facts          Facts
	fragments      FragmentReader
	firmwareLoader string
}

func NewProfile(facts Facts, fragments FragmentReader, firmwareLoader string) *Profile {
	if firmwareLoader == "" {
		firmwareLoader = DefaultFirmwareLoaderPath
	}
	return &Profile{
		facts:          facts,
		fragments:      fragments,
		firmwareLoader: firmwareLoader,
	}
}

func (p *Profile) Facts() Facts {
	return p.facts
}

func (p *Profile) Class() ArchClass {
	return Classify(p.facts.Arch)
}

// MachineArch returns the raw architecture, e.g. x86_64, aarch64 or s390x.
func (p *Profile) MachineArch() string {
	return p.facts.Arch
}

// CPUTemplate names the CPU fragment for this host, or "" when no override is needed.
// The nested paging flag takes precedence over any vendor match.
func (p *Profile) CPUTemplate() string {
	if slices.Contains(p.facts.Flags, nestedPagingFlag) {
		return ""
	}

	switch {
	case p.Class() == ArchARM64:
		return templates.CPUARM64
	case strings.Contains(p.facts.VendorID, "GenuineIntel"):
		return templates.CPUIntel
	case strings.Contains(p.facts.VendorID, "IBM/S390"):
		return templates.CPUS390X
	default:
		return templates.CPUDefault
	}
}

func (p *Profile) CPUFragment() (string, error) {
	name := p.CPUTemplate()
	if name == "" {
		return "", nil
	}

	fragment, err := p.fragments.Fragment(name)
	if err != nil {
		return "", fmt.Errorf("could not read cpu fragment: %w", err)
	}
	return fragment, nil
}

// FirmwareLoaderFragment returns the pflash loader element ARM64 guests boot from.
func (p *Profile) FirmwareLoaderFragment() string {
	if p.Class() != ArchARM64 {
		return ""
	}
	return fmt.Sprintf("\n    <loader readonly='yes' type='pflash'>%s</loader>", p.firmwareLoader)
}

// DefaultVideoFragment is empty on architectures without a default video device.
func (p *Profile) DefaultVideoFragment() (string, error) {
	switch p.Class() {
	case ArchARM64, ArchS390X:
		return "", nil
	}

	fragment, err := p.fragments.Fragment(templates.VideoDefault)
	if err != nil {
		return "", fmt.Errorf("could not read video fragment: %w", err)
	}
	return fragment, nil
}

func (p *Profile) DefaultMachineType() string {
	switch p.Class() {
	case ArchARM64:
		return "virt"
	case ArchS390X:
		return "s390-ccw-virtio"
	default:
		return "pc-0.14"
	}
}

// DiskAddressing is the bus address style virtio disks use on this host.
func (p *Profile) DiskAddressing() device.Addressing {
	if p.Class() == ArchS390X {
		return device.AddressingCCW
	}
	return device.AddressingPCI
}

// SupportsVirtio reports whether hypervisorType offers the paravirtualized
// device path. Anything else falls back to emulated IDE.
func SupportsVirtio(hypervisorType string) bool {
	return hypervisorType == AcceleratedHypervisor
}

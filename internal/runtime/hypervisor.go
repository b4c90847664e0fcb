package runtime

import "errors"

// ErrNotFound is returned by lookups for a domain or network that does not exist.
var ErrNotFound = errors.New("not found")

// UndefineFlags selects extra state removed together with a domain definition.
type UndefineFlags uint

const (
	// UndefineNVRAM also removes the firmware variable store.
	UndefineNVRAM UndefineFlags = 1 << iota
)

// Hypervisor is the subset of the libvirt connection the provisioning code uses.
type Hypervisor interface {
	DomainDefineXML(xml string) (Domain, error)
	LookupDomainByName(name string) (Domain, error)
	ListAllDomains() ([]Domain, error)
	NetworkDefineXML(xml string) (Network, error)
	ListAllNetworks() ([]Network, error)
}

type Domain interface {
	GetName() (string, error)
	IsActive() (bool, error)
	Create() error
	Destroy() error
	Undefine() error
	UndefineFlags(flags UndefineFlags) error
	Free() error
}

type Network interface {
	GetName() (string, error)
	IsActive() (bool, error)
	Destroy() error
	Undefine() error
	Free() error
}

// HypervisorContext holds runtime dependencies for interacting with a hypervisor.
type HypervisorContext struct {
	URI  string     `json:"-"`
	Conn Hypervisor `json:"-"`
}

// Package fakehypervisor is an in-memory runtime.Hypervisor for tests.
package fakehypervisor

import (
	"errors"
	"fmt"
	"sort"

	"github.com/terabiome/mkcloud/internal/runtime"
	"libvirt.org/go/libvirtxml"
)

var ErrInjected = errors.New("injected failure")

// Hypervisor keeps defined domains and networks keyed by name.
type Hypervisor struct {
	domains  map[string]*Domain
	networks map[string]*Network

	// Events records every mutating call as "<verb> <name>".
	Events []string

	FailDefine          bool
	FailCreate          bool
	FailList            bool
	FailUndefineNVRAM   map[string]bool
	FailUndefine        map[string]bool
	FailDestroy         map[string]bool
	FailNetworkUndefine map[string]bool
}

func New() *Hypervisor {
	return &Hypervisor{
		domains:             map[string]*Domain{},
		networks:            map[string]*Network{},
		FailUndefineNVRAM:   map[string]bool{},
		FailUndefine:        map[string]bool{},
		FailDestroy:         map[string]bool{},
		FailNetworkUndefine: map[string]bool{},
	}
}

// AddDomain registers an existing domain without going through XML.
func (h *Hypervisor) AddDomain(name string, active bool) *Domain {
	d := &Domain{h: h, name: name, active: active, defined: true}
	h.domains[name] = d
	return d
}

func (h *Hypervisor) AddNetwork(name string, active bool) *Network {
	n := &Network{h: h, name: name, active: active, defined: true}
	h.networks[name] = n
	return n
}

// DomainNames returns the names of all defined domains, sorted.
func (h *Hypervisor) DomainNames() []string {
	return sortedKeys(h.domains)
}

func (h *Hypervisor) NetworkNames() []string {
	return sortedKeys(h.networks)
}

func (h *Hypervisor) Domain(name string) (*Domain, bool) {
	d, ok := h.domains[name]
	return d, ok
}

func (h *Hypervisor) record(format string, args ...any) {
	h.Events = append(h.Events, fmt.Sprintf(format, args...))
}

func (h *Hypervisor) DomainDefineXML(xml string) (runtime.Domain, error) {
	if h.FailDefine {
		return nil, fmt.Errorf("define domain: %w", ErrInjected)
	}

	var def libvirtxml.Domain
	if err := def.Unmarshal(xml); err != nil {
		return nil, fmt.Errorf("malformed domain XML: %w", err)
	}

	d, exists := h.domains[def.Name]
	if !exists {
		d = &Domain{h: h, name: def.Name}
		h.domains[def.Name] = d
	}
	d.defined = true
	d.XML = xml
	h.record("define %s", def.Name)
	return d, nil
}

func (h *Hypervisor) LookupDomainByName(name string) (runtime.Domain, error) {
	d, ok := h.domains[name]
	if !ok {
		return nil, fmt.Errorf("%w: domain %s", runtime.ErrNotFound, name)
	}
	return d, nil
}

func (h *Hypervisor) ListAllDomains() ([]runtime.Domain, error) {
	if h.FailList {
		return nil, fmt.Errorf("list domains: %w", ErrInjected)
	}

	var result []runtime.Domain
	for _, name := range h.DomainNames() {
		result = append(result, h.domains[name])
	}
	return result, nil
}

func (h *Hypervisor) NetworkDefineXML(xml string) (runtime.Network, error) {
	if h.FailDefine {
		return nil, fmt.Errorf("define network: %w", ErrInjected)
	}

	var def libvirtxml.Network
	if err := def.Unmarshal(xml); err != nil {
		return nil, fmt.Errorf("malformed network XML: %w", err)
	}

	n := &Network{h: h, name: def.Name, defined: true, XML: xml}
	h.networks[def.Name] = n
	h.record("define-network %s", def.Name)
	return n, nil
}

func (h *Hypervisor) ListAllNetworks() ([]runtime.Network, error) {
	if h.FailList {
		return nil, fmt.Errorf("list networks: %w", ErrInjected)
	}

	var result []runtime.Network
	for _, name := range h.NetworkNames() {
		result = append(result, h.networks[name])
	}
	return result, nil
}

type Domain struct {
	h       *Hypervisor
	name    string
	active  bool
	defined bool
	XML     string
}

func (d *Domain) Active() bool {
	return d.active
}

func (d *Domain) GetName() (string, error) {
	return d.name, nil
}

func (d *Domain) IsActive() (bool, error) {
	return d.active, nil
}

func (d *Domain) Create() error {
	if d.h.FailCreate {
		return fmt.Errorf("start domain %s: %w", d.name, ErrInjected)
	}
	if d.active {
		return fmt.Errorf("domain %s is already running", d.name)
	}
	d.active = true
	d.h.record("create %s", d.name)
	return nil
}

func (d *Domain) Destroy() error {
	if d.h.FailDestroy[d.name] {
		return fmt.Errorf("destroy domain %s: %w", d.name, ErrInjected)
	}
	if !d.active {
		return fmt.Errorf("domain %s is not running", d.name)
	}
	d.active = false
	if !d.defined {
		delete(d.h.domains, d.name)
	}
	d.h.record("destroy %s", d.name)
	return nil
}

func (d *Domain) Undefine() error {
	if d.h.FailUndefine[d.name] {
		return fmt.Errorf("undefine domain %s: %w", d.name, ErrInjected)
	}
	return d.undefine("undefine")
}

func (d *Domain) UndefineFlags(flags runtime.UndefineFlags) error {
	if flags&runtime.UndefineNVRAM != 0 && d.h.FailUndefineNVRAM[d.name] {
		return fmt.Errorf("undefine domain %s with nvram: %w", d.name, ErrInjected)
	}
	return d.undefine("undefine-nvram")
}

func (d *Domain) undefine(verb string) error {
	if !d.defined {
		return fmt.Errorf("%w: domain %s", runtime.ErrNotFound, d.name)
	}
	d.defined = false
	if !d.active {
		delete(d.h.domains, d.name)
	}
	d.h.record("%s %s", verb, d.name)
	return nil
}

func (d *Domain) Free() error {
	return nil
}

type Network struct {
	h       *Hypervisor
	name    string
	active  bool
	defined bool
	XML     string
}

func (n *Network) GetName() (string, error) {
	return n.name, nil
}

func (n *Network) IsActive() (bool, error) {
	return n.active, nil
}

func (n *Network) Destroy() error {
	n.active = false
	n.h.record("destroy-network %s", n.name)
	return nil
}

func (n *Network) Undefine() error {
	if n.h.FailNetworkUndefine[n.name] {
		return fmt.Errorf("undefine network %s: %w", n.name, ErrInjected)
	}
	n.defined = false
	delete(n.h.networks, n.name)
	n.h.record("undefine-network %s", n.name)
	return nil
}

func (n *Network) Free() error {
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

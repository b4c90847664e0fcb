package libvirt

import (
	"errors"
	"fmt"

	"github.com/terabiome/mkcloud/internal/runtime"
	"libvirt.org/go/libvirt"
)

// Hypervisor adapts a libvirt connection to runtime.Hypervisor.
type Hypervisor struct {
	conn *libvirt.Connect
}

func NewHypervisor(conn *libvirt.Connect) *Hypervisor {
	return &Hypervisor{conn: conn}
}

func (h *Hypervisor) DomainDefineXML(xml string) (runtime.Domain, error) {
	d, err := h.conn.DomainDefineXML(xml)
	if err != nil {
		return nil, translate(err)
	}
	return &domain{d: d}, nil
}

func (h *Hypervisor) LookupDomainByName(name string) (runtime.Domain, error) {
	d, err := h.conn.LookupDomainByName(name)
	if err != nil {
		return nil, translate(err)
	}
	return &domain{d: d}, nil
}

func (h *Hypervisor) ListAllDomains() ([]runtime.Domain, error) {
	domains, err := h.conn.ListAllDomains(0)
	if err != nil {
		return nil, translate(err)
	}

	result := make([]runtime.Domain, len(domains))
	for i := range domains {
		result[i] = &domain{d: &domains[i]}
	}
	return result, nil
}

func (h *Hypervisor) NetworkDefineXML(xml string) (runtime.Network, error) {
	n, err := h.conn.NetworkDefineXML(xml)
	if err != nil {
		return nil, translate(err)
	}
	return &network{n: n}, nil
}

func (h *Hypervisor) ListAllNetworks() ([]runtime.Network, error) {
	networks, err := h.conn.ListAllNetworks(0)
	if err != nil {
		return nil, translate(err)
	}

	result := make([]runtime.Network, len(networks))
	for i := range networks {
		result[i] = &network{n: &networks[i]}
	}
	return result, nil
}

type domain struct {
	d *libvirt.Domain
}

func (d *domain) GetName() (string, error) {
	name, err := d.d.GetName()
	return name, translate(err)
}

func (d *domain) IsActive() (bool, error) {
	active, err := d.d.IsActive()
	return active, translate(err)
}

func (d *domain) Create() error {
	return translate(d.d.Create())
}

func (d *domain) Destroy() error {
	return translate(d.d.Destroy())
}

func (d *domain) Undefine() error {
	return translate(d.d.Undefine())
}

func (d *domain) UndefineFlags(flags runtime.UndefineFlags) error {
	var native libvirt.DomainUndefineFlagsValues
	if flags&runtime.UndefineNVRAM != 0 {
		native |= libvirt.DOMAIN_UNDEFINE_NVRAM
	}
	return translate(d.d.UndefineFlags(native))
}

func (d *domain) Free() error {
	return translate(d.d.Free())
}

type network struct {
	n *libvirt.Network
}

func (n *network) GetName() (string, error) {
	name, err := n.n.GetName()
	return name, translate(err)
}

func (n *network) IsActive() (bool, error) {
	active, err := n.n.IsActive()
	return active, translate(err)
}

func (n *network) Destroy() error {
	return translate(n.n.Destroy())
}

func (n *network) Undefine() error {
	return translate(n.n.Undefine())
}

func (n *network) Free() error {
	return translate(n.n.Free())
}

// translate maps libvirt's "no such object" errors onto runtime.ErrNotFound.
func translate(err error) error {
	if err == nil {
		return nil
	}

	var lverr libvirt.Error
	if errors.As(err, &lverr) {
		switch lverr.Code {
		case libvirt.ERR_NO_DOMAIN, libvirt.ERR_NO_NETWORK:
			return fmt.Errorf("%w: %s", runtime.ErrNotFound, lverr.Message)
		}
	}
	return err
}

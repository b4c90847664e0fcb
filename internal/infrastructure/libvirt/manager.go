package libvirt

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/terabiome/mkcloud/internal/runtime"
	"libvirt.org/go/libvirtxml"
)

// Dirs locates the transient files a cloud leaves behind on the host.
type Dirs struct {
	Tmp              string
	QemuRun          string
	NetworkState     string
	SysconfigNetwork string
}

// Manager drives domain and network lifecycles on a hypervisor.
type Manager struct {
	fs     afero.Fs
	dirs   Dirs
	logger *slog.Logger
}

func NewManager(fs afero.Fs, dirs Dirs, logger *slog.Logger) *Manager {
	return &Manager{
		fs:     fs,
		dirs:   dirs,
		logger: logger.With(slog.String("component", "libvirt")),
	}
}

// ReadDescriptor loads a rendered domain or network document.
func (m *Manager) ReadDescriptor(path string) (string, error) {
	data, err := afero.ReadFile(m.fs, path)
	if err != nil {
		return "", fmt.Errorf("could not read descriptor: %w", err)
	}
	return string(data), nil
}

// WriteDescriptor stores a rendered document for a later net-start or vm-start.
func (m *Manager) WriteDescriptor(path, xml string) error {
	if err := afero.WriteFile(m.fs, path, []byte(xml), 0o644); err != nil {
		return fmt.Errorf("could not write descriptor: %w", err)
	}
	return nil
}

func networkName(xml string) (string, error) {
	var def libvirtxml.Network
	if err := def.Unmarshal(xml); err != nil {
		return "", fmt.Errorf("could not parse network XML: %w", err)
	}
	if def.Name == "" {
		return "", errors.New("network XML declares no name")
	}
	return def.Name, nil
}

func domainName(xml string) (string, error) {
	var def libvirtxml.Domain
	if err := def.Unmarshal(xml); err != nil {
		return "", fmt.Errorf("could not parse domain XML: %w", err)
	}
	if def.Name == "" {
		return "", errors.New("domain XML declares no name")
	}
	return def.Name, nil
}

// StartNetwork defines the network unless one of the same name is already
// known, active or not. It reports whether a definition took place.
func (m *Manager) StartNetwork(hypervisor runtime.HypervisorContext, xml string) (bool, error) {
	name, err := networkName(xml)
	if err != nil {
		return false, err
	}

	networks, err := hypervisor.Conn.ListAllNetworks()
	if err != nil {
		return false, fmt.Errorf("could not list networks: %w", err)
	}

	exists := false
	for _, network := range networks {
		if n, err := network.GetName(); err == nil && n == name {
			exists = true
		}
		network.Free()
	}
	if exists {
		m.logger.Info("network already defined", slog.String("network", name))
		return false, nil
	}

	network, err := hypervisor.Conn.NetworkDefineXML(xml)
	if err != nil {
		return false, fmt.Errorf("could not define network from XML: %w", err)
	}
	defer network.Free()

	m.logger.Info("defined network", slog.String("network", name))
	return true, nil
}

// StartNode replaces any domain of the same name with a freshly defined one
// and boots it. Failing to remove the old domain is logged, not returned.
func (m *Manager) StartNode(hypervisor runtime.HypervisorContext, xml string) (string, error) {
	name, err := domainName(xml)
	if err != nil {
		return "", err
	}

	m.logger.Debug("cleaning up previous domain", slog.String("domain", name))
	if err := m.CleanupNode(hypervisor, name); err != nil {
		m.logger.Warn("could not remove previous domain",
			slog.String("domain", name),
			slog.String("error", err.Error()),
		)
	}

	domain, err := hypervisor.Conn.DomainDefineXML(xml)
	if err != nil {
		return "", fmt.Errorf("could not define domain from XML: %w", err)
	}
	defer domain.Free()
	m.logger.Debug("defined domain", slog.String("domain", name))

	if err := domain.Create(); err != nil {
		return "", fmt.Errorf("could not start domain %s: %w", name, err)
	}
	m.logger.Info("started domain", slog.String("domain", name))

	return name, nil
}

// CleanupNode stops and removes the named domain. A domain that does not
// exist is already clean.
func (m *Manager) CleanupNode(hypervisor runtime.HypervisorContext, name string) error {
	domain, err := hypervisor.Conn.LookupDomainByName(name)
	if errors.Is(err, runtime.ErrNotFound) {
		m.logger.Info("no domain found", slog.String("domain", name))
		return nil
	}
	if err != nil {
		return fmt.Errorf("could not look up domain %s: %w", name, err)
	}
	defer domain.Free()

	return m.StopAndRemoveDomain(domain)
}

type undefineStrategy struct {
	name string
	run  func(runtime.Domain) error
}

// undefineStrategies are tried in order until one succeeds.
var undefineStrategies = []undefineStrategy{
	{"nvram", func(d runtime.Domain) error { return d.UndefineFlags(runtime.UndefineNVRAM) }},
	{"plain", func(d runtime.Domain) error { return d.Undefine() }},
}

// StopAndRemoveDomain force-stops a running domain and undefines it.
func (m *Manager) StopAndRemoveDomain(domain runtime.Domain) error {
	name, err := domain.GetName()
	if err != nil {
		return fmt.Errorf("could not read domain name: %w", err)
	}
	log := m.logger.With(slog.String("domain", name))

	active, err := domain.IsActive()
	if err != nil {
		return fmt.Errorf("could not read state of domain %s: %w", name, err)
	}
	if active {
		log.Info("destroying domain")
		if err := domain.Destroy(); err != nil {
			return fmt.Errorf("could not destroy domain %s: %w", name, err)
		}
	}

	var errs []error
	for _, strategy := range undefineStrategies {
		err := strategy.run(domain)
		if err == nil {
			log.Info("undefined domain", slog.String("strategy", strategy.name))
			return nil
		}
		log.Debug("undefine attempt failed",
			slog.String("strategy", strategy.name),
			slog.String("error", err.Error()),
		)
		errs = append(errs, fmt.Errorf("%s: %w", strategy.name, err))
	}

	return fmt.Errorf("could not undefine domain %s: %w", name, errors.Join(errs...))
}

// TeardownOptions locate the public VLAN interface file of a cloud.
type TeardownOptions struct {
	Bridge     string
	VLANPublic string
}

// TeardownCloud removes every domain named "{cloud}-*", the "{cloud}-admin"
// network and the cloud's transient descriptor files. Failing to remove a
// found domain, network or file is logged as a warning and skipped. Only a
// failure to list the domains is returned.
func (m *Manager) TeardownCloud(hypervisor runtime.HypervisorContext, cloud string, opts TeardownOptions) error {
	log := m.logger.With(slog.String("cloud", cloud))
	failures := 0
	warn := func(err error) {
		failures++
		log.Warn("teardown step failed", slog.String("error", err.Error()))
	}

	domains, listErr := hypervisor.Conn.ListAllDomains()
	if listErr != nil {
		listErr = fmt.Errorf("could not list domains of cloud %s: %w", cloud, listErr)
		log.Error("teardown could not list domains", slog.String("error", listErr.Error()))
	}
	for _, domain := range domains {
		name, err := domain.GetName()
		switch {
		case err != nil:
			warn(fmt.Errorf("could not read domain name: %w", err))
		case strings.HasPrefix(name, cloud+"-"):
			if err := m.StopAndRemoveDomain(domain); err != nil {
				warn(err)
			}
		}
		domain.Free()
	}

	if err := m.removeNetwork(hypervisor, cloud+"-admin"); err != nil {
		warn(err)
	}

	for _, path := range m.transientFiles(cloud, opts) {
		if err := m.removeFiles(path); err != nil {
			warn(err)
		}
	}

	if failures > 0 {
		log.Warn("cloud teardown left resources behind", slog.Int("failures", failures))
	}
	return listErr
}

func (m *Manager) removeNetwork(hypervisor runtime.HypervisorContext, name string) error {
	networks, err := hypervisor.Conn.ListAllNetworks()
	if err != nil {
		return fmt.Errorf("could not list networks: %w", err)
	}

	var result error
	for _, network := range networks {
		if n, err := network.GetName(); err == nil && n == name {
			result = m.stopAndUndefineNetwork(network, name)
		}
		network.Free()
	}
	return result
}

func (m *Manager) stopAndUndefineNetwork(network runtime.Network, name string) error {
	m.logger.Info("cleaning up network", slog.String("network", name))

	active, err := network.IsActive()
	if err != nil {
		return fmt.Errorf("could not read state of network %s: %w", name, err)
	}
	if active {
		if err := network.Destroy(); err != nil {
			return fmt.Errorf("could not destroy network %s: %w", name, err)
		}
	}
	if err := network.Undefine(); err != nil {
		return fmt.Errorf("could not undefine network %s: %w", name, err)
	}
	return nil
}

// transientFiles returns glob patterns for the files a cloud leaves on the host.
func (m *Manager) transientFiles(cloud string, opts TeardownOptions) []string {
	pattern := cloud + "-*.xml"
	paths := []string{
		filepath.Join(m.dirs.Tmp, pattern),
		filepath.Join(m.dirs.QemuRun, pattern),
		filepath.Join(m.dirs.NetworkState, pattern),
	}
	if opts.Bridge != "" && opts.VLANPublic != "" {
		paths = append(paths, filepath.Join(m.dirs.SysconfigNetwork,
			fmt.Sprintf("ifcfg-%s.%s", opts.Bridge, opts.VLANPublic)))
	}
	return paths
}

func (m *Manager) removeFiles(pattern string) error {
	matches, err := afero.Glob(m.fs, pattern)
	if err != nil {
		return fmt.Errorf("could not expand %s: %w", pattern, err)
	}

	var errs []error
	for _, path := range matches {
		if err := m.fs.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, fmt.Errorf("could not remove %s: %w", path, err))
			continue
		}
		m.logger.Debug("removed file", slog.String("path", path))
	}
	return errors.Join(errs...)
}

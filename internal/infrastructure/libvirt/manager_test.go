package libvirt

import (
	"io"
	"log/slog"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/suite"
	"github.com/terabiome/mkcloud/internal/runtime"
	"github.com/terabiome/mkcloud/internal/runtime/fakehypervisor"
)

const nodeXML = `<domain type='kvm'>
  <name>demo-node1</name>
  <memory unit='KiB'>1024</memory>
  <os><type>hvm</type></os>
</domain>`

const networkXML = `<network>
  <name>demo-admin</name>
  <bridge name='demobr'/>
</network>`

type ManagerSuite struct {
	suite.Suite

	fs      afero.Fs
	fake    *fakehypervisor.Hypervisor
	hv      runtime.HypervisorContext
	manager *Manager
}

func TestManagerSuite(t *testing.T) {
	suite.Run(t, new(ManagerSuite))
}

func (s *ManagerSuite) SetupTest() {
	s.fs = afero.NewMemMapFs()
	s.fake = fakehypervisor.New()
	s.hv = runtime.HypervisorContext{URI: "test:///default", Conn: s.fake}
	s.manager = NewManager(s.fs, Dirs{
		Tmp:              "/tmp",
		QemuRun:          "/var/run/libvirt/qemu",
		NetworkState:     "/var/lib/libvirt/network",
		SysconfigNetwork: "/etc/sysconfig/network",
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func (s *ManagerSuite) touch(paths ...string) {
	for _, path := range paths {
		s.Require().NoError(afero.WriteFile(s.fs, path, []byte("<x/>"), 0o644))
	}
}

func (s *ManagerSuite) exists(path string) bool {
	ok, err := afero.Exists(s.fs, path)
	s.Require().NoError(err)
	return ok
}

func (s *ManagerSuite) TestStartNetworkDefinesOnce() {
	defined, err := s.manager.StartNetwork(s.hv, networkXML)
	s.Require().NoError(err)
	s.True(defined)

	defined, err = s.manager.StartNetwork(s.hv, networkXML)
	s.Require().NoError(err)
	s.False(defined)

	s.Equal([]string{"demo-admin"}, s.fake.NetworkNames())
	s.Equal([]string{"define-network demo-admin"}, s.fake.Events)
}

func (s *ManagerSuite) TestStartNetworkSkipsInactiveNetwork() {
	s.fake.AddNetwork("demo-admin", false)

	defined, err := s.manager.StartNetwork(s.hv, networkXML)
	s.Require().NoError(err)
	s.False(defined)
	s.Empty(s.fake.Events)
}

func (s *ManagerSuite) TestStartNetworkRejectsMalformedXML() {
	_, err := s.manager.StartNetwork(s.hv, "<network>")
	s.Error(err)

	_, err = s.manager.StartNetwork(s.hv, "<network/>")
	s.ErrorContains(err, "declares no name")
}

func (s *ManagerSuite) TestStartNodeTwiceLeavesOneDomain() {
	name, err := s.manager.StartNode(s.hv, nodeXML)
	s.Require().NoError(err)
	s.Equal("demo-node1", name)

	_, err = s.manager.StartNode(s.hv, nodeXML)
	s.Require().NoError(err)

	s.Equal([]string{"demo-node1"}, s.fake.DomainNames())
	domain, ok := s.fake.Domain("demo-node1")
	s.Require().True(ok)
	s.True(domain.Active())

	s.Equal([]string{
		"define demo-node1",
		"create demo-node1",
		"destroy demo-node1",
		"undefine-nvram demo-node1",
		"define demo-node1",
		"create demo-node1",
	}, s.fake.Events)
}

func (s *ManagerSuite) TestStartNodeFallsBackToPlainUndefine() {
	s.fake.AddDomain("demo-node1", false)
	s.fake.FailUndefineNVRAM["demo-node1"] = true

	_, err := s.manager.StartNode(s.hv, nodeXML)
	s.Require().NoError(err)
	s.Equal([]string{"undefine demo-node1", "define demo-node1", "create demo-node1"}, s.fake.Events)
}

func (s *ManagerSuite) TestStartNodeContinuesWhenUndefineFails() {
	s.fake.AddDomain("demo-node1", false)
	s.fake.FailUndefineNVRAM["demo-node1"] = true
	s.fake.FailUndefine["demo-node1"] = true

	_, err := s.manager.StartNode(s.hv, nodeXML)
	s.Require().NoError(err)
	s.Equal([]string{"define demo-node1", "create demo-node1"}, s.fake.Events)
}

func (s *ManagerSuite) TestStartNodeSurfacesDefineErrors() {
	s.fake.FailDefine = true

	_, err := s.manager.StartNode(s.hv, nodeXML)
	s.ErrorIs(err, fakehypervisor.ErrInjected)
	s.Empty(s.fake.DomainNames())
}

func (s *ManagerSuite) TestStartNodeSurfacesCreateErrors() {
	s.fake.FailCreate = true

	_, err := s.manager.StartNode(s.hv, nodeXML)
	s.ErrorIs(err, fakehypervisor.ErrInjected)
}

func (s *ManagerSuite) TestCleanupNodeMissingDomain() {
	s.NoError(s.manager.CleanupNode(s.hv, "demo-node9"))
	s.Empty(s.fake.Events)
}

func (s *ManagerSuite) TestStopAndRemoveDomainReportsAllStrategies() {
	domain := s.fake.AddDomain("demo-node1", true)
	s.fake.FailUndefineNVRAM["demo-node1"] = true
	s.fake.FailUndefine["demo-node1"] = true

	err := s.manager.StopAndRemoveDomain(domain)
	s.ErrorIs(err, fakehypervisor.ErrInjected)
	s.ErrorContains(err, "nvram")
	s.ErrorContains(err, "plain")
	s.False(domain.Active())
}

func (s *ManagerSuite) TestTeardownCloud() {
	for _, name := range []string{"demo-admin", "demo-node1", "demo-node2", "other-node1"} {
		s.fake.AddDomain(name, true)
	}
	s.fake.AddNetwork("demo-admin", true)
	s.fake.AddNetwork("other-admin", true)
	s.touch(
		"/tmp/demo-node1.xml",
		"/tmp/other-node1.xml",
		"/var/run/libvirt/qemu/demo-admin.xml",
		"/var/lib/libvirt/network/demo-admin.xml",
		"/etc/sysconfig/network/ifcfg-demobr.300",
	)

	err := s.manager.TeardownCloud(s.hv, "demo", TeardownOptions{Bridge: "demobr", VLANPublic: "300"})
	s.Require().NoError(err)

	s.Equal([]string{"other-node1"}, s.fake.DomainNames())
	s.Equal([]string{"other-admin"}, s.fake.NetworkNames())
	s.False(s.exists("/tmp/demo-node1.xml"))
	s.False(s.exists("/var/run/libvirt/qemu/demo-admin.xml"))
	s.False(s.exists("/var/lib/libvirt/network/demo-admin.xml"))
	s.False(s.exists("/etc/sysconfig/network/ifcfg-demobr.300"))
	s.True(s.exists("/tmp/other-node1.xml"))
}

func (s *ManagerSuite) TestTeardownCloudSwallowsRemovalFailures() {
	s.fake.AddDomain("demo-node1", true)
	s.fake.AddDomain("demo-node2", true)
	s.fake.AddDomain("demo-node3", false)
	s.fake.AddNetwork("demo-admin", false)
	s.fake.FailDestroy["demo-node1"] = true
	s.fake.FailUndefineNVRAM["demo-node3"] = true
	s.fake.FailUndefine["demo-node3"] = true
	s.fake.FailNetworkUndefine["demo-admin"] = true
	s.touch("/tmp/demo-node2.xml")

	s.Require().NoError(s.manager.TeardownCloud(s.hv, "demo", TeardownOptions{}))

	s.Equal([]string{"demo-node1", "demo-node3"}, s.fake.DomainNames())
	s.Equal([]string{"demo-admin"}, s.fake.NetworkNames())
	s.False(s.exists("/tmp/demo-node2.xml"))
}

func (s *ManagerSuite) TestTeardownCloudReportsListFailure() {
	s.fake.FailList = true
	s.touch("/tmp/demo-node1.xml")

	err := s.manager.TeardownCloud(s.hv, "demo", TeardownOptions{})
	s.ErrorIs(err, fakehypervisor.ErrInjected)
	s.ErrorContains(err, "could not list domains of cloud demo")
	s.False(s.exists("/tmp/demo-node1.xml"))
}

func (s *ManagerSuite) TestTeardownCloudWithoutVLANKeepsInterfaceFiles() {
	s.touch("/etc/sysconfig/network/ifcfg-demobr.300")

	s.Require().NoError(s.manager.TeardownCloud(s.hv, "demo", TeardownOptions{Bridge: "demobr"}))
	s.True(s.exists("/etc/sysconfig/network/ifcfg-demobr.300"))
}

func (s *ManagerSuite) TestDescriptorRoundTrip() {
	s.Require().NoError(s.manager.WriteDescriptor("/tmp/demo-node1.xml", nodeXML))

	xml, err := s.manager.ReadDescriptor("/tmp/demo-node1.xml")
	s.Require().NoError(err)
	s.Equal(nodeXML, xml)

	_, err = s.manager.ReadDescriptor("/tmp/missing.xml")
	s.Error(err)
}

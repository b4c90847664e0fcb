package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/terabiome/mkcloud/internal/api"
	"github.com/terabiome/mkcloud/internal/infrastructure/host"
	"github.com/terabiome/mkcloud/internal/infrastructure/libvirt"
	"github.com/terabiome/mkcloud/internal/runtime"
	"github.com/terabiome/mkcloud/internal/runtime/fakehypervisor"
	"github.com/terabiome/mkcloud/pkg/templator"
	"github.com/terabiome/mkcloud/templates"
)

type fakeProvider struct {
	fake     *fakehypervisor.Hypervisor
	err      error
	released int
}

func (p *fakeProvider) GetHypervisor() (runtime.HypervisorContext, func(), error) {
	if p.err != nil {
		return runtime.HypervisorContext{}, nil, p.err
	}
	return runtime.HypervisorContext{URI: "test:///default", Conn: p.fake}, func() { p.released++ }, nil
}

func newService(t *testing.T) (*CloudService, *fakeProvider, afero.Fs) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := templator.NewEngine(templates.FS)
	require.NoError(t, libvirt.LoadTemplates(engine))

	profile := host.NewProfile(host.Facts{Arch: "x86_64", VendorID: "AuthenticAMD"}, engine, "")
	fs := afero.NewMemMapFs()
	manager := libvirt.NewManager(fs, libvirt.Dirs{Tmp: "/tmp"}, logger)
	provider := &fakeProvider{fake: fakehypervisor.New()}

	return NewCloudService(libvirt.NewAssembler(engine, profile, logger), manager, provider, logger), provider, fs
}

func computeRequest(node int) api.ComputeRequest {
	return api.ComputeRequest{
		Cloud:                 "demo",
		NodeCounter:           node,
		NumControllers:        1,
		ControllerNodeMemory:  4194304,
		ComputeNodeMemory:     2097152,
		ControllerRAIDVolumes: 2,
		VCPUs:                 1,
		Emulator:              "/usr/bin/qemu-kvm",
		VDiskDir:              "/dev/cloud",
		MACAddress:            "52:54:01:77:77:01",
		BootOrder:             3,
		LibvirtType:           "kvm",
	}
}

func TestRenderStartAndTeardown(t *testing.T) {
	svc, provider, fs := newService(t)
	ctx := context.Background()

	network, err := svc.RenderNetwork(ctx, api.NetRequest{
		Cloud:        "demo",
		CloudBridge:  "demobr",
		AdminGateway: "192.168.124.1",
		AdminNetmask: "255.255.248.0",
		CloudFQDN:    "demo.example.com",
		AdminIP:      "192.168.124.10",
		ForwardMode:  "nat",
	})
	require.NoError(t, err)

	defined, err := svc.StartNetwork(ctx, api.DescriptorRequest{XML: network})
	require.NoError(t, err)
	assert.True(t, defined)

	for _, node := range []int{1, 2} {
		xml, err := svc.RenderCompute(ctx, computeRequest(node))
		require.NoError(t, err)

		path := fmt.Sprintf("/tmp/demo-node%d.xml", node)
		require.NoError(t, svc.WriteDescriptor(path, xml))

		stored, err := svc.ReadDescriptor(path)
		require.NoError(t, err)

		_, err = svc.StartNode(ctx, api.DescriptorRequest{XML: stored})
		require.NoError(t, err)
	}

	provider.fake.AddDomain("other-node1", true)
	assert.Equal(t, []string{"demo-node1", "demo-node2", "other-node1"}, provider.fake.DomainNames())

	require.NoError(t, svc.TeardownCloud(ctx, api.TeardownRequest{Cloud: "demo"}))
	assert.Equal(t, []string{"other-node1"}, provider.fake.DomainNames())
	assert.Empty(t, provider.fake.NetworkNames())

	left, err := afero.Glob(fs, "/tmp/*.xml")
	require.NoError(t, err)
	assert.Empty(t, left)

	assert.Equal(t, 4, provider.released)
}

func TestCleanupNode(t *testing.T) {
	svc, provider, _ := newService(t)
	provider.fake.AddDomain("demo-node1", true)

	require.NoError(t, svc.CleanupNode(context.Background(), api.NodeRequest{Name: "demo-node1"}))
	assert.Empty(t, provider.fake.DomainNames())

	assert.Error(t, svc.CleanupNode(context.Background(), api.NodeRequest{}))
}

func TestTeardownToleratesStuckDomains(t *testing.T) {
	svc, provider, _ := newService(t)
	provider.fake.AddDomain("demo-node1", true)
	provider.fake.AddDomain("demo-node2", true)
	provider.fake.FailDestroy["demo-node1"] = true

	require.NoError(t, svc.TeardownCloud(context.Background(), api.TeardownRequest{Cloud: "demo"}))
	assert.Equal(t, []string{"demo-node1"}, provider.fake.DomainNames())
}

func TestTeardownReportsListFailure(t *testing.T) {
	svc, provider, _ := newService(t)
	provider.fake.FailList = true

	err := svc.TeardownCloud(context.Background(), api.TeardownRequest{Cloud: "demo"})
	assert.ErrorIs(t, err, fakehypervisor.ErrInjected)
	assert.ErrorContains(t, err, "teardown of cloud demo failed")
}

func TestConnectionFailure(t *testing.T) {
	svc, provider, _ := newService(t)
	provider.err = errors.New("connection refused")

	_, err := svc.StartNode(context.Background(), api.DescriptorRequest{XML: "<domain/>"})
	assert.ErrorContains(t, err, "connection refused")

	err = svc.TeardownCloud(context.Background(), api.TeardownRequest{Cloud: "demo"})
	assert.ErrorContains(t, err, "failed to get hypervisor connection")
}

func TestDescriptorValidation(t *testing.T) {
	svc, provider, _ := newService(t)

	_, err := svc.StartNetwork(context.Background(), api.DescriptorRequest{})
	assert.ErrorContains(t, err, "invalid network descriptor")
	assert.Zero(t, provider.released)
}

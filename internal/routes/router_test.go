package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/terabiome/mkcloud/internal/handler"
	"github.com/terabiome/mkcloud/internal/infrastructure/host"
	"github.com/terabiome/mkcloud/internal/infrastructure/libvirt"
	"github.com/terabiome/mkcloud/internal/runtime"
	"github.com/terabiome/mkcloud/internal/runtime/fakehypervisor"
	"github.com/terabiome/mkcloud/internal/service"
	"github.com/terabiome/mkcloud/pkg/executor"
	"github.com/terabiome/mkcloud/pkg/templator"
	"github.com/terabiome/mkcloud/templates"
)

type staticProvider struct {
	fake *fakehypervisor.Hypervisor
}

func (p staticProvider) GetHypervisor() (runtime.HypervisorContext, func(), error) {
	return runtime.HypervisorContext{Conn: p.fake}, func() {}, nil
}

type response struct {
	Body    json.RawMessage `json:"body"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

func newServer(t *testing.T) (*httptest.Server, *fakehypervisor.Hypervisor) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := templator.NewEngine(templates.FS)
	require.NoError(t, libvirt.LoadTemplates(engine))

	profile := host.NewProfile(host.Facts{Arch: "x86_64", VendorID: "GenuineIntel"}, engine, "")
	fake := fakehypervisor.New()
	cloudService := service.NewCloudService(
		libvirt.NewAssembler(engine, profile, logger),
		libvirt.NewManager(afero.NewMemMapFs(), libvirt.Dirs{Tmp: "/tmp"}, logger),
		staticProvider{fake: fake},
		logger,
	)
	lscpu := executor.Func(func(_ context.Context, stdout, _ io.Writer, _ string, _ ...string) (int, error) {
		io.WriteString(stdout, "Architecture: x86_64\n")
		return 0, nil
	})

	router := SetupMux(handler.NewCloud(cloudService, logger), handler.NewSystem(profile, lscpu, logger))
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server, fake
}

func post(t *testing.T, server *httptest.Server, path string, body any) (int, response) {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(server.URL+path, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp.StatusCode, decoded
}

func computeBody(raid int) map[string]any {
	return map[string]any{
		"cloud":                   "demo",
		"node_counter":            1,
		"num_controllers":         1,
		"controller_node_memory":  4194304,
		"compute_node_memory":     2097152,
		"controller_raid_volumes": raid,
		"vcpus":                   2,
		"emulator":                "/usr/bin/qemu-kvm",
		"vdisk_dir":               "/dev/cloud",
		"mac_address":             "52:54:01:77:77:01",
		"boot_order":              3,
		"libvirt_type":            "kvm",
	}
}

func TestRenderAndStartNode(t *testing.T) {
	server, fake := newServer(t)

	status, resp := post(t, server, "/api/v1/render/compute", computeBody(2))
	require.Equal(t, http.StatusOK, status, resp.Error)

	var rendered struct {
		XML string `json:"xml"`
	}
	require.NoError(t, json.Unmarshal(resp.Body, &rendered))
	assert.Contains(t, rendered.XML, "<serial>demo-node1-raid2</serial>")

	status, resp = post(t, server, "/api/v1/node/start", map[string]string{"xml": rendered.XML})
	require.Equal(t, http.StatusOK, status, resp.Error)
	assert.Equal(t, []string{"demo-node1"}, fake.DomainNames())

	status, _ = post(t, server, "/api/v1/node/cleanup", map[string]string{"name": "demo-node1"})
	assert.Equal(t, http.StatusOK, status)
	assert.Empty(t, fake.DomainNames())
}

func TestRenderErrorsAreBadRequests(t *testing.T) {
	server, _ := newServer(t)

	status, resp := post(t, server, "/api/v1/render/compute", computeBody(7))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, resp.Error, "overflow")

	status, _ = post(t, server, "/api/v1/render/network", map[string]string{"cloud": "demo"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, resp = post(t, server, "/api/v1/render/admin", map[string]string{"colud": "demo"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid request body", resp.Message)
}

func TestTeardown(t *testing.T) {
	server, fake := newServer(t)
	fake.AddDomain("demo-admin", true)
	fake.AddDomain("demo-node1", true)
	fake.AddDomain("other-node1", true)
	fake.FailDestroy["demo-node1"] = true

	status, resp := post(t, server, "/api/v1/cloud/teardown", map[string]string{"cloud": "demo"})
	require.Equal(t, http.StatusOK, status, resp.Error)
	assert.Equal(t, []string{"demo-node1", "other-node1"}, fake.DomainNames())

	fake.FailList = true
	status, _ = post(t, server, "/api/v1/cloud/teardown", map[string]string{"cloud": "demo"})
	assert.Equal(t, http.StatusInternalServerError, status)
}

func TestHostInfoAndHeartbeat(t *testing.T) {
	server, _ := newServer(t)

	resp, err := http.Get(server.URL + "/api/v1/system/host-info")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var decoded struct {
		Body service.HostInfo `json:"body"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	assert.Equal(t, "x86", decoded.Body.Class)
	assert.Equal(t, []string{"Architecture: x86_64"}, decoded.Body.CPUInfo)

	heartbeat, err := http.Get(server.URL + "/heartbeat")
	require.NoError(t, err)
	heartbeat.Body.Close()
	assert.Equal(t, http.StatusOK, heartbeat.StatusCode)
}

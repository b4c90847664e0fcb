package libvirt

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/terabiome/mkcloud/internal/api"
	"github.com/terabiome/mkcloud/internal/infrastructure/device"
	"github.com/terabiome/mkcloud/internal/infrastructure/host"
	"github.com/terabiome/mkcloud/pkg/constants"
	"github.com/terabiome/mkcloud/pkg/templator"
)

// serialPattern matches what qemu rejects in a disk serial.
var serialPattern = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// SanitizeSerial makes a cloud name usable inside a disk serial.
func SanitizeSerial(cloud string) string {
	return serialPattern.ReplaceAllString(cloud, "_")
}

// DomainUUID derives a stable UUID from a domain name.
func DomainUUID(name string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("mkcloud:"+name))
}

// Assembler renders admin node, admin network and compute node descriptors.
type Assembler struct {
	engine   *templator.Engine
	profile  *host.Profile
	validate *validator.Validate
	logger   *slog.Logger
}

// NewAssembler expects engine to have the templates from LoadTemplates.
func NewAssembler(engine *templator.Engine, profile *host.Profile, logger *slog.Logger) *Assembler {
	return &Assembler{
		engine:   engine,
		profile:  profile,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger.With(slog.String("component", "assembler")),
	}
}

func (a *Assembler) AdminConfig(req api.AdminRequest) (string, error) {
	if err := a.validate.Struct(req); err != nil {
		return "", fmt.Errorf("invalid admin node request: %w", err)
	}

	var localRepoMount string
	if req.LocalRepoSource != "" && req.LocalRepoTarget != "" {
		mount, err := a.engine.Render(constants.TemplateLocalRepoMount, LocalRepoMountVars{
			SourceDir: req.LocalRepoSource,
			TargetDir: req.LocalRepoTarget,
		})
		if err != nil {
			return "", fmt.Errorf("could not render local repository mount: %w", err)
		}
		localRepoMount = mount
	}

	cpuFlags, err := a.profile.CPUFragment()
	if err != nil {
		return "", err
	}

	video, err := a.profile.DefaultVideoFragment()
	if err != nil {
		return "", err
	}

	name := req.Cloud + "-admin"
	xml, err := a.engine.Render(constants.TemplateAdminNode, AdminNodeVars{
		Cloud:                req.Cloud,
		UUID:                 DomainUUID(name).String(),
		AdminNodeMemory:      req.AdminNodeMemory,
		AdminVCPUs:           req.AdminVCPUs,
		March:                a.profile.MachineArch(),
		Machine:              a.profile.DefaultMachineType(),
		OSLoader:             a.profile.FirmwareLoaderFragment(),
		CPUFlags:             cpuFlags,
		Emulator:             req.Emulator,
		AdminNodeDisk:        req.AdminNodeDisk,
		LocalRepositoryMount: localRepoMount,
		VideoDevices:         video,
	})
	if err != nil {
		return "", fmt.Errorf("could not create admin node XML: %w", err)
	}

	a.logger.Debug("rendered admin node XML", slog.String("domain", name))
	return xml, nil
}

func (a *Assembler) NetConfig(req api.NetRequest) (string, error) {
	if err := a.validate.Struct(req); err != nil {
		return "", fmt.Errorf("invalid admin network request: %w", err)
	}

	xml, err := a.engine.Render(constants.TemplateAdminNetwork, NetworkVars{
		Cloud:        req.Cloud,
		CloudBridge:  req.CloudBridge,
		AdminGateway: req.AdminGateway,
		AdminNetmask: req.AdminNetmask,
		CloudFQDN:    req.CloudFQDN,
		AdminIP:      req.AdminIP,
		ForwardMode:  req.ForwardMode,
	})
	if err != nil {
		return "", fmt.Errorf("could not create admin network XML: %w", err)
	}

	a.logger.Debug("rendered admin network XML", slog.String("network", req.Cloud+"-admin"))
	return xml, nil
}

// nodeTier applies the controller/compute split: controllers get controller
// memory and RAID volumes, every other node compute memory and none.
func nodeTier(req api.ComputeRequest) (memory uint64, raidVolumes int) {
	if req.NodeCounter > req.NumControllers {
		return req.ComputeNodeMemory, 0
	}
	return req.ControllerNodeMemory, req.ControllerRAIDVolumes
}

func (a *Assembler) ComputeConfig(req api.ComputeRequest) (string, error) {
	if err := a.validate.Struct(req); err != nil {
		return "", fmt.Errorf("invalid compute node request: %w", err)
	}

	machine := req.Machine
	if machine == "" {
		machine = a.profile.DefaultMachineType()
	}

	virtio := host.SupportsVirtio(req.LibvirtType)
	nicModel, targetBus := "e1000", "ide"
	if virtio {
		nicModel, targetBus = "virtio", "virtio"
	}

	memory, raidCount := nodeTier(req)

	volumes := raidCount + req.CephVolumes
	if req.DRBDSerial != "" {
		volumes++
	}

	alloc := device.NewAllocator(virtio, a.profile.DiskAddressing())
	if err := alloc.Reserve(volumes); err != nil {
		return "", fmt.Errorf("invalid compute node request: %w", err)
	}

	vols := volumeSet{
		alloc:     alloc,
		engine:    a.engine,
		targetBus: targetBus,
	}
	serialCloud := SanitizeSerial(req.Cloud)
	sourcePrefix := fmt.Sprintf("%s/%s.node%d", req.VDiskDir, req.Cloud, req.NodeCounter)

	raid, err := vols.render(device.KindRAID, raidCount, func(i int) (string, string) {
		return fmt.Sprintf("%s-node%d-raid%d", serialCloud, req.NodeCounter, i),
			fmt.Sprintf("%s-raid%d", sourcePrefix, i)
	})
	if err != nil {
		return "", err
	}

	ceph, err := vols.render(device.KindCeph, req.CephVolumes, func(i int) (string, string) {
		return fmt.Sprintf("%s-node%d-ceph%d", serialCloud, req.NodeCounter, i),
			fmt.Sprintf("%s-ceph%d", sourcePrefix, i)
	})
	if err != nil {
		return "", err
	}

	var drbd string
	if req.DRBDSerial != "" {
		drbd, err = vols.render(device.KindDRBD, 1, func(int) (string, string) {
			return req.DRBDSerial, sourcePrefix + "-drbd"
		})
		if err != nil {
			return "", err
		}
	}

	cpuFlags, err := a.profile.CPUFragment()
	if err != nil {
		return "", err
	}

	video, err := a.profile.DefaultVideoFragment()
	if err != nil {
		return "", err
	}

	boot := alloc.Boot()
	name := fmt.Sprintf("%s-node%d", req.Cloud, req.NodeCounter)

	xml, err := a.engine.Render(constants.TemplateComputeNode, ComputeNodeVars{
		Cloud:         req.Cloud,
		UUID:          DomainUUID(name).String(),
		NodeCounter:   req.NodeCounter,
		NodeMemory:    memory,
		VCPUs:         req.VCPUs,
		March:         a.profile.MachineArch(),
		Machine:       machine,
		OSLoader:      a.profile.FirmwareLoaderFragment(),
		CPUFlags:      cpuFlags,
		Emulator:      req.Emulator,
		VDiskDir:      req.VDiskDir,
		TargetDev:     boot.Dev,
		TargetBus:     targetBus,
		TargetAddress: boot.Address,
		BootOrder:     req.BootOrder,
		RAIDVolume:    raid,
		CephVolume:    ceph,
		DRBDVolume:    drbd,
		MACAddress:    req.MACAddress,
		NICModel:      nicModel,
		VideoDevices:  video,
	})
	if err != nil {
		return "", fmt.Errorf("could not create compute node XML: %w", err)
	}

	a.logger.Debug("rendered compute node XML",
		slog.String("domain", name),
		slog.Int("raid_volumes", raidCount),
		slog.Int("ceph_volumes", req.CephVolumes),
		slog.Bool("drbd_volume", drbd != ""),
		slog.Bool("virtio", virtio),
	)
	return xml, nil
}

// volumeSet renders extra volume fragments sharing one allocator.
type volumeSet struct {
	alloc     *device.Allocator
	engine    *templator.Engine
	targetBus string
}

// render emits count fragments of kind, each on its own line. naming returns
// the serial and source device of volume i (1-based).
func (v volumeSet) render(kind device.VolumeKind, count int, naming func(i int) (serial, source string)) (string, error) {
	var b strings.Builder
	for i := 1; i <= count; i++ {
		slot, err := v.alloc.Next(kind, i)
		if err != nil {
			return "", fmt.Errorf("could not place %s volume %d: %w", kind, i, err)
		}

		serial, source := naming(i)
		fragment, err := v.engine.Render(constants.TemplateExtraVolume, VolumeVars{
			VolumeSerial:  serial,
			SourceDev:     source,
			TargetDev:     slot.Dev,
			TargetBus:     v.targetBus,
			TargetAddress: slot.Address,
		})
		if err != nil {
			return "", fmt.Errorf("could not render %s volume %d: %w", kind, i, err)
		}

		b.WriteString("\n")
		b.WriteString(strings.TrimRight(fragment, "\n"))
	}
	return b.String(), nil
}

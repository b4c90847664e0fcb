package libvirt

import (
	"fmt"

	"github.com/terabiome/mkcloud/pkg/constants"
	"github.com/terabiome/mkcloud/pkg/templator"
	"github.com/terabiome/mkcloud/templates"
)

type AdminNodeVars struct {
	Cloud                string
	UUID                 string
	AdminNodeMemory      uint64
	AdminVCPUs           uint
	March                string
	Machine              string
	OSLoader             string
	CPUFlags             string
	Emulator             string
	AdminNodeDisk        string
	LocalRepositoryMount string
	VideoDevices         string
}

type LocalRepoMountVars struct {
	SourceDir string
	TargetDir string
}

type NetworkVars struct {
	Cloud        string
	CloudBridge  string
	AdminGateway string
	AdminNetmask string
	CloudFQDN    string
	AdminIP      string
	ForwardMode  string
}

type ComputeNodeVars struct {
	Cloud         string
	UUID          string
	NodeCounter   int
	NodeMemory    uint64
	VCPUs         uint
	March         string
	Machine       string
	OSLoader      string
	CPUFlags      string
	Emulator      string
	VDiskDir      string
	TargetDev     string
	TargetBus     string
	TargetAddress string
	BootOrder     int
	RAIDVolume    string
	CephVolume    string
	DRBDVolume    string
	MACAddress    string
	NICModel      string
	VideoDevices  string
}

type VolumeVars struct {
	VolumeSerial  string
	SourceDev     string
	TargetDev     string
	TargetBus     string
	TargetAddress string
}

// LoadTemplates registers the domain and network templates with engine,
// checking each against its vars type.
func LoadTemplates(engine *templator.Engine) error {
	for _, t := range []struct {
		name string
		path string
		vars any
	}{
		{constants.TemplateAdminNode, templates.AdminNode, AdminNodeVars{}},
		{constants.TemplateAdminNetwork, templates.AdminNetwork, NetworkVars{}},
		{constants.TemplateComputeNode, templates.ComputeNode, ComputeNodeVars{}},
		{constants.TemplateExtraVolume, templates.ExtraVolume, VolumeVars{}},
		{constants.TemplateLocalRepoMount, templates.LocalRepositoryMount, LocalRepoMountVars{}},
	} {
		if err := engine.LoadTemplate(t.name, t.path, t.vars); err != nil {
			return fmt.Errorf("could not load libvirt templates: %w", err)
		}
	}
	return nil
}

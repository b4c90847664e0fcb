package service

import (
	"context"
	"fmt"

	"github.com/terabiome/mkcloud/internal/infrastructure/host"
	"github.com/terabiome/mkcloud/pkg/executor"
)

// HostInfo summarizes the architecture decisions taken for this host.
type HostInfo struct {
	Arch           string   `json:"arch"`
	Class          string   `json:"class"`
	VendorID       string   `json:"vendor_id,omitempty"`
	MachineType    string   `json:"machine_type"`
	CPUTemplate    string   `json:"cpu_template,omitempty"`
	FirmwareLoader bool     `json:"firmware_loader"`
	DefaultVideo   bool     `json:"default_video"`
	DiskAddressing string   `json:"disk_addressing"`
	CPUInfo        []string `json:"cpu_info,omitempty"`
}

// DescribeHost reports the profile decisions plus the raw lscpu output when
// exec is able to run it. lscpu failures leave CPUInfo empty; an unreadable
// fragment template is an error.
func DescribeHost(ctx context.Context, profile *host.Profile, exec executor.Executor) (HostInfo, error) {
	video, err := profile.DefaultVideoFragment()
	if err != nil {
		return HostInfo{}, fmt.Errorf("could not describe host: %w", err)
	}

	info := HostInfo{
		Arch:           profile.MachineArch(),
		Class:          profile.Class().String(),
		VendorID:       profile.Facts().VendorID,
		MachineType:    profile.DefaultMachineType(),
		CPUTemplate:    profile.CPUTemplate(),
		FirmwareLoader: profile.FirmwareLoaderFragment() != "",
		DefaultVideo:   video != "",
		DiskAddressing: profile.DiskAddressing().String(),
	}

	if exec != nil {
		if result, err := executor.Capture(ctx, exec, "lscpu"); err == nil {
			info.CPUInfo = result.Lines()
		}
	}

	return info, nil
}

package main

import (
	"fmt"
	"io"

	"github.com/terabiome/mkcloud/internal/service"
)

// printHostInfo displays the architecture settings and lscpu output
func printHostInfo(w io.Writer, info service.HostInfo) error {
	fmt.Fprintln(w, "=== Host ===")
	fmt.Fprintf(w, "  architecture:    %s (%s)\n", info.Arch, info.Class)
	if info.VendorID != "" {
		fmt.Fprintf(w, "  cpu vendor:      %s\n", info.VendorID)
	}
	fmt.Fprintf(w, "  machine type:    %s\n", info.MachineType)

	cpu := info.CPUTemplate
	if cpu == "" {
		cpu = "none (nested paging)"
	}
	fmt.Fprintf(w, "  cpu fragment:    %s\n", cpu)
	fmt.Fprintf(w, "  firmware loader: %t\n", info.FirmwareLoader)
	fmt.Fprintf(w, "  default video:   %t\n", info.DefaultVideo)
	fmt.Fprintf(w, "  disk addressing: %s\n", info.DiskAddressing)

	if len(info.CPUInfo) == 0 {
		fmt.Fprintln(w, "\nlscpu not available")
		return nil
	}

	fmt.Fprintln(w, "\nCPU Information:")
	for _, line := range info.CPUInfo {
		if _, err := fmt.Fprintln(w, "  "+line); err != nil {
			return err
		}
	}
	return nil
}

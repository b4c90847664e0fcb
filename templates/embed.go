// Package templates carries the default libvirt XML templates and fragments.
// An on-disk directory with the same file names can replace them at runtime.
package templates

import "embed"

//go:embed *.xml
var FS embed.FS

const (
	AdminNode            = "admin-node.xml"
	AdminNetwork         = "admin-net.xml"
	ComputeNode          = "compute-node.xml"
	ExtraVolume          = "extra-volume.xml"
	LocalRepositoryMount = "local-repository-mount.xml"

	CPUDefault   = "cpu-default.xml"
	CPUIntel     = "cpu-intel.xml"
	CPUARM64     = "cpu-arm64.xml"
	CPUS390X     = "cpu-s390x.xml"
	VideoDefault = "video-default.xml"
)

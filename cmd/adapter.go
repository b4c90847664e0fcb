package main

import (
	"github.com/terabiome/mkcloud/internal/api"
	"github.com/urfave/cli/v2"
)

var outputFlag = &cli.StringFlag{
	Name:    "output",
	Aliases: []string{"o"},
	Usage:   "Write the XML to this file instead of stdout",
}

func cloudFlag(required bool) *cli.StringFlag {
	return &cli.StringFlag{Name: "cloud", Usage: "Cloud name", Required: required}
}

func adminConfigFlags() []cli.Flag {
	return []cli.Flag{
		cloudFlag(true),
		&cli.Uint64Flag{Name: "adminnodememory", Usage: "Admin node memory in KiB", Value: 2097152},
		&cli.UintFlag{Name: "adminvcpus", Usage: "Admin node vCPU count", Value: 1},
		&cli.StringFlag{Name: "emulator", Usage: "Path to the qemu binary", Required: true},
		&cli.StringFlag{Name: "adminnodedisk", Usage: "Admin node disk device", Required: true},
		&cli.StringFlag{Name: "localreposrc", Usage: "Host directory mounted into the admin node"},
		&cli.StringFlag{Name: "localrepotgt", Usage: "Mount tag of the local repository"},
		outputFlag,
	}
}

// adaptAdminConfig converts CLI flags to an admin node request
func adaptAdminConfig(c *cli.Context) api.AdminRequest {
	return api.AdminRequest{
		Cloud:           c.String("cloud"),
		AdminNodeMemory: c.Uint64("adminnodememory"),
		AdminVCPUs:      c.Uint("adminvcpus"),
		Emulator:        c.String("emulator"),
		AdminNodeDisk:   c.String("adminnodedisk"),
		LocalRepoSource: c.String("localreposrc"),
		LocalRepoTarget: c.String("localrepotgt"),
	}
}

func netConfigFlags() []cli.Flag {
	return []cli.Flag{
		cloudFlag(true),
		&cli.StringFlag{Name: "cloudbr", Usage: "Bridge backing the admin network", Required: true},
		&cli.StringFlag{Name: "admingw", Usage: "Admin network gateway", Required: true},
		&cli.StringFlag{Name: "adminnetmask", Usage: "Admin network netmask", Required: true},
		&cli.StringFlag{Name: "cloudfqdn", Usage: "Cloud domain name", Required: true},
		&cli.StringFlag{Name: "adminip", Usage: "Admin node address", Required: true},
		&cli.StringFlag{Name: "forwardmode", Usage: "libvirt forward mode", Value: "nat"},
		outputFlag,
	}
}

// adaptNetConfig converts CLI flags to an admin network request
func adaptNetConfig(c *cli.Context) api.NetRequest {
	return api.NetRequest{
		Cloud:        c.String("cloud"),
		CloudBridge:  c.String("cloudbr"),
		AdminGateway: c.String("admingw"),
		AdminNetmask: c.String("adminnetmask"),
		CloudFQDN:    c.String("cloudfqdn"),
		AdminIP:      c.String("adminip"),
		ForwardMode:  c.String("forwardmode"),
	}
}

func computeConfigFlags() []cli.Flag {
	return []cli.Flag{
		cloudFlag(true),
		&cli.IntFlag{Name: "nodecounter", Usage: "1-based node index", Required: true},
		&cli.IntFlag{Name: "numcontrollers", Usage: "Number of controller nodes", Value: 1},
		&cli.Uint64Flag{Name: "controllernodememory", Usage: "Controller node memory in KiB", Value: 5242880},
		&cli.Uint64Flag{Name: "computenodememory", Usage: "Compute node memory in KiB", Value: 2097152},
		&cli.IntFlag{Name: "controller-raid-volumes", Usage: "RAID volumes per controller node"},
		&cli.IntFlag{Name: "cephvolumenumber", Usage: "Ceph volumes per node"},
		&cli.StringFlag{Name: "drbdserial", Usage: "Serial of the DRBD volume, empty for none"},
		&cli.UintFlag{Name: "vcpus", Usage: "vCPU count", Value: 1},
		&cli.StringFlag{Name: "emulator", Usage: "Path to the qemu binary", Required: true},
		&cli.StringFlag{Name: "vdiskdir", Usage: "Directory of the node disk devices", Required: true},
		&cli.StringFlag{Name: "macaddress", Usage: "MAC address of the admin interface", Required: true},
		&cli.IntFlag{Name: "bootorder", Usage: "Boot order of the primary disk", Value: 2},
		&cli.StringFlag{Name: "libvirttype", Usage: "Domain type, kvm enables virtio", Value: "kvm"},
		&cli.StringFlag{Name: "machine", Usage: "Machine type, defaults to the host architecture's"},
		outputFlag,
	}
}

// adaptComputeConfig converts CLI flags to a compute node request
func adaptComputeConfig(c *cli.Context) api.ComputeRequest {
	return api.ComputeRequest{
		Cloud:                 c.String("cloud"),
		NodeCounter:           c.Int("nodecounter"),
		NumControllers:        c.Int("numcontrollers"),
		ControllerNodeMemory:  c.Uint64("controllernodememory"),
		ComputeNodeMemory:     c.Uint64("computenodememory"),
		ControllerRAIDVolumes: c.Int("controller-raid-volumes"),
		CephVolumes:           c.Int("cephvolumenumber"),
		DRBDSerial:            c.String("drbdserial"),
		VCPUs:                 c.Uint("vcpus"),
		Emulator:              c.String("emulator"),
		VDiskDir:              c.String("vdiskdir"),
		MACAddress:            c.String("macaddress"),
		BootOrder:             c.Int("bootorder"),
		LibvirtType:           c.String("libvirttype"),
		Machine:               c.String("machine"),
	}
}

func cleanupFlags() []cli.Flag {
	return []cli.Flag{
		cloudFlag(true),
		&cli.StringFlag{Name: "cloudbr", Usage: "Cloud bridge, locates the public VLAN interface file"},
		&cli.StringFlag{Name: "vlan-public", Usage: "Public VLAN id, locates the public VLAN interface file"},
	}
}

// adaptCleanup converts CLI flags to a teardown request
func adaptCleanup(c *cli.Context) api.TeardownRequest {
	return api.TeardownRequest{
		Cloud:      c.String("cloud"),
		Bridge:     c.String("cloudbr"),
		VLANPublic: c.String("vlan-public"),
	}
}

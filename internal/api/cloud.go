package api

// AdminRequest contains the configuration for the admin node of a cloud.
// String fields rendered into XML reject the markup characters &<>'".
type AdminRequest struct {
	Cloud           string `json:"cloud" validate:"required,excludesall=&<>'\""`
	AdminNodeMemory uint64 `json:"admin_node_memory" validate:"gt=0"`
	AdminVCPUs      uint   `json:"admin_vcpus" validate:"gt=0"`
	Emulator        string `json:"emulator" validate:"required,excludesall=&<>'\""`
	AdminNodeDisk   string `json:"admin_node_disk" validate:"required,excludesall=&<>'\""`

	// Both must be set to mount a host directory into the admin node via 9p.
	LocalRepoSource string `json:"local_repo_source,omitempty" validate:"excludesall=&<>'\""`
	LocalRepoTarget string `json:"local_repo_target,omitempty" validate:"excludesall=&<>'\""`
}

// NetRequest contains the configuration for the admin network of a cloud.
type NetRequest struct {
	Cloud        string `json:"cloud" validate:"required,excludesall=&<>'\""`
	CloudBridge  string `json:"cloud_bridge" validate:"required,excludesall=&<>'\""`
	AdminGateway string `json:"admin_gateway" validate:"required,ip"`
	AdminNetmask string `json:"admin_netmask" validate:"required,ip"`
	CloudFQDN    string `json:"cloud_fqdn" validate:"required,excludesall=&<>'\""`
	AdminIP      string `json:"admin_ip" validate:"required,ip"`
	ForwardMode  string `json:"forward_mode" validate:"required,oneof=nat route open bridge private vepa passthrough hostdev"`
}

// ComputeRequest contains the configuration for one compute node of a cloud.
// Nodes whose counter does not exceed NumControllers are controllers.
type ComputeRequest struct {
	Cloud                 string `json:"cloud" validate:"required,excludesall=&<>'\""`
	NodeCounter           int    `json:"node_counter" validate:"gte=1"`
	NumControllers        int    `json:"num_controllers" validate:"gte=0"`
	ControllerNodeMemory  uint64 `json:"controller_node_memory" validate:"gt=0"`
	ComputeNodeMemory     uint64 `json:"compute_node_memory" validate:"gt=0"`
	ControllerRAIDVolumes int    `json:"controller_raid_volumes" validate:"gte=0"`
	CephVolumes           int    `json:"ceph_volumes" validate:"gte=0"`
	DRBDSerial            string `json:"drbd_serial,omitempty" validate:"excludesall=&<>'\""`
	VCPUs                 uint   `json:"vcpus" validate:"gt=0"`
	Emulator              string `json:"emulator" validate:"required,excludesall=&<>'\""`
	VDiskDir              string `json:"vdisk_dir" validate:"required,excludesall=&<>'\""`
	MACAddress            string `json:"mac_address" validate:"required,mac"`
	BootOrder             int    `json:"boot_order" validate:"gte=1"`
	LibvirtType           string `json:"libvirt_type" validate:"required,excludesall=&<>'\""`
	Machine               string `json:"machine,omitempty" validate:"excludesall=&<>'\""`
}

// TeardownRequest names the cloud to remove. Bridge and VLANPublic locate the
// sysconfig interface file created for the public VLAN, when there is one.
type TeardownRequest struct {
	Cloud      string `json:"cloud" validate:"required,excludesall=&<>'\""`
	Bridge     string `json:"bridge,omitempty"`
	VLANPublic string `json:"vlan_public,omitempty"`
}

// NodeRequest names a single domain.
type NodeRequest struct {
	Name string `json:"name" validate:"required"`
}

// DescriptorRequest carries a rendered domain or network XML document.
type DescriptorRequest struct {
	XML string `json:"xml" validate:"required"`
}

package constants

const (
	TemplateAdminNode      = "admin-node"
	TemplateAdminNetwork   = "admin-network"
	TemplateComputeNode    = "compute-node"
	TemplateExtraVolume    = "extra-volume"
	TemplateLocalRepoMount = "local-repository-mount"
)

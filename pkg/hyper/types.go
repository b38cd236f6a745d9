package hyper

import "time"

// PowerState classifies a domain's lifecycle state as reported by the tool.
type PowerState string

const (
	PowerRunning PowerState = "running"
	PowerPaused  PowerState = "paused"
	PowerStopped PowerState = "stopped"
)

// Action is a power-state transition request. Transitions are passed to the
// tool without local precondition checks; the hypervisor validates them.
type Action string

const (
	ActionStart  Action = "start"
	ActionStop   Action = "stop"
	ActionReboot Action = "reboot"
	ActionPause  Action = "pause"
	ActionResume Action = "resume"
)

// VMRecord is one domain's inventory entry.
type VMRecord struct {
	ID          string            `json:"vm_id"`
	Name        string            `json:"name"`
	CPUCores    int               `json:"cpu_cores"`
	MemoryMB    int               `json:"memory_mb"`
	Image       string            `json:"image"`
	PowerState  PowerState        `json:"power_state"`
	Networks    []string          `json:"networks"`
	Labels      map[string]string `json:"labels"`
	Annotations map[string]string `json:"annotations"`
	CreatedAt   time.Time         `json:"created_at"`
	DiskSource  string            `json:"disk_source,omitempty"`
}

// NetworkRecord is one virtual network's inventory entry. CIDR is "n/a"
// when the tool does not report one.
type NetworkRecord struct {
	ID            string   `json:"network_id"`
	Name          string   `json:"name"`
	CIDR          string   `json:"cidr"`
	VLANID        *int     `json:"vlan_id"`
	AttachedVMIDs []string `json:"attached_vm_ids"`
}

// VolumeKind classifies a storage volume by its file extension.
type VolumeKind string

const (
	VolumeISO   VolumeKind = "iso"
	VolumeQCOW2 VolumeKind = "qcow2"
	VolumeDisk  VolumeKind = "disk"
)

// Volume is a single entry of a storage pool listing. UsedBy is a
// comma-joined list of VM names, "-" when unused.
type Volume struct {
	Name   string     `json:"name"`
	Kind   VolumeKind `json:"kind"`
	UsedBy string     `json:"used_by"`
	SizeGB float64    `json:"size_gb"`
}

// StoragePoolRecord is one storage pool with its volume listing.
type StoragePoolRecord struct {
	ID          string   `json:"pool_id"`
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	State       string   `json:"state"`
	CapacityGB  float64  `json:"capacity_gb"`
	AllocatedGB float64  `json:"allocated_gb"`
	AvailableGB float64  `json:"available_gb"`
	Volumes     []Volume `json:"volumes"`
}

// ImageRecord is a bootable or attachable volume surfaced as an image.
// ID is "<pool>::<volume>".
type ImageRecord struct {
	ID        string    `json:"image_id"`
	Name      string    `json:"name"`
	SourceURL string    `json:"source_url"`
	Status    string    `json:"status"`
	UsedBy    string    `json:"used_by"`
	CreatedAt time.Time `json:"created_at"`
}

// SnapshotRecord is one domain snapshot.
type SnapshotRecord struct {
	ID        string    `json:"snapshot_id"`
	VMID      string    `json:"vm_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// ConsoleInfo is a domain's display endpoint. VNCPort is zero when the
// display URI carries no trailing port.
type ConsoleInfo struct {
	DisplayURI string `json:"display_uri"`
	VNCPort    int    `json:"vnc_port"`
}

// HealthStatus reports endpoint reachability and a cheap VM count.
type HealthStatus struct {
	Reachable bool `json:"reachable"`
	VMCount   int  `json:"vm_count"`
}

// CreateVMRequest carries the caller-facing fields of a VM definition.
type CreateVMRequest struct {
	Name     string `json:"name"`
	CPUCores int    `json:"cpu_cores"`
	MemoryMB int    `json:"memory_mb"`
	Image    string `json:"image"`
	Network  string `json:"network"`
}

// MediaStatus reports the outcome of an ISO attach or detach.
type MediaStatus struct {
	VMID     string `json:"vm_id"`
	ISOPath  string `json:"iso_path,omitempty"`
	Attached bool   `json:"attached,omitempty"`
	Detached bool   `json:"detached,omitempty"`
}

package hyper

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
	"gitlab.com/tozd/go/errors"
	"libvirt.org/go/libvirtxml"
)

// domainXML synthesizes the descriptor for a new KVM domain: virtio NIC and
// disk bus, VNC graphics on an auto-assigned port, ACPI/APIC, destroy on
// poweroff and crash, restart on reboot. The disk stanza is omitted when no
// source path resolved.
func domainXML(req CreateVMRequest, diskPath string) (string, error) {
	domain := &libvirtxml.Domain{
		Type: "kvm",
		Name: req.Name,
		UUID: uuid.NewString(),
		Memory: &libvirtxml.DomainMemory{
			Value: uint(req.MemoryMB),
			Unit:  "MiB",
		},
		CurrentMemory: &libvirtxml.DomainCurrentMemory{
			Value: uint(req.MemoryMB),
			Unit:  "MiB",
		},
		VCPU: &libvirtxml.DomainVCPU{
			Value: uint(req.CPUCores),
		},
		OS: &libvirtxml.DomainOS{
			Type: &libvirtxml.DomainOSType{
				Arch:    "x86_64",
				Machine: "pc",
				Type:    "hvm",
			},
			BootDevices: []libvirtxml.DomainBootDevice{
				{Dev: "hd"},
				{Dev: "network"},
			},
		},
		Features: &libvirtxml.DomainFeatureList{
			ACPI: &libvirtxml.DomainFeature{},
			APIC: &libvirtxml.DomainFeatureAPIC{},
		},
		Clock: &libvirtxml.DomainClock{
			Offset: "utc",
		},
		OnPoweroff: "destroy",
		OnReboot:   "restart",
		OnCrash:    "destroy",
		Devices: &libvirtxml.DomainDeviceList{
			Emulator: "/usr/bin/qemu-system-x86_64",
			Interfaces: []libvirtxml.DomainInterface{
				{
					Source: &libvirtxml.DomainInterfaceSource{
						Network: &libvirtxml.DomainInterfaceSourceNetwork{
							Network: req.Network,
						},
					},
					Model: &libvirtxml.DomainInterfaceModel{
						Type: "virtio",
					},
				},
			},
			Graphics: []libvirtxml.DomainGraphic{
				{
					VNC: &libvirtxml.DomainGraphicVNC{
						AutoPort: "yes",
						Listen:   "0.0.0.0",
					},
				},
			},
			Consoles: []libvirtxml.DomainConsole{
				{
					Source: &libvirtxml.DomainChardevSource{
						Pty: &libvirtxml.DomainChardevSourcePty{},
					},
				},
			},
			Serials: []libvirtxml.DomainSerial{
				{
					Source: &libvirtxml.DomainChardevSource{
						Pty: &libvirtxml.DomainChardevSourcePty{},
					},
				},
			},
			Videos: []libvirtxml.DomainVideo{
				{
					Model: libvirtxml.DomainVideoModel{
						Type:  "vga",
						VRam:  16384,
						Heads: 1,
					},
				},
			},
		},
	}

	if diskPath != "" {
		domain.Devices.Disks = []libvirtxml.DomainDisk{
			{
				Device: "disk",
				Driver: &libvirtxml.DomainDiskDriver{
					Name: "qemu",
					Type: "qcow2",
				},
				Source: &libvirtxml.DomainDiskSource{
					File: &libvirtxml.DomainDiskSourceFile{
						File: diskPath,
					},
				},
				Target: &libvirtxml.DomainDiskTarget{
					Dev: "vda",
					Bus: "virtio",
				},
			},
		}
	}

	xml, err := domain.Marshal()
	if err != nil {
		return "", errors.Errorf("marshaling domain descriptor: %w", err)
	}
	return xml, nil
}

// networkXML synthesizes a NAT network descriptor with the gateway at .1 of
// the given CIDR.
func networkXML(name, cidr string) (string, error) {
	ipPart, prefixPart, ok := strings.Cut(cidr, "/")
	if !ok {
		return "", errors.New("invalid CIDR: missing prefix")
	}
	prefix, err := strconv.ParseUint(prefixPart, 10, 8)
	if err != nil {
		return "", errors.Errorf("invalid CIDR prefix %q: %w", prefixPart, err)
	}
	octets := strings.Split(ipPart, ".")
	if len(octets) != 4 {
		return "", errors.New("invalid CIDR")
	}
	gateway := strings.Join(octets[:3], ".") + ".1"

	bridge := name
	if len(bridge) > 8 {
		bridge = bridge[:8]
	}

	network := &libvirtxml.Network{
		Name: name,
		Forward: &libvirtxml.NetworkForward{
			Mode: "nat",
		},
		Bridge: &libvirtxml.NetworkBridge{
			Name:  "virbr-" + bridge,
			STP:   "on",
			Delay: "0",
		},
		IPs: []libvirtxml.NetworkIP{
			{
				Address: gateway,
				Prefix:  uint(prefix),
			},
		},
	}

	xml, err := network.Marshal()
	if err != nil {
		return "", errors.Errorf("marshaling network descriptor: %w", err)
	}
	return xml, nil
}

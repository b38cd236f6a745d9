package hyper

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/virtops/virtdash/pkg/virsh"
)

func TestCreateVMResolvesPoolVolumeReference(t *testing.T) {
	f := newFakeExec()
	f.responses["vol-path ubuntu.qcow2 --pool default"] = "/var/lib/libvirt/images/ubuntu.qcow2"
	f.responses["define"] = "Domain web01 defined"

	vm, err := testClient(f).CreateVM(context.Background(), CreateVMRequest{
		Name:     "web01",
		CPUCores: 2,
		MemoryMB: 2048,
		Image:    "default::ubuntu.qcow2",
	})
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/libvirt/images/ubuntu.qcow2", vm.DiskSource)
	assert.Equal(t, PowerStopped, vm.PowerState)
	assert.Equal(t, []string{"default"}, vm.Networks)

	require.Len(t, f.definedXML, 1)
	xml := f.definedXML[0]
	assert.Contains(t, xml, "<name>web01</name>")
	assert.Contains(t, xml, "/var/lib/libvirt/images/ubuntu.qcow2")
	assert.Contains(t, xml, `dev="vda"`)
	assert.Contains(t, xml, "virtio")
	assert.Contains(t, xml, "<acpi>")
}

func TestCreateVMAbsolutePathReference(t *testing.T) {
	f := newFakeExec()
	f.responses["define"] = ""

	vm, err := testClient(f).CreateVM(context.Background(), CreateVMRequest{
		Name:     "abs01",
		CPUCores: 1,
		MemoryMB: 1024,
		Image:    "/data/images/path.qcow2",
	})
	require.NoError(t, err)
	assert.Equal(t, "/data/images/path.qcow2", vm.DiskSource)
	assert.False(t, f.called("vol-path"), "absolute paths resolve without a pool lookup")
}

func TestCreateVMBareNameUsesDefaultPool(t *testing.T) {
	f := newFakeExec()
	f.responses["vol-path plainname --pool default"] = "/var/lib/libvirt/images/plainname"
	f.responses["define"] = ""

	vm, err := testClient(f).CreateVM(context.Background(), CreateVMRequest{
		Name:     "bare01",
		CPUCores: 1,
		MemoryMB: 512,
		Image:    "plainname",
	})
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/libvirt/images/plainname", vm.DiskSource)
	assert.True(t, f.called("vol-path plainname --pool default"))
}

func TestCreateVMDiskResolutionIsSoft(t *testing.T) {
	f := newFakeExec()
	f.failures["vol-path missing.qcow2 --pool default"] = &virsh.ProcessError{Output: "error: no such volume"}
	f.responses["define"] = ""

	vm, err := testClient(f).CreateVM(context.Background(), CreateVMRequest{
		Name:     "nodisk01",
		CPUCores: 1,
		MemoryMB: 512,
		Image:    "missing.qcow2",
	})
	require.NoError(t, err, "unresolvable disks must not abort creation")
	assert.Empty(t, vm.DiskSource)

	require.Len(t, f.definedXML, 1)
	assert.NotContains(t, f.definedXML[0], "<disk", "domain is defined without a disk stanza")
}

func TestCreateVMDefineFailure(t *testing.T) {
	f := newFakeExec()
	f.failures["define"] = &virsh.ProcessError{Output: "error: operation failed"}

	_, err := testClient(f).CreateVM(context.Background(), CreateVMRequest{Name: "bad", CPUCores: 1, MemoryMB: 512})
	require.Error(t, err)
}

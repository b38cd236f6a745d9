package hyper

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/virtops/virtdash/pkg/virsh"
)

// fakeExec maps a space-joined argv to a canned response or error and
// records every call in order.
type fakeExec struct {
	responses map[string]string
	failures  map[string]error
	calls     []string

	// definedXML captures descriptor contents fed to define-style commands,
	// since the real argument is a temporary file path.
	definedXML []string
}

func newFakeExec() *fakeExec {
	return &fakeExec{
		responses: map[string]string{},
		failures:  map[string]error{},
	}
}

func (f *fakeExec) Run(_ context.Context, _ virsh.Endpoint, args ...string) (string, error) {
	key := strings.Join(args, " ")
	f.calls = append(f.calls, key)

	if len(args) == 2 && (args[0] == "define" || args[0] == "net-define") {
		data, err := os.ReadFile(args[1])
		if err == nil {
			f.definedXML = append(f.definedXML, string(data))
		}
		key = args[0]
	}

	if err, ok := f.failures[key]; ok {
		return "", err
	}
	if out, ok := f.responses[key]; ok {
		return out, nil
	}
	return "", &virsh.ProcessError{Output: "error: unexpected command: " + key}
}

func (f *fakeExec) called(prefix string) bool {
	for _, call := range f.calls {
		if strings.HasPrefix(call, prefix) {
			return true
		}
	}
	return false
}

func testClient(f *fakeExec) *Client {
	return NewClient(virsh.Endpoint{HostID: "h1", URI: "qemu+ssh://root@h1/system", Address: "h1.example.com"}, f)
}

func TestHealth(t *testing.T) {
	f := newFakeExec()
	f.responses["list --all --name"] = "vm1\nvm2\n"

	h, err := testClient(f).Health(context.Background())
	require.NoError(t, err)
	assert.True(t, h.Reachable)
	assert.Equal(t, 2, h.VMCount)
}

func TestListVMs(t *testing.T) {
	f := newFakeExec()
	f.responses["list --all --name"] = "web01\ndb01\n"
	f.responses["dominfo web01"] = sampleDomInfo
	f.responses["dominfo db01"] = "State:          paused\nCPU(s):         4\nMax memory:     4194304 KiB"
	f.responses["domiflist web01"] = ` Interface   Type      Source    Model    MAC
---------------------------------------------------
 vnet0       network   default   virtio   52:54:00:aa:bb:cc`
	f.failures["domiflist db01"] = &virsh.ProcessError{Output: "error: failed to get interfaces"}

	vms, err := testClient(f).ListVMs(context.Background())
	require.NoError(t, err)
	require.Len(t, vms, 2)

	assert.Equal(t, "web01", vms[0].ID)
	assert.Equal(t, 2, vms[0].CPUCores)
	assert.Equal(t, 2048, vms[0].MemoryMB)
	assert.Equal(t, PowerRunning, vms[0].PowerState)
	assert.Equal(t, []string{"default"}, vms[0].Networks)

	// interface listing failure degrades to an empty list, not an error
	assert.Equal(t, PowerPaused, vms[1].PowerState)
	assert.Empty(t, vms[1].Networks)
	assert.Equal(t, 4096, vms[1].MemoryMB)
}

func TestListVMsDetailFailureAborts(t *testing.T) {
	f := newFakeExec()
	f.responses["list --all --name"] = "web01\n"
	f.failures["dominfo web01"] = &virsh.ProcessError{Output: "error: failed to get domain"}

	_, err := testClient(f).ListVMs(context.Background())
	require.Error(t, err)
}

// stateExec simulates the tool's own power-state machine: actions mutate the
// state reported by subsequent detail fetches.
type stateExec struct {
	state string
}

func (s *stateExec) Run(_ context.Context, _ virsh.Endpoint, args ...string) (string, error) {
	switch args[0] {
	case "list":
		return "v1\n", nil
	case "dominfo":
		return "State:          " + s.state + "\nCPU(s):         1\nMax memory:     1048576 KiB", nil
	case "domiflist":
		return "", nil
	case "start", "resume":
		s.state = "running"
		return "", nil
	case "suspend":
		s.state = "paused"
		return "", nil
	case "shutdown", "destroy":
		s.state = "shut off"
		return "", nil
	}
	return "", &virsh.ProcessError{Output: "error: unexpected command"}
}

func TestActionTransitions(t *testing.T) {
	s := &stateExec{state: "shut off"}
	c := NewClient(virsh.Endpoint{HostID: "h1", URI: "test:///default"}, s)
	ctx := context.Background()

	powerState := func() PowerState {
		vms, err := c.ListVMs(ctx)
		require.NoError(t, err)
		require.Len(t, vms, 1)
		return vms[0].PowerState
	}

	assert.Equal(t, PowerStopped, powerState())

	require.NoError(t, c.ApplyAction(ctx, "v1", ActionStart))
	require.NoError(t, c.ApplyAction(ctx, "v1", ActionPause))
	assert.Equal(t, PowerPaused, powerState())

	require.NoError(t, c.ApplyAction(ctx, "v1", ActionResume))
	assert.Equal(t, PowerRunning, powerState())
}

func TestApplyActionUnknown(t *testing.T) {
	f := newFakeExec()
	err := testClient(f).ApplyAction(context.Background(), "v1", Action("explode"))
	require.Error(t, err)
	assert.Empty(t, f.calls, "unknown actions are rejected before reaching the tool")
}

func TestResizeArgs(t *testing.T) {
	f := newFakeExec()
	f.responses["setvcpus v1 4 --live --config"] = ""
	f.responses["setmaxmem v1 8388608 --config"] = ""
	f.responses["setmem v1 8388608 --live"] = ""

	require.NoError(t, testClient(f).Resize(context.Background(), "v1", 4, 8192))
	assert.Equal(t, []string{
		"setvcpus v1 4 --live --config",
		"setmaxmem v1 8388608 --config",
		"setmem v1 8388608 --live",
	}, f.calls)
}

func TestDeleteSwallowsDestroyFailure(t *testing.T) {
	f := newFakeExec()
	f.failures["destroy v1"] = &virsh.ProcessError{Output: "error: domain is not running"}
	f.responses["undefine v1 --nvram"] = ""

	require.NoError(t, testClient(f).Delete(context.Background(), "v1"))
	assert.True(t, f.called("undefine v1"))
}

func TestMigrateArgs(t *testing.T) {
	f := newFakeExec()
	f.responses["migrate --live --persistent --undefinesource v1 qemu+ssh://root@h2/system"] = ""

	require.NoError(t, testClient(f).Migrate(context.Background(), "v1", "qemu+ssh://root@h2/system", true))

	f2 := newFakeExec()
	f2.responses["migrate v1 qemu+ssh://root@h2/system"] = ""
	require.NoError(t, testClient(f2).Migrate(context.Background(), "v1", "qemu+ssh://root@h2/system", false))
}

func TestConsoleInfo(t *testing.T) {
	f := newFakeExec()
	f.responses["domdisplay v1"] = "vnc://127.0.0.1:5901"

	info, err := testClient(f).ConsoleInfo(context.Background(), "v1")
	require.NoError(t, err)
	assert.Equal(t, "vnc://127.0.0.1:5901", info.DisplayURI)
	assert.Equal(t, 5901, info.VNCPort)
}

package console

import (
	"context"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"

	"github.com/virtops/virtdash/pkg/hyper"
)

type fakeDisplay struct {
	uri   string
	err   error
	calls int
}

func (f *fakeDisplay) ConsoleInfo(context.Context, string) (hyper.ConsoleInfo, error) {
	f.calls++
	if f.err != nil {
		return hyper.ConsoleInfo{}, f.err
	}
	return hyper.ConsoleInfo{DisplayURI: f.uri, VNCPort: hyper.ParseDisplayPort(f.uri)}, nil
}

func testBroker(ttl time.Duration, limit int) (*Broker, *time.Time) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	b := NewBroker("https://dash.example.com/novnc/vnc.html", "wss://dash.example.com/ws/console", ttl, limit)
	b.now = func() time.Time { return now }
	return b, &now
}

func TestRequestComposesURLs(t *testing.T) {
	b, _ := testBroker(time.Minute, 10)
	d := &fakeDisplay{uri: "vnc://10.0.0.7:5901"}

	s, err := b.Request(context.Background(), "h1", "web01", "203.0.113.9", d)
	require.NoError(t, err)
	assert.NotEmpty(t, s.Ticket)
	assert.Equal(t, "10.0.0.7", s.VNCHost, "a routable display host is kept as reported")
	assert.Equal(t, 5901, s.VNCPort)

	viewer, err := url.Parse(s.ViewerURL)
	require.NoError(t, err)
	q := viewer.Query()
	assert.Equal(t, "h1", q.Get("host_id"))
	assert.Equal(t, "web01", q.Get("vm_id"))
	assert.Equal(t, s.Ticket, q.Get("ticket"))
	assert.Equal(t, s.WSURL, q.Get("path"))
	assert.Equal(t, "1", q.Get("autoconnect"))
	assert.Equal(t, "remote", q.Get("resize"))
	assert.Equal(t, "10.0.0.7", q.Get("host"))
	assert.Equal(t, "5901", q.Get("port"))
}

func TestLoopbackDisplayHostIsSubstituted(t *testing.T) {
	b, _ := testBroker(time.Minute, 10)
	for _, uri := range []string{
		"vnc://127.0.0.1:5900",
		"vnc://localhost:5900",
		"vnc://0.0.0.0:5900",
		"vnc://[::1]:5900",
	} {
		d := &fakeDisplay{uri: uri}
		s, err := b.Request(context.Background(), "h-"+uri, "web01", "203.0.113.9", d)
		require.NoError(t, err, "uri %s", uri)
		assert.Equal(t, "203.0.113.9", s.VNCHost, "uri %s", uri)
		assert.Equal(t, 5900, s.VNCPort, "uri %s", uri)
	}
}

func TestSessionIsReusedWithinTTL(t *testing.T) {
	b, now := testBroker(time.Minute, 10)
	d := &fakeDisplay{uri: "vnc://10.0.0.7:5901"}
	ctx := context.Background()

	first, err := b.Request(ctx, "h1", "web01", "203.0.113.9", d)
	require.NoError(t, err)

	*now = now.Add(30 * time.Second)
	second, err := b.Request(ctx, "h1", "web01", "203.0.113.9", d)
	require.NoError(t, err)

	assert.Equal(t, first.Ticket, second.Ticket)
	assert.Equal(t, first.ViewerURL, second.ViewerURL)
	assert.Equal(t, 1, d.calls, "reuse must not re-query the display")
}

func TestExpiredSessionGetsFreshTicket(t *testing.T) {
	b, now := testBroker(time.Minute, 10)
	d := &fakeDisplay{uri: "vnc://10.0.0.7:5901"}
	ctx := context.Background()

	first, err := b.Request(ctx, "h1", "web01", "203.0.113.9", d)
	require.NoError(t, err)

	*now = now.Add(61 * time.Second)
	second, err := b.Request(ctx, "h1", "web01", "203.0.113.9", d)
	require.NoError(t, err)

	assert.NotEqual(t, first.Ticket, second.Ticket)
	assert.Equal(t, 2, d.calls)
}

func TestSessionsAreScopedPerVM(t *testing.T) {
	b, _ := testBroker(time.Minute, 10)
	d := &fakeDisplay{uri: "vnc://10.0.0.7:5901"}
	ctx := context.Background()

	one, err := b.Request(ctx, "h1", "web01", "203.0.113.9", d)
	require.NoError(t, err)
	two, err := b.Request(ctx, "h1", "db01", "203.0.113.9", d)
	require.NoError(t, err)

	assert.NotEqual(t, one.Ticket, two.Ticket)
}

func TestHistoryIsCappedMostRecentFirst(t *testing.T) {
	b, _ := testBroker(time.Minute, 3)
	d := &fakeDisplay{uri: "vnc://10.0.0.7:5901"}
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := b.Request(ctx, "h1", fmt.Sprintf("vm-%d", i), "203.0.113.9", d)
		require.NoError(t, err)
	}

	history := b.Sessions()
	require.Len(t, history, 3)
	assert.Equal(t, "vm-4", history[0].VMID)
	assert.Equal(t, "vm-3", history[1].VMID)
	assert.Equal(t, "vm-2", history[2].VMID)
}

func TestDisplayFailureSurfaces(t *testing.T) {
	b, _ := testBroker(time.Minute, 10)
	d := &fakeDisplay{err: errors.New("error: failed to get domain 'web01'")}

	_, err := b.Request(context.Background(), "h1", "web01", "203.0.113.9", d)
	require.Error(t, err)
	assert.Empty(t, b.Sessions(), "a failed request must not enter the history")
}

func TestUnparseablePortStillIssuesSession(t *testing.T) {
	b, _ := testBroker(time.Minute, 10)
	d := &fakeDisplay{uri: "spice://10.0.0.7"}

	s, err := b.Request(context.Background(), "h1", "web01", "203.0.113.9", d)
	require.NoError(t, err)
	assert.Zero(t, s.VNCPort)

	viewer, err := url.Parse(s.ViewerURL)
	require.NoError(t, err)
	assert.Empty(t, viewer.Query().Get("port"), "port params are omitted when unresolved")
}

// Package console issues short-lived noVNC access tickets for VM displays.
//
// A ticket is minted per (host, VM) pair and reused verbatim while younger
// than the session TTL, so dashboard polling does not re-query the
// hypervisor's display info on every request. Issued sessions are kept in a
// bounded most-recent-first history for observability.
package console

import (
	"context"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/virtops/virtdash/pkg/hyper"
)

const (
	DefaultSessionTTL   = 5 * time.Minute
	DefaultHistoryLimit = 50
)

// Display resolves a VM's remote display endpoint. *hyper.Client satisfies it.
type Display interface {
	ConsoleInfo(ctx context.Context, vmID string) (hyper.ConsoleInfo, error)
}

// Session is one issued console ticket together with the URLs composed for it.
type Session struct {
	ID        string    `json:"id"`
	HostID    string    `json:"host_id"`
	VMID      string    `json:"vm_id"`
	Ticket    string    `json:"ticket"`
	ViewerURL string    `json:"viewer_url"`
	WSURL     string    `json:"ws_url"`
	VNCHost   string    `json:"vnc_host,omitempty"`
	VNCPort   int       `json:"vnc_port,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Broker mints and reuses console sessions.
type Broker struct {
	viewerBase string
	wsBase     string
	ttl        time.Duration
	limit      int

	mu       sync.Mutex
	sessions []Session

	now func() time.Time
}

// NewBroker builds a broker composing URLs against the given noVNC viewer
// page and websocket proxy base URLs. Non-positive ttl and limit fall back to
// the package defaults.
func NewBroker(viewerBase, wsBase string, ttl time.Duration, historyLimit int) *Broker {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &Broker{
		viewerBase: viewerBase,
		wsBase:     wsBase,
		ttl:        ttl,
		limit:      historyLimit,
		now:        time.Now,
	}
}

// Request returns a console session for the VM, reusing a fresh existing one
// when present. hostAddress is the host's reachable address, substituted for
// the display host whenever the tool reports a loopback or wildcard bind.
func (b *Broker) Request(ctx context.Context, hostID, vmID, hostAddress string, display Display) (Session, error) {
	if s, ok := b.fresh(hostID, vmID); ok {
		zerolog.Ctx(ctx).Debug().
			Str("host_id", hostID).
			Str("vm_id", vmID).
			Str("ticket", s.Ticket).
			Msg("reusing console session")
		return s, nil
	}

	info, err := display.ConsoleInfo(ctx, vmID)
	if err != nil {
		return Session{}, errors.Errorf("resolving display for %s: %w", vmID, err)
	}

	vncHost, vncPort := displayHostPort(info.DisplayURI)
	if isUnreachableBind(vncHost) {
		vncHost = hostAddress
	}

	ticket := uuid.NewString()

	wsQuery := url.Values{}
	wsQuery.Set("host_id", hostID)
	wsQuery.Set("vm_id", vmID)
	wsQuery.Set("ticket", ticket)
	if vncHost != "" && vncPort != 0 {
		wsQuery.Set("vnc_host", vncHost)
		wsQuery.Set("vnc_port", strconv.Itoa(vncPort))
	}
	wsURL := b.wsBase + "?" + wsQuery.Encode()

	viewerQuery := url.Values{}
	viewerQuery.Set("host_id", hostID)
	viewerQuery.Set("vm_id", vmID)
	viewerQuery.Set("ticket", ticket)
	viewerQuery.Set("path", wsURL)
	viewerQuery.Set("autoconnect", "1")
	viewerQuery.Set("resize", "remote")
	if vncHost != "" && vncPort != 0 {
		viewerQuery.Set("host", vncHost)
		viewerQuery.Set("port", strconv.Itoa(vncPort))
	}

	s := Session{
		ID:        uuid.NewString(),
		HostID:    hostID,
		VMID:      vmID,
		Ticket:    ticket,
		ViewerURL: b.viewerBase + "?" + viewerQuery.Encode(),
		WSURL:     wsURL,
		VNCHost:   vncHost,
		VNCPort:   vncPort,
		CreatedAt: b.now(),
	}
	b.remember(s)

	zerolog.Ctx(ctx).Info().
		Str("host_id", hostID).
		Str("vm_id", vmID).
		Str("vnc_host", vncHost).
		Int("vnc_port", vncPort).
		Msg("console session issued")
	return s, nil
}

// Sessions returns the retained history, most recent first.
func (b *Broker) Sessions() []Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Session, len(b.sessions))
	copy(out, b.sessions)
	return out
}

func (b *Broker) fresh(hostID, vmID string) (Session, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	for _, s := range b.sessions {
		if s.HostID != hostID || s.VMID != vmID {
			continue
		}
		if s.ViewerURL == "" || now.Sub(s.CreatedAt) > b.ttl {
			continue
		}
		return s, true
	}
	return Session{}, false
}

func (b *Broker) remember(s Session) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessions = append([]Session{s}, b.sessions...)
	if len(b.sessions) > b.limit {
		b.sessions = b.sessions[:b.limit]
	}
}

// displayHostPort pulls the host and port out of a display URI such as
// "vnc://127.0.0.1:5900". Anything unparseable yields empty values.
func displayHostPort(displayURI string) (string, int) {
	u, err := url.Parse(displayURI)
	if err != nil {
		return "", 0
	}
	host := u.Hostname()
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		return host, 0
	}
	return host, port
}

func isUnreachableBind(host string) bool {
	switch host {
	case "", "127.0.0.1", "::1", "localhost", "0.0.0.0", "::":
		return true
	}
	return false
}

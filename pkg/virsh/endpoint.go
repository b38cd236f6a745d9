package virsh

import "time"

// Default invocation limits, applied when an Endpoint leaves them unset.
const (
	DefaultTimeout        = 8 * time.Second
	DefaultMaxConcurrency = 2
	DefaultRetryCount     = 2
	DefaultRetrySleep     = 250 * time.Millisecond
	DefaultPool           = "default"
)

// Endpoint describes a single hypervisor management connection. It is a
// plain value; callers construct it once per host and pass it by value to
// every Run call.
type Endpoint struct {
	// HostID identifies the host in caches and logs. Falls back to URI when empty.
	HostID string

	// URI is the libvirt connection URI passed to virsh -c.
	URI string

	// Address is the reachable address of the host, used when a VM's display
	// listens on a loopback or wildcard address.
	Address string

	// Timeout bounds a single tool invocation. The process is killed when it
	// elapses.
	Timeout time.Duration

	// MaxConcurrency bounds in-flight invocations against this endpoint.
	MaxConcurrency int

	// RetryCount is the number of additional attempts made when the tool
	// fails with a fork-exhaustion signature.
	RetryCount int

	// RetrySleep is the pause between such attempts.
	RetrySleep time.Duration

	// DefaultPool is the storage pool used to resolve bare image names.
	DefaultPool string
}

// WithDefaults returns a copy of the endpoint with zero fields replaced by
// the package defaults.
func (e Endpoint) WithDefaults() Endpoint {
	if e.HostID == "" {
		e.HostID = e.URI
	}
	if e.Timeout <= 0 {
		e.Timeout = DefaultTimeout
	}
	if e.MaxConcurrency <= 0 {
		e.MaxConcurrency = DefaultMaxConcurrency
	}
	if e.RetryCount < 0 {
		e.RetryCount = 0
	}
	if e.RetrySleep < 0 {
		e.RetrySleep = 0
	}
	if e.DefaultPool == "" {
		e.DefaultPool = DefaultPool
	}
	return e
}

package domain

import (
	"strconv"
	"time"
)

const (
	// DefaultHostPort is used when a registration carries no port.
	DefaultHostPort = 80

	// DefaultPeerPort is the tracker port assumed for a peer entered without one.
	DefaultPeerPort = 3680

	// NeverValidated is shown before the first validation pass has finished.
	NeverValidated = "never"
)

// HostRecord is one registered or federated endpoint.
//
// Name is the registration key exactly as the client sent it and is unique
// within a registry. Host and Port are derived from Name and are only used to
// reach the endpoint.
type HostRecord struct {
	// ─────────────────────────────
	// Identity
	// ─────────────────────────────

	// Name is the registration key, e.g. "newton.example.org:8080".
	Name string

	// Host is the hostname or IP part of Name.
	Host string

	// Port is the TCP port part of Name (1-65535, default 80).
	Port int

	// ─────────────────────────────
	// Client supplied
	// ─────────────────────────────

	// Description is the free text sent with REGUP.
	Description string

	// ─────────────────────────────
	// Liveness
	// ─────────────────────────────

	// LastValidation is the RFC-1123 style time of the last successful probe
	// or, for federated records, the time reported by the peer.
	LastValidation string

	// Status tells local from federated records and counts failed probes.
	Status Status
}

// Federated reports whether the record was imported from a peer tracker.
func (h HostRecord) Federated() bool {
	return h.Status.Federated()
}

// Address returns the host[:port] form used for the command log: the port is
// omitted when it is the default.
func (h HostRecord) Address() string {
	if h.Port == DefaultHostPort || h.Port == 0 {
		return h.Host
	}
	return h.Host + ":" + strconv.Itoa(h.Port)
}

// PeerTracker is another tracker this one pulls SHARE records from.
// Port is kept as text because that is how it is configured and entered.
type PeerTracker struct {
	Host string
	Port string
}

// Addr returns host:port, falling back to the default tracker port.
func (p PeerTracker) Addr() string {
	port := p.Port
	if port == "" {
		port = strconv.Itoa(DefaultPeerPort)
	}
	return p.Host + ":" + port
}

// String is the display form used by the admin console.
func (p PeerTracker) String() string {
	return p.Host + ":" + p.Port
}

// rfcLayout mirrors the "EEE, d-MMM-yyyy HH:mm:ss GMT" format the trackers
// exchange. Values are always rendered in UTC.
const rfcLayout = "Mon, 2-Jan-2006 15:04:05 GMT"

// FormatTime renders t in the tracker timestamp format.
func FormatTime(t time.Time) string {
	return t.UTC().Format(rfcLayout)
}

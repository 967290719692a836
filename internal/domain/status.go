package domain

import "math"

type statusKind uint8

const (
	kindLocal statusKind = iota
	kindFederatedUp
	kindFederatedDown
)

// Legacy wire encodings of the federated states.
const (
	CodeFederatedUp   = -1
	CodeFederatedDown = -2
)

// maxFailures caps the failure counter so the legacy encoding never wraps.
const maxFailures = math.MaxInt32

// Status is the state of a HostRecord.
//
// A local record carries the number of consecutive failed probes (0 means
// healthy). Federated records carry only the up/down state reported by their
// peer and have no counter. The legacy signed integer encoding is produced by
// Code and only used on the wire.
type Status struct {
	kind     statusKind
	failures int
}

// Healthy is a local record whose last probe succeeded.
func Healthy() Status { return Status{kind: kindLocal} }

// Failing is a local record with n consecutive failed probes.
func Failing(n int) Status {
	if n < 0 {
		n = 0
	}
	if n > maxFailures {
		n = maxFailures
	}
	return Status{kind: kindLocal, failures: n}
}

// FederatedUp is a record a peer reported as UP.
func FederatedUp() Status { return Status{kind: kindFederatedUp} }

// FederatedDown is a record a peer reported as DOWN.
func FederatedDown() Status { return Status{kind: kindFederatedDown} }

// StatusFromCode decodes the legacy integer encoding.
func StatusFromCode(code int) Status {
	switch {
	case code == CodeFederatedUp:
		return FederatedUp()
	case code == CodeFederatedDown:
		return FederatedDown()
	default:
		return Failing(code)
	}
}

// Federated reports whether the record came from a peer tracker.
func (s Status) Federated() bool {
	return s.kind != kindLocal
}

// Up reports a healthy local record or a federated record reported up.
func (s Status) Up() bool {
	switch s.kind {
	case kindFederatedUp:
		return true
	case kindFederatedDown:
		return false
	default:
		return s.failures == 0
	}
}

// Failures returns the consecutive failed probes of a local record, 0 for
// federated records.
func (s Status) Failures() int {
	if s.kind != kindLocal {
		return 0
	}
	return s.failures
}

// Fail returns the status after one more failed probe. Federated states are
// returned unchanged: they are never probed.
func (s Status) Fail() Status {
	if s.kind != kindLocal {
		return s
	}
	return Failing(s.failures + 1)
}

// Code returns the legacy integer encoding: 0 healthy, >0 failures,
// -1 federated up, -2 federated down.
func (s Status) Code() int {
	switch s.kind {
	case kindFederatedUp:
		return CodeFederatedUp
	case kindFederatedDown:
		return CodeFederatedDown
	default:
		return s.failures
	}
}

// ShareLabel is the UP/DOWN word used in SHARE replies.
func (s Status) ShareLabel() string {
	if s.Up() {
		return "UP"
	}
	return "DOWN"
}

// String is the label used on the status page.
func (s Status) String() string {
	switch s.kind {
	case kindFederatedUp:
		return "Up (Sharing)"
	case kindFederatedDown:
		return "Down (Sharing)"
	}
	if s.failures == 0 {
		return "Up"
	}
	return "Down"
}

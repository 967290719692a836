package domain

// Err is a protocol level failure. Values are compared with errors.Is.
type Err string

func (e Err) Error() string { return string(e) }

var (
	// ErrDuplicateKey is returned when a name is already registered.
	ErrDuplicateKey = Err("ErrDuplicateKey")

	// ErrNotRegistered is returned when deregistering an unknown name.
	ErrNotRegistered = Err("ErrNotRegistered")

	// ErrInvalidHost is returned when the host part does not resolve.
	ErrInvalidHost = Err("ErrInvalidHost")

	// ErrPrivateHost is returned when the host resolves to a private IPv4
	// network and is not the allowed private host.
	ErrPrivateHost = Err("ErrPrivateHost")

	// ErrWeirdPort is returned when the port is not an integer.
	ErrWeirdPort = Err("ErrWeirdPort")

	// ErrWeirdPortValue is returned when the port is outside 1-65535.
	ErrWeirdPortValue = Err("ErrWeirdPortValue")

	// ErrUnsupportedVersion is returned for NPDS/TP v2 probes.
	ErrUnsupportedVersion = Err("ErrUnsupportedVersion")

	// ErrBadSyntax is returned for unknown commands and short or long lines.
	ErrBadSyntax = Err("ErrBadSyntax")

	// ErrForbidden is returned for SHARE when sharing is disabled.
	ErrForbidden = Err("ErrForbidden")

	// ErrIncorrectPassword is returned for a wrong ADMIN password.
	ErrIncorrectPassword = Err("ErrIncorrectPassword")
)

package domain

import (
	"net"
	"strconv"
	"strings"

	"github.com/MrSnakeDoc/npdstracker/internal/utils"
)

// privateNets are the IPv4 blocks a public tracker refuses to list:
// RFC1918 plus 0.0.0.0/8.
var privateNets = utils.NewIPMatcher([]string{
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"0.0.0.0/8",
})

// SplitName splits a registration key on ':' into its host and optional port
// token. Empty tokens are skipped and anything after the second token is
// ignored. ok is false when no host token is present.
func SplitName(name string) (host, port string, hasPort, ok bool) {
	parts := strings.FieldsFunc(name, func(r rune) bool { return r == ':' })
	if len(parts) == 0 {
		return "", "", false, false
	}
	if len(parts) == 1 {
		return parts[0], "", false, true
	}
	return parts[0], parts[1], true, true
}

// ParsePort validates a port token.
func ParsePort(token string) (int, error) {
	port, err := strconv.Atoi(token)
	if err != nil {
		return 0, ErrWeirdPort
	}
	if port < 1 || port > 65535 {
		return 0, ErrWeirdPortValue
	}
	return port, nil
}

// IsPrivateIPv4 reports whether ip is an IPv4 address inside one of the
// refused blocks. Other address families always pass.
func IsPrivateIPv4(ip net.IP) bool {
	v4 := ip.To4()
	if v4 == nil {
		return false
	}
	return privateNets.Contains(v4)
}

// CheckAddresses applies the private network policy to the resolved addresses
// of host. allowed is the single private host the operator accepts; it must
// match host exactly.
func CheckAddresses(host, allowed string, ips []net.IP) error {
	if allowed != "" && host == allowed {
		return nil
	}
	for _, ip := range ips {
		if IsPrivateIPv4(ip) {
			return ErrPrivateHost
		}
	}
	return nil
}

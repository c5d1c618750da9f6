package netutil

import (
	"errors"
	"net"
	"net/netip"
)

var ErrPrivateDestination = errors.New("destination resolves to private/reserved address")

var reservedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("fc00::/7"),
	netip.MustParsePrefix("fe80::/10"),
}

// IsPrivateIP returns true if the IP is in a private, loopback, link-local or reserved range
func IsPrivateIP(ip net.IP) bool {
	addr, ok := netip.AddrFromSlice(ip)
	if !ok {
		return false
	}
	addr = addr.Unmap()
	if addr.IsLoopback() || addr.IsLinkLocalUnicast() || addr.IsLinkLocalMulticast() {
		return true
	}
	for _, p := range reservedPrefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// CheckHost rejects hosts that are, or resolve to, private or reserved
// addresses. Loopback stays reachable so local mirrors and tests work.
// Lookup failures are left for the dialer to report.
func CheckHost(host string) error {
	if host == "" {
		return nil
	}
	if ip := net.ParseIP(host); ip != nil {
		if IsPrivateIP(ip) && !ip.IsLoopback() {
			return ErrPrivateDestination
		}
		return nil
	}
	addrs, err := net.LookupIP(host)
	if err != nil {
		return nil
	}
	for _, a := range addrs {
		if IsPrivateIP(a) && !a.IsLoopback() {
			return ErrPrivateDestination
		}
	}
	return nil
}

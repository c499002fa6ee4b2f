package policy

import (
	"net/netip"
	"strconv"
	"strings"
)

var blockedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("224.0.0.0/4"),
	netip.MustParsePrefix("240.0.0.0/4"),
	netip.MustParsePrefix("::/128"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fc00::/7"),
	netip.MustParsePrefix("fe80::/10"),
	netip.MustParsePrefix("ff00::/8"),
}

// IsPrivate reports whether a hostname names a loopback, private,
// link-local, multicast or reserved address. The check is lexical: no
// DNS lookup is made, so a public name resolving to a private address
// passes.
func IsPrivate(host string) bool {
	h := Normalize(host)
	if h == "localhost" || strings.HasSuffix(h, ".localhost") {
		return true
	}

	if addr, err := netip.ParseAddr(h); err == nil {
		addr = addr.Unmap()
		if addr.IsLoopback() || addr.IsPrivate() || addr.IsUnspecified() ||
			addr.IsLinkLocalUnicast() || addr.IsLinkLocalMulticast() || addr.IsMulticast() {
			return true
		}
		for _, p := range blockedPrefixes {
			if p.Contains(addr.WithZone("")) {
				return true
			}
		}
		return false
	}

	return numericPrivate(h)
}

// numericPrivate covers shorthand IPv4 spellings that netip refuses but
// resolvers accept, such as "127.1" or the integer form "2130706433".
func numericPrivate(h string) bool {
	if h == "" || strings.Trim(h, "0123456789.") != "" {
		return false
	}

	parts := strings.Split(h, ".")
	if len(parts) == 1 {
		n, err := strconv.ParseUint(h, 10, 32)
		if err != nil {
			return false
		}
		addr := netip.AddrFrom4([4]byte{byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n)})
		return IsPrivate(addr.String())
	}

	for _, part := range parts {
		// Leading zeros read as octal to some resolvers
		if len(part) > 1 && part[0] == '0' {
			return true
		}
	}

	octet := func(i int) int {
		if i >= len(parts) {
			return -1
		}
		v, err := strconv.Atoi(parts[i])
		if err != nil {
			return -1
		}
		return v
	}

	switch first := octet(0); {
	case first == 0, first == 10, first == 127:
		return true
	case first >= 224:
		return true
	case first == 169 && octet(1) == 254:
		return true
	case first == 192 && octet(1) == 168:
		return true
	case first == 172 && octet(1) >= 16 && octet(1) <= 31:
		return true
	}
	return false
}

func isIPv6Literal(h string) bool {
	addr, err := netip.ParseAddr(h)
	return err == nil && addr.Is6()
}

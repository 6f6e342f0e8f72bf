package webhook

import (
	"errors"
	"net"
	"net/netip"
	"net/url"
	"strings"
)

// Target URL errors.
var (
	ErrInvalidURL       = errors.New("invalid URL format")
	ErrInvalidScheme    = errors.New("only HTTPS allowed")
	ErrEmptyHost        = errors.New("URL must have a host")
	ErrLocalhostBlocked = errors.New("localhost not allowed")
	ErrPrivateIP        = errors.New("private IP addresses not allowed")
	ErrInvalidPort      = errors.New("only port 443 allowed")
)

// reservedPrefixes are ranges the netip predicates do not cover.
var reservedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"), // carrier-grade NAT
	netip.MustParsePrefix("192.0.0.0/24"),
	netip.MustParsePrefix("198.18.0.0/15"), // benchmarking
	netip.MustParsePrefix("240.0.0.0/4"),
}

// lookupIP is swapped in tests.
var lookupIP = net.LookupIP

// ValidateTargetURL checks the notification URL. Unless allowPrivate is set
// it must be HTTPS on port 443 and must not resolve to an internal address.
func ValidateTargetURL(targetURL string, allowPrivate bool) error {
	u, err := url.Parse(targetURL)
	if err != nil {
		return ErrInvalidURL
	}
	host := u.Hostname()

	if allowPrivate {
		switch {
		case u.Scheme != "http" && u.Scheme != "https":
			return ErrInvalidURL
		case host == "":
			return ErrEmptyHost
		}
		return nil
	}

	switch {
	case u.Scheme != "https":
		return ErrInvalidScheme
	case host == "":
		return ErrEmptyHost
	case isLocalHost(host):
		return ErrLocalhostBlocked
	}

	// Unresolvable hosts are left to fail at delivery time.
	if ips, err := lookupIP(host); err == nil {
		for _, ip := range ips {
			if isBlockedIP(ip) {
				return ErrPrivateIP
			}
		}
	}

	if port := u.Port(); port != "" && port != "443" {
		return ErrInvalidPort
	}
	return nil
}

func isLocalHost(host string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if host == "localhost" || strings.HasSuffix(host, ".localhost") || strings.HasSuffix(host, ".local") {
		return true
	}
	addr, err := netip.ParseAddr(host)
	return err == nil && addr.Unmap().IsLoopback()
}

// isBlockedIP reports whether ip is loopback, private, link-local,
// unspecified, multicast or otherwise reserved.
func isBlockedIP(ip net.IP) bool {
	addr, ok := netip.AddrFromSlice(ip)
	if !ok {
		return true
	}
	addr = addr.Unmap()
	if addr.IsLoopback() || addr.IsPrivate() || addr.IsUnspecified() ||
		addr.IsLinkLocalUnicast() || addr.IsLinkLocalMulticast() ||
		addr.IsInterfaceLocalMulticast() || addr.IsMulticast() {
		return true
	}
	for _, p := range reservedPrefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// ExtractHost returns the host of a URL for logging; paths may carry secrets.
func ExtractHost(targetURL string) string {
	u, err := url.Parse(targetURL)
	if err != nil {
		return "(invalid)"
	}
	return u.Host
}

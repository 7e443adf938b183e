package utils

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// parseAddr accepts "ip", "ip:port" and "[v6]:port". IPv4-mapped IPv6
// addresses are unmapped so they match IPv4 prefixes.
func parseAddr(s string) (netip.Addr, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return netip.Addr{}, false
	}
	if h, _, err := net.SplitHostPort(s); err == nil {
		s = h
	}
	addr, err := netip.ParseAddr(strings.Trim(s, "[]"))
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}

// ClientIP resolves the caller address. With trustProxy the proxy headers
// win in this order: CF-Connecting-IP, left-most X-Forwarded-For, X-Real-IP.
// Headers that do not hold an address are ignored.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		xff, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ",")
		for _, v := range []string{
			r.Header.Get("CF-Connecting-IP"),
			xff,
			r.Header.Get("X-Real-IP"),
		} {
			if addr, ok := parseAddr(v); ok {
				return addr.String()
			}
		}
	}
	if addr, ok := parseAddr(r.RemoteAddr); ok {
		return addr.String()
	}
	return r.RemoteAddr
}

// IPMatcher matches addresses against a list of single IPs and CIDRs.
type IPMatcher struct {
	prefixes []netip.Prefix
}

// NewIPMatcher ignores entries that are neither an IP nor a CIDR.
func NewIPMatcher(list []string) *IPMatcher {
	m := &IPMatcher{}
	for _, raw := range list {
		s := strings.TrimSpace(raw)
		if s == "" {
			continue
		}
		if p, err := netip.ParsePrefix(s); err == nil {
			m.prefixes = append(m.prefixes, p.Masked())
			continue
		}
		if addr, ok := parseAddr(s); ok {
			m.prefixes = append(m.prefixes, netip.PrefixFrom(addr, addr.BitLen()))
		}
	}
	return m
}

func (m *IPMatcher) IsEmpty() bool {
	return len(m.prefixes) == 0
}

func (m *IPMatcher) Allow(ip string) bool {
	addr, ok := parseAddr(ip)
	if !ok {
		return false
	}
	for _, p := range m.prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

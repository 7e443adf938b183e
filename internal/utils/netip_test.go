package utils

import (
	"net/http/httptest"
	"testing"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		trustProxy bool
		want       string
	}{
		{"remote addr", "10.0.0.5:4321", nil, false, "10.0.0.5"},
		{"ipv6 remote addr", "[::1]:4321", nil, false, "::1"},
		{"mapped ipv4", "[::ffff:192.168.1.2]:80", nil, false, "192.168.1.2"},
		{"headers ignored without trust", "10.0.0.5:1", map[string]string{"X-Real-IP": "1.2.3.4"}, false, "10.0.0.5"},
		{"cloudflare first", "10.0.0.5:1", map[string]string{"CF-Connecting-IP": "8.8.8.8", "X-Forwarded-For": "1.1.1.1"}, true, "8.8.8.8"},
		{"left-most forwarded", "10.0.0.5:1", map[string]string{"X-Forwarded-For": "1.1.1.1, 10.0.0.1"}, true, "1.1.1.1"},
		{"garbage header skipped", "10.0.0.5:1", map[string]string{"X-Forwarded-For": "unknown", "X-Real-IP": "9.9.9.9"}, true, "9.9.9.9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := ClientIP(r, tt.trustProxy); got != tt.want {
				t.Errorf("ClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIPMatcher(t *testing.T) {
	m := NewIPMatcher([]string{"127.0.0.1/32", " ::1/128", "192.168.0.0/16", "10.1.2.3", "not-an-ip", ""})
	if m.IsEmpty() {
		t.Fatal("matcher should not be empty")
	}

	tests := []struct {
		ip   string
		want bool
	}{
		{"127.0.0.1", true},
		{"::1", true},
		{"192.168.44.1", true},
		{"::ffff:192.168.44.1", true},
		{"10.1.2.3", true},
		{"10.1.2.4", false},
		{"8.8.8.8", false},
		{"garbage", false},
	}
	for _, tt := range tests {
		if got := m.Allow(tt.ip); got != tt.want {
			t.Errorf("Allow(%q) = %v, want %v", tt.ip, got, tt.want)
		}
	}

	if !NewIPMatcher(nil).IsEmpty() {
		t.Error("nil list should give an empty matcher")
	}
}

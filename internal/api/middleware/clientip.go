package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

// IPList matches addresses against exact IPs and CIDR ranges.
type IPList struct {
	ips  map[string]bool
	nets []*net.IPNet
}

// NewIPList parses entries such as "127.0.0.1" or "10.0.0.0/8". Invalid
// entries are logged and skipped.
func NewIPList(entries []string, logger zerolog.Logger) IPList {
	l := IPList{ips: make(map[string]bool)}
	for _, entry := range entries {
		if strings.Contains(entry, "/") {
			_, ipNet, err := net.ParseCIDR(entry)
			if err != nil {
				logger.Warn().Str("entry", entry).Err(err).Msg("invalid CIDR in address list")
				continue
			}
			l.nets = append(l.nets, ipNet)
			continue
		}
		ip := net.ParseIP(entry)
		if ip == nil {
			logger.Warn().Str("entry", entry).Msg("invalid IP in address list")
			continue
		}
		l.ips[ip.String()] = true
	}
	return l
}

// Empty reports whether the list matches nothing.
func (l IPList) Empty() bool {
	return len(l.ips) == 0 && len(l.nets) == 0
}

// Contains reports whether ipStr is listed or falls in a listed range.
func (l IPList) Contains(ipStr string) bool {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}
	if l.ips[ip.String()] {
		return true
	}
	for _, ipNet := range l.nets {
		if ipNet.Contains(ip) {
			return true
		}
	}
	return false
}

// RealIP replaces r.RemoteAddr with the client address from X-Forwarded-For
// or X-Real-IP. Headers are honoured only when the connecting peer is in
// trusted; anyone else could set them to an arbitrary address.
func RealIP(trusted IPList) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !trusted.Empty() && trusted.Contains(ClientIP(r)) {
				if ip := forwardedIP(r, trusted); ip != "" {
					r.RemoteAddr = ip
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// forwardedIP walks X-Forwarded-For from the nearest hop outwards and returns
// the first address that is not a trusted proxy.
func forwardedIP(r *http.Request, trusted IPList) string {
	var hops []string
	for _, v := range r.Header.Values("X-Forwarded-For") {
		hops = append(hops, strings.Split(v, ",")...)
	}
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if net.ParseIP(hop) == nil {
			return ""
		}
		if !trusted.Contains(hop) {
			return hop
		}
	}

	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(ip) != nil {
		return ip
	}
	return ""
}

// ClientIP returns the host part of r.RemoteAddr.
func ClientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

package middleware

import (
	"net"
	"net/http"
	"strconv"
)

// Proxy-set headers describing the connecting client.
const (
	realIPHeader   = "X-Real-IP"
	realPortHeader = "X-Real-Port"
	forwardedProto = "X-Forwarded-Proto"
	forwardedFor   = "X-Forwarded-For"
)

// ProxyHeaders rewrites RemoteAddr and the URL scheme from proxy headers
// when a known proxy fronts the application. Only loopback peers are
// trusted; requests arriving from anywhere else get the headers stripped so
// downstream middleware cannot accidentally trust them.
func ProxyHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}

		ip := net.ParseIP(host)
		if ip == nil || !ip.IsLoopback() {
			r.Header.Del(realIPHeader)
			r.Header.Del(realPortHeader)
			r.Header.Del(forwardedProto)
			r.Header.Del(forwardedFor)
			next.ServeHTTP(w, r)
			return
		}

		if realIP := r.Header.Get(realIPHeader); realIP != "" && net.ParseIP(realIP) != nil {
			port := r.Header.Get(realPortHeader)
			if _, err := strconv.Atoi(port); err != nil {
				port = "0"
			}
			r.RemoteAddr = net.JoinHostPort(realIP, port)
		}

		if proto := r.Header.Get(forwardedProto); proto == "http" || proto == "https" {
			r.URL.Scheme = proto
		}

		next.ServeHTTP(w, r)
	})
}

// ClientIP extracts the peer IP from RemoteAddr, after any ProxyHeaders
// rewrite has happened.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

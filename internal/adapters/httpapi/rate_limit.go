package httpapi

import (
	"net"
	"net/http"
	"time"
)

// allowSend applies the per-client token bucket to the send endpoints.
func (s *Server) allowSend(r *http.Request) bool {
	return s.sendLimiter.Allow(clientKey(r), time.Now())
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

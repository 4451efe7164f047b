package audit

import (
	"net"
	"net/http"
	"strings"
	"unicode/utf8"
)

// maxUserAgent bounds the stored user agent.
const maxUserAgent = 256

// ClientIP returns the originating client address recorded on audit
// entries. The first valid address in X-Forwarded-For wins, then X-Real-IP,
// then RemoteAddr. Entries that do not parse as an IP are ignored.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	for _, candidate := range strings.Split(r.Header.Get("X-Forwarded-For"), ",") {
		if ip := parseIP(candidate); ip != "" {
			return ip
		}
	}
	if ip := parseIP(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if ip := parseIP(r.RemoteAddr); ip != "" {
		return ip
	}
	return ""
}

// UserAgent returns the request user agent cut to a storable length.
func UserAgent(r *http.Request) string {
	if r == nil {
		return ""
	}
	agent := strings.TrimSpace(r.UserAgent())
	if len(agent) <= maxUserAgent {
		return agent
	}
	agent = agent[:maxUserAgent]
	for !utf8.ValidString(agent) {
		agent = agent[:len(agent)-1]
	}
	return agent
}

func parseIP(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(value); err == nil {
		value = host
	}
	ip := net.ParseIP(strings.Trim(value, "[]"))
	if ip == nil {
		return ""
	}
	return ip.String()
}

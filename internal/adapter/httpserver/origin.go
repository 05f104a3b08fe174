package httpserver

import (
	"log/slog"
	"net/http"
	"net/url"
	"slices"
)

const anyOrigin = "*"

// newCheckOrigin returns the receiver handshake origin check. Empty origins
// (non-browser receivers) always pass. A "*" entry allows every origin, and
// in development localhost origins are allowed too.
func newCheckOrigin(allowed []string, isDevelopment bool) func(r *http.Request) bool {
	allowAny := slices.Contains(allowed, anyOrigin)

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")

		if origin == "" || allowAny {
			return true
		}

		if slices.Contains(allowed, origin) {
			return true
		}

		if isDevelopment && isLocalhostOrigin(origin) {
			return true
		}

		slog.Warn("Receiver origin rejected", "origin", origin, "remote_addr", r.RemoteAddr)
		return false
	}
}

func isLocalhostOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := u.Hostname()
	return host == "localhost" || host == "127.0.0.1"
}

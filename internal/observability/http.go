package observability

import (
	"net"
	"net/http"
	"strings"

	"delivery-service/internal/models"
)

// ClientInfoFromRequest extracts the advisory client metadata recorded on
// poll sessions.
func ClientInfoFromRequest(r *http.Request) models.ClientInfo {
	return models.ClientInfo{
		UserAgent: r.UserAgent(),
		IP:        IPFromRequest(r),
	}
}

func IPFromRequest(r *http.Request) string {
	forwarded := r.Header.Get("X-Forwarded-For")
	if forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}

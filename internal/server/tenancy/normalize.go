package tenancy

import (
	"net"
	"strings"

	"github.com/dmitrijs2005/saasgate/internal/common"
)

// NormalizeDomain turns a Host or X-Forwarded-Host value into a directory
// key: lowercased and trimmed, port removed, a leading "www." and a trailing
// dot stripped. For a forwarded list only the first (client-most) entry is
// used. An empty or unusable result is common.ErrMalformedHost.
func NormalizeDomain(host string) (string, error) {
	d := strings.ToLower(strings.TrimSpace(host))
	if i := strings.IndexByte(d, ','); i >= 0 {
		d = strings.TrimSpace(d[:i])
	}

	if h, _, err := net.SplitHostPort(d); err == nil {
		d = h
	} else if strings.HasPrefix(d, "[") && strings.HasSuffix(d, "]") {
		d = d[1 : len(d)-1]
	}

	d = strings.TrimPrefix(d, "www.")
	d = strings.TrimSuffix(d, ".")

	if d == "" || strings.ContainsAny(d, " \t/\\@?#") {
		return "", common.ErrMalformedHost
	}
	return d, nil
}

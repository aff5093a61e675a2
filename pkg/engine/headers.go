package engine

import (
	"net/http"
	"strings"
)

// hopByHop lists the RFC 7230 connection-scoped headers, in canonical form
var hopByHop = map[string]struct{}{
	"Connection":          {},
	"Keep-Alive":          {},
	"Proxy-Authenticate":  {},
	"Proxy-Authorization": {},
	"Proxy-Connection":    {},
	"Te":                  {},
	"Trailer":             {},
	"Transfer-Encoding":   {},
	"Upgrade":             {},
}

func isHopByHop(name string) bool {
	_, ok := hopByHop[http.CanonicalHeaderKey(name)]
	return ok
}

// ForwardHeaders returns a copy of src fit for an upstream request.
// Host and hop-by-hop headers are dropped; multi-valued headers keep every value.
func ForwardHeaders(src http.Header) http.Header {
	out := make(http.Header, len(src))
	for name, values := range src {
		if len(values) == 0 || isHopByHop(name) || http.CanonicalHeaderKey(name) == "Host" {
			continue
		}
		out[http.CanonicalHeaderKey(name)] = append([]string(nil), values...)
	}
	return out
}

// RelayHeaders adds upstream response headers to dst, except those the
// server computes itself (length, CORS, Vary) and hop-by-hop headers
func RelayHeaders(dst, src http.Header) {
	for name, values := range src {
		canon := http.CanonicalHeaderKey(name)
		if strings.HasPrefix(canon, "Access-Control-") || canon == "Vary" || canon == "Content-Length" || isHopByHop(canon) {
			continue
		}
		for _, v := range values {
			dst.Add(canon, v)
		}
	}
}

// Package httpx wraps net/http with bounded retries, brotli-aware body
// reads and JSON decoding.
package httpx

import (
	"fmt"
	"net/http"
	"strings"
)

// HTTPError is returned for non-2xx responses. The body is kept so callers
// can log what the remote side said.
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http error: %s %s status=%d body=%s", e.Method, e.URL, e.StatusCode, snippet(e.Body, 500))
}

func snippet(b []byte, max int) string {
	s := strings.TrimSpace(string(b))
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}

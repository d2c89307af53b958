package httpx

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
)

// AcceptEncoding is advertised on requests built by this package. net/http
// only decodes gzip transparently when it set the header itself, so br is
// decoded here.
const AcceptEncoding = "br"

// readBody drains and closes resp.Body, decoding brotli when the server
// compressed the payload. The body is always fully read so the connection
// can be reused.
func readBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return raw, err
	}
	if !strings.EqualFold(strings.TrimSpace(resp.Header.Get("Content-Encoding")), "br") {
		return raw, nil
	}
	return io.ReadAll(brotli.NewReader(bytes.NewReader(raw)))
}

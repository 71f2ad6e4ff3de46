package httpclient

import (
	"io"
	"net/http"

	"github.com/andybalholm/brotli"
)

// DecodeBody wraps resp.Body in a brotli reader when the server sent
// Content-Encoding: br; net/http only auto-decodes gzip, so brotli-fronted
// CDNs (common for HLS manifests, occasionally for WebVTT/JSON segments)
// need explicit handling. For any other (or absent) Content-Encoding,
// resp.Body is returned unwrapped.
func DecodeBody(resp *http.Response) io.ReadCloser {
	if resp.Header.Get("Content-Encoding") != "br" {
		return resp.Body
	}
	return brotliReadCloser{r: brotli.NewReader(resp.Body), underlying: resp.Body}
}

type brotliReadCloser struct {
	r          io.Reader
	underlying io.Closer
}

func (b brotliReadCloser) Read(p []byte) (int, error) { return b.r.Read(p) }
func (b brotliReadCloser) Close() error                { return b.underlying.Close() }

// Package providers holds shared plumbing for the upstream adapters
// (transcription, completion, messaging): the outbound HTTP client and the
// normalization of upstream failures into services.ServiceError.
package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/proxy"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tbourn/go-voice-relay/internal/services"
)

// NewHTTPClient returns the client used for every upstream call. When
// socksAddr is set, connections are dialed through that SOCKS5 proxy.
func NewHTTPClient(socksAddr string, timeout time.Duration) (*http.Client, error) {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	if addr := strings.TrimSpace(socksAddr); addr != "" {
		dialer, err := proxy.SOCKS5("tcp", addr, nil, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("socks5 %s: %w", addr, err)
		}
		tr.Proxy = nil
		if cd, ok := dialer.(proxy.ContextDialer); ok {
			tr.DialContext = cd.DialContext
		} else {
			tr.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
				return dialer.Dial(network, addr)
			}
		}
	}
	return &http.Client{
		Transport: otelhttp.NewTransport(tr),
		Timeout:   timeout,
	}, nil
}

// CheckResponse turns a non-2xx response into a ServiceError carrying a
// short excerpt of the body. The body is not closed.
func CheckResponse(service string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &services.ServiceError{
		Service: service,
		Status:  resp.StatusCode,
		Message: strings.TrimSpace(string(b)),
	}
}

// Wrap normalizes err into a ServiceError for service unless it already is one.
func Wrap(service string, err error) error {
	if err == nil {
		return nil
	}
	var se *services.ServiceError
	if errors.As(err, &se) {
		return err
	}
	return &services.ServiceError{Service: service, Err: err}
}

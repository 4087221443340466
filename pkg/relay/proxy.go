package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/questrover/relay/pkg/config"
	"github.com/questrover/relay/pkg/logger"
)

// Source opens the upstream camera stream.
type Source interface {
	Open(ctx context.Context, url string) (io.ReadCloser, error)
}

type httpSource struct {
	client *http.Client
}

func newHTTPSource(connectTimeout time.Duration) *httpSource {
	return &httpSource{client: &http.Client{
		Transport: &http.Transport{
			DialContext:           (&net.Dialer{Timeout: connectTimeout}).DialContext,
			ResponseHeaderTimeout: connectTimeout,
		},
	}}
}

func (s *httpSource) Open(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("upstream status %v", resp.Status)
	}
	return resp.Body, nil
}

// Proxy re-streams the camera source over HTTP. Every downstream request
// gets its very own upstream connection; when either side ends, the other
// one is torn down with it.
type Proxy struct {
	conf   config.Proxy
	url    func() string
	source Source
	log    *logger.Logger
}

func NewProxy(conf config.Proxy, url func() string, source Source, log *logger.Logger) *Proxy {
	if source == nil {
		source = newHTTPSource(conf.ConnectTimeout)
	}
	return &Proxy{conf: conf, url: url, source: source, log: log}
}

func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	url := p.url()
	if url == "" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, "IP Webcam URL not set on server.")
		return
	}

	metricProxySessions.Inc()
	defer metricProxySessions.Dec()
	p.log.Info().Msgf("proxy: client connected, requesting stream from %v", url)

	// the request context cancels the upstream on downstream disconnect
	upstream, err := p.source.Open(r.Context(), url)
	if err != nil {
		status, message := classifyUpstreamError(err)
		p.log.Warn().Err(err).Msgf("proxy: failed to connect to camera (%d)", status)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, message)
		return
	}
	defer func() { _ = upstream.Close() }()

	header := w.Header()
	header.Set("Content-Type", "multipart/x-mixed-replace; boundary="+p.conf.Boundary)
	header.Set("Cache-Control", "no-cache, no-store, max-age=0, must-revalidate")
	header.Set("Connection", "keep-alive")
	header.Set("Pragma", "no-cache")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	_, err = io.Copy(flushWriter{w}, upstream)
	switch {
	case err == nil:
		p.log.Info().Msg("proxy: stream from camera ended")
	case r.Context().Err() != nil:
		p.log.Info().Msg("proxy: client disconnected")
	default:
		// headers are out already, the status can't change anymore
		p.log.Warn().Err(err).Msg("proxy: stream error")
	}
}

func classifyUpstreamError(err error) (int, string) {
	var netErr net.Error
	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return http.StatusBadGateway, "Proxy: Could not connect to IP Webcam (Connection Refused)."
	case errors.As(err, &netErr) && netErr.Timeout(),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "Proxy: Connection to IP Webcam timed out."
	}
	return http.StatusInternalServerError, "Proxy: Error connecting to IP Webcam."
}

// flushWriter pushes every written chunk straight to the client so frames
// don't sit in the response buffer.
type flushWriter struct {
	w http.ResponseWriter
}

func (f flushWriter) Write(b []byte) (int, error) {
	n, err := f.w.Write(b)
	if err == nil {
		if fl, ok := f.w.(http.Flusher); ok {
			fl.Flush()
		}
	}
	return n, err
}

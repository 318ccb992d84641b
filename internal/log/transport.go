package log

import (
	"net/http"
	"time"
)

// HeaderRequestID carries the per-request id set by the api client.
const HeaderRequestID = "X-Request-ID"

// Transport logs every outgoing request and its outcome.
type Transport struct {
	Base   http.RoundTripper
	Logger *Logger
}

// NewTransport wraps base (http.DefaultTransport when nil).
func NewTransport(base http.RoundTripper, logger *Logger) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	if logger == nil {
		logger = Discard()
	}
	return &Transport{Base: base, Logger: logger}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	fields := NewFields().
		WithHTTPRequest(req.Method, req.URL.Redacted()).
		WithRequestID(req.Header.Get(HeaderRequestID))

	resp, err := t.Base.RoundTrip(req)
	duration := time.Since(start).Milliseconds()
	if err != nil {
		fields.WithError(err).WithHTTPResponse(0, duration)
		t.Logger.WarnContext(req.Context(), "API request failed", fields.ToSlice()...)
		return nil, err
	}

	fields.WithHTTPResponse(resp.StatusCode, duration)
	switch {
	case resp.StatusCode >= 500:
		t.Logger.ErrorContext(req.Context(), "API request completed", fields.ToSlice()...)
	case resp.StatusCode >= 400:
		t.Logger.WarnContext(req.Context(), "API request completed", fields.ToSlice()...)
	default:
		t.Logger.DebugContext(req.Context(), "API request completed", fields.ToSlice()...)
	}
	return resp, nil
}

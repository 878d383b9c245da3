package log

import (
	"log/slog"
	"net/http"
	"time"
)

// Transport is an http.RoundTripper that logs every outbound request with
// method, path, status and duration. It wraps whatever transport the
// gateway would otherwise use.
type Transport struct {
	Base   http.RoundTripper
	Logger *Logger
}

// NewTransport wraps base with request/response logging. A nil base falls
// back to http.DefaultTransport.
func NewTransport(base http.RoundTripper, logger *Logger) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{Base: base, Logger: logger}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	ctx := req.Context()

	t.Logger.DebugContext(ctx, "request started",
		FieldMethod, req.Method,
		FieldPath, req.URL.Path,
		FieldRequestID, req.Header.Get("X-Request-Id"))

	resp, err := t.Base.RoundTrip(req)
	duration := time.Since(start)

	if err != nil {
		t.Logger.WarnContext(ctx, "request failed",
			FieldMethod, req.Method,
			FieldPath, req.URL.Path,
			FieldDuration, duration.Milliseconds(),
			FieldError, err.Error())
		return nil, err
	}

	level := slog.LevelDebug
	switch {
	case resp.StatusCode >= 500:
		level = slog.LevelError
	case resp.StatusCode >= 400:
		level = slog.LevelWarn
	}
	t.Logger.Logger.Log(ctx, level, "request completed",
		FieldComponent, t.Logger.Component(),
		FieldMethod, req.Method,
		FieldPath, req.URL.Path,
		FieldStatusCode, resp.StatusCode,
		FieldDuration, duration.Milliseconds())

	return resp, nil
}

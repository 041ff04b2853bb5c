package monitor

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"linklogger/internal/models"
)

// ProbeTimeout bounds a single probe, including reading the body.
const ProbeTimeout = 10 * time.Second

var errTimeout = errors.New("request timed out")

// Prober issues single GET requests against links.
type Prober struct {
	client  *http.Client
	timeout time.Duration
}

// NewProber wraps client; a nil client means a default one.
func NewProber(client *http.Client) *Prober {
	if client == nil {
		client = &http.Client{}
	}
	return &Prober{client: client, timeout: ProbeTimeout}
}

// Probe requests url once and reports the status code and elapsed seconds.
// Transport failures come back in Err with no latency.
func (p *Prober) Probe(ctx context.Context, url string) models.ProbeResult {
	res := models.ProbeResult{URL: url}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		res.Err = err
		return res
	}

	response, err := p.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = errTimeout
		}
		res.Err = err
		return res
	}
	_, _ = io.Copy(io.Discard, response.Body)
	_ = response.Body.Close()

	latency := time.Since(start).Seconds()
	res.StatusCode = response.StatusCode
	res.Latency = &latency
	return res
}

package models

import "strconv"

// TimestampLayout is the layout used for every log and CSV timestamp.
const TimestampLayout = "2006-01-02 15:04:05"

// StatusError is the sentinel status recorded for a failed probe.
const StatusError = "ERROR"

// Counter holds the running outcome counts of a single link.
type Counter struct {
	Success int `json:"success"`
	Error   int `json:"error"`
}

// LinkStats maps a link URL onto its counters.
type LinkStats map[string]Counter

// ProbeResult captures the outcome of a single GET against a link.
type ProbeResult struct {
	URL        string
	StatusCode int
	// Latency is the elapsed time in seconds; nil when the request failed.
	Latency *float64
	Err     error
}

// OK reports whether the probe produced an HTTP response.
func (r ProbeResult) OK() bool {
	return r.Err == nil
}

// Status renders the status column: the HTTP code, or ERROR for a transport failure.
func (r ProbeResult) Status() string {
	if r.Err != nil {
		return StatusError
	}
	return strconv.Itoa(r.StatusCode)
}

// Package healthcheck provides the health status handler served by the
// admin server.
package healthcheck

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
)

// Status represents the health of the service.
type Status int

const (
	// Unavailable means the service is not yet ready to serve requests.
	Unavailable Status = iota
	// Ready means the service is up and serving.
	Ready
	// Broken means the service is up but in a failed state.
	Broken
)

func (s Status) String() string {
	switch s {
	case Unavailable:
		return "unavailable"
	case Ready:
		return "ready"
	case Broken:
		return "broken"
	default:
		return "unknown"
	}
}

// HealthCheck holds the service's current health status.
type HealthCheck struct {
	state atomic.Value
}

func New() *HealthCheck {
	hc := &HealthCheck{}
	hc.state.Store(Unavailable)
	return hc
}

func (hc *HealthCheck) Set(s Status) {
	hc.state.Store(s)
}

func (hc *HealthCheck) Get() Status {
	return hc.state.Load().(Status)
}

// Handler returns the HTTP handler reporting the current status. Anything
// other than Ready is reported as HTTP 503.
func (hc *HealthCheck) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status := hc.Get()
		code := http.StatusServiceUnavailable
		if status == Ready {
			code = http.StatusOK
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)

		body := struct {
			Status string `json:"status"`
		}{Status: status.String()}
		_ = json.NewEncoder(w).Encode(body)
	})
}

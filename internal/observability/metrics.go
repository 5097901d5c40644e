package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics keeps in-process counters for the SR API: completed requests by
// route/method/status and failures by route/method/error code. No
// exporter is attached; the request logger feeds them and tests read
// them back.
type Metrics struct {
	mu       sync.Mutex
	requests map[string]int64
	failures map[string]int64
}

// NewMetrics initializes empty counters.
func NewMetrics() *Metrics {
	return &Metrics{
		requests: make(map[string]int64),
		failures: make(map[string]int64),
	}
}

// RecordRequest counts one completed request.
func (m *Metrics) RecordRequest(path, method string, status int, _ time.Duration) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[requestKey(path, method, strconv.Itoa(status))]++
}

// RecordError counts one request that ended in a domain error.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[requestKey(path, method, code)]++
}

// RequestCount returns the counter for a route/method/status triple.
func (m *Metrics) RequestCount(path, method string, status int) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[requestKey(path, method, strconv.Itoa(status))]
}

// ErrorCount returns the counter for a route/method/error-code triple.
func (m *Metrics) ErrorCount(path, method, code string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failures[requestKey(path, method, code)]
}

func requestKey(path, method, outcome string) string {
	return method + " " + path + " " + outcome
}

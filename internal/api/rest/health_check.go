package rest

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// HealthChecker checks one dependency
type HealthChecker interface {
	Name() string
	Check(ctx context.Context) error
}

// HealthStatus represents the health status
type HealthStatus string

const (
	HealthStatusPass HealthStatus = "pass"
	HealthStatusFail HealthStatus = "fail"
)

// HealthCheckResult is one dependency's outcome
type HealthCheckResult struct {
	Status       HealthStatus `json:"status"`
	Error        string       `json:"error,omitempty"`
	ResponseTime string       `json:"responseTime"`
}

// HealthResponse is the body of /health and /ready
type HealthResponse struct {
	Status  HealthStatus                 `json:"status"`
	Version string                       `json:"version"`
	Uptime  string                       `json:"uptime"`
	Checks  map[string]HealthCheckResult `json:"checks,omitempty"`
}

// HealthService serves liveness and readiness
type HealthService struct {
	checkers  []HealthChecker
	version   string
	timeout   time.Duration
	startTime time.Time
}

// NewHealthService creates a health service reporting version
func NewHealthService(version string, timeout time.Duration, checkers ...HealthChecker) *HealthService {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HealthService{
		checkers:  checkers,
		version:   version,
		timeout:   timeout,
		startTime: time.Now(),
	}
}

// LivenessHandler reports that the process is serving
func (s *HealthService) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, HealthResponse{
			Status:  HealthStatusPass,
			Version: s.version,
			Uptime:  time.Since(s.startTime).Round(time.Second).String(),
		})
	}
}

// ReadinessHandler checks every dependency concurrently; any failure gives 503
func (s *HealthService) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
		defer cancel()

		resp := HealthResponse{
			Status:  HealthStatusPass,
			Version: s.version,
			Uptime:  time.Since(s.startTime).Round(time.Second).String(),
			Checks:  make(map[string]HealthCheckResult, len(s.checkers)),
		}

		var (
			mu sync.Mutex
			wg sync.WaitGroup
		)
		for _, checker := range s.checkers {
			wg.Add(1)
			go func(c HealthChecker) {
				defer wg.Done()
				start := time.Now()
				err := c.Check(ctx)

				result := HealthCheckResult{Status: HealthStatusPass, ResponseTime: time.Since(start).String()}
				if err != nil {
					result.Status = HealthStatusFail
					result.Error = err.Error()
				}

				mu.Lock()
				resp.Checks[c.Name()] = result
				if err != nil {
					resp.Status = HealthStatusFail
				}
				mu.Unlock()
			}(checker)
		}
		wg.Wait()

		status := http.StatusOK
		if resp.Status != HealthStatusPass {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, resp)
	}
}

// PingChecker adapts a ping function, such as a store or Redis ping
type PingChecker struct {
	name string
	ping func(ctx context.Context) error
}

func NewPingChecker(name string, ping func(ctx context.Context) error) PingChecker {
	return PingChecker{name: name, ping: ping}
}

func (c PingChecker) Name() string                    { return c.name }
func (c PingChecker) Check(ctx context.Context) error { return c.ping(ctx) }

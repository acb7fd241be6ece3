package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status    string                 `json:"status"`
	Service   string                 `json:"service"`
	Timestamp int64                  `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks"`
}

type CheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// Pinger is satisfied by *sqlx.DB, *sql.DB and the redis client wrapper.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type HealthChecker struct {
	service string
	checks  map[string]Pinger
}

func NewHealthChecker(service string) *HealthChecker {
	return &HealthChecker{service: service, checks: make(map[string]Pinger)}
}

// AddCheck registers a dependency. A nil pinger is ignored so optional backends can be passed unconditionally.
func (hc *HealthChecker) AddCheck(name string, p Pinger) {
	if p == nil {
		return
	}
	hc.checks[name] = p
}

func (hc *HealthChecker) CheckHealth(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    StatusHealthy,
		Service:   hc.service,
		Timestamp: time.Now().Unix(),
		Checks:    make(map[string]CheckResult, len(hc.checks)),
	}

	for name, p := range hc.checks {
		cctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		start := time.Now()
		err := p.PingContext(cctx)
		cancel()

		result := CheckResult{Status: StatusHealthy, Latency: time.Since(start).String()}
		if err != nil {
			result.Status = StatusUnhealthy
			result.Message = fmt.Sprintf("%s ping failed: %v", name, err)
			status.Status = StatusUnhealthy
		}
		status.Checks[name] = result
	}
	return status
}

func (hc *HealthChecker) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		health := hc.CheckHealth(r.Context())
		code := http.StatusOK
		if health.Status == StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(health)
	})
}

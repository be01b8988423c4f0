package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/dmitrymomot/authbroker/pkg/logger"
)

const (
	healthTimeout   = 5 * time.Second
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
)

// CheckFunc is a readiness probe. pkg/db.Healthcheck and
// pkg/redis.Healthcheck return these.
type CheckFunc func(ctx context.Context) error

// Checks maps a probe name to its check.
type Checks map[string]CheckFunc

type healthResponse struct {
	Status string                 `json:"status"`
	Checks map[string]checkResult `json:"checks,omitempty"`
}

type checkResult struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func liveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: statusHealthy})
}

// readiness runs every check in parallel under one timeout.
func readiness(checks Checks, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := runChecks(r.Context(), checks, log)
		status := http.StatusOK
		if resp.Status != statusHealthy {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, resp)
	}
}

func runChecks(ctx context.Context, checks Checks, log *slog.Logger) healthResponse {
	if len(checks) == 0 {
		return healthResponse{Status: statusHealthy}
	}

	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]checkResult, len(checks))
		status  = statusHealthy
	)
	for name, check := range checks {
		wg.Go(func() {
			res := checkResult{Status: statusHealthy}
			if err := check(ctx); err != nil {
				res = checkResult{Status: statusUnhealthy, Error: err.Error()}
				log.WarnContext(ctx, "readiness check failed", slog.String("check", name), logger.Error(err))
			}
			mu.Lock()
			results[name] = res
			if res.Status != statusHealthy {
				status = statusUnhealthy
			}
			mu.Unlock()
		})
	}
	wg.Wait()

	return healthResponse{Status: status, Checks: results}
}

package handlers

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/turtacn/dashgate/internal/application/dto"
	"github.com/turtacn/dashgate/pkg/constants"
	"github.com/turtacn/dashgate/pkg/logger"
)

const probeTimeout = 2 * time.Second

// Pinger is a dependency probed by the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler provides the health check endpoint.
type HealthHandler struct {
	probes  map[string]Pinger
	mode    constants.Mode
	started time.Time
	log     logger.Logger
}

// NewHealthHandler creates a new HealthHandler. Probes with a nil Pinger are ignored.
func NewHealthHandler(probes map[string]Pinger, mode constants.Mode, log logger.Logger) *HealthHandler {
	active := make(map[string]Pinger, len(probes))
	for name, p := range probes {
		if p != nil {
			active[name] = p
		}
	}
	return &HealthHandler{
		probes:  active,
		mode:    mode,
		started: time.Now(),
		log:     log,
	}
}

// HealthCheck godoc
// @Summary      Health Check
// @Description  Checks the health of the service and its dependencies.
// @Tags         health
// @Produce      json
// @Success      200  {object}  dto.HealthResponse
// @Failure      503  {object}  dto.HealthResponse
// @Router       /api/health [get]
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	checks := h.performChecks(c.Request.Context())

	status, httpStatus := "healthy", http.StatusOK
	for _, checkStatus := range checks {
		if checkStatus != "ok" {
			status, httpStatus = "unhealthy", http.StatusServiceUnavailable
			break
		}
	}

	c.JSON(httpStatus, dto.HealthResponse{
		Status:      status,
		Timestamp:   time.Now().UTC(),
		Environment: string(h.mode),
		Version:     constants.ServiceVersion,
		Uptime:      time.Since(h.started).Seconds(),
		Checks:      checks,
	})
}

// performChecks probes every dependency concurrently. A failing probe does
// not cancel the others.
func (h *HealthHandler) performChecks(ctx context.Context) map[string]string {
	checks := make(map[string]string, len(h.probes))
	var mu sync.Mutex

	names := make([]string, 0, len(h.probes))
	for name := range h.probes {
		names = append(names, name)
	}
	sort.Strings(names)

	var g errgroup.Group
	for _, name := range names {
		probe := h.probes[name]
		g.Go(func() error {
			probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
			defer cancel()

			status := "ok"
			if err := probe.Ping(probeCtx); err != nil {
				status = "error: " + err.Error()
				h.log.Warn(ctx, "Health probe failed", logger.String("probe", name), logger.Err(err))
			}
			mu.Lock()
			checks[name] = status
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return checks
}

// Package health expone /healthz.
package health

import (
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/dropDatabas3/authemu/internal/http/helpers"
)

// Projects es lo que el health check lee del store.
type Projects interface {
	ProjectIDs() []string
}

// HealthController responde el estado del proceso.
type HealthController struct {
	projects Projects
	clock    clockwork.Clock
	started  time.Time
	version  string
}

// NewHealthController crea el controller; clock nil usa el reloj real.
func NewHealthController(projects Projects, clock clockwork.Clock, version string) *HealthController {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &HealthController{projects: projects, clock: clock, started: clock.Now(), version: version}
}

type healthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version,omitempty"`
	Projects      int    `json:"projects"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// Healthz maneja GET /healthz
func (c *HealthController) Healthz(w http.ResponseWriter, r *http.Request) {
	n := 0
	if c.projects != nil {
		n = len(c.projects.ProjectIDs())
	}
	helpers.WriteJSON(w, http.StatusOK, healthResponse{
		Status:        "ok",
		Version:       c.version,
		Projects:      n,
		UptimeSeconds: int64(c.clock.Since(c.started).Seconds()),
	})
}

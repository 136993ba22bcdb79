package handler

import (
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/filedepot/filedepot/data"
	"github.com/filedepot/filedepot/net/resp"
	"github.com/filedepot/filedepot/version"
)

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	data        *data.Data
	storageRoot string
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(d *data.Data, storageRoot string) *HealthHandler {
	return &HealthHandler{data: d, storageRoot: storageRoot}
}

// Live is a pure in-process liveness check. It deliberately touches neither
// the ledger nor the artifact store so storage outages don't flap liveness.
func (h *HealthHandler) Live(c *gin.Context) {
	resp.Success(c.Writer, map[string]string{
		"status":  "healthy",
		"version": version.GetVersionInfo().Version,
	})
}

// Ready reports readiness: database reachability and storage root presence.
func (h *HealthHandler) Ready(c *gin.Context) {
	health := h.data.Health(c.Request.Context())
	services := health["services"].(map[string]any)

	if info, err := os.Stat(h.storageRoot); err != nil || !info.IsDir() {
		services["storage"] = map[string]any{"status": "unhealthy", "root": h.storageRoot}
		health["status"] = "degraded"
	} else {
		services["storage"] = map[string]any{"status": "healthy", "root": h.storageRoot}
	}

	if health["status"] != "healthy" {
		resp.WithStatusCode(c.Writer, http.StatusServiceUnavailable, health)
		return
	}
	resp.Success(c.Writer, health)
}

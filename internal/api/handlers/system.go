package handlers

import (
	"net/http"

	"github.com/ndewijer/fund-ledger/internal/api/response"
	"github.com/ndewijer/fund-ledger/internal/apperrors"
	"github.com/ndewijer/fund-ledger/internal/service"
)

// SystemHandler serves the unauthenticated system namespace.
type SystemHandler struct {
	systemService *service.SystemService
}

// NewSystemHandler creates a new SystemHandler
func NewSystemHandler(systemService *service.SystemService) *SystemHandler {
	return &SystemHandler{
		systemService: systemService,
	}
}

// Health reports database connectivity, whether the fund has been created
// and when the data feed was last updated.
//
// Endpoint: GET /api/system/health
// Response: 200 OK with model.Health
// Error: 503 Service Unavailable if the database does not answer
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	health, err := h.systemService.CheckHealth(r.Context())
	if err != nil {
		response.RespondJSON(w, http.StatusServiceUnavailable, health)
		return
	}

	response.RespondJSON(w, http.StatusOK, health)
}

// Version handles GET requests to retrieve version information and feature availability.
// Returns the application version, the applied schema migration and whether
// migrations are pending.
//
// Endpoint: GET /api/system/version
// Response: 200 OK with model.VersionInfo
// Error: 500 Internal Server Error if version check fails
func (h *SystemHandler) Version(w http.ResponseWriter, _ *http.Request) {
	info, err := h.systemService.GetVersionInfo()
	if err != nil {
		response.RespondError(w, http.StatusInternalServerError, apperrors.ErrFailedToGetVersionInfo.Error(), err.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, info)
}

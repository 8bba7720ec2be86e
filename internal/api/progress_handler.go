package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/requiemhq/requiem-api/internal/api/shared"
	"github.com/requiemhq/requiem-api/internal/config"
	"github.com/requiemhq/requiem-api/internal/service"
)

// ProgressHandler handles task listing, editing, reporting and reset.
type ProgressHandler struct {
	progressService service.ProgressService
	cfg             config.ProgressConfig
}

// NewProgressHandler creates a new ProgressHandler.
func NewProgressHandler(
	progressService service.ProgressService,
	cfg config.ProgressConfig,
) *ProgressHandler {
	return &ProgressHandler{
		progressService: progressService,
		cfg:             cfg,
	}
}

// GetProgress handles GET /api/progress requests.
func (h *ProgressHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.progressService.ListTasks(r.Context())
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, ProgressResponse{
		Tasks:           tasksToResponse(tasks),
		OverallProgress: service.OverallProgress(tasks),
	})
}

// GetReport handles GET /api/progress/report requests.
func (h *ProgressHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.progressService.ListTasks(r.Context())
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	events, err := h.progressService.RecentEvents(r.Context(), h.cfg.EventHistoryLimit)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, ProgressReportResponse{
		Tasks:           tasksToResponse(tasks),
		RecentEvents:    eventsToResponse(events),
		OverallProgress: service.OverallProgress(tasks),
	})
}

// UpdateTask handles PUT /api/progress/{id} requests.
func (h *ProgressHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid task ID")
		return
	}

	var req UpdateTaskRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	task, err := h.progressService.UpdateTask(
		r.Context(), id, req.Name, req.Progress, req.Description)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(task))
}

// ResetProgress handles POST /api/progress/reset requests. It wipes all
// history and rebuilds the task set from the configured seed list.
func (h *ProgressHandler) ResetProgress(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.progressService.ResetFromSeeds(r.Context(), h.cfg.SeedTasks)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, ProgressResponse{
		Tasks:           tasksToResponse(tasks),
		OverallProgress: service.OverallProgress(tasks),
	})
}

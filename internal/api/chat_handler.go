package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/requiemhq/requiem-api/internal/annotation"
	"github.com/requiemhq/requiem-api/internal/api/shared"
	"github.com/requiemhq/requiem-api/internal/config"
	"github.com/requiemhq/requiem-api/internal/domain"
	"github.com/requiemhq/requiem-api/internal/generation"
	"github.com/requiemhq/requiem-api/internal/service"
	"github.com/requiemhq/requiem-api/internal/store"
)

// History limit bounds for GET /api/chat/history.
const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// ChatHandler handles chat message posting and history. Posting a
// message is the entry point for annotation-driven progress updates:
// the AI reply text is scanned for directives and each one is applied
// through the progress service.
type ChatHandler struct {
	messageStore    store.MessageStore
	generator       generation.Generator
	progressService service.ProgressService
	chatCfg         config.ChatConfig
	progressCfg     config.ProgressConfig
	logger          *slog.Logger
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(
	messageStore store.MessageStore,
	generator generation.Generator,
	progressService service.ProgressService,
	chatCfg config.ChatConfig,
	progressCfg config.ProgressConfig,
	logger *slog.Logger,
) *ChatHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatHandler{
		messageStore:    messageStore,
		generator:       generator,
		progressService: progressService,
		chatCfg:         chatCfg,
		progressCfg:     progressCfg,
		logger:          logger.With("component", "chat_handler"),
	}
}

// PostMessage handles POST /api/chat/message requests.
func (h *ChatHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := shared.GetUserID(r.Context())
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "User ID not found or invalid")
		return
	}

	var req ChatMessageRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	userMessage, err := domain.NewMessage(
		userID, domain.MessageRoleUser, strings.TrimSpace(req.Content))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid message content")
		return
	}
	if err := h.messageStore.Create(r.Context(), userMessage); err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	reply, err := h.generator.Generate(r.Context(), req.Content)
	if err != nil {
		// The generator stack carries its own fallback; an error here
		// means even the local template path broke.
		shared.RespondWithErrorAndLog(w, r,
			http.StatusInternalServerError, "Failed to generate reply", err)
		return
	}

	aiMessage, err := domain.NewMessage(userID, domain.MessageRoleAI, reply)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			http.StatusInternalServerError, "Failed to persist reply", err)
		return
	}
	if err := h.messageStore.Create(r.Context(), aiMessage); err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	h.applyDirectives(r, reply)

	if _, err := h.progressService.AdvanceNextTask(r.Context(), h.chatCfg.AdvanceStep); err != nil {
		// The chat exchange already succeeded; a failed nudge is an
		// operational signal, not a request failure.
		h.logger.Error("failed to advance next task after chat message",
			"error", err,
			"user_id", userID)
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, []MessageResponse{
		messageToResponse(userMessage),
		messageToResponse(aiMessage),
	})
}

// applyDirectives extracts progress directives from the AI reply and
// applies each in order through the progress service. Directive
// failures are logged and do not fail the chat request.
func (h *ChatHandler) applyDirectives(r *http.Request, reply string) {
	for _, directive := range annotation.Extract(reply) {
		event, err := h.progressService.ApplyDirective(
			r.Context(), directive, h.progressCfg.DefaultEventSource)
		if err != nil {
			h.logger.Error("failed to apply progress directive",
				"error", err,
				"task_name", directive.TaskName)
			continue
		}
		h.logger.Debug("applied progress directive from chat reply",
			"task_name", event.TaskName,
			"progress", event.Progress)
	}
}

// GetHistory handles GET /api/chat/history requests. Messages are
// returned in chronological order.
func (h *ChatHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := shared.GetUserID(r.Context())
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "User ID not found or invalid")
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxHistoryLimit {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid limit parameter")
			return
		}
		limit = parsed
	}

	messages, err := h.messageStore.ListRecentByUser(r.Context(), userID, limit)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	// Store order is newest-first; flip for chronological display.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	shared.RespondWithJSON(w, r, http.StatusOK, messagesToResponse(messages))
}

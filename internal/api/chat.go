package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kartoza/stats-workbench/internal/chat"
	"github.com/kartoza/stats-workbench/internal/httputil"
	"github.com/kartoza/stats-workbench/internal/models"
)

func sessionResponse(t *chat.Transcript) models.ChatSessionResponse {
	return models.ChatSessionResponse{
		ID:        t.ID,
		Messages:  t.Visible(),
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

// handleCreateSession starts a transcript seeded with the configured prompt
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	t, err := h.chats.Create(h.cfg.Chat.SystemPrompt)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, sessionResponse(t))
}

// handleListSessions lists stored transcripts
func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.chats.List()
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, sessions)
}

// handleGetSession returns a transcript's visible messages
func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	t, err := h.chats.Get(mux.Vars(r)["id"])
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, sessionResponse(t))
}

// handleDeleteSession removes a transcript
func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.chats.Delete(mux.Vars(r)["id"]); err != nil {
		h.respondErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSendMessage takes one user turn. A failed completion still records
// the fallback reply and answers 200 with the error alongside. A turn that
// was cancelled, by a disconnect or a newer turn from the same client, is
// not recorded at all.
func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req models.ChatMessageRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := models.Validate(req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	t, err := h.chats.Get(id)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}

	ctx, done := h.outbound(r, "chat:"+id)
	defer done()

	appended, sendErr := t.Conversation().Send(ctx, h.services.Chat, req.Content)
	if errors.Is(sendErr, chat.ErrEmptyMessage) || errors.Is(sendErr, context.Canceled) {
		h.respondErr(w, r, sendErr)
		return
	}

	if err := h.chats.Append(id, appended...); err != nil {
		h.respondErr(w, r, err)
		return
	}

	resp := models.ChatSendResponse{Messages: appended}
	if sendErr != nil {
		h.logger.Warn("Chat completion failed",
			zap.String("session", id),
			zap.Error(sendErr),
		)
		resp.Error = sendErr.Error()
	}
	httputil.RespondJSON(w, http.StatusOK, resp)
}

package assistant

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/fitcoach-platform/fitcoach/internal/api"
	"github.com/fitcoach-platform/fitcoach/internal/auth"
)

type ChatRequest struct {
	SessionID string `json:"session_id" validate:"required,max=128"`
	Message   string `json:"message" validate:"required,max=4000"`
}

type ChatHandler struct {
	assistant *Assistant
	validate  *validator.Validate
}

func NewChatHandler(a *Assistant) *ChatHandler {
	return &ChatHandler{assistant: a, validate: validator.New()}
}

// Chat handles POST /api/v1/chat: one full conversation turn.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserClaims(r.Context())
	if claims == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	reply, err := h.assistant.Respond(r.Context(), claims.UserID, req.SessionID, req.Message)
	if err != nil {
		if errors.Is(err, ErrAssistantUnavailable) {
			slog.Error("assistant unavailable", "user_id", claims.UserID, "error", err)
			api.HandleError(w, api.ErrUnavailable)
			return
		}
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusOK, reply)
}

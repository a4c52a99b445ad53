package retrieval

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/fitcoach-platform/fitcoach/internal/api"
	"github.com/fitcoach-platform/fitcoach/internal/auth"
)

type SearchRequest struct {
	Query          string `json:"query" validate:"required,max=500"`
	MaxResults     int    `json:"max_results" validate:"omitempty,min=1,max=10"`
	TimeWindowDays int    `json:"time_window_days" validate:"omitempty,min=1,max=365"`
}

type SearchHandler struct {
	engine   *Engine
	validate *validator.Validate
}

func NewSearchHandler(engine *Engine) *SearchHandler {
	return &SearchHandler{engine: engine, validate: validator.New()}
}

// Search handles POST /api/v1/memory/search: a direct hybrid search over the
// caller's own history, outside any conversation turn.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserClaims(r.Context())
	if claims == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	if err := h.engine.EnsureReady(r.Context()); err != nil {
		slog.Warn("index build failed, serving lexical-only results",
			"user_id", claims.UserID, "error", err)
	}

	results, err := h.engine.Search(r.Context(), claims.UserID, req.Query, Options{
		MaxResults:     req.MaxResults,
		TimeWindowDays: req.TimeWindowDays,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusOK, map[string]any{
		"query":   req.Query,
		"count":   len(results),
		"results": results,
	})
}

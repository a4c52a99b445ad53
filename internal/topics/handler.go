package topics

import (
	"net/http"
	"strconv"

	"github.com/fitcoach-platform/fitcoach/internal/api"
	"github.com/fitcoach-platform/fitcoach/internal/auth"
)

const (
	defaultSummaryDays = 7
	maxSummaryDays     = 90
)

type SummaryHandler struct {
	summarizer *Summarizer
}

func NewSummaryHandler(s *Summarizer) *SummaryHandler {
	return &SummaryHandler{summarizer: s}
}

// Summary handles GET /api/v1/memory/summary?days=N.
func (h *SummaryHandler) Summary(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserClaims(r.Context())
	if claims == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	days := defaultSummaryDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxSummaryDays {
			api.HandleError(w, api.NewBadRequestError("days must be between 1 and 90"))
			return
		}
		days = parsed
	}

	summary, err := h.summarizer.Summarize(r.Context(), claims.UserID, r.URL.Query().Get("session_id"), days)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusOK, summary)
}

package httpapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/shiroseschnee/bullet-royale/internal/usecase"
)

func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetLeaderboard")
	defer span.End()

	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	if err := h.validateRequest(ctx, listQuery{Limit: limit}); err != nil {
		writeError(ctx, w, err)
		return
	}

	standings, err := h.leaderboardService.Standings(ctx, limit)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	response := make([]standingDTO, 0, len(standings))
	for _, standing := range standings {
		response = append(response, standingDTO{
			Rank:      standing.Rank,
			playerDTO: playerToDTO(standing.Player),
		})
	}

	writeSuccess(ctx, w, http.StatusOK, response)
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: limit must be an integer", usecase.ErrInvalidInput)
	}
	return limit, nil
}

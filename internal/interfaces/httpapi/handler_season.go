package httpapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/shiroseschnee/bullet-royale/internal/usecase"
)

func (h *Handler) GetCurrentSeason(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetCurrentSeason")
	defer span.End()

	current, err := h.seasonService.Current(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, seasonToDTO(current))
}

func (h *Handler) GetSeasonRankings(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetSeasonRankings")
	defer span.End()

	number, err := strconv.Atoi(r.PathValue("number"))
	if err != nil {
		writeError(ctx, w, fmt.Errorf("%w: season number must be an integer", usecase.ErrInvalidInput))
		return
	}

	rankings, err := h.seasonService.Rankings(ctx, number)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	response := make([]rankingDTO, 0, len(rankings))
	for _, ranking := range rankings {
		response = append(response, rankingToDTO(ranking))
	}

	writeSuccess(ctx, w, http.StatusOK, response)
}

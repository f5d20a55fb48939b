package httpapi

import (
	"net/http"
)

func (h *Handler) GetPlayer(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetPlayer")
	defer span.End()

	profile, err := h.playerService.ProfileByUsername(ctx, r.PathValue("username"), 0)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, profileToDTO(profile))
}

func (h *Handler) GetPlayerMatches(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetPlayerMatches")
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

	records, err := h.playerService.RecentMatches(ctx, r.PathValue("username"), limit)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	response := make([]matchDTO, 0, len(records))
	for _, record := range records {
		response = append(response, matchToDTO(record))
	}

	writeSuccess(ctx, w, http.StatusOK, response)
}

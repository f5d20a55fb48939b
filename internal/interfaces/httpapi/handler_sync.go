package httpapi

import (
	"fmt"
	"net/http"

	"github.com/shiroseschnee/bullet-royale/internal/usecase"
)

// SyncMe reconciles the logged-in player on demand. Replays are idempotent,
// so a double-click costs one upstream fetch and nothing else.
func (h *Handler) SyncMe(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.SyncMe")
	defer span.End()

	principal, ok := principalFromContext(ctx)
	if !ok {
		writeError(ctx, w, fmt.Errorf("%w: missing session", usecase.ErrUnauthorized))
		return
	}

	result, err := h.syncService.SyncPlayer(ctx, principal.PlayerID)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, syncResultToDTO(result))
}

func (h *Handler) RunSyncJob(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RunSyncJob")
	defer span.End()

	result, err := h.syncService.SyncAll(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, syncSweepDTO{
		Players:    result.Players,
		Succeeded:  result.Succeeded,
		Failed:     result.Failed,
		NewMatches: result.NewMatches,
	})
}

func (h *Handler) RunRotateJob(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RunRotateJob")
	defer span.End()

	number, err := h.seasonService.Rotate(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, map[string]int{"newSeason": number})
}

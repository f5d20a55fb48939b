package httpapi

import "net/http"

func registerSystemRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("GET /healthz", handler.Healthz)
}

func registerPublicRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("GET /v1/auth/lichess/login", handler.Login)
	mux.HandleFunc("GET /v1/auth/lichess/callback", handler.LoginCallback)

	mux.HandleFunc("GET /v1/leaderboard", handler.GetLeaderboard)
	mux.HandleFunc("GET /v1/players/{username}", handler.GetPlayer)
	mux.HandleFunc("GET /v1/players/{username}/matches", handler.GetPlayerMatches)
	mux.HandleFunc("GET /v1/seasons/current", handler.GetCurrentSeason)
	mux.HandleFunc("GET /v1/seasons/{number}/rankings", handler.GetSeasonRankings)
}

func registerPlayerRoutes(mux *http.ServeMux, handler *Handler, sessions SessionVerifier) {
	mux.Handle("GET /v1/me", RequireAuth(sessions, http.HandlerFunc(handler.Me)))
	mux.Handle("POST /v1/logout", RequireAuth(sessions, http.HandlerFunc(handler.Logout)))
	mux.Handle("POST /v1/sync", RequireAuth(sessions, http.HandlerFunc(handler.SyncMe)))
}

func registerInternalJobRoutes(mux *http.ServeMux, handler *Handler, token string) {
	mux.Handle("POST /v1/internal/jobs/sync", RequireInternalJobToken(token, http.HandlerFunc(handler.RunSyncJob)))
	mux.Handle("POST /v1/internal/jobs/rotate", RequireInternalJobToken(token, http.HandlerFunc(handler.RunRotateJob)))
}

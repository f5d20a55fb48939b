package httpapi

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/shiroseschnee/bullet-royale/internal/usecase"
)

type loginResponse struct {
	Token  string    `json:"token"`
	Player playerDTO `json:"player"`
}

// Login redirects the browser to the lichess consent page.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.Login")
	defer span.End()

	authorizeURL, err := h.authService.BeginLogin(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	http.Redirect(w, r.WithContext(ctx), authorizeURL, http.StatusFound)
}

// LoginCallback finishes the PKCE flow. With a frontend configured the
// session token travels back in the redirect fragment so it never lands in
// server logs; without one the token is returned as JSON.
func (h *Handler) LoginCallback(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.LoginCallback")
	defer span.End()

	query := r.URL.Query()
	if errCode := query.Get("error"); errCode != "" {
		writeError(ctx, w, fmt.Errorf("%w: authorization denied: %s", usecase.ErrUnauthorized, errCode))
		return
	}

	token, p, err := h.authService.CompleteLogin(ctx, query.Get("code"), query.Get("state"))
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	if h.frontendURL != "" {
		target := h.frontendURL + "#token=" + url.QueryEscape(token)
		http.Redirect(w, r.WithContext(ctx), target, http.StatusFound)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, loginResponse{
		Token:  token,
		Player: playerToDTO(p),
	})
}

// Me returns the profile of the logged-in player.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.Me")
	defer span.End()

	principal, ok := principalFromContext(ctx)
	if !ok {
		writeError(ctx, w, fmt.Errorf("%w: missing session", usecase.ErrUnauthorized))
		return
	}

	profile, err := h.playerService.ProfileByID(ctx, principal.PlayerID, 0)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, profileToDTO(profile))
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.Logout")
	defer span.End()

	token, err := bearerToken(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	h.authService.Logout(ctx, token)
	writeSuccess(ctx, w, http.StatusOK, map[string]bool{"loggedOut": true})
}

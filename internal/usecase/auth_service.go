package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/shiroseschnee/bullet-royale/internal/domain/player"
	"github.com/shiroseschnee/bullet-royale/internal/platform/cache"
	"github.com/shiroseschnee/bullet-royale/internal/platform/id"
	"github.com/shiroseschnee/bullet-royale/internal/platform/logging"
)

// LichessAuthClient is the slice of the lichess API the login flow needs.
type LichessAuthClient interface {
	AuthorizeURL(state, codeChallenge string) string
	ExchangeCode(ctx context.Context, code, codeVerifier string) (string, error)
	Account(ctx context.Context, accessToken string) (LichessAccount, error)
}

// LichessAccount is the authenticated account behind an access token.
type LichessAccount struct {
	ID       string
	Username string
}

// AuthService runs the PKCE login flow and owns sessions. OAuth state lives
// in a short-TTL cache and is consumed on first use; sessions live in their
// own longer-TTL cache.
type AuthService struct {
	playerRepo player.Repository
	lichess    LichessAuthClient
	states     *cache.Store
	sessions   *cache.Store
	ids        id.Generator
	syncSvc    *SyncService
	logger     *logging.Logger
	now        func() time.Time
}

const initialSyncTimeout = 2 * time.Minute

func NewAuthService(
	playerRepo player.Repository,
	lichess LichessAuthClient,
	states, sessions *cache.Store,
	ids id.Generator,
	syncSvc *SyncService,
	logger *logging.Logger,
) *AuthService {
	if logger == nil {
		logger = logging.Default()
	}
	return &AuthService{
		playerRepo: playerRepo,
		lichess:    lichess,
		states:     states,
		sessions:   sessions,
		ids:        ids,
		syncSvc:    syncSvc,
		logger:     logger,
		now:        time.Now,
	}
}

// BeginLogin mints a state and code verifier, parks the verifier under the
// state key, and returns the lichess authorize URL to redirect to.
func (s *AuthService) BeginLogin(ctx context.Context) (string, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.AuthService.BeginLogin")
	defer span.End()

	state, err := s.ids.NewID()
	if err != nil {
		return "", fmt.Errorf("generate login state: %w", err)
	}
	verifier, err := s.ids.NewSecret(32)
	if err != nil {
		return "", fmt.Errorf("generate code verifier: %w", err)
	}

	s.states.Set(ctx, state, verifier)

	return s.lichess.AuthorizeURL(state, codeChallengeS256(verifier)), nil
}

// CompleteLogin consumes the state, exchanges the code, upserts the player,
// and returns a session token. The first sync for the account runs in the
// background so login latency does not depend on the upstream API.
func (s *AuthService) CompleteLogin(ctx context.Context, code, state string) (string, player.Player, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.AuthService.CompleteLogin")
	defer span.End()

	code = strings.TrimSpace(code)
	state = strings.TrimSpace(state)
	if code == "" || state == "" {
		return "", player.Player{}, fmt.Errorf("%w: code and state are required", ErrInvalidInput)
	}

	stored, ok := s.states.Take(ctx, state)
	if !ok {
		return "", player.Player{}, fmt.Errorf("%w: unknown or expired login state", ErrUnauthorized)
	}
	verifier, _ := stored.(string)
	if verifier == "" {
		return "", player.Player{}, fmt.Errorf("%w: corrupt login state", ErrUnauthorized)
	}

	accessToken, err := s.lichess.ExchangeCode(ctx, code, verifier)
	if err != nil {
		return "", player.Player{}, fmt.Errorf("exchange authorization code: %w", err)
	}

	account, err := s.lichess.Account(ctx, accessToken)
	if err != nil {
		return "", player.Player{}, fmt.Errorf("fetch lichess account: %w", err)
	}
	if account.ID == "" || account.Username == "" {
		return "", player.Player{}, fmt.Errorf("%w: incomplete lichess account", ErrDependencyUnavailable)
	}

	p, err := s.ensurePlayer(ctx, account)
	if err != nil {
		return "", player.Player{}, err
	}

	token, err := s.ids.NewSecret(32)
	if err != nil {
		return "", player.Player{}, fmt.Errorf("generate session token: %w", err)
	}
	s.sessions.Set(ctx, token, player.Principal{
		PlayerID:  p.ID,
		LichessID: p.LichessID,
		Username:  p.Username,
	})

	if s.syncSvc != nil {
		go s.initialSync(p.ID)
	}

	return token, p, nil
}

func (s *AuthService) VerifySession(ctx context.Context, token string) (player.Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return player.Principal{}, fmt.Errorf("%w: missing session token", ErrUnauthorized)
	}

	stored, ok := s.sessions.Get(ctx, token)
	if !ok {
		return player.Principal{}, fmt.Errorf("%w: unknown or expired session", ErrUnauthorized)
	}
	principal, ok := stored.(player.Principal)
	if !ok {
		return player.Principal{}, fmt.Errorf("%w: corrupt session", ErrUnauthorized)
	}

	return principal, nil
}

func (s *AuthService) Logout(ctx context.Context, token string) {
	s.sessions.Delete(ctx, strings.TrimSpace(token))
}

func (s *AuthService) ensurePlayer(ctx context.Context, account LichessAccount) (player.Player, error) {
	existing, found, err := s.playerRepo.GetByLichessID(ctx, account.ID)
	if err != nil {
		return player.Player{}, fmt.Errorf("get player by lichess id: %w", err)
	}
	if found {
		return existing, nil
	}

	playerID, err := s.ids.NewID()
	if err != nil {
		return player.Player{}, fmt.Errorf("generate player id: %w", err)
	}
	created := player.Player{
		ID:        playerID,
		LichessID: account.ID,
		Username:  account.Username,
		CreatedAt: s.now().UTC(),
	}
	if err := created.Validate(); err != nil {
		return player.Player{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := s.playerRepo.Create(ctx, created); err != nil {
		return player.Player{}, fmt.Errorf("create player: %w", err)
	}

	s.logger.InfoContext(ctx, "player registered",
		"player_id", created.ID, "username", created.Username)

	return created, nil
}

func (s *AuthService) initialSync(playerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), initialSyncTimeout)
	defer cancel()

	if _, err := s.syncSvc.SyncPlayer(ctx, playerID); err != nil {
		s.logger.WarnContext(ctx, "initial sync failed", "player_id", playerID, "error", err)
	}
}

func codeChallengeS256(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

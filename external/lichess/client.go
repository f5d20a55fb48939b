package lichess

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/shiroseschnee/bullet-royale/internal/platform/logging"
	"github.com/shiroseschnee/bullet-royale/internal/platform/resilience"
	"github.com/shiroseschnee/bullet-royale/internal/usecase"
	"github.com/valyala/bytebufferpool"
)

const (
	defaultBaseURL       = "https://lichess.org"
	defaultMaxGames      = 300
	maxResponseBytes     = 8 << 20
	contentTypeNDJSON    = "application/x-ndjson"
	codeChallengeMethod  = "S256"
	authorizationGrant   = "authorization_code"
	perfTypeBullet       = "bullet"
	maxNDJSONLineEntries = 1000
)

var bearerTokenRegex = regexp.MustCompile(`(?i)bearer\s+[^\s"']+`)
var errLichessTransient = crerr.New("lichess transient failure")

type ClientConfig struct {
	HTTPClient     *http.Client
	BaseURL        string
	ClientID       string
	RedirectURL    string
	MaxGames       int
	Timeout        time.Duration
	MaxRetries     int
	Logger         *logging.Logger
	CircuitBreaker resilience.CircuitBreakerConfig
}

// Client talks to the lichess REST API. It serves both the match export used
// by reconciliation and the OAuth PKCE endpoints used by login.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	clientID       string
	redirectURL    string
	maxGames       int
	maxRetries     int
	logger         *logging.Logger
	breaker        *resilience.CircuitBreaker
	circuitEnabled bool
	flight         resilience.SingleFlight
}

var _ usecase.MatchSource = (*Client)(nil)
var _ usecase.LichessAuthClient = (*Client)(nil)

func NewClient(cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if httpClient.Timeout <= 0 {
		httpClient.Timeout = 30 * time.Second
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	maxGames := cfg.MaxGames
	if maxGames <= 0 {
		maxGames = defaultMaxGames
	}
	breakerCfg := resilience.NormalizeCircuitBreakerConfig(cfg.CircuitBreaker)

	return &Client{
		httpClient:     httpClient,
		baseURL:        baseURL,
		clientID:       strings.TrimSpace(cfg.ClientID),
		redirectURL:    strings.TrimSpace(cfg.RedirectURL),
		maxGames:       maxGames,
		maxRetries:     maxInt(cfg.MaxRetries, 0),
		logger:         logger,
		breaker:        resilience.NewCircuitBreaker(breakerCfg.FailureThreshold, breakerCfg.OpenTimeout, breakerCfg.HalfOpenMaxReq),
		circuitEnabled: breakerCfg.Enabled,
	}
}

// FetchMatches pulls the player's finished bullet games as NDJSON, newest
// first upstream, one game per line. A nil since means the full export window
// the server allows.
func (c *Client) FetchMatches(ctx context.Context, username string, since *time.Time) ([]usecase.ExternalMatch, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("username is required")
	}

	query := url.Values{}
	query.Set("rated", "true")
	query.Set("perfType", perfTypeBullet)
	query.Set("max", strconv.Itoa(c.maxGames))
	query.Set("moves", "false")
	if since != nil && !since.IsZero() {
		query.Set("since", strconv.FormatInt(since.UTC().UnixMilli(), 10))
	}

	path := "/api/games/user/" + url.PathEscape(username)
	raw, err := c.doShared(ctx, path, query, contentTypeNDJSON, "")
	if err != nil {
		return nil, fmt.Errorf("fetch games user=%s: %w", username, err)
	}

	games, err := decodeGameLines(raw)
	if err != nil {
		return nil, fmt.Errorf("decode game export user=%s: %w", username, err)
	}

	out := make([]usecase.ExternalMatch, 0, len(games))
	for _, item := range games {
		out = append(out, mapGame(item))
	}
	return out, nil
}

// AuthorizeURL builds the lichess OAuth consent URL for a PKCE login.
func (c *Client) AuthorizeURL(state, codeChallenge string) string {
	query := url.Values{}
	query.Set("response_type", "code")
	query.Set("client_id", c.clientID)
	query.Set("redirect_uri", c.redirectURL)
	query.Set("code_challenge_method", codeChallengeMethod)
	query.Set("code_challenge", codeChallenge)
	query.Set("state", state)
	return c.baseURL + "/oauth?" + query.Encode()
}

// ExchangeCode trades an authorization code plus its PKCE verifier for an
// access token. Codes are single use, so this call never goes through the
// request coalescer.
func (c *Client) ExchangeCode(ctx context.Context, code, codeVerifier string) (string, error) {
	if err := c.allow(ctx); err != nil {
		return "", err
	}

	form := url.Values{}
	form.Set("grant_type", authorizationGrant)
	form.Set("code", code)
	form.Set("code_verifier", codeVerifier)
	form.Set("redirect_uri", c.redirectURL)
	form.Set("client_id", c.clientID)

	raw, err := c.execute(ctx, http.MethodPost, c.baseURL+"/api/token", strings.NewReader(form.Encode()), map[string]string{
		"content-type": "application/x-www-form-urlencoded",
		"accept":       "application/json",
	})
	c.record(err)
	if err != nil {
		return "", fmt.Errorf("exchange authorization code: %w", err)
	}

	var payload tokenResponse
	if err := sonic.Unmarshal(raw, &payload); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	token := strings.TrimSpace(payload.AccessToken)
	if token == "" {
		return "", fmt.Errorf("token response carries no access token")
	}
	return token, nil
}

// Account resolves the account behind an access token.
func (c *Client) Account(ctx context.Context, accessToken string) (usecase.LichessAccount, error) {
	if err := c.allow(ctx); err != nil {
		return usecase.LichessAccount{}, err
	}

	raw, err := c.execute(ctx, http.MethodGet, c.baseURL+"/api/account", nil, map[string]string{
		"accept":        "application/json",
		"authorization": "Bearer " + accessToken,
	})
	c.record(err)
	if err != nil {
		return usecase.LichessAccount{}, fmt.Errorf("fetch account: %w", err)
	}

	var payload accountResponse
	if err := sonic.Unmarshal(raw, &payload); err != nil {
		return usecase.LichessAccount{}, fmt.Errorf("decode account response: %w", err)
	}
	if payload.ID == "" {
		return usecase.LichessAccount{}, fmt.Errorf("account response carries no id")
	}
	return usecase.LichessAccount{ID: payload.ID, Username: payload.Username}, nil
}

// doShared coalesces identical in-flight GETs and records breaker outcomes.
func (c *Client) doShared(ctx context.Context, path string, query url.Values, accept, bearer string) ([]byte, error) {
	if err := c.allow(ctx); err != nil {
		return nil, err
	}

	fullURL := c.baseURL + path
	if encoded := query.Encode(); encoded != "" {
		fullURL += "?" + encoded
	}

	headers := map[string]string{"accept": accept}
	if bearer != "" {
		headers["authorization"] = "Bearer " + bearer
	}

	key := path + "?" + query.Encode()
	out, err, _ := c.flight.Do(key, func() (any, error) {
		raw, reqErr := c.execute(ctx, http.MethodGet, fullURL, nil, headers)
		c.record(reqErr)
		return raw, reqErr
	})
	if err != nil {
		return nil, err
	}

	raw, ok := out.([]byte)
	if !ok {
		return nil, fmt.Errorf("unexpected response payload type %T", out)
	}
	return raw, nil
}

func (c *Client) allow(ctx context.Context) error {
	if !c.circuitEnabled {
		return nil
	}
	if err := c.breaker.Allow(); err != nil {
		c.logger.WarnContext(ctx, "lichess circuit breaker rejected request", "state", c.breaker.State())
		return fmt.Errorf("%w: lichess is temporarily unavailable", usecase.ErrDependencyUnavailable)
	}
	return nil
}

func (c *Client) record(err error) {
	if !c.circuitEnabled {
		return
	}
	if err != nil && stderrors.Is(err, errLichessTransient) {
		c.breaker.RecordFailure()
		return
	}
	c.breaker.RecordSuccess()
}

func (c *Client) execute(ctx context.Context, method, fullURL string, body io.Reader, headers map[string]string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		for key, value := range headers {
			req.Header.Set(key, value)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("%w: send request: %s", errLichessTransient, sanitizeSensitiveText(err.Error()))
		} else {
			raw, readErr := readBodyPooled(resp.Body)
			_ = resp.Body.Close()
			if readErr != nil {
				lastErr = fmt.Errorf("%w: read response body: %v", errLichessTransient, readErr)
			} else if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return raw, nil
			} else if isRetryableStatus(resp.StatusCode) {
				lastErr = fmt.Errorf("%w: lichess status=%d body=%s", errLichessTransient, resp.StatusCode, abbreviateBody(raw))
			} else {
				return nil, fmt.Errorf("lichess status=%d body=%s", resp.StatusCode, abbreviateBody(raw))
			}
		}

		// Retrying a consumed request body would replay garbage.
		if body != nil {
			break
		}
		if attempt == c.maxRetries {
			break
		}
		backoff := time.Duration(attempt+1) * time.Second
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("lichess request failed")
	}
	c.logger.WarnContext(ctx, "lichess request failed", "url", fullURL, "error", lastErr)
	return nil, lastErr
}

// readBodyPooled drains the body through a pooled buffer and returns a copy
// the caller owns.
func readBodyPooled(body io.Reader) ([]byte, error) {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	if _, err := buf.ReadFrom(io.LimitReader(body, maxResponseBytes)); err != nil {
		return nil, err
	}
	return append([]byte(nil), buf.B...), nil
}

type gameLine struct {
	ID        string `json:"id"`
	Rated     bool   `json:"rated"`
	Speed     string `json:"speed"`
	Status    string `json:"status"`
	Winner    string `json:"winner"`
	CreatedAt int64  `json:"createdAt"`
	Players   struct {
		White gameSeat `json:"white"`
		Black gameSeat `json:"black"`
	} `json:"players"`
}

type gameSeat struct {
	User struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"user"`
	Rating int `json:"rating"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type accountResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// decodeGameLines parses an NDJSON export, one game object per line. Blank
// lines are skipped; a malformed line fails the whole export so a truncated
// response never passes as a short history.
func decodeGameLines(raw []byte) ([]gameLine, error) {
	out := make([]gameLine, 0, 64)
	start := 0
	for start <= len(raw) {
		end := start
		for end < len(raw) && raw[end] != '\n' {
			end++
		}
		line := strings.TrimSpace(string(raw[start:end]))
		start = end + 1
		if line == "" {
			continue
		}
		if len(out) >= maxNDJSONLineEntries {
			return nil, fmt.Errorf("export exceeds %d games", maxNDJSONLineEntries)
		}

		var item gameLine
		if err := sonic.UnmarshalString(line, &item); err != nil {
			return nil, fmt.Errorf("line %d: %w", len(out)+1, err)
		}
		out = append(out, item)
	}
	return out, nil
}

func mapGame(item gameLine) usecase.ExternalMatch {
	return usecase.ExternalMatch{
		ID:        item.ID,
		Rated:     item.Rated,
		Speed:     item.Speed,
		Status:    item.Status,
		Winner:    item.Winner,
		White:     mapSeat(item.Players.White),
		Black:     mapSeat(item.Players.Black),
		CreatedAt: millisToTime(item.CreatedAt),
	}
}

func mapSeat(seat gameSeat) usecase.ExternalMatchSide {
	return usecase.ExternalMatchSide{
		UserID:   seat.User.ID,
		Username: seat.User.Name,
		Rating:   seat.Rating,
	}
}

func millisToTime(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func sanitizeSensitiveText(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	return bearerTokenRegex.ReplaceAllString(value, "Bearer REDACTED")
}

func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

func abbreviateBody(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) <= 240 {
		return text
	}
	return text[:240] + "..."
}

func maxInt(left, right int) int {
	if left > right {
		return left
	}
	return right
}

package lichess

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestFetchMatches_ParsesGameExport(t *testing.T) {
	t.Parallel()

	var seenPath, seenQuery, seenAccept string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenPath = r.URL.Path
		seenQuery = r.URL.RawQuery
		seenAccept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", contentTypeNDJSON)
		_, _ = w.Write([]byte(strings.Join([]string{
			`{"id":"g1","rated":true,"speed":"bullet","status":"mate","winner":"white","createdAt":1767225600000,` +
				`"players":{"white":{"user":{"id":"shiro","name":"Shiro"},"rating":1500},` +
				`"black":{"user":{"id":"rival","name":"Rival"},"rating":1480}}}`,
			``,
			`{"id":"g2","rated":true,"speed":"bullet","status":"draw","createdAt":1767225660000,` +
				`"players":{"white":{"user":{"id":"rival","name":"Rival"},"rating":1481},` +
				`"black":{"user":{"id":"shiro","name":"Shiro"},"rating":1499}}}`,
		}, "\n")))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL, MaxGames: 50})

	since := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	matches, err := client.FetchMatches(context.Background(), "Shiro", &since)
	if err != nil {
		t.Fatalf("fetch matches: %v", err)
	}

	if seenPath != "/api/games/user/Shiro" {
		t.Fatalf("unexpected path: %s", seenPath)
	}
	for _, fragment := range []string{"perfType=bullet", "rated=true", "max=50", "since=1767225600000"} {
		if !strings.Contains(seenQuery, fragment) {
			t.Fatalf("query misses %q: %s", fragment, seenQuery)
		}
	}
	if seenAccept != contentTypeNDJSON {
		t.Fatalf("accept header: %s", seenAccept)
	}

	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got=%d", len(matches))
	}
	first := matches[0]
	if first.ID != "g1" || first.Winner != "white" || !first.Rated {
		t.Fatalf("unexpected first match: %+v", first)
	}
	if first.White.UserID != "shiro" || first.White.Rating != 1500 {
		t.Fatalf("unexpected white seat: %+v", first.White)
	}
	if !first.CreatedAt.Equal(time.UnixMilli(1767225600000).UTC()) {
		t.Fatalf("unexpected timestamp: %v", first.CreatedAt)
	}
	if matches[1].Winner != "" {
		t.Fatalf("draw must carry an empty winner, got %q", matches[1].Winner)
	}
}

func TestFetchMatches_MalformedLineFailsExport(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"id":"g1","createdAt":1767225600000}` + "\n" + `{"id":"g2",` + "\n"))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL})

	if _, err := client.FetchMatches(context.Background(), "Shiro", nil); err == nil {
		t.Fatal("truncated export must fail, not pass as a short history")
	}
}

func TestFetchMatches_RetriesTransientStatus(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"id":"g1","rated":true,"speed":"bullet","status":"mate","winner":"black","createdAt":1767225600000,` +
			`"players":{"white":{"user":{"id":"a","name":"A"},"rating":1500},` +
			`"black":{"user":{"id":"b","name":"B"},"rating":1480}}}` + "\n"))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL, MaxRetries: 2})

	matches, err := client.FetchMatches(context.Background(), "A", nil)
	if err != nil {
		t.Fatalf("fetch matches: %v", err)
	}
	if len(matches) != 1 || matches[0].ID != "g1" {
		t.Fatalf("unexpected matches: %+v", matches)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected one retry, saw %d calls", calls.Load())
	}
}

func TestFetchMatches_NonRetryableStatusFailsFast(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL, MaxRetries: 3})

	if _, err := client.FetchMatches(context.Background(), "Ghost", nil); err == nil {
		t.Fatal("404 must surface as an error")
	}
	if calls.Load() != 1 {
		t.Fatalf("4xx must not be retried, saw %d calls", calls.Load())
	}
}

func TestExchangeCode_SendsPKCEForm(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/token" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.PostForm.Get("grant_type") != authorizationGrant {
			t.Errorf("grant_type: %s", r.PostForm.Get("grant_type"))
		}
		if r.PostForm.Get("code") != "auth-code" || r.PostForm.Get("code_verifier") != "verifier" {
			t.Errorf("unexpected form: %v", r.PostForm)
		}
		_, _ = w.Write([]byte(`{"token_type":"Bearer","access_token":"tok-123"}`))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL, ClientID: "bullet-royale", RedirectURL: "http://localhost/cb"})

	token, err := client.ExchangeCode(context.Background(), "auth-code", "verifier")
	if err != nil {
		t.Fatalf("exchange code: %v", err)
	}
	if token != "tok-123" {
		t.Fatalf("unexpected token: %s", token)
	}
}

func TestAccount_SendsBearerToken(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/account" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer tok-123" {
			t.Errorf("authorization header: %s", r.Header.Get("Authorization"))
		}
		_, _ = w.Write([]byte(`{"id":"shiro","username":"Shiro"}`))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL})

	account, err := client.Account(context.Background(), "tok-123")
	if err != nil {
		t.Fatalf("account: %v", err)
	}
	if account.ID != "shiro" || account.Username != "Shiro" {
		t.Fatalf("unexpected account: %+v", account)
	}
}

func TestAuthorizeURL_CarriesChallengeAndState(t *testing.T) {
	t.Parallel()

	client := NewClient(ClientConfig{ClientID: "bullet-royale", RedirectURL: "http://localhost/cb"})

	authorizeURL := client.AuthorizeURL("state-1", "challenge-1")
	for _, fragment := range []string{
		"response_type=code",
		"client_id=bullet-royale",
		"code_challenge_method=S256",
		"code_challenge=challenge-1",
		"state=state-1",
	} {
		if !strings.Contains(authorizeURL, fragment) {
			t.Fatalf("authorize url misses %q: %s", fragment, authorizeURL)
		}
	}
}

func TestSanitizeSensitiveText_RedactsBearerTokens(t *testing.T) {
	t.Parallel()

	got := sanitizeSensitiveText(`Get "https://x": header Bearer lio_secret123 rejected`)
	if strings.Contains(got, "lio_secret123") {
		t.Fatalf("token leaked: %s", got)
	}
	if !strings.Contains(got, "Bearer REDACTED") {
		t.Fatalf("expected redaction marker: %s", got)
	}
}

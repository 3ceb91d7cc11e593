package dingtalk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// DefaultAPIBase is the new-style DingTalk open API origin.
const DefaultAPIBase = "https://api.dingtalk.com"

// tokenSafetyMargin keeps a cached token from being served once it is within
// five minutes of expiry.
const tokenSafetyMargin = 5 * time.Minute

// Exchange swaps robot credentials for a bearer token and its lifetime.
type Exchange func(ctx context.Context, clientID, clientSecret string) (token string, lifetime time.Duration, err error)

type tokenEntry struct {
	mu     sync.Mutex
	token  string
	expiry time.Time
}

// Tokens caches one short-lived bearer token per robot client id.
//
// The cache lock guards only the entry map; each entry refreshes under its
// own lock, so concurrent callers for one identity wait for a single
// exchange while other identities keep reading their cached tokens.
type Tokens struct {
	mu       sync.Mutex
	entries  map[string]*tokenEntry
	exchange Exchange
	now      func() time.Time
}

// NewTokens creates a token cache. A nil exchange uses the real OAuth endpoint.
func NewTokens(exchange Exchange) *Tokens {
	if exchange == nil {
		exchange = HTTPExchange(newHTTPClient(), DefaultAPIBase)
	}
	return &Tokens{
		entries:  make(map[string]*tokenEntry),
		exchange: exchange,
		now:      time.Now,
	}
}

func (t *Tokens) entry(clientID string) *tokenEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[clientID]
	if !ok {
		e = &tokenEntry{}
		t.entries[clientID] = e
	}
	return e
}

// Get returns a usable bearer token for the robot, refreshing it when the
// cached one is absent or within the safety margin of expiry.
// A failed exchange returns a CredentialError; retry policy is the caller's.
func (t *Tokens) Get(ctx context.Context, id RobotIdentity) (string, error) {
	e := t.entry(id.ClientID)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.token != "" && t.now().Add(tokenSafetyMargin).Before(e.expiry) {
		return e.token, nil
	}

	token, lifetime, err := t.exchange(ctx, id.ClientID, id.ClientSecret)
	if err != nil {
		return "", &CredentialError{ClientID: id.ClientID, Err: err}
	}
	e.token, e.expiry = token, t.now().Add(lifetime)
	return token, nil
}

// HTTPExchange returns an Exchange backed by the vendor OAuth endpoint.
func HTTPExchange(client *http.Client, apiBase string) Exchange {
	return func(ctx context.Context, clientID, clientSecret string) (string, time.Duration, error) {
		body, _ := json.Marshal(map[string]string{
			"appKey":    clientID,
			"appSecret": clientSecret,
		})
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			apiBase+"/v1.0/oauth2/accessToken", bytes.NewReader(body))
		if err != nil {
			return "", 0, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return "", 0, err
		}
		defer resp.Body.Close()

		var result struct {
			AccessToken string `json:"accessToken"`
			ExpireIn    int64  `json:"expireIn"` // seconds
		}
		b, _ := io.ReadAll(resp.Body)
		_ = json.Unmarshal(b, &result)
		if result.AccessToken == "" {
			return "", 0, fmt.Errorf("no accessToken in response (status %d)", resp.StatusCode)
		}
		return result.AccessToken, time.Duration(result.ExpireIn) * time.Second, nil
	}
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 15 * time.Second}
}

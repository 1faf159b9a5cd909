package mstranslator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	// defaultTokenURL is the Cognitive Services token issuance endpoint.
	defaultTokenURL = "https://api.cognitive.microsoft.com/sts/v1.0/issueToken"

	subscriptionKeyHeader = "Ocp-Apim-Subscription-Key"

	// The service issues tokens valid for 10 minutes. The cached window is
	// one minute shorter to absorb clock skew and in-flight latency.
	tokenValidity = 9 * time.Minute
)

// AccessToken obtains bearer tokens from the Cognitive Services token
// endpoint and caches them for their validity window. A token is requested
// lazily on first use and replaced once it expires.
//
// Safe for concurrent use; refresh is serialized so racing callers share a
// single re-issue.
type AccessToken struct {
	subscriptionKey string
	tokenURL        string
	httpClient      *http.Client
	logger          zerolog.Logger
	now             func() time.Time

	mu     sync.Mutex
	token  string
	expiry time.Time
}

// NewAccessToken creates a token provider for the given subscription key.
func NewAccessToken(subscriptionKey string) *AccessToken {
	return &AccessToken{
		subscriptionKey: subscriptionKey,
		tokenURL:        defaultTokenURL,
		httpClient:      &http.Client{Timeout: requestTimeout},
		logger:          zerolog.Nop(),
		now:             time.Now,
	}
}

// Token returns a currently valid bearer token, requesting a fresh one from
// the token endpoint when none is cached or the cached one has expired.
func (a *AccessToken) Token(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.token == "" || a.now().After(a.expiry) {
		if err := a.requestToken(ctx); err != nil {
			return "", err
		}
	}
	return a.token, nil
}

func (a *AccessToken) requestToken(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.tokenURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set(subscriptionKeyHeader, a.subscriptionKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errBody struct {
			Message string `json:"message"`
		}
		json.Unmarshal(body, &errBody)
		return &AccessError{StatusCode: resp.StatusCode, Message: errBody.Message}
	}

	a.token = string(body)
	a.expiry = a.now().Add(tokenValidity)
	a.logger.Debug().Time("expiry", a.expiry).Msg("issued new access token")
	return nil
}

// Catalog API client for the external music provider.
//
// Response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/setshare/internal/models"
	"github.com/desertthunder/setshare/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	catalogAuthURL  = "https://accounts.spotify.com/authorize"
	catalogTokenURL = "https://accounts.spotify.com/api/token"
	catalogBaseURL  = "https://api.spotify.com/v1"

	// BulkFetchLimit matches the upstream bulk track endpoint's maximum.
	BulkFetchLimit = 50
)

// RateLimitError reports an upstream 429 with the advised retry interval.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("catalog rate limited, retry after %s", e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error { return shared.ErrRateLimited }

// TokenGrant is the catalog token endpoint's response for any grant type.
//
// RefreshToken may be empty on a refresh grant; the caller keeps its stored one.
type TokenGrant struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
}

// ExpiresAt converts the grant's relative expiry into an absolute time.
func (g TokenGrant) ExpiresAt(now time.Time) time.Time {
	return now.Add(time.Duration(g.ExpiresIn) * time.Second)
}

// CatalogClient talks to the external music catalog API.
//
// An explicit dependency: constructed once and handed to the token manager and
// track cache, never reached through package state.
type CatalogClient struct {
	clientID     string
	clientSecret string
	redirectURI  string
	httpClient   *http.Client
	limiter      *rate.Limiter

	authURL  string
	tokenURL string
	baseURL  string
}

// NewCatalogClient creates a catalog client from the given OAuth client credentials.
func NewCatalogClient(cfg shared.CatalogConfig, httpClient *http.Client) (*CatalogClient, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("%w: client_id", shared.ErrMissingCredentials)
	}
	if cfg.ClientSecret == "" {
		return nil, fmt.Errorf("%w: client_secret", shared.ErrMissingCredentials)
	}

	redirectURI := cfg.RedirectURI
	if redirectURI == "" {
		redirectURI = "http://127.0.0.1:3000/callback"
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &CatalogClient{
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		redirectURI:  redirectURI,
		httpClient:   httpClient,
		limiter:      rate.NewLimiter(rate.Limit(5), 1),
		authURL:      catalogAuthURL,
		tokenURL:     catalogTokenURL,
		baseURL:      catalogBaseURL,
	}, nil
}

// SetRateLimit adjusts outbound request pacing (requests per second).
func (c *CatalogClient) SetRateLimit(rps float64) {
	if rps > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// OAuthConfig returns the oauth2 configuration for the authorization-code flow.
func (c *CatalogClient) OAuthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.clientID,
		ClientSecret: c.clientSecret,
		RedirectURL:  c.redirectURI,
		Scopes: []string{
			"user-read-private",
			"playlist-read-private",
			"playlist-modify-private",
			"playlist-modify-public",
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:  c.authURL,
			TokenURL: c.tokenURL,
		},
	}
}

// RefreshAccessToken redeems a refresh token at the catalog token endpoint
// using HTTP Basic client authentication.
func (c *CatalogClient) RefreshAccessToken(ctx context.Context, refreshToken string) (TokenGrant, error) {
	if refreshToken == "" {
		return TokenGrant{}, fmt.Errorf("%w: refresh token", shared.ErrMissingArgument)
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return TokenGrant{}, fmt.Errorf("failed to create request: %w", err)
	}

	basic := base64.StdEncoding.EncodeToString([]byte(c.clientID + ":" + c.clientSecret))
	req.Header.Set("Authorization", "Basic "+basic)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return TokenGrant{}, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return TokenGrant{}, fmt.Errorf("token endpoint error: status %d", resp.StatusCode)
	}

	var grant TokenGrant
	if err := json.NewDecoder(resp.Body).Decode(&grant); err != nil {
		return TokenGrant{}, fmt.Errorf("failed to decode token response: %w", err)
	}

	return grant, nil
}

// SeveralTracks retrieves up to BulkFetchLimit tracks by their catalog ids.
//
// Ids unknown upstream arrive as null entries and are dropped here, so the
// result may be shorter than the input. Returns a *RateLimitError on 429 so
// the caller can honor the advised pause.
func (c *CatalogClient) SeveralTracks(ctx context.Context, accessToken string, trackIDs []string) ([]models.TrackRecord, error) {
	if len(trackIDs) == 0 {
		return nil, fmt.Errorf("%w: no track ids", shared.ErrInvalidInput)
	}
	if len(trackIDs) > BulkFetchLimit {
		return nil, fmt.Errorf("%w: maximum %d track ids allowed", shared.ErrInvalidInput, BulkFetchLimit)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}

	endpoint := fmt.Sprintf("%s/tracks?ids=%s", c.baseURL, url.QueryEscape(strings.Join(trackIDs, ",")))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &RateLimitError{RetryAfter: retryAfter(resp)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d", shared.ErrUpstreamUnavailable, resp.StatusCode)
	}

	var response struct {
		Tracks []*catalogTrack `json:"tracks"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	now := time.Now()
	records := make([]models.TrackRecord, 0, len(response.Tracks))
	for _, track := range response.Tracks {
		if track == nil || track.ID == "" {
			continue
		}
		records = append(records, track.record(now))
	}

	return records, nil
}

// retryAfter parses the Retry-After header, defaulting to one second.
func retryAfter(resp *http.Response) time.Duration {
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return time.Second
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds < 0 {
		return time.Second
	}
	return time.Duration(seconds) * time.Second
}

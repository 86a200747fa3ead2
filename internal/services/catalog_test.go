package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/setshare/internal/shared"
)

func testClient(t *testing.T) *CatalogClient {
	t.Helper()

	client, err := NewCatalogClient(shared.CatalogConfig{
		ClientID:     "test_client_id",
		ClientSecret: "test_client_secret",
	}, nil)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	client.SetRateLimit(1000)
	return client
}

func TestNewCatalogClient(t *testing.T) {
	t.Run("With Valid Credentials", func(t *testing.T) {
		client := testClient(t)
		if client == nil {
			t.Fatal("expected client to be created")
		}
	})

	t.Run("Missing Client ID", func(t *testing.T) {
		_, err := NewCatalogClient(shared.CatalogConfig{ClientSecret: "secret"}, nil)
		if !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("Missing Client Secret", func(t *testing.T) {
		_, err := NewCatalogClient(shared.CatalogConfig{ClientID: "id"}, nil)
		if !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("Default Redirect URI", func(t *testing.T) {
		client := testClient(t)
		if client.redirectURI == "" {
			t.Error("expected default redirect URI")
		}
	})

	t.Run("OAuthConfig", func(t *testing.T) {
		client := testClient(t)
		cfg := client.OAuthConfig()

		authURL := cfg.AuthCodeURL("test_state")
		if !strings.Contains(authURL, "accounts.spotify.com") {
			t.Error("auth URL should point at the catalog accounts domain")
		}
		if !strings.Contains(authURL, "test_client_id") {
			t.Error("auth URL should contain client_id")
		}
		if !strings.Contains(authURL, "test_state") {
			t.Error("auth URL should contain state")
		}
	})
}

func TestRefreshAccessToken(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		var gotAuth, gotGrantType, gotRefreshToken string

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			r.ParseForm()
			gotGrantType = r.PostFormValue("grant_type")
			gotRefreshToken = r.PostFormValue("refresh_token")

			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"access_token":"new_access","token_type":"Bearer","scope":"playlist-modify-private","expires_in":3600}`)
		}))
		defer srv.Close()

		client := testClient(t)
		client.tokenURL = srv.URL

		grant, err := client.RefreshAccessToken(context.Background(), "stored_refresh")
		if err != nil {
			t.Fatalf("expected refresh to succeed: %v", err)
		}

		if !strings.HasPrefix(gotAuth, "Basic ") {
			t.Errorf("expected HTTP Basic client auth, got %q", gotAuth)
		}
		if gotGrantType != "refresh_token" {
			t.Errorf("expected refresh_token grant, got %s", gotGrantType)
		}
		if gotRefreshToken != "stored_refresh" {
			t.Errorf("expected stored refresh token, got %s", gotRefreshToken)
		}

		if grant.AccessToken != "new_access" {
			t.Errorf("expected new_access, got %s", grant.AccessToken)
		}
		if grant.RefreshToken != "" {
			t.Errorf("upstream omitted refresh token, got %s", grant.RefreshToken)
		}

		now := time.Now()
		expiresAt := grant.ExpiresAt(now)
		if expiresAt.Before(now.Add(59*time.Minute)) || expiresAt.After(now.Add(61*time.Minute)) {
			t.Errorf("unexpected expiry %v", expiresAt)
		}
	})

	t.Run("Upstream Error Status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
		}))
		defer srv.Close()

		client := testClient(t)
		client.tokenURL = srv.URL

		if _, err := client.RefreshAccessToken(context.Background(), "revoked"); err == nil {
			t.Error("expected error for non-2xx token response")
		}
	})

	t.Run("Missing Refresh Token", func(t *testing.T) {
		client := testClient(t)
		if _, err := client.RefreshAccessToken(context.Background(), ""); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})
}

func TestSeveralTracks(t *testing.T) {
	t.Run("Drops Null Entries", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if got := r.Header.Get("Authorization"); got != "Bearer token123" {
				t.Errorf("expected bearer header, got %q", got)
			}

			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"tracks":[
				{"id":"t1","name":"First","artists":[{"name":"Alpha"}],"album":{"name":"LP","images":[{"url":"https://img/1","height":640,"width":640}]}},
				null,
				{"id":"t2","name":"Second","artists":[{"name":"Beta"},{"name":"Gamma"}],"album":{"name":"EP","images":[]}}
			]}`)
		}))
		defer srv.Close()

		client := testClient(t)
		client.baseURL = srv.URL

		records, err := client.SeveralTracks(context.Background(), "token123", []string{"t1", "missing", "t2"})
		if err != nil {
			t.Fatalf("expected fetch to succeed: %v", err)
		}

		if len(records) != 2 {
			t.Fatalf("expected 2 records, got %d", len(records))
		}
		if records[0].TrackID != "t1" || records[1].TrackID != "t2" {
			t.Errorf("unexpected order: %s, %s", records[0].TrackID, records[1].TrackID)
		}
		if records[0].AlbumArtURL != "https://img/1" {
			t.Errorf("expected album art, got %s", records[0].AlbumArtURL)
		}
		if records[1].ArtistDisplay != "Beta, Gamma" {
			t.Errorf("expected joined artists, got %s", records[1].ArtistDisplay)
		}
		if records[0].LastRefreshedAt.IsZero() {
			t.Error("expected refresh timestamp to be stamped")
		}
	})

	t.Run("Rate Limited", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "3")
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer srv.Close()

		client := testClient(t)
		client.baseURL = srv.URL

		_, err := client.SeveralTracks(context.Background(), "token123", []string{"t1"})

		var rateErr *RateLimitError
		if !errors.As(err, &rateErr) {
			t.Fatalf("expected RateLimitError, got %v", err)
		}
		if rateErr.RetryAfter != 3*time.Second {
			t.Errorf("expected 3s retry-after, got %v", rateErr.RetryAfter)
		}
		if !errors.Is(err, shared.ErrRateLimited) {
			t.Error("RateLimitError should unwrap to ErrRateLimited")
		}
	})

	t.Run("Upstream Failure", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "bad gateway", http.StatusBadGateway)
		}))
		defer srv.Close()

		client := testClient(t)
		client.baseURL = srv.URL

		if _, err := client.SeveralTracks(context.Background(), "token123", []string{"t1"}); !errors.Is(err, shared.ErrUpstreamUnavailable) {
			t.Errorf("expected ErrUpstreamUnavailable, got %v", err)
		}
	})

	t.Run("Input Validation", func(t *testing.T) {
		client := testClient(t)

		if _, err := client.SeveralTracks(context.Background(), "token123", nil); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput for empty ids, got %v", err)
		}

		tooMany := make([]string, BulkFetchLimit+1)
		for i := range tooMany {
			tooMany[i] = fmt.Sprintf("t%d", i)
		}
		if _, err := client.SeveralTracks(context.Background(), "token123", tooMany); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput for oversized batch, got %v", err)
		}
	})
}

func TestArtistFieldNormalization(t *testing.T) {
	tc := []struct {
		name string
		json string
		want string
	}{
		{name: "object array", json: `[{"name":"Alpha"},{"name":"Beta"}]`, want: "Alpha, Beta"},
		{name: "string array", json: `["Alpha","Beta"]`, want: "Alpha, Beta"},
		{name: "bare string", json: `"Alpha"`, want: "Alpha"},
		{name: "single object", json: `{"name":"Alpha"}`, want: "Alpha"},
		{name: "empty array", json: `[]`, want: ""},
		{name: "unknown shape", json: `42`, want: ""},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			var field artistField
			if err := field.UnmarshalJSON([]byte(tt.json)); err != nil {
				t.Fatalf("unmarshal failed: %v", err)
			}
			if got := field.Display(); got != tt.want {
				t.Errorf("Display() = %q, want %q", got, tt.want)
			}
		})
	}
}

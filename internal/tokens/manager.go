// Package tokens manages the OAuth credential lifecycle for linked accounts.
package tokens

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/setshare/internal/models"
	"github.com/desertthunder/setshare/internal/services"
	"github.com/desertthunder/setshare/internal/shared"
)

// RefreshMargin is how long before actual expiry a token is refreshed.
// Covers clock skew and in-flight request latency.
const RefreshMargin = 60 * time.Second

// CredentialStore is the slice of the credential repository the manager needs.
type CredentialStore interface {
	Get(ownerID string) (models.Credential, error)
	ReplaceIf(prev, next models.Credential) error
}

// Refresher redeems refresh tokens against the catalog token endpoint.
type Refresher interface {
	RefreshAccessToken(ctx context.Context, refreshToken string) (services.TokenGrant, error)
}

// Manager ensures a valid access token exists for an owner, refreshing
// proactively before expiry.
//
// Refreshes are not serialized across processes; two concurrent callers that
// both observe an expired token may both hit the token endpoint. The store
// write is a compare-and-swap on the previously read token, so the loser
// detects the race and adopts the winner's credential instead of clobbering it.
type Manager struct {
	store   CredentialStore
	catalog Refresher
	margin  time.Duration
	logger  *log.Logger
}

// NewManager creates a token lifecycle manager with the default refresh margin.
func NewManager(store CredentialStore, catalog Refresher, logger *log.Logger) *Manager {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Manager{
		store:   store,
		catalog: catalog,
		margin:  RefreshMargin,
		logger:  logger,
	}
}

// EnsureAccessToken returns a valid access token for the owner, refreshing and
// persisting first when the stored one is near expiry.
//
// Fails with shared.ErrNoCredential when the owner has no linked account and
// shared.ErrRefreshFailed when the upstream refresh errors or returns no
// usable token.
func (m *Manager) EnsureAccessToken(ctx context.Context, ownerID string) (string, error) {
	cred, err := m.store.Get(ownerID)
	if err != nil {
		return "", err
	}

	if !cred.NeedsRefresh(time.Now(), m.margin) {
		return cred.AccessToken, nil
	}

	grant, err := m.catalog.RefreshAccessToken(ctx, cred.RefreshToken)
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}
	if grant.AccessToken == "" {
		return "", fmt.Errorf("%w: upstream returned no access token", shared.ErrRefreshFailed)
	}

	next := cred
	next.AccessToken = grant.AccessToken
	next.ExpiresAt = grant.ExpiresAt(time.Now())
	if grant.RefreshToken != "" {
		next.RefreshToken = grant.RefreshToken
	}
	if grant.TokenType != "" {
		next.TokenType = grant.TokenType
	}
	if grant.Scope != "" {
		next.Scope = grant.Scope
	}

	if err := m.store.ReplaceIf(cred, next); err != nil {
		if !errors.Is(err, shared.ErrConflict) {
			return "", fmt.Errorf("failed to persist refreshed credential: %w", err)
		}

		// A concurrent refresh won; ours may hold a now-dead refresh token.
		m.logger.Warn("lost credential refresh race, adopting stored token", "owner", ownerID)
		winner, err := m.store.Get(ownerID)
		if err != nil {
			return "", err
		}
		return winner.AccessToken, nil
	}

	m.logger.Debug("refreshed access token", "owner", ownerID, "expires_at", next.ExpiresAt)
	return next.AccessToken, nil
}

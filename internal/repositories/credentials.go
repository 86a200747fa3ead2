package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/setshare/internal/models"
	"github.com/desertthunder/setshare/internal/shared"
)

// CredentialRepository stores one OAuth credential record per owner.
type CredentialRepository struct {
	db *sql.DB
}

// NewCredentialRepository creates a new CredentialRepository with the given database connection
func NewCredentialRepository(db *sql.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// Get retrieves the credential record for an owner.
// Returns shared.ErrNoCredential if no record exists.
func (r *CredentialRepository) Get(ownerID string) (models.Credential, error) {
	query := `
		SELECT owner_id, access_token, refresh_token, token_type, scope, expires_at_ms
		FROM credentials
		WHERE owner_id = ?
	`

	var cred models.Credential
	var expiresAtMs int64

	err := r.db.QueryRow(query, ownerID).Scan(
		&cred.OwnerID,
		&cred.AccessToken,
		&cred.RefreshToken,
		&cred.TokenType,
		&cred.Scope,
		&expiresAtMs,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Credential{}, fmt.Errorf("%w: owner %s", shared.ErrNoCredential, ownerID)
	}
	if err != nil {
		return models.Credential{}, fmt.Errorf("failed to load credential: %w", err)
	}

	cred.ExpiresAt = time.UnixMilli(expiresAtMs)
	return cred, nil
}

// Put inserts or replaces the credential record for cred.OwnerID.
func (r *CredentialRepository) Put(cred models.Credential) error {
	if cred.OwnerID == "" {
		return fmt.Errorf("%w: owner id", shared.ErrMissingArgument)
	}

	query := `
		INSERT INTO credentials (owner_id, access_token, refresh_token, token_type, scope, expires_at_ms, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner_id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			token_type = excluded.token_type,
			scope = excluded.scope,
			expires_at_ms = excluded.expires_at_ms,
			updated_at = excluded.updated_at
	`

	_, err := r.db.Exec(query,
		cred.OwnerID,
		cred.AccessToken,
		cred.RefreshToken,
		cred.TokenType,
		cred.Scope,
		cred.ExpiresAt.UnixMilli(),
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}

	return nil
}

// ReplaceIf overwrites the stored record only if it still matches prev's
// access token and expiry. A concurrent refresher that lost the race gets
// shared.ErrConflict and should re-read the store to adopt the winner's token.
func (r *CredentialRepository) ReplaceIf(prev, next models.Credential) error {
	query := `
		UPDATE credentials
		SET access_token = ?, refresh_token = ?, token_type = ?, scope = ?, expires_at_ms = ?, updated_at = ?
		WHERE owner_id = ? AND access_token = ? AND expires_at_ms = ?
	`

	result, err := r.db.Exec(query,
		next.AccessToken,
		next.RefreshToken,
		next.TokenType,
		next.Scope,
		next.ExpiresAt.UnixMilli(),
		time.Now(),
		prev.OwnerID,
		prev.AccessToken,
		prev.ExpiresAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to replace credential: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: credential for owner %s changed underneath us", shared.ErrConflict, prev.OwnerID)
	}

	return nil
}

// Delete removes the credential record for an owner, unlinking the account.
func (r *CredentialRepository) Delete(ownerID string) error {
	result, err := r.db.Exec("DELETE FROM credentials WHERE owner_id = ?", ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: owner %s", shared.ErrNoCredential, ownerID)
	}

	return nil
}

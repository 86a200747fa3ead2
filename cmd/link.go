package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/desertthunder/setshare/internal/models"
	"github.com/desertthunder/setshare/internal/server"
	"github.com/desertthunder/setshare/internal/shared"
	"github.com/desertthunder/setshare/internal/tokens"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// Link performs the OAuth2 authorization flow and stores the resulting
// credential for the owner.
//
// Starts a local HTTP server, opens the browser for user authorization, and
// exchanges the auth code for tokens.
func (r *Runner) Link(ctx context.Context, cmd *cli.Command) error {
	owner := cmd.String("owner")

	if err := r.ensureServices(); err != nil {
		return err
	}

	token, err := r.doLink()
	if err != nil {
		return err
	}

	cred := models.Credential{
		OwnerID:      owner,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
		ExpiresAt:    token.Expiry,
	}
	if err := r.credentials.Put(cred); err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}

	r.writePlainln("✓ Account linked")
	r.writePlain("✓ Credential stored for %s\n\n", owner)
	r.writePlain("You can now use: setshare sets list\n")

	return nil
}

// LinkStatus reports whether a credential exists for the owner and its expiry.
func (r *Runner) LinkStatus(ctx context.Context, cmd *cli.Command) error {
	owner := cmd.String("owner")

	if err := r.ensureStores(); err != nil {
		return err
	}

	cred, err := r.credentials.Get(owner)
	if err != nil {
		return err
	}

	r.writePlain("✓ Account linked for %s\n", owner)
	r.writePlain("Token expires: %s\n", cred.ExpiresAt.Format(time.RFC3339))
	if cred.NeedsRefresh(time.Now(), tokens.RefreshMargin) {
		r.writePlain("Status: will refresh on next use\n")
	} else {
		r.writePlain("Status: valid\n")
	}
	return nil
}

// Unlink removes the stored credential for the owner.
func (r *Runner) Unlink(ctx context.Context, cmd *cli.Command) error {
	owner := cmd.String("owner")

	if err := r.ensureStores(); err != nil {
		return err
	}

	if err := r.credentials.Delete(owner); err != nil {
		return err
	}

	r.writePlain("✓ Credential removed for %s\n", owner)
	return nil
}

// doLink executes the OAuth2 authorization flow with a local HTTP server
func (r *Runner) doLink() (*oauth2.Token, error) {
	state, err := shared.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}

	oauthConfig := r.catalog.OAuthConfig()
	authURL := oauthConfig.AuthCodeURL(state)
	linkHandler := server.NewLinkHandler(oauthConfig, state)
	router := server.NewBasicRouter()
	router.Use(server.RequestLogging(r.logger))
	router.Handler(linkHandler)

	serverAddr := fmt.Sprintf("%s:%d", r.config.Server.Host, r.config.Server.Port)
	httpServer := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting link server at %v", serverAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	time.Sleep(100 * time.Millisecond)

	r.writePlain("→ Opening browser for catalog authorization...\n")
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (2 minute timeout)...\n")

	timeout := time.NewTimer(2 * time.Minute)
	defer timeout.Stop()

	var result server.LinkResult

	select {
	case result = <-linkHandler.Result():
		// Got result from callback
	case err := <-serverErrors:
		return nil, fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return nil, fmt.Errorf("%w: authorization timed out after 2 minutes", shared.ErrAuthFailed)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Warn("error shutting down server", "error", err)
	}

	if result.Error() != nil {
		return nil, fmt.Errorf("authorization failed: %w", result.Error())
	}

	if result.Token == nil {
		return nil, fmt.Errorf("no token received")
	}

	return result.Token, nil
}

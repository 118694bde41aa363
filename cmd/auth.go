package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/journeyx/internal/repositories"
	"github.com/desertthunder/journeyx/internal/shared"
	"github.com/urfave/cli/v3"
)

// AuthLogin logs in and stores the access token. Earlier sessions are replaced.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	username := cmd.String("username")
	password := cmd.String("password")
	if password == "" {
		return fmt.Errorf("%w: --password or JOURNEYX_PASSWORD", shared.ErrMissingArgument)
	}

	sessions, err := r.sessions()
	if err != nil {
		return err
	}

	r.logger.Info("logging in", "user", username)
	sess, err := r.api.Login(ctx, username, password)
	if err != nil {
		return err
	}

	if err := sessions.DeleteAll(); err != nil {
		r.logger.Warn("failed to clear previous sessions", "err", err)
	}

	stored := &repositories.StoredSession{
		UserID:      sess.UserID,
		Username:    sess.Username,
		AccessToken: sess.AccessToken,
	}
	if !sess.ExpiresAt.IsZero() {
		expires := sess.ExpiresAt
		stored.ExpiresAt = &expires
	}
	if err := sessions.Create(stored); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}

	r.logger.Info("authentication successful", "user", sess.Username, "id", sess.UserID)
	return r.writePlain("✓ Logged in as %s\n", sess.Username)
}

// AuthRegister creates an account.
func (r *Runner) AuthRegister(ctx context.Context, cmd *cli.Command) error {
	username := cmd.String("username")
	password := cmd.String("password")
	if password == "" {
		return fmt.Errorf("%w: --password or JOURNEYX_PASSWORD", shared.ErrMissingArgument)
	}

	res, err := r.api.Register(ctx, username, password)
	if err != nil {
		return err
	}
	r.writePlain("✓ Account %s created\n", username)
	if res.Message != "" {
		r.writePlain("%s\n", res.Message)
	}
	return r.writePlain("Run 'journeyx auth login -u %s' to sign in\n", username)
}

// AuthLogout ends the server-side session and forgets local tokens and statuses.
// The local state is cleared even when the backend cannot be reached.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	w, err := r.workspace(ctx, false)
	if err != nil {
		return err
	}
	defer w.Close()

	if w.stored == nil {
		return r.writePlain("Not logged in\n")
	}

	if err := w.api.Logout(ctx); err != nil {
		r.logger.Warn("backend logout failed, clearing local session anyway", "err", err)
	}

	sessions, err := r.sessions()
	if err != nil {
		return err
	}
	if err := sessions.DeleteAll(); err != nil {
		return fmt.Errorf("failed to clear sessions: %w", err)
	}
	if err := w.store.Clear(ctx, w.stored.UserID); err != nil {
		r.logger.Warn("failed to clear local progress", "err", err)
	}
	w.gate.Reset()
	w.cache.Reset()

	return r.writePlain("✓ Logged out %s\n", w.stored.Username)
}

// AuthStatus shows the stored session and, when the backend accepts it, the user's profile.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	sessions, err := r.sessions()
	if err != nil {
		return err
	}

	stored, err := sessions.Active()
	if errors.Is(err, shared.ErrNotAuthenticated) {
		return r.writePlain("✗ Not logged in\n")
	}
	if err != nil {
		return err
	}

	r.writePlain("User: %s (id %d)\n", stored.Username, stored.UserID)
	if stored.ExpiresAt != nil {
		state := "valid"
		if stored.Expired(time.Now()) {
			state = "expired, refreshed on next request"
		}
		r.writePlain("Token: %s until %s\n", state, stored.ExpiresAt.Local().Format(time.RFC3339))
	}

	w, err := r.workspace(ctx, true)
	if err != nil {
		return err
	}
	defer w.Close()

	profile, err := w.api.Me(ctx)
	if err != nil {
		return r.writePlain("Authentication: ✗ %v\n", err)
	}
	return r.writePlain("Authentication: ✓ level %d, %d exp\n", profile.Level, profile.ExperiencePoints)
}

package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/usher/internal/formatter"
	"github.com/desertthunder/usher/internal/providers"
	"github.com/desertthunder/usher/internal/shared"
	"github.com/desertthunder/usher/internal/tasks"
)

// Redeem runs a full redemption from the terminal, streaming progress lines
// as each server is provisioned.
func (r *Runner) Redeem(ctx context.Context, cmd *cli.Command) error {
	kind := providers.KindFriend
	switch cmd.String("kind") {
	case "friend":
	case "home":
		kind = providers.KindHome
	default:
		return fmt.Errorf("%w: kind must be friend or home", shared.ErrInvalidArgument)
	}

	email := cmd.String("email")
	if cmd.Bool("plex-auth") {
		verified, err := r.verifyEmail(ctx)
		if err != nil {
			return err
		}
		email = verified
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	engine := r.newEngine(db)

	progress := make(chan tasks.ProgressUpdate, 50)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for update := range progress {
			r.writePlain("→ [%s] %s\n", update.Phase, update.Message)
		}
	}()

	result, err := engine.Redeem(ctx, progress, tasks.RedeemRequest{
		Code:     cmd.String("code"),
		Username: cmd.String("username"),
		Email:    email,
		Password: cmd.String("password"),
		Kind:     kind,
	})
	close(progress)
	wg.Wait()

	if err != nil {
		return fmt.Errorf("redemption failed: %w", err)
	}

	r.writePlain("\n%s", formatter.RedeemToText(result))
	if !result.Success {
		return fmt.Errorf("redemption failed on %s: %s", result.FailedServer, result.ErrorCode)
	}
	return nil
}

// verifyEmail runs the plex.tv PIN flow and returns the claimed account's
// verified email address.
func (r *Runner) verifyEmail(ctx context.Context) (string, error) {
	created, err := r.pins.CreatePin(ctx)
	if err != nil {
		return "", err
	}

	r.writePlain("→ Opening browser to claim PIN %s...\n", created.Code)
	if err := shared.OpenBrowser(created.AuthURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", created.AuthURL)
	}

	r.writePlain("→ Waiting for authorization (expires %s)...\n", created.ExpiresAt.Format("15:04:05"))

	result, err := r.pins.Poll(ctx, created.ID)
	if err != nil {
		return "", fmt.Errorf("plex.tv sign-in failed: %w", err)
	}

	r.writePlain("✓ Verified %s\n\n", result.Email)
	return result.Email, nil
}

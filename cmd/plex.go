package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/usher/internal/shared"
)

// PlexAuth signs in to plex.tv with the PIN flow and stores the claimed
// account token in the config file.
func (r *Runner) PlexAuth(ctx context.Context, cmd *cli.Command) error {
	created, err := r.pins.CreatePin(ctx)
	if err != nil {
		return fmt.Errorf("failed to request pin: %w", err)
	}

	r.writePlain("Claim code: %s\n", created.Code)
	if cmd.Bool("no-browser") {
		r.writePlain("Open this URL in your browser:\n%s\n\n", created.AuthURL)
	} else if err := shared.OpenBrowser(created.AuthURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Open this URL in your browser:\n%s\n\n", created.AuthURL)
	}

	r.writePlain("→ Waiting for authorization (expires %s)...\n", created.ExpiresAt.Format("15:04:05"))

	result, err := r.pins.Poll(ctx, created.ID)
	if err != nil {
		return fmt.Errorf("plex.tv sign-in failed: %w", err)
	}

	if err := r.savePlexToken(result.Token); err != nil {
		return err
	}

	r.writePlain("✓ Signed in as %s\n", result.Email)
	if r.configPath == "" {
		r.writePlainln("⚠ No config file loaded, token held in memory only.")
	}
	return nil
}

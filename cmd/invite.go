package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/usher/internal/formatter"
	"github.com/desertthunder/usher/internal/models"
	"github.com/desertthunder/usher/internal/repositories"
	"github.com/desertthunder/usher/internal/shared"
)

// generateCode derives a short uppercase invitation code.
func generateCode() string {
	return strings.ToUpper(strings.ReplaceAll(shared.GenerateID(), "-", "")[:8])
}

// InviteCreate creates an invitation code targeting one or more servers.
func (r *Runner) InviteCreate(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	servers := repositories.NewMediaServerRepository(db)

	serverIDs := []string{}
	for _, name := range cmd.StringSlice("server") {
		server, err := servers.GetByName(name)
		if err != nil {
			return fmt.Errorf("unknown server %q: %w", name, err)
		}
		serverIDs = append(serverIDs, server.ID())
	}

	code := cmd.String("code")
	if code == "" {
		code = generateCode()
	}

	invitation := models.NewInvitation(0, code, serverIDs)
	invitation.SetLibraryIDs(cmd.StringSlice("library"))

	if maxUses := int(cmd.Int("max-uses")); maxUses > 0 {
		invitation.SetMaxUses(&maxUses)
	}
	if expiresIn := int(cmd.Int("expires-in")); expiresIn > 0 {
		expiry := time.Now().AddDate(0, 0, expiresIn)
		invitation.SetExpiresAt(&expiry)
	}
	if duration := int(cmd.Int("duration")); duration > 0 {
		invitation.SetDurationDays(&duration)
	}

	perms := invitation.Permissions()
	perms.AllowDownload = cmd.Bool("allow-downloads")
	perms.AllowSync = cmd.Bool("allow-sync")
	invitation.SetPermissions(perms)

	if err := repositories.NewInvitationRepository(db).Create(invitation); err != nil {
		return fmt.Errorf("failed to create invitation: %w", err)
	}

	r.logger.Info("invitation created", "code", code, "servers", len(serverIDs))

	r.writePlain("✓ Invitation created\n\n")
	return r.writePlain("%s", formatter.InvitationToText(invitation))
}

// InviteList prints invitation codes as text, JSON, or CSV.
func (r *Runner) InviteList(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	criteria := map[string]any{}
	if cmd.Bool("enabled") {
		criteria["enabled"] = true
	}

	invitations, err := repositories.NewInvitationRepository(db).List(criteria)
	if err != nil {
		return fmt.Errorf("failed to list invitations: %w", err)
	}

	switch {
	case cmd.Bool("csv"):
		data, err := formatter.InvitationsToCSV(invitations)
		if err != nil {
			return err
		}
		return r.writePlain("%s", data)
	case cmd.Bool("json"):
		summaries := make([]map[string]any, len(invitations))
		for i, invitation := range invitations {
			summaries[i] = map[string]any{
				"code":      invitation.Code(),
				"enabled":   invitation.Enabled(),
				"use_count": invitation.UseCount(),
				"servers":   invitation.ServerIDs(),
			}
		}
		return r.writeJSON(summaries, true)
	}

	if len(invitations) == 0 {
		return r.writePlain("No invitations. Create one with 'usher invite create'.\n")
	}

	r.writePlainHeader("Invitations")
	for _, invitation := range invitations {
		status := "enabled"
		if !invitation.Enabled() {
			status = "disabled"
		}
		r.writePlain("%s  [%s]  %d servers\n", invitation.Code(), status, len(invitation.ServerIDs()))
	}
	return nil
}

// InviteShow prints one invitation in full.
func (r *Runner) InviteShow(ctx context.Context, cmd *cli.Command) error {
	code := cmd.StringArg("code")
	if code == "" {
		return fmt.Errorf("%w: invitation code", shared.ErrMissingArgument)
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	invitation, err := repositories.NewInvitationRepository(db).GetByCode(code)
	if err != nil {
		return err
	}

	return r.writePlain("%s", formatter.InvitationToText(invitation))
}

// setInviteEnabled flips the enabled flag for a code.
func (r *Runner) setInviteEnabled(code string, enabled bool) error {
	if code == "" {
		return fmt.Errorf("%w: invitation code", shared.ErrMissingArgument)
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	repo := repositories.NewInvitationRepository(db)
	invitation, err := repo.GetByCode(code)
	if err != nil {
		return err
	}

	invitation.SetEnabled(enabled)
	if err := repo.Update(invitation); err != nil {
		return fmt.Errorf("failed to update invitation: %w", err)
	}

	state := "disabled"
	if enabled {
		state = "enabled"
	}
	r.logger.Info("invitation updated", "code", code, "enabled", enabled)
	return r.writePlain("✓ %s %s\n", code, state)
}

// InviteDisable disables an invitation code.
func (r *Runner) InviteDisable(ctx context.Context, cmd *cli.Command) error {
	return r.setInviteEnabled(cmd.StringArg("code"), false)
}

// InviteEnable re-enables an invitation code.
func (r *Runner) InviteEnable(ctx context.Context, cmd *cli.Command) error {
	return r.setInviteEnabled(cmd.StringArg("code"), true)
}

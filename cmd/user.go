package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/usher/internal/formatter"
	"github.com/desertthunder/usher/internal/repositories"
)

// UserList prints provisioned accounts, optionally filtered to one server.
func (r *Runner) UserList(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	criteria := map[string]any{}
	if name := cmd.String("server"); name != "" {
		server, err := repositories.NewMediaServerRepository(db).GetByName(name)
		if err != nil {
			return fmt.Errorf("unknown server %q: %w", name, err)
		}
		criteria["server_id"] = server.ID()
	}

	users, err := repositories.NewUserRepository(db).List(criteria)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	switch {
	case cmd.String("output") != "":
		path, err := formatter.WriteUsersCSV(users, cmd.String("output"))
		if err != nil {
			return err
		}
		return r.writePlain("✓ Wrote %d users to %s\n", len(users), path)
	case cmd.Bool("csv"):
		data, err := formatter.UsersToCSV(users)
		if err != nil {
			return err
		}
		return r.writePlain("%s", data)
	}

	if len(users) == 0 {
		return r.writePlain("No provisioned accounts.\n")
	}

	r.writePlainHeader("Provisioned Accounts")
	for _, user := range users {
		expiry := "indefinite"
		if expiresAt := user.ExpiresAt(); expiresAt != nil {
			expiry = expiresAt.Format("2006-01-02")
		}
		r.writePlain("%s  [%s]  expires %s\n", user.Username(), user.ExternalID(), expiry)
	}
	return nil
}

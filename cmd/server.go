package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/usher/internal/models"
	"github.com/desertthunder/usher/internal/providers"
	"github.com/desertthunder/usher/internal/repositories"
	"github.com/desertthunder/usher/internal/shared"
)

// serverSummary is the JSON shape for server list output.
type serverSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
	URL  string `json:"url"`
}

// ServerAdd registers a media server after validating its provider type.
//
// The server's credentials live in config under a [[media_server]] entry with
// the same name; --check connects with them before anything is written.
func (r *Runner) ServerAdd(ctx context.Context, cmd *cli.Command) error {
	name := cmd.String("name")
	serverType := cmd.String("type")
	serverURL := cmd.String("url")

	if _, err := r.registry.StaticCapabilities(serverType); err != nil {
		return fmt.Errorf("%w: unknown provider type %q", shared.ErrInvalidArgument, serverType)
	}

	if _, err := r.config.FindServer(name); err != nil {
		r.logger.Warn("no [[media_server]] config entry for this name, connections will fail until one is added", "name", name)
	}

	if cmd.Bool("check") {
		if err := r.checkServer(ctx, name, serverType, serverURL); err != nil {
			return err
		}
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	server := models.NewMediaServer(0, name, serverType, serverURL)
	if err := repositories.NewMediaServerRepository(db).Create(server); err != nil {
		return fmt.Errorf("failed to register server: %w", err)
	}

	r.logger.Info("server registered", "name", name, "type", serverType)
	return r.writePlain("✓ Registered %s (%s) at %s\n", name, serverType, serverURL)
}

// checkServer opens a throwaway client and probes connectivity.
func (r *Runner) checkServer(ctx context.Context, name, serverType, serverURL string) error {
	serverCfg, err := r.config.FindServer(name)
	if err != nil {
		return fmt.Errorf("cannot check connectivity without a config entry: %w", err)
	}

	client, err := r.registry.CreateClient(serverType, providers.ConnectionParams{
		ServerName: name,
		URL:        serverURL,
		Token:      serverCfg.Token,
	})
	if err != nil {
		return err
	}
	defer client.Close()

	if !client.TestConnection(ctx) {
		return fmt.Errorf("%w: %s did not respond at %s", shared.ErrServiceUnavailable, name, serverURL)
	}

	r.writePlain("✓ Connection OK\n")
	return nil
}

// ServerList prints registered servers, optionally filtered by provider type.
func (r *Runner) ServerList(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	criteria := map[string]any{}
	if serverType := cmd.String("type"); serverType != "" {
		criteria["server_type"] = serverType
	}

	servers, err := repositories.NewMediaServerRepository(db).List(criteria)
	if err != nil {
		return fmt.Errorf("failed to list servers: %w", err)
	}

	if cmd.Bool("json") {
		summaries := make([]serverSummary, len(servers))
		for i, server := range servers {
			summaries[i] = serverSummary{
				ID:   server.ID(),
				Name: server.Name(),
				Type: server.ServerType(),
				URL:  server.URL(),
			}
		}
		return r.writeJSON(summaries, cmd.Bool("pretty"))
	}

	if len(servers) == 0 {
		return r.writePlain("No servers registered. Add one with 'usher server add'.\n")
	}

	r.writePlainHeader("Registered Servers")
	for _, server := range servers {
		r.writePlain("%s  [%s]  %s\n", server.Name(), server.ServerType(), server.URL())
	}
	return nil
}

// ServerLibraries connects to one server and prints its content libraries,
// the IDs admins pass to 'invite create --library'.
func (r *Runner) ServerLibraries(ctx context.Context, cmd *cli.Command) error {
	name := cmd.StringArg("name")
	if name == "" {
		return fmt.Errorf("%w: server name", shared.ErrMissingArgument)
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	server, err := repositories.NewMediaServerRepository(db).GetByName(name)
	if err != nil {
		return err
	}

	serverCfg, err := r.config.FindServer(name)
	if err != nil {
		return err
	}

	client, err := r.registry.CreateClient(server.ServerType(), providers.ConnectionParams{
		ServerName: server.Name(),
		URL:        server.URL(),
		Token:      serverCfg.Token,
	})
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Open(ctx); err != nil {
		return err
	}

	libraries, err := client.Libraries(ctx)
	if err != nil {
		return err
	}

	r.writePlainHeader(fmt.Sprintf("Libraries on %s", name))
	for _, library := range libraries {
		r.writePlain("%s  [%s]  %s\n", library.ExternalID, library.Type, library.Name)
	}
	return nil
}

// ServerRemove soft-deletes a registered server.
func (r *Runner) ServerRemove(ctx context.Context, cmd *cli.Command) error {
	name := cmd.StringArg("name")
	if name == "" {
		return fmt.Errorf("%w: server name", shared.ErrMissingArgument)
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	repo := repositories.NewMediaServerRepository(db)
	server, err := repo.GetByName(name)
	if err != nil {
		return err
	}

	if err := repo.Delete(server.ID()); err != nil {
		return fmt.Errorf("failed to remove server: %w", err)
	}

	r.logger.Info("server removed", "name", name)
	return r.writePlain("✓ Removed %s\n", name)
}

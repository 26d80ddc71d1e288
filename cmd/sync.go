package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/usher/internal/formatter"
	"github.com/desertthunder/usher/internal/repositories"
	"github.com/desertthunder/usher/internal/shared"
	"github.com/desertthunder/usher/internal/tasks"
)

// Sync reconciles local user records against one server's remote state and
// reports the drift without mutating either side.
func (r *Runner) Sync(ctx context.Context, cmd *cli.Command) error {
	name := cmd.StringArg("name")
	if name == "" {
		return fmt.Errorf("%w: server name is required", shared.ErrMissingArgument)
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	server, err := repositories.NewMediaServerRepository(db).GetByName(name)
	if err != nil {
		return fmt.Errorf("%w: %s", shared.ErrServerNotFound, name)
	}

	result, err := r.newEngine(db).Sync(ctx, nil, server.ID())
	if err != nil {
		return fmt.Errorf("sync failed for %s: %w", name, err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(result, true)
	}

	if base := cmd.String("output"); base != "" {
		written, err := formatter.WriteSyncReport(result, base)
		if err != nil {
			return err
		}
		r.writePlain("✓ Wrote %s and %s\n", written.MarkdownFile, written.JSONFile)
		return nil
	}

	r.writePlain("%s", formatter.SyncToText(result))
	return nil
}

// Audit snapshots every registered server's remote user list to disk.
func (r *Runner) Audit(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	progress := make(chan tasks.ProgressUpdate, 50)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for update := range progress {
			r.writePlain("→ %s\n", update.Message)
		}
	}()

	report, err := r.newEngine(db).Audit(ctx, progress, tasks.AuditOpts{
		OutputDir:  cmd.String("output"),
		NumWorkers: int(cmd.Int("workers")),
		RateLimit:  cmd.Float("rate"),
	})
	close(progress)
	wg.Wait()
	if err != nil {
		return fmt.Errorf("audit failed: %w", err)
	}

	for _, audit := range report.Servers {
		if !audit.Reachable {
			r.writePlain("✗ %s: %s\n", audit.ServerName, audit.Error)
			continue
		}
		r.writePlain("✓ %s: %d users → %s\n", audit.ServerName, len(audit.Users), audit.File)
	}
	r.writePlain("\nAudited %d of %d servers (%d failed), manifest at %s\n",
		report.Audited, report.TotalServers, report.Failed, report.ManifestPath)
	return nil
}

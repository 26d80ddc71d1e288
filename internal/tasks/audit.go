package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/desertthunder/usher/internal/models"
	"github.com/desertthunder/usher/internal/providers"
	"github.com/desertthunder/usher/internal/shared"
)

// AuditOpts contains configuration for audit dumps.
type AuditOpts struct {
	OutputDir  string  // Base output directory (default: usher_audit_{epoch})
	NumWorkers int     // Concurrent workers (default: 3)
	RateLimit  float64 // Server dispatches per second (default: 2)
}

// ServerAudit is one server's snapshot in an audit dump.
type ServerAudit struct {
	ServerID   string                   `json:"server_id"`
	ServerName string                   `json:"server_name"`
	ServerType string                   `json:"server_type"`
	Reachable  bool                     `json:"reachable"`
	Users      []providers.ExternalUser `json:"users,omitempty"`
	Libraries  []providers.Library      `json:"libraries,omitempty"`
	Error      string                   `json:"error,omitempty"`
	File       string                   `json:"file,omitempty"`
}

// AuditResult summarizes an audit dump across every registered server.
type AuditResult struct {
	TotalServers    int           `json:"total_servers"`
	Audited         int           `json:"audited"`
	Failed          int           `json:"failed"`
	OutputDirectory string        `json:"output_directory"`
	ManifestPath    string        `json:"manifest_path,omitempty"`
	StartedAt       time.Time     `json:"started_at"`
	Servers         []ServerAudit `json:"servers"`
}

// Audit dumps account and library state from every registered server into
// per-server JSON files plus a manifest.
//
// Servers are audited by a small worker pool with rate-limited dispatch, and
// an unreachable server is recorded as a failed entry rather than aborting
// the rest of the dump. Like Sync, an audit performs zero writes to any
// provider.
func (e *Engine) Audit(ctx context.Context, progress chan<- ProgressUpdate, opts AuditOpts) (*AuditResult, error) {
	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("usher_audit_%d", time.Now().Unix())
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 3
	}
	if opts.NumWorkers > 10 {
		opts.NumWorkers = 10
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 2.0
	}

	servers, err := e.servers.List(map[string]any{})
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	result := &AuditResult{
		TotalServers:    len(servers),
		OutputDirectory: opts.OutputDir,
		StartedAt:       time.Now(),
		Servers:         make([]ServerAudit, 0, len(servers)),
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)

	jobs := make(chan *models.MediaServer, len(servers))
	audits := make(chan ServerAudit, len(servers))

	var wg sync.WaitGroup
	for i := 0; i < opts.NumWorkers; i++ {
		wg.Add(1)
		go e.auditWorker(ctx, &wg, jobs, audits, opts.OutputDir)
	}

	go func() {
		for _, server := range servers {
			select {
			case <-ctx.Done():
				close(jobs)
				return
			default:
			}

			if err := limiter.Wait(ctx); err != nil {
				close(jobs)
				return
			}

			jobs <- server
		}
		close(jobs)
	}()

	go func() {
		wg.Wait()
		close(audits)
	}()

	completed := 0
	for audit := range audits {
		completed++
		result.Servers = append(result.Servers, audit)

		if audit.Error == "" {
			result.Audited++
			e.sendProgress(progress, auditServerUpdate(completed, len(servers), audit.ServerName))
		} else {
			result.Failed++
			e.sendProgress(progress, auditFailedUpdate(completed, len(servers), audit.ServerName, fmt.Errorf("%s", audit.Error)))
		}
	}

	manifestPath := filepath.Join(opts.OutputDir, "audit_manifest.json")
	e.sendProgress(progress, writeManifestUpdate(manifestPath))

	data, err := shared.MarshalJSON(result, true)
	if err != nil {
		return result, fmt.Errorf("audit completed but failed to encode manifest: %w", err)
	}
	if err := os.WriteFile(manifestPath, data, 0644); err != nil {
		return result, fmt.Errorf("audit completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath

	return result, nil
}

// auditWorker is a worker goroutine that audits servers from the jobs channel.
func (e *Engine) auditWorker(ctx context.Context, wg *sync.WaitGroup, jobs <-chan *models.MediaServer, audits chan<- ServerAudit, outputDir string) {
	defer wg.Done()

	for server := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}

		audits <- e.auditServer(ctx, server, outputDir)
	}
}

// auditServer snapshots one server's users and libraries to a JSON file.
func (e *Engine) auditServer(ctx context.Context, server *models.MediaServer, outputDir string) ServerAudit {
	audit := ServerAudit{
		ServerID:   server.ID(),
		ServerName: server.Name(),
		ServerType: server.ServerType(),
	}

	client, err := e.connect(server)
	if err != nil {
		audit.Error = err.Error()
		return audit
	}
	defer client.Close()

	audit.Reachable = client.TestConnection(ctx)
	if !audit.Reachable {
		audit.Error = "server unreachable"
		return audit
	}

	if err := client.Open(ctx); err != nil {
		audit.Error = err.Error()
		return audit
	}

	users, err := client.ListUsers(ctx)
	if err != nil {
		audit.Error = err.Error()
		return audit
	}
	audit.Users = users

	libraries, err := client.Libraries(ctx)
	if err != nil {
		audit.Error = err.Error()
		return audit
	}
	audit.Libraries = libraries

	path := filepath.Join(outputDir, fmt.Sprintf("%s.json", server.Name()))
	data, err := shared.MarshalJSON(audit, true)
	if err != nil {
		audit.Error = fmt.Sprintf("failed to encode snapshot: %v", err)
		return audit
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		audit.Error = fmt.Sprintf("failed to write snapshot: %v", err)
		return audit
	}
	audit.File = path

	return audit
}

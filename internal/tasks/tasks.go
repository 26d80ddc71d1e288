// package tasks implements redemption orchestration and drift detection across media servers.
//
// The core abstraction is Engine, which coordinates provider clients, local
// persistence, and compensating rollback. Operations emit progress updates via
// channels for non-blocking status reporting to CLI/UI layers.
package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/usher/internal/models"
	"github.com/desertthunder/usher/internal/providers"
	"github.com/desertthunder/usher/internal/repositories"
	"github.com/desertthunder/usher/internal/shared"
)

// Validation failure reasons, from most to least specific. Validation is
// read-only and reports exactly one reason.
const (
	ReasonNotFound = "not_found"
	ReasonDisabled = "disabled"
	ReasonExpired  = "expired"
	ReasonMaxUses  = "max_uses_reached"
)

// Redemption failure codes surfaced to callers.
const (
	ErrorCodeUsernameTaken = "USERNAME_TAKEN"
	ErrorCodeAlreadyExists = "ALREADY_EXISTS"
	ErrorCodeEmailRequired = "EMAIL_REQUIRED"
	ErrorCodeServerError   = "SERVER_ERROR"
)

// RedeemRequest describes one redemption attempt against an invitation code.
type RedeemRequest struct {
	Code        string             `json:"code"`
	Username    string             `json:"username"`
	Email       string             `json:"email,omitempty"`
	Password    string             `json:"password,omitempty"`
	DisplayName string             `json:"display_name,omitempty"`
	Kind        providers.UserKind `json:"-"`
}

// RedeemResult is the outcome of one redemption attempt.
//
// On failure ErrorCode distinguishes conflicts from generic provider failures,
// FailedServer names the server that triggered the rollback, and
// RollbackErrors lists compensation failures that may have left partially
// created accounts behind.
type RedeemResult struct {
	Success        bool                     `json:"success"`
	UsersCreated   []providers.ExternalUser `json:"users_created,omitempty"`
	IdentityID     string                   `json:"identity_id,omitempty"`
	ErrorCode      string                   `json:"error_code,omitempty"`
	FailedServer   string                   `json:"failed_server,omitempty"`
	Message        string                   `json:"message,omitempty"`
	RollbackErrors []string                 `json:"rollback_errors,omitempty"`
}

// Orchestrator defines the long-running operations the engine exposes.
type Orchestrator interface {
	// Redeem provisions accounts on every server an invitation targets as a
	// single logical operation with compensating rollback on partial failure.
	Redeem(ctx context.Context, progress chan<- ProgressUpdate, req RedeemRequest) (*RedeemResult, error)

	// Sync compares one server's live account list against local records
	// without mutating either side.
	Sync(ctx context.Context, progress chan<- ProgressUpdate, serverID string) (*SyncResult, error)

	// Audit dumps account and library state from every registered server.
	Audit(ctx context.Context, progress chan<- ProgressUpdate, opts AuditOpts) (*AuditResult, error)
}

// Engine implements [Orchestrator] over the registry and local repositories.
type Engine struct {
	db          *sql.DB
	cfg         *shared.Config
	registry    *providers.Registry
	invitations *repositories.InvitationRepository
	users       *repositories.UserRepository
	servers     *repositories.MediaServerRepository
	logger      *log.Logger
}

// NewEngine creates an engine bound to the given database, config, and
// provider registry.
func NewEngine(db *sql.DB, cfg *shared.Config, registry *providers.Registry, logger *log.Logger) *Engine {
	if registry == nil {
		registry = providers.Default
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Engine{
		db:          db,
		cfg:         cfg,
		registry:    registry,
		invitations: repositories.NewInvitationRepository(db),
		users:       repositories.NewUserRepository(db),
		servers:     repositories.NewMediaServerRepository(db),
		logger:      logger,
	}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *Engine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
		// Sent successfully
	default:
		// Channel full or closed, skip this update
	}
}

// ValidateInvitation checks whether a code can be redeemed right now. It is
// read-only: the use count is only ever incremented by a successful Redeem.
// On failure the returned reason is the single most specific one.
func (e *Engine) ValidateInvitation(code string, now time.Time) (*models.Invitation, string, error) {
	invitation, err := e.invitations.GetByCode(code)
	if errors.Is(err, shared.ErrInviteNotFound) {
		return nil, ReasonNotFound, nil
	}
	if err != nil {
		return nil, "", err
	}

	if !invitation.Enabled() {
		return nil, ReasonDisabled, nil
	}
	if invitation.Expired(now) {
		return nil, ReasonExpired, nil
	}
	if !invitation.UsesRemaining() {
		return nil, ReasonMaxUses, nil
	}

	return invitation, "", nil
}

// connect acquires a fresh scoped client for one server. The token comes from
// config by server name; registered servers without credentials are a
// configuration error, not a provider failure.
func (e *Engine) connect(server *models.MediaServer) (providers.Client, error) {
	serverCfg, err := e.cfg.FindServer(server.Name())
	if err != nil {
		return nil, fmt.Errorf("no credentials configured for server %s: %w", server.Name(), err)
	}

	return e.registry.CreateClient(server.ServerType(), providers.ConnectionParams{
		ServerName: server.Name(),
		URL:        server.URL(),
		Token:      serverCfg.Token,
	})
}

// provisionOutcome is one server's result from the concurrent provisioning
// fan-out. Created is non-nil whenever the account exists remotely and must
// be compensated on rollback, even if a later configure step failed.
type provisionOutcome struct {
	server  *models.MediaServer
	created *providers.ExternalUser
	err     error
}

// Redeem runs one redemption attempt: validating → provisioning → finalizing,
// or rolled back on any provider failure.
//
// Provisioning fans out concurrently across target servers; rollback deletes
// are issued only after every attempt has settled, so a failure never races a
// still-in-flight success. Local records are written once, in a single
// transaction, and only when every server succeeded.
func (e *Engine) Redeem(ctx context.Context, progress chan<- ProgressUpdate, req RedeemRequest) (*RedeemResult, error) {
	e.sendProgress(progress, validatingUpdate(req.Code))

	invitation, reason, err := e.ValidateInvitation(req.Code, time.Now())
	if err != nil {
		return nil, err
	}
	if reason != "" {
		e.logger.Warn("invitation validation failed", "code", req.Code, "reason", reason)
		return &RedeemResult{
			Success:   false,
			ErrorCode: reason,
			Message:   fmt.Sprintf("invitation cannot be redeemed: %s", reason),
		}, nil
	}

	targets := make([]*models.MediaServer, 0, len(invitation.ServerIDs()))
	for _, serverID := range invitation.ServerIDs() {
		server, err := e.servers.Get(serverID)
		if err != nil {
			return nil, fmt.Errorf("invitation targets unknown server %s: %w", serverID, err)
		}
		targets = append(targets, server)
	}

	outcomes := make([]provisionOutcome, len(targets))

	var wg sync.WaitGroup
	for i, server := range targets {
		wg.Add(1)
		go func(i int, server *models.MediaServer) {
			defer wg.Done()
			e.sendProgress(progress, provisioningUpdate(i+1, len(targets), server.Name()))
			outcomes[i] = e.provisionOne(ctx, server, invitation, req)
		}(i, server)
	}
	wg.Wait()

	var failed *provisionOutcome
	for i := range outcomes {
		if outcomes[i].err != nil {
			failed = &outcomes[i]
			break
		}
	}

	if failed != nil {
		return e.rollback(ctx, progress, outcomes, failed), nil
	}

	e.sendProgress(progress, finalizingUpdate(len(targets)))

	var expiresAt *time.Time
	if days := invitation.DurationDays(); days != nil {
		t := time.Now().AddDate(0, 0, *days)
		expiresAt = &t
	}

	displayName := req.DisplayName
	if displayName == "" {
		displayName = req.Username
	}
	identity := models.NewIdentity(0, displayName, invitation.ID())
	identity.SetExpiresAt(expiresAt)

	created := make([]providers.ExternalUser, len(outcomes))
	users := make([]*models.User, len(outcomes))
	for i, outcome := range outcomes {
		created[i] = *outcome.created
		user := models.NewUser(0, "pending", outcome.server.ID(), outcome.created.ExternalID, outcome.created.Username)
		user.SetEmail(outcome.created.Email)
		user.SetExpiresAt(expiresAt)
		users[i] = user
	}

	if err := repositories.FinalizeRedemption(e.db, invitation, identity, users); err != nil {
		// Every server succeeded; the local commit is what failed. Compensate
		// the remote accounts, but report the failure as local rather than
		// pinning it on a server that did its job.
		e.logger.Error("failed to finalize redemption", "code", req.Code, "error", err)
		result := &RedeemResult{
			Success:   false,
			ErrorCode: ErrorCodeServerError,
			Message:   fmt.Sprintf("failed to record redemption: %v", err),
		}
		e.compensate(ctx, progress, outcomes, result)
		return result, nil
	}

	e.logger.Info("redemption succeeded", "code", req.Code, "servers", len(targets), "identity_id", identity.ID())
	return &RedeemResult{
		Success:      true,
		UsersCreated: created,
		IdentityID:   identity.ID(),
	}, nil
}

// provisionOne creates and configures the account on a single server. The
// client is scoped to this call and released on every exit path.
func (e *Engine) provisionOne(ctx context.Context, server *models.MediaServer, invitation *models.Invitation, req RedeemRequest) provisionOutcome {
	outcome := provisionOutcome{server: server}

	client, err := e.connect(server)
	if err != nil {
		outcome.err = err
		return outcome
	}
	defer client.Close()

	if err := client.Open(ctx); err != nil {
		outcome.err = err
		return outcome
	}

	created, err := client.CreateUser(ctx, providers.UserSpec{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Kind:     req.Kind,
	})
	if err != nil {
		outcome.err = err
		return outcome
	}
	outcome.created = created

	caps := client.Capabilities()

	if libraryIDs := invitation.LibraryIDs(); len(libraryIDs) > 0 {
		if caps.Has(providers.CapLibraryAccess) {
			if _, err := client.SetLibraryAccess(ctx, created.ExternalID, libraryIDs); err != nil {
				outcome.err = err
				return outcome
			}
		} else {
			e.logger.Warn("library access not supported, skipping restriction",
				"server", server.Name(), "external_id", created.ExternalID)
		}
	}

	perms := invitation.Permissions()
	if _, err := client.UpdatePermissions(ctx, created.ExternalID, providers.Permissions{
		AllowDownload:  perms.AllowDownload,
		AllowStream:    perms.AllowStream,
		AllowSync:      perms.AllowSync,
		AllowTranscode: perms.AllowTranscode,
	}); err != nil {
		outcome.err = err
		return outcome
	}

	return outcome
}

// rollback issues best-effort compensating deletes for every account created
// during a failed attempt. Compensation failures are logged distinctly from
// the triggering failure and reported so partially created accounts are never
// silently hidden.
func (e *Engine) rollback(ctx context.Context, progress chan<- ProgressUpdate, outcomes []provisionOutcome, failed *provisionOutcome) *RedeemResult {
	result := &RedeemResult{
		Success:      false,
		FailedServer: failed.server.Name(),
		ErrorCode:    classifyError(failed.err),
		Message:      fmt.Sprintf("provisioning failed on %s: %v", failed.server.Name(), failed.err),
	}

	e.logger.Error("provisioning failed, rolling back",
		"failed_server", failed.server.Name(), "error", failed.err)

	e.compensate(ctx, progress, outcomes, result)
	return result
}

// compensate deletes every account created during a failed attempt, recording
// deletion failures on the result.
func (e *Engine) compensate(ctx context.Context, progress chan<- ProgressUpdate, outcomes []provisionOutcome, result *RedeemResult) {
	for i, outcome := range outcomes {
		if outcome.created == nil {
			continue
		}

		e.sendProgress(progress, rollbackUpdate(i+1, len(outcomes), outcome.server.Name()))

		if err := e.deleteRemote(ctx, outcome.server, outcome.created.ExternalID); err != nil {
			// Distinct from the triggering failure: the account may remain.
			e.logger.Error("rollback deletion failed, account may remain on server",
				"server", outcome.server.Name(), "external_id", outcome.created.ExternalID, "error", err)
			result.RollbackErrors = append(result.RollbackErrors,
				fmt.Sprintf("%s: %v", outcome.server.Name(), err))
		}
	}
}

// deleteRemote removes one account with a fresh scoped client.
func (e *Engine) deleteRemote(ctx context.Context, server *models.MediaServer, externalID string) error {
	client, err := e.connect(server)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Open(ctx); err != nil {
		return err
	}

	_, err = client.DeleteUser(ctx, externalID)
	return err
}

// classifyError maps a provisioning failure onto the redemption error codes.
// Anything that is not a distinguishable conflict is a generic server error.
func classifyError(err error) string {
	switch {
	case errors.Is(err, providers.ErrUsernameTaken):
		return ErrorCodeUsernameTaken
	case errors.Is(err, providers.ErrAlreadyExists):
		return ErrorCodeAlreadyExists
	case errors.Is(err, providers.ErrEmailRequired):
		return ErrorCodeEmailRequired
	default:
		return ErrorCodeServerError
	}
}

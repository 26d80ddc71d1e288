package tasks

import (
	"context"
	"sort"
	"time"
)

// SyncResult reports drift between one server's live accounts and local
// records. It is a pure report: nothing is persisted and neither side is
// mutated, so running a sync twice on unchanged state yields identical
// results.
type SyncResult struct {
	ServerID      string    `json:"server_id"`
	ServerName    string    `json:"server_name"`
	SyncedAt      time.Time `json:"synced_at"`
	OrphanedUsers []string  `json:"orphaned_users"`
	StaleUsers    []string  `json:"stale_users"`
	MatchedUsers  int       `json:"matched_users"`
}

// Sync compares the server's live user list against local User rows,
// partitioned by external identifier:
//
//   - orphaned: the server has the account, local records do not
//   - stale: a local record exists, the server account is gone
//   - matched: both sides agree
//
// Drift is detected, never repaired; provisioning goes through Redeem only.
func (e *Engine) Sync(ctx context.Context, progress chan<- ProgressUpdate, serverID string) (*SyncResult, error) {
	server, err := e.servers.Get(serverID)
	if err != nil {
		return nil, err
	}

	e.sendProgress(progress, fetchRemoteUpdate(server.Name()))

	client, err := e.connect(server)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	if err := client.Open(ctx); err != nil {
		return nil, err
	}

	remote, err := client.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	e.sendProgress(progress, fetchLocalUpdate(server.Name()))

	local, err := e.users.List(map[string]any{"server_id": serverID})
	if err != nil {
		return nil, err
	}

	e.sendProgress(progress, compareUpdate(len(remote), len(local)))

	remoteByID := make(map[string]string, len(remote))
	for _, user := range remote {
		remoteByID[user.ExternalID] = user.Username
	}
	localByID := make(map[string]string, len(local))
	for _, user := range local {
		localByID[user.ExternalID()] = user.Username()
	}

	result := &SyncResult{
		ServerID:      serverID,
		ServerName:    server.Name(),
		SyncedAt:      time.Now(),
		OrphanedUsers: []string{},
		StaleUsers:    []string{},
	}

	for externalID, username := range remoteByID {
		if _, ok := localByID[externalID]; ok {
			result.MatchedUsers++
		} else {
			result.OrphanedUsers = append(result.OrphanedUsers, username)
		}
	}
	for externalID, username := range localByID {
		if _, ok := remoteByID[externalID]; !ok {
			result.StaleUsers = append(result.StaleUsers, username)
		}
	}

	// Map iteration order is random; sorted output keeps repeated runs identical.
	sort.Strings(result.OrphanedUsers)
	sort.Strings(result.StaleUsers)

	e.logger.Info("sync completed", "server", server.Name(),
		"matched", result.MatchedUsers,
		"orphaned", len(result.OrphanedUsers),
		"stale", len(result.StaleUsers))

	return result, nil
}

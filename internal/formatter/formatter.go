// package formatter provides functions to render users, invitations, and
// drift reports to various formats (CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/usher/internal/models"
	"github.com/desertthunder/usher/internal/shared"
	"github.com/desertthunder/usher/internal/tasks"
)

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

// UsersToCSV converts provisioned users to CSV format with columns: ID, Username, Email, ServerID, ExternalID, ExpiresAt
func UsersToCSV(users []*models.User) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Username", "Email", "ServerID", "ExternalID", "ExpiresAt"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, user := range users {
		record := []string{
			user.ID(),
			user.Username(),
			user.Email(),
			user.ServerID(),
			user.ExternalID(),
			formatTimePtr(user.ExpiresAt()),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// usesString renders "used/max" or "used/∞" for unlimited invitations.
func usesString(invitation *models.Invitation) string {
	if max := invitation.MaxUses(); max != nil {
		return fmt.Sprintf("%d/%d", invitation.UseCount(), *max)
	}
	return fmt.Sprintf("%d/∞", invitation.UseCount())
}

// InvitationsToCSV converts invitations to CSV format with columns: Code, Enabled, Uses, ExpiresAt, Servers, Libraries
func InvitationsToCSV(invitations []*models.Invitation) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Code", "Enabled", "Uses", "ExpiresAt", "Servers", "Libraries"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, invitation := range invitations {
		record := []string{
			invitation.Code(),
			strconv.FormatBool(invitation.Enabled()),
			usesString(invitation),
			formatTimePtr(invitation.ExpiresAt()),
			strings.Join(invitation.ServerIDs(), " "),
			strings.Join(invitation.LibraryIDs(), " "),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// InvitationToText converts a single invitation to plain text format for CLI display
func InvitationToText(invitation *models.Invitation) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Code: %s\n", invitation.Code()))
	buf.WriteString(fmt.Sprintf("Enabled: %t\n", invitation.Enabled()))
	buf.WriteString(fmt.Sprintf("Uses: %s\n", usesString(invitation)))

	if expiresAt := invitation.ExpiresAt(); expiresAt != nil {
		buf.WriteString(fmt.Sprintf("Expires: %s\n", expiresAt.Format(time.RFC3339)))
	}
	if days := invitation.DurationDays(); days != nil {
		buf.WriteString(fmt.Sprintf("Membership duration: %d days\n", *days))
	}

	buf.WriteString(fmt.Sprintf("Servers: %s\n", strings.Join(invitation.ServerIDs(), ", ")))
	if libraryIDs := invitation.LibraryIDs(); len(libraryIDs) > 0 {
		buf.WriteString(fmt.Sprintf("Libraries: %s\n", strings.Join(libraryIDs, ", ")))
	} else {
		buf.WriteString("Libraries: all\n")
	}

	perms := invitation.Permissions()
	buf.WriteString(fmt.Sprintf("Permissions: download=%t stream=%t sync=%t transcode=%t\n",
		perms.AllowDownload, perms.AllowStream, perms.AllowSync, perms.AllowTranscode))

	return buf.Bytes()
}

// SyncToMarkdown converts a drift report to Markdown format
func SyncToMarkdown(result *tasks.SyncResult) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# Sync Report: %s\n\n", result.ServerName))
	buf.WriteString(fmt.Sprintf("**Synced**: %s\n", result.SyncedAt.Format(time.RFC3339)))
	buf.WriteString(fmt.Sprintf("**Matched**: %d\n\n", result.MatchedUsers))

	buf.WriteString(fmt.Sprintf("## Orphaned (%d)\n\n", len(result.OrphanedUsers)))
	if len(result.OrphanedUsers) == 0 {
		buf.WriteString("None. Every server account has a local record.\n\n")
	}
	for _, username := range result.OrphanedUsers {
		buf.WriteString(fmt.Sprintf("- %s (on server, no local record)\n", username))
	}
	if len(result.OrphanedUsers) > 0 {
		buf.WriteString("\n")
	}

	buf.WriteString(fmt.Sprintf("## Stale (%d)\n\n", len(result.StaleUsers)))
	if len(result.StaleUsers) == 0 {
		buf.WriteString("None. Every local record has a live account.\n")
	}
	for _, username := range result.StaleUsers {
		buf.WriteString(fmt.Sprintf("- %s (local record, gone from server)\n", username))
	}

	return buf.Bytes()
}

// SyncToText converts a drift report to plain text format
func SyncToText(result *tasks.SyncResult) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Server: %s\n", result.ServerName))
	buf.WriteString(fmt.Sprintf("Matched: %d\n", result.MatchedUsers))
	buf.WriteString(fmt.Sprintf("Orphaned: %d\n", len(result.OrphanedUsers)))
	for _, username := range result.OrphanedUsers {
		buf.WriteString(fmt.Sprintf("  + %s\n", username))
	}
	buf.WriteString(fmt.Sprintf("Stale: %d\n", len(result.StaleUsers)))
	for _, username := range result.StaleUsers {
		buf.WriteString(fmt.Sprintf("  - %s\n", username))
	}

	return buf.Bytes()
}

// RedeemToText converts a redemption result to plain text format
func RedeemToText(result *tasks.RedeemResult) []byte {
	var buf bytes.Buffer

	if result.Success {
		buf.WriteString("✓ Redemption succeeded\n")
		buf.WriteString(fmt.Sprintf("Identity: %s\n", result.IdentityID))
		for _, user := range result.UsersCreated {
			buf.WriteString(fmt.Sprintf("  %s (%s)\n", user.Username, user.ExternalID))
		}
		return buf.Bytes()
	}

	buf.WriteString("✗ Redemption failed\n")
	if result.FailedServer != "" {
		buf.WriteString(fmt.Sprintf("Server: %s\n", result.FailedServer))
	}
	buf.WriteString(fmt.Sprintf("Code: %s\n", result.ErrorCode))
	if result.Message != "" {
		buf.WriteString(fmt.Sprintf("Detail: %s\n", result.Message))
	}
	for _, rollbackErr := range result.RollbackErrors {
		buf.WriteString(fmt.Sprintf("! Rollback incomplete: %s\n", rollbackErr))
	}

	return buf.Bytes()
}

// SyncReportResult contains the paths of files created by WriteSyncReport
type SyncReportResult struct {
	MarkdownFile string
	JSONFile     string
}

// WriteSyncReport exports a drift report to Markdown with an accompanying JSON file.
//
// Defaults to the server ID as the base filename & creates {base}_sync.md and {base}_sync.json
func WriteSyncReport(result *tasks.SyncResult, baseFilepath string) (*SyncReportResult, error) {
	if baseFilepath == "" {
		baseFilepath = result.ServerID
	}

	mdFile := baseFilepath + "_sync.md"
	if err := os.WriteFile(mdFile, SyncToMarkdown(result), 0644); err != nil {
		return nil, fmt.Errorf("failed to write Markdown file: %w", err)
	}

	jsonData, err := shared.MarshalJSON(result, true)
	if err != nil {
		return nil, fmt.Errorf("failed to generate JSON: %w", err)
	}

	jsonFile := baseFilepath + "_sync.json"
	if err := os.WriteFile(jsonFile, jsonData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write JSON file: %w", err)
	}

	return &SyncReportResult{
		MarkdownFile: mdFile,
		JSONFile:     jsonFile,
	}, nil
}

// WriteUsersCSV exports provisioned users to a CSV file.
//
// Defaults to users.csv as the filename.
func WriteUsersCSV(users []*models.User, filepath string) (string, error) {
	if filepath == "" {
		filepath = "users.csv"
	}

	csvData, err := UsersToCSV(users)
	if err != nil {
		return "", fmt.Errorf("failed to generate CSV: %w", err)
	}

	if err := os.WriteFile(filepath, csvData, 0644); err != nil {
		return "", fmt.Errorf("failed to write CSV file: %w", err)
	}

	return filepath, nil
}

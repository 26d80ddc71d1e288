package tasks

import (
	"fmt"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	Validating Phase = iota
	Provisioning
	Finalizing
	RollingBack
	FetchRemote
	FetchLocal
	Compare
	AuditServer
	WriteManifest
)

func (p Phase) String() string {
	switch p {
	case Validating:
		return "validating"
	case Provisioning:
		return "provisioning"
	case Finalizing:
		return "finalizing"
	case RollingBack:
		return "rolling_back"
	case FetchRemote:
		return "fetch_remote"
	case FetchLocal:
		return "fetch_local"
	case Compare:
		return "compare"
	case AuditServer:
		return "audit_server"
	case WriteManifest:
		return "write_manifest"
	default:
		return ""
	}
}

func validatingUpdate(code string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Validating,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Validating invitation %s...", code),
	}
}

func provisioningUpdate(step, total int, serverName string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Provisioning,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Creating account on %s...", step, total, serverName),
	}
}

func finalizingUpdate(total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Finalizing,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Recording %d accounts locally...", total),
	}
}

func rollbackUpdate(step, total int, serverName string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   RollingBack,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Removing account from %s...", step, total, serverName),
	}
}

func fetchRemoteUpdate(serverName string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchRemote,
		Step:    1,
		Total:   2,
		Message: fmt.Sprintf("Fetching live accounts from %s...", serverName),
	}
}

func fetchLocalUpdate(serverName string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchLocal,
		Step:    2,
		Total:   2,
		Message: fmt.Sprintf("Loading local records for %s...", serverName),
	}
}

func compareUpdate(remote, local int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Compare,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Comparing %d live accounts against %d local records...", remote, local),
	}
}

func auditServerUpdate(step, total int, serverName string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   AuditServer,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Auditing %s...", step, total, serverName),
	}
}

func auditFailedUpdate(step, total int, serverName string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   AuditServer,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, serverName, err),
	}
}

func writeManifestUpdate(path string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   WriteManifest,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Writing audit manifest to %s...", path),
	}
}

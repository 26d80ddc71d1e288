package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/usher/internal/models"
)

var (
	_ list.Item = invitationItem{}
	_ list.Item = serverItem{}
)

// invitationItem wraps [models.Invitation] to implement [list.Item].
type invitationItem struct {
	invitation *models.Invitation
}

func (i invitationItem) FilterValue() string { return i.invitation.Code() }
func (i invitationItem) Title() string       { return i.invitation.Code() }
func (i invitationItem) Description() string {
	uses := fmt.Sprintf("%d uses", i.invitation.UseCount())
	if max := i.invitation.MaxUses(); max != nil {
		uses = fmt.Sprintf("%d/%d uses", i.invitation.UseCount(), *max)
	}
	desc := fmt.Sprintf("%d servers • %s", len(i.invitation.ServerIDs()), uses)
	if !i.invitation.Enabled() {
		desc = fmt.Sprintf("%s • disabled", desc)
	}
	return desc
}

// serverItem wraps [models.MediaServer] to implement [list.Item].
type serverItem struct {
	server *models.MediaServer
}

func (i serverItem) FilterValue() string { return i.server.Name() }
func (i serverItem) Title() string       { return i.server.Name() }
func (i serverItem) Description() string {
	return fmt.Sprintf("%s • %s", i.server.ServerType(), i.server.URL())
}

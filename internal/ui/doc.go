// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI provides a multi-view workflow for invitation redemption:
//  1. [InvitationListView] : Browse invitation codes with use counts
//  2. [DetailView] : Inspect target servers, libraries, and membership duration
//  3. [ConfirmView] : Confirm the redemption
//  4. [RedeemView] : Monitor per-server provisioning progress
//  5. [ResultView] : Display created accounts or the rollback breakdown
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving typed messages per state transition.
// Progress updates flow through a channel from the orchestrator, providing non-blocking status reporting during redemptions.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, y/n, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui

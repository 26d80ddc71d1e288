// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// setupCommand handles setup operations for the database and configuration.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "database",
				Usage: "Initialize database and run migrations",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   "config.toml",
					},
				},
				Action: r.SetupDatabase,
			},
		},
	}
}

// serverCommand handles media server registration
func serverCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "server",
		Aliases: []string{"srv"},
		Usage:   "Manage registered media servers",
		Commands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Register a media server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "name",
						Usage:    "Display name, must match a [[media_server]] config entry",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "type",
						Usage:    "Provider type (plex or jellyfin)",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "url",
						Usage:    "Server base URL",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "check",
						Usage: "Test connectivity before registering",
					},
				},
				Action: r.ServerAdd,
			},
			{
				Name:  "list",
				Usage: "List registered media servers",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "type",
						Usage: "Filter by provider type",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
				},
				Action: r.ServerList,
			},
			{
				Name:  "libraries",
				Usage: "List libraries on a registered server",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "name",
					},
				},
				Action: r.ServerLibraries,
			},
			{
				Name:    "remove",
				Aliases: []string{"rm"},
				Usage:   "Remove a registered media server",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "name",
					},
				},
				Action: r.ServerRemove,
			},
		},
	}
}

// inviteCommand handles invitation management
func inviteCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "invite",
		Aliases: []string{"inv"},
		Usage:   "Manage invitation codes",
		Commands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Create an invitation code",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "code",
						Usage: "Invitation code (generated when omitted)",
					},
					&cli.StringSliceFlag{
						Name:     "server",
						Aliases:  []string{"s"},
						Usage:    "Target server name (repeatable)",
						Required: true,
					},
					&cli.StringSliceFlag{
						Name:    "library",
						Aliases: []string{"l"},
						Usage:   "Restrict to a library ID (repeatable; omit for all libraries)",
					},
					&cli.IntFlag{
						Name:  "max-uses",
						Usage: "Maximum redemptions (0 = unlimited)",
					},
					&cli.IntFlag{
						Name:  "expires-in",
						Usage: "Days until the code stops being redeemable (0 = never)",
					},
					&cli.IntFlag{
						Name:  "duration",
						Usage: "Membership duration in days granted to redeemers (0 = indefinite)",
					},
					&cli.BoolFlag{
						Name:  "allow-downloads",
						Usage: "Grant the download permission",
					},
					&cli.BoolFlag{
						Name:  "allow-sync",
						Usage: "Grant the sync permission",
					},
				},
				Action: r.InviteCreate,
			},
			{
				Name:  "list",
				Usage: "List invitation codes",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "enabled",
						Usage: "Only show enabled invitations",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "csv",
						Usage: "Output CSV",
					},
				},
				Action: r.InviteList,
			},
			{
				Name:  "show",
				Usage: "Show one invitation",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "code",
					},
				},
				Action: r.InviteShow,
			},
			{
				Name:  "disable",
				Usage: "Disable an invitation code",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "code",
					},
				},
				Action: r.InviteDisable,
			},
			{
				Name:  "enable",
				Usage: "Re-enable an invitation code",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "code",
					},
				},
				Action: r.InviteEnable,
			},
		},
	}
}

// userCommand inspects provisioned accounts
func userCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "user",
		Usage: "Inspect provisioned accounts",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List provisioned accounts",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "server",
						Aliases: []string{"s"},
						Usage:   "Filter by server name",
					},
					&cli.BoolFlag{
						Name:  "csv",
						Usage: "Output CSV",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write CSV to this path instead of stdout",
					},
				},
				Action: r.UserList,
			},
		},
	}
}

// redeemCommand runs a redemption from the terminal
func redeemCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "redeem",
		Usage: "Redeem an invitation code",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "code",
				Usage:    "Invitation code",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "username",
				Aliases:  []string{"u"},
				Usage:    "Account username",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "email",
				Usage: "Email address (required for Plex friend invites)",
			},
			&cli.StringFlag{
				Name:  "password",
				Usage: "Account password (Jellyfin)",
			},
			&cli.StringFlag{
				Name:  "kind",
				Usage: "Plex account kind: friend or home",
				Value: "friend",
			},
			&cli.BoolFlag{
				Name:  "plex-auth",
				Usage: "Verify the email through the plex.tv PIN flow first",
			},
		},
		Action: r.Redeem,
	}
}

// syncCommand reports drift between a server and local records
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Compare a server's live accounts against local records",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "name",
			},
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write a Markdown + JSON report with this base path",
			},
		},
		Action: r.Sync,
	}
}

// auditCommand dumps account state from every registered server
func auditCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "audit",
		Usage: "Dump users and libraries from every registered server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output directory (default: usher_audit_{timestamp})",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Concurrent workers",
				Value: 3,
			},
			&cli.FloatFlag{
				Name:  "rate",
				Usage: "Server dispatches per second",
				Value: 2.0,
			},
		},
		Action: r.Audit,
	}
}

// plexCommand handles plex.tv authentication
func plexCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "plex",
		Usage: "plex.tv operations",
		Commands: []*cli.Command{
			{
				Name:  "auth",
				Usage: "Sign in to plex.tv with a claim PIN",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "no-browser",
						Usage: "Print the claim URL instead of opening a browser",
					},
				},
				Action: r.PlexAuth,
			},
		},
	}
}

// serveCommand starts the HTTP API
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the invitation HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Bind host (overrides config)",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Bind port (overrides config)",
			},
		},
		Action: r.Serve,
	}
}

// tuiCommand returns the top-level TUI command for interactive redemption.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch interactive TUI for invitation redemption",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "username",
				Aliases:  []string{"u"},
				Usage:    "Account username used for redemptions",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "email",
				Usage: "Email address used for redemptions",
			},
		},
		Action: r.TUI,
	}
}

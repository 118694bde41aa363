// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func jsonFlag() cli.Flag { return &cli.BoolFlag{Name: "json", Usage: "Output raw JSON"} }

func prettyFlag() cli.Flag {
	return &cli.BoolFlag{Name: "pretty", Usage: "Pretty-print JSON output", Value: true}
}

// setupCommand handles setup operations for the local database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup commands",
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

// configCommand manages the configuration file.
func configCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Configuration file commands",
		Commands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Write a config.toml with default settings",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "path",
						Aliases: []string{"p"},
						Usage:   "Where to write the file",
						Value:   "config.toml",
					},
				},
				Action: r.ConfigInit,
			},
			{
				Name:   "show",
				Usage:  "Print the effective configuration",
				Action: r.ConfigShow,
			},
		},
	}
}

// authCommand handles authentication operations
func authCommand(r *Runner) *cli.Command {
	credentialFlags := func() []cli.Flag {
		return []cli.Flag{
			&cli.StringFlag{
				Name:     "username",
				Aliases:  []string{"u"},
				Usage:    "Account username",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "password",
				Aliases: []string{"p"},
				Usage:   "Account password",
				Sources: cli.EnvVars("JOURNEYX_PASSWORD"),
			},
		}
	}

	return &cli.Command{
		Name:  "auth",
		Usage: "Manage authentication",
		Commands: []*cli.Command{
			{
				Name:   "login",
				Usage:  "Log in and store the session locally",
				Flags:  credentialFlags(),
				Action: r.AuthLogin,
			},
			{
				Name:   "register",
				Usage:  "Create an account",
				Flags:  credentialFlags(),
				Action: r.AuthRegister,
			},
			{
				Name:   "logout",
				Usage:  "End the session and forget stored tokens",
				Action: r.AuthLogout,
			},
			{
				Name:   "status",
				Usage:  "Show the stored session",
				Action: r.AuthStatus,
			},
		},
	}
}

// journeyCommand handles journey browsing
func journeyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "journey",
		Aliases: []string{"j"},
		Usage:   "Browse journeys",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List available journeys",
				Flags:  []cli.Flag{jsonFlag(), prettyFlag()},
				Action: r.JourneyList,
			},
			{
				Name:      "show",
				Usage:     "Show a journey's chapters and mission status",
				Arguments: []cli.Argument{&cli.StringArg{Name: "journey"}},
				Flags:     []cli.Flag{jsonFlag(), prettyFlag()},
				Action:    r.JourneyShow,
			},
			{
				Name:      "export",
				Usage:     "Export a journey's progress to a file",
				Arguments: []cli.Argument{&cli.StringArg{Name: "journey"}},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "csv, md, txt or json",
						Value:   "md",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file path (default: {slug}.{format})",
					},
				},
				Action: r.JourneyExport,
			},
		},
	}
}

// missionCommand handles mission viewing, watching and delivery
func missionCommand(r *Runner) *cli.Command {
	missionArgs := func() []cli.Argument {
		return []cli.Argument{&cli.StringArg{Name: "journey"}, &cli.StringArg{Name: "mission"}}
	}

	return &cli.Command{
		Name:    "mission",
		Aliases: []string{"m"},
		Usage:   "Open, watch and deliver missions",
		Commands: []*cli.Command{
			{
				Name:      "open",
				Usage:     "Open a mission and show its content and progress",
				Arguments: missionArgs(),
				Flags:     []cli.Flag{jsonFlag(), prettyFlag()},
				Action:    r.MissionOpen,
			},
			{
				Name:      "watch",
				Usage:     "Track video progress through the local player bridge",
				Arguments: missionArgs(),
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Listen address for the player bridge (default from config)",
					},
				},
				Action: r.MissionWatch,
			},
			{
				Name:      "deliver",
				Usage:     "Claim a completed mission's reward",
				Arguments: missionArgs(),
				Flags:     []cli.Flag{jsonFlag()},
				Action:    r.MissionDeliver,
			},
			{
				Name:      "deliver-all",
				Usage:     "Claim the reward of every completed mission in a journey",
				Arguments: []cli.Argument{&cli.StringArg{Name: "journey"}},
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent deliveries",
						Value: 3,
					},
					&cli.FloatFlag{
						Name:  "rate",
						Usage: "Deliveries per second",
						Value: 5,
					},
					jsonFlag(),
				},
				Action: r.MissionDeliverAll,
			},
		},
	}
}

// orderCommand handles the checkout flow
func orderCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "order",
		Usage: "Create and pay orders",
		Commands: []*cli.Command{
			{
				Name:      "create",
				Usage:     "Create an order for a journey",
				Arguments: []cli.Argument{&cli.StringArg{Name: "journey-id"}},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "pay",
						Usage: "Pay the order right away",
					},
					jsonFlag(),
				},
				Action: r.OrderCreate,
			},
			{
				Name:      "pay",
				Usage:     "Pay an order",
				Arguments: []cli.Argument{&cli.StringArg{Name: "order-id"}},
				Flags:     []cli.Flag{jsonFlag()},
				Action:    r.OrderPay,
			},
			{
				Name:      "show",
				Usage:     "Show an order",
				Arguments: []cli.Argument{&cli.StringArg{Name: "order-id"}},
				Flags:     []cli.Flag{jsonFlag(), prettyFlag()},
				Action:    r.OrderShow,
			},
			{
				Name:  "list",
				Usage: "List your orders",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "status",
						Usage: "UNPAID, PAID or EXPIRED",
					},
					jsonFlag(),
					prettyFlag(),
				},
				Action: r.OrderList,
			},
		},
	}
}

// purchasesCommand handles purchased journeys and cross-session updates
func purchasesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "purchases",
		Usage: "Purchased journeys",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List purchased journeys",
				Flags:  []cli.Flag{jsonFlag(), prettyFlag()},
				Action: r.PurchasesList,
			},
			{
				Name:   "listen",
				Usage:  "Follow purchases made in other sessions",
				Action: r.PurchasesListen,
			},
		},
	}
}

// healthCommand checks the backend
func healthCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "health",
		Usage:  "Check backend health",
		Flags:  []cli.Flag{jsonFlag()},
		Action: r.Health,
	}
}

// tuiCommand returns the top-level TUI command for interactive journey browsing.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "tui",
		Aliases:   []string{"interactive", "ui"},
		Usage:     "Browse a journey and deliver missions interactively",
		Arguments: []cli.Argument{&cli.StringArg{Name: "journey"}},
		Action:    r.TUI,
	}
}

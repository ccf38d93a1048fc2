// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

// serveCommand runs the HTTP API.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the streaming API server",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address, overrides the configured host and port",
			},
		},
		Action: r.Serve,
	}
}

// setupCommand initializes configuration and the database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create config.toml if absent, initialize the database and run migrations",
		Flags:  []cli.Flag{configFlag()},
		Action: r.Setup,
	}
}

// bootstrapCommand creates the first admin account.
func bootstrapCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "bootstrap-admin",
		Usage: "Create an admin account, guarded by the configured admin key",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:     "key",
				Usage:    "Admin bootstrap key, must match auth.admin_key",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "name",
				Usage:    "Display name for the admin account",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "username",
				Usage:    "Username for the admin account",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "password",
				Usage:    "Password for the admin account",
				Required: true,
			},
		},
		Action: r.BootstrapAdmin,
	}
}

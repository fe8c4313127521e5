package command

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	cliconfig "github.com/transformerlab/nebula-tower/internal/cli/config"
	"github.com/transformerlab/nebula-tower/internal/cli/output"
)

// ConfigCommand returns the local configuration subcommand group.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Manage local CLI configuration and server profiles",
		Subcommands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Show the current configuration",
				Action: configShow,
			},
			{
				Name:   "path",
				Usage:  "Print the configuration file path",
				Action: configPath,
			},
			{
				Name:      "set-profile",
				Usage:     "Create or update a server profile",
				ArgsUsage: "NAME",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "server",
						Usage:    "Server address for the profile",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "token",
						Usage: "Admin token for the profile",
					},
				},
				Action: configSetProfile,
			},
			{
				Name:      "use",
				Usage:     "Switch the active profile",
				ArgsUsage: "NAME",
				Action:    configUse,
			},
			{
				Name:      "delete-profile",
				Usage:     "Remove a server profile",
				ArgsUsage: "NAME",
				Action:    configDeleteProfile,
			},
		},
	}
}

func configShow(c *cli.Context) error {
	cfg, err := cliconfig.Load(c.String("config"))
	if err != nil {
		return err
	}

	// Redact tokens before printing.
	redacted := *cfg
	redacted.Profiles = make(map[string]cliconfig.Profile, len(cfg.Profiles))
	for name, p := range cfg.Profiles {
		if p.Token != "" {
			p.Token = "********"
		}
		redacted.Profiles[name] = p
	}

	flags := ParseGlobalFlags(c)
	formatter := output.NewFormatter(output.Format(flags.Output), flags.Wide)
	return formatter.Format(os.Stdout, redacted)
}

func configPath(c *cli.Context) error {
	path := c.String("config")
	if path == "" {
		path = cliconfig.DefaultConfigPath()
	}
	fmt.Println(path)
	return nil
}

func configSetProfile(c *cli.Context) error {
	name := c.Args().First()
	if name == "" {
		return fmt.Errorf("profile name required")
	}

	path := c.String("config")
	cfg, err := cliconfig.Load(path)
	if err != nil {
		return err
	}

	cfg.Profiles[name] = cliconfig.Profile{
		Server: c.String("server"),
		Token:  c.String("token"),
	}
	if cfg.CurrentProfile == "" {
		cfg.CurrentProfile = name
	}

	if err := cliconfig.Save(cfg, path); err != nil {
		return err
	}

	fmt.Printf("Profile '%s' saved.\n", name)
	return nil
}

func configUse(c *cli.Context) error {
	name := c.Args().First()
	if name == "" {
		return fmt.Errorf("profile name required")
	}

	path := c.String("config")
	cfg, err := cliconfig.Load(path)
	if err != nil {
		return err
	}

	if _, ok := cfg.Profiles[name]; !ok {
		return fmt.Errorf("profile '%s' not found", name)
	}
	cfg.CurrentProfile = name

	if err := cliconfig.Save(cfg, path); err != nil {
		return err
	}

	fmt.Printf("Switched to profile '%s'.\n", name)
	return nil
}

func configDeleteProfile(c *cli.Context) error {
	name := c.Args().First()
	if name == "" {
		return fmt.Errorf("profile name required")
	}

	path := c.String("config")
	cfg, err := cliconfig.Load(path)
	if err != nil {
		return err
	}

	if _, ok := cfg.Profiles[name]; !ok {
		return fmt.Errorf("profile '%s' not found", name)
	}
	delete(cfg.Profiles, name)
	if cfg.CurrentProfile == name {
		cfg.CurrentProfile = ""
	}

	if err := cliconfig.Save(cfg, path); err != nil {
		return err
	}

	fmt.Printf("Profile '%s' removed.\n", name)
	return nil
}

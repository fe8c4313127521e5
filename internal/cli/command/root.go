package command

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	cliconfig "github.com/transformerlab/nebula-tower/internal/cli/config"
	"github.com/transformerlab/nebula-tower/internal/cli/connection"
	"github.com/transformerlab/nebula-tower/internal/infra/tlsroots"
)

// Build information, set via ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// App creates the CLI application.
func App() *cli.App {
	app := &cli.App{
		Name:    "tower-cli",
		Usage:   "Nebula Tower command-line management tool",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildTime),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			CACommand(),
			OrgCommand(),
			HostCommand(),
			InviteCommand(),
			EnrollCommand(),
			ConfigCommand(),
		},
	}

	return app
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "Tower server address (e.g., localhost:5080)",
			EnvVars: []string{"TOWER_SERVER"},
		},
		&cli.StringFlag{
			Name:    "token",
			Aliases: []string{"t"},
			Usage:   "Admin bearer token for authentication",
			EnvVars: []string{"TOWER_TOKEN"},
		},
		&cli.StringFlag{
			Name:    "profile",
			Aliases: []string{"p"},
			Usage:   "Configuration profile to use",
			EnvVars: []string{"TOWER_PROFILE"},
		},
		&cli.StringFlag{
			Name:  "config",
			Usage: "Path to CLI configuration file",
		},
		&cli.StringFlag{
			Name:    "cacert",
			Usage:   "Path to a CA certificate PEM for TLS server verification",
			EnvVars: []string{"TOWER_CACERT"},
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
			Value:   "table",
		},
		&cli.BoolFlag{
			Name:    "wide",
			Aliases: []string{"w"},
			Usage:   "Show wide output (more columns)",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"V"},
			Usage:   "Enable verbose output",
		},
	}
}

// GlobalFlags defines flags available to all commands.
type GlobalFlags struct {
	// Server connection
	Server  string
	Token   string
	Profile string

	// Output format
	Output string // table, json, yaml
	Wide   bool

	// Other
	Verbose bool
}

// ParseGlobalFlags extracts global flags from context.
func ParseGlobalFlags(c *cli.Context) *GlobalFlags {
	return &GlobalFlags{
		Server:  c.String("server"),
		Token:   c.String("token"),
		Profile: c.String("profile"),
		Output:  c.String("output"),
		Wide:    c.Bool("wide"),
		Verbose: c.Bool("verbose"),
	}
}

// EnsureConnected resolves the server address and admin token, preferring
// explicit flags over the selected profile, and returns the HTTP client.
func EnsureConnected(c *cli.Context) (*connection.HTTPClient, error) {
	flags := ParseGlobalFlags(c)

	cfg, err := cliconfig.Load(c.String("config"))
	if err != nil {
		return nil, err
	}

	server, token := cfg.Resolve(flags.Profile)
	if flags.Server != "" {
		server = flags.Server
	}
	if flags.Token != "" {
		token = flags.Token
	}

	var opts []connection.Option
	if caCert := c.String("cacert"); caCert != "" {
		pool := tlsroots.NewEmptyPool()
		if err := pool.AddCertFile(caCert); err != nil {
			return nil, fmt.Errorf("load ca certificate: %w", err)
		}
		opts = append(opts, connection.WithRootCAs(pool))
	}

	return connection.NewHTTPClient(server, token, opts...), nil
}

// PrintError prints an error message to stderr.
func PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
}

// truncateID truncates long IDs for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:13] + "..."
}

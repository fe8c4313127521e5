package command

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/transformerlab/nebula-tower/internal/cli/connection"
	"github.com/transformerlab/nebula-tower/internal/cli/output"
)

// OrgCommand returns the organization subcommand group.
func OrgCommand() *cli.Command {
	return &cli.Command{
		Name:    "org",
		Aliases: []string{"orgs"},
		Usage:   "Manage organizations",
		Subcommands: []*cli.Command{
			{
				Name:      "create",
				Usage:     "Create an organization and allocate its subnet",
				ArgsUsage: "NAME",
				Action:    orgCreate,
			},
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List organizations",
				Action:  orgList,
			},
			{
				Name:      "delete",
				Usage:     "Delete an organization and all of its hosts",
				ArgsUsage: "NAME",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "force",
						Aliases: []string{"f"},
						Usage:   "Skip confirmation",
					},
				},
				Action: orgDelete,
			},
		},
	}
}

type orgItem struct {
	Name      string    `json:"name"`
	Subnet    string    `json:"subnet"`
	CreatedAt time.Time `json:"created_at"`
}

func orgCreate(c *cli.Context) error {
	name := c.Args().First()
	if name == "" {
		return fmt.Errorf("organization name required")
	}

	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resp, err := client.Post(ctx, "/api/orgs", map[string]any{"name": name})
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var result orgItem
	if err := connection.ParseResponse(resp, &result); err != nil {
		return err
	}

	fmt.Printf("Organization created successfully:\n")
	fmt.Printf("  Name:   %s\n", result.Name)
	fmt.Printf("  Subnet: %s\n", result.Subnet)
	return nil
}

func orgList(c *cli.Context) error {
	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resp, err := client.Get(ctx, "/api/orgs")
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var result struct {
		Items []orgItem `json:"items"`
		Total int       `json:"total"`
	}
	if err := connection.ParseResponse(resp, &result); err != nil {
		return err
	}

	flags := ParseGlobalFlags(c)
	switch output.Format(flags.Output) {
	case output.FormatJSON, output.FormatYAML:
		formatter := output.NewFormatter(output.Format(flags.Output), flags.Wide)
		return formatter.Format(os.Stdout, result.Items)
	default:
		table := &output.Table{
			Headers: []string{"NAME", "SUBNET", "CREATED"},
		}
		for _, org := range result.Items {
			table.Rows = append(table.Rows, []string{
				org.Name,
				org.Subnet,
				org.CreatedAt.Format("2006-01-02 15:04"),
			})
		}
		if err := table.Render(os.Stdout); err != nil {
			return err
		}
		fmt.Printf("\nTotal: %d organizations\n", result.Total)
		return nil
	}
}

func orgDelete(c *cli.Context) error {
	name := c.Args().First()
	if name == "" {
		return fmt.Errorf("organization name required")
	}

	if !c.Bool("force") {
		fmt.Printf("This will delete '%s' and all of its hosts. Type '%s' to confirm: ", name, name)
		var confirm string
		fmt.Scanln(&confirm)
		if confirm != name {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resp, err := client.Delete(ctx, "/api/orgs/"+name)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	if err := connection.ParseResponse(resp, nil); err != nil {
		return err
	}

	fmt.Printf("Organization '%s' deleted.\n", name)
	return nil
}

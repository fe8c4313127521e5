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

// InviteCommand returns the invite subcommand group.
func InviteCommand() *cli.Command {
	return &cli.Command{
		Name:    "invite",
		Aliases: []string{"invites"},
		Usage:   "Manage enrollment invites",
		Subcommands: []*cli.Command{
			{
				Name:    "generate",
				Aliases: []string{"gen"},
				Usage:   "Generate an invite code for an organization",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "org",
						Usage:    "Organization the invite enrolls into",
						Required: true,
					},
					&cli.IntFlag{
						Name:    "days",
						Aliases: []string{"d"},
						Value:   7,
						Usage:   "Days until the invite expires",
					},
					&cli.IntFlag{
						Name:    "uses",
						Aliases: []string{"u"},
						Value:   1,
						Usage:   "Number of hosts the invite can enroll",
					},
				},
				Action: inviteGenerate,
			},
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List invites",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "org",
						Usage: "Filter by organization",
					},
					&cli.BoolFlag{
						Name:  "active",
						Usage: "Show only redeemable invites",
					},
				},
				Action: inviteList,
			},
			{
				Name:      "revoke",
				Usage:     "Revoke an invite code",
				ArgsUsage: "CODE",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "force",
						Aliases: []string{"f"},
						Usage:   "Skip confirmation",
					},
				},
				Action: inviteRevoke,
			},
		},
	}
}

type inviteItem struct {
	ID            string    `json:"id"`
	Code          string    `json:"code"`
	Org           string    `json:"org"`
	CreatedAt     time.Time `json:"created_at"`
	ExpiresAt     time.Time `json:"expires_at"`
	MaxUses       int       `json:"max_uses"`
	RemainingUses int       `json:"remaining_uses"`
	Status        string    `json:"status"`
}

func inviteGenerate(c *cli.Context) error {
	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	body := map[string]any{
		"org":        c.String("org"),
		"days_valid": c.Int("days"),
		"uses":       c.Int("uses"),
	}

	resp, err := client.Post(ctx, "/api/invites", body)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var result inviteItem
	if err := connection.ParseResponse(resp, &result); err != nil {
		return err
	}

	fmt.Printf("Invite generated successfully:\n")
	fmt.Printf("  Code:    %s\n", result.Code)
	fmt.Printf("  Org:     %s\n", result.Org)
	fmt.Printf("  Uses:    %d\n", result.MaxUses)
	fmt.Printf("  Expires: %s\n", result.ExpiresAt.Format("2006-01-02 15:04"))
	fmt.Printf("\n⚠️  Share the code over a trusted channel; anyone holding it can enroll.\n")
	return nil
}

func inviteList(c *cli.Context) error {
	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	path := "/api/invites"
	params := []string{}
	if org := c.String("org"); org != "" {
		params = append(params, "org="+org)
	}
	if c.Bool("active") {
		params = append(params, "active_only=true")
	}
	if len(params) > 0 {
		path += "?"
		for i, p := range params {
			if i > 0 {
				path += "&"
			}
			path += p
		}
	}

	resp, err := client.Get(ctx, path)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var result struct {
		Items []inviteItem `json:"items"`
		Total int          `json:"total"`
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
			Headers: []string{"CODE", "ORG", "STATUS", "USES LEFT", "EXPIRES"},
		}
		for _, inv := range result.Items {
			table.Rows = append(table.Rows, []string{
				truncateID(inv.Code),
				inv.Org,
				inv.Status,
				fmt.Sprintf("%d/%d", inv.RemainingUses, inv.MaxUses),
				inv.ExpiresAt.Format("2006-01-02 15:04"),
			})
		}
		if err := table.Render(os.Stdout); err != nil {
			return err
		}
		fmt.Printf("\nTotal: %d invites\n", result.Total)
		return nil
	}
}

func inviteRevoke(c *cli.Context) error {
	code := c.Args().First()
	if code == "" {
		return fmt.Errorf("invite code required")
	}

	if !c.Bool("force") {
		fmt.Printf("Are you sure you want to revoke invite '%s'? [y/N]: ", truncateID(code))
		var confirm string
		fmt.Scanln(&confirm)
		if confirm != "y" && confirm != "Y" {
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

	resp, err := client.Post(ctx, "/api/invites/revoke", map[string]any{"code": code})
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	if err := connection.ParseResponse(resp, nil); err != nil {
		return err
	}

	fmt.Printf("Invite %s revoked.\n", truncateID(code))
	return nil
}

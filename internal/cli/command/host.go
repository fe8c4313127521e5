package command

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/transformerlab/nebula-tower/internal/cli/connection"
	"github.com/transformerlab/nebula-tower/internal/cli/output"
)

// HostCommand returns the host subcommand group.
func HostCommand() *cli.Command {
	return &cli.Command{
		Name:    "host",
		Aliases: []string{"hosts"},
		Usage:   "Manage mesh hosts",
		Subcommands: []*cli.Command{
			{
				Name:      "create",
				Usage:     "Create a host and issue its certificate",
				ArgsUsage: "ORG NAME",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:    "tag",
						Aliases: []string{"g"},
						Usage:   "Group tag (repeatable)",
					},
					&cli.StringFlag{
						Name:    "public-key",
						Aliases: []string{"k"},
						Usage:   "Path to an Ed25519 public key PEM; the private key stays local",
					},
				},
				Action: hostCreate,
			},
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List hosts",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "org",
						Usage: "Filter by organization",
					},
				},
				Action: hostList,
			},
			{
				Name:      "get",
				Usage:     "Get host details",
				ArgsUsage: "ORG NAME",
				Action:    hostGet,
			},
			{
				Name:      "renew",
				Usage:     "Reissue a host certificate under the current CA",
				ArgsUsage: "ORG NAME",
				Action:    hostRenew,
			},
			{
				Name:      "delete",
				Usage:     "Delete a host",
				ArgsUsage: "ORG NAME",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "force",
						Aliases: []string{"f"},
						Usage:   "Skip confirmation",
					},
				},
				Action: hostDelete,
			},
			{
				Name:      "download",
				Usage:     "Download the host's configuration bundle",
				ArgsUsage: "ORG NAME",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "out",
						Aliases: []string{"O"},
						Usage:   "Output file path (defaults to the server-provided name)",
					},
				},
				Action: hostDownload,
			},
		},
	}
}

type hostItem struct {
	ID        string    `json:"id"`
	Org       string    `json:"org"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"created_at"`
}

func hostPath(c *cli.Context) (string, error) {
	org := c.Args().Get(0)
	name := c.Args().Get(1)
	if org == "" || name == "" {
		return "", fmt.Errorf("usage: %s ORG NAME", c.Command.Name)
	}
	return "/api/orgs/" + org + "/hosts/" + name, nil
}

func hostCreate(c *cli.Context) error {
	org := c.Args().Get(0)
	name := c.Args().Get(1)
	if org == "" || name == "" {
		return fmt.Errorf("usage: create ORG NAME")
	}

	body := map[string]any{"name": name}
	if tags := c.StringSlice("tag"); len(tags) > 0 {
		body["tags"] = tags
	}
	if keyPath := c.String("public-key"); keyPath != "" {
		pem, err := os.ReadFile(keyPath)
		if err != nil {
			return fmt.Errorf("read public key: %w", err)
		}
		body["public_key_pem"] = string(pem)
	}

	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resp, err := client.Post(ctx, "/api/orgs/"+org+"/hosts", body)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var result hostItem
	if err := connection.ParseResponse(resp, &result); err != nil {
		return err
	}

	fmt.Printf("Host created successfully:\n")
	fmt.Printf("  Name:    %s\n", result.Name)
	fmt.Printf("  Org:     %s\n", result.Org)
	fmt.Printf("  Address: %s\n", result.Address)
	if len(result.Tags) > 0 {
		fmt.Printf("  Tags:    %s\n", strings.Join(result.Tags, ", "))
	}
	fmt.Printf("\nRun 'tower-cli host download %s %s' to fetch the config bundle.\n", org, name)
	return nil
}

func hostList(c *cli.Context) error {
	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	path := "/api/hosts"
	if org := c.String("org"); org != "" {
		path = "/api/orgs/" + org + "/hosts"
	}

	resp, err := client.Get(ctx, path)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var result struct {
		Items []hostItem `json:"items"`
		Total int        `json:"total"`
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
			Headers: []string{"ORG", "NAME", "ADDRESS", "TAGS", "CREATED"},
		}
		for _, h := range result.Items {
			table.Rows = append(table.Rows, []string{
				h.Org,
				h.Name,
				h.Address,
				strings.Join(h.Tags, ","),
				h.CreatedAt.Format("2006-01-02 15:04"),
			})
		}
		if err := table.Render(os.Stdout); err != nil {
			return err
		}
		fmt.Printf("\nTotal: %d hosts\n", result.Total)
		return nil
	}
}

func hostGet(c *cli.Context) error {
	path, err := hostPath(c)
	if err != nil {
		return err
	}

	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resp, err := client.Get(ctx, path)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var result map[string]any
	if err := connection.ParseResponse(resp, &result); err != nil {
		return err
	}

	flags := ParseGlobalFlags(c)
	formatter := output.NewFormatter(output.Format(flags.Output), flags.Wide)
	return formatter.Format(os.Stdout, result)
}

func hostRenew(c *cli.Context) error {
	path, err := hostPath(c)
	if err != nil {
		return err
	}

	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resp, err := client.Post(ctx, path+"/renew", nil)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var result hostItem
	if err := connection.ParseResponse(resp, &result); err != nil {
		return err
	}

	fmt.Printf("Certificate renewed for host '%s/%s'.\n", result.Org, result.Name)
	return nil
}

func hostDelete(c *cli.Context) error {
	path, err := hostPath(c)
	if err != nil {
		return err
	}

	org := c.Args().Get(0)
	name := c.Args().Get(1)
	if !c.Bool("force") {
		fmt.Printf("Are you sure you want to delete host '%s/%s'? [y/N]: ", org, name)
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

	resp, err := client.Delete(ctx, path)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	if err := connection.ParseResponse(resp, nil); err != nil {
		return err
	}

	fmt.Printf("Host '%s/%s' deleted.\n", org, name)
	return nil
}

func hostDownload(c *cli.Context) error {
	path, err := hostPath(c)
	if err != nil {
		return err
	}

	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	spinner := output.NewSpinner(os.Stderr, "Downloading bundle...")
	spinner.Start()
	data, filename, err := client.Download(ctx, path+"/download")
	if err != nil {
		spinner.Fail("Download failed")
		return fmt.Errorf("download failed: %w", err)
	}
	spinner.Stop()

	out := c.String("out")
	if out == "" {
		out = filename
	}
	if out == "" {
		out = c.Args().Get(0) + "_" + c.Args().Get(1) + "_config.zip"
	}

	// The bundle contains a private key when the server generated the
	// keypair, so keep it owner-only.
	if err := os.WriteFile(out, data, 0600); err != nil {
		return fmt.Errorf("write bundle: %w", err)
	}

	fmt.Printf("Bundle saved to %s (%d bytes).\n", out, len(data))
	return nil
}

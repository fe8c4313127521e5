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

// CACommand returns the certificate authority subcommand group.
func CACommand() *cli.Command {
	return &cli.Command{
		Name:  "ca",
		Usage: "Manage the mesh certificate authority",
		Subcommands: []*cli.Command{
			{
				Name:   "info",
				Usage:  "Show CA certificate details",
				Action: caInfo,
			},
			{
				Name:  "create",
				Usage: "Create the mesh CA",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "name",
						Aliases: []string{"n"},
						Usage:   "CA common name",
					},
				},
				Action: caCreate,
			},
			{
				Name:  "rotate",
				Usage: "Rotate the CA keypair (invalidates all issued certificates)",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "name",
						Aliases: []string{"n"},
						Usage:   "Common name for the new CA certificate",
					},
					&cli.BoolFlag{
						Name:    "force",
						Aliases: []string{"f"},
						Usage:   "Skip confirmation",
					},
				},
				Action: caRotate,
			},
		},
	}
}

func caInfo(c *cli.Context) error {
	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resp, err := client.Get(ctx, "/api/ca")
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var result struct {
		Exists      bool      `json:"exists"`
		KeyExists   bool      `json:"key_exists"`
		Name        string    `json:"name"`
		Fingerprint string    `json:"fingerprint"`
		Curve       string    `json:"curve"`
		NotBefore   time.Time `json:"not_before"`
		NotAfter    time.Time `json:"not_after"`
	}
	if err := connection.ParseResponse(resp, &result); err != nil {
		return err
	}

	if !result.Exists {
		fmt.Println("No CA exists yet. Run 'tower-cli ca create' to create one.")
		return nil
	}

	flags := ParseGlobalFlags(c)
	formatter := output.NewFormatter(output.Format(flags.Output), flags.Wide)
	return formatter.Format(os.Stdout, result)
}

func caCreate(c *cli.Context) error {
	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	body := map[string]any{}
	if name := c.String("name"); name != "" {
		body["name"] = name
	}

	resp, err := client.Post(ctx, "/api/ca", body)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var result struct {
		Name        string    `json:"name"`
		Fingerprint string    `json:"fingerprint"`
		NotAfter    time.Time `json:"not_after"`
	}
	if err := connection.ParseResponse(resp, &result); err != nil {
		return err
	}

	fmt.Printf("CA created successfully:\n")
	fmt.Printf("  Name:        %s\n", result.Name)
	fmt.Printf("  Fingerprint: %s\n", result.Fingerprint)
	fmt.Printf("  Expires:     %s\n", result.NotAfter.Format("2006-01-02 15:04"))
	return nil
}

func caRotate(c *cli.Context) error {
	if !c.Bool("force") {
		fmt.Print("Rotating the CA invalidates every issued host certificate. Type 'rotate' to confirm: ")
		var confirm string
		fmt.Scanln(&confirm)
		if confirm != "rotate" {
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

	body := map[string]any{"confirm": true}
	if name := c.String("name"); name != "" {
		body["name"] = name
	}

	resp, err := client.Post(ctx, "/api/ca/rotate", body)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var result struct {
		OldFingerprint string `json:"old_fingerprint"`
		NewFingerprint string `json:"new_fingerprint"`
	}
	if err := connection.ParseResponse(resp, &result); err != nil {
		return err
	}

	fmt.Printf("CA rotated successfully:\n")
	fmt.Printf("  Old fingerprint: %s\n", result.OldFingerprint)
	fmt.Printf("  New fingerprint: %s\n", result.NewFingerprint)
	fmt.Printf("\nExisting host certificates no longer chain to the CA; renew each host.\n")
	return nil
}

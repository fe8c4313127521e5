package command

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/transformerlab/nebula-tower/internal/cli/connection"
	"github.com/transformerlab/nebula-tower/internal/cli/output"
)

// EnrollCommand returns the enroll command. Unlike the admin command
// groups it hits an open endpoint; no admin token is needed, only a
// valid invite code.
func EnrollCommand() *cli.Command {
	return &cli.Command{
		Name:      "enroll",
		Usage:     "Redeem an invite code and write the mesh credentials to disk",
		ArgsUsage: "CODE",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "name",
				Aliases:  []string{"n"},
				Usage:    "Host name to enroll as",
				Required: true,
			},
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
			&cli.StringFlag{
				Name:    "out-dir",
				Aliases: []string{"O"},
				Value:   ".",
				Usage:   "Directory to write config.yaml and credentials into",
			},
		},
		Action: enroll,
	}
}

func enroll(c *cli.Context) error {
	code := c.Args().First()
	if code == "" {
		return fmt.Errorf("invite code required")
	}

	body := map[string]any{
		"code": code,
		"name": c.String("name"),
	}
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

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	spinner := output.NewSpinner(os.Stderr, "Enrolling...")
	spinner.Start()
	resp, err := client.Post(ctx, "/api/enroll", body)
	if err != nil {
		spinner.Fail("Enrollment failed")
		return fmt.Errorf("request failed: %w", err)
	}
	spinner.Stop()

	var result struct {
		Org            string `json:"org"`
		Name           string `json:"name"`
		Address        string `json:"address"`
		CertificatePEM string `json:"certificate_pem"`
		PrivateKeyPEM  string `json:"private_key_pem"`
		CACertPEM      string `json:"ca_cert_pem"`
		ConfigYAML     string `json:"config_yaml"`
		RemainingUses  int    `json:"remaining_uses"`
	}
	if err := connection.ParseResponse(resp, &result); err != nil {
		return err
	}

	dir := c.String("out-dir")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	files := []struct {
		name string
		data string
		mode os.FileMode
	}{
		{"config.yaml", result.ConfigYAML, 0644},
		{"ca.crt", result.CACertPEM, 0644},
		{"host.crt", result.CertificatePEM, 0644},
	}
	if result.PrivateKeyPEM != "" {
		files = append(files, struct {
			name string
			data string
			mode os.FileMode
		}{"host.key", result.PrivateKeyPEM, 0600})
	}

	for _, f := range files {
		path := filepath.Join(dir, f.name)
		if err := os.WriteFile(path, []byte(f.data), f.mode); err != nil {
			return fmt.Errorf("write %s: %w", f.name, err)
		}
	}

	fmt.Printf("Enrolled successfully:\n")
	fmt.Printf("  Org:     %s\n", result.Org)
	fmt.Printf("  Name:    %s\n", result.Name)
	fmt.Printf("  Address: %s\n", result.Address)
	fmt.Printf("  Files:   %s\n", dir)
	if result.PrivateKeyPEM == "" {
		fmt.Printf("\nClient-held keypair: pair host.crt with your local private key.\n")
	}
	if result.RemainingUses > 0 {
		fmt.Printf("Invite has %d use(s) remaining.\n", result.RemainingUses)
	}
	return nil
}

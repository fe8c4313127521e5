package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.DefaultServer != "http://localhost:5080" {
		t.Errorf("DefaultServer = %q, want http://localhost:5080", cfg.DefaultServer)
	}
	if cfg.DefaultOutput != "table" {
		t.Errorf("DefaultOutput = %q, want table", cfg.DefaultOutput)
	}
	if cfg.Profiles == nil {
		t.Error("Profiles map should be initialized")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DefaultServer != Default().DefaultServer {
		t.Errorf("missing file should yield defaults, got server %q", cfg.DefaultServer)
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "cli.yaml")

	cfg := Default()
	cfg.DefaultOutput = "json"
	cfg.CurrentProfile = "prod"
	cfg.Profiles["prod"] = Profile{
		Server: "https://tower.example.com:5080",
		Token:  "tower-admin-token",
	}

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file mode = %o, want 0600", perm)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.DefaultOutput != "json" {
		t.Errorf("DefaultOutput = %q, want json", loaded.DefaultOutput)
	}
	if loaded.CurrentProfile != "prod" {
		t.Errorf("CurrentProfile = %q, want prod", loaded.CurrentProfile)
	}
	p, ok := loaded.Profiles["prod"]
	if !ok {
		t.Fatal("prod profile missing after round trip")
	}
	if p.Server != "https://tower.example.com:5080" || p.Token != "tower-admin-token" {
		t.Errorf("profile = %+v", p)
	}
}

func TestLoad_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cli.yaml")
	if err := os.WriteFile(path, []byte("{not yaml: ["), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load() should fail on malformed yaml")
	}
}

func TestResolve(t *testing.T) {
	cfg := Default()
	cfg.Profiles["stage"] = Profile{Server: "http://stage:5080", Token: "tok-stage"}
	cfg.CurrentProfile = "stage"

	server, token := cfg.Resolve("")
	if server != "http://stage:5080" || token != "tok-stage" {
		t.Errorf("Resolve(\"\") = %q, %q", server, token)
	}

	server, token = cfg.Resolve("missing")
	if server != cfg.DefaultServer || token != "" {
		t.Errorf("Resolve(missing) = %q, %q, want defaults", server, token)
	}
}

package mesh

import (
	"archive/zip"
	"bytes"
	"io"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/transformerlab/nebula-tower/internal/core/service"
)

func testBundler(t *testing.T) *Bundler {
	t.Helper()
	b, err := NewBundler(Config{
		LighthouseAddr: "fd42:9e1a:27cd::1",
		ExternalAddr:   "203.0.113.10",
	})
	if err != nil {
		t.Fatalf("NewBundler() error = %v", err)
	}
	return b
}

func TestNewBundler_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing lighthouse", Config{ExternalAddr: "203.0.113.10"}},
		{"ipv4 lighthouse", Config{LighthouseAddr: "10.0.0.1", ExternalAddr: "203.0.113.10"}},
		{"missing external", Config{LighthouseAddr: "fd42:9e1a:27cd::1"}},
		{"bad port", Config{LighthouseAddr: "fd42:9e1a:27cd::1", ExternalAddr: "203.0.113.10", ExternalPort: 70000}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewBundler(tt.cfg); err == nil {
				t.Error("NewBundler() succeeded, want error")
			}
		})
	}
}

func TestRenderConfig(t *testing.T) {
	b := testBundler(t)

	out, err := b.RenderConfig("acme")
	if err != nil {
		t.Fatalf("RenderConfig() error = %v", err)
	}

	var cfg map[string]any
	if err := yaml.Unmarshal(out, &cfg); err != nil {
		t.Fatalf("rendered config is not valid yaml: %v", err)
	}

	shm, ok := cfg["static_host_map"].(map[string]any)
	if !ok {
		t.Fatalf("static_host_map missing: %v", cfg)
	}
	entries, ok := shm["fd42:9e1a:27cd::1"].([]any)
	if !ok || len(entries) != 1 || entries[0] != "203.0.113.10:4242" {
		t.Errorf("static_host_map = %v, want lighthouse -> [203.0.113.10:4242]", shm)
	}

	lh, ok := cfg["lighthouse"].(map[string]any)
	if !ok {
		t.Fatal("lighthouse section missing")
	}
	if lh["am_lighthouse"] != false {
		t.Error("am_lighthouse = true, want false")
	}
	hosts, _ := lh["hosts"].([]any)
	if len(hosts) != 1 || hosts[0] != "fd42:9e1a:27cd::1" {
		t.Errorf("lighthouse.hosts = %v", hosts)
	}

	fw, ok := cfg["firewall"].(map[string]any)
	if !ok {
		t.Fatal("firewall section missing")
	}
	if fw["inbound_action"] != "drop" {
		t.Errorf("inbound_action = %v, want drop", fw["inbound_action"])
	}
	inbound, _ := fw["inbound"].([]any)
	if len(inbound) != 1 {
		t.Fatalf("inbound rules = %v, want 1", inbound)
	}
	rule, _ := inbound[0].(map[string]any)
	groups, _ := rule["groups"].([]any)
	if len(groups) != 1 || groups[0] != "org_acme" {
		t.Errorf("inbound groups = %v, want [org_acme]", groups)
	}

	pki, ok := cfg["pki"].(map[string]any)
	if !ok {
		t.Fatal("pki section missing")
	}
	for key, want := range map[string]string{"ca": "./ca.crt", "cert": "./host.crt", "key": "./host.key"} {
		if pki[key] != want {
			t.Errorf("pki.%s = %v, want %s", key, pki[key], want)
		}
	}
}

func TestRenderConfig_CustomPort(t *testing.T) {
	b, err := NewBundler(Config{
		LighthouseAddr: "fd42:9e1a:27cd::1",
		ExternalAddr:   "mesh.example.com",
		ExternalPort:   4243,
	})
	if err != nil {
		t.Fatalf("NewBundler() error = %v", err)
	}

	out, err := b.RenderConfig("acme")
	if err != nil {
		t.Fatalf("RenderConfig() error = %v", err)
	}
	if !strings.Contains(string(out), "mesh.example.com:4243") {
		t.Errorf("rendered config missing custom external endpoint:\n%s", out)
	}
}

func readZip(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("zip.NewReader() error = %v", err)
	}
	files := make(map[string]string, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open zip entry %s: %v", f.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read zip entry %s: %v", f.Name, err)
		}
		files[f.Name] = string(content)
	}
	return files
}

func TestBundle(t *testing.T) {
	b := testBundler(t)

	data, err := b.Bundle(&service.BundleInput{
		Org:         "acme",
		HostName:    "laptop",
		Address:     "fd42:9e1a:27cd:1::1",
		CACertPEM:   "CA PEM",
		HostCertPEM: "CERT PEM",
		HostKeyPEM:  "KEY PEM",
	})
	if err != nil {
		t.Fatalf("Bundle() error = %v", err)
	}

	files := readZip(t, data)
	want := []string{"config.yaml", "host.crt", "host.key", "ca.crt"}
	if len(files) != len(want) {
		t.Fatalf("bundle has %d entries, want %d: %v", len(files), len(want), files)
	}
	for _, name := range want {
		if _, ok := files[name]; !ok {
			t.Errorf("bundle missing entry %s", name)
		}
	}
	if files["host.crt"] != "CERT PEM" {
		t.Errorf("host.crt = %q", files["host.crt"])
	}
	if files["host.key"] != "KEY PEM" {
		t.Errorf("host.key = %q", files["host.key"])
	}
	if files["ca.crt"] != "CA PEM" {
		t.Errorf("ca.crt = %q", files["ca.crt"])
	}
	if !strings.Contains(files["config.yaml"], "org_acme") {
		t.Error("config.yaml does not scope the firewall to the organization group")
	}
}

func TestBundle_OmitsKeyWhenClientHeld(t *testing.T) {
	b := testBundler(t)

	data, err := b.Bundle(&service.BundleInput{
		Org:         "acme",
		HostName:    "laptop",
		CACertPEM:   "CA PEM",
		HostCertPEM: "CERT PEM",
	})
	if err != nil {
		t.Fatalf("Bundle() error = %v", err)
	}

	files := readZip(t, data)
	if _, ok := files["host.key"]; ok {
		t.Error("bundle contains host.key for a client-held keypair")
	}
	if len(files) != 3 {
		t.Errorf("bundle has %d entries, want 3", len(files))
	}
}

func TestBundle_Validation(t *testing.T) {
	b := testBundler(t)

	tests := []struct {
		name string
		in   *service.BundleInput
	}{
		{"nil input", nil},
		{"missing org", &service.BundleInput{HostName: "h", CACertPEM: "ca", HostCertPEM: "crt"}},
		{"missing cert", &service.BundleInput{Org: "acme", HostName: "h", CACertPEM: "ca"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := b.Bundle(tt.in); err == nil {
				t.Error("Bundle() succeeded, want error")
			}
		})
	}
}

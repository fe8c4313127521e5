package mesh

import (
	"fmt"
	"net/netip"

	"gopkg.in/yaml.v3"
)

// DefaultPort is the UDP port the lighthouse listens on.
const DefaultPort = 4242

// Config holds the mesh topology settings shared by every rendered
// host configuration.
type Config struct {
	// LighthouseAddr is the lighthouse's overlay IPv6 address.
	LighthouseAddr string

	// ExternalAddr is the public address peers dial the lighthouse on.
	ExternalAddr string

	// ExternalPort is the lighthouse UDP port. Zero means DefaultPort.
	ExternalPort int
}

func (c Config) validate() error {
	addr, err := netip.ParseAddr(c.LighthouseAddr)
	if err != nil {
		return fmt.Errorf("mesh: lighthouse address %q: %w", c.LighthouseAddr, err)
	}
	if !addr.Is6() {
		return fmt.Errorf("mesh: lighthouse address %q is not IPv6", c.LighthouseAddr)
	}
	if c.ExternalAddr == "" {
		return fmt.Errorf("mesh: external address is required")
	}
	if c.ExternalPort < 0 || c.ExternalPort > 65535 {
		return fmt.Errorf("mesh: external port %d out of range", c.ExternalPort)
	}
	return nil
}

func (c Config) port() int {
	if c.ExternalPort == 0 {
		return DefaultPort
	}
	return c.ExternalPort
}

// hostConfig mirrors the overlay agent's YAML configuration. Field
// order matches the file layout operators expect to read.
type hostConfig struct {
	PKI           pkiSection          `yaml:"pki"`
	StaticHostMap map[string][]string `yaml:"static_host_map"`
	Lighthouse    lighthouseSection   `yaml:"lighthouse"`
	Listen        listenSection       `yaml:"listen"`
	Punchy        punchySection       `yaml:"punchy"`
	Tun           tunSection          `yaml:"tun"`
	Firewall      firewallSection     `yaml:"firewall"`
}

type pkiSection struct {
	CA   string `yaml:"ca"`
	Cert string `yaml:"cert"`
	Key  string `yaml:"key"`
}

type lighthouseSection struct {
	AmLighthouse bool     `yaml:"am_lighthouse"`
	Interval     int      `yaml:"interval"`
	Hosts        []string `yaml:"hosts"`
}

type listenSection struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type punchySection struct {
	Punch   bool `yaml:"punch"`
	Respond bool `yaml:"respond"`
}

type tunSection struct {
	Disabled bool   `yaml:"disabled"`
	Dev      string `yaml:"dev"`
	MTU      int    `yaml:"mtu"`
}

type firewallSection struct {
	Conntrack      conntrackSection `yaml:"conntrack"`
	Inbound        []firewallRule   `yaml:"inbound"`
	InboundAction  string           `yaml:"inbound_action"`
	Outbound       []firewallRule   `yaml:"outbound"`
	OutboundAction string           `yaml:"outbound_action"`
}

type conntrackSection struct {
	DefaultTimeout string `yaml:"default_timeout"`
	TCPTimeout     string `yaml:"tcp_timeout"`
	UDPTimeout     string `yaml:"udp_timeout"`
}

type firewallRule struct {
	Host   string   `yaml:"host,omitempty"`
	Groups []string `yaml:"groups,omitempty"`
	Port   string   `yaml:"port"`
	Proto  string   `yaml:"proto"`
}

// RenderConfig renders the mesh configuration for a host belonging to
// org. Inbound traffic is limited to peers carrying the organization
// group; everything else is dropped.
func (b *Bundler) RenderConfig(org string) ([]byte, error) {
	cfg := hostConfig{
		PKI: pkiSection{
			CA:   "./ca.crt",
			Cert: "./host.crt",
			Key:  "./host.key",
		},
		StaticHostMap: map[string][]string{
			b.cfg.LighthouseAddr: {fmt.Sprintf("%s:%d", b.cfg.ExternalAddr, b.cfg.port())},
		},
		Lighthouse: lighthouseSection{
			AmLighthouse: false,
			Interval:     60,
			Hosts:        []string{b.cfg.LighthouseAddr},
		},
		Listen: listenSection{
			Host: "0.0.0.0",
			Port: 0,
		},
		Punchy: punchySection{
			Punch:   true,
			Respond: true,
		},
		Tun: tunSection{
			Disabled: false,
			Dev:      "nebula1",
			MTU:      1300,
		},
		Firewall: firewallSection{
			Conntrack: conntrackSection{
				DefaultTimeout: "10m",
				TCPTimeout:     "12m",
				UDPTimeout:     "3m",
			},
			Inbound: []firewallRule{
				{Groups: []string{"org_" + org}, Port: "any", Proto: "any"},
			},
			InboundAction: "drop",
			Outbound: []firewallRule{
				{Host: "any", Port: "any", Proto: "any"},
			},
			OutboundAction: "drop",
		},
	}

	out, err := yaml.Marshal(&cfg)
	if err != nil {
		return nil, fmt.Errorf("mesh: render config: %w", err)
	}
	return out, nil
}

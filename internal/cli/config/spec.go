package config

// CLIConfig is the configuration for tower-cli.
type CLIConfig struct {
	// DefaultServer is used when no --server flag is given.
	DefaultServer string `yaml:"default_server"`

	// DefaultOutput selects the output format: table, json, yaml.
	DefaultOutput string `yaml:"default_output"`

	// Profiles are named server connections.
	Profiles map[string]Profile `yaml:"profiles,omitempty"`

	// CurrentProfile is the active profile name, empty for none.
	CurrentProfile string `yaml:"current_profile,omitempty"`
}

// Profile stores a saved server connection.
type Profile struct {
	Server string `yaml:"server"`
	Token  string `yaml:"token,omitempty"`
}

// Default returns the default CLI configuration.
func Default() *CLIConfig {
	return &CLIConfig{
		DefaultServer: "http://localhost:5080",
		DefaultOutput: "table",
		Profiles:      make(map[string]Profile),
	}
}

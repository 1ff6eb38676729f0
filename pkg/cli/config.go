package cli

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const defaultProfile = "default"

// UserConfig is ~/.aida/config.yaml.
type UserConfig struct {
	CurrentProfile string             `yaml:"current-profile"`
	Profiles       map[string]Profile `yaml:"profiles"`
}

// Profile is one named set of connection settings.
type Profile struct {
	Host   string `yaml:"host,omitempty" json:"host,omitempty"`
	Token  string `yaml:"token,omitempty" json:"token,omitempty"`
	Output string `yaml:"output,omitempty" json:"output,omitempty"`
}

// ActiveProfile returns the override profile, or current-profile when
// override is empty. A missing current-profile yields an empty Profile;
// a missing override is an error.
func (c *UserConfig) ActiveProfile(override string) (Profile, error) {
	if override != "" {
		p, ok := c.Profiles[override]
		if !ok {
			return Profile{}, fmt.Errorf("profile %q not found", override)
		}
		return p, nil
	}
	return c.Profiles[c.currentName()], nil
}

func (c *UserConfig) currentName() string {
	if c.CurrentProfile == "" {
		return defaultProfile
	}
	return c.CurrentProfile
}

// serverURL checks a host setting taken from source (a flag, variable or
// profile) and returns it as a base URL without a trailing slash. The
// client appends the /api prefix itself.
func serverURL(raw, source string) (string, error) {
	host := strings.TrimSpace(raw)
	invalid := func(reason string) error {
		return fmt.Errorf("invalid host %q from %s: %s", raw, source, reason)
	}
	if host == "" {
		return "", invalid("set --host, AIDA_HOST or a profile host")
	}
	u, err := url.Parse(host)
	if err != nil {
		return "", invalid(err.Error())
	}
	switch {
	case u.Scheme != "http" && u.Scheme != "https":
		return "", invalid("want http://host[:port] or https://host[:port]")
	case u.Host == "":
		return "", invalid("missing server name")
	case strings.TrimSuffix(u.Path, "/") == "/api":
		return "", invalid("drop the /api suffix, requests already carry it")
	case u.Path != "" && u.Path != "/":
		return "", invalid("a path is not allowed")
	case u.RawQuery != "" || u.Fragment != "":
		return "", invalid("a query or fragment is not allowed")
	}
	return strings.TrimSuffix(host, "/"), nil
}

// loadOrNewUserConfig returns the saved config, or an empty one when none
// exists yet.
func loadOrNewUserConfig() *UserConfig {
	cfg, err := LoadUserConfig()
	if err != nil {
		return &UserConfig{CurrentProfile: defaultProfile, Profiles: map[string]Profile{}}
	}
	return cfg
}

// ConfigDir returns ~/.aida.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".aida")
}

// ConfigPath returns ~/.aida/config.yaml.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// LoadUserConfig reads ~/.aida/config.yaml.
func LoadUserConfig() (*UserConfig, error) {
	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg UserConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Profiles == nil {
		cfg.Profiles = map[string]Profile{}
	}
	return &cfg, nil
}

// SaveUserConfig writes ~/.aida/config.yaml with owner-only permissions.
func SaveUserConfig(cfg *UserConfig) error {
	if err := os.MkdirAll(ConfigDir(), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(ConfigPath(), data, 0o600)
}

// saveToken stores token in the current profile.
func saveToken(token string) error {
	cfg := loadOrNewUserConfig()
	name := cfg.currentName()
	cfg.CurrentProfile = name
	p := cfg.Profiles[name]
	p.Token = token
	cfg.Profiles[name] = p
	if err := SaveUserConfig(cfg); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	return nil
}

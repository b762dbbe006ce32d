package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Profiles holds all named collector profiles and tracks which one is active.
type Profiles struct {
	Active   string             `toml:"active"`
	Profiles map[string]Profile `toml:"profiles"`
}

// Profile is a named collector endpoint.
type Profile struct {
	CollectorURL string `toml:"collector_url"`
	Token        string `toml:"token,omitempty"`
	NATSURL      string `toml:"nats_url,omitempty"`
}

func stateDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".local", "state", "relayq")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return dir, nil
}

// ProfilePath returns the location of the TOML profile file.
func ProfilePath() (string, error) {
	dir, err := stateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "relayq.toml"), nil
}

func defaultDBPath() string {
	dir, err := stateDir()
	if err != nil {
		return "relayq.db"
	}
	return filepath.Join(dir, "relayq.db")
}

// LoadProfiles reads the profile file. A missing file yields an empty set.
func LoadProfiles() (Profiles, error) {
	path, err := ProfilePath()
	if err != nil {
		return Profiles{}, err
	}
	var cfg Profiles
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if os.IsNotExist(err) {
			return Profiles{Profiles: map[string]Profile{}}, nil
		}
		return Profiles{}, err
	}
	if cfg.Profiles == nil {
		cfg.Profiles = map[string]Profile{}
	}
	return cfg, nil
}

// SaveProfiles writes the profile file with owner-only permissions.
func SaveProfiles(cfg Profiles) error {
	path, err := ProfilePath()
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}

// loadActiveProfile resolves the active profile, or a zero Profile when no
// profile file exists or none is active.
func loadActiveProfile() (Profile, error) {
	cfg, err := LoadProfiles()
	if err != nil {
		return Profile{}, err
	}
	if cfg.Active == "" {
		return Profile{}, nil
	}
	p, ok := cfg.Profiles[cfg.Active]
	if !ok {
		return Profile{}, nil
	}
	return p, nil
}

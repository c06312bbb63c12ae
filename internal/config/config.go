// Package config manages connection profiles: named host/key pairs in a
// TOML file under the user's home directory, overridable through
// ELABCTL_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/BurntSushi/toml"
)

// DefaultProfile is used when no --profile flag is given.
const DefaultProfile = "default"

// Profile is one set of connection settings.
type Profile struct {
	HostURL   string `toml:"host_url"`
	APIKey    string `toml:"api_key"`
	VerifySSL bool   `toml:"verify_ssl"`
	Debug     bool   `toml:"debug,omitempty"`
}

// File is a named collection of profiles.
type File struct {
	Profiles map[string]Profile
}

// DefaultPath returns the profile file location,
// ~/.config/elabctl/profiles.toml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", "elabctl", "profiles.toml")
	}
	return filepath.Join(home, ".config", "elabctl", "profiles.toml")
}

// Load reads the profile file. A missing file yields an empty File so a
// fresh install can configure its first profile.
func Load(path string) (*File, error) {
	f := &File{Profiles: make(map[string]Profile)}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return f, nil
		}
		return nil, err
	}
	if err := toml.Unmarshal(data, &f.Profiles); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return f, nil
}

// Save writes the profiles back. The file holds API keys, so it is
// created user-readable only.
func (f *File) Save(path string) error {
	data, err := toml.Marshal(f.Profiles)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Names returns the profile names, sorted.
func (f *File) Names() []string {
	names := make([]string, 0, len(f.Profiles))
	for name := range f.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns a profile by name.
func (f *File) Get(name string) (Profile, bool) {
	p, ok := f.Profiles[name]
	return p, ok
}

// Set stores a profile under a name.
func (f *File) Set(name string, p Profile) {
	f.Profiles[name] = p
}

// Delete removes a profile. It reports whether the name existed.
func (f *File) Delete(name string) bool {
	if _, ok := f.Profiles[name]; !ok {
		return false
	}
	delete(f.Profiles, name)
	return true
}

// Resolve produces the effective profile: the named entry from the file
// with ELABCTL_HOST_URL, ELABCTL_API_KEY and ELABCTL_VERIFY_SSL applied
// on top. The environment alone is enough to run without a file.
func Resolve(path, name string) (Profile, error) {
	f, err := Load(path)
	if err != nil {
		return Profile{}, err
	}
	profile, found := f.Get(name)
	if !found {
		profile = Profile{VerifySSL: true}
	}
	if host := os.Getenv("ELABCTL_HOST_URL"); host != "" {
		profile.HostURL = host
	}
	if key := os.Getenv("ELABCTL_API_KEY"); key != "" {
		profile.APIKey = key
	}
	if verify := os.Getenv("ELABCTL_VERIFY_SSL"); verify != "" {
		parsed, err := strconv.ParseBool(verify)
		if err != nil {
			return Profile{}, fmt.Errorf("ELABCTL_VERIFY_SSL: %q is not a boolean", verify)
		}
		profile.VerifySSL = parsed
	}
	if profile.HostURL == "" {
		if !found {
			return Profile{}, fmt.Errorf(
				"profile %q not found in %s and ELABCTL_HOST_URL is not set", name, path)
		}
		return Profile{}, fmt.Errorf("profile %q has no host_url", name)
	}
	if profile.APIKey == "" {
		return Profile{}, fmt.Errorf("profile %q has no api_key and ELABCTL_API_KEY is not set", name)
	}
	return profile, nil
}

package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.toml")

	f := &File{Profiles: map[string]Profile{
		"default": {HostURL: "https://elab.example.org/api/v2", APIKey: "k1", VerifySSL: true},
		"staging": {HostURL: "https://staging.example.org/api/v2", APIKey: "k2"},
	}}
	if err := f.Save(path); err != nil {
		t.Fatalf("Save(): %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("config file mode = %v, want 0600", info.Mode().Perm())
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load(): %v", err)
	}
	if !reflect.DeepEqual(loaded.Profiles, f.Profiles) {
		t.Errorf("round trip changed profiles:\n%v\nvs\n%v", loaded.Profiles, f.Profiles)
	}
	if got := loaded.Names(); !reflect.DeepEqual(got, []string{"default", "staging"}) {
		t.Errorf("Names() = %v", got)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	f, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load() on missing file: %v", err)
	}
	if len(f.Profiles) != 0 {
		t.Errorf("expected empty profiles, got %v", f.Profiles)
	}
}

func TestResolve_EnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.toml")
	f := &File{Profiles: map[string]Profile{
		"default": {HostURL: "https://file.example.org", APIKey: "file-key", VerifySSL: true},
	}}
	if err := f.Save(path); err != nil {
		t.Fatalf("Save(): %v", err)
	}

	t.Setenv("ELABCTL_HOST_URL", "https://env.example.org")
	t.Setenv("ELABCTL_API_KEY", "env-key")
	t.Setenv("ELABCTL_VERIFY_SSL", "false")

	profile, err := Resolve(path, "default")
	if err != nil {
		t.Fatalf("Resolve(): %v", err)
	}
	if profile.HostURL != "https://env.example.org" || profile.APIKey != "env-key" || profile.VerifySSL {
		t.Errorf("env overrides not applied: %+v", profile)
	}
}

func TestResolve_EnvOnly(t *testing.T) {
	t.Setenv("ELABCTL_HOST_URL", "https://env.example.org")
	t.Setenv("ELABCTL_API_KEY", "env-key")

	profile, err := Resolve(filepath.Join(t.TempDir(), "nope.toml"), "default")
	if err != nil {
		t.Fatalf("Resolve() from env alone: %v", err)
	}
	if profile.HostURL != "https://env.example.org" {
		t.Errorf("profile = %+v", profile)
	}
}

func TestResolve_MissingKey(t *testing.T) {
	t.Setenv("ELABCTL_HOST_URL", "")
	t.Setenv("ELABCTL_API_KEY", "")

	path := filepath.Join(t.TempDir(), "profiles.toml")
	f := &File{Profiles: map[string]Profile{
		"default": {HostURL: "https://elab.example.org"},
	}}
	if err := f.Save(path); err != nil {
		t.Fatalf("Save(): %v", err)
	}
	if _, err := Resolve(path, "default"); err == nil {
		t.Error("expected error for profile without api_key")
	}
	if _, err := Resolve(path, "other"); err == nil {
		t.Error("expected error for unknown profile")
	}
}

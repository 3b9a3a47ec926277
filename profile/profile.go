package profile

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Profile holds the account settings for one storage account.
type Profile struct {
	Name        string `yaml:"name"`
	Backend     string `yaml:"backend,omitempty"`
	AccountName string `yaml:"account_name,omitempty"`
	AccountKey  string `yaml:"account_key,omitempty"`
	Endpoint    string `yaml:"endpoint,omitempty"`
	Container   string `yaml:"container,omitempty"`
	Default     bool   `yaml:"default,omitempty"`
}

// File holds the full profile file with multiple profiles.
type File struct {
	Profiles []Profile `yaml:"profiles"`
}

// GetProfile returns the profile by name.
// If name is empty, returns the default profile.
func (f *File) GetProfile(name string) (*Profile, error) {
	if len(f.Profiles) == 0 {
		return nil, ErrNoProfiles
	}

	if name == "" {
		return f.GetDefaultProfile()
	}

	for i := range f.Profiles {
		if f.Profiles[i].Name == name {
			return &f.Profiles[i], nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, name)
}

// GetDefaultProfile returns the profile marked as default, or the first one.
func (f *File) GetDefaultProfile() (*Profile, error) {
	if len(f.Profiles) == 0 {
		return nil, ErrNoProfiles
	}

	for i := range f.Profiles {
		if f.Profiles[i].Default {
			return &f.Profiles[i], nil
		}
	}

	return &f.Profiles[0], nil
}

// DefaultName returns the name of the default profile, or "" when there are none.
func (f *File) DefaultName() string {
	p, err := f.GetDefaultProfile()
	if err != nil {
		return ""
	}
	return p.Name
}

// AddProfile adds a new profile. Returns ErrProfileExists if a profile
// with the same name already exists.
func (f *File) AddProfile(p Profile) error {
	for i := range f.Profiles {
		if f.Profiles[i].Name == p.Name {
			return fmt.Errorf("%w: %s", ErrProfileExists, p.Name)
		}
	}
	f.Profiles = append(f.Profiles, p)
	return nil
}

// UpdateProfile replaces an existing profile.
func (f *File) UpdateProfile(p Profile) error {
	for i := range f.Profiles {
		if f.Profiles[i].Name == p.Name {
			f.Profiles[i] = p
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrProfileNotFound, p.Name)
}

// RemoveProfile removes a profile by name.
func (f *File) RemoveProfile(name string) error {
	for i := range f.Profiles {
		if f.Profiles[i].Name == name {
			f.Profiles = append(f.Profiles[:i], f.Profiles[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrProfileNotFound, name)
}

// SetDefault marks one profile as default and clears the flag on the rest.
func (f *File) SetDefault(name string) error {
	found := false
	for i := range f.Profiles {
		if f.Profiles[i].Name == name {
			f.Profiles[i].Default = true
			found = true
		} else {
			f.Profiles[i].Default = false
		}
	}

	if !found {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}
	return nil
}

// Names returns all profile names in file order.
func (f *File) Names() []string {
	names := make([]string, len(f.Profiles))
	for i := range f.Profiles {
		names[i] = f.Profiles[i].Name
	}
	return names
}

// Save writes the file to path, creating the parent directory if needed.
// The file holds account keys, so it is written owner-only.
func (f *File) Save(path string) error {
	cleanPath := filepath.Clean(path)

	if err := os.MkdirAll(filepath.Dir(cleanPath), 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal profiles: %w", err)
	}

	if err := os.WriteFile(cleanPath, data, 0o600); err != nil {
		return fmt.Errorf("write profile file: %w", err)
	}

	return nil
}

// Load reads the profile file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(filepath.Clean(path)) //#nosec G304 -- path is user-provided config file
	if err != nil {
		return nil, fmt.Errorf("read profile file: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse profile file: %w", err)
	}

	return &f, nil
}

// DefaultPath returns ~/.blobstart/config.yaml, or "" if the home directory
// cannot be determined.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".blobstart", "config.yaml")
}

// PathFromEnv returns the profile file path from BLOBSTART_PROFILES.
func PathFromEnv() string {
	return os.Getenv("BLOBSTART_PROFILES")
}

// NameFromEnv returns the profile name from BLOBSTART_PROFILE.
func NameFromEnv() string {
	return os.Getenv("BLOBSTART_PROFILE")
}

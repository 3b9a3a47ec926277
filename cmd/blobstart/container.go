package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/sagarc03/blobstart"
	"github.com/sagarc03/blobstart/azure"
	"github.com/sagarc03/blobstart/config"
	"github.com/sagarc03/blobstart/filesystem"
	"github.com/sagarc03/blobstart/profile"
	"github.com/sagarc03/blobstart/s3"
)

// newContainer builds the Container for the configured backend.
func newContainer(cfg *config.Config) (blobstart.Container, error) {
	backend, err := blobstart.ParseBackend(cfg.Storage.Backend)
	if err != nil {
		return nil, err
	}

	name := cfg.Session.Container
	st := cfg.Storage

	switch backend {
	case blobstart.BackendAzure:
		return azure.New(azure.Config{
			AccountName:      st.Account,
			AccountKey:       st.Key,
			Endpoint:         st.Endpoint,
			ConnectionString: st.ConnectionString,
		}, name)
	case blobstart.BackendS3:
		return s3.New(s3.Config{
			Endpoint:  st.Endpoint,
			AccessKey: st.Account,
			SecretKey: st.Key,
			Region:    st.Region,
			Secure:    st.Secure,
		}, name)
	case blobstart.BackendFilesystem:
		return filesystem.New(st.Path, name)
	default:
		return nil, fmt.Errorf("%w: unsupported backend %s", blobstart.ErrInvalidInput, backend)
	}
}

// profilePath returns BLOBSTART_PROFILES or ~/.blobstart/config.yaml.
func profilePath() string {
	if p := profile.PathFromEnv(); p != "" {
		return p
	}
	return profile.DefaultPath()
}

// selectProfile returns the requested profile, or the default one when none
// is requested. A missing profile file is only an error when a profile was
// asked for by name.
func selectProfile() (*profile.Profile, error) {
	name := profileName
	if name == "" {
		name = profile.NameFromEnv()
	}

	path := profilePath()
	if path == "" {
		if name != "" {
			return nil, fmt.Errorf("profile %q requested but no profile file path is available", name)
		}
		return nil, nil
	}

	f, err := profile.Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && name == "" {
			return nil, nil
		}
		return nil, fmt.Errorf("load profiles: %w", err)
	}

	p, err := f.GetProfile(name)
	if err != nil {
		if errors.Is(err, profile.ErrNoProfiles) && name == "" {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sagarc03/blobstart"
	"github.com/sagarc03/blobstart/profile"
)

const (
	DefaultContainer    = "mycontainer"
	DefaultBlob         = "myblob"
	DefaultDownloadFile = "downloadedFile.txt"
	DefaultDownloadDir  = "download"

	// SampleContent is written to the generated sample file when no source
	// path is given.
	SampleContent = "Hello Azure Storage blob quickstart."

	// downloadedPrefix is prepended to the source base name to form the
	// download file name.
	downloadedPrefix = "downloaded."
)

// configKey is the context key for storing the loaded configuration.
type configKey struct{}

// WithContext returns a new context with the config stored.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// FromContext retrieves the config from context.
// Returns an error if config is not found.
func FromContext(ctx context.Context) (*Config, error) {
	cfg, ok := ctx.Value(configKey{}).(*Config)
	if !ok || cfg == nil {
		return nil, errors.New("config not found in context")
	}
	return cfg, nil
}

// Config is the session configuration. It is not mutated after Load returns.
type Config struct {
	Storage  StorageConfig  `mapstructure:"storage"`
	Session  SessionConfig  `mapstructure:"session"`
	Transfer TransferConfig `mapstructure:"transfer"`
	Log      LogConfig      `mapstructure:"log"`
}

// StorageConfig selects the backend and holds its credentials.
// Credentials are deliberately not validated; a missing key surfaces as an
// authentication error on the first request.
type StorageConfig struct {
	Backend          string `mapstructure:"backend" validate:"required,oneof=azure s3 filesystem"`
	Account          string `mapstructure:"account"`
	Key              string `mapstructure:"key"`
	Endpoint         string `mapstructure:"endpoint" validate:"required_if=Backend s3"`
	ConnectionString string `mapstructure:"connection_string"`
	Region           string `mapstructure:"region"`
	Secure           bool   `mapstructure:"secure"`
	Path             string `mapstructure:"path" validate:"required_if=Backend filesystem"`
}

// SessionConfig names the container, the blob and the local paths used by
// the command loop.
type SessionConfig struct {
	Container    string `mapstructure:"container" validate:"required,containername"`
	Blob         string `mapstructure:"blob" validate:"required,blobname"`
	Source       string `mapstructure:"source"`
	DownloadFile string `mapstructure:"download_file" validate:"required"`
	DownloadDir  string `mapstructure:"download_dir" validate:"required"`

	// Sample is set when Source is a generated temp file owned by the session.
	Sample bool `mapstructure:"-"`
}

// TransferConfig bounds the download fan-out of the Get command.
type TransferConfig struct {
	Concurrency int `mapstructure:"concurrency" validate:"min=1,max=64"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=text json"`
}

// LoadOptions lists the configuration sources for Load.
type LoadOptions struct {
	// ConfigFiles are merged left to right. When empty, ./blobstart.yaml is
	// read if present.
	ConfigFiles []string
	// Flags is the cobra flag set; only flags that were explicitly set are bound.
	Flags *pflag.FlagSet
	// Profile, when set, overrides the defaults but nothing else.
	Profile *profile.Profile
	// Args are the positional arguments: [source] [container] [extra].
	// Anything past the third is ignored.
	Args []string
}

// flagToViperKey maps CLI flag names to viper configuration keys.
var flagToViperKey = map[string]string{
	"backend":       "storage.backend",
	"account":       "storage.account",
	"account-key":   "storage.key",
	"endpoint":      "storage.endpoint",
	"region":        "storage.region",
	"secure":        "storage.secure",
	"storage-path":  "storage.path",
	"container":     "session.container",
	"blob":          "session.blob",
	"source":        "session.source",
	"download-file": "session.download_file",
	"download-dir":  "session.download_dir",
	"concurrency":   "transfer.concurrency",
	"log-level":     "log.level",
	"log-format":    "log.format",
}

// bindFlags binds CLI flags to viper keys with custom name mapping.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		viperKey, ok := flagToViperKey[f.Name]
		if !ok {
			return
		}

		// Only bind if the flag was explicitly set
		if f.Changed {
			_ = v.BindPFlag(viperKey, f)
		}
	})
}

// setDefaults configures default values on the viper instance. Every key gets
// a default so AutomaticEnv can see it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("storage.backend", string(blobstart.BackendAzure))
	v.SetDefault("storage.account", "")
	v.SetDefault("storage.key", "")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.connection_string", "")
	v.SetDefault("storage.region", "")
	v.SetDefault("storage.secure", true)
	v.SetDefault("storage.path", "./data")

	v.SetDefault("session.container", DefaultContainer)
	v.SetDefault("session.blob", DefaultBlob)
	v.SetDefault("session.source", "")
	v.SetDefault("session.download_file", DefaultDownloadFile)
	v.SetDefault("session.download_dir", DefaultDownloadDir)

	v.SetDefault("transfer.concurrency", 1)

	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "text")
}

// applyProfile layers a saved profile over the defaults.
func applyProfile(v *viper.Viper, p *profile.Profile) {
	if p == nil {
		return
	}

	set := func(key, value string) {
		if value != "" {
			v.SetDefault(key, value)
		}
	}
	set("storage.backend", p.Backend)
	set("storage.account", p.AccountName)
	set("storage.key", p.AccountKey)
	set("storage.endpoint", p.Endpoint)
	set("session.container", p.Container)

	// Filesystem profiles keep their root directory in the endpoint field.
	if p.Backend == string(blobstart.BackendFilesystem) {
		set("storage.path", p.Endpoint)
	}
}

// bindEnv maps the well-known Azure variables next to the BLOBSTART_ ones.
// The BLOBSTART_ name wins when both are set.
func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("BLOBSTART")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("storage.account", "BLOBSTART_STORAGE_ACCOUNT", "AZURE_STORAGE_ACCOUNT")
	_ = v.BindEnv("storage.key", "BLOBSTART_STORAGE_KEY", "AZURE_STORAGE_ACCESS_KEY")
	_ = v.BindEnv("storage.connection_string", "BLOBSTART_STORAGE_CONNECTION_STRING", "AZURE_STORAGE_CONNECTION_STRING")
}

func readConfigFiles(v *viper.Viper, configFiles []string) {
	if len(configFiles) == 0 {
		v.SetConfigName("blobstart")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		if err := v.ReadInConfig(); err != nil {
			var configNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configNotFound) {
				slog.Warn("error reading config file", "err", err)
			}
		}
		return
	}

	v.SetConfigFile(configFiles[0])
	if err := v.ReadInConfig(); err != nil {
		slog.Warn("error reading config file", "file", configFiles[0], "err", err)
	}

	for _, cf := range configFiles[1:] {
		v.SetConfigFile(cf)
		if err := v.MergeInConfig(); err != nil {
			slog.Warn("error merging config file", "file", cf, "err", err)
		}
	}
}

// Load reads configuration and returns a validated Config.
// Order of precedence (highest to lowest):
// positional args > flags > env > config files > profile > defaults.
//
// A source set without positional arguments also names the blob and the
// download file unless those are configured too.
//
// When no source path is configured, Load creates the sample file; that
// failure is returned as a startup error.
func Load(opts LoadOptions) (*Config, error) {
	v := viper.New()

	setDefaults(v)
	applyProfile(v, opts.Profile)
	readConfigFiles(v, opts.ConfigFiles)
	bindEnv(v)

	if opts.Flags != nil {
		bindFlags(v, opts.Flags)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(opts.Args) > 0 {
		cfg.Session.ApplyArgs(opts.Args)
	} else if cfg.Session.Source != "" {
		cfg.Session.applySource()
	}

	if err := newValidator().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	if err := cfg.Session.EnsureSource(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func newValidator() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())
	_ = validate.RegisterValidation("blobname", func(fl validator.FieldLevel) bool {
		return blobstart.IsValidBlobName(fl.Field().String())
	})
	_ = validate.RegisterValidation("containername", func(fl validator.FieldLevel) bool {
		return blobstart.IsValidContainerName(fl.Field().String())
	})
	return validate
}

// ApplyArgs overlays the positional arguments on the session settings.
//
// With a source argument the blob name and download file are derived from its
// base name. The container argument is only honoured when more than two
// arguments are given; with exactly two it is ignored. Arguments past the
// third are ignored. Use --container to override the container name.
func (s *SessionConfig) ApplyArgs(args []string) {
	if len(args) > 0 {
		s.Source = args[0]
		base := sourceBase(args[0])
		if base == "" {
			s.Blob = DefaultBlob
			s.DownloadFile = DefaultDownloadFile
		} else {
			s.Blob = base
			s.DownloadFile = downloadedPrefix + base
		}
	}
	if len(args) > 2 {
		s.Container = args[1]
	}
}

// applySource derives the names from a source set by flag, environment or
// config file. Names that were configured explicitly are kept.
func (s *SessionConfig) applySource() {
	base := sourceBase(s.Source)
	if base == "" {
		return
	}
	if s.Blob == DefaultBlob {
		s.Blob = base
	}
	if s.DownloadFile == DefaultDownloadFile {
		s.DownloadFile = downloadedPrefix + base
	}
}

// sourceBase returns the last element of the absolute source path, so "."
// names the working directory. It is empty for a filesystem root.
func sourceBase(source string) string {
	p := source
	if abs, err := filepath.Abs(source); err == nil {
		p = abs
	}

	base := filepath.Base(p)
	if base == "." || base == ".." || base == string(filepath.Separator) {
		return ""
	}
	return base
}

// EnsureSource creates the sample file when no source is configured and
// marks the session as owning it.
func (s *SessionConfig) EnsureSource() error {
	if s.Source != "" {
		return nil
	}

	path, err := CreateSampleFile()
	if err != nil {
		return err
	}
	s.Source = path
	s.Sample = true
	return nil
}

// CreateSampleFile writes SampleContent to a new temp file and returns its path.
func CreateSampleFile() (string, error) {
	f, err := os.CreateTemp("", "sampleFile*.txt")
	if err != nil {
		return "", fmt.Errorf("create sample file: %w", err)
	}

	if _, err := f.WriteString(SampleContent); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("write sample file: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("close sample file: %w", err)
	}

	return f.Name(), nil
}

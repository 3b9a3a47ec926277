package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sagarc03/blobstart/config"
	"github.com/sagarc03/blobstart/session"
)

var version = "dev"

var (
	cfgFiles    []string
	profileName string
	jsonOutput  bool
)

var rootCmd = &cobra.Command{
	Use:     "blobstart [source] [container] [extra]",
	Version: version,
	Short:   "Interactive blob storage quickstart",
	Long: `blobstart uploads, lists, downloads and deletes blobs in a single
container from an interactive prompt.

With no arguments a sample file is generated and uploaded as the source.
With a source path, the path is uploaded (directories recursively) and its
base name becomes the blob name. The container argument is only honoured
when three or more arguments are given; use --container otherwise.
Arguments past the third are ignored.

Commands at the prompt:
  U  upload the source
  L  list blobs in the container
  G  download every blob to <download-dir>/<container>
  D  delete the configured blob
  E  clean up and exit

Azure credentials are read from AZURE_STORAGE_ACCOUNT and
AZURE_STORAGE_ACCESS_KEY (or AZURE_STORAGE_CONNECTION_STRING).`,
	Args:          cobra.ArbitraryArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		level, _ := cmd.Flags().GetString("log-level")
		format, _ := cmd.Flags().GetString("log-format")
		setupLogging(config.LogConfig{Level: level, Format: format})
		return nil
	},
	RunE: runSession,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringSliceVarP(&cfgFiles, "config", "c", nil, "config file, may be repeated (default: ./blobstart.yaml)")
	flags.StringVarP(&profileName, "profile", "p", "", "profile name (env: BLOBSTART_PROFILE)")
	flags.String("log-level", "warn", "log level: debug, info, warn, error (env: BLOBSTART_LOG_LEVEL)")
	flags.String("log-format", "text", "log format: text, json (env: BLOBSTART_LOG_FORMAT)")

	local := rootCmd.Flags()
	local.String("backend", "", "storage backend: azure, s3, filesystem (default: azure)")
	local.String("account", "", "storage account or access key id (env: AZURE_STORAGE_ACCOUNT)")
	local.String("account-key", "", "storage account key or secret key (env: AZURE_STORAGE_ACCESS_KEY)")
	local.String("endpoint", "", "service endpoint (default: https://<account>.blob.core.windows.net)")
	local.String("region", "", "s3 region (default: us-east-1)")
	local.Bool("secure", true, "use https for s3 endpoints without a scheme")
	local.String("storage-path", "", "root directory for the filesystem backend (default: ./data)")
	local.String("container", "", "container name (default: mycontainer)")
	local.String("blob", "", "blob name targeted by delete (default: myblob)")
	local.String("source", "", "file or directory to upload (default: generated sample file)")
	local.String("download-file", "", "local file removed on exit (default: downloadedFile.txt)")
	local.String("download-dir", "", "download root directory (default: download)")
	local.Int("concurrency", 1, "parallel downloads for the get command")
	local.BoolVar(&jsonOutput, "json", false, "output as JSON lines")

	rootCmd.AddCommand(configureCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func runSession(cmd *cobra.Command, args []string) error {
	p, err := selectProfile()
	if err != nil {
		return err
	}

	cfg, err := config.Load(config.LoadOptions{
		ConfigFiles: cfgFiles,
		Flags:       cmd.Flags(),
		Profile:     p,
		Args:        args,
	})
	if err != nil {
		return err
	}
	setupLogging(cfg.Log)

	ctx := config.WithContext(cmd.Context(), cfg)
	formatter := session.NewFormatter(jsonOutput)

	if cfg.Session.Sample {
		if err := formatter.SampleCreated(cmd.OutOrStdout(), cfg.Session.Source); err != nil {
			return err
		}
	}

	s, err := newSession(ctx, formatter, cmd)
	if err != nil {
		if cfg.Session.Sample {
			_ = os.Remove(cfg.Session.Source)
		}
		return err
	}

	err = s.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func newSession(ctx context.Context, formatter session.Formatter, cmd *cobra.Command) (*session.Session, error) {
	cfg, err := config.FromContext(ctx)
	if err != nil {
		return nil, err
	}

	c, err := newContainer(cfg)
	if err != nil {
		return nil, err
	}

	return session.New(cfg, c,
		session.WithInput(cmd.InOrStdin()),
		session.WithOutput(cmd.OutOrStdout(), cmd.ErrOrStderr()),
		session.WithFormatter(formatter),
	)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/sagarc03/blobstart"
	"github.com/sagarc03/blobstart/config"
	"github.com/sagarc03/blobstart/profile"
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Manage storage account profiles",
	Long: `Manage storage account profiles in the profile file.

Profiles save the backend, account and container settings for several
storage accounts. Pick one with --profile or BLOBSTART_PROFILE; values from
the config file, environment and flags still override the profile.

Profiles are stored in ~/.blobstart/config.yaml (env: BLOBSTART_PROFILES).`,
}

var configureListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all configured profiles",
	Long: `List all profiles in the profile file.

The default profile is marked with an asterisk (*).`,
	Args: cobra.NoArgs,
	RunE: runConfigureList,
}

var configureAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a new profile",
	Long: `Add a new profile interactively.

You will be prompted for:
  - Backend
  - Account name (access key id for s3)
  - Account key (secret key for s3)
  - Endpoint
  - Container
  - Whether to set as default

The container is checked before saving.`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigureAdd,
}

var configureRemoveCmd = &cobra.Command{
	Use:     "remove <name>",
	Aliases: []string{"rm"},
	Short:   "Remove a profile",
	Args:    cobra.ExactArgs(1),
	RunE:    runConfigureRemove,
}

var configureSetDefaultCmd = &cobra.Command{
	Use:   "set-default <name>",
	Short: "Set the default profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigureSetDefault,
}

var configureShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Show profile details",
	Long: `Show details for a profile.

If no name is provided, shows the default profile.
Account keys are hidden by default; use --show-secrets to reveal them.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfigureShow,
}

var showSecrets bool

func init() {
	configureCmd.AddCommand(configureListCmd)
	configureCmd.AddCommand(configureAddCmd)
	configureCmd.AddCommand(configureRemoveCmd)
	configureCmd.AddCommand(configureSetDefaultCmd)
	configureCmd.AddCommand(configureShowCmd)

	configureShowCmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "show account keys")
	configureListCmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "show account keys")
}

func runConfigureList(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()

	f, err := profile.Load(profilePath())
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load profiles: %w", err)
	}

	if f == nil || len(f.Profiles) == 0 {
		fmt.Fprintln(out, "No profiles configured.")
		fmt.Fprintln(out, "Run 'blobstart configure add <name>' to create one.")
		return nil
	}

	return profile.WriteList(out, f.Profiles, f.DefaultName(), showSecrets)
}

func runConfigureAdd(cmd *cobra.Command, args []string) error {
	name := args[0]
	path := profilePath()
	out := cmd.OutOrStdout()

	f, err := profile.Load(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load profiles: %w", err)
		}
		f = &profile.File{}
	}

	existing, _ := f.GetProfile(name)
	if existing != nil {
		prompt := promptui.Prompt{
			Label:     fmt.Sprintf("Profile '%s' already exists. Update it", name),
			IsConfirm: true,
		}
		if _, promptErr := prompt.Run(); promptErr != nil {
			fmt.Fprintln(out, "Cancelled.")
			return nil //nolint:nilerr // User cancelled, not an error
		}
	}

	backendSelect := promptui.Select{
		Label: "Backend",
		Items: []string{string(blobstart.BackendAzure), string(blobstart.BackendS3), string(blobstart.BackendFilesystem)},
	}
	_, backend, err := backendSelect.Run()
	if err != nil {
		return handlePromptError(err)
	}

	accountPrompt := promptui.Prompt{
		Label: "Account Name",
	}
	if blobstart.Backend(backend) == blobstart.BackendS3 {
		accountPrompt.Label = "Access Key"
	}
	account, err := accountPrompt.Run()
	if err != nil {
		return handlePromptError(err)
	}

	keyPrompt := promptui.Prompt{
		Label: "Account Key",
		Mask:  '*',
	}
	if blobstart.Backend(backend) == blobstart.BackendS3 {
		keyPrompt.Label = "Secret Key"
	}
	key, err := keyPrompt.Run()
	if err != nil {
		return handlePromptError(err)
	}

	endpointPrompt := promptui.Prompt{
		Label:    "Endpoint (empty for default)",
		Validate: validateEndpoint(blobstart.Backend(backend)),
	}
	endpoint, err := endpointPrompt.Run()
	if err != nil {
		return handlePromptError(err)
	}

	containerPrompt := promptui.Prompt{
		Label:   "Container",
		Default: config.DefaultContainer,
		Validate: func(input string) error {
			if !blobstart.IsValidContainerName(input) {
				return errors.New("3-63 lowercase letters, digits or single hyphens")
			}
			return nil
		},
	}
	containerName, err := containerPrompt.Run()
	if err != nil {
		return handlePromptError(err)
	}

	setAsDefault := false
	if len(f.Profiles) == 0 {
		setAsDefault = true // First profile is always default
	} else {
		defaultPrompt := promptui.Prompt{
			Label:     "Set as default profile",
			IsConfirm: true,
		}
		if _, promptErr := defaultPrompt.Run(); promptErr == nil {
			setAsDefault = true
		}
	}

	p := profile.Profile{
		Name:        name,
		Backend:     backend,
		AccountName: account,
		AccountKey:  key,
		Endpoint:    strings.TrimSuffix(endpoint, "/"),
		Container:   containerName,
	}

	fmt.Fprint(out, "Checking container... ")
	if checkErr := checkProfile(cmd.Context(), p); checkErr != nil {
		fmt.Fprintln(out, "FAILED")
		fmt.Fprintf(out, "Warning: Could not reach container: %v\n", checkErr)

		continuePrompt := promptui.Prompt{
			Label:     "Save profile anyway",
			IsConfirm: true,
		}
		if _, promptErr := continuePrompt.Run(); promptErr != nil {
			fmt.Fprintln(out, "Cancelled.")
			return nil //nolint:nilerr // User cancelled, not an error
		}
	} else {
		fmt.Fprintln(out, "OK")
	}

	if existing != nil {
		p.Default = existing.Default
		err = f.UpdateProfile(p)
	} else {
		err = f.AddProfile(p)
	}
	if err != nil {
		return fmt.Errorf("save profile: %w", err)
	}

	if setAsDefault {
		if err := f.SetDefault(name); err != nil {
			return err
		}
	}

	if err := f.Save(path); err != nil {
		return fmt.Errorf("save profiles: %w", err)
	}

	if existing != nil {
		fmt.Fprintf(out, "Profile '%s' updated.\n", name)
	} else {
		fmt.Fprintf(out, "Profile '%s' added.\n", name)
	}

	if setAsDefault {
		fmt.Fprintln(out, "Set as default profile.")
	}

	return nil
}

func runConfigureRemove(cmd *cobra.Command, args []string) error {
	name := args[0]
	path := profilePath()

	f, err := profile.Load(path)
	if err != nil {
		return fmt.Errorf("load profiles: %w", err)
	}

	if _, err = f.GetProfile(name); err != nil {
		return err
	}

	prompt := promptui.Prompt{
		Label:     fmt.Sprintf("Remove profile '%s'", name),
		IsConfirm: true,
	}
	if _, promptErr := prompt.Run(); promptErr != nil {
		fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
		return nil //nolint:nilerr // User cancelled, not an error
	}

	if err := f.RemoveProfile(name); err != nil {
		return fmt.Errorf("remove profile: %w", err)
	}

	if err := f.Save(path); err != nil {
		return fmt.Errorf("save profiles: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Profile '%s' removed.\n", name)
	return nil
}

func runConfigureSetDefault(cmd *cobra.Command, args []string) error {
	name := args[0]
	path := profilePath()

	f, err := profile.Load(path)
	if err != nil {
		return fmt.Errorf("load profiles: %w", err)
	}

	if err := f.SetDefault(name); err != nil {
		return err
	}

	if err := f.Save(path); err != nil {
		return fmt.Errorf("save profiles: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Default profile set to '%s'.\n", name)
	return nil
}

func runConfigureShow(cmd *cobra.Command, args []string) error {
	f, err := profile.Load(profilePath())
	if err != nil {
		return fmt.Errorf("load profiles: %w", err)
	}

	name := ""
	if len(args) > 0 {
		name = args[0]
	}

	p, err := f.GetProfile(name)
	if err != nil {
		return err
	}

	isDefault := p.Name == f.DefaultName()
	return profile.WriteShow(cmd.OutOrStdout(), *p, isDefault, showSecrets)
}

func validateEndpoint(backend blobstart.Backend) func(string) error {
	return func(input string) error {
		if input == "" {
			if backend == blobstart.BackendS3 {
				return errors.New("endpoint is required for s3")
			}
			return nil
		}
		if backend == blobstart.BackendFilesystem {
			return nil
		}
		if backend == blobstart.BackendS3 && !strings.Contains(input, "://") {
			return nil
		}
		parsedURL, err := url.Parse(input)
		if err != nil {
			return fmt.Errorf("invalid URL: %w", err)
		}
		if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
			return errors.New("URL must start with http:// or https://")
		}
		return nil
	}
}

// profileConfig builds the storage settings for a profile without touching
// the session defaults.
func profileConfig(p profile.Profile) *config.Config {
	cfg := &config.Config{
		Storage: config.StorageConfig{
			Backend:  p.Backend,
			Account:  p.AccountName,
			Key:      p.AccountKey,
			Endpoint: p.Endpoint,
			Secure:   true,
			Path:     "./data",
		},
		Session: config.SessionConfig{Container: p.Container},
	}
	if p.Backend == string(blobstart.BackendFilesystem) && p.Endpoint != "" {
		cfg.Storage.Path = p.Endpoint
	}
	return cfg
}

// checkProfile reports whether the profile's container can be reached. Any
// answer from the service, including "does not exist", counts as reachable.
func checkProfile(ctx context.Context, p profile.Profile) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	c, err := newContainer(profileConfig(p))
	if err != nil {
		return err
	}
	_, err = c.Exists(ctx)
	return err
}

// handlePromptError handles promptui errors.
func handlePromptError(err error) error {
	if errors.Is(err, promptui.ErrInterrupt) {
		fmt.Println("\nCancelled.")
		os.Exit(0)
	}
	if errors.Is(err, promptui.ErrAbort) {
		fmt.Println("Cancelled.")
		return nil
	}
	return err
}

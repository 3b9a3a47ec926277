// Package config resolves the session configuration for blobstart.
//
// The package merges defaults, a saved profile, YAML configuration files,
// environment variables, CLI flags and positional arguments, then validates
// the result using go-playground/validator.
//
// # Configuration Precedence
//
// Values are loaded in this order (later sources override earlier ones):
//
//  1. Default values
//  2. Saved profile (see the profile package)
//  3. Configuration file(s) - multiple files merged left-to-right
//  4. Environment variables (BLOBSTART_ prefix, plus AZURE_STORAGE_*)
//  5. CLI flags
//  6. Positional arguments: [source] [container] [extra]
//
// # Usage
//
//	cfg, err := config.Load(config.LoadOptions{
//	    Flags: cmd.Flags(),
//	    Args:  args,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	ctx = config.WithContext(ctx, cfg)
//
// # Environment Variables
//
// All config keys map to environment variables with BLOBSTART_ prefix:
//   - session.container → BLOBSTART_SESSION_CONTAINER
//   - transfer.concurrency → BLOBSTART_TRANSFER_CONCURRENCY
//
// The account credentials additionally read the standard Azure variables:
//   - storage.account → AZURE_STORAGE_ACCOUNT
//   - storage.key → AZURE_STORAGE_ACCESS_KEY
//   - storage.connection_string → AZURE_STORAGE_CONNECTION_STRING
//
// # Sample File
//
// When no source path is configured, Load writes SampleContent to a new temp
// file and uses it as the upload source. Config.Session.Sample reports that
// the session owns the file.
package config
